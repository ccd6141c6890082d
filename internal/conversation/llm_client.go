package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

// FunctionParameter is one string argument of a callable function.
type FunctionParameter struct {
	Name        string
	Description string
}

// FunctionSpec describes a function the model may call. Every parameter is
// a string.
type FunctionSpec struct {
	Name        string
	Description string
	Parameters  []FunctionParameter
	Required    []string
}

// Schema renders the JSON schema for the function arguments.
func (f FunctionSpec) Schema() map[string]any {
	props := make(map[string]any, len(f.Parameters))
	for _, p := range f.Parameters {
		prop := map[string]any{"type": "string"}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		props[p.Name] = prop
	}
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(f.Required) > 0 {
		schema["required"] = f.Required
	}
	return schema
}

// FunctionCall is a function invocation returned by the model.
type FunctionCall struct {
	Name string
	Args map[string]string
}

type ToolRequest struct {
	Model       string
	System      []string
	Messages    []ChatMessage
	Functions   []FunctionSpec
	MaxTokens   int32
	Temperature float32
}

type ToolResponse struct {
	Text       string
	Calls      []FunctionCall
	Usage      TokenUsage
	StopReason string
}

// ToolCaller is a chat-completion provider that supports function calling.
type ToolCaller interface {
	CompleteWithTools(ctx context.Context, req ToolRequest) (ToolResponse, error)
}

// stringArgs flattens decoded JSON arguments to strings. Nested values are
// re-encoded as JSON; nulls are dropped.
func stringArgs(in map[string]any) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		switch val := v.(type) {
		case nil:
			continue
		case string:
			out[k] = val
		case float64, bool, json.Number:
			out[k] = fmt.Sprint(val)
		default:
			raw, err := json.Marshal(val)
			if err != nil {
				continue
			}
			out[k] = string(raw)
		}
	}
	return out
}

func decodeArgs(raw string) (map[string]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]string{}, nil
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, fmt.Errorf("conversation: decode function arguments: %w", err)
	}
	return stringArgs(decoded), nil
}
