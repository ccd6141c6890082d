package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiToolClient implements ToolCaller using Gemini function declarations.
type GeminiToolClient struct {
	client  *genai.Client
	modelID string
}

// NewGeminiToolClient creates a new Gemini client.
func NewGeminiToolClient(ctx context.Context, apiKey, modelID string) (*GeminiToolClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("conversation: gemini api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("conversation: failed to create gemini client: %w", err)
	}
	return &GeminiToolClient{client: client, modelID: modelID}, nil
}

func (c *GeminiToolClient) CompleteWithTools(ctx context.Context, req ToolRequest) (ToolResponse, error) {
	modelID := c.modelID
	if strings.TrimSpace(req.Model) != "" {
		modelID = req.Model
	}
	model := c.client.GenerativeModel(modelID)

	if req.Temperature >= 0 {
		model.SetTemperature(req.Temperature)
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(req.MaxTokens)
	}
	if len(req.Functions) > 0 {
		model.Tools = []*genai.Tool{geminiTool(req.Functions)}
	}

	system := append([]string(nil), req.System...)
	history, last, err := geminiHistory(req.Messages, &system)
	if err != nil {
		return ToolResponse{}, err
	}
	if text := strings.TrimSpace(strings.Join(system, "\n\n")); text != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(text))
	}

	cs := model.StartChat()
	cs.History = history
	resp, err := cs.SendMessage(ctx, genai.Text(last))
	if err != nil {
		return ToolResponse{}, fmt.Errorf("conversation: gemini completion failed: %w", err)
	}
	return geminiToolResponse(resp)
}

// geminiHistory splits messages into chat history and the final user text.
// System messages are appended to system.
func geminiHistory(messages []ChatMessage, system *[]string) ([]*genai.Content, string, error) {
	var (
		history []*genai.Content
		last    string
	)
	for i, msg := range messages {
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		if msg.Role == RoleSystem {
			*system = append(*system, content)
			continue
		}
		if i == len(messages)-1 {
			last = content
			break
		}
		role := "user"
		if msg.Role == RoleAssistant {
			role = "model"
		}
		history = append(history, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(content)}})
	}
	if last == "" {
		return nil, "", errors.New("conversation: gemini requires a final user message")
	}
	return history, last, nil
}

func geminiTool(functions []FunctionSpec) *genai.Tool {
	decls := make([]*genai.FunctionDeclaration, 0, len(functions))
	for _, f := range functions {
		props := make(map[string]*genai.Schema, len(f.Parameters))
		for _, p := range f.Parameters {
			props[p.Name] = &genai.Schema{Type: genai.TypeString, Description: p.Description}
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        f.Name,
			Description: f.Description,
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: props,
				Required:   f.Required,
			},
		})
	}
	return &genai.Tool{FunctionDeclarations: decls}
}

func geminiToolResponse(resp *genai.GenerateContentResponse) (ToolResponse, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return ToolResponse{}, errors.New("conversation: gemini returned no candidates")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return ToolResponse{}, errors.New("conversation: gemini returned empty content")
	}

	var (
		out  ToolResponse
		text strings.Builder
	)
	for _, part := range candidate.Content.Parts {
		switch v := part.(type) {
		case genai.Text:
			text.WriteString(string(v))
		case genai.FunctionCall:
			out.Calls = append(out.Calls, FunctionCall{Name: v.Name, Args: stringArgs(v.Args)})
		}
	}
	out.Text = strings.TrimSpace(text.String())
	out.StopReason = candidate.FinishReason.String()
	if resp.UsageMetadata != nil {
		out.Usage = TokenUsage{
			InputTokens:  resp.UsageMetadata.PromptTokenCount,
			OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:  resp.UsageMetadata.TotalTokenCount,
		}
	}
	return out, nil
}

// Close releases resources held by the Gemini client.
func (c *GeminiToolClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
