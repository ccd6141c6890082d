package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

type bedrockConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockToolClient calls Bedrock's Converse API with a tool configuration.
type BedrockToolClient struct {
	api   bedrockConverseAPI
	model string
}

func NewBedrockToolClient(api bedrockConverseAPI, modelID string) *BedrockToolClient {
	if api == nil {
		panic("conversation: bedrock converse client cannot be nil")
	}
	return &BedrockToolClient{api: api, model: modelID}
}

func (c *BedrockToolClient) CompleteWithTools(ctx context.Context, req ToolRequest) (ToolResponse, error) {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = c.model
	}
	if model == "" {
		return ToolResponse{}, errors.New("conversation: bedrock model id is required")
	}

	systemBlocks := make([]brtypes.SystemContentBlock, 0, len(req.System))
	for _, block := range req.System {
		if strings.TrimSpace(block) == "" {
			continue
		}
		systemBlocks = append(systemBlocks, &brtypes.SystemContentBlockMemberText{Value: block})
	}

	messages := make([]brtypes.Message, 0, len(req.Messages))
	for _, msg := range req.Messages {
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}

		switch msg.Role {
		case RoleSystem:
			systemBlocks = append(systemBlocks, &brtypes.SystemContentBlockMemberText{Value: content})
		case RoleUser:
			messages = append(messages, brtypes.Message{
				Role:    brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: content}},
			})
		case RoleAssistant:
			messages = append(messages, brtypes.Message{
				Role:    brtypes.ConversationRoleAssistant,
				Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: content}},
			})
		default:
			return ToolResponse{}, fmt.Errorf("conversation: unsupported role %q", msg.Role)
		}
	}

	inference := &brtypes.InferenceConfiguration{}
	if req.MaxTokens > 0 {
		inference.MaxTokens = aws.Int32(req.MaxTokens)
	}
	// Negative temperature leaves the provider default.
	if req.Temperature >= 0 {
		inference.Temperature = aws.Float32(req.Temperature)
	}
	if inference.MaxTokens == nil && inference.Temperature == nil {
		inference = nil
	}

	out, err := c.api.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId:         aws.String(model),
		System:          systemBlocks,
		Messages:        messages,
		InferenceConfig: inference,
		ToolConfig:      bedrockToolConfig(req.Functions),
	})
	if err != nil {
		return ToolResponse{}, fmt.Errorf("conversation: bedrock converse: %w", err)
	}
	return bedrockToolResponse(out)
}

func bedrockToolConfig(functions []FunctionSpec) *brtypes.ToolConfiguration {
	if len(functions) == 0 {
		return nil
	}
	tools := make([]brtypes.Tool, 0, len(functions))
	for _, f := range functions {
		tools = append(tools, &brtypes.ToolMemberToolSpec{Value: brtypes.ToolSpecification{
			Name:        aws.String(f.Name),
			Description: aws.String(f.Description),
			InputSchema: &brtypes.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(f.Schema())},
		}})
	}
	return &brtypes.ToolConfiguration{Tools: tools}
}

func bedrockToolResponse(out *bedrockruntime.ConverseOutput) (ToolResponse, error) {
	if out == nil {
		return ToolResponse{}, errors.New("conversation: bedrock response is nil")
	}
	msgOut, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return ToolResponse{}, errors.New("conversation: bedrock response did not include a message output")
	}

	var (
		resp    ToolResponse
		builder strings.Builder
	)
	for _, block := range msgOut.Value.Content {
		switch v := block.(type) {
		case *brtypes.ContentBlockMemberText:
			builder.WriteString(v.Value)
		case *brtypes.ContentBlockMemberToolUse:
			call := FunctionCall{Name: aws.ToString(v.Value.Name), Args: map[string]string{}}
			if v.Value.Input != nil {
				var decoded map[string]any
				if err := v.Value.Input.UnmarshalSmithyDocument(&decoded); err != nil {
					return ToolResponse{}, fmt.Errorf("conversation: bedrock tool input: %w", err)
				}
				call.Args = stringArgs(decoded)
			}
			resp.Calls = append(resp.Calls, call)
		}
	}
	resp.Text = strings.TrimSpace(builder.String())
	if resp.Text == "" && len(resp.Calls) == 0 {
		return ToolResponse{}, errors.New("conversation: bedrock response contained no text or tool use")
	}
	if out.StopReason != "" {
		resp.StopReason = string(out.StopReason)
	}
	if out.Usage != nil {
		resp.Usage = TokenUsage{
			InputTokens:  int32OrZero(out.Usage.InputTokens),
			OutputTokens: int32OrZero(out.Usage.OutputTokens),
			TotalTokens:  int32OrZero(out.Usage.TotalTokens),
		}
	}
	return resp, nil
}

func int32OrZero(v *int32) int32 {
	if v == nil {
		return 0
	}
	return *v
}
