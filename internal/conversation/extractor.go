package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/dental-concierge/pkg/logging"
)

var tracer = otel.Tracer("dental.internal.conversation")

// Extraction is the result of analysing the conversation so far. Intent is
// empty when no recognized intent was produced.
type Extraction struct {
	Intent   Intent
	Entities Entities
}

// Extractor derives intent and entities from the conversation history.
type Extractor interface {
	Extract(ctx context.Context, history []ChatMessage) (Extraction, error)
}

const entityFunctionName = "capture_clinic_entities"

const extractionPrompt = `You are a dental clinic concierge assistant.
You help patients book, confirm, reschedule, or cancel dental appointments,
answer questions about dental services (cleaning, orthodontics, implants, whitening),
and handle follow-ups such as post-treatment reminders or hygiene checks.
You always verify the doctor, branch, date, and time before confirming an appointment.
Clinic working hours: Sunday to Thursday, 9 AM to 9 PM. Fridays off.
Patients write in Arabic or English.
Extract entities using the capture_clinic_entities function and respond with valid JSON only,
shaped as {"intent": "<INTENT>", "entities": {}}.
INTENT is one of BOOK_APPOINTMENT, CANCEL_APPOINTMENT, RESCHEDULE_APPOINTMENT, INQUIRY,
FOLLOW_UP, ORTHODONTICS_INQUIRY, REMINDER_CALL, UNKNOWN.`

var entityParameterHints = map[string]string{
	"appointment_date": "ISO date (YYYY-MM-DD) or today/tomorrow",
	"appointment_time": "Clock time such as 10:30 or 4 pm",
	"doctor_name":      "Doctor name without title",
	"booking_id":       "Existing booking reference",
	"otp":              "Verification code sent to the patient",
}

// EntityFunction is the function spec offered to the model.
func EntityFunction() FunctionSpec {
	params := make([]FunctionParameter, 0, len(entityFields))
	for _, key := range EntityKeys() {
		params = append(params, FunctionParameter{Name: key, Description: entityParameterHints[key]})
	}
	return FunctionSpec{
		Name:        entityFunctionName,
		Description: "Extract relevant user details like phone, preferred service, dates and names.",
		Parameters:  params,
	}
}

// LLMExtractorConfig tunes the model call.
type LLMExtractorConfig struct {
	Model     string
	Timeout   time.Duration
	MaxTokens int32
}

// LLMExtractor asks a tool-calling model for intent and entities.
type LLMExtractor struct {
	client ToolCaller
	cfg    LLMExtractorConfig
	logger *logging.Logger
}

func NewLLMExtractor(client ToolCaller, cfg LLMExtractorConfig, logger *logging.Logger) *LLMExtractor {
	if client == nil {
		panic("conversation: tool caller required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 512
	}
	return &LLMExtractor{client: client, cfg: cfg, logger: logger}
}

func (e *LLMExtractor) Extract(ctx context.Context, history []ChatMessage) (Extraction, error) {
	ctx, span := tracer.Start(ctx, "conversation.extract")
	defer span.End()

	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	resp, err := e.client.CompleteWithTools(ctx, ToolRequest{
		Model:       e.cfg.Model,
		System:      []string{extractionPrompt},
		Messages:    history,
		Functions:   []FunctionSpec{EntityFunction()},
		MaxTokens:   e.cfg.MaxTokens,
		Temperature: 0.2,
	})
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "extraction failed")
		return Extraction{}, fmt.Errorf("conversation: extract: %w", err)
	}

	var out Extraction
	matched := 0
	var last *FunctionCall
	for i := range resp.Calls {
		if resp.Calls[i].Name == entityFunctionName {
			matched++
			last = &resp.Calls[i]
		}
	}
	if matched > 1 {
		e.logger.Debug("discarding earlier entity calls", "discarded", matched-1)
	}
	if last != nil {
		for k, v := range last.Args {
			if squashKey(k) == "intent" {
				if intent, ok := NormalizeIntent(v); ok {
					out.Intent = intent
				}
				continue
			}
			out.Entities.Set(k, v)
		}
	}

	if payload, ok := parseReplyJSON(resp.Text); ok {
		if intent, ok := NormalizeIntent(payload.Intent); ok {
			out.Intent = intent
		} else if payload.Intent != "" {
			e.logger.Debug("discarding unrecognized intent", "intent", payload.Intent)
		}
		for k, v := range stringArgs(payload.Entities) {
			out.Entities.Set(k, v)
		}
	} else if strings.TrimSpace(resp.Text) != "" {
		e.logger.Warn("failed to parse extraction JSON", "text", Redact(resp.Text))
	}

	span.SetAttributes(
		attribute.String("dental.intent", string(out.Intent)),
		attribute.Int("dental.function_calls", matched),
	)
	return out, nil
}

type replyPayload struct {
	Intent   string         `json:"intent"`
	Entities map[string]any `json:"entities"`
}

// parseReplyJSON decodes the object between the first '{' and the last '}'
// of text, tolerating prose or code fences around it.
func parseReplyJSON(text string) (replyPayload, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return replyPayload{}, false
	}
	var payload replyPayload
	if err := json.Unmarshal([]byte(text[start:end+1]), &payload); err != nil {
		return replyPayload{}, false
	}
	return payload, true
}
