package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	openai "github.com/sashabaranov/go-openai"

	appconfig "github.com/wolfman30/dental-concierge/internal/config"
	"github.com/wolfman30/dental-concierge/internal/conversation"
	"github.com/wolfman30/dental-concierge/internal/language"
	"github.com/wolfman30/dental-concierge/pkg/logging"
)

// AWSConfigLoader resolves AWS settings for the Bedrock client.
type AWSConfigLoader func(ctx context.Context, cfg *appconfig.Config) (aws.Config, error)

// BuildToolCaller constructs the model client for provider. The returned
// closer releases any client resources and is never nil.
func BuildToolCaller(ctx context.Context, cfg *appconfig.Config, provider string, loadAWS AWSConfigLoader) (conversation.ToolCaller, func() error, error) {
	noop := func() error { return nil }
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "bedrock":
		if loadAWS == nil {
			return nil, noop, fmt.Errorf("bootstrap: aws config loader is required for bedrock")
		}
		awsCfg, err := loadAWS(ctx, cfg)
		if err != nil {
			return nil, noop, fmt.Errorf("bootstrap: load aws config: %w", err)
		}
		return conversation.NewBedrockToolClient(bedrockruntime.NewFromConfig(awsCfg), cfg.BedrockModelID), noop, nil
	case "gemini":
		client, err := conversation.NewGeminiToolClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			return nil, noop, err
		}
		return client, client.Close, nil
	case "openai":
		if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
			return nil, noop, fmt.Errorf("bootstrap: openai api key is required")
		}
		return conversation.NewOpenAIToolClient(openai.NewClient(cfg.OpenAIAPIKey), cfg.OpenAIModel), noop, nil
	default:
		return nil, noop, fmt.Errorf("bootstrap: unsupported llm provider %q", provider)
	}
}

// BuildExtractor wires the entity extractor selected by LLM_PROVIDER. The
// "rules" provider needs no network access and is the default.
func BuildExtractor(ctx context.Context, cfg *appconfig.Config, loadAWS AWSConfigLoader, logger *logging.Logger) (conversation.Extractor, func() error, error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if cfg.LLMProvider == "" || cfg.LLMProvider == "rules" {
		logger.Info("using rule-based extractor", "branches", len(cfg.ClinicBranches))
		return conversation.NewRuleExtractor(cfg.ClinicBranches...), func() error { return nil }, nil
	}

	primary, closePrimary, err := BuildToolCaller(ctx, cfg, cfg.LLMProvider, loadAWS)
	if err != nil {
		return nil, nil, err
	}
	closers := []func() error{closePrimary}
	caller := primary

	if cfg.LLMFallbackProvider != "" {
		fallback, closeFallback, err := BuildToolCaller(ctx, cfg, cfg.LLMFallbackProvider, loadAWS)
		if err != nil {
			logger.Warn("fallback llm provider unavailable", "provider", cfg.LLMFallbackProvider, "error", err)
		} else {
			closers = append(closers, closeFallback)
			caller = conversation.NewFallbackToolClient(primary, fallback, logger)
		}
	}

	// Model stays blank so each client applies its own configured model.
	logger.Info("using llm extractor", "provider", cfg.LLMProvider, "fallback", cfg.LLMFallbackProvider)
	extractor := conversation.NewLLMExtractor(caller, conversation.LLMExtractorConfig{
		Timeout: cfg.LLMTimeout,
	}, logger)

	closeAll := func() error {
		var firstErr error
		for _, c := range closers {
			if err := c(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}
	return extractor, closeAll, nil
}

// OrchestratorFactory builds one orchestrator per session with the
// configured booking timeout and agent name.
func OrchestratorFactory(
	cfg *appconfig.Config,
	extractor conversation.Extractor,
	bookingService conversation.BookingService,
	resolver conversation.ReplyResolver,
	observer conversation.Observer,
	logger *logging.Logger,
) conversation.Factory {
	if logger == nil {
		logger = logging.Default()
	}
	return func(sessionID string, locale language.Locale) *conversation.Orchestrator {
		opts := []conversation.Option{conversation.WithLocale(locale)}
		if cfg != nil && cfg.BookingTimeout > 0 {
			opts = append(opts, conversation.WithBookingTimeout(cfg.BookingTimeout))
		}
		if cfg != nil && cfg.AgentName != "" {
			opts = append(opts, conversation.WithAgentName(cfg.AgentName))
		}
		if observer != nil {
			opts = append(opts, conversation.WithObserver(observer))
		}
		return conversation.NewOrchestrator(sessionID, extractor, bookingService, resolver, logger, opts...)
	}
}
