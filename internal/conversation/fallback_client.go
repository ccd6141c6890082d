package conversation

import (
	"context"

	"github.com/wolfman30/dental-concierge/pkg/logging"
)

// FallbackToolClient wraps a primary provider with a fallback one.
// If the primary fails, the request is retried on the fallback.
type FallbackToolClient struct {
	primary  ToolCaller
	fallback ToolCaller
	logger   *logging.Logger
}

// NewFallbackToolClient creates a fallback-enabled client. A nil fallback
// means primary only.
func NewFallbackToolClient(primary, fallback ToolCaller, logger *logging.Logger) *FallbackToolClient {
	if primary == nil {
		panic("conversation: primary tool caller required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &FallbackToolClient{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (c *FallbackToolClient) CompleteWithTools(ctx context.Context, req ToolRequest) (ToolResponse, error) {
	resp, err := c.primary.CompleteWithTools(ctx, req)
	if err == nil {
		return resp, nil
	}

	c.logger.Warn("primary LLM failed, attempting fallback",
		"error", err.Error(),
		"fallback_available", c.fallback != nil,
	)
	if c.fallback == nil || ctx.Err() != nil {
		return ToolResponse{}, err
	}

	fallbackResp, fallbackErr := c.fallback.CompleteWithTools(ctx, req)
	if fallbackErr != nil {
		c.logger.Error("fallback LLM also failed",
			"primary_error", err.Error(),
			"fallback_error", fallbackErr.Error(),
		)
		return ToolResponse{}, fallbackErr
	}

	c.logger.Info("fallback LLM succeeded after primary failure")
	return fallbackResp, nil
}
