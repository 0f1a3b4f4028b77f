package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/elicit-dev/elicit/internal/logging"
)

// FailoverClient tries a primary model first, then falls back through the
// list on retryable errors (429, 5xx, overload). All models go through the
// same underlying provider, which routes by model name.
type FailoverClient struct {
	client    Client
	primary   string
	fallbacks []string
	log       *logging.Logger
}

// NewFailoverClient wraps a provider client with model-level failover.
func NewFailoverClient(client Client, primary string, fallbacks []string, log *logging.Logger) *FailoverClient {
	return &FailoverClient{
		client:    client,
		primary:   primary,
		fallbacks: fallbacks,
		log:       log.Sub("failover"),
	}
}

// Name returns the wrapped provider's name.
func (f *FailoverClient) Name() string { return f.client.Name() }

// Complete tries the primary model, falling back on retryable errors.
func (f *FailoverClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	models := append([]string{f.primary}, f.fallbacks...)

	var lastErr error
	for _, model := range models {
		req.Model = model
		resp, err := f.client.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}

		lastErr = err

		if isRetryable(err) {
			f.log.Warn().
				Str("model", model).
				Err(err).
				Msg("retryable error, trying next model")
			continue
		}

		// Non-retryable, stop here
		return nil, err
	}

	return nil, lastErr
}

// Stream tries the primary model for streaming, with failover. Failover only
// covers errors before the stream opens; once events flow, errors surface on
// the channel.
func (f *FailoverClient) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error) {
	models := append([]string{f.primary}, f.fallbacks...)

	var lastErr error
	for _, model := range models {
		req.Model = model
		ch, err := f.client.Stream(ctx, req)
		if err == nil {
			return ch, nil
		}

		lastErr = err

		if isRetryable(err) {
			f.log.Warn().
				Str("model", model).
				Err(err).
				Msg("retryable stream error, trying next model")
			continue
		}

		return nil, err
	}

	return nil, lastErr
}

// isRetryable checks if the error suggests trying another model.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	var provErr *ProviderError
	if errors.As(err, &provErr) {
		switch provErr.Code {
		case 429, 500, 502, 503, 529:
			return true
		}
	}

	msg := err.Error()
	return strings.Contains(msg, "overloaded") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "capacity") ||
		strings.Contains(msg, "timeout")
}
