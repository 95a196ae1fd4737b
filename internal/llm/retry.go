package llm

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryingClient bounds every call with a timeout and retries failed calls a
// limited number of times. Configuration errors are not retried.
type RetryingClient struct {
	inner   LLMClient
	timeout time.Duration
	retries int
	wait    time.Duration
}

func WithRetry(inner LLMClient, timeout time.Duration, retries int) *RetryingClient {
	return &RetryingClient{
		inner:   inner,
		timeout: timeout,
		retries: retries,
		wait:    500 * time.Millisecond,
	}
}

func (c *RetryingClient) Generate(ctx context.Context, prompt string) (string, error) {
	op := func() (string, error) {
		callCtx := ctx
		if c.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}
		out, err := c.inner.Generate(callCtx, prompt)
		if err != nil && (errors.Is(err, ErrUnconfigured) || ctx.Err() != nil) {
			return "", backoff.Permanent(err)
		}
		return out, err
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(c.wait)),
		backoff.WithMaxTries(uint(c.retries+1)),
	)
}
