package openrouter

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const maxJitter = time.Second

// retrier re-runs provider calls that failed on rate limiting. The delay
// before attempt n+1 is initialDelay * 2^(n-1) plus random jitter up to one
// second. Any error that is not rate-limit flavored propagates immediately.
type retrier struct {
	maxAttempts  int
	initialDelay time.Duration

	// Injection points for tests.
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() time.Duration
}

func newRetrier(maxAttempts int, initialDelay time.Duration) retrier {
	return retrier{
		maxAttempts:  maxAttempts,
		initialDelay: initialDelay,
		sleep:        sleepCtx,
		jitter:       func() time.Duration { return time.Duration(rand.Int63n(int64(maxJitter))) },
	}
}

func (r retrier) do(ctx context.Context, op func() error) error {
	delay := r.initialDelay
	for attempt := 1; ; attempt++ {
		err := op()
		if err == nil {
			return nil
		}
		if !isRateLimited(err) || attempt >= r.maxAttempts {
			return err
		}
		if err := r.sleep(ctx, delay+r.jitter()); err != nil {
			return err
		}
		delay *= 2
	}
}

// isRateLimited reports whether the error carries a provider rate-limit
// marker: an HTTP 429, a "429" in the message, or a resource-exhausted hint.
func isRateLimited(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return true
	}
	var rawErr *APIError
	if errors.As(err, &rawErr) && rawErr.StatusCode == http.StatusTooManyRequests {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED")
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
