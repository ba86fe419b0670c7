package completion

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go/v3"

	"github.com/bottylabs/botty/pkg/logger"
)

// RetryPolicy bounds how a transient provider failure is retried.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
	Jitter    func(max time.Duration) time.Duration
	Sleep     func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy mirrors the provider guidance: three attempts with
// jittered exponential backoff between one and ten seconds.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:  3,
		BaseDelay: 1 * time.Second,
		MaxDelay:  10 * time.Second,
	}
}

// Retrying wraps a Completer with transient-error retries. Exhausted retries
// re-raise the last error; non-transient errors fail immediately.
type Retrying struct {
	inner  Completer
	policy RetryPolicy
}

func NewRetrying(inner Completer, policy RetryPolicy) *Retrying {
	if policy.Attempts < 1 {
		policy.Attempts = 1
	}
	if policy.Jitter == nil {
		policy.Jitter = defaultJitter
	}
	if policy.Sleep == nil {
		policy.Sleep = sleepWithCtx
	}
	return &Retrying{inner: inner, policy: policy}
}

func (r *Retrying) Complete(ctx context.Context, req *Request) (*Response, error) {
	var lastErr error
	for attempt := 0; attempt < r.policy.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := r.inner.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if attempt == r.policy.Attempts-1 || !isTransient(err) {
			break
		}

		delay := r.backoff(attempt)
		logger.WarnCF("completion", "Transient provider error, retrying",
			map[string]any{
				"attempt":  attempt + 1,
				"attempts": r.policy.Attempts,
				"delay_ms": delay.Milliseconds(),
				"error":    err.Error(),
			})
		if err := r.policy.Sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func (r *Retrying) backoff(attempt int) time.Duration {
	delay := r.policy.BaseDelay << uint(attempt)
	if r.policy.MaxDelay > 0 && delay > r.policy.MaxDelay {
		delay = r.policy.MaxDelay
	}
	return delay + r.policy.Jitter(delay/2)
}

// isTransient reports whether the error is worth retrying: rate limits,
// server-side failures, and network timeouts. Client errors are not.
func isTransient(err error) bool {
	var oaiErr *openai.Error
	if errors.As(err, &oaiErr) {
		return retryableStatus(oaiErr.StatusCode)
	}
	var antErr *anthropic.Error
	if errors.As(err, &antErr) {
		return retryableStatus(antErr.StatusCode)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func retryableStatus(status int) bool {
	return status == 429 || status >= 500
}

func defaultJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(max) + 1))
}

func sleepWithCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
