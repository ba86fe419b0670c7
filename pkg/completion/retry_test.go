package completion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedCompleter struct {
	calls int
	errs  []error
}

func (c *scriptedCompleter) Complete(ctx context.Context, req *Request) (*Response, error) {
	c.calls++
	if c.calls <= len(c.errs) && c.errs[c.calls-1] != nil {
		return nil, c.errs[c.calls-1]
	}
	return &Response{OutputText: "ok"}, nil
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "dial tcp: i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func instantPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:  3,
		BaseDelay: time.Millisecond,
		MaxDelay:  time.Millisecond,
		Jitter:    func(time.Duration) time.Duration { return 0 },
		Sleep:     func(context.Context, time.Duration) error { return nil },
	}
}

func TestRetryRecoversFromTransientError(t *testing.T) {
	inner := &scriptedCompleter{errs: []error{timeoutErr{}, timeoutErr{}}}
	r := NewRetrying(inner, instantPolicy())

	resp, err := r.Complete(context.Background(), &Request{Model: "gpt-5-mini"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.OutputText)
	assert.Equal(t, 3, inner.calls)
}

func TestRetryExhaustionReturnsLastError(t *testing.T) {
	inner := &scriptedCompleter{errs: []error{timeoutErr{}, timeoutErr{}, timeoutErr{}}}
	r := NewRetrying(inner, instantPolicy())

	_, err := r.Complete(context.Background(), &Request{})
	require.Error(t, err)
	assert.Equal(t, 3, inner.calls)
}

func TestRetrySkipsNonTransientError(t *testing.T) {
	fatal := errors.New("invalid request: model not found")
	inner := &scriptedCompleter{errs: []error{fatal, fatal, fatal}}
	r := NewRetrying(inner, instantPolicy())

	_, err := r.Complete(context.Background(), &Request{})
	require.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, inner.calls, "client errors must not be retried")
}

func TestRetryHonorsContextCancellation(t *testing.T) {
	inner := &scriptedCompleter{errs: []error{timeoutErr{}, timeoutErr{}, timeoutErr{}}}
	policy := instantPolicy()
	policy.Sleep = func(ctx context.Context, d time.Duration) error {
		return context.Canceled
	}
	r := NewRetrying(inner, policy)

	_, err := r.Complete(context.Background(), &Request{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, inner.calls)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, isTransient(timeoutErr{}))
	assert.True(t, isTransient(context.DeadlineExceeded))
	assert.False(t, isTransient(errors.New("400 bad request")))
}
