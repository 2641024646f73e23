package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/hupe1980/staffmesh/core"
)

// RetryOptions configure the retry decorator.
type RetryOptions struct {
	// MaxAttempts is the total number of tries per call (first attempt
	// included). Values below 1 are treated as 1.
	MaxAttempts int
	// InitialBackoff is the delay before the first retry; it doubles per
	// attempt up to MaxBackoff.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Retrying wraps a Gateway with bounded-backoff retries. Exhausted retries
// surface a core.GatewayError; context cancellation and deadline expiry are
// never retried (the deadline is the caller's timeout budget).
type Retrying struct {
	gw   core.Gateway
	opts RetryOptions
}

// WithRetry decorates gw with the retry policy.
func WithRetry(gw core.Gateway, optFns ...func(o *RetryOptions)) *Retrying {
	opts := RetryOptions{
		MaxAttempts:    3,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	return &Retrying{gw: gw, opts: opts}
}

// Embed implements core.Embedder with retries.
func (r *Retrying) Embed(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := r.do(ctx, "embed", func() error {
		var err error
		out, err = r.gw.Embed(ctx, text)
		return err
	})
	return out, err
}

// Dimension implements core.Embedder.
func (r *Retrying) Dimension() int { return r.gw.Dimension() }

// Complete implements core.Completer with retries.
func (r *Retrying) Complete(ctx context.Context, prompt, contextText string) (core.Completion, error) {
	var out core.Completion
	err := r.do(ctx, "complete", func() error {
		var err error
		out, err = r.gw.Complete(ctx, prompt, contextText)
		return err
	})
	return out, err
}

func (r *Retrying) do(ctx context.Context, op string, call func() error) error {
	backoff := r.opts.InitialBackoff
	var lastErr error
	for attempt := 0; attempt < r.opts.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return &core.GatewayError{Op: op, Timeout: true, Err: ctx.Err()}
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > r.opts.MaxBackoff {
				backoff = r.opts.MaxBackoff
			}
		}
		lastErr = call()
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			return &core.GatewayError{Op: op, Timeout: true, Err: lastErr}
		}
	}
	return &core.GatewayError{Op: op, Err: lastErr}
}

// composed glues an independent Completer and Embedder into one Gateway.
// Needed for providers without an embeddings endpoint (Anthropic).
type composed struct {
	core.Completer
	core.Embedder
}

// Compose pairs a Completer with an Embedder as a single Gateway.
func Compose(c core.Completer, e core.Embedder) core.Gateway {
	return &composed{Completer: c, Embedder: e}
}
