// Package gateway shields callers from transient failures of the hosted
// generation capability. Every outbound call is wrapped in exponential
// backoff retry: capacity errors (rate limit, quota, resource exhaustion)
// are retried up to a fixed ceiling with a growing delay, everything else
// propagates immediately and unchanged.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/genai"
)

// Options tunes the retry behavior. The defaults preserve the reference
// behavior: 5 retries starting at 5 s, multiplying by 1.5 each attempt.
type Options struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration

	// Multiplier scales the delay after each retry.
	Multiplier float64
}

// DefaultOptions returns the reference retry tuning.
func DefaultOptions() Options {
	return Options{
		MaxRetries:     5,
		InitialBackoff: 5 * time.Second,
		Multiplier:     1.5,
	}
}

func (o Options) normalize() Options {
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = 5 * time.Second
	}
	if o.Multiplier < 1 {
		o.Multiplier = 1.5
	}
	return o
}

// Gateway wraps operations with retry-on-transient-failure semantics.
// The zero value is not usable; construct with New.
type Gateway struct {
	opts   Options
	logger *slog.Logger
}

// New creates a Gateway with the given options. A nil logger uses the
// default slog logger.
func New(opts Options, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{opts: opts.normalize(), logger: logger}
}

// Do invokes op, retrying transient failures with exponential backoff.
// The backoff sleeps suspend only the calling goroutine and honor ctx
// cancellation. Terminal failures and exhausted retries return the
// operation's error unchanged.
func (g *Gateway) Do(ctx context.Context, name string, op func(ctx context.Context) error) error {
	return retry.Do(
		func() error { return op(ctx) },
		retry.Context(ctx),
		retry.Attempts(uint(g.opts.MaxRetries)+1),
		retry.RetryIf(IsTransient),
		retry.LastErrorOnly(true),
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			d := g.opts.InitialBackoff
			for i := uint(0); i < n; i++ {
				d = time.Duration(float64(d) * g.opts.Multiplier)
			}
			return d
		}),
		retry.OnRetry(func(n uint, err error) {
			g.logger.Warn("transient capability error, backing off",
				"op", name, "attempt", n+1, "err", err)
		}),
	)
}

// Call is the generic form of Do for operations that return a value.
func Call[T any](ctx context.Context, g *Gateway, name string, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := g.Do(ctx, name, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// transientMarkers are substrings that identify capacity errors in
// providers that only surface message text.
var transientMarkers = []string{
	"rate limit",
	"ratelimit",
	"quota",
	"resource exhausted",
	"resource_exhausted",
	"too many requests",
}

// IsTransient reports whether err is a capacity error worth retrying.
// HTTP 429 and gRPC ResourceExhausted are transient; so is any error whose
// text carries a rate-limit or quota marker. Everything else, including
// malformed responses and auth failures, is terminal.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var ae *apierror.APIError
	if errors.As(err, &ae) && ae.HTTPCode() == 429 {
		return true
	}

	var ge genai.APIError
	if errors.As(err, &ge) && ge.Code == 429 {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
