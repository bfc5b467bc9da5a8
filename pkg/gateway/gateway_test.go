package gateway

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testOptions() Options {
	return Options{
		MaxRetries:     5,
		InitialBackoff: time.Millisecond,
		Multiplier:     1.5,
	}
}

var errRateLimited = errors.New("429: resource exhausted, please retry")

func TestTransientRetryCeiling(t *testing.T) {
	g := New(testOptions(), nil)

	calls := 0
	var stamps []time.Time
	err := g.Do(context.Background(), "always429", func(context.Context) error {
		calls++
		stamps = append(stamps, time.Now())
		return errRateLimited
	})

	if calls != 6 {
		t.Errorf("calls = %d; want maxRetries+1 = 6", calls)
	}
	if !errors.Is(err, errRateLimited) {
		t.Errorf("err = %v; want the operation's own error", err)
	}

	// Backoff must be non-decreasing across attempts.
	var prev time.Duration
	for i := 1; i < len(stamps); i++ {
		gap := stamps[i].Sub(stamps[i-1])
		if gap < prev {
			t.Errorf("delay %d (%v) shorter than previous (%v)", i, gap, prev)
		}
		prev = gap
	}
}

func TestTerminalShortCircuit(t *testing.T) {
	g := New(testOptions(), nil)

	terminal := errors.New("invalid request: schema mismatch")
	calls := 0
	err := g.Do(context.Background(), "terminal", func(context.Context) error {
		calls++
		return terminal
	})

	if calls != 1 {
		t.Errorf("calls = %d; want 1", calls)
	}
	if !errors.Is(err, terminal) {
		t.Errorf("err = %v; want %v unchanged", err, terminal)
	}
}

func TestTransientThenSuccess(t *testing.T) {
	g := New(testOptions(), nil)

	calls := 0
	got, err := Call(context.Background(), g, "flaky", func(context.Context) ([]byte, error) {
		calls++
		if calls < 3 {
			return nil, errRateLimited
		}
		return []byte("audio"), nil
	})

	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d; want 3", calls)
	}
	if string(got) != "audio" {
		t.Errorf("result = %q; want %q", got, "audio")
	}
}

func TestContextCancelStopsRetries(t *testing.T) {
	g := New(Options{MaxRetries: 5, InitialBackoff: time.Hour, Multiplier: 1.5}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- g.Do(ctx, "cancelled", func(context.Context) error {
			calls++
			return errRateLimited
		})
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Error("want error after cancellation")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not return after context cancellation")
	}
	if calls != 1 {
		t.Errorf("calls = %d; want 1 before cancellation", calls)
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limit text", errors.New("Rate limit exceeded"), true},
		{"quota text", errors.New("Quota exceeded for model"), true},
		{"resource exhausted", errors.New("code 429 RESOURCE_EXHAUSTED"), true},
		{"auth failure", errors.New("401 unauthorized"), false},
		{"schema mismatch", errors.New("response does not conform to schema"), false},
		{"context canceled", context.Canceled, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsTransient(tc.err); got != tc.want {
				t.Errorf("IsTransient(%v) = %v; want %v", tc.err, got, tc.want)
			}
		})
	}
}
