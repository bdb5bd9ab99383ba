package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Outcome is the verdict an operation returns for one attempt.
type Outcome int

const (
	Succeeded Outcome = iota
	Retry
	FailFast
)

func (o Outcome) String() string {
	switch o {
	case Succeeded:
		return "succeeded"
	case Retry:
		return "retry"
	case FailFast:
		return "fail-fast"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Op is one attempt. attempt counts from 1.
type Op func(ctx context.Context, attempt int) (Outcome, error)

// Policy bounds the number of attempts and names the error returned once the
// policy gives up.
type Policy struct {
	Attempts int
	Terminal error
	// Backoff is slept between attempts. Zero retries immediately.
	Backoff time.Duration
	// OnRetry is called after an attempt asked to be retried and before the
	// next attempt starts.
	OnRetry func(attempt int, err error)
}

// New returns a policy allowing attempts tries before failing with terminal.
func New(attempts int, terminal error) *Policy {
	if attempts < 1 {
		attempts = 1
	}
	return &Policy{Attempts: attempts, Terminal: terminal}
}

// WithBackoff returns a copy of the policy that waits d between attempts.
func (p *Policy) WithBackoff(d time.Duration) *Policy {
	clone := *p
	clone.Backoff = d
	return &clone
}

// Run drives op until it succeeds, fails fast, or attempts run out. The
// returned error wraps Terminal and the last cause so both are visible to
// errors.Is. Context cancellation stops the loop between attempts.
func (p *Policy) Run(ctx context.Context, op Op) error {
	if ctx == nil {
		ctx = context.Background()
	}
	attempts := max(p.Attempts, 1)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return p.fail(err)
		}
		outcome, err := op(ctx, attempt)
		switch outcome {
		case Succeeded:
			return nil
		case FailFast:
			return p.fail(err)
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}
		if p.Backoff > 0 {
			timer := time.NewTimer(p.Backoff)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return p.fail(ctx.Err())
			}
		}
	}
	return p.fail(lastErr)
}

func (p *Policy) fail(cause error) error {
	terminal := p.Terminal
	if terminal == nil {
		terminal = ErrExhausted
	}
	if cause == nil {
		return terminal
	}
	return errors.Join(terminal, cause)
}

// ErrExhausted is used when a policy has no terminal error of its own.
var ErrExhausted = errors.New("retry attempts exhausted")
