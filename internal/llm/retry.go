package llm

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

var _ Completer = (*Retrying)(nil)

// Retrying retries transient completion failures a fixed number of times
// with a constant pause between attempts.
type Retrying struct {
	next    Completer
	retries uint64
	pause   time.Duration
}

// NewRetrying wraps next.
func NewRetrying(next Completer, retries int, pause time.Duration) *Retrying {
	if retries < 0 {
		retries = 0
	}
	if pause <= 0 {
		// go-retry rejects non-positive intervals.
		pause = time.Millisecond
	}
	return &Retrying{next: next, retries: uint64(retries), pause: pause}
}

// Complete calls the wrapped completer, retrying errors IsTransient accepts.
func (r *Retrying) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	var out string
	backoff := retry.WithMaxRetries(r.retries, retry.NewConstant(r.pause))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		text, err := r.next.Complete(ctx, prompt, maxTokens)
		if err != nil {
			if IsTransient(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		out = text
		return nil
	})
	if err != nil {
		return "", err
	}
	return out, nil
}
