// Package llm provides text completion against a hosted language model.
package llm

import (
	"context"
	"errors"
	"net"

	"github.com/openai/openai-go"
)

// ErrEmptyCompletion is returned when the model answers without any text.
var ErrEmptyCompletion = errors.New("completion returned no content")

// Completer produces a completion for a prompt, bounded to maxTokens.
type Completer interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// IsTransient reports whether err is worth a retry: network failures,
// rate limiting and server errors. Context cancellation and other client
// errors are not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
