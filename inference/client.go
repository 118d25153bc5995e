// Package inference wraps the external natural-language collaborator.
// The engine treats it as opaque: any error or malformed response is
// "no extraction" / "no answer" and the conversation continues.
package inference

import (
	"context"
	"errors"
)

// ErrDisabled is returned by the no-op client so callers fall back to
// local parsing and canned replies.
var ErrDisabled = errors.New("inference: disabled")

// Client is the entity-extraction and free-form-answer collaborator.
type Client interface {
	// ExtractSlots returns candidate slot values found in text.
	ExtractSlots(ctx context.Context, text string) (map[string]string, error)

	// Answer produces a short free-form answer in the given language.
	Answer(ctx context.Context, question, language string) (string, error)
}

// Disabled is used when no inference backend is configured and in tests.
type Disabled struct{}

func (Disabled) ExtractSlots(ctx context.Context, text string) (map[string]string, error) {
	return nil, ErrDisabled
}

func (Disabled) Answer(ctx context.Context, question, language string) (string, error) {
	return "", ErrDisabled
}
