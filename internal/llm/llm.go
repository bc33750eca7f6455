// Package llm defines the text generation contract shared by the Ollama and
// OpenAI adapters.
package llm

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned when a provider has no credentials or model.
var ErrNotConfigured = errors.New("generation provider not configured")

// Image is an inline image attached to a multimodal request.
type Image struct {
	Data     []byte
	MIMEType string
}

// Request is a single-turn generation request.
type Request struct {
	Prompt string
	Images []Image
}

// Generator produces a completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req Request) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
