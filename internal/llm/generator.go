package llm

import (
	"context"
	"errors"
)

// ErrBackend wraps every failure of the text-generation backend: transport
// errors, non-2xx responses and undecodable bodies.
var ErrBackend = errors.New("llm backend error")

type Request struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float64
}

// Generator produces one completion for a system prompt and a user message.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}
