package llm

import (
	"context"
	"errors"
)

// Role of a prompt message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Message is one entry of the assembled prompt history.
type Message struct {
	Role    Role
	Content string
}

// StreamRequest is a single generation call.
type StreamRequest struct {
	Model       string
	System      string
	History     []Message
	Temperature float32
	MaxTokens   int32
}

// Emit receives one streamed text chunk. Returning an error aborts the
// stream.
type Emit func(chunk string) error

// Provider streams generated text. Implementations must honor context
// cancellation between chunks.
type Provider interface {
	Stream(ctx context.Context, req StreamRequest, emit Emit) error
}

var (
	ErrRateLimited   = errors.New("model_rate_limited")
	ErrContextLength = errors.New("model_context_length")
	ErrUpstream      = errors.New("model_unavailable")
)
