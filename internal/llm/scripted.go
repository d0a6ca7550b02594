package llm

import (
	"context"
	"sync"
)

// ScriptedProvider replays fixed chunks. Test double.
type ScriptedProvider struct {
	mu sync.Mutex

	Chunks []string
	Err    error
	// ErrAfter emits this many chunks before failing with Err. Zero fails
	// immediately when Err is set.
	ErrAfter int

	Calls []StreamRequest
}

func (p *ScriptedProvider) Stream(ctx context.Context, req StreamRequest, emit Emit) error {
	p.mu.Lock()
	p.Calls = append(p.Calls, req)
	chunks := p.Chunks
	scriptErr := p.Err
	errAfter := p.ErrAfter
	p.mu.Unlock()

	if scriptErr != nil && errAfter == 0 {
		return scriptErr
	}

	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := emit(chunk); err != nil {
			return err
		}
		if scriptErr != nil && i+1 >= errAfter {
			return scriptErr
		}
	}
	return nil
}
