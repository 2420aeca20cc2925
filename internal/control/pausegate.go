package control

import (
	"context"
	"sync"
)

// PauseGate lets one goroutine signal pause/resume while another blocks
// on Wait until resumed (or its context is cancelled). Implements the
// emission-loop side of the "never two concurrent receives" invariant: the
// emitter blocks here instead of polling, and the command loop is the only
// place Pause/Resume are called.
type PauseGate struct {
	mu       sync.Mutex
	paused   bool
	unpaused chan struct{}
}

// NewPauseGate returns a gate that starts unpaused.
func NewPauseGate() *PauseGate {
	ch := make(chan struct{})
	close(ch)
	return &PauseGate{unpaused: ch}
}

// Pause blocks future Wait calls until Resume is called.
func (g *PauseGate) Pause() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.paused {
		return
	}
	g.paused = true
	g.unpaused = make(chan struct{})
}

// Resume releases any goroutine blocked in Wait.
func (g *PauseGate) Resume() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.paused {
		return
	}
	g.paused = false
	close(g.unpaused)
}

// Paused reports the current pause state.
func (g *PauseGate) Paused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused
}

// Wait blocks while paused, returning nil once resumed or ctx.Err() if ctx
// is done first.
func (g *PauseGate) Wait(ctx context.Context) error {
	g.mu.Lock()
	ch := g.unpaused
	g.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
