package common

import (
	"errors"
	"sync"
)

var (
	ErrModulePaused = errors.New("module paused")
	// ErrReentrant marks a call that tried to enter an operation which is
	// already in progress further up the call stack.
	ErrReentrant = errors.New("reentrant call")
)

type PauseView interface {
	IsPaused(module string) bool
}

func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// ReentrancyGuard tracks which operations are currently executing. Enter
// fails with ErrReentrant while the same operation is still in progress;
// the returned release function must be deferred by the caller.
type ReentrancyGuard struct {
	mu      sync.Mutex
	entered map[string]struct{}
}

// Enter marks op as in progress.
func (g *ReentrancyGuard) Enter(op string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.entered == nil {
		g.entered = make(map[string]struct{})
	}
	if _, busy := g.entered[op]; busy {
		return func() {}, ErrReentrant
	}
	g.entered[op] = struct{}{}
	return func() {
		g.mu.Lock()
		delete(g.entered, op)
		g.mu.Unlock()
	}, nil
}

// Active reports whether op is in progress.
func (g *ReentrancyGuard) Active(op string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, busy := g.entered[op]
	return busy
}
