package provider

import (
	"sync"

	"github.com/google/uuid"

	"github.com/florianilch/signet/internal/auth"
)

// StateChange describes a state transition of a Provider.
type StateChange struct {
	Provider *Provider
	From     auth.State
	To       auth.State
}

// ProviderUpdated is emitted by a Manager when its provider is replaced.
// State is the new provider's state at the time of the swap.
type ProviderUpdated struct {
	Provider *Provider
	State    auth.State
}

// listeners is a subscriber registry keyed by subscription ID.
type listeners[T any] struct {
	mu    sync.RWMutex
	funcs map[uuid.UUID]func(T)
}

// add registers fn and returns a function removing it again.
// The returned function is safe to call more than once.
func (l *listeners[T]) add(fn func(T)) func() {
	id := uuid.New()

	l.mu.Lock()
	if l.funcs == nil {
		l.funcs = make(map[uuid.UUID]func(T))
	}
	l.funcs[id] = fn
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		delete(l.funcs, id)
		l.mu.Unlock()
	}
}

// emit calls every listener registered at the time of the call. Listeners
// run outside the registry lock and may unsubscribe themselves.
func (l *listeners[T]) emit(event T) {
	l.mu.RLock()
	funcs := make([]func(T), 0, len(l.funcs))
	for _, fn := range l.funcs {
		funcs = append(funcs, fn)
	}
	l.mu.RUnlock()

	for _, fn := range funcs {
		fn(event)
	}
}

func (l *listeners[T]) len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.funcs)
}
