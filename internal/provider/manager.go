package provider

import (
	"sync"
	"sync/atomic"

	"github.com/florianilch/signet/internal/auth"
)

// Manager holds the provider requests are authenticated with. Create one per
// process at the composition root and pass it to the code that needs it.
// Safe for concurrent use.
type Manager struct {
	current atomic.Pointer[Provider]

	// swapMu serializes SetProvider
	swapMu      sync.Mutex
	unsubscribe func()

	updatedListeners listeners[ProviderUpdated]
	stateListeners   listeners[StateChange]
}

// NewManager creates a Manager without a provider.
func NewManager() *Manager {
	return &Manager{}
}

// Provider returns the installed provider, or nil.
func (m *Manager) Provider() *Provider {
	return m.current.Load()
}

// State returns the installed provider's state, or SignedOut if there is none.
func (m *Manager) State() auth.State {
	if p := m.current.Load(); p != nil {
		return p.State()
	}
	return auth.StateSignedOut
}

// SetProvider installs p, replacing the previous provider. Nil uninstalls.
// State changes of the previous provider are no longer forwarded; exactly
// one ProviderUpdated is emitted carrying p's current state, before any
// state change of p is forwarded.
func (m *Manager) SetProvider(p *Provider) {
	m.swapMu.Lock()
	defer m.swapMu.Unlock()

	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}

	m.current.Store(p)
	if p == nil {
		m.updatedListeners.emit(ProviderUpdated{State: auth.StateSignedOut})
		return
	}

	m.unsubscribe = p.subscribe(func(change StateChange) {
		// Drop late notifications from a provider being replaced
		if m.current.Load() == p {
			m.stateListeners.emit(change)
		}
	}, func(state auth.State) {
		m.updatedListeners.emit(ProviderUpdated{Provider: p, State: state})
	})
}

// OnProviderUpdated registers fn for provider replacements and returns a
// function removing it.
func (m *Manager) OnProviderUpdated(fn func(ProviderUpdated)) (unsubscribe func()) {
	return m.updatedListeners.add(fn)
}

// OnStateChanged registers fn for state changes of whichever provider is
// installed and returns a function removing it.
func (m *Manager) OnStateChanged(fn func(StateChange)) (unsubscribe func()) {
	return m.stateListeners.add(fn)
}
