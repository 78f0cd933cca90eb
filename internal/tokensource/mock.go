package tokensource

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/florianilch/signet/internal/auth"
)

const (
	// MockAccessToken is the well-known access token issued by Mock.
	MockAccessToken = "{token:https://graph.microsoft.com/}"
	// MockAccount is the account identifier issued by Mock.
	MockAccount = "mock-user@example.com"
)

// Mock is a Backend that issues MockAccessToken without network access or
// user interaction. Safe for concurrent use.
type Mock struct {
	lifetime time.Duration
	now      func() time.Time

	mu         sync.Mutex
	signInErr  error
	refreshErr error
	gate       <-chan struct{}

	signIns   atomic.Int64
	refreshes atomic.Int64
	handles   atomic.Int64
}

// Compile-time check to ensure Mock implements auth.Backend
var _ auth.Backend = (*Mock)(nil)

// NewMock creates a Mock issuing credentials valid for lifetime.
// A zero lifetime defaults to one hour.
func NewMock(lifetime time.Duration) *Mock {
	if lifetime <= 0 {
		lifetime = time.Hour
	}
	return &Mock{lifetime: lifetime, now: time.Now}
}

// SetClock sets the time source used for expiry.
func (m *Mock) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// SetLifetime changes the lifetime of credentials issued from now on.
func (m *Mock) SetLifetime(lifetime time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lifetime = lifetime
}

// FailSignIn makes subsequent interactive sign-ins fail with err. Nil restores success.
func (m *Mock) FailSignIn(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signInErr = err
}

// FailRefresh makes subsequent silent refreshes fail with err. Nil restores success.
func (m *Mock) FailRefresh(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshErr = err
}

// Hold blocks subsequent acquisitions until gate is closed or their context ends.
// Nil releases the hold for acquisitions started afterwards.
func (m *Mock) Hold(gate <-chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gate = gate
}

// SignIns returns the number of interactive sign-ins started.
func (m *Mock) SignIns() int {
	return int(m.signIns.Load())
}

// Refreshes returns the number of silent refreshes started.
func (m *Mock) Refreshes() int {
	return int(m.refreshes.Load())
}

// SignInInteractive issues a credential immediately unless configured to fail.
func (m *Mock) SignInInteractive(ctx context.Context, scopes auth.ScopeSet) (*auth.Credential, error) {
	m.signIns.Add(1)
	return m.issue(ctx, scopes, func() error { return m.signInErr })
}

// RefreshSilent issues a credential for any non-empty refresh handle unless configured to fail.
func (m *Mock) RefreshSilent(ctx context.Context, refreshHandle string, scopes auth.ScopeSet) (*auth.Credential, error) {
	m.refreshes.Add(1)
	if refreshHandle == "" {
		return nil, fmt.Errorf("%w: no refresh handle", auth.ErrInvalidGrant)
	}
	return m.issue(ctx, scopes, func() error { return m.refreshErr })
}

func (m *Mock) issue(ctx context.Context, scopes auth.ScopeSet, failure func() error) (*auth.Credential, error) {
	m.mu.Lock()
	gate := m.gate
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", auth.ErrUserCancelled, ctx.Err())
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := failure(); err != nil {
		return nil, err
	}

	return &auth.Credential{
		AccessToken:   MockAccessToken,
		Expiry:        m.now().Add(m.lifetime).UTC(),
		RefreshHandle: fmt.Sprintf("mock-refresh-%d", m.handles.Add(1)),
		Account:       MockAccount,
		Scopes:        scopes,
	}, nil
}
