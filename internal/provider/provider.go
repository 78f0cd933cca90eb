package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/florianilch/signet/internal/auth"
	"github.com/florianilch/signet/internal/tokencache"
)

// DefaultRefreshSkew is the safety margin before expiry at which a
// credential is no longer attached and a refresh is started instead.
const DefaultRefreshSkew = 5 * time.Minute

// Cache persists the latest credential record.
// *tokencache.Cache satisfies it.
type Cache interface {
	Load(ctx context.Context) (*tokencache.Record, error)
	Save(ctx context.Context, r *tokencache.Record) error
	Clear(ctx context.Context) error
}

// Option configures a Provider.
type Option func(*Provider)

// WithScopes sets the scopes credentials are requested for.
func WithScopes(scopes auth.ScopeSet) Option {
	return func(p *Provider) {
		p.scopes = scopes
	}
}

// WithRefreshSkew sets the safety margin before expiry. Negative values are treated as zero.
func WithRefreshSkew(skew time.Duration) Option {
	return func(p *Provider) {
		p.skew = max(skew, 0)
	}
}

// WithClock sets the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) {
		p.now = now
	}
}

// Provider owns the state machine of one credential. Safe for concurrent use.
type Provider struct {
	backend auth.Backend
	cache   Cache
	scopes  auth.ScopeSet
	skew    time.Duration
	now     func() time.Time

	initOnce sync.Once

	// Hot path: lock-free reads for request authentication
	active  atomic.Pointer[auth.Credential]
	state   atomic.Int32
	account atomic.Pointer[string]

	// mu guards acquisition bookkeeping, cache I/O and state transitions
	mu       sync.Mutex
	record   *tokencache.Record
	inflight *flight
	gen      uint64
	group    singleflight.Group

	stateListeners listeners[StateChange]
}

// New creates a signed-out Provider. No I/O is performed until Initialize
// or the first operation.
func New(backend auth.Backend, cache Cache, opts ...Option) (*Provider, error) {
	if backend == nil {
		return nil, fmt.Errorf("missing credential backend")
	}
	if cache == nil {
		return nil, fmt.Errorf("missing token cache")
	}

	p := &Provider{
		backend: backend,
		cache:   cache,
		skew:    DefaultRefreshSkew,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// Initialize restores the cached credential. A cached record issued for the
// configured scopes is kept for silent refresh; if its access token has not
// expired, the provider moves to SignedIn without contacting the backend.
// Cache failures are logged and treated as an empty cache.
//
// Initialize runs once. Other operations call it implicitly.
func (p *Provider) Initialize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.initOnce.Do(func() { p.restore(ctx) })
	return nil
}

func (p *Provider) restore(ctx context.Context) {
	record, err := p.cache.Load(ctx)
	if err != nil {
		slog.WarnContext(ctx, "ignoring cached credential", "error", err)
		return
	}
	if record == nil {
		slog.DebugContext(ctx, "no cached credential")
		return
	}
	if !record.Scopes.Equal(p.scopes) {
		slog.InfoContext(ctx, "ignoring cached credential issued for different scopes",
			"cached", record.Scopes.String(), "configured", p.scopes.String())
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.setRecordLocked(record)

	cred := record.Credential()
	if !cred.ValidAt(p.now(), 0) {
		slog.DebugContext(ctx, "cached access token expired, refresh handle retained", "expiry", cred.Expiry)
		return
	}

	p.active.Store(cred)
	p.transitionLocked(ctx, auth.StateSignedIn, true)
	slog.InfoContext(ctx, "restored cached credential", "account", cred.Account, "expiry", cred.Expiry)
}

// State returns the current state.
func (p *Provider) State() auth.State {
	return auth.State(p.state.Load())
}

// Account returns the identifier of the signed-in account, if known.
func (p *Provider) Account() string {
	if account := p.account.Load(); account != nil {
		return *account
	}
	return ""
}

// Scopes returns the scopes credentials are requested for.
func (p *Provider) Scopes() auth.ScopeSet {
	return p.scopes
}

// OnStateChanged registers fn for state transitions and returns a function
// removing it. fn runs on the goroutine performing the transition after the
// new state is visible through State.
func (p *Provider) OnStateChanged(fn func(StateChange)) (unsubscribe func()) {
	return p.stateListeners.add(fn)
}

// subscribe registers fn like OnStateChanged and calls installed with the
// state at registration time. Both happen under the transition lock, so fn
// receives exactly the transitions following that state, and none of them
// before installed has returned.
func (p *Provider) subscribe(fn func(StateChange), installed func(auth.State)) (unsubscribe func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	unsubscribe = p.stateListeners.add(fn)
	installed(p.State())
	return unsubscribe
}

// TrySilentSignIn refreshes the cached credential without user interaction.
// It reports false, leaving the provider SignedOut, when no cached record
// exists or the refresh fails. Only cancellation of ctx is returned as error.
func (p *Provider) TrySilentSignIn(ctx context.Context) (bool, error) {
	if err := p.Initialize(ctx); err != nil {
		return false, err
	}

	p.mu.Lock()
	f := p.inflight
	if f == nil {
		if p.refreshHandleLocked() == "" {
			p.transitionLocked(ctx, auth.StateSignedOut, false)
			p.mu.Unlock()
			return false, nil
		}
		f = p.startLocked(ctx, flightSilent)
	}
	ch := p.joinLocked(f)
	p.mu.Unlock()

	if _, err := p.await(ctx, f, ch); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		slog.InfoContext(ctx, "silent sign-in failed", "error", err)
		return false, nil
	}
	return true, nil
}

// SignIn acquires a credential interactively. An acquisition already in
// flight is joined; if that was a silent refresh and it failed, an
// interactive one is started afterwards.
func (p *Provider) SignIn(ctx context.Context) error {
	if err := p.Initialize(ctx); err != nil {
		return err
	}

	for attempt := 0; ; attempt++ {
		p.mu.Lock()
		f := p.inflight
		if f == nil {
			f = p.startLocked(ctx, flightInteractive)
		}
		ch := p.joinLocked(f)
		p.mu.Unlock()

		_, err := p.await(ctx, f, ch)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %w", ErrSignInFailed, ctx.Err())
		}
		if f.kind == flightSilent && attempt == 0 {
			continue
		}
		return fmt.Errorf("%w: %w", ErrSignInFailed, err)
	}
}

// SignOut discards the credential, clears the cache and moves to SignedOut.
// An acquisition in flight is cancelled and its result discarded. The
// refresh handle is revoked if the backend supports it. SignOut returns
// ErrAlreadySignedOut when there was nothing to sign out of.
func (p *Provider) SignOut(ctx context.Context) error {
	if err := p.Initialize(ctx); err != nil {
		return err
	}

	p.mu.Lock()
	signedIn := p.record != nil || p.active.Load() != nil || p.inflight != nil
	handle := p.refreshHandleLocked()

	p.gen++
	if p.inflight != nil {
		p.inflight.cancel()
		p.inflight = nil
	}
	p.group.Forget(flightKey)
	p.active.Store(nil)
	p.setRecordLocked(nil)
	if err := p.cache.Clear(ctx); err != nil {
		slog.WarnContext(ctx, "failed to clear cached credential", "error", err)
	}
	p.transitionLocked(ctx, auth.StateSignedOut, false)
	p.mu.Unlock()

	if revoker, ok := p.backend.(auth.Revoker); ok && handle != "" {
		if err := revoker.Revoke(ctx, handle); err != nil {
			slog.WarnContext(ctx, "failed to revoke refresh handle", "error", err)
		}
	}

	if !signedIn {
		return ErrAlreadySignedOut
	}
	slog.InfoContext(ctx, "signed out")
	return nil
}

// Token returns a credential valid for at least the refresh skew, refreshing
// silently when needed. Any retained refresh handle is tried, also after an
// earlier refresh failed. It never starts an interactive sign-in: without a
// refresh handle it fails immediately with ErrReauthenticationRequired.
func (p *Provider) Token(ctx context.Context) (*auth.Credential, error) {
	if err := p.Initialize(ctx); err != nil {
		return nil, err
	}

	// Hot path: atomic load, no locking
	if cred := p.active.Load(); cred.ValidAt(p.now(), p.skew) {
		return cred, nil
	}

	p.mu.Lock()
	f := p.inflight
	if f == nil {
		if p.refreshHandleLocked() == "" {
			p.mu.Unlock()
			return nil, fmt.Errorf("%w: not signed in", ErrReauthenticationRequired)
		}
		f = p.startLocked(ctx, flightSilent)
	}
	ch := p.joinLocked(f)
	p.mu.Unlock()

	cred, err := p.await(ctx, f, ch)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", ErrReauthenticationRequired, err)
	}
	if !cred.ValidAt(p.now(), 0) {
		return nil, fmt.Errorf("%w: acquired credential already expired", ErrReauthenticationRequired)
	}
	return cred, nil
}

// AuthenticateRequest attaches a bearer token to req. See Token.
func (p *Provider) AuthenticateRequest(ctx context.Context, req *http.Request) error {
	cred, err := p.Token(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	return nil
}

// Invalidate marks the active credential stale if it still carries
// accessToken, typically after the remote API answered 401. The next
// request takes the refresh path.
func (p *Provider) Invalidate(accessToken string) {
	for {
		cur := p.active.Load()
		if cur == nil || cur.AccessToken != accessToken {
			return
		}
		stale := *cur
		stale.Expiry = time.Time{}
		if p.active.CompareAndSwap(cur, &stale) {
			slog.Debug("invalidated access token", "token", auth.MaskToken(accessToken))
			return
		}
	}
}

// startLocked moves to Loading and registers a new acquisition; the first
// joinLocked starts it. The acquisition is detached from ctx so joined
// waiters are not affected by the starter leaving. Requires p.mu.
func (p *Provider) startLocked(ctx context.Context, kind flightKind) *flight {
	actx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	f := &flight{kind: kind, gen: p.gen, cancel: cancel}
	handle := p.refreshHandleLocked()
	f.acquire = func() (any, error) {
		defer cancel()
		return p.run(actx, f, handle)
	}

	// A finished call may still be registered until its function returns
	p.group.Forget(flightKey)
	p.inflight = f
	p.transitionLocked(ctx, auth.StateLoading, false)

	return f
}

func (p *Provider) run(ctx context.Context, f *flight, handle string) (*auth.Credential, error) {
	slog.DebugContext(ctx, "acquiring credential", "kind", f.kind.String())

	var cred *auth.Credential
	var err error
	switch f.kind {
	case flightInteractive:
		cred, err = p.backend.SignInInteractive(ctx, p.scopes)
	default:
		cred, err = p.backend.RefreshSilent(ctx, handle, p.scopes)
	}
	if err == nil && cred == nil {
		err = errors.New("backend returned no credential")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.inflight == f {
		p.inflight = nil
	}
	if f.gen != p.gen {
		slog.DebugContext(ctx, "discarding credential acquired after sign-out", "kind", f.kind.String())
		return nil, errSignedOut
	}

	if err != nil {
		p.failLocked(ctx, f.kind, err)
		return nil, err
	}

	record := tokencache.NewRecord(cred, p.scopes, p.now())
	// Persist before waiters are released
	if err := p.cache.Save(ctx, record); err != nil {
		slog.ErrorContext(ctx, "failed to persist credential", "error", err)
	}
	p.setRecordLocked(record)
	p.active.Store(cred)
	p.transitionLocked(ctx, auth.StateSignedIn, false)

	slog.InfoContext(ctx, "credential acquired",
		"kind", f.kind.String(),
		"account", cred.Account,
		"token", auth.MaskToken(cred.AccessToken),
		"expiry", cred.Expiry,
	)
	return cred, nil
}

// failLocked applies a failed acquisition. A rejected refresh handle is
// dropped together with the cached record; other failures keep it so a
// later silent sign-in can succeed. Requires p.mu.
func (p *Provider) failLocked(ctx context.Context, kind flightKind, err error) {
	slog.WarnContext(ctx, "credential acquisition failed", "kind", kind.String(), "error", err)

	if kind == flightSilent && errors.Is(err, auth.ErrInvalidGrant) {
		p.setRecordLocked(nil)
		if err := p.cache.Clear(ctx); err != nil {
			slog.WarnContext(ctx, "failed to clear cached credential", "error", err)
		}
	}

	p.active.Store(nil)
	p.transitionLocked(ctx, auth.StateSignedOut, false)
}

func (p *Provider) setRecordLocked(record *tokencache.Record) {
	p.record = record
	if record == nil {
		p.account.Store(nil)
		return
	}
	account := record.Account
	p.account.Store(&account)
}

func (p *Provider) refreshHandleLocked() string {
	if p.record == nil {
		return ""
	}
	return p.record.RefreshHandle
}

// transitionLocked stores the new state and notifies listeners. Transitions
// to the current state are silent. Requires p.mu, which keeps
// notifications in transition order.
func (p *Provider) transitionLocked(ctx context.Context, next auth.State, restoring bool) {
	from := p.State()
	if from == next {
		return
	}
	if !auth.CanTransition(from, next, restoring) {
		slog.ErrorContext(ctx, "refusing undocumented state transition", "from", from.String(), "to", next.String())
		return
	}

	p.state.Store(int32(next))
	slog.DebugContext(ctx, "state changed", "from", from.String(), "to", next.String())

	p.stateListeners.emit(StateChange{Provider: p, From: from, To: next})
}
