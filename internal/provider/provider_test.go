package provider

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/florianilch/signet/internal/auth"
	"github.com/florianilch/signet/internal/tokencache"
	"github.com/florianilch/signet/internal/tokensource"
)

var testScopes = auth.ParseScopes("openid,offline_access,User.Read")

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recorder collects state changes and fails the test on undocumented edges.
type recorder struct {
	t       *testing.T
	mu      sync.Mutex
	changes []StateChange
}

func record(t *testing.T, p *Provider) *recorder {
	t.Helper()
	r := &recorder{t: t}
	t.Cleanup(p.OnStateChanged(r.observe))
	return r
}

func (r *recorder) observe(change StateChange) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !documentedEdge(change.From, change.To) {
		r.t.Errorf("undocumented transition %s → %s", change.From, change.To)
	}
	r.changes = append(r.changes, change)
}

func (r *recorder) states() []auth.State {
	r.mu.Lock()
	defer r.mu.Unlock()

	var states []auth.State
	for _, c := range r.changes {
		states = append(states, c.To)
	}
	return states
}

func documentedEdge(from, to auth.State) bool {
	switch {
	case to == auth.StateLoading:
		return from == auth.StateSignedOut || from == auth.StateSignedIn
	case from == auth.StateLoading:
		return to == auth.StateSignedIn || to == auth.StateSignedOut
	case to == auth.StateSignedOut:
		return from == auth.StateSignedIn
	}
	return false
}

type fixture struct {
	provider  *Provider
	backend   *tokensource.Mock
	cache     *tokencache.Cache
	cachePath string
	clock     *testClock
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	cachePath := filepath.Join(t.TempDir(), "cache.json")
	cache, err := tokencache.Open(tokencache.Config{Storage: tokencache.StorageTypeFile, File: cachePath})
	if err != nil {
		t.Fatalf("opening cache: %v", err)
	}

	clock := newTestClock()
	backend := tokensource.NewMock(time.Hour)
	backend.SetClock(clock.Now)

	opts = append([]Option{WithScopes(testScopes), WithClock(clock.Now)}, opts...)
	p, err := New(backend, cache, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	return &fixture{provider: p, backend: backend, cache: cache, cachePath: cachePath, clock: clock}
}

func (f *fixture) signIn(t *testing.T) {
	t.Helper()
	if err := f.provider.SignIn(context.Background()); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
}

func authenticate(p *Provider) (string, error) {
	req, _ := http.NewRequest(http.MethodGet, "https://graph.microsoft.com/v1.0/me", nil)
	err := p.AuthenticateRequest(context.Background(), req)
	return req.Header.Get("Authorization"), err
}

// waitFor polls cond until it holds or the test times out.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached")
		}
		time.Sleep(time.Millisecond)
	}
}

// waiting returns the number of callers joined to the acquisition in flight.
func waiting(p *Provider) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inflight == nil {
		return 0
	}
	return p.inflight.waiters
}

func TestNewValidation(t *testing.T) {
	if _, err := New(nil, tokencache.New()); err == nil {
		t.Error("New without backend should fail")
	}
	if _, err := New(tokensource.NewMock(0), nil); err == nil {
		t.Error("New without cache should fail")
	}
}

func TestSignInWithMock(t *testing.T) {
	f := newFixture(t)
	rec := record(t, f.provider)

	if err := f.provider.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if got := f.provider.State(); got != auth.StateSignedOut {
		t.Fatalf("State after Initialize = %s, want signed_out", got)
	}

	f.signIn(t)

	want := []auth.State{auth.StateLoading, auth.StateSignedIn}
	if got := rec.states(); !equalStates(got, want) {
		t.Errorf("transitions = %v, want %v", got, want)
	}

	header, err := authenticate(f.provider)
	if err != nil {
		t.Fatalf("AuthenticateRequest: %v", err)
	}
	if header != "Bearer "+tokensource.MockAccessToken {
		t.Errorf("Authorization = %q", header)
	}
	if f.provider.Account() != tokensource.MockAccount {
		t.Errorf("Account = %q", f.provider.Account())
	}

	cached, err := f.cache.Load(context.Background())
	if err != nil || cached == nil {
		t.Fatalf("cache after sign-in = %v, %v", cached, err)
	}
	if !cached.Scopes.Equal(testScopes) || cached.RefreshHandle == "" {
		t.Errorf("cached record = %+v", cached)
	}
}

func TestSignInFailure(t *testing.T) {
	f := newFixture(t)
	rec := record(t, f.provider)
	f.backend.FailSignIn(auth.ErrUserCancelled)

	err := f.provider.SignIn(context.Background())
	if !errors.Is(err, ErrSignInFailed) || !errors.Is(err, auth.ErrUserCancelled) {
		t.Errorf("SignIn = %v, want ErrSignInFailed wrapping ErrUserCancelled", err)
	}
	if got := f.provider.State(); got != auth.StateSignedOut {
		t.Errorf("State = %s, want signed_out", got)
	}

	want := []auth.State{auth.StateLoading, auth.StateSignedOut}
	if got := rec.states(); !equalStates(got, want) {
		t.Errorf("transitions = %v, want %v", got, want)
	}
}

func TestConcurrentRequestsShareOneRefresh(t *testing.T) {
	tests := []struct {
		name    string
		failure error
	}{
		{name: "refresh succeeds"},
		{name: "refresh fails", failure: auth.ErrNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			record(t, f.provider)
			f.signIn(t)

			f.clock.Advance(2 * time.Hour)
			gate := make(chan struct{})
			f.backend.Hold(gate)
			f.backend.FailRefresh(tt.failure)

			const callers = 20
			type result struct {
				header string
				err    error
			}
			results := make(chan result, callers)
			for range callers {
				go func() {
					header, err := authenticate(f.provider)
					results <- result{header, err}
				}()
			}

			waitFor(t, func() bool { return f.backend.Refreshes() == 1 })
			waitFor(t, func() bool { return waiting(f.provider) == callers })
			if got := f.provider.State(); got != auth.StateLoading {
				t.Errorf("State during refresh = %s, want loading", got)
			}
			close(gate)

			for range callers {
				res := <-results
				if tt.failure == nil {
					if res.err != nil || res.header != "Bearer "+tokensource.MockAccessToken {
						t.Errorf("caller got %q, %v", res.header, res.err)
					}
				} else if !errors.Is(res.err, ErrReauthenticationRequired) || res.header != "" {
					t.Errorf("caller got %q, %v, want ErrReauthenticationRequired", res.header, res.err)
				}
			}

			if got := f.backend.Refreshes(); got != 1 {
				t.Errorf("backend refreshed %d times, want 1", got)
			}
			if got := f.backend.SignIns(); got != 1 {
				t.Errorf("background requests started %d sign-ins, want only the explicit one", got)
			}
		})
	}
}

func TestRefreshWithinSkew(t *testing.T) {
	f := newFixture(t, WithRefreshSkew(5*time.Minute))
	f.signIn(t)

	// 30 seconds left, inside the 5 minute safety margin
	f.clock.Advance(time.Hour - 30*time.Second)

	header, err := authenticate(f.provider)
	if err != nil {
		t.Fatalf("AuthenticateRequest: %v", err)
	}
	if header == "" {
		t.Error("no token attached")
	}
	if got := f.backend.Refreshes(); got != 1 {
		t.Errorf("backend refreshed %d times, want 1", got)
	}

	// Refreshed credential is used from the fast path
	if _, err := authenticate(f.provider); err != nil {
		t.Fatalf("AuthenticateRequest: %v", err)
	}
	if got := f.backend.Refreshes(); got != 1 {
		t.Errorf("backend refreshed %d times, want 1", got)
	}
}

func TestExpiryAtNowIsNeverAttached(t *testing.T) {
	f := newFixture(t, WithRefreshSkew(0))
	f.backend.SetLifetime(0)
	f.signIn(t)

	header, err := authenticate(f.provider)
	if !errors.Is(err, ErrReauthenticationRequired) {
		t.Errorf("AuthenticateRequest = %v, want ErrReauthenticationRequired", err)
	}
	if header != "" {
		t.Errorf("expired token attached: %q", header)
	}
}

func TestRefreshRecoversAfterNetworkFailure(t *testing.T) {
	f := newFixture(t)
	rec := record(t, f.provider)
	f.signIn(t)
	f.clock.Advance(2 * time.Hour)

	f.backend.FailRefresh(auth.ErrNetwork)
	if _, err := authenticate(f.provider); !errors.Is(err, ErrReauthenticationRequired) || !errors.Is(err, auth.ErrNetwork) {
		t.Fatalf("AuthenticateRequest during outage = %v", err)
	}
	if got := f.provider.State(); got != auth.StateSignedOut {
		t.Errorf("State after failed refresh = %s, want signed_out", got)
	}

	f.backend.FailRefresh(nil)
	header, err := authenticate(f.provider)
	if err != nil {
		t.Fatalf("AuthenticateRequest after recovery = %v", err)
	}
	if header != "Bearer "+tokensource.MockAccessToken {
		t.Errorf("Authorization = %q", header)
	}
	if got := f.backend.Refreshes(); got != 2 {
		t.Errorf("backend refreshed %d times, want 2", got)
	}
	if got := f.backend.SignIns(); got != 1 {
		t.Errorf("backend sign-ins = %d, want only the explicit one", got)
	}

	want := []auth.State{auth.StateLoading, auth.StateSignedIn, auth.StateLoading, auth.StateSignedOut, auth.StateLoading, auth.StateSignedIn}
	if got := rec.states(); !equalStates(got, want) {
		t.Errorf("transitions = %v, want %v", got, want)
	}
}

func TestAuthenticateRequestRefreshesExpiredCache(t *testing.T) {
	f := newFixture(t)
	cred := &auth.Credential{AccessToken: "cached-access", RefreshHandle: "cached-refresh", Expiry: f.clock.Now().Add(-time.Minute)}
	if err := f.cache.Save(context.Background(), tokencache.NewRecord(cred, testScopes, f.clock.Now())); err != nil {
		t.Fatalf("seeding cache: %v", err)
	}

	if err := f.provider.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if got := f.provider.State(); got != auth.StateSignedOut {
		t.Fatalf("State after Initialize = %s, want signed_out", got)
	}

	header, err := authenticate(f.provider)
	if err != nil {
		t.Fatalf("AuthenticateRequest = %v", err)
	}
	if header != "Bearer "+tokensource.MockAccessToken {
		t.Errorf("Authorization = %q", header)
	}
	if f.backend.Refreshes() != 1 || f.backend.SignIns() != 0 {
		t.Errorf("backend contacted: %d refreshes, %d sign-ins", f.backend.Refreshes(), f.backend.SignIns())
	}
	if got := f.provider.State(); got != auth.StateSignedIn {
		t.Errorf("State = %s, want signed_in", got)
	}
}

func TestAuthenticateRequestNeverSignsIn(t *testing.T) {
	f := newFixture(t)

	if _, err := authenticate(f.provider); !errors.Is(err, ErrReauthenticationRequired) {
		t.Errorf("AuthenticateRequest = %v, want ErrReauthenticationRequired", err)
	}
	if f.backend.SignIns() != 0 || f.backend.Refreshes() != 0 {
		t.Errorf("backend contacted: %d sign-ins, %d refreshes", f.backend.SignIns(), f.backend.Refreshes())
	}
}

func TestSignOut(t *testing.T) {
	f := newFixture(t)
	rec := record(t, f.provider)
	f.signIn(t)

	if err := f.provider.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut: %v", err)
	}

	cached, err := f.cache.Load(context.Background())
	if err != nil || cached != nil {
		t.Errorf("Load after SignOut = %v, %v, want nil, nil", cached, err)
	}
	if got := f.provider.State(); got != auth.StateSignedOut {
		t.Errorf("State = %s, want signed_out", got)
	}
	if f.provider.Account() != "" {
		t.Errorf("Account = %q after SignOut", f.provider.Account())
	}
	if _, err := authenticate(f.provider); !errors.Is(err, ErrReauthenticationRequired) {
		t.Errorf("AuthenticateRequest after SignOut = %v", err)
	}

	if err := f.provider.SignOut(context.Background()); !errors.Is(err, ErrAlreadySignedOut) {
		t.Errorf("second SignOut = %v, want ErrAlreadySignedOut", err)
	}
	if got := f.provider.State(); got != auth.StateSignedOut {
		t.Errorf("State = %s, want signed_out", got)
	}

	want := []auth.State{auth.StateLoading, auth.StateSignedIn, auth.StateSignedOut}
	if got := rec.states(); !equalStates(got, want) {
		t.Errorf("transitions = %v, want %v", got, want)
	}
}

func TestSignOutDuringSignIn(t *testing.T) {
	f := newFixture(t)
	gate := make(chan struct{})
	f.backend.Hold(gate)

	done := make(chan error, 1)
	go func() { done <- f.provider.SignIn(context.Background()) }()
	waitFor(t, func() bool { return f.backend.SignIns() == 1 })

	if err := f.provider.SignOut(context.Background()); err != nil {
		t.Errorf("SignOut during sign-in = %v", err)
	}
	close(gate)

	if err := <-done; !errors.Is(err, ErrSignInFailed) {
		t.Errorf("overtaken SignIn = %v, want ErrSignInFailed", err)
	}
	if got := f.provider.State(); got != auth.StateSignedOut {
		t.Errorf("State = %s, want signed_out", got)
	}
	if cached, _ := f.cache.Load(context.Background()); cached != nil {
		t.Error("overtaken sign-in persisted a credential")
	}
}

func TestSignInCancelledByCaller(t *testing.T) {
	f := newFixture(t)
	rec := record(t, f.provider)
	gate := make(chan struct{})
	defer close(gate)
	f.backend.Hold(gate)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := f.provider.SignIn(ctx)
	if !errors.Is(err, ErrSignInFailed) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("SignIn = %v, want ErrSignInFailed wrapping deadline exceeded", err)
	}

	// Nobody waits for the interactive sign-in anymore, so it is abandoned
	waitFor(t, func() bool { return f.provider.State() == auth.StateSignedOut })
	waitFor(t, func() bool { return waiting(f.provider) == 0 })

	want := []auth.State{auth.StateLoading, auth.StateSignedOut}
	if got := rec.states(); !equalStates(got, want) {
		t.Errorf("transitions = %v, want %v", got, want)
	}

	// A later sign-in starts afresh
	f.backend.Hold(nil)
	f.signIn(t)
	if got := f.backend.SignIns(); got != 2 {
		t.Errorf("backend sign-ins = %d, want 2", got)
	}
}

func TestSignInOutlivesOneOfTwoCallers(t *testing.T) {
	f := newFixture(t)
	gate := make(chan struct{})
	f.backend.Hold(gate)

	done := make(chan error, 1)
	go func() { done <- f.provider.SignIn(context.Background()) }()
	waitFor(t, func() bool { return waiting(f.provider) == 1 })

	ctx, cancel := context.WithCancel(context.Background())
	cancelled := make(chan error, 1)
	go func() { cancelled <- f.provider.SignIn(ctx) }()
	waitFor(t, func() bool { return waiting(f.provider) == 2 })
	cancel()

	if err := <-cancelled; !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled SignIn = %v", err)
	}
	close(gate)

	if err := <-done; err != nil {
		t.Fatalf("remaining SignIn = %v", err)
	}
	if got := f.provider.State(); got != auth.StateSignedIn {
		t.Errorf("State = %s, want signed_in", got)
	}
	if got := f.backend.SignIns(); got != 1 {
		t.Errorf("backend sign-ins = %d, want 1", got)
	}
}

func TestSignOutCancelsSignIn(t *testing.T) {
	f := newFixture(t)
	gate := make(chan struct{})
	defer close(gate)
	f.backend.Hold(gate)

	done := make(chan error, 1)
	go func() { done <- f.provider.SignIn(context.Background()) }()
	waitFor(t, func() bool { return f.backend.SignIns() == 1 })

	if err := f.provider.SignOut(context.Background()); err != nil {
		t.Errorf("SignOut during sign-in = %v", err)
	}

	// Returns without the gate ever opening
	select {
	case err := <-done:
		if !errors.Is(err, ErrSignInFailed) {
			t.Errorf("overtaken SignIn = %v, want ErrSignInFailed", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("SignIn still blocked after SignOut")
	}
	if got := f.provider.State(); got != auth.StateSignedOut {
		t.Errorf("State = %s, want signed_out", got)
	}
}

func TestSignInJoinsFailedSilentRefresh(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)
	f.clock.Advance(2 * time.Hour)

	gate := make(chan struct{})
	f.backend.Hold(gate)
	f.backend.FailRefresh(auth.ErrNetwork)

	go func() { _, _ = authenticate(f.provider) }()
	waitFor(t, func() bool { return f.backend.Refreshes() == 1 })

	done := make(chan error, 1)
	go func() { done <- f.provider.SignIn(context.Background()) }()

	f.backend.Hold(nil)
	close(gate)

	if err := <-done; err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if got := f.provider.State(); got != auth.StateSignedIn {
		t.Errorf("State = %s, want signed_in", got)
	}
	if got := f.backend.SignIns(); got != 2 {
		t.Errorf("backend sign-ins = %d, want 2", got)
	}
}

func TestInitializeRestoresCache(t *testing.T) {
	clock := newTestClock()

	tests := []struct {
		name      string
		expiry    time.Time
		scopes    auth.ScopeSet
		wantState auth.State
		wantTry   bool
	}{
		{name: "valid token", expiry: clock.Now().Add(time.Hour), scopes: testScopes, wantState: auth.StateSignedIn, wantTry: true},
		{name: "expired token keeps refresh handle", expiry: clock.Now().Add(-time.Hour), scopes: testScopes, wantState: auth.StateSignedOut, wantTry: true},
		{name: "expiry at now", expiry: clock.Now(), scopes: testScopes, wantState: auth.StateSignedOut, wantTry: true},
		{name: "different scopes", expiry: clock.Now().Add(time.Hour), scopes: auth.NewScopeSet("Mail.Read"), wantState: auth.StateSignedOut, wantTry: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			cred := &auth.Credential{AccessToken: "cached-access", RefreshHandle: "cached-refresh", Account: "alice@example.com", Expiry: tt.expiry}
			if err := f.cache.Save(context.Background(), tokencache.NewRecord(cred, tt.scopes, f.clock.Now())); err != nil {
				t.Fatalf("seeding cache: %v", err)
			}

			if err := f.provider.Initialize(context.Background()); err != nil {
				t.Fatalf("Initialize: %v", err)
			}
			if got := f.provider.State(); got != tt.wantState {
				t.Errorf("State = %s, want %s", got, tt.wantState)
			}
			if f.backend.Refreshes() != 0 || f.backend.SignIns() != 0 {
				t.Error("Initialize contacted the backend")
			}

			if tt.wantState == auth.StateSignedIn {
				header, err := authenticate(f.provider)
				if err != nil || header != "Bearer cached-access" {
					t.Errorf("AuthenticateRequest = %q, %v", header, err)
				}
			}

			ok, err := f.provider.TrySilentSignIn(context.Background())
			if err != nil {
				t.Fatalf("TrySilentSignIn: %v", err)
			}
			if ok != tt.wantTry {
				t.Errorf("TrySilentSignIn = %v, want %v", ok, tt.wantTry)
			}
		})
	}
}

func TestTrySilentSignInCorruptCache(t *testing.T) {
	f := newFixture(t)
	if err := os.WriteFile(f.cachePath, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	ok, err := f.provider.TrySilentSignIn(context.Background())
	if err != nil {
		t.Fatalf("TrySilentSignIn = %v, want no error", err)
	}
	if ok {
		t.Error("TrySilentSignIn succeeded with a corrupt cache")
	}
	if got := f.provider.State(); got != auth.StateSignedOut {
		t.Errorf("State = %s, want signed_out", got)
	}
	if f.backend.Refreshes() != 0 {
		t.Error("backend contacted without a refresh handle")
	}
}

func TestTrySilentSignInFailure(t *testing.T) {
	tests := []struct {
		name        string
		failure     error
		wantCleared bool
	}{
		{name: "revoked refresh handle", failure: auth.ErrInvalidGrant, wantCleared: true},
		{name: "network failure", failure: auth.ErrNetwork, wantCleared: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			rec := record(t, f.provider)
			f.signIn(t)
			f.backend.FailRefresh(tt.failure)

			ok, err := f.provider.TrySilentSignIn(context.Background())
			if err != nil || ok {
				t.Fatalf("TrySilentSignIn = %v, %v, want false, nil", ok, err)
			}
			if got := f.provider.State(); got != auth.StateSignedOut {
				t.Errorf("State = %s, want signed_out", got)
			}

			cached, _ := f.cache.Load(context.Background())
			if cleared := cached == nil; cleared != tt.wantCleared {
				t.Errorf("cache cleared = %v, want %v", cleared, tt.wantCleared)
			}

			// A kept refresh handle allows a later silent sign-in
			f.backend.FailRefresh(nil)
			ok, _ = f.provider.TrySilentSignIn(context.Background())
			if ok == tt.wantCleared {
				t.Errorf("retry TrySilentSignIn = %v", ok)
			}

			if len(rec.states()) < 4 {
				t.Errorf("transitions = %v", rec.states())
			}
		})
	}
}

func TestTrySilentSignInHonorsContext(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)

	gate := make(chan struct{})
	f.backend.Hold(gate)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := f.provider.TrySilentSignIn(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("TrySilentSignIn = %v, want deadline exceeded", err)
	}

	// The refresh outlives the waiter and completes for everyone else
	close(gate)
	waitFor(t, func() bool { return f.provider.State() == auth.StateSignedIn })
}

func TestInvalidate(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)

	f.provider.Invalidate("some-other-token")
	if _, err := authenticate(f.provider); err != nil {
		t.Fatal(err)
	}
	if f.backend.Refreshes() != 0 {
		t.Fatal("unrelated token invalidated the credential")
	}

	f.provider.Invalidate(tokensource.MockAccessToken)
	if _, err := authenticate(f.provider); err != nil {
		t.Fatal(err)
	}
	if f.backend.Refreshes() != 1 {
		t.Errorf("backend refreshed %d times after Invalidate, want 1", f.backend.Refreshes())
	}
}

func TestStateVisibleToListeners(t *testing.T) {
	f := newFixture(t)

	var mismatches int
	f.provider.OnStateChanged(func(change StateChange) {
		if change.Provider.State() != change.To {
			mismatches++
		}
	})

	f.signIn(t)
	_ = f.provider.SignOut(context.Background())

	if mismatches != 0 {
		t.Errorf("%d listeners observed a stale state", mismatches)
	}
}

func equalStates(a, b []auth.State) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
