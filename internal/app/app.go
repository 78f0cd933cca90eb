package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/florianilch/signet/internal/auth"
	"github.com/florianilch/signet/internal/provider"
	"github.com/florianilch/signet/internal/proxy"
)

// App orchestrates the lifecycle of the authenticating proxy and its provider.
type App struct {
	cfg     *Config
	manager *provider.Manager
	proxy   *proxy.Proxy
}

// New creates a new App instance. The provider is installed in a fresh
// Manager; no I/O happens before Start.
func New(cfg *Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	p, err := NewProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}

	manager := provider.NewManager()
	manager.SetProvider(p)

	proxyServer, err := proxy.New(manager,
		proxy.WithBaseURL(cfg.Upstream.BaseURL),
		proxy.WithClientInfo(cfg.Upstream.ClientInfo),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create proxy: %w", err)
	}

	return &App{
		cfg:     cfg,
		manager: manager,
		proxy:   proxyServer,
	}, nil
}

// Manager returns the manager holding the application's provider.
func (a *App) Manager() *provider.Manager {
	return a.manager
}

// Start starts all services and blocks until shutdown is triggered.
// Uses errgroup for runtime error monitoring and shutdown function collection for coordinated cleanup.
func (a *App) Start(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	address := a.cfg.Server.Host + ":" + strconv.FormatUint(uint64(a.cfg.Server.Port), 10)
	var shutdownFuncs []func(context.Context) error

	// Startup phase: Start services
	slog.InfoContext(gCtx, "starting proxy server", "address", address)
	proxyErrCh, err := a.proxy.Start(gCtx, address)
	if err != nil {
		return fmt.Errorf("proxy startup failed: %w", err)
	}
	shutdownFuncs = append(shutdownFuncs, a.proxy.Shutdown)

	// Restore the session in the background, requests arriving meanwhile join the refresh
	g.Go(func() error {
		a.restoreSession(gCtx)
		return nil
	})

	// Monitor runtime errors - errgroup cancels context on first error
	g.Go(func() error {
		select {
		case err := <-proxyErrCh:
			if err != nil {
				slog.ErrorContext(gCtx, "proxy runtime error", "error", err)
				return fmt.Errorf("proxy: %w", err)
			}
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	slog.InfoContext(gCtx, "application ready", "address", address)

	runtimeErr := g.Wait()

	slog.InfoContext(gCtx, "shutting down services")

	// Shutdown phase: Stop all services
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Shutdown.Timeout)
	defer cancel()

	var errs []error
	if runtimeErr != nil {
		errs = append(errs, fmt.Errorf("runtime: %w", runtimeErr))
	}

	for i := len(shutdownFuncs) - 1; i >= 0; i-- {
		if err := shutdownFuncs[i](shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "service shutdown failed", "error", err)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	slog.Info("application stopped")
	return nil
}

// restoreSession initializes the installed provider from the cache and
// refreshes silently when the cached access token has expired.
func (a *App) restoreSession(ctx context.Context) {
	p := a.manager.Provider()
	if p == nil {
		return
	}

	if err := p.Initialize(ctx); err != nil {
		return
	}
	if p.State() == auth.StateSignedIn {
		slog.InfoContext(ctx, "session restored", "account", p.Account())
		return
	}

	ok, err := p.TrySilentSignIn(ctx)
	switch {
	case err != nil:
		slog.DebugContext(ctx, "session restore interrupted", "error", err)
	case ok:
		slog.InfoContext(ctx, "session refreshed", "account", p.Account())
	default:
		slog.WarnContext(ctx, "not signed in, requests will be rejected until `signet login` succeeds")
	}
}
