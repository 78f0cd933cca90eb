package proxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/go-chi/httplog/v3"

	"github.com/florianilch/signet/internal/provider"
)

// DefaultBaseURL is the remote API requests are forwarded to.
const DefaultBaseURL = "https://graph.microsoft.com/v1.0"

// controlPrefix is reserved for the local control endpoints.
const controlPrefix = "/_signet/"

// Option configures the proxy.
type Option func(*config)

// config holds configuration for the proxy.
type config struct {
	baseURL       string
	baseTransport http.RoundTripper
	clientInfo    string
	heartbeat     time.Duration
}

// WithBaseURL sets the upstream API base URL.
// If not provided, DefaultBaseURL is used.
func WithBaseURL(baseURL string) Option {
	return func(c *config) {
		c.baseURL = baseURL
	}
}

// WithTransport sets the transport used for upstream requests.
// If not provided, http.DefaultTransport is used.
func WithTransport(transport http.RoundTripper) Option {
	return func(c *config) {
		c.baseTransport = transport
	}
}

// WithClientInfo sets the SDK identification sent upstream.
func WithClientInfo(clientInfo string) Option {
	return func(c *config) {
		c.clientInfo = clientInfo
	}
}

// WithHeartbeat sets the interval of keep-alive comments on event streams.
func WithHeartbeat(d time.Duration) Option {
	return func(c *config) {
		c.heartbeat = d
	}
}

// Proxy is a local reverse proxy that authenticates requests with the
// provider installed in a Manager.
type Proxy struct {
	handler http.Handler
	server  *http.Server
}

// Compile-time check that Proxy implements http.Handler
var _ http.Handler = (*Proxy)(nil)

// New creates a proxy forwarding to the configured upstream.
func New(manager *provider.Manager, opts ...Option) (*Proxy, error) {
	if manager == nil {
		return nil, fmt.Errorf("missing provider manager")
	}

	cfg := &config{
		baseURL:       DefaultBaseURL,
		baseTransport: http.DefaultTransport,
		heartbeat:     30 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	upstream, err := url.Parse(cfg.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream URL: %w", err)
	}
	if upstream.Scheme == "" || upstream.Host == "" {
		return nil, fmt.Errorf("invalid upstream URL: %q is not absolute", cfg.baseURL)
	}

	transport := &provider.Transport{
		Authenticator: provider.Authenticator{Manager: manager, ClientInfo: cfg.clientInfo},
		Base:          cfg.baseTransport,
	}

	reverseProxyHandler := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(upstream)
		},
		// FlushInterval: -1 disables automatic periodic flushing, flushing only when the backend flushes.
		// Streaming responses reach clients as soon as the upstream API sends them.
		FlushInterval: -1,
		Transport:     transport,
		ErrorHandler:  upstreamErrorHandler,
	}

	logger := slog.Default()

	mux := http.NewServeMux()
	mux.Handle("GET "+controlPrefix+"state", &stateHandler{manager: manager})
	mux.Handle("GET "+controlPrefix+"events", &eventsHandler{manager: manager, heartbeat: cfg.heartbeat})
	mux.Handle("POST "+controlPrefix+"signout", &signOutHandler{manager: manager})
	mux.Handle(controlPrefix, http.NotFoundHandler())
	mux.Handle("/", StripClientCredentials(reverseProxyHandler))

	return &Proxy{handler: applyMiddlewares(mux, Logging(logger), Recovery, NoStore)}, nil
}

// ServeHTTP implements http.Handler interface
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.handler.ServeHTTP(w, r)
}

// Start starts the HTTP server in the background and returns immediately.
// Returns a channel for runtime errors and a startup error if any.
//
// Startup errors (port in use, permission denied) are returned immediately.
// Runtime errors (network failures during operation) are sent to the error channel.
//
// The caller is responsible for calling Shutdown() to stop the server.
func (p *Proxy) Start(ctx context.Context, address string) (<-chan error, error) {
	// Startup phase: Create listener synchronously to catch port-in-use errors immediately
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	p.server = &http.Server{
		Handler:      p,
		ReadTimeout:  30 * time.Second, // Inbound: Read entire client request (DoS protection against slow clients)
		WriteTimeout: 15 * time.Minute, // Inbound: Write entire response to client (bounds event streams)
		IdleTimeout:  90 * time.Second, // Inbound: Keep-alive wait for next request from client
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)

	go func() {
		err := p.server.Serve(listener)
		// Only report error if not from graceful shutdown
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	return errCh, nil
}

// Shutdown performs graceful shutdown of the HTTP server.
// Returns error if shutdown fails or times out.
func (p *Proxy) Shutdown(ctx context.Context) error {
	if p.server == nil {
		return nil
	}

	if err := p.server.Shutdown(ctx); err != nil {
		// Graceful shutdown failed - force close
		_ = p.server.Close()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	return nil
}

// upstreamErrorHandler maps authentication failures to client-facing statuses.
func upstreamErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()

	switch {
	case errors.Is(err, provider.ErrReauthenticationRequired):
		httplog.SetAttrs(ctx, slog.String("auth_error", "reauthentication_required"))
		writeJSONError(ctx, w, errorCodeUnauthenticated, "sign-in required", http.StatusUnauthorized)
	case errors.Is(err, provider.ErrNoProvider):
		httplog.SetAttrs(ctx, slog.String("auth_error", "no_provider"))
		writeJSONError(ctx, w, errorCodeUnavailable, "no authentication provider", http.StatusServiceUnavailable)
	case errors.Is(err, context.Canceled):
		// Client went away, nothing to answer
	default:
		slog.ErrorContext(ctx, "upstream request failed", "error", err)
		writeJSONError(ctx, w, errorCodeBadGateway, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
	}
}
