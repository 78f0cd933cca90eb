package proxy

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/florianilch/signet/internal/auth"
	"github.com/florianilch/signet/internal/provider"
)

// StatusResponse describes the authentication state of the installed provider.
type StatusResponse struct {
	// Event is set on event streams: "snapshot", "state_changed" or "provider_updated".
	Event   string     `json:"event,omitempty"`
	State   auth.State `json:"state"`
	Account string     `json:"account,omitempty"`
}

func statusOf(p *provider.Provider) StatusResponse {
	if p == nil {
		return StatusResponse{State: auth.StateSignedOut}
	}
	return StatusResponse{State: p.State(), Account: p.Account()}
}

// stateHandler reports the current state.
type stateHandler struct {
	manager *provider.Manager
}

func (h *stateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, statusOf(h.manager.Provider()), http.StatusOK)
}

// signOutHandler signs the installed provider out.
type signOutHandler struct {
	manager *provider.Manager
}

func (h *signOutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	p := h.manager.Provider()
	if p == nil {
		writeJSONError(ctx, w, errorCodeUnavailable, "no authentication provider", http.StatusServiceUnavailable)
		return
	}

	if err := p.SignOut(ctx); err != nil && !errors.Is(err, provider.ErrAlreadySignedOut) {
		slog.ErrorContext(ctx, "sign-out failed", "error", err)
		writeJSONError(ctx, w, errorCodeInternal, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(ctx, w, statusOf(p), http.StatusOK)
}

// eventsHandler streams state changes and provider replacements as
// Server-Sent Events, starting with a snapshot of the current state.
type eventsHandler struct {
	manager   *provider.Manager
	heartbeat time.Duration
}

// eventBuffer bounds undelivered events per stream. Listeners never block
// the provider; a stream that falls behind loses events.
const eventBuffer = 16

// eventReconnectDelay is advertised to EventSource clients.
const eventReconnectDelay = 3 * time.Second

func (h *eventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sse, err := NewSSEWriter(w)
	if err != nil {
		slog.ErrorContext(ctx, "SSE not supported", "error", err)
		writeJSONError(ctx, w, errorCodeInternal, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	events := make(chan StatusResponse, eventBuffer)
	publish := func(event StatusResponse) {
		select {
		case events <- event:
		default:
			slog.WarnContext(ctx, "dropping auth event for slow client", "event", event.Event)
		}
	}

	unsubscribeState := h.manager.OnStateChanged(func(change provider.StateChange) {
		publish(StatusResponse{Event: "state_changed", State: change.To, Account: change.Provider.Account()})
	})
	defer unsubscribeState()

	unsubscribeUpdated := h.manager.OnProviderUpdated(func(update provider.ProviderUpdated) {
		event := statusOf(update.Provider)
		event.Event = "provider_updated"
		event.State = update.State
		publish(event)
	})
	defer unsubscribeUpdated()

	if err := sse.WriteRetry(eventReconnectDelay); err != nil {
		return
	}

	// Subscribed before the snapshot so no transition falls in between
	snapshot := statusOf(h.manager.Provider())
	snapshot.Event = "snapshot"
	if err := sse.WriteEvent(snapshot.Event, snapshot); err != nil {
		return
	}

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-events:
			if err := sse.WriteEvent(event.Event, event); err != nil {
				slog.DebugContext(ctx, "event stream closed", "error", err)
				return
			}
		case <-heartbeat.C:
			if err := sse.WriteComment("keep-alive"); err != nil {
				return
			}
		}
	}
}
