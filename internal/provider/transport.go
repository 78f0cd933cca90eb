package provider

import (
	"io"
	"net/http"
	"strings"
)

// invalidator is implemented by authenticators that can discard a token the
// remote API rejected.
type invalidator interface {
	Invalidate(accessToken string)
}

// Transport is an http.RoundTripper that authenticates each request.
//
// When the remote API answers 401 Unauthorized, the used token is
// invalidated and the request is retried once with a refreshed token,
// provided its body can be replayed.
type Transport struct {
	Authenticator RequestAuthenticator
	Base          http.RoundTripper
}

// Compile-time check that Transport implements http.RoundTripper.
var _ http.RoundTripper = (*Transport)(nil)

// RoundTrip implements http.RoundTripper interface.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	// RoundTrippers must not modify the original request
	out := req.Clone(req.Context())
	if err := t.Authenticator.AuthenticateRequest(req.Context(), out); err != nil {
		closeBody(req)
		return nil, err
	}

	resp, err := base.RoundTrip(out)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	inv, ok := t.Authenticator.(invalidator)
	if !ok || !replayable(req) {
		return resp, nil
	}
	inv.Invalidate(strings.TrimPrefix(out.Header.Get("Authorization"), "Bearer "))

	retry := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return resp, nil
		}
		retry.Body = body
	}
	if err := t.Authenticator.AuthenticateRequest(req.Context(), retry); err != nil {
		// Surface the upstream 401 rather than the refresh failure
		closeBody(retry)
		return resp, nil
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	return base.RoundTrip(retry)
}

func replayable(req *http.Request) bool {
	return req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
}

func closeBody(req *http.Request) {
	if req.Body != nil {
		_ = req.Body.Close()
	}
}
