package tokensource

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
)

// jsonFormTransport re-encodes the form bodies of token and revocation
// requests as JSON objects, for self-hosted identity providers that only
// accept application/json on those endpoints. Requests without a form body
// pass through unchanged.
type jsonFormTransport struct {
	base http.RoundTripper
}

var _ http.RoundTripper = (*jsonFormTransport)(nil)

func (t *jsonFormTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Body == nil || req.Method != http.MethodPost || !isForm(req.Header.Get("Content-Type")) {
		return t.base.RoundTrip(req)
	}

	// The original body is replaced, so it is closed here rather than by base
	defer func() { _ = req.Body.Close() }()
	raw, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s request body: %w", req.URL.Path, err)
	}

	payload, err := formToJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("re-encoding %s request: %w", req.URL.Path, err)
	}

	out := req.Clone(req.Context())
	out.Body = io.NopCloser(bytes.NewReader(payload))
	out.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(payload)), nil
	}
	out.ContentLength = int64(len(payload))
	out.Header.Set("Content-Type", "application/json")

	return t.base.RoundTrip(out)
}

func isForm(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "application/x-www-form-urlencoded"
}

// formToJSON maps every parameter onto a string member. Token and
// revocation parameters are single-valued; a repeated one is rejected
// instead of silently dropping values.
func formToJSON(raw []byte) ([]byte, error) {
	form, err := url.ParseQuery(string(raw))
	if err != nil {
		return nil, err
	}

	members := make(map[string]string, len(form))
	for key, values := range form {
		if len(values) > 1 {
			return nil, fmt.Errorf("parameter %q repeated", key)
		}
		members[key] = values[0]
	}
	return json.Marshal(members)
}
