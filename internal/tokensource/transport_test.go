package tokensource

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/oauth2"
)

// captured is what the test server saw of one request.
type captured struct {
	contentType string
	body        string
}

func TestJSONFormTransport(t *testing.T) {
	seen := make(chan captured, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		seen <- captured{contentType: r.Header.Get("Content-Type"), body: string(data)}
	}))
	defer server.Close()

	client := &http.Client{Transport: &jsonFormTransport{base: http.DefaultTransport}}

	tests := []struct {
		name            string
		method          string
		contentType     string
		body            string
		wantContentType string
		wantJSON        map[string]string
		wantBody        string
		wantErr         bool
	}{
		{
			name:            "form post is re-encoded",
			method:          http.MethodPost,
			contentType:     "application/x-www-form-urlencoded; charset=utf-8",
			body:            "grant_type=refresh_token&refresh_token=r-1&scope=User.Read+offline_access",
			wantContentType: "application/json",
			wantJSON:        map[string]string{"grant_type": "refresh_token", "refresh_token": "r-1", "scope": "User.Read offline_access"},
		},
		{
			name:            "json body passes through",
			method:          http.MethodPost,
			contentType:     "application/json",
			body:            `{"token":"r-1"}`,
			wantContentType: "application/json",
			wantBody:        `{"token":"r-1"}`,
		},
		{
			name:            "form get passes through",
			method:          http.MethodGet,
			contentType:     "application/x-www-form-urlencoded",
			wantContentType: "application/x-www-form-urlencoded",
		},
		{
			name:        "repeated parameter is rejected",
			method:      http.MethodPost,
			contentType: "application/x-www-form-urlencoded",
			body:        "scope=a&scope=b",
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body io.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			}
			req, err := http.NewRequestWithContext(context.Background(), tt.method, server.URL+"/token", body)
			if err != nil {
				t.Fatal(err)
			}
			req.Header.Set("Content-Type", tt.contentType)

			resp, err := client.Do(req)
			if tt.wantErr {
				if err == nil {
					_ = resp.Body.Close()
					t.Fatal("request succeeded, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("request: %v", err)
			}
			_ = resp.Body.Close()

			got := <-seen
			if got.contentType != tt.wantContentType {
				t.Errorf("Content-Type = %q, want %q", got.contentType, tt.wantContentType)
			}
			if tt.wantJSON != nil {
				var members map[string]string
				if err := json.Unmarshal([]byte(got.body), &members); err != nil {
					t.Fatalf("body %q is not a JSON object: %v", got.body, err)
				}
				for key, want := range tt.wantJSON {
					if members[key] != want {
						t.Errorf("%s = %q, want %q", key, members[key], want)
					}
				}
			} else if got.body != tt.wantBody {
				t.Errorf("body = %q, want %q", got.body, tt.wantBody)
			}
		})
	}
}

func TestJSONRevocationRequests(t *testing.T) {
	var contentType string
	var body map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &body)
	}))
	defer server.Close()

	backend := NewOAuth("client", oauth2.Endpoint{}, WithRevocationURL(server.URL), WithJSONTokenRequests())
	if err := backend.Revoke(context.Background(), "refresh-1"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if contentType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", contentType)
	}
	if body["token"] != "refresh-1" || body["client_id"] != "client" {
		t.Errorf("JSON body = %v", body)
	}
}
