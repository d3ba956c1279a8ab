package checks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"Probekit/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHTTPCheck(t *testing.T, cfg HTTPConfig) *HTTPCheck {
	t.Helper()
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Second
	}
	check, err := NewHTTPCheck(cfg)
	require.NoError(t, err)
	return check
}

func TestHTTPCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.Write([]byte("hello world"))
		case "/moved":
			http.Redirect(w, r, "/new-home", http.StatusFound)
		case "/auth":
			user, pass, ok := r.BasicAuth()
			if !ok || user != "admin" || pass != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Write([]byte("welcome"))
		case "/header":
			w.Write([]byte(r.Header.Get("X-Check")))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	tests := []struct {
		name   string
		cfg    HTTPConfig
		status domain.Status
		msg    string
	}{
		{
			name:   "success",
			cfg:    HTTPConfig{URL: srv.URL + "/ok", RequireBytes: -1},
			status: domain.StatusOK,
			msg:    "200, 11 bytes",
		},
		{
			name:   "pattern found",
			cfg:    HTTPConfig{URL: srv.URL + "/ok", Pattern: "wor.d", RequireBytes: -1},
			status: domain.StatusOK,
			msg:    "200, found /wor.d/ in 11 bytes",
		},
		{
			name:   "pattern missing",
			cfg:    HTTPConfig{URL: srv.URL + "/ok", Pattern: "nope", RequireBytes: -1},
			status: domain.StatusCritical,
			msg:    "200, did not find /nope/ in 11 bytes: hello world...",
		},
		{
			name:   "wrong size",
			cfg:    HTTPConfig{URL: srv.URL + "/ok", RequireBytes: 3},
			status: domain.StatusCritical,
			msg:    "Response was 11 bytes instead of 3",
		},
		{
			name:   "server error",
			cfg:    HTTPConfig{URL: srv.URL + "/broken", RequireBytes: -1},
			status: domain.StatusCritical,
			msg:    "500",
		},
		{
			name:   "redirect warns by default",
			cfg:    HTTPConfig{URL: srv.URL + "/moved", RequireBytes: -1},
			status: domain.StatusWarning,
			msg:    "302",
		},
		{
			name:   "redirect ok",
			cfg:    HTTPConfig{URL: srv.URL + "/moved", RedirectOK: true, RequireBytes: -1},
			status: domain.StatusOK,
		},
		{
			name:   "redirect to expected location",
			cfg:    HTTPConfig{URL: srv.URL + "/moved", RedirectTo: "/new-home", RequireBytes: -1},
			status: domain.StatusOK,
			msg:    "302 found redirect to /new-home",
		},
		{
			name:   "redirect elsewhere",
			cfg:    HTTPConfig{URL: srv.URL + "/moved", RedirectTo: "/other", RequireBytes: -1},
			status: domain.StatusCritical,
			msg:    "Expected redirect to /other instead redirected to /new-home",
		},
		{
			name:   "expected response code",
			cfg:    HTTPConfig{URL: srv.URL + "/broken", ResponseCode: "500", RequireBytes: -1},
			status: domain.StatusOK,
		},
		{
			name:   "unexpected response code",
			cfg:    HTTPConfig{URL: srv.URL + "/ok", ResponseCode: "201", RequireBytes: -1},
			status: domain.StatusCritical,
			msg:    "200",
		},
		{
			name:   "pattern missing with expected response code",
			cfg:    HTTPConfig{URL: srv.URL + "/ok", Pattern: "healthy", ResponseCode: "200", RequireBytes: -1},
			status: domain.StatusCritical,
			msg:    "200, did not find /healthy/ in 11 bytes: hello world...",
		},
		{
			name:   "redirect elsewhere with expected response code",
			cfg:    HTTPConfig{URL: srv.URL + "/moved", RedirectTo: "/other", ResponseCode: "302", RequireBytes: -1},
			status: domain.StatusCritical,
			msg:    "Expected redirect to /other instead redirected to /new-home",
		},
		{
			name:   "basic auth",
			cfg:    HTTPConfig{URL: srv.URL + "/auth", User: "admin", Password: "secret", RequireBytes: -1},
			status: domain.StatusOK,
		},
		{
			name:   "custom header",
			cfg:    HTTPConfig{URL: srv.URL + "/header", Header: "X-Check: yes", Pattern: "^yes$", RequireBytes: -1},
			status: domain.StatusOK,
		},
		{
			name:   "response bytes appended",
			cfg:    HTTPConfig{URL: srv.URL + "/ok", ResponseBytes: 5, RequireBytes: -1},
			status: domain.StatusOK,
			msg:    "200, 11 bytes\nhello",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := newTestHTTPCheck(t, tt.cfg)
			result, err := check.Run(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.status, result.Status, result.Message)
			if tt.msg != "" {
				assert.Equal(t, tt.msg, result.Message)
			}
		})
	}
}

func TestHTTPCheckConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	check := newTestHTTPCheck(t, HTTPConfig{URL: addr, RequireBytes: -1})
	result, err := check.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCritical, result.Status)
	assert.Contains(t, result.Message, "Request error")
}

func TestHTTPConfigTarget(t *testing.T) {
	cfg := HTTPConfig{Host: "example.com", RequestURI: "/status", SSL: true}
	target, err := cfg.target()
	require.NoError(t, err)
	assert.Equal(t, "https://example.com:443/status", target)

	cfg = HTTPConfig{Host: "example.com", Port: 8080, RequestURI: "/"}
	target, err = cfg.target()
	require.NoError(t, err)
	assert.Equal(t, "http://example.com:8080/", target)

	_, err = (&HTTPConfig{}).target()
	assert.Equal(t, domain.KindInvalidConfig, domain.KindOf(err))
}
