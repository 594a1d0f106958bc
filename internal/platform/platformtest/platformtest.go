// Package platformtest runs a fake platform for package tests.
package platformtest

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/sixty60/internal/platform"
	"github.com/utafrali/sixty60/pkg/httpclient"
)

// DeviceID is the device id every fake client sends.
const DeviceID = "device-test"

// Credentials are the static keys every fake client sends.
var Credentials = platform.Credentials{
	APIKey:       "api-key",
	AuthAPIKey:   "auth-key",
	ProfileToken: "profile-token",
}

// Server is a fake platform. Routes are mounted per host under /bff, /dsl,
// /auth, /catalog and /orders.
type Server struct {
	Router chi.Router
	URL    string

	mu    sync.Mutex
	calls []string
}

// New starts a fake platform and returns it with a client pointed at it.
func New(t *testing.T) (*Server, *platform.Client) {
	t.Helper()
	s := &Server{Router: chi.NewRouter()}
	s.Router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.mu.Lock()
			s.calls = append(s.calls, r.Method+" "+r.URL.Path)
			s.mu.Unlock()
			next.ServeHTTP(w, r)
		})
	})
	srv := httptest.NewServer(s.Router)
	t.Cleanup(srv.Close)
	s.URL = srv.URL

	doer := httpclient.New(httpclient.Config{Timeout: httpclient.DefaultConfig().Timeout})
	doers := make(map[platform.Host]platform.HTTPDoer, len(platform.Hosts))
	for _, h := range platform.Hosts {
		doers[h] = doer
	}
	client := platform.NewClient(platform.Options{
		Endpoints: platform.Endpoints{
			BFF:     srv.URL + "/bff",
			DSL:     srv.URL + "/dsl",
			Auth:    srv.URL + "/auth",
			Catalog: srv.URL + "/catalog",
			Orders:  srv.URL + "/orders",
		},
		Credentials: Credentials,
		App:         platform.AppIdentity{Version: "iPadOS 2.0.99 (1)", Build: "1"},
		DeviceID:    DeviceID,
	}, doers, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return s, client
}

// Calls returns "METHOD /path" for every request served so far, in order.
func (s *Server) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// JSON writes body as a 200 JSON response.
func JSON(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}
}

// Status writes an error response with the given status and body.
func Status(code int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(code)
		_, _ = io.WriteString(w, body)
	}
}
