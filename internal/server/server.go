// Package server exposes the speech synthesis engine over HTTP.
//
// The API is JSON end to end: every response carries a status field, and
// failures use a single {"status":"error","message":...} envelope so clients
// never branch on shape. Generated audio is served back as static files
// under /static/audio/.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/suraj5sky/sky-tts/internal/account"
	"github.com/suraj5sky/sky-tts/internal/catalog"
	"github.com/suraj5sky/sky-tts/internal/dispatch"
	"github.com/suraj5sky/sky-tts/internal/observe"
	"github.com/suraj5sky/sky-tts/internal/store"
)

// sessionCookie is the login cookie name.
const sessionCookie = "skytts_session"

// Server is the HTTP front end. Accounts and Webhook are optional: with a
// nil accounts service the API runs anonymously and every caller gets the
// free-tier character ceiling.
type Server struct {
	port     int
	resolver *dispatch.Resolver
	catalog  *catalog.Catalog
	files    *store.FS
	accounts *account.Service
	webhook  *account.WebhookHandler
	metrics  *observe.Metrics
	server   *http.Server
}

// Deps carries the server's collaborators.
type Deps struct {
	Resolver *dispatch.Resolver
	Catalog  *catalog.Catalog
	Files    *store.FS
	Accounts *account.Service
	Webhook  *account.WebhookHandler
	Metrics  *observe.Metrics
}

// New creates a Server on the given port.
func New(port int, deps Deps) *Server {
	return &Server{
		port:     port,
		resolver: deps.Resolver,
		catalog:  deps.Catalog,
		files:    deps.Files,
		accounts: deps.Accounts,
		webhook:  deps.Webhook,
		metrics:  deps.Metrics,
	}
}

// Handler builds the full route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/languages", s.handleLanguages)
	mux.HandleFunc("GET /api/voices", s.handleVoices)
	mux.HandleFunc("POST /api/generate_tts", s.handleGenerate)
	// Voice ids may contain slashes, so the tail is a wildcard.
	mux.HandleFunc("GET /api/voice-preview/{voice...}", s.handlePreview)
	mux.HandleFunc("POST /api/process-file", s.handleProcessFile)
	mux.HandleFunc("GET /static/audio/{filename}", s.handleAudioFile)

	mux.HandleFunc("POST /api/auth/signup", s.handleSignup)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/auth/logout", s.handleLogout)
	mux.HandleFunc("GET /api/auth/status", s.handleAuthStatus)
	mux.HandleFunc("POST /api/subscribe", s.handleSubscribe)
	mux.HandleFunc("GET /api/analytics", s.handleAnalytics)
	mux.HandleFunc("POST /api/payments/webhook", s.handlePaymentWebhook)

	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("GET /swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	return s.instrument(mux)
}

// instrument records request latency per route pattern.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		s.metrics.RecordHTTPRequest(r.Context(), r.Method, route, time.Since(start))
	})
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("api server listening", "port", s.port)

	go func() {
		<-ctx.Done()
		slog.Info("api server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("api listen: %w", err)
	}
	return nil
}

// currentUser resolves the session cookie to a user, or nil for anonymous
// callers (no accounts service, no cookie, or a dead session).
func (s *Server) currentUser(r *http.Request) *account.User {
	if s.accounts == nil {
		return nil
	}
	c, err := r.Cookie(sessionCookie)
	if err != nil || c.Value == "" {
		return nil
	}
	u, err := s.accounts.Authenticate(r.Context(), c.Value)
	if err != nil {
		return nil
	}
	return u
}

// charLimit returns the per-request character ceiling for u. Anonymous
// callers (nil) get the free-plan ceiling. Handlers resolve the user once
// and pass it in so a request costs a single session lookup.
func (s *Server) charLimit(u *account.User) int {
	if u != nil {
		return u.Plan.CharLimit()
	}
	return account.PlanFree.CharLimit()
}

func setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(account.SessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
