// Package httpapi is the inbound HTTP surface: the cli/api message endpoint,
// the Twilio SMS webhook, the inbound-parse email webhook, and health.
package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nextlevelbuilder/switchboard/internal/config"
	"github.com/nextlevelbuilder/switchboard/internal/formatter"
	"github.com/nextlevelbuilder/switchboard/internal/message"
	"github.com/nextlevelbuilder/switchboard/internal/router"
	"github.com/nextlevelbuilder/switchboard/internal/supervisor"
)

// LinkStatus is the health-reporting slice of the supervisor link.
type LinkStatus interface {
	Stats() supervisor.Stats
}

// MessageRouter routes one normalized message. Satisfied by *router.Router.
type MessageRouter interface {
	Route(ctx context.Context, msg message.UnifiedMessage) message.UnifiedResponse
}

// Server is the HTTP listener.
type Server struct {
	cfg     config.ServerConfig
	router  MessageRouter
	emailer *formatter.EmailResponder
	link    LinkStatus

	limiter    *rateLimiter
	mux        *http.ServeMux
	httpServer *http.Server
}

// NewServer wires the HTTP surface. All collaborators are required.
func NewServer(cfg config.ServerConfig, mr MessageRouter, emailer *formatter.EmailResponder, link LinkStatus) *Server {
	s := &Server{
		cfg:     cfg,
		router:  mr,
		emailer: emailer,
		link:    link,
		limiter: newRateLimiter(cfg.RateLimitRPM),
	}
	return s
}

// BuildMux creates and caches the mux with all routes registered.
func (s *Server) BuildMux() *http.ServeMux {
	if s.mux != nil {
		return s.mux
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/messages", s.wrap(s.handleMessages))
	mux.HandleFunc("POST /webhooks/sms", s.wrap(s.handleSMS))
	mux.HandleFunc("POST /webhooks/email", s.wrap(s.handleEmail))
	mux.HandleFunc("GET /health", s.handleHealth)

	s.mux = mux
	return mux
}

// wrap applies the access log and rate limit to one handler.
func (s *Server) wrap(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		if !s.limiter.Allow(clientKey(r)) {
			slog.Warn("rate limited", "path", r.URL.Path, "remote", r.RemoteAddr)
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		h(sw, r)
		slog.Info("http request",
			"method", r.Method, "path", r.URL.Path,
			"status", sw.status, "duration", time.Since(start))
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Start begins listening and blocks until ctx is cancelled or the listener
// fails.
func (s *Server) Start(ctx context.Context) error {
	mux := s.BuildMux()

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("http server starting", "addr", addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

var _ MessageRouter = (*router.Router)(nil)
