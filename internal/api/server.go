package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/walson-a/atlasbot/internal/knowledge"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger      *slog.Logger
	Store       *knowledge.Store // Required
	Assistant   Assistant        // Required
	Mailer      MailSender       // Optional: nil disables the contact endpoint
	Retrieval   RetrievalPolicy
	ChatRate    RatePolicy
	ContactRate RatePolicy
	MailFrom    string
	MailTo      string
	CORSOrigins []string // Allowed origins for CORS
	TrustProxy  bool     // Trust X-Real-IP/X-Forwarded-For headers (behind reverse proxy)
}

// Server is the JSON API HTTP server.
type Server struct {
	handler http.Handler
	logger  *slog.Logger
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("knowledge store is required")
	}
	if cfg.Assistant == nil {
		return nil, errors.New("assistant is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{logger: logger}

	// One limiter shared by both endpoints; buckets keep them independent.
	rl := newLimiter()

	ch := &chatHandler{
		store:      cfg.Store,
		assistant:  cfg.Assistant,
		limiter:    rl,
		retrieval:  cfg.Retrieval,
		rate:       cfg.ChatRate,
		trustProxy: cfg.TrustProxy,
		logger:     logger,
		now:        time.Now,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/chat", ch.send)

	if cfg.Mailer != nil {
		co := newContactHandler(cfg.Mailer, rl, cfg.ContactRate, cfg.MailFrom, cfg.MailTo, cfg.TrustProxy, logger)
		mux.HandleFunc("POST /api/contact", co.send)
	}

	// Build middleware stack (outermost first):
	//   Recovery → RequestID → Logging → CORS → Routes
	// RequestID must be before Logging so request_id is available in log
	// attributes. CORS must wrap routes so preflight OPTIONS short-circuits.
	var handler http.Handler = mux
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	s.handler = handler
	return s, nil
}

// Handler returns the root http.Handler, ready to mount on an http.Server.
func (s *Server) Handler() http.Handler {
	return s.handler
}
