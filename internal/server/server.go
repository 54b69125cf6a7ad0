package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/omriShneor/alfred_scheduler/internal/database"
	"github.com/omriShneor/alfred_scheduler/internal/flow"
	"github.com/omriShneor/alfred_scheduler/internal/i18n"
)

// MessageRunner runs one inbound message. *flow.Orchestrator implements it.
type MessageRunner interface {
	Run(ctx context.Context, message, senderID string) *flow.RequestState
}

// CalendarStatus reports whether the calendar client can be used. *gcal.Handle implements it.
type CalendarStatus interface {
	Ready(ctx context.Context) bool
}

// TraceStore reads back request traces for the admin API. *database.DB implements it.
type TraceStore interface {
	ListRecentRequestTraces(ctx context.Context, limit int) ([]database.RequestTrace, error)
	CountRequestTracesByOutcome(ctx context.Context) (map[string]int, error)
}

type Server struct {
	runner   MessageRunner
	calendar CalendarStatus
	traces   TraceStore
	gatherer prometheus.Gatherer
	catalog  *i18n.Catalog
	logger   *slog.Logger
	httpSrv  *http.Server
	port     int
}

// ServerConfig holds configuration for server creation
type ServerConfig struct {
	Runner   MessageRunner
	Calendar CalendarStatus
	Traces   TraceStore
	Gatherer prometheus.Gatherer
	Catalog  *i18n.Catalog
	Logger   *slog.Logger
	Port     int
}

func New(cfg ServerConfig) *Server {
	catalog := cfg.Catalog
	if catalog == nil {
		catalog = i18n.Default()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		runner:   cfg.Runner,
		calendar: cfg.Calendar,
		traces:   cfg.Traces,
		gatherer: gatherer,
		catalog:  catalog,
		logger:   logger.With("component", "server"),
		port:     cfg.Port,
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	s.httpSrv = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: s.recoverMiddleware(s.corsMiddleware(mux)),
		// Classification, extraction and the calendar round trips run inline.
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	// Health check
	mux.HandleFunc("GET /health", s.handleHealthCheck)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	// Twilio WhatsApp webhook
	mux.HandleFunc("POST /whatsapp/", s.handleWhatsAppWebhook)

	// JSON API
	mux.HandleFunc("POST /api/messages", s.handleProcessMessage)
	mux.HandleFunc("GET /api/traces", s.handleListTraces)
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", fmt.Sprintf("http://localhost:%d", s.port))
	return s.httpSrv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// Handler returns the server's HTTP handler for testing purposes
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// corsMiddleware adds CORS headers to allow browser requests to the JSON API
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		// Handle preflight requests
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// recoverMiddleware turns a handler panic into a 500 instead of a dropped connection.
// The webhook has its own recovery that still answers with TwiML.
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic serving request", "path", r.URL.Path, "panic", rec)
				respondError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
