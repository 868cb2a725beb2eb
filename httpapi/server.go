// Package httpapi serves the engine's operations as a small JSON API.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/rustyeddy/riskos/engine"
	"github.com/rustyeddy/riskos/id"
)

type ctxKey int

const requestIDKey ctxKey = iota

type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		Addr:         "127.0.0.1:8080",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

type Server struct {
	router  *mux.Router
	engine  *engine.Engine
	metrics http.Handler
	cfg     Config
}

// New wires the routes. metrics may be nil, in which case /metrics is not
// served.
func New(e *engine.Engine, metrics http.Handler, cfg Config) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		engine:  e,
		metrics: metrics,
		cfg:     cfg,
	}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(s.requestID, s.logRequests)

	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	}

	api := s.router.PathPrefix("/").Subrouter()
	api.Use(jsonContentType)

	api.HandleFunc("/healthz", s.health).Methods(http.MethodGet)
	api.HandleFunc("/session", s.session).Methods(http.MethodGet)

	api.HandleFunc("/regime", s.setRegime).Methods(http.MethodPut)
	api.HandleFunc("/regime/suggest", s.suggest).Methods(http.MethodPost)

	api.HandleFunc("/size", s.size).Methods(http.MethodGet)

	api.HandleFunc("/positions", s.overview).Methods(http.MethodGet)
	api.HandleFunc("/positions", s.addPosition).Methods(http.MethodPost)
	api.HandleFunc("/positions/review", s.review).Methods(http.MethodGet)
	api.HandleFunc("/positions/{symbol}", s.deletePosition).Methods(http.MethodDelete)
	api.HandleFunc("/positions/{symbol}/stop", s.updateStop).Methods(http.MethodPut)
	api.HandleFunc("/positions/{symbol}/breakeven", s.breakEven).Methods(http.MethodPost)
	api.HandleFunc("/positions/{symbol}/exit", s.exit).Methods(http.MethodPost)

	api.HandleFunc("/ledger", s.ledger).Methods(http.MethodGet)
	api.HandleFunc("/ledger/stats", s.stats).Methods(http.MethodGet)
	api.HandleFunc("/ledger/{id}", s.correctRow).Methods(http.MethodPatch)
	api.HandleFunc("/ledger/{id}", s.deleteRow).Methods(http.MethodDelete)

	api.HandleFunc("/account/adjust", s.adjust).Methods(http.MethodPost)
	api.HandleFunc("/account/equity", s.forceEquity).Methods(http.MethodPut)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, errors.New("no such endpoint"))
	})
}

// ListenAndServe runs until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.cfg.Addr).Msg("http server listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdown); err != nil {
		return err
	}
	log.Info().Msg("http server stopped")
	return nil
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := id.New()
		rid = rid[len(rid)-8:]
		w.Header().Set("X-Request-ID", rid)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, rid)))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		rid, _ := r.Context().Value(requestIDKey).(string)
		log.Debug().
			Str("request_id", rid).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", sw.status).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
