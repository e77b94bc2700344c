// Package server exposes the webhook ingress and liveness endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const maxUpdateSize = 1 << 20

// UpdateHandler processes one inbound update
type UpdateHandler func(ctx context.Context, update tgbotapi.Update)

// Server is the HTTP front of the bot
type Server struct {
	http *http.Server
	log  *zap.Logger
}

// NewRouter builds the routes: POST webhookPath for updates, GET / and
// /healthz for liveness
func NewRouter(webhookPath string, handle UpdateHandler, log *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger(log), middleware.Recoverer)

	r.Get("/", alive)
	r.Get("/healthz", alive)
	r.Post(webhookPath, func(w http.ResponseWriter, req *http.Request) {
		var update tgbotapi.Update
		if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxUpdateSize)).Decode(&update); err != nil {
			log.Warn("Malformed update", zap.Error(err))
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		// the update outlives the request if handling schedules work
		handle(context.WithoutCancel(req.Context()), update)
		w.WriteHeader(http.StatusOK)
	})
	return r
}

func alive(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("Bot running"))
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("HTTP request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}

// New creates a server listening on addr
func New(addr string, handler http.Handler, log *zap.Logger) *Server {
	return &Server{
		http: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: log,
	}
}

// Start serves in the background. Errors other than a normal shutdown are logged.
func (s *Server) Start() {
	go func() {
		s.log.Info("HTTP server listening", zap.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("HTTP server failed", zap.Error(err))
		}
	}()
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
