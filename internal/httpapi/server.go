// Package httpapi exposes a running countdown over HTTP for headless mode.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/sadopc/dong/internal/interval"
	xglog "github.com/sadopc/dong/internal/log"
)

// Controller is the part of interval.Runner the HTTP surface drives.
type Controller interface {
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Stop(ctx context.Context) error
	Snapshot(ctx context.Context) (interval.Snapshot, error)
	Subscribe(buffer int) <-chan interval.Event
}

const commandTimeout = 2 * time.Second

type server struct {
	c      Controller
	logger zerolog.Logger
}

// NewRouter builds the chi router for one session.
func NewRouter(c Controller) http.Handler {
	return newRouter(c, xglog.WithComponent("http"))
}

func newRouter(c Controller, logger zerolog.Logger) http.Handler {
	s := &server{c: c, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	r.Get("/state", s.getState)
	r.Get("/events", s.streamEvents)
	r.Post("/pause", s.command(c.Pause))
	r.Post("/resume", s.command(c.Resume))
	r.Post("/stop", s.command(c.Stop))
	return r
}

func (s *server) getState(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()

	snap, err := s.c.Snapshot(ctx)
	if err != nil {
		s.respondError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	s.respondJSON(w, snap, http.StatusOK)
}

func (s *server) command(apply func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
		defer cancel()

		if err := apply(ctx); err != nil {
			s.respondError(w, err.Error(), statusFor(err))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, interval.ErrInvalidTransition), errors.Is(err, interval.ErrRunnerClosed):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("latency", time.Since(start)).
				Msg("request")
		})
	}
}

func (s *server) respondJSON(w http.ResponseWriter, data any, status int) {
	body, err := json.Marshal(data)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
		s.respondError(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(body, '\n')); err != nil {
		s.logger.Warn().Err(err).Msg("failed to write response")
	}
}

func (s *server) respondError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		s.logger.Warn().Err(err).Msg("failed to write error response")
	}
}
