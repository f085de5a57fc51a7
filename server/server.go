// Package server exposes the router over HTTP and WebSocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cloudwego/eino/schema"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	routerx "github.com/tanpawarit/odoo-assistant/agent/agents/router"
	contractx "github.com/tanpawarit/odoo-assistant/agent/contract"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	healthText         = "Odoo bot is running"
	internalErrorText  = "Internal Server Error"
	invalidRequestText = "Invalid request"
	forbiddenText      = "Permission denied"
	limiterIdleTimeout = 10 * time.Minute
)

// Router is the part of the router the transport needs.
type Router interface {
	Route(ctx context.Context, message string) (routerx.Result, error)
	Stream(ctx context.Context, message string) (contractx.Domain, *schema.StreamReader[string], error)
}

type RecordSearcher interface {
	Search(ctx context.Context, model, query string) ([]contractx.Record, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error)
}

// Deps are the handles the server calls into. Search and Transcriber are
// optional; their routes answer 503 without them.
type Deps struct {
	Router      Router
	Search      RecordSearcher
	Transcriber Transcriber
}

type Server struct {
	cfg     Config
	deps    Deps
	limiter *rateLimiter
	handler http.Handler
}

func New(cfg Config, deps Deps) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Router == nil {
		return nil, fmt.Errorf("%w: router is required", contractx.ErrValidation)
	}

	s := &Server{
		cfg:  cfg,
		deps: deps,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("POST /chat", s.requireAuth(s.handleChat))
	mux.HandleFunc("POST /search", s.requireAuth(s.handleSearch))
	mux.HandleFunc("POST /voice", s.requireAuth(s.handleVoice))
	mux.HandleFunc("GET /ws/chat", s.handleChatSocket)
	mux.HandleFunc("GET /ws/voice", s.handleVoiceSocket)

	mws := []middleware{requestLogger(newIDSource())}
	if cfg.RateLimitRPM > 0 {
		s.limiter = newRateLimiter(cfg.RateLimitRPM, cfg.RateLimitBurst)
		mws = append(mws, s.limiter.middleware)
	}
	s.handler = chain(mux, mws...)
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight
// requests for up to the request timeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	if s.limiter != nil {
		go s.sweepLimiter(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.RequestTimeout)
	defer cancel()
	log.Info().Msg("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

func (s *Server) sweepLimiter(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := s.limiter.sweep(now, limiterIdleTimeout); n > 0 {
				log.Debug().Int("removed", n).Msg("rate limiter swept idle clients")
			}
		}
	}
}

// statusFor maps an error to the HTTP status and the fixed detail shown to
// the client. The error itself is only logged.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, contractx.ErrInvalidMessage), errors.Is(err, contractx.ErrValidation):
		return http.StatusBadRequest, invalidRequestText
	case errors.Is(err, contractx.ErrPermission):
		return http.StatusForbidden, forbiddenText
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Request timed out"
	default:
		return http.StatusInternalServerError, internalErrorText
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write json response")
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, detail := statusFor(err)
	ev := log.Ctx(r.Context()).Warn()
	if status >= http.StatusInternalServerError {
		ev = log.Ctx(r.Context()).Error()
	}
	ev.Err(err).Int("status", status).Msg("request failed")
	writeDetail(w, status, detail)
}
