// Strata - Tiered Backup Rotation for Remote Object Stores
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/strata

// Package server provides the daemon-mode observability listener: a small
// chi router exposing /healthz and Prometheus /metrics. One-shot runs
// never start it.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/strata/internal/config"
	"github.com/tomtom215/strata/internal/logging"
)

// Server serves health and metrics endpoints. It implements
// suture.Service for the daemon-mode supervisor tree.
type Server struct {
	addr   string
	router chi.Router
}

// New builds the listener from cfg.
func New(cfg config.ServerConfig) *Server {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", handleHealthz)
	r.Handle("/metrics", promhttp.Handler())

	return &Server{addr: cfg.Listen, router: r}
}

// String names the service in supervisor logs.
func (s *Server) String() string { return "metrics-server" }

// Serve listens until the context is canceled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", s.addr).Msg("metrics server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.Error().Err(err).Msg("metrics server shutdown failed")
		}
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.router }

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"}) //nolint:errcheck // Best effort response
}
