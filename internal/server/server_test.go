// Strata - Tiered Backup Rotation for Remote Object Stores
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/strata

package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tomtom215/strata/internal/config"
	"github.com/tomtom215/strata/internal/metrics"
)

func TestHealthz(t *testing.T) {
	s := New(config.ServerConfig{Listen: ":0"})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	// Touch a collector so the family is present in the scrape.
	metrics.JobRunsTotal.WithLabelValues("scrape-test", "success").Inc()

	s := New(config.ServerConfig{Listen: ":0"})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "backup_job_runs_total") {
		t.Error("scrape output missing backup job metrics")
	}
}
