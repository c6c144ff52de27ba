package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/draly94/SW/pkg/logging"
)

func TestSetupMetricsExposesMetrics(t *testing.T) {
	handler, metrics := setupMetrics()
	if handler == nil || metrics == nil {
		t.Fatalf("expected non-nil handler and metrics")
	}

	metrics.ObserveAppDataAttempt(true)
	metrics.ObserveOutbox("invitation.email", "delivered")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	for _, name := range []string{"clinic_session_app_data_attempts_total", "go_goroutines"} {
		if !strings.Contains(rr.Body.String(), name) {
			t.Fatalf("expected %s to be exported", name)
		}
	}
}

func TestConnectPostgresPoolEmptyURLReturnsNil(t *testing.T) {
	logger := logging.New("error")
	if pool := connectPostgresPool(context.Background(), "", logger); pool != nil {
		t.Fatalf("expected nil pool for empty URL")
	}
}

func TestConnectPostgresPoolBadURLReturnsNil(t *testing.T) {
	logger := logging.New("error")
	if pool := connectPostgresPool(context.Background(), "postgres://%zz", logger); pool != nil {
		t.Fatalf("expected nil pool for malformed URL")
	}
}
