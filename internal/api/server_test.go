package api_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/goodsteward/donation-reporter/internal/api"
	"github.com/goodsteward/donation-reporter/internal/dispatch"
)

func newTestServer(t *testing.T) (*api.StatusStore, http.Handler) {
	t.Helper()
	status := api.NewStatusStore()
	return status, api.NewServer(status, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestHealthz(t *testing.T) {
	_, h := newTestServer(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestStatus_BeforeFirstRun(t *testing.T) {
	_, h := newTestServer(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if body["state"] != "waiting" {
		t.Errorf("state = %v, want waiting", body["state"])
	}
}

func TestStatus_AfterRun(t *testing.T) {
	status, h := newTestServer(t)

	runID := uuid.New()
	status.Set(dispatch.Result{
		RunID:       runID,
		Success:     true,
		RecordCount: 42,
		FilePaths:   []string{"/var/reports/Donations_xlsx_20260715.xlsx"},
		Message:     "42 records, 3 sources, grand total 1234.00",
		FinishedAt:  time.Date(2026, time.July, 16, 6, 3, 0, 0, time.UTC),
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if body["state"] != "ok" {
		t.Errorf("state = %v, want ok", body["state"])
	}
	if body["run_id"] != runID.String() {
		t.Errorf("run_id = %v, want %s", body["run_id"], runID)
	}
	if body["record_count"] != float64(42) {
		t.Errorf("record_count = %v, want 42", body["record_count"])
	}
}

func TestStatus_AfterFailedRun(t *testing.T) {
	status, h := newTestServer(t)
	status.Set(dispatch.Result{Success: false, Message: "fetch: database unavailable"})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if body["state"] != "failed" {
		t.Errorf("state = %v, want failed", body["state"])
	}
}
