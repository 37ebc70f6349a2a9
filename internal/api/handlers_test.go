package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ignite/payout-sync/internal/engine"
)

type fakeSyncer struct {
	result engine.Result

	syncStart, syncEnd *time.Time
	clearExisting      bool
	hourlyCalls        int
	finalizeDate       string
	cleanupDate        string
}

func (f *fakeSyncer) SyncPayouts(ctx context.Context, start, end *time.Time, clearExisting bool) engine.Result {
	f.syncStart, f.syncEnd = start, end
	f.clearExisting = clearExisting
	return f.result
}

func (f *fakeSyncer) SyncTodayHourly(ctx context.Context) engine.Result {
	f.hourlyCalls++
	return f.result
}

func (f *fakeSyncer) FinalizeDate(ctx context.Context, date string) engine.Result {
	f.finalizeDate = date
	return f.result
}

func (f *fakeSyncer) CleanupDuplicates(ctx context.Context, date string) engine.Result {
	f.cleanupDate = date
	return f.result
}

func serve(t *testing.T, syncer *fakeSyncer, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	router := SetupRoutes(NewHandlers(syncer, NewWebhookSink(newMemStore())))

	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func okSyncer() *fakeSyncer {
	return &fakeSyncer{result: engine.Result{RunID: "run-1", Status: engine.StatusSuccess, RowsWritten: 3}}
}

func TestHealthCheck(t *testing.T) {
	rec := serve(t, okSyncer(), http.MethodGet, "/health", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if body["status"] != "healthy" || body["service"] != "payout-sync" {
		t.Errorf("unexpected health body: %v", body)
	}
}

func TestSyncPayoutsDefaults(t *testing.T) {
	syncer := okSyncer()
	rec := serve(t, syncer, http.MethodPost, "/api/sync-payouts", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if syncer.syncStart != nil || syncer.syncEnd != nil {
		t.Error("expected nil range when no parameters given")
	}
	if syncer.clearExisting {
		t.Error("clear_existing should default to false")
	}

	var res engine.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if res.RunID != "run-1" || res.RowsWritten != 3 {
		t.Errorf("result not passed through: %+v", res)
	}
}

func TestSyncPayoutsExplicitRange(t *testing.T) {
	syncer := okSyncer()
	rec := serve(t, syncer, http.MethodGet,
		"/api/sync-payouts?report_start=2026-03-06&report_end=2026-03-07&clear_existing=true", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if syncer.syncStart == nil || !syncer.syncStart.Equal(time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected start: %v", syncer.syncStart)
	}
	if syncer.syncEnd == nil || !syncer.syncEnd.Equal(time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected end: %v", syncer.syncEnd)
	}
	if !syncer.clearExisting {
		t.Error("clear_existing=true not passed through")
	}
}

func TestSyncPayoutsRejectsHalfOpenRange(t *testing.T) {
	rec := serve(t, okSyncer(), http.MethodPost, "/api/sync-payouts?report_start=2026-03-06", "")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSyncPayoutsRejectsMalformedTime(t *testing.T) {
	rec := serve(t, okSyncer(), http.MethodPost,
		"/api/sync-payouts?report_start=yesterday&report_end=today", "")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "report_start") {
		t.Errorf("error should name the bad parameter: %s", rec.Body.String())
	}
}

func TestEngineFailureMapsTo500(t *testing.T) {
	syncer := &fakeSyncer{result: engine.Result{Status: engine.StatusError, Message: "fetch failed"}}
	rec := serve(t, syncer, http.MethodPost, "/api/sync-today-hourly", "")

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if syncer.hourlyCalls != 1 {
		t.Errorf("expected one engine call, got %d", syncer.hourlyCalls)
	}
}

func TestFinalizePassesDate(t *testing.T) {
	syncer := okSyncer()
	rec := serve(t, syncer, http.MethodPost, "/api/finalize?date=2026-03-08", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if syncer.finalizeDate != "2026-03-08" {
		t.Errorf("date not passed through: %q", syncer.finalizeDate)
	}
}

func TestCleanupPassesDate(t *testing.T) {
	syncer := okSyncer()
	serve(t, syncer, http.MethodPost, "/api/cleanup-duplicates?date=2026-03-08", "")

	if syncer.cleanupDate != "2026-03-08" {
		t.Errorf("date not passed through: %q", syncer.cleanupDate)
	}
}

func TestRingbaWebhookRejectsInvalidJSON(t *testing.T) {
	rec := serve(t, okSyncer(), http.MethodPost, "/ringba-webhook", "{not json")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
