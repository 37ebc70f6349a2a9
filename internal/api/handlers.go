package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ignite/payout-sync/internal/engine"
)

// Syncer is the engine surface the manual trigger endpoints drive.
type Syncer interface {
	SyncPayouts(ctx context.Context, start, end *time.Time, clearExisting bool) engine.Result
	SyncTodayHourly(ctx context.Context) engine.Result
	FinalizeDate(ctx context.Context, date string) engine.Result
	CleanupDuplicates(ctx context.Context, date string) engine.Result
}

// Handlers contains all HTTP handlers
type Handlers struct {
	engine  Syncer
	webhook *WebhookSink
}

// NewHandlers creates a new Handlers instance
func NewHandlers(eng Syncer, webhook *WebhookSink) *Handlers {
	return &Handlers{engine: eng, webhook: webhook}
}

// HealthCheck reports service identity and status
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"service":   "payout-sync",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// SyncPayouts triggers the daily payout sync. Optional report_start and
// report_end query parameters bound the fetch range; clear_existing
// switches from the idempotent backfill to a full sheet overwrite.
func (h *Handlers) SyncPayouts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	start, err := parseTimeParam(q.Get("report_start"))
	if err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid report_start: %v", err))
		return
	}
	end, err := parseTimeParam(q.Get("report_end"))
	if err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid report_end: %v", err))
		return
	}
	if (start == nil) != (end == nil) {
		respondError(w, http.StatusBadRequest, "report_start and report_end must be provided together")
		return
	}

	clearExisting := false
	if v := q.Get("clear_existing"); v != "" {
		clearExisting, err = strconv.ParseBool(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid clear_existing: %v", err))
			return
		}
	}

	respondResult(w, h.engine.SyncPayouts(r.Context(), start, end, clearExisting))
}

// SyncTodayHourly triggers a refresh of today's cumulative hourly snapshot
func (h *Handlers) SyncTodayHourly(w http.ResponseWriter, r *http.Request) {
	respondResult(w, h.engine.SyncTodayHourly(r.Context()))
}

// Finalize converts LIVE rows for the given date (default yesterday) to FINAL
func (h *Handlers) Finalize(w http.ResponseWriter, r *http.Request) {
	respondResult(w, h.engine.FinalizeDate(r.Context(), r.URL.Query().Get("date")))
}

// CleanupDuplicates collapses duplicate row groups, optionally for one date
func (h *Handlers) CleanupDuplicates(w http.ResponseWriter, r *http.Request) {
	respondResult(w, h.engine.CleanupDuplicates(r.Context(), r.URL.Query().Get("date")))
}

// RingbaWebhook appends an inbound webhook payload to the passthrough sheet
func (h *Handlers) RingbaWebhook(w http.ResponseWriter, r *http.Request) {
	if h.webhook == nil {
		respondError(w, http.StatusNotFound, "webhook sink not configured")
		return
	}

	var payload map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON payload: %v", err))
		return
	}

	if err := h.webhook.Append(r.Context(), payload); err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to record payload: %v", err))
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

// parseTimeParam accepts RFC3339 or a bare YYYY-MM-DD date (UTC midnight).
func parseTimeParam(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		t = t.UTC()
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, fmt.Errorf("%q is not RFC3339 or YYYY-MM-DD", v)
	}
	return &t, nil
}

// respondResult maps an engine outcome to an HTTP status: run failures are
// 500, everything else (including skips) is 200 with the result body.
func respondResult(w http.ResponseWriter, res engine.Result) {
	status := http.StatusOK
	if res.Status == engine.StatusError {
		status = http.StatusInternalServerError
	}
	respondJSON(w, status, res)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
