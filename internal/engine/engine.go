// Package engine implements the reconciliation core: it decides which
// time bucket to fetch from the reporting API, how fetched rows merge
// with or replace what the sheet already holds, and when provisional
// LIVE rows become permanent FINAL rows.
package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/payout-sync/internal/ringba"
)

// Result is the structured outcome of a trigger. Manual triggers return
// it to the caller; scheduled triggers log it.
type Result struct {
	RunID         string `json:"run_id"`
	Status        string `json:"status"` // success | skipped | error
	Message       string `json:"message"`
	RowsWritten   int    `json:"rows_written"`
	RowsDeleted   int    `json:"rows_deleted"`
	RowsFinalized int    `json:"rows_finalized"`
	StoreErrors   int    `json:"store_errors,omitempty"`
}

const (
	StatusSuccess = "success"
	StatusSkipped = "skipped"
	StatusError   = "error"
)

// newRunID tags each engine run for log correlation.
func newRunID() string {
	return uuid.NewString()
}

// Config holds reconciliation engine settings
type Config struct {
	Location          *time.Location
	WindowOpenHour    int
	WindowCloseHour   int
	IncludeTarget     bool
	IncludeCallCounts bool
}

// Engine is the reconciliation core. It is single-writer by design: the
// scheduler and the manual trigger surface never run jobs concurrently.
type Engine struct {
	fetcher Fetcher
	daily   RowStore
	hourly  RowStore
	cfg     Config

	now func() time.Time // injectable clock for tests
}

// New creates a reconciliation engine over the given fetcher and the
// daily and hourly sheet stores.
func New(fetcher Fetcher, daily, hourly RowStore, cfg Config) *Engine {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.WindowOpenHour == 0 {
		cfg.WindowOpenHour = 9
	}
	if cfg.WindowCloseHour == 0 {
		cfg.WindowCloseHour = 21
	}
	return &Engine{
		fetcher: fetcher,
		daily:   daily,
		hourly:  hourly,
		cfg:     cfg,
		now:     time.Now,
	}
}

func (e *Engine) groupDims() []ringba.Dimension {
	dims := []ringba.Dimension{ringba.DimensionPublisher, ringba.DimensionCampaign}
	if e.cfg.IncludeTarget {
		dims = append(dims, ringba.DimensionTarget)
	}
	return dims
}

func (e *Engine) dailyLayout() schemaLayout {
	return schemaLayout{includeTarget: e.cfg.IncludeTarget, includeCallCounts: e.cfg.IncludeCallCounts}
}

func (e *Engine) hourlyLayout() schemaLayout {
	return schemaLayout{includeTarget: e.cfg.IncludeTarget, includeCallCounts: e.cfg.IncludeCallCounts, hourly: true}
}

// localToday returns the current calendar date in the operating zone.
func (e *Engine) localToday() string {
	return e.now().In(e.cfg.Location).Format("2006-01-02")
}

// dayRangeUTC converts a local calendar date to its [start, end) UTC range.
func (e *Engine) dayRangeUTC(date string) (time.Time, time.Time, error) {
	day, err := time.ParseInLocation("2006-01-02", date, e.cfg.Location)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD): %w", date, err)
	}
	return day.UTC(), day.AddDate(0, 0, 1).UTC(), nil
}

// dropToday removes records whose date equals the run's own current local
// date. Such records belong to the still-open LIVE bucket, not to a
// historical write.
func (e *Engine) dropToday(records []ringba.PayoutRecord) []ringba.PayoutRecord {
	today := e.localToday()
	kept := records[:0]
	for _, rec := range records {
		if rec.Date == today {
			log.Printf("[Engine] dropping record dated today (%s) from historical write: %s / %s", today, rec.Publisher, rec.Campaign)
			continue
		}
		kept = append(kept, rec)
	}
	return kept
}

// SyncPayouts pulls aggregated payouts for the given UTC range (default:
// yesterday's local day) and writes them to the daily sheet as FINAL rows.
//
// With clearExisting, the header is rewritten and the entire data region
// replaced. Otherwise the historical backfill path runs per date: lingering
// LIVE rows are finalized, every existing row for the date is deleted, and
// fresh FINAL rows are appended — so re-running the same backfill never
// duplicates rows.
func (e *Engine) SyncPayouts(ctx context.Context, start, end *time.Time, clearExisting bool) Result {
	res := Result{RunID: newRunID()}

	var startUTC, endUTC time.Time
	if start != nil && end != nil {
		startUTC, endUTC = start.UTC(), end.UTC()
	} else {
		yesterday := e.now().In(e.cfg.Location).AddDate(0, 0, -1).Format("2006-01-02")
		var err error
		startUTC, endUTC, err = e.dayRangeUTC(yesterday)
		if err != nil {
			return res.fail(err)
		}
	}

	records, err := e.fetcher.FetchPayouts(ctx, startUTC, endUTC, e.groupDims())
	if err != nil {
		return res.fail(fmt.Errorf("fetch failed: %w", err))
	}

	records = e.dropToday(records)
	if len(records) == 0 {
		res.Status = StatusSuccess
		res.Message = "no payout records for range"
		return res
	}

	if clearExisting {
		return e.overwriteDaily(ctx, res, records)
	}
	return e.backfillDaily(ctx, res, records)
}

// overwriteDaily rewrites the header and replaces the whole data region
// with FINAL rows.
func (e *Engine) overwriteDaily(ctx context.Context, res Result, records []ringba.PayoutRecord) Result {
	state, err := loadState(ctx, e.daily)
	if err != nil {
		return res.fail(fmt.Errorf("read sheet failed: %w", err))
	}

	layout := e.dailyLayout()
	if err := e.daily.WriteHeader(ctx, expectedHeader(layout)); err != nil {
		return res.fail(fmt.Errorf("write header failed: %w", err))
	}
	schema := resolveSchema(expectedHeader(layout), layout)

	rows := make([][]string, len(records))
	for i, rec := range records {
		rows[i] = rowForRecord(rec, schema, StatusFinal, "")
	}
	if err := e.daily.OverwriteRange(ctx, 2, rows); err != nil {
		return res.fail(fmt.Errorf("overwrite failed: %w", err))
	}
	res.RowsWritten = len(rows)

	// Trim stale rows left below the new data region.
	var stale []int
	for _, row := range state.rows {
		if row.pos > len(rows)+1 {
			stale = append(stale, row.pos)
		}
	}
	deleted, failed := deleteRows(ctx, e.daily, stale)
	res.RowsDeleted = deleted
	res.StoreErrors = failed

	res.Status = StatusSuccess
	res.Message = fmt.Sprintf("overwrote daily sheet with %d rows", len(rows))
	return res
}

// backfillDaily runs the idempotent historical write: finalize lingering
// LIVE rows for the target dates, delete all rows (LIVE and FINAL) for
// those dates, then append fresh FINAL rows.
func (e *Engine) backfillDaily(ctx context.Context, res Result, records []ringba.PayoutRecord) Result {
	state, err := loadState(ctx, e.daily)
	if err != nil {
		return res.fail(fmt.Errorf("read sheet failed: %w", err))
	}

	schema, _, err := ensureSchema(ctx, e.daily, state.header, e.dailyLayout())
	if err != nil {
		return res.fail(fmt.Errorf("header migration failed: %w", err))
	}

	dates := make(map[string]bool)
	for _, rec := range records {
		dates[rec.Date] = true
	}

	// Step 1: finalize any lingering LIVE rows for the target dates.
	for _, row := range state.rows {
		if dates[row.date(schema)] && row.status(schema) == StatusLive {
			if err := e.daily.PatchCell(ctx, row.pos, schema.Status+1, StatusFinal); err != nil {
				log.Printf("[Engine] failed to finalize row %d: %v", row.pos, err)
				res.StoreErrors++
				continue
			}
			res.RowsFinalized++
		}
	}

	// Step 2: delete every existing row for the target dates.
	stale := state.positionsWhere(func(row sheetRow) bool {
		return dates[row.date(schema)]
	})
	deleted, failed := deleteRows(ctx, e.daily, stale)
	res.RowsDeleted = deleted
	res.StoreErrors += failed

	// Step 3: append the fresh FINAL rows.
	rows := make([][]string, len(records))
	for i, rec := range records {
		rows[i] = rowForRecord(rec, schema, StatusFinal, "")
	}
	if err := e.daily.AppendAfterLast(ctx, rows); err != nil {
		return res.fail(fmt.Errorf("append failed: %w", err))
	}
	res.RowsWritten = len(rows)

	res.Status = StatusSuccess
	res.Message = fmt.Sprintf("backfilled %d rows across %d dates", len(rows), len(dates))
	return res
}

func (r Result) fail(err error) Result {
	r.Status = StatusError
	r.Message = err.Error()
	return r
}
