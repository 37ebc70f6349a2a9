package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/ignite/payout-sync/internal/ringba"
)

// SyncTodayHourly refreshes the hourly sheet with the cumulative running
// total for today: the sum of every hour's raw fetch from the operating
// window's opening hour through the current hour, grouped by
// (publisher, campaign[, target]). Writing the running total rather than
// the latest hour's delta means a quiet hour never erases earlier hours'
// contributions.
//
// The refresh is a delete-then-insert: existing LIVE rows for today are
// removed and the fresh cumulative set is appended tagged LIVE with the
// current hour bucket. If today already has FINAL rows the refresh is
// skipped entirely — FINAL is a one-way door.
func (e *Engine) SyncTodayHourly(ctx context.Context) Result {
	res := Result{RunID: newRunID()}

	now := e.now().In(e.cfg.Location)
	today := now.Format("2006-01-02")

	state, err := loadState(ctx, e.hourly)
	if err != nil {
		return res.fail(fmt.Errorf("read sheet failed: %w", err))
	}

	schema, _, err := ensureSchema(ctx, e.hourly, state.header, e.hourlyLayout())
	if err != nil {
		return res.fail(fmt.Errorf("header migration failed: %w", err))
	}

	if state.hasFinalForDate(schema, today) {
		res.Status = StatusSkipped
		res.Message = fmt.Sprintf("today (%s) already finalized, skipping hourly refresh", today)
		return res
	}

	records, err := e.cumulativeThroughHour(ctx, now)
	if err != nil {
		// Fetch failed: abort before any write so the sheet keeps its
		// previous snapshot intact.
		return res.fail(fmt.Errorf("fetch failed: %w", err))
	}
	if len(records) == 0 {
		res.Status = StatusSuccess
		res.Message = "no activity yet today"
		return res
	}

	hourBucket := fmt.Sprintf("%s %02d:00", today, now.Hour())

	// Replace today's LIVE rows. FINAL rows for other dates on this sheet
	// are untouched.
	stale := state.positionsWhere(func(row sheetRow) bool {
		return row.date(schema) == today && row.status(schema) == StatusLive
	})
	deleted, failed := deleteRows(ctx, e.hourly, stale)
	res.RowsDeleted = deleted
	res.StoreErrors = failed

	rows := make([][]string, len(records))
	for i, rec := range records {
		rows[i] = rowForRecord(rec, schema, StatusLive, hourBucket)
	}
	if err := e.hourly.AppendAfterLast(ctx, rows); err != nil {
		return res.fail(fmt.Errorf("append failed: %w", err))
	}
	res.RowsWritten = len(rows)

	res.Status = StatusSuccess
	res.Message = fmt.Sprintf("wrote %d cumulative rows for %s", len(rows), hourBucket)
	return res
}

// cumulativeThroughHour fetches each hour of today from the window's
// opening hour through the current hour and sums the results by grouping
// key. Duplicate keys within a single fetch sum under the same rule.
func (e *Engine) cumulativeThroughHour(ctx context.Context, now time.Time) ([]ringba.PayoutRecord, error) {
	today := now.Format("2006-01-02")

	fromHour := e.cfg.WindowOpenHour
	if now.Hour() < fromHour {
		fromHour = now.Hour()
	}

	var all []ringba.PayoutRecord
	for h := fromHour; h <= now.Hour(); h++ {
		start := time.Date(now.Year(), now.Month(), now.Day(), h, 0, 0, 0, e.cfg.Location)
		end := start.Add(time.Hour)

		records, err := e.fetcher.FetchPayouts(ctx, start.UTC(), end.UTC(), e.groupDims())
		if err != nil {
			return nil, fmt.Errorf("hour %02d fetch: %w", h, err)
		}
		all = append(all, records...)
	}

	merged := ringba.MergeByKey(all)
	for i := range merged {
		merged[i].Date = today
	}
	return merged, nil
}
