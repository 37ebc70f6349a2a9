package engine

import (
	"context"
	"fmt"
	"log"
	"time"
)

// FinalizeDate converts every LIVE row for the given date (default:
// yesterday) to FINAL on both sheets via single-cell status patches. The
// transition touches nothing but the status cell.
//
// A date equal to the run's own current local date is refused: a
// misfiring schedule must never finalize same-day data while its LIVE
// bucket is still open.
func (e *Engine) FinalizeDate(ctx context.Context, date string) Result {
	res := Result{RunID: newRunID()}

	if date == "" {
		date = e.now().In(e.cfg.Location).AddDate(0, 0, -1).Format("2006-01-02")
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return res.fail(fmt.Errorf("invalid date %q (want YYYY-MM-DD)", date))
	}
	if date == e.localToday() {
		res.Status = StatusSkipped
		res.Message = fmt.Sprintf("refusing to finalize today (%s) while its bucket is open", date)
		return res
	}

	match := func(rowDate string) bool { return rowDate == date }
	finalized, failed := e.finalizeMatching(ctx, e.daily, e.dailyLayout(), match)
	res.RowsFinalized += finalized
	res.StoreErrors += failed

	finalized, failed = e.finalizeMatching(ctx, e.hourly, e.hourlyLayout(), match)
	res.RowsFinalized += finalized
	res.StoreErrors += failed

	res.Status = StatusSuccess
	res.Message = fmt.Sprintf("finalized %d rows for %s", res.RowsFinalized, date)
	return res
}

// finalizeBefore converts every LIVE row dated strictly before the given
// local date on both sheets. Used by the scheduled finalize sweep to
// catch lingering LIVE rows from any earlier day.
func (e *Engine) finalizeBefore(ctx context.Context, today string) Result {
	res := Result{RunID: newRunID()}

	match := func(rowDate string) bool { return rowDate != "" && rowDate < today }
	finalized, failed := e.finalizeMatching(ctx, e.daily, e.dailyLayout(), match)
	res.RowsFinalized += finalized
	res.StoreErrors += failed

	finalized, failed = e.finalizeMatching(ctx, e.hourly, e.hourlyLayout(), match)
	res.RowsFinalized += finalized
	res.StoreErrors += failed

	res.Status = StatusSuccess
	res.Message = fmt.Sprintf("finalized %d rows dated before %s", res.RowsFinalized, today)
	return res
}

// finalizeMatching patches LIVE rows whose date matches. Per-patch
// failures are logged and counted; the batch continues with the rest.
func (e *Engine) finalizeMatching(ctx context.Context, store RowStore, layout schemaLayout, match func(date string) bool) (finalized, failed int) {
	state, err := loadState(ctx, store)
	if err != nil {
		log.Printf("[Engine] finalize: read sheet failed: %v", err)
		return 0, 1
	}
	if len(state.rows) == 0 {
		return 0, 0
	}

	schema := resolveSchema(state.header, layout)
	if schema.Status < 0 || schema.Date < 0 {
		log.Printf("[Engine] finalize: sheet has no date/status columns, nothing to do")
		return 0, 0
	}

	for _, row := range state.rows {
		if row.status(schema) != StatusLive || !match(row.date(schema)) {
			continue
		}
		if err := store.PatchCell(ctx, row.pos, schema.Status+1, StatusFinal); err != nil {
			log.Printf("[Engine] failed to finalize row %d: %v", row.pos, err)
			failed++
			continue
		}
		finalized++
	}
	return finalized, failed
}
