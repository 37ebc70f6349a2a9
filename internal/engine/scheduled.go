package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ignite/payout-sync/internal/ringba"
)

// Scheduled entry points. Each one catches and logs every failure from
// its own run and returns a Result instead of an error: a failed
// scheduled run must not crash the scheduler or block the next one.
// Partial writes are an accepted risk — the next refresh re-fetches and
// re-replaces the bucket.

// RunScheduledHourlyRefresh refreshes today's cumulative hourly snapshot.
func (e *Engine) RunScheduledHourlyRefresh(ctx context.Context) Result {
	res := e.SyncTodayHourly(ctx)
	logResult("hourly refresh", res)
	return res
}

// RunScheduledFinalize sweeps both sheets and finalizes every LIVE row
// dated before today. Today's rows stay LIVE until tomorrow's sweep, so a
// misfiring trigger can never close the still-open bucket.
func (e *Engine) RunScheduledFinalize(ctx context.Context) Result {
	res := e.finalizeBefore(ctx, e.localToday())
	logResult("finalize", res)
	return res
}

// RunScheduledDailyBackfill writes yesterday's finalized data to the
// daily sheet. On Mondays it catches up the whole weekend (Friday through
// Sunday) in one pass, since the service does not operate on weekends.
func (e *Engine) RunScheduledDailyBackfill(ctx context.Context) Result {
	res := e.backfillDates(ctx, e.catchUpDates())
	logResult("daily backfill", res)
	return res
}

// catchUpDates returns the historical dates the scheduled backfill should
// cover: yesterday, extended back through Friday when running on a Monday.
func (e *Engine) catchUpDates() []string {
	now := e.now().In(e.cfg.Location)

	back := 1
	if now.Weekday() == time.Monday {
		back = 3
	}

	dates := make([]string, 0, back)
	for i := back; i >= 1; i-- {
		dates = append(dates, now.AddDate(0, 0, -i).Format("2006-01-02"))
	}
	return dates
}

// backfillDates fetches each historical date separately and runs the
// idempotent backfill write for the combined record set.
func (e *Engine) backfillDates(ctx context.Context, dates []string) Result {
	res := Result{RunID: newRunID()}

	var all []ringba.PayoutRecord
	for _, date := range dates {
		startUTC, endUTC, err := e.dayRangeUTC(date)
		if err != nil {
			return res.fail(err)
		}
		records, err := e.fetcher.FetchPayouts(ctx, startUTC, endUTC, e.groupDims())
		if err != nil {
			return res.fail(fmt.Errorf("fetch for %s failed: %w", date, err))
		}
		all = append(all, records...)
	}

	all = e.dropToday(all)
	if len(all) == 0 {
		res.Status = StatusSuccess
		res.Message = fmt.Sprintf("no payout records for %v", dates)
		return res
	}

	return e.backfillDaily(ctx, res, all)
}

func logResult(job string, res Result) {
	if res.Status == StatusError {
		log.Printf("[Engine] scheduled %s failed (run %s): %s", job, res.RunID, res.Message)
		return
	}
	log.Printf("[Engine] scheduled %s %s (run %s): %s (written=%d deleted=%d finalized=%d errors=%d)",
		job, res.Status, res.RunID, res.Message, res.RowsWritten, res.RowsDeleted, res.RowsFinalized, res.StoreErrors)
}
