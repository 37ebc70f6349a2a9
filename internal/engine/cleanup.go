package engine

import (
	"context"
	"fmt"
	"time"
)

// CleanupDuplicates sweeps both sheets for row groups that share a bucket
// key — (date, hour bucket, publisher, campaign[, target]) — and collapses
// each group to its most recent LIVE row. FINAL rows are never deleted or
// modified; when a key already has a FINAL row, every LIVE row for that
// key is stale and removed.
//
// An optional date restricts the sweep to that reporting date.
func (e *Engine) CleanupDuplicates(ctx context.Context, date string) Result {
	res := Result{RunID: newRunID()}

	if date != "" {
		if _, err := time.Parse("2006-01-02", date); err != nil {
			return res.fail(fmt.Errorf("invalid date %q (want YYYY-MM-DD)", date))
		}
	}

	deleted, failed := e.cleanupStore(ctx, e.daily, e.dailyLayout(), date)
	res.RowsDeleted += deleted
	res.StoreErrors += failed

	deleted, failed = e.cleanupStore(ctx, e.hourly, e.hourlyLayout(), date)
	res.RowsDeleted += deleted
	res.StoreErrors += failed

	res.Status = StatusSuccess
	res.Message = fmt.Sprintf("removed %d duplicate rows", res.RowsDeleted)
	return res
}

func (e *Engine) cleanupStore(ctx context.Context, store RowStore, layout schemaLayout, date string) (deleted, failed int) {
	state, err := loadState(ctx, store)
	if err != nil {
		return 0, 1
	}
	if len(state.rows) == 0 {
		return 0, 0
	}
	schema := resolveSchema(state.header, layout)

	type keyState struct {
		hasFinal  bool
		livePos   []int // positions of LIVE rows, in sheet order
	}
	keys := make(map[string]*keyState)
	order := []string{}

	bucketKey := func(row sheetRow) string {
		// The hour column participates only on the hourly sheet; on the
		// daily sheet the date alone keys the bucket.
		return row.date(schema) + "\x00" + row.hour(schema) + "\x00" + row.groupKey(schema)
	}

	for _, row := range state.rows {
		if date != "" && row.date(schema) != date {
			continue
		}
		key := bucketKey(row)
		ks, ok := keys[key]
		if !ok {
			ks = &keyState{}
			keys[key] = ks
			order = append(order, key)
		}
		switch row.status(schema) {
		case StatusFinal:
			ks.hasFinal = true
		case StatusLive:
			ks.livePos = append(ks.livePos, row.pos)
		}
	}

	var stale []int
	for _, key := range order {
		ks := keys[key]
		switch {
		case ks.hasFinal:
			// FINAL supersedes: every LIVE row for this key is stale.
			stale = append(stale, ks.livePos...)
		case len(ks.livePos) > 1:
			// Keep the most recent (highest position) LIVE row.
			stale = append(stale, ks.livePos[:len(ks.livePos)-1]...)
		}
	}

	return deleteRows(ctx, store, stale)
}
