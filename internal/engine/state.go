package engine

import (
	"context"
	"log"
	"sort"
	"strconv"
	"strings"

	"github.com/ignite/payout-sync/internal/ringba"
)

// sheetRow is one data row together with its current sheet position.
type sheetRow struct {
	pos   int // 1-indexed sheet position, >= 2
	cells []string
}

// sheetState is an in-memory snapshot of a worksheet. All destructive
// passes work against this buffer: rows are marked by key, the final
// write set is computed, and only then are store calls issued.
type sheetState struct {
	header []string
	rows   []sheetRow
}

// loadState reads the full worksheet into memory.
func loadState(ctx context.Context, store RowStore) (*sheetState, error) {
	all, err := store.ReadAll(ctx)
	if err != nil {
		return nil, err
	}

	state := &sheetState{}
	for i, cells := range all {
		if i == 0 {
			state.header = cells
			continue
		}
		state.rows = append(state.rows, sheetRow{pos: i + 1, cells: cells})
	}
	return state, nil
}

func cellAt(cells []string, idx int) string {
	if idx < 0 || idx >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[idx])
}

func (r sheetRow) date(s Schema) string   { return cellAt(r.cells, s.Date) }
func (r sheetRow) status(s Schema) string { return strings.ToUpper(cellAt(r.cells, s.Status)) }
func (r sheetRow) hour(s Schema) string   { return cellAt(r.cells, s.Hour) }

// groupKey is the row's (publisher, campaign[, target]) identity.
func (r sheetRow) groupKey(s Schema) string {
	return cellAt(r.cells, s.Publisher) + "\x00" + cellAt(r.cells, s.Campaign) + "\x00" + cellAt(r.cells, s.Target)
}

// hasFinalForDate reports whether any row for the date is FINAL. Once
// true, no LIVE write for that date may be persisted.
func (st *sheetState) hasFinalForDate(s Schema, date string) bool {
	for _, row := range st.rows {
		if row.date(s) == date && row.status(s) == StatusFinal {
			return true
		}
	}
	return false
}

// positionsWhere returns sheet positions of rows matching the predicate.
func (st *sheetState) positionsWhere(match func(sheetRow) bool) []int {
	var positions []int
	for _, row := range st.rows {
		if match(row) {
			positions = append(positions, row.pos)
		}
	}
	return positions
}

// deleteRows removes the given positions, issuing deletes in descending
// order so earlier deletions do not shift the remaining targets. A failed
// delete is logged and counted; the batch continues.
func deleteRows(ctx context.Context, store RowStore, positions []int) (deleted, failed int) {
	sort.Sort(sort.Reverse(sort.IntSlice(positions)))
	for _, pos := range positions {
		if err := store.DeleteRow(ctx, pos); err != nil {
			log.Printf("[Engine] failed to delete row %d: %v", pos, err)
			failed++
			continue
		}
		deleted++
	}
	return deleted, failed
}

// rowForRecord renders a payout record as a sheet row in schema order.
func rowForRecord(rec ringba.PayoutRecord, s Schema, status, hourBucket string) []string {
	cells := make([]string, s.Width)
	set := func(idx int, val string) {
		if idx >= 0 {
			cells[idx] = val
		}
	}
	set(s.Date, rec.Date)
	set(s.Publisher, rec.Publisher)
	set(s.Campaign, rec.Campaign)
	set(s.Target, rec.Target)
	set(s.Payout, rec.Payout.StringFixed(2))
	if s.CompletedCalls >= 0 {
		cells[s.CompletedCalls] = strconv.Itoa(rec.CompletedCalls)
	}
	if s.PaidCalls >= 0 {
		cells[s.PaidCalls] = strconv.Itoa(rec.PaidCalls)
	}
	set(s.Status, status)
	set(s.Hour, hourBucket)
	return cells
}
