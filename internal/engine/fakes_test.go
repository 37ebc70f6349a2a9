package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/ignite/payout-sync/internal/ringba"
)

// fakeStore is an in-memory RowStore with the same positional semantics
// as the real sheet: 1-indexed rows, row 1 is the header, deletions shift
// later rows up.
type fakeStore struct {
	rows        [][]string
	deleteCalls []int
	failDelete  map[int]bool
	failPatch   map[int]bool
}

func newFakeStore(rows ...[]string) *fakeStore {
	return &fakeStore{rows: rows}
}

func (f *fakeStore) ReadAll(ctx context.Context) ([][]string, error) {
	out := make([][]string, len(f.rows))
	for i, row := range f.rows {
		out[i] = append([]string(nil), row...)
	}
	return out, nil
}

func (f *fakeStore) WriteHeader(ctx context.Context, names []string) error {
	if len(f.rows) == 0 {
		f.rows = append(f.rows, nil)
	}
	f.rows[0] = append([]string(nil), names...)
	return nil
}

func (f *fakeStore) OverwriteRange(ctx context.Context, startRow int, rows [][]string) error {
	for i, row := range rows {
		pos := startRow + i
		for len(f.rows) < pos {
			f.rows = append(f.rows, nil)
		}
		f.rows[pos-1] = append([]string(nil), row...)
	}
	return nil
}

func (f *fakeStore) AppendAfterLast(ctx context.Context, rows [][]string) error {
	for _, row := range rows {
		f.rows = append(f.rows, append([]string(nil), row...))
	}
	return nil
}

func (f *fakeStore) DeleteRow(ctx context.Context, position int) error {
	f.deleteCalls = append(f.deleteCalls, position)
	if f.failDelete[position] {
		return fmt.Errorf("injected delete failure at row %d", position)
	}
	if position < 1 || position > len(f.rows) {
		return fmt.Errorf("row %d out of range", position)
	}
	f.rows = append(f.rows[:position-1], f.rows[position:]...)
	return nil
}

func (f *fakeStore) PatchCell(ctx context.Context, row, col int, value string) error {
	if f.failPatch[row] {
		return fmt.Errorf("injected patch failure at row %d", row)
	}
	if row < 1 || row > len(f.rows) {
		return fmt.Errorf("row %d out of range", row)
	}
	cells := f.rows[row-1]
	for len(cells) < col {
		cells = append(cells, "")
	}
	cells[col-1] = value
	f.rows[row-1] = cells
	return nil
}

// dataRows returns everything below the header.
func (f *fakeStore) dataRows() [][]string {
	if len(f.rows) <= 1 {
		return nil
	}
	return f.rows[1:]
}

type fetchCall struct {
	start, end time.Time
	groupBy    []ringba.Dimension
}

// fakeFetcher returns canned records per call via fn.
type fakeFetcher struct {
	fn    func(start, end time.Time) ([]ringba.PayoutRecord, error)
	calls []fetchCall
}

func (f *fakeFetcher) FetchPayouts(ctx context.Context, startUTC, endUTC time.Time, groupBy []ringba.Dimension) ([]ringba.PayoutRecord, error) {
	f.calls = append(f.calls, fetchCall{start: startUTC, end: endUTC, groupBy: groupBy})
	if f.fn == nil {
		return nil, nil
	}
	return f.fn(startUTC, endUTC)
}

// newTestEngine builds an engine over fakes with a fixed clock.
func newTestEngine(fetcher *fakeFetcher, daily, hourly *fakeStore, now time.Time) *Engine {
	e := New(fetcher, daily, hourly, Config{
		Location:        time.UTC,
		WindowOpenHour:  9,
		WindowCloseHour: 21,
	})
	e.now = func() time.Time { return now }
	return e
}
