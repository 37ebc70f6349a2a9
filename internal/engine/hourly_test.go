package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/payout-sync/internal/ringba"
)

var hourlyHeader = []string{"Date", "Publisher", "Campaign", "Payout", "Status", "Hour"}

func TestSyncTodayHourlySkipsWhenFinal(t *testing.T) {
	hourly := newFakeStore(
		hourlyHeader,
		[]string{"2026-03-09", "Acme Leads", "Medicare", "50.00", "FINAL", "2026-03-09 21:00"},
	)
	fetcher := &fakeFetcher{}
	e := newTestEngine(fetcher, newFakeStore(), hourly, monday)

	res := e.SyncTodayHourly(context.Background())

	assert.Equal(t, StatusSkipped, res.Status)
	assert.Empty(t, fetcher.calls, "no fetch once the day is finalized")
	assert.Empty(t, hourly.deleteCalls)
	require.Len(t, hourly.dataRows(), 1, "finalized row untouched")
}

func TestSyncTodayHourlyWritesCumulativeTotals(t *testing.T) {
	// Activity lands in the 09:00 hour only. At 10:15 the refresh must
	// still carry those totals: a quiet hour never resets the running sum.
	fetcher := &fakeFetcher{fn: func(start, end time.Time) ([]ringba.PayoutRecord, error) {
		if start.Hour() == 9 {
			return []ringba.PayoutRecord{record("2026-03-09", "Acme Leads", "Medicare", 100)}, nil
		}
		return nil, nil
	}}
	hourly := newFakeStore(
		hourlyHeader,
		[]string{"2026-03-09", "Acme Leads", "Medicare", "100.00", "LIVE", "2026-03-09 09:00"},
	)
	e := newTestEngine(fetcher, newFakeStore(), hourly, monday)

	res := e.SyncTodayHourly(context.Background())

	require.Equal(t, StatusSuccess, res.Status, res.Message)
	require.Len(t, fetcher.calls, 2, "one fetch per hour from window open through now")
	assert.Equal(t, 1, res.RowsDeleted, "previous LIVE snapshot replaced")
	require.Len(t, hourly.dataRows(), 1)

	row := hourly.dataRows()[0]
	assert.Equal(t, "100.00", row[3])
	assert.Equal(t, StatusLive, row[4])
	assert.Equal(t, "2026-03-09 10:00", row[5])
}

func TestSyncTodayHourlySumsAcrossHours(t *testing.T) {
	fetcher := &fakeFetcher{fn: func(start, end time.Time) ([]ringba.PayoutRecord, error) {
		// The same grouping key appears every hour and must sum, not
		// last-win.
		return []ringba.PayoutRecord{record("2026-03-09", "Acme Leads", "Medicare", 25.25)}, nil
	}}
	hourly := newFakeStore()
	e := newTestEngine(fetcher, newFakeStore(), hourly, monday)

	res := e.SyncTodayHourly(context.Background())

	require.Equal(t, StatusSuccess, res.Status, res.Message)
	require.Len(t, hourly.dataRows(), 1)
	assert.Equal(t, "50.50", hourly.dataRows()[0][3], "hours 09 and 10 summed")
}

func TestSyncTodayHourlyFetchErrorLeavesSnapshotIntact(t *testing.T) {
	fetcher := &fakeFetcher{fn: func(start, end time.Time) ([]ringba.PayoutRecord, error) {
		return nil, assert.AnError
	}}
	hourly := newFakeStore(
		hourlyHeader,
		[]string{"2026-03-09", "Acme Leads", "Medicare", "75.00", "LIVE", "2026-03-09 09:00"},
	)
	e := newTestEngine(fetcher, newFakeStore(), hourly, monday)

	res := e.SyncTodayHourly(context.Background())

	assert.Equal(t, StatusError, res.Status)
	assert.Empty(t, hourly.deleteCalls, "no delete before a successful fetch")
	require.Len(t, hourly.dataRows(), 1)
	assert.Equal(t, "75.00", hourly.dataRows()[0][3])
}

func TestSyncTodayHourlyBeforeWindowOpen(t *testing.T) {
	early := time.Date(2026, 3, 9, 7, 30, 0, 0, time.UTC)
	fetcher := &fakeFetcher{}
	e := newTestEngine(fetcher, newFakeStore(), newFakeStore(), early)

	res := e.SyncTodayHourly(context.Background())

	require.Equal(t, StatusSuccess, res.Status)
	require.Len(t, fetcher.calls, 1, "only the current hour before the window opens")
	assert.Equal(t, 7, fetcher.calls[0].start.Hour())
}

func TestSyncTodayHourlyPreservesOtherDates(t *testing.T) {
	fetcher := &fakeFetcher{fn: func(start, end time.Time) ([]ringba.PayoutRecord, error) {
		if start.Hour() == 10 {
			return []ringba.PayoutRecord{record("2026-03-09", "Acme Leads", "Medicare", 10)}, nil
		}
		return nil, nil
	}}
	hourly := newFakeStore(
		hourlyHeader,
		[]string{"2026-03-06", "Acme Leads", "Medicare", "500.00", "FINAL", "2026-03-06 21:00"},
		[]string{"2026-03-09", "Beta Calls", "Medicare", "5.00", "LIVE", "2026-03-09 09:00"},
	)
	e := newTestEngine(fetcher, newFakeStore(), hourly, monday)

	res := e.SyncTodayHourly(context.Background())

	require.Equal(t, StatusSuccess, res.Status, res.Message)
	rows := hourly.dataRows()
	require.Len(t, rows, 2)
	assert.Equal(t, "2026-03-06", rows[0][0], "prior day's FINAL row untouched")
	assert.Equal(t, "Acme Leads", rows[1][1], "today's stale LIVE row replaced")
}
