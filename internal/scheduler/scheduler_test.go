package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ignite/payout-sync/internal/engine"
)

type fakeJobs struct {
	hourly, finalize, backfill int
}

func (f *fakeJobs) RunScheduledHourlyRefresh(ctx context.Context) engine.Result {
	f.hourly++
	return engine.Result{Status: engine.StatusSuccess}
}

func (f *fakeJobs) RunScheduledFinalize(ctx context.Context) engine.Result {
	f.finalize++
	return engine.Result{Status: engine.StatusSuccess}
}

func (f *fakeJobs) RunScheduledDailyBackfill(ctx context.Context) engine.Result {
	f.backfill++
	return engine.Result{Status: engine.StatusSuccess}
}

func newTestScheduler(jobs Jobs, at time.Time) *Scheduler {
	s := New(jobs, Config{
		Location:        time.UTC,
		WindowOpenHour:  9,
		WindowCloseHour: 21,
		HourlyMinute:    5,
		FinalizeHour:    23,
		FinalizeMinute:  30,
		BackfillHour:    7,
		BackfillMinute:  5,
	})
	s.ctx = context.Background()
	s.now = func() time.Time { return at }
	return s
}

func TestHourlyFiresOncePerHourWithinWindow(t *testing.T) {
	jobs := &fakeJobs{}
	s := newTestScheduler(jobs, time.Date(2026, 3, 9, 10, 5, 0, 0, time.UTC))

	s.tick()
	s.tick()
	assert.Equal(t, 1, jobs.hourly, "repeat ticks in the same hour do not re-fire")

	s.now = func() time.Time { return time.Date(2026, 3, 9, 11, 5, 0, 0, time.UTC) }
	s.tick()
	assert.Equal(t, 2, jobs.hourly)
}

func TestHourlyDoesNotFireOutsideWindow(t *testing.T) {
	jobs := &fakeJobs{}
	s := newTestScheduler(jobs, time.Date(2026, 3, 9, 8, 5, 0, 0, time.UTC))

	s.tick()
	assert.Zero(t, jobs.hourly)

	s.now = func() time.Time { return time.Date(2026, 3, 9, 22, 5, 0, 0, time.UTC) }
	s.tick()
	assert.Zero(t, jobs.hourly)
}

func TestHourlyWaitsForConfiguredMinute(t *testing.T) {
	jobs := &fakeJobs{}
	s := newTestScheduler(jobs, time.Date(2026, 3, 9, 10, 2, 0, 0, time.UTC))

	s.tick()
	assert.Zero(t, jobs.hourly, "too early within the hour")

	s.now = func() time.Time { return time.Date(2026, 3, 9, 10, 5, 30, 0, time.UTC) }
	s.tick()
	assert.Equal(t, 1, jobs.hourly)
}

func TestFinalizeFiresOncePerDay(t *testing.T) {
	jobs := &fakeJobs{}
	s := newTestScheduler(jobs, time.Date(2026, 3, 9, 23, 30, 0, 0, time.UTC))

	s.tick()
	s.tick()
	assert.Equal(t, 1, jobs.finalize)

	s.now = func() time.Time { return time.Date(2026, 3, 10, 23, 31, 0, 0, time.UTC) }
	s.tick()
	assert.Equal(t, 2, jobs.finalize)
}

func TestBackfillFiresAtMorningTime(t *testing.T) {
	jobs := &fakeJobs{}
	s := newTestScheduler(jobs, time.Date(2026, 3, 9, 7, 4, 0, 0, time.UTC))

	s.tick()
	assert.Zero(t, jobs.backfill)

	s.now = func() time.Time { return time.Date(2026, 3, 9, 7, 5, 0, 0, time.UTC) }
	s.tick()
	assert.Equal(t, 1, jobs.backfill)
	assert.Zero(t, jobs.hourly, "07:05 is outside the hourly window")
}

func TestStartStop(t *testing.T) {
	s := New(&fakeJobs{}, Config{Location: time.UTC})

	s.Start()
	s.Start() // second Start is a no-op
	s.Stop()
	s.Stop() // second Stop is a no-op
}
