// Package scheduler drives the engine's scheduled jobs off the wall
// clock in the operating time zone.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/ignite/payout-sync/internal/engine"
)

// Jobs is the set of scheduled engine entry points the driver fires.
type Jobs interface {
	RunScheduledHourlyRefresh(ctx context.Context) engine.Result
	RunScheduledFinalize(ctx context.Context) engine.Result
	RunScheduledDailyBackfill(ctx context.Context) engine.Result
}

// Config holds the trigger times, all interpreted in Location.
type Config struct {
	Location *time.Location

	// Hourly refresh fires at HourlyMinute past each hour within
	// [WindowOpenHour, WindowCloseHour].
	WindowOpenHour  int
	WindowCloseHour int
	HourlyMinute    int

	FinalizeHour   int
	FinalizeMinute int

	BackfillHour   int
	BackfillMinute int

	JobTimeout time.Duration
}

// Scheduler fires engine jobs at their configured local times. Jobs run
// sequentially on a single goroutine so the engine never sees two
// concurrent writers.
type Scheduler struct {
	jobs Jobs
	cfg  Config

	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	now func() time.Time // injectable clock for tests

	// Last fired slot per job, to fire at most once per slot even though
	// the loop polls more often.
	lastHourly   string
	lastFinalize string
	lastBackfill string
}

// New creates a scheduler over the given jobs.
func New(jobs Jobs, cfg Config) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.WindowCloseHour == 0 {
		cfg.WindowCloseHour = 21
	}
	if cfg.JobTimeout == 0 {
		cfg.JobTimeout = 10 * time.Minute
	}
	return &Scheduler{
		jobs: jobs,
		cfg:  cfg,
		now:  time.Now,
	}
}

// Start begins the scheduling loop
func (s *Scheduler) Start() {
	if s.running {
		return
	}

	s.running = true
	s.ctx, s.cancel = context.WithCancel(context.Background())

	log.Printf("[Scheduler] Starting in %s (hourly window %02d:00-%02d:00, finalize %02d:%02d, backfill %02d:%02d)",
		s.cfg.Location, s.cfg.WindowOpenHour, s.cfg.WindowCloseHour,
		s.cfg.FinalizeHour, s.cfg.FinalizeMinute, s.cfg.BackfillHour, s.cfg.BackfillMinute)

	s.wg.Add(1)
	go s.runLoop()
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	if !s.running {
		return
	}

	log.Println("[Scheduler] Stopping...")
	s.cancel()
	s.wg.Wait()
	s.running = false
	log.Println("[Scheduler] Stopped")
}

func (s *Scheduler) runLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// tick checks every job against the current local time and fires the due
// ones in a fixed order. Backfill runs before finalize so a same-minute
// collision still finalizes what the backfill wrote.
func (s *Scheduler) tick() {
	now := s.now().In(s.cfg.Location)

	if slot, due := s.backfillDue(now); due {
		s.lastBackfill = slot
		s.run("daily backfill", s.jobs.RunScheduledDailyBackfill)
	}
	if slot, due := s.finalizeDue(now); due {
		s.lastFinalize = slot
		s.run("finalize", s.jobs.RunScheduledFinalize)
	}
	if slot, due := s.hourlyDue(now); due {
		s.lastHourly = slot
		s.run("hourly refresh", s.jobs.RunScheduledHourlyRefresh)
	}
}

func (s *Scheduler) hourlyDue(now time.Time) (string, bool) {
	if now.Hour() < s.cfg.WindowOpenHour || now.Hour() > s.cfg.WindowCloseHour {
		return "", false
	}
	if now.Minute() < s.cfg.HourlyMinute {
		return "", false
	}
	slot := now.Format("2006-01-02 15")
	return slot, slot != s.lastHourly
}

func (s *Scheduler) finalizeDue(now time.Time) (string, bool) {
	if !timeReached(now, s.cfg.FinalizeHour, s.cfg.FinalizeMinute) {
		return "", false
	}
	slot := now.Format("2006-01-02")
	return slot, slot != s.lastFinalize
}

func (s *Scheduler) backfillDue(now time.Time) (string, bool) {
	if !timeReached(now, s.cfg.BackfillHour, s.cfg.BackfillMinute) {
		return "", false
	}
	slot := now.Format("2006-01-02")
	return slot, slot != s.lastBackfill
}

// timeReached reports whether the local time is at or past h:m today.
func timeReached(now time.Time, h, m int) bool {
	return now.Hour() > h || (now.Hour() == h && now.Minute() >= m)
}

func (s *Scheduler) run(name string, job func(ctx context.Context) engine.Result) {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.JobTimeout)
	defer cancel()

	log.Printf("[Scheduler] Running %s", name)
	res := job(ctx)
	if res.Status == engine.StatusError {
		log.Printf("[Scheduler] %s failed: %s", name, res.Message)
	}
}
