// Package scheduler fires the expiry sweep every interval and the daily poll at a fixed
// local time.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job is a scheduled callback.
type Job func(ctx context.Context) error

// Locker guards a job across processes. release is only valid when ok is true.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

const (
	sweepLockKey = "dailypoll:lock:sweep"
	dailyLockKey = "dailypoll:lock:daily"

	// dailyLease outlives any plausible clock skew between instances; the daily lock
	// is never released early.
	dailyLease = 12 * time.Hour
)

// Config controls the cadences.
type Config struct {
	SweepInterval time.Duration
	Location      *time.Location
	Hour          int
	Minute        int
	// JobTimeout bounds a single run; it is also the cross-process lock TTL.
	JobTimeout time.Duration
}

// Scheduler runs the sweep and daily jobs until Stop.
type Scheduler struct {
	cfg    Config
	sweep  Job
	daily  Job
	locker Locker
	logger *zap.Logger
	now    func() time.Time

	sweepMu sync.Mutex
	dailyMu sync.Mutex

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a scheduler. locker may be nil for single-instance deployments.
func New(cfg Config, sweep, daily Job, locker Locker, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 50 * time.Second
	}
	return &Scheduler{cfg: cfg, sweep: sweep, daily: daily, locker: locker, logger: logger, now: time.Now}
}

// Start launches the sweep ticker and the daily timer.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(2)
	go s.runSweeps(ctx)
	go s.runDaily(ctx)
	s.logger.Info("scheduler started",
		zap.Duration("sweep_interval", s.cfg.SweepInterval),
		zap.String("daily_at", time.Date(0, 1, 1, s.cfg.Hour, s.cfg.Minute, 0, 0, time.UTC).Format("15:04")),
		zap.String("timezone", s.cfg.Location.String()))
}

// Stop cancels both loops and waits for running jobs to return.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) runSweeps(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunSweep(ctx)
		}
	}
}

func (s *Scheduler) runDaily(ctx context.Context) {
	defer s.wg.Done()
	for {
		now := s.now()
		next := NextDaily(now, s.cfg.Location, s.cfg.Hour, s.cfg.Minute)
		s.logger.Debug("next daily poll", zap.Time("at", next))
		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.RunDaily(ctx)
		}
	}
}

// RunSweep runs the sweep job unless one is already running here or elsewhere.
// It reports whether the job ran.
func (s *Scheduler) RunSweep(ctx context.Context) bool {
	return s.run(ctx, "sweep", &s.sweepMu, sweepLockKey, s.cfg.JobTimeout, true, s.sweep)
}

// RunDaily runs the daily job at most once per local calendar day across instances.
// Its lock is keyed by date and left to expire.
func (s *Scheduler) RunDaily(ctx context.Context) bool {
	return s.run(ctx, "daily", &s.dailyMu, DailyLockKey(s.now(), s.cfg.Location), dailyLease, false, s.daily)
}

// DailyLockKey names the cross-instance lock for the daily post on now's local date.
func DailyLockKey(now time.Time, loc *time.Location) string {
	return dailyLockKey + ":" + now.In(loc).Format("2006-01-02")
}

func (s *Scheduler) run(ctx context.Context, name string, mu *sync.Mutex, lockKey string, lease time.Duration, release bool, job Job) bool {
	if !mu.TryLock() {
		s.logger.Warn("previous run still in progress, skipping", zap.String("job", name))
		return false
	}
	defer mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.JobTimeout)
	defer cancel()

	if s.locker != nil {
		unlock, ok, err := s.locker.TryLock(ctx, lockKey, lease)
		if err != nil {
			s.logger.Warn("acquire job lock failed, skipping", zap.String("job", name), zap.Error(err))
			return false
		}
		if !ok {
			s.logger.Debug("job locked by another instance", zap.String("job", name))
			return false
		}
		if release {
			defer unlock()
		}
	}

	if err := job(ctx); err != nil {
		s.logger.Error("scheduled job failed", zap.String("job", name), zap.Error(err))
	}
	return true
}

// NextDaily returns the first hour:minute in loc strictly after now.
func NextDaily(now time.Time, loc *time.Location, hour, minute int) time.Time {
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, hour, minute, 0, 0, loc)
	}
	return next
}
