// Package janitor runs periodic housekeeping on a cron schedule: purging
// expired availability and stale moves, and sweeping rate-limiter buckets.
package janitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dukerupert/coachcal/internal/schedule"
)

// Purger deletes records that ended before now minus retention.
type Purger interface {
	Purge(ctx context.Context, now time.Time, retention time.Duration) (schedule.PurgeResult, error)
}

// Sweeper drops idle state and reports how many entries it removed.
type Sweeper interface {
	Cleanup() int
}

type Janitor struct {
	purger    Purger
	sweepers  []Sweeper
	spec      string
	retention time.Duration
	loc       *time.Location
	logger    *slog.Logger
	now       func() time.Time

	mu     sync.Mutex
	cron   *cron.Cron
	cancel context.CancelFunc
}

type Option func(*Janitor)

func WithSweepers(s ...Sweeper) Option {
	return func(j *Janitor) { j.sweepers = append(j.sweepers, s...) }
}

func WithLocation(loc *time.Location) Option {
	return func(j *Janitor) { j.loc = loc }
}

func WithClock(now func() time.Time) Option {
	return func(j *Janitor) { j.now = now }
}

// New validates spec, a standard five-field cron expression or descriptor
// such as "@daily".
func New(p Purger, spec string, retention time.Duration, logger *slog.Logger, opts ...Option) (*Janitor, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("parse purge schedule %q: %w", spec, err)
	}
	j := &Janitor{
		purger:    p,
		spec:      spec,
		retention: retention,
		loc:       time.UTC,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// Start schedules the job. Calling Start twice without Stop is an error.
func (j *Janitor) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.cron != nil {
		return fmt.Errorf("janitor already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	c := cron.New(
		cron.WithLocation(j.loc),
		cron.WithLogger(cronLogger{j.logger}),
		cron.WithChain(cron.Recover(cronLogger{j.logger}), cron.SkipIfStillRunning(cronLogger{j.logger})),
	)
	if _, err := c.AddFunc(j.spec, func() { j.RunOnce(ctx) }); err != nil {
		cancel()
		return fmt.Errorf("schedule purge: %w", err)
	}
	c.Start()

	j.cron = c
	j.cancel = cancel
	j.logger.Info("janitor started", "schedule", j.spec, "retention", j.retention)
	return nil
}

// Stop cancels any running purge and waits for it to return.
func (j *Janitor) Stop() {
	j.mu.Lock()
	c, cancel := j.cron, j.cancel
	j.cron, j.cancel = nil, nil
	j.mu.Unlock()

	if c == nil {
		return
	}
	cancel()
	<-c.Stop().Done()
}

// RunOnce performs one housekeeping pass immediately.
func (j *Janitor) RunOnce(ctx context.Context) (schedule.PurgeResult, error) {
	start := j.now()

	swept := 0
	for _, s := range j.sweepers {
		swept += s.Cleanup()
	}

	res, err := j.purger.Purge(ctx, start, j.retention)
	if err != nil {
		j.logger.Error("purge failed", "error", err)
		return res, err
	}

	j.logger.Info("purge complete",
		"availabilities", res.Availabilities,
		"moves", res.Moves,
		"coaches", len(res.Coaches),
		"limiter_entries", swept,
		"duration", time.Since(start),
	)
	return res, nil
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
