package session

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Janitor evicts idle sessions on a cron schedule. Session history would
// otherwise grow for the life of the process.
type Janitor struct {
	store  *Store
	ttl    time.Duration
	logger *slog.Logger
	cron   *cron.Cron
}

// NewJanitor creates a Janitor that prunes sessions idle longer than ttl.
func NewJanitor(store *Store, ttl time.Duration, logger *slog.Logger) *Janitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Janitor{
		store:  store,
		ttl:    ttl,
		logger: logger,
	}
}

// Start schedules the eviction job. The schedule accepts standard cron
// expressions plus descriptors like "@every 10m".
func (j *Janitor) Start(schedule string) error {
	if j.cron != nil {
		return fmt.Errorf("janitor already started")
	}
	c := cron.New()
	if _, err := c.AddFunc(schedule, j.sweep); err != nil {
		return fmt.Errorf("invalid janitor schedule %q: %w", schedule, err)
	}
	c.Start()
	j.cron = c
	j.logger.Info("session janitor started",
		slog.String("schedule", schedule),
		slog.Duration("ttl", j.ttl),
	)
	return nil
}

// Stop cancels the scheduled job and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	if j.cron == nil {
		return
	}
	<-j.cron.Stop().Done()
	j.cron = nil
}

func (j *Janitor) sweep() {
	evicted := j.store.EvictIdle(j.ttl)
	if evicted > 0 {
		j.logger.Info("evicted idle sessions",
			slog.Int("evicted", evicted),
			slog.Int("remaining", j.store.Len()),
		)
	}
}
