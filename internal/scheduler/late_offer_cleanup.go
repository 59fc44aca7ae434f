package scheduler

import (
	"context"
	"time"

	"offer_compare_backend/platform/logger"
)

const defaultLateOfferCleanupInterval = time.Minute

// Sweeper removes expired late-offer entries.
type Sweeper interface {
	Sweep(now time.Time) int
}

// LateOfferCleanup periodically drops expired entries from an in-process
// late-offer store. Redis-backed stores expire keys on their own.
type LateOfferCleanup struct {
	sweeper  Sweeper
	log      *logger.Logger
	interval time.Duration
}

func NewLateOfferCleanup(sweeper Sweeper, log *logger.Logger, interval time.Duration) *LateOfferCleanup {
	if interval <= 0 {
		interval = defaultLateOfferCleanupInterval
	}
	return &LateOfferCleanup{
		sweeper:  sweeper,
		log:      log,
		interval: interval,
	}
}

func (c *LateOfferCleanup) Run(ctx context.Context) {
	if c == nil || c.sweeper == nil {
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			c.cleanup(now)
		}
	}
}

func (c *LateOfferCleanup) cleanup(now time.Time) {
	if removed := c.sweeper.Sweep(now); removed > 0 {
		c.log.Info("late offer cleanup removed expired entries", "removed", removed)
	}
}
