package app

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// Background job schedules.
const (
	sessionSweepSpec     = "@every 1m"
	directoryRefreshSpec = "@every 5m"
	limiterSweepSpec     = "@every 10m"
)

// newScheduler registers the periodic maintenance jobs.
func newScheduler(ctx context.Context, c *Components) (*cron.Cron, error) {
	scheduler := cron.New(cron.WithChain(
		cron.Recover(cron.PrintfLogger(log.StandardLogger())),
		cron.SkipIfStillRunning(cron.DiscardLogger),
	))

	if _, errAdd := scheduler.AddFunc(sessionSweepSpec, func() {
		if removed := c.Sessions.Sweep(); removed > 0 {
			log.Debugf("swept %d idle enrollment sessions", removed)
		}
	}); errAdd != nil {
		return nil, errAdd
	}

	if _, errAdd := scheduler.AddFunc(directoryRefreshSpec, func() {
		refreshCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if errRefresh := c.Directory.Refresh(refreshCtx); errRefresh != nil {
			log.WithError(errRefresh).Warn("tenant directory refresh failed")
		}
	}); errAdd != nil {
		return nil, errAdd
	}

	if _, errAdd := scheduler.AddFunc(limiterSweepSpec, func() {
		c.Limiter.Sweep(limiterIdleAfter)
	}); errAdd != nil {
		return nil, errAdd
	}
	return scheduler, nil
}
