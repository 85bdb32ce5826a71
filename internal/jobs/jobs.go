// Package jobs runs the periodic maintenance tasks of the server.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/amsel-crm/memberportal/internal/settings"
	"github.com/go-co-op/gocron/v2"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// DefaultInterval is how often each job runs.
const DefaultInterval = time.Minute

// Purger drops cache entries older than maxAge and reports how many were removed.
type Purger interface {
	Purge(maxAge time.Duration) int
}

// Options configures the scheduler. A nil DB or Cache disables the matching job.
type Options struct {
	DB       *gorm.DB
	Cache    Purger
	Interval time.Duration
	// MaxAge returns the age after which cached profiles are dropped.
	MaxAge func() time.Duration
}

// Scheduler wraps a gocron scheduler.
type Scheduler struct {
	sched gocron.Scheduler
}

// Start registers the jobs and starts running them.
func Start(ctx context.Context, opts Options) (*Scheduler, error) {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.MaxAge == nil {
		opts.MaxAge = settings.ProfileCacheTTL
	}

	sched, errNew := gocron.NewScheduler()
	if errNew != nil {
		return nil, fmt.Errorf("jobs: new scheduler: %w", errNew)
	}

	if opts.DB != nil {
		conn := opts.DB
		_, errJob := sched.NewJob(
			gocron.DurationJob(opts.Interval),
			gocron.NewTask(func() {
				refreshCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
				defer cancel()
				if errRefresh := settings.RefreshDBConfigSnapshot(refreshCtx, conn); errRefresh != nil {
					log.WithError(errRefresh).Warn("jobs: refresh settings")
				}
			}),
			gocron.WithName("settings-refresh"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if errJob != nil {
			_ = sched.Shutdown()
			return nil, fmt.Errorf("jobs: settings refresh: %w", errJob)
		}
	}

	if opts.Cache != nil {
		purger := opts.Cache
		maxAge := opts.MaxAge
		_, errJob := sched.NewJob(
			gocron.DurationJob(opts.Interval),
			gocron.NewTask(func() {
				if removed := purger.Purge(maxAge()); removed > 0 {
					log.Debugf("jobs: purged %d cached profiles", removed)
				}
			}),
			gocron.WithName("cache-purge"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if errJob != nil {
			_ = sched.Shutdown()
			return nil, fmt.Errorf("jobs: cache purge: %w", errJob)
		}
	}

	sched.Start()
	log.Infof("jobs: scheduler started with %d job(s)", len(sched.Jobs()))
	return &Scheduler{sched: sched}, nil
}

// Stop waits for running jobs and shuts the scheduler down.
func (s *Scheduler) Stop() error {
	if s == nil || s.sched == nil {
		return nil
	}
	if errShutdown := s.sched.Shutdown(); errShutdown != nil {
		return fmt.Errorf("jobs: shutdown: %w", errShutdown)
	}
	return nil
}
