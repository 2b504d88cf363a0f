// Package scheduler runs jobs on independent fixed-delay loops
package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Job is one unit of scheduled work. Jobs report failures through their own
// logging; the scheduler only guards against panics.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context)
}

type Config struct {
	// GracePeriod bounds how long in-flight jobs may keep running after shutdown
	GracePeriod time.Duration

	// RunOnStart runs every job once immediately instead of waiting one interval
	RunOnStart bool
}

type Scheduler struct {
	config Config
	jobs   []Job
}

func New(config Config, jobs ...Job) *Scheduler {
	return &Scheduler{
		config: config,
		jobs:   jobs,
	}
}

// Run starts one loop per job and blocks until ctx is cancelled and every
// loop has stopped. Each loop waits for its interval, runs the job to
// completion and waits again, so runs of the same job never overlap.
func (s *Scheduler) Run(ctx context.Context) error {
	for _, job := range s.jobs {
		if job.Interval <= 0 {
			return fmt.Errorf("job %s: interval must be positive, got %s", job.Name, job.Interval)
		}
	}

	// In-flight jobs keep running for the grace period after shutdown
	jobCtx, cancelJobs := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelJobs()
	stop := context.AfterFunc(ctx, func() {
		if s.config.GracePeriod <= 0 {
			cancelJobs()
			return
		}
		time.AfterFunc(s.config.GracePeriod, cancelJobs)
	})
	defer stop()

	g := new(errgroup.Group)
	for _, job := range s.jobs {
		g.Go(func() error {
			s.loop(ctx, jobCtx, job)
			return nil
		})
	}

	log.WithField("jobs", len(s.jobs)).Info("Scheduler started")
	err := g.Wait()
	log.Info("Scheduler stopped")
	return err
}

func (s *Scheduler) loop(ctx context.Context, jobCtx context.Context, job Job) {
	logger := log.WithFields(log.Fields{
		"job":      job.Name,
		"interval": job.Interval,
	})

	if s.config.RunOnStart {
		runSafely(jobCtx, logger, job)
	}

	timer := time.NewTimer(job.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Stopping scheduled job")
			return
		case <-timer.C:
			runSafely(jobCtx, logger, job)
			timer.Reset(job.Interval)
		}
	}
}

func runSafely(ctx context.Context, logger *log.Entry, job Job) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithFields(log.Fields{
				"panic": r,
				"stack": string(debug.Stack()),
			}).Error("Scheduled job panicked")
		}
	}()

	job.Run(ctx)
}
