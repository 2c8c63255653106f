package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"marketchat/pkg/logger"
)

// Job is one scheduled unit of work. Errors are logged and do not stop the schedule.
type Job func(ctx context.Context) error

type Scheduler struct {
	name string
	expr string
	job  Job
	now  func() time.Time
}

func New(name, expr string, job Job) (*Scheduler, error) {
	if !gronx.IsValid(expr) {
		return nil, fmt.Errorf("invalid cron expression for %s: %q", name, expr)
	}
	return &Scheduler{name: name, expr: expr, job: job, now: time.Now}, nil
}

// Next returns the first tick strictly after t.
func (s *Scheduler) Next(t time.Time) (time.Time, error) {
	return gronx.NextTickAfter(s.expr, t.UTC(), false)
}

// Start runs the job on every tick in a goroutine until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	go s.run(ctx)
	logger.Info("%s job scheduled (%s)", s.name, s.expr)
}

func (s *Scheduler) run(ctx context.Context) {
	for {
		next, err := s.Next(s.now())
		if err != nil {
			logger.Error("%s: next tick failed: %v", s.name, err)
			if !sleep(ctx, 30*time.Second) {
				return
			}
			continue
		}

		if !sleep(ctx, next.Sub(s.now())) {
			logger.Info("%s job stopped", s.name)
			return
		}

		started := s.now()
		if err := s.job(ctx); err != nil {
			logger.Error("%s job error: %v", s.name, err)
			continue
		}
		logger.Debug("%s job finished in %v", s.name, s.now().Sub(started))
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		d = time.Second
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
