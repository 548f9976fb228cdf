package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type JobRun struct {
	Name      string
	StartedAt time.Time
	Processed int
}

func (r *JobRun) AddProcessed(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.Processed += n
}

func (s *Scheduler) startRun(ctx context.Context, name string) *JobRun {
	return &JobRun{Name: name, StartedAt: s.clock.Now(ctx)}
}

func (s *Scheduler) finishRun(run *JobRun, err error) {
	fields := []zap.Field{
		zap.String("job", run.Name),
		zap.Int("processed", run.Processed),
		zap.Duration("elapsed", time.Since(run.StartedAt)),
	}
	if err != nil {
		s.log.Error("scheduler job failed", append(fields, zap.Error(err))...)
		return
	}
	if run.Processed > 0 {
		s.log.Info("scheduler job completed", fields...)
	}
}
