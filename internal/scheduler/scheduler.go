package scheduler

import (
	"context"
	"sync"
	"time"

	aggdomain "github.com/railzwaylabs/cipherpoll/internal/aggregation/domain"
	"github.com/railzwaylabs/cipherpoll/internal/clock"
	"github.com/railzwaylabs/cipherpoll/internal/config"
	"github.com/railzwaylabs/cipherpoll/internal/dispatcher"
	topicdomain "github.com/railzwaylabs/cipherpoll/internal/topic/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("scheduler",
	fx.Provide(New),
)

type Params struct {
	fx.In

	Log         *zap.Logger
	Clock       clock.Clock
	Config      config.Config
	Dispatcher  *dispatcher.Dispatcher
	Topics      topicdomain.Service
	Aggregation aggdomain.Service
}

type Job struct {
	Name string
	Run  func(ctx context.Context, run *JobRun) error
}

// Scheduler runs the housekeeping jobs on a fixed interval. Every job is safe
// to run concurrently from several processes because each state change goes
// through the ledger.
type Scheduler struct {
	log       *zap.Logger
	clock     clock.Clock
	interval  time.Duration
	batchSize int

	dispatcher  *dispatcher.Dispatcher
	topics      topicdomain.Service
	aggregation aggdomain.Service

	mu      sync.Mutex
	running bool
}

func New(p Params) *Scheduler {
	interval := p.Config.Scheduler.Interval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	batch := p.Config.Scheduler.BatchSize
	if batch <= 0 {
		batch = 50
	}
	return &Scheduler{
		log:         p.Log.Named("scheduler"),
		clock:       p.Clock,
		interval:    interval,
		batchSize:   batch,
		dispatcher:  p.Dispatcher,
		topics:      p.Topics,
		aggregation: p.Aggregation,
	}
}

func (s *Scheduler) Jobs() []Job {
	return []Job{
		{Name: "close_expired_topics", Run: s.CloseExpiredTopicsJob},
		{Name: "retry_stale_decryptions", Run: s.RetryStaleDecryptionsJob},
		{Name: "dispatch_events", Run: s.DispatchEventsJob},
	}
}

// RunForever ticks until ctx is cancelled.
func (s *Scheduler) RunForever(ctx context.Context) {
	s.log.Info("scheduler started", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.RunOnce(ctx)
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce executes every job once. Overlapping calls are skipped.
func (s *Scheduler) RunOnce(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	for _, job := range s.Jobs() {
		if ctx.Err() != nil {
			return
		}
		run := s.startRun(ctx, job.Name)
		err := job.Run(ctx, run)
		s.finishRun(run, err)
	}
}

func (s *Scheduler) CloseExpiredTopicsJob(ctx context.Context, run *JobRun) error {
	n, err := s.topics.CloseExpired(ctx, s.batchSize)
	run.AddProcessed(n)
	return err
}

func (s *Scheduler) RetryStaleDecryptionsJob(ctx context.Context, run *JobRun) error {
	n, err := s.aggregation.RetryStaleDecryptions(ctx, s.batchSize)
	run.AddProcessed(n)
	return err
}

func (s *Scheduler) DispatchEventsJob(ctx context.Context, run *JobRun) error {
	n, err := s.dispatcher.Drain(ctx)
	run.AddProcessed(n)
	return err
}
