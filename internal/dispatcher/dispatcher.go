package dispatcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/railzwaylabs/cipherpoll/internal/clock"
	"github.com/railzwaylabs/cipherpoll/internal/config"
	"github.com/railzwaylabs/cipherpoll/internal/ledger"
	ledgerdomain "github.com/railzwaylabs/cipherpoll/internal/ledger/domain"
	"github.com/railzwaylabs/cipherpoll/internal/observability"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	// ConsumerID prefixes the per-sink cursor names in event_consumer_offsets.
	ConsumerID       = "event_dispatcher"
	DefaultBatchSize = 50
)

// Sink receives outbox events. A sink ignores event types it does not handle.
// A failed delivery holds the sink's cursor so the event is redelivered on the
// next pass, unless the sink is a BestEffortSink.
type Sink interface {
	Name() string
	Handle(ctx context.Context, evt ledgerdomain.Event) error
}

// BestEffortSink marks sinks whose failures are logged and skipped.
type BestEffortSink interface {
	BestEffort() bool
}

type Params struct {
	fx.In

	Ledger  *ledger.Executor
	Log     *zap.Logger
	Clock   clock.Clock
	Config  config.Config
	Metrics *observability.Metrics
	Sinks   []Sink `group:"dispatcher_sinks"`
}

// Dispatcher delivers committed outbox events to sinks. Every sink walks the
// outbox with its own cursor, so one failing sink never delays the others and
// never touches the ledger.
type Dispatcher struct {
	ledger    *ledger.Executor
	log       *zap.Logger
	clock     clock.Clock
	metrics   *observability.Metrics
	sinks     []Sink
	batchSize int
}

func New(p Params) *Dispatcher {
	batch := p.Config.Scheduler.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	sinks := make([]Sink, 0, len(p.Sinks))
	for _, s := range p.Sinks {
		if s != nil {
			sinks = append(sinks, s)
		}
	}
	return &Dispatcher{
		ledger:    p.Ledger,
		log:       p.Log.Named("dispatcher"),
		clock:     p.Clock,
		metrics:   p.Metrics,
		sinks:     sinks,
		batchSize: batch,
	}
}

// ProcessEvents advances every sink by at most one batch and returns how many
// deliveries moved a cursor. Sinks that failed are reported in the joined
// error after the remaining sinks have run.
func (d *Dispatcher) ProcessEvents(ctx context.Context) (int, error) {
	var (
		total int
		errs  []error
	)
	for _, sink := range d.sinks {
		n, err := d.processSink(ctx, sink)
		total += n
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
		}
	}
	return total, errors.Join(errs...)
}

// Drain processes batches until no cursor moves. Healthy sinks catch up even
// while another sink keeps failing; the last failure is returned.
func (d *Dispatcher) Drain(ctx context.Context) (int, error) {
	total := 0
	for {
		n, err := d.ProcessEvents(ctx)
		total += n
		if n == 0 {
			return total, err
		}
		if err := ctx.Err(); err != nil {
			return total, err
		}
	}
}

func consumerFor(sink Sink) string {
	return ConsumerID + ":" + sink.Name()
}

func bestEffort(sink Sink) bool {
	be, ok := sink.(BestEffortSink)
	return ok && be.BestEffort()
}

func (d *Dispatcher) processSink(ctx context.Context, sink Sink) (int, error) {
	consumer := consumerFor(sink)
	lastID, err := d.ledger.ConsumerOffset(ctx, consumer)
	if err != nil {
		return 0, err
	}
	rows, err := d.ledger.EventsAfter(ctx, lastID, d.batchSize)
	if err != nil {
		return 0, err
	}

	for i, evt := range rows {
		if err := sink.Handle(ctx, evt); err != nil {
			d.metrics.Delivered(sink.Name(), "failed")
			d.log.Error("failed to dispatch event",
				zap.String("sink", sink.Name()),
				zap.Uint64("event_id", evt.ID),
				zap.String("type", evt.Type),
				zap.Bool("best_effort", bestEffort(sink)),
				zap.Error(err),
			)
			if !bestEffort(sink) {
				return i, err
			}
		} else {
			d.metrics.Delivered(sink.Name(), "ok")
		}

		// Offset moves per event so a crash replays at most one event per sink.
		if err := d.ledger.SaveConsumerOffset(ctx, consumer, evt.ID, d.clock.Now(ctx)); err != nil {
			return i, err
		}
	}
	return len(rows), nil
}
