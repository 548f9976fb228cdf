package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	ledgerdomain "github.com/railzwaylabs/cipherpoll/internal/ledger/domain"
	"github.com/railzwaylabs/cipherpoll/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const applyLockKey int64 = 7_112_409_355

// Executor applies state transitions atomically and in a strict linear order.
// A process-wide mutex serializes local callers; on postgres a transaction
// scoped advisory lock serializes callers across processes.
type Executor struct {
	db  *gorm.DB
	log *zap.Logger
	mu  sync.Mutex
}

type Params struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

func NewExecutor(p Params) *Executor {
	return &Executor{
		db:  p.DB,
		log: p.Log.Named("ledger.executor"),
	}
}

// DB returns the handle for pure reads outside of Apply.
func (e *Executor) DB() *gorm.DB {
	return e.db
}

// Apply runs fn as one atomic unit. When fn returns an error nothing it wrote
// survives, including emitted events.
func (e *Executor) Apply(ctx context.Context, fn func(tx *gorm.DB) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if db.IsPostgres(tx) {
			if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", applyLockKey).Error; err != nil {
				return fmt.Errorf("acquire apply lock: %w", err)
			}
		}
		return fn(tx)
	})
}

// NextID returns the next dense id of the named sequence, starting at 1.
func (e *Executor) NextID(ctx context.Context, tx *gorm.DB, name string) (uint64, error) {
	res := tx.WithContext(ctx).
		Model(&ledgerdomain.Sequence{}).
		Where("name = ?", name).
		Update("value", gorm.Expr("value + 1"))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		if err := tx.WithContext(ctx).Create(&ledgerdomain.Sequence{Name: name, Value: 1}).Error; err != nil {
			return 0, err
		}
		return 1, nil
	}

	var seq ledgerdomain.Sequence
	if err := tx.WithContext(ctx).Where("name = ?", name).First(&seq).Error; err != nil {
		return 0, err
	}
	return seq.Value, nil
}

// Emit appends an event to the outbox inside tx. Event ids come from the
// event sequence, so they are dense and follow commit order across processes.
func (e *Executor) Emit(ctx context.Context, tx *gorm.DB, eventType string, payload any, at time.Time) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	id, err := e.NextID(ctx, tx, ledgerdomain.SequenceEvent)
	if err != nil {
		return fmt.Errorf("allocate event id: %w", err)
	}
	evt := ledgerdomain.Event{
		ID:        id,
		Type:      eventType,
		Payload:   datatypes.JSON(raw),
		CreatedAt: at.UTC(),
	}
	return tx.WithContext(ctx).Create(&evt).Error
}

// EventsAfter lists outbox events with id greater than after, oldest first.
func (e *Executor) EventsAfter(ctx context.Context, after uint64, limit int) ([]ledgerdomain.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []ledgerdomain.Event
	err := e.db.WithContext(ctx).
		Where("id > ?", after).
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (e *Executor) ConsumerOffset(ctx context.Context, consumerID string) (uint64, error) {
	var offset ledgerdomain.ConsumerOffset
	err := e.db.WithContext(ctx).Where("consumer_id = ?", consumerID).First(&offset).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return offset.LastEventID, nil
}

func (e *Executor) SaveConsumerOffset(ctx context.Context, consumerID string, id uint64, at time.Time) error {
	res := e.db.WithContext(ctx).
		Model(&ledgerdomain.ConsumerOffset{}).
		Where("consumer_id = ?", consumerID).
		Updates(map[string]any{"last_event_id": id, "updated_at": at.UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	return e.db.WithContext(ctx).Create(&ledgerdomain.ConsumerOffset{
		ConsumerID:  consumerID,
		LastEventID: id,
		UpdatedAt:   at.UTC(),
	}).Error
}
