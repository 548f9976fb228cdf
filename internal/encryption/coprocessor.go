package encryption

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/railzwaylabs/cipherpoll/internal/encryption/domain"
	"github.com/railzwaylabs/cipherpoll/internal/observability"
	"go.uber.org/zap"
)

var ErrNoHandler = errors.New("decryption_handler_not_registered")

type pendingRequest struct {
	id          string
	ciphertext  domain.Ciphertext
	requestedAt time.Time
}

// Coprocessor is the only component holding the secret key. It answers range
// checks synchronously and serves decryption requests asynchronously: a
// request is queued and its plaintext is delivered later to the handler.
type Coprocessor struct {
	scheme  domain.Scheme
	secret  domain.KeyHolder
	log     *zap.Logger
	metrics *observability.Metrics

	mu      sync.Mutex
	queue   []pendingRequest
	handler domain.DecryptionHandler
	wake    chan struct{}
}

func NewCoprocessor(pair KeyPair, log *zap.Logger, metrics *observability.Metrics) *Coprocessor {
	return &Coprocessor{
		scheme:  pair.Scheme,
		secret:  pair.Secret,
		log:     log.Named("encryption.coprocessor"),
		metrics: metrics,
		wake:    make(chan struct{}, 1),
	}
}

func (c *Coprocessor) Scheme() domain.Scheme {
	return c.scheme
}

// OnDecrypted registers the callback that receives decrypted results.
func (c *Coprocessor) OnDecrypted(h domain.DecryptionHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = h
}

func (c *Coprocessor) RangeCheck(ctx context.Context, ct domain.Ciphertext, lo, hi int64) (bool, error) {
	if err := c.scheme.Validate(ct); err != nil {
		return false, err
	}
	v, err := c.secret.Decrypt(ct)
	if err != nil {
		if errors.Is(err, domain.ErrPlaintextOverflow) {
			return false, nil
		}
		return false, err
	}
	return lo <= v && v <= hi, nil
}

func (c *Coprocessor) RequestDecrypt(ctx context.Context, ct domain.Ciphertext) (string, error) {
	if err := c.scheme.Validate(ct); err != nil {
		return "", err
	}
	req := pendingRequest{
		id:          ulid.Make().String(),
		ciphertext:  append(domain.Ciphertext(nil), ct...),
		requestedAt: time.Now(),
	}

	c.mu.Lock()
	c.queue = append(c.queue, req)
	pending := len(c.queue)
	c.mu.Unlock()

	c.metrics.SetPendingDecryptions(pending)
	select {
	case c.wake <- struct{}{}:
	default:
	}
	return req.id, nil
}

// Pending reports the number of queued decryption requests.
func (c *Coprocessor) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Drain delivers every queued request and returns how many were delivered.
// Handler failures are logged and returned joined; the request is not requeued,
// callers recover by retrying finalize.
func (c *Coprocessor) Drain(ctx context.Context) (int, error) {
	c.mu.Lock()
	batch := c.queue
	c.queue = nil
	handler := c.handler
	c.mu.Unlock()
	c.metrics.SetPendingDecryptions(0)

	if len(batch) == 0 {
		return 0, nil
	}
	if handler == nil {
		c.mu.Lock()
		c.queue = append(batch, c.queue...)
		c.mu.Unlock()
		return 0, ErrNoHandler
	}

	var errs []error
	delivered := 0
	for _, req := range batch {
		if err := ctx.Err(); err != nil {
			c.mu.Lock()
			c.queue = append(batch[delivered:], c.queue...)
			c.mu.Unlock()
			return delivered, err
		}
		delivered++

		v, err := c.secret.Decrypt(req.ciphertext)
		if err != nil {
			c.log.Error("decryption failed", zap.String("request_id", req.id), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		if err := handler(ctx, req.id, v); err != nil {
			c.log.Warn("decryption callback rejected", zap.String("request_id", req.id), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		c.metrics.ObserveDecryptLatency(time.Since(req.requestedAt).Seconds())
	}
	return delivered, errors.Join(errs...)
}

// Run delivers requests as they arrive until ctx is done.
func (c *Coprocessor) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.wake:
		case <-ticker.C:
		}
		if c.Pending() == 0 {
			continue
		}
		if _, err := c.Drain(ctx); err != nil && !errors.Is(err, context.Canceled) {
			c.log.Debug("drain finished with errors", zap.Error(err))
		}
	}
}
