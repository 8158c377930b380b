package sync

import (
	"context"
	"errors"
	gosync "sync"
	"time"

	"go.uber.org/zap"

	domainsync "github.com/dealbridge/backend/internal/domain/sync"
	"github.com/dealbridge/backend/internal/infrastructure/logger"
)

// ProcessorConfig holds worker-loop tuning knobs.
type ProcessorConfig struct {
	Workers          int
	PollInterval     time.Duration
	IdempotencyTTL   time.Duration
	CleanupEnabled   bool
	CleanupRetention time.Duration
	CleanupInterval  time.Duration
}

// DefaultProcessorConfig returns default configuration
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		Workers:          4,
		PollInterval:     time.Second,
		IdempotencyTTL:   24 * time.Hour,
		CleanupEnabled:   true,
		CleanupRetention: 5 * time.Minute,
		CleanupInterval:  time.Minute,
	}
}

// Processor runs the worker loop: claim a message, decode the canonical
// event, check the processed-event store, dispatch to the router, record the
// event on success and settle the message. Ack/Nack is queue-native; the
// processor never retries in-process.
type Processor struct {
	queue   domainsync.Queue
	cleanup interface {
		DeleteCompletedOlderThan(ctx context.Context, before time.Time) (int64, error)
	}
	router *Router
	store  domainsync.IdempotencyStore
	config ProcessorConfig
	logger *zap.Logger

	cancel context.CancelFunc
	wg     gosync.WaitGroup
}

// NewProcessor creates a queue processor.
func NewProcessor(
	queue domainsync.Queue,
	router *Router,
	store domainsync.IdempotencyStore,
	config ProcessorConfig,
	log *zap.Logger,
) *Processor {
	if config.Workers <= 0 {
		config.Workers = 4
	}
	if config.PollInterval <= 0 {
		config.PollInterval = time.Second
	}
	if config.IdempotencyTTL <= 0 {
		config.IdempotencyTTL = 24 * time.Hour
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = time.Minute
	}
	p := &Processor{
		queue:  queue,
		router: router,
		store:  store,
		config: config,
		logger: log,
	}
	if c, ok := queue.(interface {
		DeleteCompletedOlderThan(ctx context.Context, before time.Time) (int64, error)
	}); ok {
		p.cleanup = c
	}
	return p
}

// Start launches the worker pool.
func (p *Processor) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	for i := 0; i < p.config.Workers; i++ {
		p.wg.Add(1)
		go p.workerLoop(ctx, i)
	}

	if p.config.CleanupEnabled && p.cleanup != nil {
		p.wg.Add(1)
		go p.cleanupLoop(ctx)
	}

	p.logger.Info("sync processor started",
		zap.Int("workers", p.config.Workers),
		zap.Duration("poll_interval", p.config.PollInterval),
	)
	return nil
}

// Stop gracefully stops the worker pool.
func (p *Processor) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("sync processor stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// workerLoop drains the queue, sleeping the poll interval when it runs dry.
func (p *Processor) workerLoop(ctx context.Context, worker int) {
	defer p.wg.Done()

	log := p.logger.With(zap.Int("worker", worker))
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msg, err := p.queue.Dequeue(ctx)
		if err != nil {
			log.Error("dequeue failed", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if msg == nil {
			p.sleep(ctx)
			continue
		}

		p.processMessage(ctx, msg, log)
	}
}

// processMessage handles one claimed message end to end.
func (p *Processor) processMessage(ctx context.Context, msg *domainsync.Message, log *zap.Logger) {
	event, err := domainsync.UnmarshalEvent(msg.Body)
	if err != nil {
		// A body that never parses cannot succeed on redelivery; let the
		// delivery budget walk it to the dead letter queue for inspection.
		log.Error("undecodable message body",
			zap.String("message_id", msg.ID.String()),
			zap.Error(err),
		)
		p.settle(ctx, msg, err, log)
		return
	}

	event.AttemptCount = msg.DeliveryCount

	ctx = logger.WithContext(ctx, log)
	ctx, _ = logger.WithEventID(ctx, log, event.EventID)
	if event.CorrelationID != "" {
		ctx, _ = logger.WithCorrelationID(ctx, log, event.CorrelationID)
	}

	if p.store != nil {
		done, err := p.store.IsProcessed(ctx, event.EventID)
		if err != nil {
			// Better to risk a duplicate than to drop the event.
			log.Warn("idempotency check failed, processing anyway",
				zap.String("event_id", event.EventID),
				zap.Error(err),
			)
		} else if done {
			log.Debug("duplicate event, acknowledging without processing",
				zap.String("event_id", event.EventID),
			)
			p.ack(ctx, msg, log)
			return
		}
	}

	result, err := p.router.Dispatch(ctx, event)
	if errors.Is(err, domainsync.ErrNoHandler) {
		// Redelivery cannot make a handler appear.
		log.Warn("no handler for event, acknowledging",
			zap.String("event_id", event.EventID),
			zap.String("event_type", string(event.EventType)),
			zap.String("source", string(event.Source)),
		)
		p.ack(ctx, msg, log)
		return
	}
	if err != nil {
		log.Error("event handling failed",
			zap.String("event_id", event.EventID),
			zap.String("event_type", string(event.EventType)),
			zap.Int("attempt", event.AttemptCount),
			zap.Error(err),
		)
		p.settle(ctx, msg, err, log)
		return
	}

	// Mark only after the handler succeeded. A failed dispatch must leave the
	// event unmarked so redelivery actually reprocesses it; a crash between
	// here and the Ack costs at most one duplicate run of an idempotent
	// handler.
	if p.store != nil {
		if _, err := p.store.MarkProcessed(ctx, event.EventID, p.config.IdempotencyTTL); err != nil {
			log.Warn("failed to record processed event",
				zap.String("event_id", event.EventID),
				zap.Error(err),
			)
		}
	}

	log.Info("event processed",
		zap.String("event_id", event.EventID),
		zap.String("event_type", string(event.EventType)),
		zap.String("action", string(result.Action)),
		zap.String("local_id", result.LocalID),
		zap.String("remote_id", result.RemoteID),
	)
	p.ack(ctx, msg, log)
}

// ack acknowledges a message, logging settlement failures.
func (p *Processor) ack(ctx context.Context, msg *domainsync.Message, log *zap.Logger) {
	if err := p.queue.Ack(ctx, msg); err != nil {
		log.Error("ack failed", zap.String("message_id", msg.ID.String()), zap.Error(err))
	}
}

// settle returns a failed message to the queue for redelivery.
func (p *Processor) settle(ctx context.Context, msg *domainsync.Message, cause error, log *zap.Logger) {
	if err := p.queue.Nack(ctx, msg, cause.Error()); err != nil {
		log.Error("nack failed", zap.String("message_id", msg.ID.String()), zap.Error(err))
		return
	}
	if msg.IsDead() {
		log.Warn("message moved to dead letter queue",
			zap.String("message_id", msg.ID.String()),
			zap.Int("deliveries", msg.DeliveryCount),
			zap.String("last_error", msg.LastError),
		)
	}
}

// sleep waits one poll interval or until shutdown.
func (p *Processor) sleep(ctx context.Context) {
	timer := time.NewTimer(p.config.PollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// cleanupLoop purges completed messages past the dedup retention window.
func (p *Processor) cleanupLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-p.config.CleanupRetention)
			deleted, err := p.cleanup.DeleteCompletedOlderThan(ctx, cutoff)
			if err != nil {
				p.logger.Error("queue cleanup failed", zap.Error(err))
				continue
			}
			if deleted > 0 {
				p.logger.Debug("purged completed queue messages", zap.Int64("deleted", deleted))
			}
		}
	}
}
