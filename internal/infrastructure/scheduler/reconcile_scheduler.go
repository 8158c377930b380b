package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	appsync "github.com/dealbridge/backend/internal/application/sync"
	domainsync "github.com/dealbridge/backend/internal/domain/sync"
)

// ErrInvalidConfig is returned when the scheduler configuration is invalid.
var ErrInvalidConfig = errors.New("invalid scheduler configuration")

// Config holds the reconciliation poller configuration.
type Config struct {
	// PollInterval is the time between passes.
	PollInterval time.Duration
	// LookbackSlack widens the listing window beyond the previous pass so
	// clock skew between us and the partner API cannot lose changes.
	LookbackSlack time.Duration
	// JobTimeout bounds one pass.
	JobTimeout time.Duration
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: poll interval must be positive", ErrInvalidConfig)
	}
	if c.LookbackSlack < 0 {
		return fmt.Errorf("%w: lookback slack must not be negative", ErrInvalidConfig)
	}
	if c.JobTimeout <= 0 {
		return fmt.Errorf("%w: job timeout must be positive", ErrInvalidConfig)
	}
	return nil
}

// ReconcileScheduler periodically lists remote opportunities changed since
// the previous pass and enqueues canonical events for them. Partner-side
// changes flow through the same queue, dedup, ordering and handler pipeline
// as webhook deliveries; this poller is the safety net for changes that
// never produce one.
type ReconcileScheduler struct {
	remote   domainsync.RemoteClient
	ingestor *appsync.Ingestor
	config   Config
	logger   *zap.Logger

	mu        sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	lastRun time.Time
	now     func() time.Time
}

// NewReconcileScheduler creates a reconciliation scheduler.
func NewReconcileScheduler(
	remote domainsync.RemoteClient,
	ingestor *appsync.Ingestor,
	config Config,
	logger *zap.Logger,
) (*ReconcileScheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &ReconcileScheduler{
		remote:   remote,
		ingestor: ingestor,
		config:   config,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Start launches the polling loop.
func (s *ReconcileScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.loop(ctx)

	s.logger.Info("reconcile scheduler started",
		zap.Duration("poll_interval", s.config.PollInterval),
		zap.Duration("lookback_slack", s.config.LookbackSlack),
	)
	return nil
}

// Stop gracefully stops the polling loop.
func (s *ReconcileScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("reconcile scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("reconcile scheduler stop timed out")
		return ctx.Err()
	}
}

// loop runs one pass per poll interval. The first pass is delayed by a
// random fraction of the interval so restarted replicas do not stampede
// the partner API in lockstep.
func (s *ReconcileScheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	if jitterMax := int64(s.config.PollInterval) / 10; jitterMax > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(rand.Int63n(jitterMax))):
		}
	}

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	s.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

// runOnce lists remote changes since the previous pass and enqueues events.
func (s *ReconcileScheduler) runOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	start := s.now()
	since := s.lastRun
	if since.IsZero() {
		since = start.Add(-s.config.PollInterval)
	}
	since = since.Add(-s.config.LookbackSlack)

	opportunities, err := s.remote.ListRecentlyUpdated(ctx, since)
	if err != nil {
		s.logger.Error("failed to list recently updated opportunities", zap.Error(err))
		return
	}
	// Advance the watermark only after a successful listing so a failed
	// pass is retried over the same window.
	s.lastRun = start

	if len(opportunities) == 0 {
		return
	}

	events := make([]*domainsync.Event, 0, len(opportunities))
	for _, opp := range opportunities {
		events = append(events, s.pollEvent(opp, start))
	}

	result := s.ingestor.Ingest(ctx, events)
	s.logger.Info("reconcile pass enqueued remote changes",
		zap.Int("remote_seen", len(opportunities)),
		zap.Int("enqueued", result.Enqueued),
		zap.Int("duplicates", result.Duplicates),
		zap.Int("errors", result.Errors),
	)
}

// pollEvent builds the canonical event for one remote change. The event ID
// is deterministic within a poll tick so a crashed-and-retried pass
// collapses in the queue's dedup window instead of double-enqueueing.
func (s *ReconcileScheduler) pollEvent(opp *domainsync.Opportunity, start time.Time) *domainsync.Event {
	tick := start.Truncate(s.config.PollInterval).Unix()
	event := domainsync.NewEvent(
		domainsync.EventTypeDealPropertyChange,
		domainsync.SourceAWS,
		opp.ID,
		"opportunity",
		nil,
	)
	event.EventID = fmt.Sprintf("aws-poll-%s-%d", opp.ID, tick)
	event.Timestamp = start.UTC()
	return event
}
