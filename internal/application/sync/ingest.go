package sync

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domainsync "github.com/dealbridge/backend/internal/domain/sync"
)

// IngestError describes one event that could not be accepted.
type IngestError struct {
	Index   int    `json:"index"`
	EventID string `json:"event_id,omitempty"`
	Message string `json:"message"`
}

// IngestResult is the partial-failure accounting for one webhook batch. A
// batch is never rejected wholesale: every parseable event is enqueued and
// the rest are itemized.
type IngestResult struct {
	Received     int           `json:"received"`
	Enqueued     int           `json:"enqueued"`
	Duplicates   int           `json:"duplicates"`
	Errors       int           `json:"errors"`
	ErrorDetails []IngestError `json:"errorDetails,omitempty"`
}

// Ingestor accepts canonical events into the durable queue.
type Ingestor struct {
	queue  domainsync.Queue
	logger *zap.Logger
}

// NewIngestor creates an ingestor.
func NewIngestor(queue domainsync.Queue, logger *zap.Logger) *Ingestor {
	return &Ingestor{queue: queue, logger: logger}
}

// Ingest enqueues a batch of events, one at a time so a bad event never
// poisons its neighbors. Duplicates within the dedup window are counted
// separately; they are a success from the caller's point of view.
func (i *Ingestor) Ingest(ctx context.Context, events []*domainsync.Event) *IngestResult {
	result := &IngestResult{Received: len(events)}

	for idx, event := range events {
		body, err := event.Marshal()
		if err != nil {
			result.Errors++
			result.ErrorDetails = append(result.ErrorDetails, IngestError{
				Index:   idx,
				EventID: event.EventID,
				Message: fmt.Sprintf("encode event: %v", err),
			})
			continue
		}

		id, err := i.queue.Enqueue(ctx, event.OrderingKey(), event.DedupKey(), body)
		if err != nil {
			result.Errors++
			result.ErrorDetails = append(result.ErrorDetails, IngestError{
				Index:   idx,
				EventID: event.EventID,
				Message: fmt.Sprintf("enqueue event: %v", err),
			})
			i.logger.Error("failed to enqueue event",
				zap.String("event_id", event.EventID),
				zap.Error(err),
			)
			continue
		}

		if id == uuid.Nil {
			result.Duplicates++
			i.logger.Debug("duplicate event suppressed",
				zap.String("event_id", event.EventID),
			)
		}
		result.Enqueued++
	}

	return result
}
