package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	domainsync "github.com/dealbridge/backend/internal/domain/sync"
)

// fakeStore is an in-memory processed-event store.
type fakeStore struct {
	processed map[string]bool
	err       error
}

func newFakeStore() *fakeStore {
	return &fakeStore{processed: make(map[string]bool)}
}

func (s *fakeStore) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	if s.processed[eventID] {
		return false, nil
	}
	s.processed[eventID] = true
	return true, nil
}

func (s *fakeStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.processed[eventID], nil
}

func (s *fakeStore) Close() error { return nil }

// flakyHandler fails its first delivery and succeeds afterwards.
type flakyHandler struct {
	calls int
}

func (h *flakyHandler) EventTypes() []domainsync.EventType {
	return []domainsync.EventType{domainsync.EventTypeDealCreation}
}

func (h *flakyHandler) Handle(ctx context.Context, event *domainsync.Event) (*domainsync.Result, error) {
	h.calls++
	if h.calls == 1 {
		return nil, errors.New("remote throttled")
	}
	return &domainsync.Result{Action: domainsync.ActionCreated}, nil
}

func enqueueEvent(t *testing.T, q *fakeQueue, event *domainsync.Event) *domainsync.Message {
	t.Helper()
	body, err := event.Marshal()
	require.NoError(t, err)
	_, err = q.Enqueue(context.Background(), event.OrderingKey(), event.DedupKey(), body)
	require.NoError(t, err)
	msg, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	require.NotNil(t, msg)
	return msg
}

func TestProcessor_ProcessMessage(t *testing.T) {
	ctx := context.Background()
	log := zap.NewNop()

	newProcessor := func(handler domainsync.Handler, store domainsync.IdempotencyStore) (*Processor, *fakeQueue) {
		q := newFakeQueue()
		r := NewRouter()
		if handler != nil {
			require.NoError(t, r.Register(domainsync.SourceHubSpot, handler))
		}
		return NewProcessor(q, r, store, DefaultProcessorConfig(), log), q
	}

	t.Run("dispatches and acknowledges", func(t *testing.T) {
		handler := &stubHandler{
			types:  []domainsync.EventType{domainsync.EventTypeDealCreation},
			result: &domainsync.Result{Action: domainsync.ActionCreated},
		}
		p, q := newProcessor(handler, newFakeStore())
		msg := enqueueEvent(t, q, domainsync.NewEvent(
			domainsync.EventTypeDealCreation, domainsync.SourceHubSpot, "1", "deal", nil))

		p.processMessage(ctx, msg, log)

		require.Len(t, handler.events, 1)
		assert.Len(t, q.acked, 1)
		assert.Empty(t, q.nacked)
	})

	t.Run("acknowledges an already-processed event without dispatching", func(t *testing.T) {
		handler := &stubHandler{
			types:  []domainsync.EventType{domainsync.EventTypeDealCreation},
			result: &domainsync.Result{Action: domainsync.ActionCreated},
		}
		store := newFakeStore()
		p, q := newProcessor(handler, store)
		event := domainsync.NewEvent(domainsync.EventTypeDealCreation, domainsync.SourceHubSpot, "1", "deal", nil)
		store.processed[event.EventID] = true
		msg := enqueueEvent(t, q, event)

		p.processMessage(ctx, msg, log)

		assert.Empty(t, handler.events)
		assert.Len(t, q.acked, 1)
	})

	t.Run("processes anyway when the store is down", func(t *testing.T) {
		handler := &stubHandler{
			types:  []domainsync.EventType{domainsync.EventTypeDealCreation},
			result: &domainsync.Result{Action: domainsync.ActionCreated},
		}
		store := newFakeStore()
		store.err = errors.New("connection refused")
		p, q := newProcessor(handler, store)
		msg := enqueueEvent(t, q, domainsync.NewEvent(
			domainsync.EventTypeDealCreation, domainsync.SourceHubSpot, "1", "deal", nil))

		p.processMessage(ctx, msg, log)

		require.Len(t, handler.events, 1)
		assert.Len(t, q.acked, 1)
	})

	t.Run("acknowledges events nobody handles", func(t *testing.T) {
		p, q := newProcessor(nil, newFakeStore())
		msg := enqueueEvent(t, q, domainsync.NewEvent(
			domainsync.EventTypeNoteCreation, domainsync.SourceGCP, "n1", "note", nil))

		p.processMessage(ctx, msg, log)

		assert.Len(t, q.acked, 1)
		assert.Empty(t, q.nacked)
	})

	t.Run("returns failed events to the queue", func(t *testing.T) {
		handler := &stubHandler{
			types: []domainsync.EventType{domainsync.EventTypeDealCreation},
			err:   errors.New("remote throttled"),
		}
		store := newFakeStore()
		p, q := newProcessor(handler, store)
		event := domainsync.NewEvent(domainsync.EventTypeDealCreation, domainsync.SourceHubSpot, "1", "deal", nil)
		msg := enqueueEvent(t, q, event)

		p.processMessage(ctx, msg, log)

		assert.Empty(t, q.acked)
		require.Len(t, q.nacked, 1)
		assert.Contains(t, q.nacked[0], "remote throttled")
		assert.False(t, store.processed[event.EventID],
			"a failed dispatch must not mark the event processed")
	})

	t.Run("reprocesses a transiently failed event on redelivery", func(t *testing.T) {
		handler := &flakyHandler{}
		store := newFakeStore()
		p, q := newProcessor(handler, store)
		event := domainsync.NewEvent(domainsync.EventTypeDealCreation, domainsync.SourceHubSpot, "1", "deal", nil)
		msg := enqueueEvent(t, q, event)

		p.processMessage(ctx, msg, log)
		require.Len(t, q.nacked, 1)
		require.Empty(t, q.acked)

		redelivered, err := q.Dequeue(ctx)
		require.NoError(t, err)
		require.NotNil(t, redelivered)
		p.processMessage(ctx, redelivered, log)

		assert.Equal(t, 2, handler.calls)
		assert.Len(t, q.acked, 1)
		assert.True(t, store.processed[event.EventID])
	})

	t.Run("settles an undecodable body", func(t *testing.T) {
		p, q := newProcessor(nil, newFakeStore())
		_, err := q.Enqueue(ctx, "k", "d", []byte("not json"))
		require.NoError(t, err)
		msg, err := q.Dequeue(ctx)
		require.NoError(t, err)

		p.processMessage(ctx, msg, log)

		assert.Empty(t, q.acked)
		assert.Len(t, q.nacked, 1)
	})
}

func TestProcessor_StartStop(t *testing.T) {
	handler := &stubHandler{
		types:  []domainsync.EventType{domainsync.EventTypeDealCreation},
		result: &domainsync.Result{Action: domainsync.ActionCreated},
	}
	q := newFakeQueue()
	r := NewRouter()
	require.NoError(t, r.Register(domainsync.SourceHubSpot, handler))

	cfg := DefaultProcessorConfig()
	cfg.Workers = 2
	cfg.PollInterval = 10 * time.Millisecond
	cfg.CleanupEnabled = false
	p := NewProcessor(q, r, newFakeStore(), cfg, zap.NewNop())

	require.NoError(t, p.Start(context.Background()))

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Stop(stopCtx))
}
