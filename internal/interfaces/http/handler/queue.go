package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	domainsync "github.com/dealbridge/backend/internal/domain/sync"
	"github.com/dealbridge/backend/internal/interfaces/http/dto"
)

// deadMessageResponse is the API shape of a dead-lettered message.
type deadMessageResponse struct {
	ID            string    `json:"id"`
	OrderingKey   string    `json:"ordering_key"`
	DedupKey      string    `json:"dedup_key"`
	Body          string    `json:"body"`
	DeliveryCount int       `json:"delivery_count"`
	LastError     string    `json:"last_error"`
	EnqueuedAt    time.Time `json:"enqueued_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toDeadMessageResponse(m *domainsync.Message) deadMessageResponse {
	return deadMessageResponse{
		ID:            m.ID.String(),
		OrderingKey:   m.OrderingKey,
		DedupKey:      m.DedupKey,
		Body:          string(m.Body),
		DeliveryCount: m.DeliveryCount,
		LastError:     m.LastError,
		EnqueuedAt:    m.EnqueuedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

// QueueHandler exposes dead-letter triage to operators.
type QueueHandler struct {
	BaseHandler
	store  domainsync.DeadLetterStore
	logger *zap.Logger
}

// NewQueueHandler creates the queue handler.
func NewQueueHandler(store domainsync.DeadLetterStore, logger *zap.Logger) *QueueHandler {
	return &QueueHandler{store: store, logger: logger}
}

// RegisterRoutes registers queue routes.
func (h *QueueHandler) RegisterRoutes(rg *gin.RouterGroup) {
	queue := rg.Group("/queue")
	{
		queue.GET("/dead", h.ListDead)
		queue.POST("/dead/:id/retry", h.Retry)
		queue.GET("/stats", h.Stats)
	}
}

// ListDead handles GET /queue/dead.
func (h *QueueHandler) ListDead(c *gin.Context) {
	page := intQuery(c, "page", 1)
	pageSize := intQuery(c, "page_size", 20)

	messages, total, err := h.store.FindDead(c.Request.Context(), page, pageSize)
	if err != nil {
		h.logger.Error("failed to list dead letters", zap.Error(err))
		h.Internal(c, "failed to list dead letters")
		return
	}

	out := make([]deadMessageResponse, 0, len(messages))
	for _, m := range messages {
		out = append(out, toDeadMessageResponse(m))
	}
	h.SuccessWithMeta(c, out, total, page, pageSize)
}

// Retry handles POST /queue/dead/:id/retry.
func (h *QueueHandler) Retry(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "invalid message id")
		return
	}

	if err := h.store.Requeue(c.Request.Context(), id); err != nil {
		h.ErrorWithCode(c, dto.ErrCodeInvalidState, err.Error())
		return
	}

	h.logger.Info("dead letter requeued", zap.String("message_id", id.String()))
	h.Success(c, gin.H{"requeued": id.String()})
}

// Stats handles GET /queue/stats.
func (h *QueueHandler) Stats(c *gin.Context) {
	counts, err := h.store.CountByStatus(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to count queue messages", zap.Error(err))
		h.Internal(c, "failed to count queue messages")
		return
	}

	out := make(map[string]int64, len(counts))
	for status, n := range counts {
		out[string(status)] = n
	}
	h.Success(c, out)
}

// intQuery parses a positive integer query parameter with a fallback.
func intQuery(c *gin.Context, name string, fallback int) int {
	n, err := strconv.Atoi(c.Query(name))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
