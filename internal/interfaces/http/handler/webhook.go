package handler

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appsync "github.com/dealbridge/backend/internal/application/sync"
	domainsync "github.com/dealbridge/backend/internal/domain/sync"
	"github.com/dealbridge/backend/internal/interfaces/http/middleware"
)

// webhookItem is one entry of a provider webhook batch, in the CRM's
// subscription delivery format.
type webhookItem struct {
	EventID          int64       `json:"eventId"`
	SubscriptionType string      `json:"subscriptionType"`
	ObjectID         json.Number `json:"objectId"`
	PropertyName     string      `json:"propertyName"`
	PropertyValue    string      `json:"propertyValue"`
	OccurredAt       int64       `json:"occurredAt"`
	AttemptNumber    int         `json:"attemptNumber"`
}

// WebhookHandler accepts provider webhook batches and feeds them into the
// durable queue. Acceptance is partial-failure: the batch is answered with
// HTTP 200 and per-item accounting as long as the body itself parses.
type WebhookHandler struct {
	BaseHandler
	ingestor *appsync.Ingestor
	logger   *zap.Logger
}

// NewWebhookHandler creates the webhook handler.
func NewWebhookHandler(ingestor *appsync.Ingestor, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{ingestor: ingestor, logger: logger}
}

// Receive handles POST /webhooks/:source.
func (h *WebhookHandler) Receive(c *gin.Context) {
	source, err := domainsync.ParseSource(c.Param("source"))
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	body, ok := c.Get(middleware.RawBodyKey)
	if !ok {
		h.BadRequest(c, "missing request body")
		return
	}

	var items []webhookItem
	if err := json.Unmarshal(body.([]byte), &items); err != nil {
		// Single-object deliveries happen during provider test pings.
		var single webhookItem
		if err := json.Unmarshal(body.([]byte), &single); err != nil {
			h.BadRequest(c, "body is not a webhook batch")
			return
		}
		items = []webhookItem{single}
	}

	correlationID := getRequestID(c)
	events := make([]*domainsync.Event, 0, len(items))
	for _, item := range items {
		events = append(events, item.toEvent(source, correlationID))
	}

	result := h.ingestor.Ingest(c.Request.Context(), events)
	h.logger.Info("webhook batch accepted",
		zap.String("source", string(source)),
		zap.Int("received", result.Received),
		zap.Int("enqueued", result.Enqueued),
		zap.Int("duplicates", result.Duplicates),
		zap.Int("errors", result.Errors),
	)
	h.Success(c, result)
}

// toEvent converts one webhook item into a canonical event. The provider's
// event ID becomes the dedup key so provider retries collapse in the queue.
func (i webhookItem) toEvent(source domainsync.Source, correlationID string) *domainsync.Event {
	properties := make(map[string]string)
	if i.PropertyName != "" {
		properties[i.PropertyName] = i.PropertyValue
	}

	event := domainsync.EventFromWebhook(source, i.SubscriptionType, i.ObjectID.String(), properties, correlationID)
	if i.EventID != 0 {
		event.EventID = fmt.Sprintf("%s-%d", source, i.EventID)
	}
	if i.OccurredAt > 0 {
		event.Timestamp = time.UnixMilli(i.OccurredAt).UTC()
	}
	return event
}
