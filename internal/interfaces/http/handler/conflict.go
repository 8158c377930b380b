package handler

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	appsync "github.com/dealbridge/backend/internal/application/sync"
	domainsync "github.com/dealbridge/backend/internal/domain/sync"
	"github.com/dealbridge/backend/internal/interfaces/http/dto"
	"github.com/dealbridge/backend/internal/interfaces/http/middleware"
)

// conflictResponse is the API shape of a conflict record.
type conflictResponse struct {
	ID              string     `json:"id"`
	ObjectID        string     `json:"object_id"`
	Field           string     `json:"field"`
	LocalValue      string     `json:"local_value"`
	LocalTimestamp  time.Time  `json:"local_timestamp"`
	RemoteValue     string     `json:"remote_value"`
	RemoteTimestamp time.Time  `json:"remote_timestamp"`
	DetectedAt      time.Time  `json:"detected_at"`
	Status          string     `json:"status"`
	Winner          string     `json:"winner,omitempty"`
	ResolvedBy      string     `json:"resolved_by,omitempty"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
}

func toConflictResponse(c *domainsync.Conflict) conflictResponse {
	return conflictResponse{
		ID:              c.ID.String(),
		ObjectID:        c.ObjectID,
		Field:           c.Field,
		LocalValue:      c.LocalValue,
		LocalTimestamp:  c.LocalTimestamp,
		RemoteValue:     c.RemoteValue,
		RemoteTimestamp: c.RemoteTimestamp,
		DetectedAt:      c.DetectedAt,
		Status:          string(c.Status),
		Winner:          string(c.Winner),
		ResolvedBy:      c.ResolvedBy,
		ResolvedAt:      c.ResolvedAt,
	}
}

// resolveConflictRequest is the manual resolution payload.
type resolveConflictRequest struct {
	Winner string `json:"winner" binding:"required,oneof=LOCAL REMOTE"`
}

// ConflictHandler exposes conflict triage to operators.
type ConflictHandler struct {
	BaseHandler
	service *appsync.ConflictService
	logger  *zap.Logger
}

// NewConflictHandler creates the conflict handler.
func NewConflictHandler(service *appsync.ConflictService, logger *zap.Logger) *ConflictHandler {
	return &ConflictHandler{service: service, logger: logger}
}

// RegisterRoutes registers conflict routes.
func (h *ConflictHandler) RegisterRoutes(rg *gin.RouterGroup) {
	conflicts := rg.Group("/conflicts")
	{
		conflicts.GET("", h.List)
		conflicts.POST("/:id/resolve", h.Resolve)
	}
}

// List handles GET /conflicts.
func (h *ConflictHandler) List(c *gin.Context) {
	limit := 50
	conflicts, err := h.service.ListPending(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list conflicts", zap.Error(err))
		h.Internal(c, "failed to list conflicts")
		return
	}

	out := make([]conflictResponse, 0, len(conflicts))
	for _, conflict := range conflicts {
		out = append(out, toConflictResponse(conflict))
	}
	h.Success(c, out)
}

// Resolve handles POST /conflicts/:id/resolve.
func (h *ConflictHandler) Resolve(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "invalid conflict id")
		return
	}

	var req resolveConflictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	resolvedBy := middleware.GetJWTSubject(c)
	if resolvedBy == "" {
		resolvedBy = "api"
	}

	conflict, err := h.service.Resolve(c.Request.Context(), id, domainsync.Winner(req.Winner), resolvedBy)
	if err != nil {
		switch {
		case errors.Is(err, domainsync.ErrConflictNotFound):
			h.NotFound(c, "conflict not found")
		default:
			h.ErrorWithCode(c, dto.ErrCodeInvalidState, err.Error())
		}
		return
	}

	h.Success(c, toConflictResponse(conflict))
}
