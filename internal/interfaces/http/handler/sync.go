package handler

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appsync "github.com/dealbridge/backend/internal/application/sync"
	domainsync "github.com/dealbridge/backend/internal/domain/sync"
	"github.com/dealbridge/backend/internal/interfaces/http/dto"
)

// SyncHandler exposes manual sync operations to operators.
type SyncHandler struct {
	BaseHandler
	orchestrator *appsync.Orchestrator
	reconciler   *appsync.Reconciler
	logger       *zap.Logger
}

// NewSyncHandler creates the sync handler.
func NewSyncHandler(orchestrator *appsync.Orchestrator, reconciler *appsync.Reconciler, logger *zap.Logger) *SyncHandler {
	return &SyncHandler{orchestrator: orchestrator, reconciler: reconciler, logger: logger}
}

// RegisterRoutes registers sync routes.
func (h *SyncHandler) RegisterRoutes(rg *gin.RouterGroup) {
	sync := rg.Group("/sync")
	{
		sync.POST("/deals/:id", h.SyncDeal)
		sync.POST("/reconcile", h.Reconcile)
	}
}

// SyncDeal handles POST /sync/deals/:id. The force flag bypasses both the
// trigger-tag gate and the review-status block.
func (h *SyncHandler) SyncDeal(c *gin.Context) {
	dealID := c.Param("id")
	force := c.Query("force") == "true"

	result, err := h.orchestrator.SyncLocalToRemote(c.Request.Context(), dealID, nil, force)
	switch {
	case errors.Is(err, domainsync.ErrDealNotFound):
		h.NotFound(c, "deal not found")
		return
	case errors.Is(err, domainsync.ErrUpdateBlocked):
		h.Error(c, dto.GetHTTPStatus(dto.ErrCodeUpdateBlocked), dto.ErrCodeUpdateBlocked, result.Reason)
		return
	case err != nil:
		h.logger.Error("manual sync failed", zap.String("deal_id", dealID), zap.Error(err))
		h.Internal(c, "sync failed")
		return
	}

	h.Success(c, result)
}

// Reconcile handles POST /sync/reconcile. The optional since parameter is
// RFC3339; it defaults to the last 24 hours.
func (h *SyncHandler) Reconcile(c *gin.Context) {
	since := time.Now().Add(-24 * time.Hour)
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.BadRequest(c, "since must be RFC3339")
			return
		}
		since = parsed
	}

	report, err := h.reconciler.Reconcile(c.Request.Context(), since)
	if err != nil {
		h.logger.Error("reconciliation failed", zap.Error(err))
		h.Internal(c, "reconciliation failed")
		return
	}

	h.Success(c, report)
}
