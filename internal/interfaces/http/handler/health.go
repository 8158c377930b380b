package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	domainsync "github.com/dealbridge/backend/internal/domain/sync"
)

// HealthHandler reports liveness and queue depth.
type HealthHandler struct {
	store   domainsync.DeadLetterStore
	version string
}

// NewHealthHandler creates the health handler.
func NewHealthHandler(store domainsync.DeadLetterStore, version string) *HealthHandler {
	return &HealthHandler{store: store, version: version}
}

// Healthz handles GET /healthz. Queue counts are best-effort; the endpoint
// stays green as long as the process serves requests.
func (h *HealthHandler) Healthz(c *gin.Context) {
	out := gin.H{
		"status":  "ok",
		"version": h.version,
	}
	if h.store != nil {
		if counts, err := h.store.CountByStatus(c.Request.Context()); err == nil {
			queue := make(map[string]int64, len(counts))
			for status, n := range counts {
				queue[string(status)] = n
			}
			out["queue"] = queue
		}
	}
	c.JSON(http.StatusOK, out)
}
