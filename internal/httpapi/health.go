package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// ConnectionCounter is the read-only slice of the relay registry the health
// endpoint needs.
type ConnectionCounter interface {
	Size() int
}

type HealthHandler struct {
	registry ConnectionCounter
	started  time.Time
}

func NewHealthHandler(registry ConnectionCounter) *HealthHandler {
	return &HealthHandler{
		registry: registry,
		started:  time.Now(),
	}
}

func (h *HealthHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)
}

// Health reports liveness plus the current connection count. Read-only, no
// registry mutation.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":           "ok",
		"connectedClients": h.registry.Size(),
		"uptimeSeconds":    int64(time.Since(h.started).Seconds()),
		"timestamp":        time.Now().UnixMilli(),
	})
}
