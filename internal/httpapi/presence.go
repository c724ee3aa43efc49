package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/waleedxyz/blockchat-relay/internal/presence"
	"github.com/waleedxyz/blockchat-relay/internal/relay"
)

// PresenceReader looks up last-seen state for a wallet.
type PresenceReader interface {
	LastSeen(ctx context.Context, key string) (presence.Snapshot, bool, error)
}

type PresenceHandler struct {
	store PresenceReader
}

func NewPresenceHandler(store PresenceReader) *PresenceHandler {
	return &PresenceHandler{store: store}
}

func (h *PresenceHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/api/presence/:address", h.GetPresence)
}

// GetPresence reports whether a wallet is known and when it was last seen.
func (h *PresenceHandler) GetPresence(c *gin.Context) {
	key, err := relay.NormalizeAddress(c.Param("address"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid wallet address"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	snap, found, err := h.store.LastSeen(ctx, key)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "wallet has never been seen"})
		return
	}
	c.JSON(http.StatusOK, snap)
}
