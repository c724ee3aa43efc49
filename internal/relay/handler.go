package relay

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// HTTP upgrade handler to WebSocket connections

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// wallet clients connect from arbitrary origins, CORS is handled at the
	// HTTP layer
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSHandler upgrades the request and hands the connection to its own read
// and write pumps. The connection stays unregistered until the client sends
// a register envelope; the immediate ping is a liveness probe, nothing more.
func WSHandler(router *Router, msgRate rate.Limit, burst int) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Warn("websocket_upgrade_failed",
				"remote_addr", c.Request.RemoteAddr,
				"error", err.Error(),
			)
			return
		}

		client := NewClient(conn, msgRate, burst)
		slog.Info("client_connected",
			"client_id", client.ID,
			"remote_addr", conn.RemoteAddr().String(),
		)

		// Queued before the pumps start, so the probe is the first frame out.
		if data, err := json.Marshal(NewPingEnvelope()); err == nil {
			client.Send(data)
		}

		go client.WritePump()
		go client.ReadPump(router)
	}
}
