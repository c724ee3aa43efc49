package relay

import "encoding/json"

// BroadcastStats fans the current connection count out to every open
// connection in the registry. The count and timestamp are computed on
// demand, never stored. A send failure skips that recipient only.
func (rt *Router) BroadcastStats() {
	stats := StatsEnvelope{
		Type:             TypeStats,
		ConnectedClients: rt.registry.Size(),
		Timestamp:        nowMillis(),
	}
	data, err := json.Marshal(stats)
	if err != nil {
		rt.logger.Error("stats_marshal_failed",
			"error", err.Error(),
		)
		return
	}
	for _, p := range rt.registry.Peers() {
		if !p.IsOpen() {
			continue
		}
		if err := p.Send(data); err != nil {
			rt.logger.Warn("stats_send_failed",
				"error", err.Error(),
			)
		}
	}
}
