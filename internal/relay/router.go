package relay

import (
	"encoding/json"
	"fmt"
	"log/slog"
)

// Sender is the connection an inbound envelope arrived on. Beyond the plain
// Peer surface the router needs to read and record the connection's identity.
type Sender interface {
	Peer
	Key() string
	BindKey(key string)
}

// PresenceRecorder mirrors online state to an external store, best-effort.
// The registry stays the source of truth; a nil recorder disables mirroring.
type PresenceRecorder interface {
	PeerOnline(key string)
	PeerOffline(key string)
}

// Router consumes one inbound envelope at a time, resolves the recipient in
// the registry and delivers or reports failure. At-most-once, no queue: an
// offline recipient never receives a buffered copy later.
type Router struct {
	registry *Registry
	presence PresenceRecorder
	logger   *slog.Logger
}

func NewRouter(registry *Registry, presence PresenceRecorder) *Router {
	return &Router{
		registry: registry,
		presence: presence,
		logger:   slog.Default(),
	}
}

// Registry exposes the routing table for read-only collaborators (health).
func (rt *Router) Registry() *Registry {
	return rt.registry
}

// Route dispatches one envelope from sender.
func (rt *Router) Route(env *Envelope, sender Sender) {
	if env.Type == TypeRegister {
		rt.handleRegister(env, sender)
		return
	}

	// Routable message. A missing from/to is dropped without an error
	// envelope: the sender's identity may not be established yet.
	from, err := NormalizeAddress(env.From)
	if err != nil {
		rt.logger.Debug("message_dropped_no_sender",
			"type", env.Type,
		)
		return
	}
	to, err := NormalizeAddress(env.To)
	if err != nil {
		rt.logger.Debug("message_dropped_no_recipient",
			"type", env.Type,
			"from", from,
		)
		return
	}

	recipient, ok := rt.registry.Lookup(to)
	if !ok || !recipient.IsOpen() {
		rt.reportFailure(env, from, to, sender)
		return
	}

	// Forward the original bytes verbatim, unknown fields included.
	if err := recipient.Send(env.Raw()); err != nil {
		rt.logger.Warn("forward_failed",
			"from", from,
			"to", to,
			"error", err.Error(),
		)
		return
	}
	rt.logger.Info("message_forwarded",
		"type", env.Type,
		"from", from,
		"to", to,
	)

	if env.IsContent() {
		rt.sendJSON(sender, DeliveredEnvelope{
			Type:      TypeDelivered,
			MessageID: env.MessageID,
			To:        to,
			Timestamp: nowMillis(),
		})
	}
}

func (rt *Router) handleRegister(env *Envelope, sender Sender) {
	key, err := NormalizeAddress(env.RegisterAddress())
	if err != nil {
		rt.logger.Warn("register_rejected",
			"client_key", sender.Key(),
			"error", err.Error(),
		)
		rt.sendJSON(sender, ErrorEnvelope{Type: TypeError, Message: "register requires a wallet address"})
		return
	}

	// A connection that re-registers under a new key gives up its old one,
	// otherwise the stale entry would linger until the next sweep.
	if prev := sender.Key(); prev != "" && prev != key {
		if rt.registry.Release(prev, sender) {
			rt.recordOffline(prev)
		}
	}

	rt.registry.Bind(key, sender)
	sender.BindKey(key)
	rt.recordOnline(key)
	rt.logger.Info("client_registered",
		"key", key,
	)

	rt.sendJSON(sender, RegisteredEnvelope{Type: TypeRegistered, Address: key, Timestamp: nowMillis()})
	// Older clients wait for ack instead of registered, send both.
	rt.sendJSON(sender, AckEnvelope{Type: TypeAck, Address: key})
	rt.BroadcastStats()
}

// reportFailure synthesizes a delivery-failed notice, but only toward a
// sender whose own key is currently bound. Failure notices are not sent to
// ephemeral unregistered connections.
func (rt *Router) reportFailure(env *Envelope, from, to string, sender Sender) {
	if _, bound := rt.registry.Lookup(from); !bound {
		rt.logger.Debug("message_dropped_unreachable",
			"from", from,
			"to", to,
		)
		return
	}
	rt.logger.Info("delivery_failed",
		"from", from,
		"to", to,
	)
	rt.sendJSON(sender, FailedEnvelope{
		Type:            TypeFailed,
		OriginalMessage: json.RawMessage(env.Raw()),
		Reason:          fmt.Sprintf("recipient %s is not connected", to),
		Timestamp:       nowMillis(),
	})
}

// Disconnect handles connection teardown. A clean close of a registered
// connection unbinds it and announces the new count; an abrupt transport
// error only unbinds, the count self-corrects on the next sweep or mutation.
func (rt *Router) Disconnect(sender Sender, clean bool) {
	key := sender.Key()
	if key == "" {
		return
	}
	if !rt.registry.Release(key, sender) {
		// Already replaced by a newer connection under the same key.
		return
	}
	rt.recordOffline(key)
	rt.logger.Info("client_disconnected",
		"key", key,
		"clean", clean,
	)
	if clean {
		rt.BroadcastStats()
	}
}

func (rt *Router) sendJSON(p Peer, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		rt.logger.Error("envelope_marshal_failed",
			"error", err.Error(),
		)
		return
	}
	if err := p.Send(data); err != nil {
		rt.logger.Warn("send_failed",
			"error", err.Error(),
		)
	}
}

func (rt *Router) recordOnline(key string) {
	if rt.presence != nil {
		rt.presence.PeerOnline(key)
	}
}

func (rt *Router) recordOffline(key string) {
	if rt.presence != nil {
		rt.presence.PeerOffline(key)
	}
}
