package relay

import (
	"encoding/json"
	"errors"
	"time"
)

// Envelope protocol definitions

// Envelope types exchanged over a connection. Clients may send any type;
// only the ones below have meaning to the relay itself.
const (
	TypePing       = "ping"       // server -> client liveness probe on connect
	TypeRegister   = "register"   // client -> server identity registration
	TypeRegistered = "registered" // server -> client on successful register
	TypeAck        = "ack"        // server -> client, duplicate of registered for older clients
	TypeError      = "error"      // server -> client on a failed register or rejected input
	TypeDelivered  = "message-delivered"
	TypeFailed     = "delivery-failed"
	TypeStats      = "server-stats"

	TypeMessage = "message"
	TypeMedia   = "media"
	TypeVoice   = "voice"
)

var ErrMissingType = errors.New("envelope has no type field")

// Envelope is the parsed header of one inbound message. Unknown fields are
// not dropped: the original wire bytes are kept and forwarded verbatim, the
// struct only carries what routing needs.
type Envelope struct {
	Type          string `json:"type"`
	From          string `json:"from,omitempty"`
	To            string `json:"to,omitempty"`
	MessageID     string `json:"messageId,omitempty"`
	Address       string `json:"address,omitempty"`
	WalletAddress string `json:"walletAddress,omitempty"`

	raw []byte // original bytes as received, never mutated
}

// ParseEnvelope decodes one inbound frame. The raw bytes are retained so a
// routable envelope can be delivered to the recipient unmodified.
func ParseEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	if env.Type == "" {
		return nil, ErrMissingType
	}
	env.raw = append([]byte(nil), data...)
	return &env, nil
}

// Raw returns the envelope exactly as it arrived on the wire.
func (e *Envelope) Raw() []byte {
	return e.raw
}

// RegisterAddress returns the wallet address carried by a register envelope.
// Clients disagree on the field name, first non-empty wins.
func (e *Envelope) RegisterAddress() string {
	if e.Address != "" {
		return e.Address
	}
	return e.WalletAddress
}

// IsContent reports whether the envelope is a content message kind that earns
// a delivery acknowledgment back to the sender.
func (e *Envelope) IsContent() bool {
	switch e.Type {
	case TypeMessage, TypeMedia, TypeVoice:
		return true
	}
	return false
}

// Server-emitted envelopes. Timestamps are epoch milliseconds.

type PingEnvelope struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

type RegisteredEnvelope struct {
	Type      string `json:"type"`
	Address   string `json:"address"`
	Timestamp int64  `json:"timestamp"`
}

type AckEnvelope struct {
	Type    string `json:"type"`
	Address string `json:"address"`
}

type ErrorEnvelope struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type DeliveredEnvelope struct {
	Type      string `json:"type"`
	MessageID string `json:"messageId,omitempty"`
	To        string `json:"to"`
	Timestamp int64  `json:"timestamp"`
}

type FailedEnvelope struct {
	Type            string          `json:"type"`
	OriginalMessage json.RawMessage `json:"originalMessage"`
	Reason          string          `json:"reason"`
	Timestamp       int64           `json:"timestamp"`
}

type StatsEnvelope struct {
	Type             string `json:"type"`
	ConnectedClients int    `json:"connectedClients"`
	Timestamp        int64  `json:"timestamp"`
}

func NewPingEnvelope() PingEnvelope {
	return PingEnvelope{Type: TypePing, Timestamp: nowMillis()}
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
