package relay

import (
	"log/slog"
	"sync"
)

// Peer is one live duplex connection the relay can write to. Send must not
// block: a slow recipient is the recipient's problem, never the sender's.
type Peer interface {
	Send(data []byte) error
	Close()
	IsOpen() bool
}

// Registry is the single source of truth for who is online: normalized
// wallet address -> live connection, at most one entry per key.
//
// Connections are handled goroutine-per-connection, so every operation
// takes the lock; the registry is the only shared state in the relay.
type Registry struct {
	mu     sync.RWMutex
	peers  map[string]Peer
	logger *slog.Logger
}

func NewRegistry() *Registry {
	return &Registry{
		peers:  make(map[string]Peer),
		logger: slog.Default(),
	}
}

// Bind maps key to p. An existing entry for the same key is replaced and its
// old connection is asked to close (best-effort, a close failure is ignored).
func (r *Registry) Bind(key string, p Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.peers[key]; ok && old != p {
		old.Close()
		r.logger.Info("peer_replaced",
			"key", key,
		)
	}
	r.peers[key] = p
	r.logger.Info("peer_bound",
		"key", key,
		"connected", len(r.peers),
	)
}

// Lookup returns the connection bound to key, if any.
func (r *Registry) Lookup(key string) (Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.peers[key]
	return p, ok
}

// Unbind removes the entry for key. No-op when key is not bound.
func (r *Registry) Unbind(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.peers[key]; !ok {
		return
	}
	delete(r.peers, key)
	r.logger.Info("peer_unbound",
		"key", key,
		"connected", len(r.peers),
	)
}

// Release removes the entry for key only while it still points at p. A
// connection that was already replaced under the same key must not evict
// its successor during teardown.
func (r *Registry) Release(key string, p Peer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.peers[key]; !ok || cur != p {
		return false
	}
	delete(r.peers, key)
	r.logger.Info("peer_released",
		"key", key,
		"connected", len(r.peers),
	)
	return true
}

// Size returns the current entry count.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

// Peers returns a point-in-time snapshot for iteration outside the lock.
func (r *Registry) Peers() []Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	peers := make([]Peer, 0, len(r.peers))
	for _, p := range r.peers {
		peers = append(peers, p)
	}
	return peers
}

// Sweep drops every entry whose connection is no longer open and returns the
// number removed. Backstop for handles that dropped without a close event.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for key, p := range r.peers {
		if !p.IsOpen() {
			delete(r.peers, key)
			removed++
			r.logger.Info("stale_peer_swept",
				"key", key,
			)
		}
	}
	return removed
}

// CloseAll closes every connection and resets the table. Shutdown path only.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, p := range r.peers {
		p.Close()
		r.logger.Info("peer_connection_closed",
			"key", key,
		)
	}
	r.peers = make(map[string]Peer)
}
