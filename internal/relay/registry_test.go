package relay

import (
	"encoding/json"
	"sync"
	"testing"
)

// fakePeer records everything the relay sends through it.
type fakePeer struct {
	mu      sync.Mutex
	sent    [][]byte
	open    bool
	closed  bool
	sendErr error
}

func newFakePeer() *fakePeer {
	return &fakePeer{open: true}
}

func (p *fakePeer) Send(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sendErr != nil {
		return p.sendErr
	}
	p.sent = append(p.sent, append([]byte(nil), data...))
	return nil
}

func (p *fakePeer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.open = false
	p.closed = true
}

func (p *fakePeer) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.open
}

// envelopes decodes everything sent so far.
func (p *fakePeer) envelopes(t *testing.T) []map[string]any {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]map[string]any, 0, len(p.sent))
	for _, data := range p.sent {
		var env map[string]any
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatalf("peer received invalid JSON %q: %v", data, err)
		}
		out = append(out, env)
	}
	return out
}

func (p *fakePeer) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = nil
}

func TestRegistry_BindReplacesAndClosesOld(t *testing.T) {
	r := NewRegistry()
	h1 := newFakePeer()
	h2 := newFakePeer()

	r.Bind("0xabc", h1)
	r.Bind("0xabc", h2)

	got, ok := r.Lookup("0xabc")
	if !ok || got != Peer(h2) {
		t.Fatal("expected lookup to return the handle bound last")
	}
	if !h1.closed {
		t.Error("expected the replaced handle to receive a close request")
	}
	if r.Size() != 1 {
		t.Errorf("expected 1 entry, got %d", r.Size())
	}
}

func TestRegistry_RebindSameHandleDoesNotClose(t *testing.T) {
	r := NewRegistry()
	h := newFakePeer()

	r.Bind("0xabc", h)
	r.Bind("0xabc", h)

	if h.closed {
		t.Error("rebinding the same handle must not close it")
	}
}

func TestRegistry_UnbindIsIdempotent(t *testing.T) {
	r := NewRegistry()
	r.Bind("0xabc", newFakePeer())

	r.Unbind("0xabc")
	r.Unbind("0xabc") // no-op
	r.Unbind("0xnever-bound")

	if r.Size() != 0 {
		t.Errorf("expected empty registry, got %d entries", r.Size())
	}
}

func TestRegistry_ReleaseOnlyMatchingHandle(t *testing.T) {
	r := NewRegistry()
	h1 := newFakePeer()
	h2 := newFakePeer()

	r.Bind("0xabc", h1)
	r.Bind("0xabc", h2) // h1 replaced

	if r.Release("0xabc", h1) {
		t.Error("stale handle must not evict its successor")
	}
	if got, ok := r.Lookup("0xabc"); !ok || got != Peer(h2) {
		t.Fatal("expected the newer handle to stay bound")
	}
	if !r.Release("0xabc", h2) {
		t.Error("expected release of the current handle to succeed")
	}
	if r.Size() != 0 {
		t.Errorf("expected empty registry, got %d entries", r.Size())
	}
}

func TestRegistry_SweepRemovesNonOpenEntries(t *testing.T) {
	r := NewRegistry()
	open := newFakePeer()
	stale1 := newFakePeer()
	stale2 := newFakePeer()
	stale1.Close()
	stale2.Close()

	r.Bind("0xaaa", open)
	r.Bind("0xbbb", stale1)
	r.Bind("0xccc", stale2)

	if removed := r.Sweep(); removed != 2 {
		t.Errorf("expected 2 removed, got %d", removed)
	}
	if r.Size() != 1 {
		t.Errorf("expected 1 entry after sweep, got %d", r.Size())
	}
	if _, ok := r.Lookup("0xaaa"); !ok {
		t.Error("open entry must survive the sweep")
	}
}

func TestRegistry_CloseAll(t *testing.T) {
	r := NewRegistry()
	h1 := newFakePeer()
	h2 := newFakePeer()
	r.Bind("0xaaa", h1)
	r.Bind("0xbbb", h2)

	r.CloseAll()

	if !h1.closed || !h2.closed {
		t.Error("expected every handle to be closed")
	}
	if r.Size() != 0 {
		t.Errorf("expected empty registry, got %d entries", r.Size())
	}
}

func TestRegistry_ConcurrentBinds(t *testing.T) {
	r := NewRegistry()
	keys := []string{"0xaaa", "0xbbb", "0xccc", "0xddd", "0xeee"}
	peers := make([]*fakePeer, len(keys))

	var wg sync.WaitGroup
	for i, key := range keys {
		peers[i] = newFakePeer()
		wg.Add(1)
		go func(key string, p *fakePeer) {
			defer wg.Done()
			r.Bind(key, p)
		}(key, peers[i])
	}
	wg.Wait()

	if r.Size() != len(keys) {
		t.Fatalf("expected %d entries, got %d", len(keys), r.Size())
	}
	for i, key := range keys {
		if got, ok := r.Lookup(key); !ok || got != Peer(peers[i]) {
			t.Errorf("entry for %s corrupted", key)
		}
	}
}
