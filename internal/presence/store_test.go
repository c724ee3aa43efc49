package presence

import (
	"context"
	"testing"
)

func TestWalletKey(t *testing.T) {
	got := walletKey("0xabc")
	if got != "presence:wallet:0xabc" {
		t.Errorf("unexpected key %q", got)
	}
}

// A nil store is a valid no-op recorder: the relay runs without Redis.
func TestNilStoreIsNoOp(t *testing.T) {
	var s *Store

	s.PeerOnline("0xabc")
	s.PeerOffline("0xabc")
	s.RecordUpload("file.png", 10, "image/png")

	if _, found, err := s.LastSeen(context.Background(), "0xabc"); found || err != nil {
		t.Errorf("nil store must report nothing, got found=%v err=%v", found, err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("nil store close must succeed, got %v", err)
	}
}

func TestNewStore_RejectsBadURL(t *testing.T) {
	if _, err := NewStore("not a url", ""); err == nil {
		t.Error("expected an error for a malformed redis url")
	}
}
