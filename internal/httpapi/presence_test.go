package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waleedxyz/blockchat-relay/internal/presence"
)

type fakePresence struct {
	snapshots map[string]presence.Snapshot
}

func (f *fakePresence) LastSeen(ctx context.Context, key string) (presence.Snapshot, bool, error) {
	snap, ok := f.snapshots[key]
	return snap, ok, nil
}

func newPresenceRouter(store PresenceReader) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewPresenceHandler(store).RegisterRoutes(r)
	return r
}

func TestPresenceHandler_NormalizesLookupKey(t *testing.T) {
	key := "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"
	store := &fakePresence{snapshots: map[string]presence.Snapshot{
		key: {Address: key, Online: true, LastSeenMS: 1700000000000},
	}}
	r := newPresenceRouter(store)

	// checksummed spelling on the URL, lowercase key in the store
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/presence/0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var snap presence.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, key, snap.Address)
	assert.True(t, snap.Online)
	assert.Equal(t, int64(1700000000000), snap.LastSeenMS)
}

func TestPresenceHandler_UnknownWallet(t *testing.T) {
	r := newPresenceRouter(&fakePresence{snapshots: map[string]presence.Snapshot{}})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/presence/0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
