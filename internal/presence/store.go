package presence

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Best-effort mirror of relay presence into Redis. The in-memory registry
// stays the source of truth for routing; this only feeds the presence HTTP
// endpoint and operational tooling, so every write failure is logged and
// swallowed.

type Snapshot struct {
	Address    string `json:"address"`
	Online     bool   `json:"online"`
	LastSeenMS int64  `json:"lastSeen"`
}

type Store struct {
	client *redis.Client
	logger *slog.Logger
	ctx    context.Context
}

// NewStore connects to Redis and verifies the connection. redisURL is a
// redis:// URL; a non-empty password overrides the one in the URL.
func NewStore(redisURL, password string) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	if password != "" {
		opts.Password = password
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Store{
		client: client,
		logger: slog.Default(),
		ctx:    context.Background(),
	}, nil
}

func walletKey(key string) string {
	return "presence:wallet:" + key
}

// PeerOnline marks key online now.
func (s *Store) PeerOnline(key string) {
	s.set(key, true)
}

// PeerOffline marks key offline, keeping the last-seen time.
func (s *Store) PeerOffline(key string) {
	s.set(key, false)
}

func (s *Store) set(key string, online bool) {
	if s == nil || s.client == nil {
		return
	}
	fields := map[string]any{
		"online":       strconv.FormatBool(online),
		"last_seen_ms": time.Now().UnixMilli(),
	}
	if err := s.client.HSet(s.ctx, walletKey(key), fields).Err(); err != nil {
		s.logger.Warn("presence_write_failed",
			"key", key,
			"error", err.Error(),
		)
	}
}

// LastSeen returns the stored snapshot for key. The second return value is
// false when the wallet has never been seen.
func (s *Store) LastSeen(ctx context.Context, key string) (Snapshot, bool, error) {
	if s == nil || s.client == nil {
		return Snapshot{}, false, nil
	}
	fields, err := s.client.HGetAll(ctx, walletKey(key)).Result()
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("failed to read presence: %w", err)
	}
	if len(fields) == 0 {
		return Snapshot{}, false, nil
	}
	online, _ := strconv.ParseBool(fields["online"])
	lastSeen, _ := strconv.ParseInt(fields["last_seen_ms"], 10, 64)
	return Snapshot{Address: key, Online: online, LastSeenMS: lastSeen}, true, nil
}

// RecordUpload keeps a small operational trace of uploads. Best-effort.
func (s *Store) RecordUpload(name string, size int64, contentType string) {
	if s == nil || s.client == nil {
		return
	}
	fields := map[string]any{
		"name":         name,
		"size":         size,
		"content_type": contentType,
		"uploaded_ms":  time.Now().UnixMilli(),
	}
	if err := s.client.HSet(s.ctx, "upload:"+name, fields).Err(); err != nil {
		s.logger.Warn("upload_trace_failed",
			"name", name,
			"error", err.Error(),
		)
	}
}

// Close releases the underlying client.
func (s *Store) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}
