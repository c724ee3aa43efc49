package relay

import (
	"log/slog"
	"sync"
	"time"
)

const DefaultSweepInterval = 30 * time.Second

// Sweeper periodically evicts registry entries whose connection is no longer
// open. Backstop for network-level drops that never fire a close event.
type Sweeper struct {
	router   *Router
	interval time.Duration
	logger   *slog.Logger
	done     chan struct{}
	stopOnce sync.Once
}

func NewSweeper(router *Router, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		router:   router,
		interval: interval,
		logger:   slog.Default(),
		done:     make(chan struct{}),
	}
}

// Run blocks until Stop is called. Start it in its own goroutine.
func (s *Sweeper) Run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick()
		case <-s.done:
			return
		}
	}
}

func (s *Sweeper) tick() {
	removed := s.router.Registry().Sweep()
	if removed == 0 {
		return
	}
	s.logger.Info("sweep_completed",
		"removed", removed,
		"connected", s.router.Registry().Size(),
	)
	s.router.BroadcastStats()
}

func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
}
