package booking

import (
	"context"
	"log"
	"sync"
	"time"
)

// Sweeper periodically releases stale holds by invoking the engine's
// ExpireHoldBookings.  It is decoupled from request handling: expiry
// is detected only when a sweep runs, so a hold may outlive its
// deadline by up to one interval.  Start/Stop are safe to call once
// each from the process lifecycle.
type Sweeper struct {
	engine   *Engine
	interval time.Duration

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewSweeper builds a sweeper over the engine.  A non-positive
// interval falls back to one minute.
func NewSweeper(engine *Engine, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{engine: engine, interval: interval, stopCh: make(chan struct{})}
}

// Start launches the sweep loop in a goroutine.  An initial sweep runs
// immediately so a restart does not leave holds lingering for a full
// interval.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.sweep(ctx)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			case <-ticker.C:
				s.sweep(ctx)
			}
		}
	}()
}

// Stop terminates the loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
}

func (s *Sweeper) sweep(ctx context.Context) {
	n, err := s.engine.ExpireHoldBookings(ctx)
	if err != nil {
		log.Printf("sweeper: expire holds failed: %v", err)
		return
	}
	if n > 0 {
		log.Printf("sweeper: expired %d stale holds", n)
	}
}
