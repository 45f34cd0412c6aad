package synchronizer

import (
	"context"
	"log/slog"
	"time"
)

// poller is the maintenance loop. It runs one pass per tick and one per
// Trigger, never two at once.
type poller struct {
	cancel  context.CancelFunc
	done    chan struct{}
	trigger chan struct{} // buffered, size 1: repeated triggers coalesce
}

// Start launches the maintenance poller. It is a no-op if the poller is
// already running. The poller stops when ctx is done or Stop is called.
func (s *Synchronizer) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.poll != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	p := &poller{
		cancel:  cancel,
		done:    make(chan struct{}),
		trigger: make(chan struct{}, 1),
	}
	s.poll = p

	go s.runPoller(ctx, p, s.pollInterval)
}

// Stop cancels the poller and waits for it to exit, including any pass it
// is running. Safe to call when the poller is not running.
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	p := s.poll
	s.poll = nil
	s.mu.Unlock()

	if p == nil {
		return
	}
	p.cancel()
	<-p.done
}

// Running reports whether the poller is active.
func (s *Synchronizer) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.poll != nil
}

// Trigger asks the poller for a pass now instead of at the next tick.
// Returns false if the poller is not running. Triggers that arrive while a
// pass is pending collapse into one.
func (s *Synchronizer) Trigger() bool {
	s.mu.Lock()
	p := s.poll
	s.mu.Unlock()

	if p == nil {
		return false
	}
	select {
	case p.trigger <- struct{}{}:
	default:
	}
	return true
}

func (s *Synchronizer) runPoller(ctx context.Context, p *poller, interval time.Duration) {
	defer close(p.done)
	defer func() {
		s.mu.Lock()
		if s.poll == p {
			s.poll = nil
		}
		s.mu.Unlock()
	}()

	slog.Info("poller starting", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("poller stopping: context cancelled")
			return
		case <-ticker.C:
		case <-p.trigger:
		}

		// Failures are recorded in state and LastPass; polling continues.
		if err := s.Synchronize(ctx); err != nil && ctx.Err() != nil {
			slog.Info("poller stopping: context cancelled")
			return
		}
	}
}
