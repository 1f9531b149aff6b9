// Package sync runs the background merge loop that keeps the local store in
// step with the shared workbook.
package sync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/existflow/cowork/internal/logger"
	"github.com/existflow/cowork/internal/store"
)

// MinInterval is the shortest allowed poll interval
const MinInterval = 2 * time.Second

// Merger pulls a remote snapshot into local state
type Merger interface {
	MergeRemote(ctx context.Context) (store.MergeResult, error)
}

// Event reports the outcome of one merge. Err is set when the merge failed;
// the loop keeps running either way.
type Event struct {
	At     time.Time
	Result store.MergeResult
	Err    error
}

// Synchronizer merges on a fixed interval from its own goroutine. It never
// touches presentation state; listeners read Events and redraw themselves.
type Synchronizer struct {
	merger      Merger
	timeout     time.Duration
	minInterval time.Duration

	mu       sync.Mutex
	interval time.Duration
	running  bool
	stopCh   chan struct{}
	done     chan struct{}
	reset    chan struct{} // interval changed, one per run
	kick     chan struct{} // merge now, one per run

	events chan Event
}

// DefaultTimeout bounds a merge when New is given no timeout
const DefaultTimeout = 30 * time.Second

// New creates a stopped synchronizer. timeout bounds each merge.
func New(merger Merger, interval, timeout time.Duration) *Synchronizer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	s := &Synchronizer{
		merger:      merger,
		timeout:     timeout,
		minInterval: MinInterval,
		events:      make(chan Event, 1),
	}
	s.interval = s.clamp(interval)
	return s
}

func (s *Synchronizer) clamp(d time.Duration) time.Duration {
	if d < s.minInterval {
		return s.minInterval
	}
	return d
}

// Events delivers merge outcomes. Only the newest undelivered event is kept.
func (s *Synchronizer) Events() <-chan Event {
	return s.events
}

// Interval returns the current poll interval
func (s *Synchronizer) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// SetInterval changes the poll interval; a running loop picks it up at once
func (s *Synchronizer) SetInterval(d time.Duration) {
	d = s.clamp(d)

	s.mu.Lock()
	changed := d != s.interval
	s.interval = d
	reset := s.reset
	s.mu.Unlock()

	if changed {
		logger.Info("Poll interval changed", logger.F("interval", d))
		notify(reset)
	}
}

// Running returns true between Start and Stop
func (s *Synchronizer) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start launches the loop. Starting a running synchronizer does nothing.
func (s *Synchronizer) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})
	s.reset = make(chan struct{}, 1)
	s.kick = make(chan struct{}, 1)
	go s.loop(s.stopCh, s.done, s.reset, s.kick)

	logger.Info("Background sync started", logger.F("interval", s.interval))
}

// Stop signals the loop and waits up to grace for it to exit. An in-flight
// merge is not interrupted; Stop returns false if it outlives grace.
func (s *Synchronizer) Stop(grace time.Duration) bool {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return true
	}
	s.running = false
	close(s.stopCh)
	done := s.done
	s.reset, s.kick = nil, nil
	s.mu.Unlock()

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-done:
		logger.Info("Background sync stopped")
		return true
	case <-timer.C:
		logger.Warn("Background sync still busy after stop", logger.F("grace", grace))
		return false
	}
}

// Trigger asks a running loop to merge now instead of waiting for the interval
func (s *Synchronizer) Trigger() {
	s.mu.Lock()
	kick := s.kick
	s.mu.Unlock()
	notify(kick)
}

// loop owns the channels of one run; a loop left behind by a timed out Stop
// cannot see signals meant for the next run
func (s *Synchronizer) loop(stopCh, done, reset, kick chan struct{}) {
	defer close(done)

	timer := time.NewTimer(s.Interval())
	defer timer.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-reset:
			timer.Reset(s.Interval())
			continue
		case <-kick:
		case <-timer.C:
		}

		// stop may have raced the timer
		select {
		case <-stopCh:
			return
		default:
		}

		s.mergeOnce(stopCh)
		timer.Reset(s.Interval())
	}
}

// mergeOnce runs one merge and publishes its outcome unless the run was
// stopped meanwhile. A panicking merger is reported as a failed merge.
func (s *Synchronizer) mergeOnce(stopCh chan struct{}) {
	res, err := s.merge()
	if err != nil {
		logger.Warn("Background merge failed", logger.F("error", err))
	}

	select {
	case <-stopCh:
		logger.Debug("Dropping merge result of a stopped run")
		return
	default:
	}
	s.publish(Event{At: time.Now(), Result: res, Err: err})
}

func (s *Synchronizer) merge() (res store.MergeResult, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Background merge panicked", logger.F("panic", r))
			res, err = store.MergeResult{}, fmt.Errorf("merge panicked: %v", r)
		}
	}()
	return s.merger.MergeRemote(ctx)
}

// publish replaces any undelivered event with ev
func (s *Synchronizer) publish(ev Event) {
	for {
		select {
		case s.events <- ev:
			return
		default:
		}
		select {
		case <-s.events:
		default:
		}
	}
}

// notify does nothing for a nil channel
func notify(ch chan struct{}) {
	if ch == nil {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}
