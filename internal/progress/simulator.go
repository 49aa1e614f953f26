// Package progress produces the cosmetic upload progress shown while a transfer is in flight.
// The transfer reports no byte counts, so the value is never a measurement.
package progress

import (
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	// Complete is the ceiling of the progress counter.
	Complete = 100

	minIncrement = 1
	maxIncrement = 10
)

// Simulator starts progress tickers with a shared clock, interval and increment source.
type Simulator struct {
	clock     clockwork.Clock
	interval  time.Duration
	increment func() int
}

type Option func(*Simulator)

// WithClock swaps the clock (tests use a fake one).
func WithClock(c clockwork.Clock) Option {
	return func(s *Simulator) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithIncrement swaps the random increment source. Values are clamped to [1, 10].
func WithIncrement(f func() int) Option {
	return func(s *Simulator) {
		if f != nil {
			s.increment = f
		}
	}
}

// NewSimulator returns a simulator ticking every interval (200ms when interval <= 0).
func NewSimulator(interval time.Duration, opts ...Option) *Simulator {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	s := &Simulator{
		clock:     clockwork.NewRealClock(),
		interval:  interval,
		increment: func() int { return rand.IntN(maxIncrement) + minIncrement },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Ticker is the caller's handle on one running simulation.
type Ticker struct {
	ticker   clockwork.Ticker
	stop     chan struct{}
	done     chan struct{}
	once     sync.Once
	progress atomic.Int32
}

// Start begins advancing from 0. onProgress runs on the ticker goroutine after every advance.
func (s *Simulator) Start(onProgress func(int)) *Ticker {
	t := &Ticker{
		ticker: s.clock.NewTicker(s.interval),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go t.run(s.increment, onProgress)
	return t
}

func (t *Ticker) run(increment func() int, onProgress func(int)) {
	defer close(t.done)
	defer t.ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-t.ticker.Chan():
			select {
			case <-t.stop:
				return
			default:
			}
			next := min(int(t.progress.Load())+clamp(increment()), Complete)
			t.progress.Store(int32(next))
			if onProgress != nil {
				onProgress(next)
			}
			if next >= Complete {
				return
			}
		}
	}
}

// Stop cancels the simulation. After it returns no further onProgress calls happen.
// Calling Stop again, or after the counter reached 100, is a no-op.
func (t *Ticker) Stop() {
	t.once.Do(func() { close(t.stop) })
	<-t.done
}

// Progress returns the current counter value.
func (t *Ticker) Progress() int {
	return int(t.progress.Load())
}

// Done is closed once the ticker stopped advancing, by Stop or by reaching 100.
func (t *Ticker) Done() <-chan struct{} {
	return t.done
}

func clamp(n int) int {
	return max(minIncrement, min(n, maxIncrement))
}
