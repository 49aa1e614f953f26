package progress

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tick = 200 * time.Millisecond

func recv(t *testing.T, ch <-chan int) int {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for progress")
		return 0
	}
}

func TestMaximumIncrementsReachCompleteWithinTwentyTicks(t *testing.T) {
	clock := clockwork.NewFakeClock()
	updates := make(chan int, 1)
	sim := NewSimulator(tick, WithClock(clock), WithIncrement(func() int { return 10 }))
	ticker := sim.Start(func(p int) { updates <- p })
	defer ticker.Stop()

	ticks := 0
	last := 0
	for ticks < 20 && last < Complete {
		clock.Advance(tick)
		ticks++
		p := recv(t, updates)
		require.Greater(t, p, last, "progress must advance monotonically")
		last = p
	}
	assert.Equal(t, Complete, last)
	assert.Equal(t, 10, ticks)

	select {
	case <-ticker.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("ticker did not stop at 100")
	}
}

func TestProgressIsClampedAtComplete(t *testing.T) {
	clock := clockwork.NewFakeClock()
	updates := make(chan int, 1)
	seq := []int{60, 30, 7}
	i := 0
	sim := NewSimulator(tick, WithClock(clock), WithIncrement(func() int {
		v := seq[i%len(seq)]
		i++
		return v
	}))
	ticker := sim.Start(func(p int) { updates <- p })
	defer ticker.Stop()

	var got []int
	for len(got) == 0 || got[len(got)-1] < Complete {
		clock.Advance(tick)
		got = append(got, recv(t, updates))
	}
	// 60 and 30 clamp to 10 each
	for j := 1; j < len(got); j++ {
		assert.LessOrEqual(t, got[j]-got[j-1], 10)
		assert.GreaterOrEqual(t, got[j]-got[j-1], 1)
	}
	assert.Equal(t, Complete, got[len(got)-1])
	assert.Equal(t, Complete, ticker.Progress())
}

func TestStopHaltsTicksAndIsIdempotent(t *testing.T) {
	clock := clockwork.NewFakeClock()
	updates := make(chan int, 8)
	sim := NewSimulator(tick, WithClock(clock), WithIncrement(func() int { return 1 }))
	ticker := sim.Start(func(p int) { updates <- p })

	clock.Advance(tick)
	assert.Equal(t, 1, recv(t, updates))

	ticker.Stop()
	ticker.Stop()

	clock.Advance(10 * tick)
	select {
	case p := <-updates:
		t.Fatalf("progress advanced after stop: %d", p)
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, 1, ticker.Progress())
}

func TestStopAfterCompletionIsNoop(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sim := NewSimulator(tick, WithClock(clock), WithIncrement(func() int { return 10 }))
	updates := make(chan int, 1)
	ticker := sim.Start(func(p int) { updates <- p })
	for ticker.Progress() < Complete {
		clock.Advance(tick)
		recv(t, updates)
	}
	<-ticker.Done()
	ticker.Stop()
	assert.Equal(t, Complete, ticker.Progress())
}

func TestDefaultIncrementStaysInRange(t *testing.T) {
	sim := NewSimulator(0)
	assert.Equal(t, tick, sim.interval)
	for i := 0; i < 1000; i++ {
		n := sim.increment()
		require.GreaterOrEqual(t, n, 1)
		require.LessOrEqual(t, n, 10)
	}
}
