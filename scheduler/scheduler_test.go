package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s := New(zap.NewNop())
	t.Cleanup(s.Stop)
	return s
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, d time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

// settled returns the counter value once it has stopped moving.
func settled(counter *int64) int64 {
	time.Sleep(60 * time.Millisecond)
	return atomic.LoadInt64(counter)
}

func TestTickerFiresRepeatedly(t *testing.T) {
	s := newScheduler(t)

	var fires int64
	s.AddTicker("sweep", 15*time.Millisecond, func() { atomic.AddInt64(&fires, 1) })

	assert.True(t, eventually(t, time.Second, func() bool {
		return atomic.LoadInt64(&fires) >= 3
	}), "ticker should fire repeatedly")
}

func TestTickerReplacedByName(t *testing.T) {
	s := newScheduler(t)

	var old, replacement int64
	s.AddTicker("sweep", 15*time.Millisecond, func() { atomic.AddInt64(&old, 1) })
	eventually(t, time.Second, func() bool { return atomic.LoadInt64(&old) >= 1 })

	s.AddTicker("sweep", 15*time.Millisecond, func() { atomic.AddInt64(&replacement, 1) })

	frozen := settled(&old)
	assert.True(t, eventually(t, time.Second, func() bool {
		return atomic.LoadInt64(&replacement) >= 2
	}), "replacement ticker should run")
	assert.Equal(t, frozen, atomic.LoadInt64(&old), "replaced ticker must stop")
}

func TestDelayedTaskRunsExactlyOnce(t *testing.T) {
	s := newScheduler(t)

	var fires int64
	s.AddDelay("warmup", 15*time.Millisecond, func() { atomic.AddInt64(&fires, 1) })

	eventually(t, time.Second, func() bool { return atomic.LoadInt64(&fires) == 1 })
	assert.Equal(t, int64(1), settled(&fires))
}

func TestDelayedTaskReplacedByName(t *testing.T) {
	s := newScheduler(t)

	var fires int64
	s.AddDelay("warmup", time.Hour, func() { atomic.AddInt64(&fires, 100) })
	s.AddDelay("warmup", 15*time.Millisecond, func() { atomic.AddInt64(&fires, 1) })

	eventually(t, time.Second, func() bool { return atomic.LoadInt64(&fires) > 0 })
	assert.Equal(t, int64(1), settled(&fires), "only the replacement should fire")
}

func TestRemoveStopsBothKinds(t *testing.T) {
	s := newScheduler(t)

	var ticks, delays int64
	s.AddTicker("t", 15*time.Millisecond, func() { atomic.AddInt64(&ticks, 1) })
	s.AddDelay("d", 30*time.Millisecond, func() { atomic.AddInt64(&delays, 1) })

	s.Remove("t")
	s.Remove("d")
	s.Remove("never-registered") // no-op

	assert.Zero(t, settled(&delays))
	frozen := atomic.LoadInt64(&ticks)
	assert.Equal(t, frozen, settled(&ticks))
}

func TestStopHaltsEverything(t *testing.T) {
	s := New(zap.NewNop())

	var fires int64
	s.AddTicker("a", 15*time.Millisecond, func() { atomic.AddInt64(&fires, 1) })
	s.AddTicker("b", 15*time.Millisecond, func() { atomic.AddInt64(&fires, 1) })
	eventually(t, time.Second, func() bool { return atomic.LoadInt64(&fires) >= 2 })

	s.Stop()
	s.Stop() // second call is a no-op, not a panic

	frozen := settled(&fires)
	assert.Equal(t, frozen, settled(&fires))
}

func TestListTickersTracksRegistrations(t *testing.T) {
	s := newScheduler(t)

	assert.Empty(t, s.ListTickers())

	s.AddTicker("arena_sweep", time.Hour, func() {})
	s.AddTicker("ranking_refresh", time.Hour, func() {})
	assert.ElementsMatch(t, []string{"arena_sweep", "ranking_refresh"}, s.ListTickers())

	s.Remove("arena_sweep")
	assert.Equal(t, []string{"ranking_refresh"}, s.ListTickers())
}

func TestPanickingTaskDoesNotKillItsTicker(t *testing.T) {
	s := newScheduler(t)

	var fires int64
	s.AddTicker("flaky", 15*time.Millisecond, func() {
		n := atomic.AddInt64(&fires, 1)
		if n == 1 {
			panic("first run explodes")
		}
	})

	assert.True(t, eventually(t, time.Second, func() bool {
		return atomic.LoadInt64(&fires) >= 3
	}), "ticker should survive a panicking run")
}
