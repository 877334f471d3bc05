package slowmode

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type revertRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *revertRecorder) revert(guildID, channelID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, guildID+"/"+channelID)
}

func (r *revertRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func TestThresholdAndRevert(t *testing.T) {
	assert := assert.New(t)

	rec := &revertRecorder{}
	l := NewLimiter(rec.revert, nil)
	defer l.Stop()

	cfg := Config{Threshold: 5, Window: 10 * time.Second, Interval: 7, Duration: 50 * time.Millisecond}
	now := time.Now()

	assert.Equal(Result{Action: Armed}, l.Observe("g1", "c1", "u1", now, cfg))
	for i := 1; i < 4; i++ {
		res := l.Observe("g1", "c1", "u1", now.Add(time.Duration(i)*time.Second), cfg)
		assert.Equal(None, res.Action)
	}
	res := l.Observe("g1", "c1", "u1", now.Add(4*time.Second), cfg)
	assert.Equal(EnableSlowmode, res.Action)
	assert.Equal(7, res.Interval)
	assert.True(l.Active("g1", "c1"))
	assert.Equal(0, l.Pending())

	// while active, nobody escalates again
	assert.Equal(None, l.Observe("g1", "c1", "u2", now.Add(5*time.Second), cfg).Action)

	assert.Eventually(func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal([]string{"g1/c1"}, rec.calls)
	assert.False(l.Active("g1", "c1"))
}

func TestWindowExpiry(t *testing.T) {
	assert := assert.New(t)

	l := NewLimiter(nil, nil)
	defer l.Stop()

	cfg := Config{Threshold: 3, Window: 10 * time.Second, Interval: 5}
	now := time.Now()

	assert.Equal(Armed, l.Observe("g1", "c1", "u1", now, cfg).Action)
	assert.Equal(None, l.Observe("g1", "c1", "u1", now.Add(time.Second), cfg).Action)
	// the window has passed, so the old state is treated as absent
	assert.Equal(Armed, l.Observe("g1", "c1", "u1", now.Add(11*time.Second), cfg).Action)
	assert.Equal(None, l.Observe("g1", "c1", "u1", now.Add(12*time.Second), cfg).Action)
	assert.Equal(EnableSlowmode, l.Observe("g1", "c1", "u1", now.Add(13*time.Second), cfg).Action)
}

func TestKeysAreIndependent(t *testing.T) {
	assert := assert.New(t)

	l := NewLimiter(nil, nil)
	defer l.Stop()

	cfg := Config{Threshold: 2, Window: time.Minute, Interval: 5}
	now := time.Now()

	assert.Equal(Armed, l.Observe("g1", "c1", "u1", now, cfg).Action)
	assert.Equal(Armed, l.Observe("g1", "c1", "u2", now, cfg).Action)
	assert.Equal(Armed, l.Observe("g1", "c2", "u1", now, cfg).Action)
	assert.Equal(Armed, l.Observe("g2", "c1", "u1", now, cfg).Action)
	assert.Equal(4, l.Pending())
	assert.Equal(EnableSlowmode, l.Observe("g1", "c2", "u1", now, cfg).Action)
	assert.False(l.Active("g1", "c1"))
	assert.True(l.Active("g1", "c2"))
}

func TestSweep(t *testing.T) {
	assert := assert.New(t)

	l := NewLimiter(nil, nil)
	defer l.Stop()

	cfg := Config{Threshold: 5, Window: 20 * time.Millisecond, Interval: 5}
	l.Observe("g1", "c1", "u1", time.Now(), cfg)
	assert.Equal(1, l.Pending())
	assert.Eventually(func() bool { return l.Pending() == 0 }, time.Second, 5*time.Millisecond)
}

func TestInvalidConfig(t *testing.T) {
	assert := assert.New(t)

	l := NewLimiter(nil, nil)
	defer l.Stop()

	assert.Equal(None, l.Observe("g1", "c1", "u1", time.Now(), Config{}).Action)
	assert.Equal(0, l.Pending())
}

func TestExternalChange(t *testing.T) {
	assert := assert.New(t)

	rec := &revertRecorder{}
	l := NewLimiter(rec.revert, nil)
	defer l.Stop()

	cfg := Config{Threshold: 1, Window: time.Minute, Interval: 5, Duration: 30 * time.Millisecond}
	now := time.Now()

	// a moderator set slow mode by hand: channel is not eligible
	l.ExternalChange("g1", "c1", 30)
	assert.True(l.Active("g1", "c1"))
	assert.Equal(None, l.Observe("g1", "c1", "u1", now, cfg).Action)

	l.ExternalChange("g1", "c1", 0)
	assert.False(l.Active("g1", "c1"))
	assert.Equal(EnableSlowmode, l.Observe("g1", "c1", "u1", now, cfg).Action)

	// echo of our own change is ignored
	l.ExternalChange("g1", "c1", 5)
	assert.True(l.Active("g1", "c1"))

	// moderator overrides before the revert fires; the revert is cancelled
	l.ExternalChange("g1", "c1", 60)
	time.Sleep(80 * time.Millisecond)
	assert.Equal(0, rec.count())
	assert.True(l.Active("g1", "c1"))
}

func TestDeactivate(t *testing.T) {
	assert := assert.New(t)

	rec := &revertRecorder{}
	l := NewLimiter(rec.revert, nil)
	defer l.Stop()

	cfg := Config{Threshold: 2, Window: time.Minute, Interval: 5, Duration: 30 * time.Millisecond}
	now := time.Now()

	assert.Equal(Armed, l.Observe("g1", "c1", "u1", now, cfg).Action)
	assert.Equal(EnableSlowmode, l.Observe("g1", "c1", "u1", now, cfg).Action)
	l.Deactivate("g1", "c1")
	assert.False(l.Active("g1", "c1"))

	// the cancelled revert never fires, and the channel can escalate again
	time.Sleep(60 * time.Millisecond)
	assert.Equal(0, rec.count())
	assert.Equal(Armed, l.Observe("g1", "c1", "u1", now, cfg).Action)
	assert.Equal(EnableSlowmode, l.Observe("g1", "c1", "u1", now, cfg).Action)

	// external overrides are not ours to roll back
	l.ExternalChange("g1", "c2", 30)
	l.Deactivate("g1", "c2")
	assert.True(l.Active("g1", "c2"))
}

func TestStopRevertsPending(t *testing.T) {
	assert := assert.New(t)

	rec := &revertRecorder{}
	l := NewLimiter(rec.revert, nil)

	timed := Config{Threshold: 1, Window: time.Minute, Interval: 5, Duration: time.Hour}
	permanent := Config{Threshold: 1, Window: time.Minute, Interval: 5}
	now := time.Now()

	assert.Equal(EnableSlowmode, l.Observe("g1", "c1", "u1", now, timed).Action)
	assert.Equal(EnableSlowmode, l.Observe("g1", "c2", "u1", now, permanent).Action)
	l.ExternalChange("g1", "c3", 30)

	l.Stop()
	// only the channel with a pending revert is reverted
	assert.Equal([]string{"g1/c1"}, rec.calls)
	assert.False(l.Active("g1", "c1"))
	assert.False(l.Active("g1", "c2"))
	assert.False(l.Active("g1", "c3"))
}

func TestConcurrentObserve(t *testing.T) {
	assert := assert.New(t)

	l := NewLimiter(nil, nil)
	defer l.Stop()

	cfg := Config{Threshold: 50, Window: time.Minute, Interval: 5}
	now := time.Now()

	var enabled atomic.Int32
	var wg sync.WaitGroup
	for w := 0; w < 10; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				if l.Observe("g1", "c1", "u1", now, cfg).Action == EnableSlowmode {
					enabled.Add(1)
				}
			}
		}()
	}
	wg.Wait()
	// 100 observations, threshold 50: no increments lost, exactly one activation
	assert.Equal(int32(1), enabled.Load())
	assert.True(l.Active("g1", "c1"))
}
