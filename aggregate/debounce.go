package aggregate

import (
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

type pending struct {
	timer *time.Timer
}

// Debouncer runs at most one delayed action per key. Triggering a key again cancels the pending action and starts a new delay.
type Debouncer struct {
	actions *xsync.MapOf[string, *pending]
}

func NewDebouncer() *Debouncer {
	return &Debouncer{
		actions: xsync.NewMapOf[string, *pending](),
	}
}

func (d *Debouncer) Trigger(key string, delay time.Duration, fn func()) {
	p := &pending{}
	d.actions.Compute(key, func(old *pending, loaded bool) (*pending, bool) {
		if loaded {
			old.timer.Stop()
		}
		p.timer = time.AfterFunc(delay, func() {
			if d.claim(key, p) {
				fn()
			}
		})
		return p, false
	})
}

// Removes the entry if it is still the given pending action. A superseded action whose timer already fired loses here and does nothing.
func (d *Debouncer) claim(key string, p *pending) bool {
	won := false
	d.actions.Compute(key, func(cur *pending, loaded bool) (*pending, bool) {
		if loaded && cur == p {
			won = true
			return nil, true
		}
		return cur, !loaded
	})
	return won
}

func (d *Debouncer) Cancel(key string) {
	if p, ok := d.actions.LoadAndDelete(key); ok {
		p.timer.Stop()
	}
}

func (d *Debouncer) Pending() int {
	return d.actions.Size()
}

func (d *Debouncer) Stop() {
	d.actions.Range(func(key string, p *pending) bool {
		d.Cancel(key)
		return true
	})
}
