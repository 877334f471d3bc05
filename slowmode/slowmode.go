// Adaptive per-channel slow mode: when a single author posts a burst of messages in a channel, the channel's slow-mode interval is raised, and (optionally) reverted automatically later.
//
// The limiter is advisory: it decides when the interval should change and calls back in to the caller to apply it. Enforcement is done by the chat platform.
package slowmode

import (
	"log/slog"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

type Action int

const (
	None Action = iota
	// first message from an author in a new window
	Armed
	EnableSlowmode
)

func (a Action) String() string {
	switch a {
	case None:
		return "none"
	case Armed:
		return "armed"
	case EnableSlowmode:
		return "enable-slowmode"
	default:
		return "unknown"
	}
}

type Result struct {
	Action Action
	// slow mode interval in seconds; only set for EnableSlowmode
	Interval int
}

type Config struct {
	Threshold int
	Window    time.Duration
	Interval  int
	// zero means slow mode is left on
	Duration time.Duration
}

func (c Config) valid() bool {
	return c.Threshold > 0 && c.Window > 0 && c.Interval > 0
}

// Called when an automatic revert is due; the implementation should set the channel interval back to zero.
type RevertFunc func(guildID, channelID string)

type authorKey struct {
	GuildID   string
	ChannelID string
	AuthorID  string
}

type channelKey struct {
	GuildID   string
	ChannelID string
}

type authorState struct {
	count        int
	windowExpiry time.Time
	sweep        *time.Timer
}

type channelState struct {
	// interval the limiter applied; zero if the channel is only externally limited
	interval int
	// non-zero when someone else (eg, a moderator) set the interval
	external int
	revert   *time.Timer
}

type Limiter struct {
	logger   *slog.Logger
	onRevert RevertFunc
	authors  *xsync.MapOf[authorKey, *authorState]
	channels *xsync.MapOf[channelKey, *channelState]
}

func NewLimiter(onRevert RevertFunc, logger *slog.Logger) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{
		logger:   logger.With("component", "slowmode"),
		onRevert: onRevert,
		authors:  xsync.NewMapOf[authorKey, *authorState](),
		channels: xsync.NewMapOf[channelKey, *channelState](),
	}
}

// Records one message. Updates for a single (guild, channel, author) key are linearized; concurrent calls for different keys do not contend on a shared lock.
func (l *Limiter) Observe(guildID, channelID, authorID string, now time.Time, cfg Config) Result {
	if !cfg.valid() {
		return Result{Action: None}
	}
	ck := channelKey{GuildID: guildID, ChannelID: channelID}
	if cs, ok := l.channels.Load(ck); ok && (cs.interval > 0 || cs.external > 0) {
		// already limited; nothing to escalate
		return Result{Action: None}
	}

	ak := authorKey{GuildID: guildID, ChannelID: channelID, AuthorID: authorID}
	var action Action
	l.authors.Compute(ak, func(st *authorState, loaded bool) (*authorState, bool) {
		if !loaded || !now.Before(st.windowExpiry) {
			if loaded {
				st.sweep.Stop()
			}
			st = &authorState{
				count:        1,
				windowExpiry: now.Add(cfg.Window),
			}
			st.sweep = l.scheduleSweep(ak, st, cfg.Window)
			action = Armed
		} else {
			st.count++
			action = None
		}
		if st.count >= cfg.Threshold {
			// the burst is consumed; the author starts over once slow mode ends
			st.sweep.Stop()
			action = EnableSlowmode
			return nil, true
		}
		return st, false
	})

	if action != EnableSlowmode {
		return Result{Action: action}
	}
	if !l.activate(ck, cfg) {
		// another author tipped the channel over concurrently
		return Result{Action: None}
	}
	return Result{Action: EnableSlowmode, Interval: cfg.Interval}
}

func (l *Limiter) scheduleSweep(ak authorKey, st *authorState, after time.Duration) *time.Timer {
	return time.AfterFunc(after, func() {
		l.authors.Compute(ak, func(cur *authorState, loaded bool) (*authorState, bool) {
			// only remove the exact entry this timer was created for
			if loaded && cur == st {
				return nil, true
			}
			return cur, !loaded
		})
	})
}

// Marks the channel as slowed, and schedules the automatic revert. Returns false if the channel was already active.
func (l *Limiter) activate(ck channelKey, cfg Config) bool {
	activated := false
	l.channels.Compute(ck, func(cs *channelState, loaded bool) (*channelState, bool) {
		if loaded && (cs.interval > 0 || cs.external > 0) {
			return cs, false
		}
		activated = true
		next := &channelState{interval: cfg.Interval}
		if cfg.Duration > 0 {
			next.revert = time.AfterFunc(cfg.Duration, func() {
				l.revert(ck, next)
			})
		}
		return next, false
	})
	if activated {
		slowmodeActivations.Inc()
	}
	return activated
}

func (l *Limiter) revert(ck channelKey, st *channelState) {
	reverted := false
	l.channels.Compute(ck, func(cur *channelState, loaded bool) (*channelState, bool) {
		if loaded && cur == st {
			reverted = true
			return nil, true
		}
		return cur, !loaded
	})
	if !reverted {
		return
	}
	slowmodeReverts.Inc()
	l.logger.Debug("reverting slow mode", "guild", ck.GuildID, "channel", ck.ChannelID)
	if l.onRevert != nil {
		l.onRevert(ck.GuildID, ck.ChannelID)
	}
}

// Handles a rate-limit change on a channel. Changes which match the interval the limiter itself applied are ignored; anything else is treated as an external override, which supersedes any pending automatic revert.
func (l *Limiter) ExternalChange(guildID, channelID string, interval int) {
	ck := channelKey{GuildID: guildID, ChannelID: channelID}
	l.channels.Compute(ck, func(cs *channelState, loaded bool) (*channelState, bool) {
		if loaded && cs.interval > 0 && cs.interval == interval {
			return cs, false
		}
		if loaded && cs.revert != nil {
			cs.revert.Stop()
		}
		if interval <= 0 {
			return nil, true
		}
		return &channelState{external: interval}, false
	})
}

// Whether the limiter (or an external override it knows about) currently has the channel slowed.
func (l *Limiter) Active(guildID, channelID string) bool {
	cs, ok := l.channels.Load(channelKey{GuildID: guildID, ChannelID: channelID})
	return ok && (cs.interval > 0 || cs.external > 0)
}

// Number of live author windows.
func (l *Limiter) Pending() int {
	return l.authors.Size()
}

// Rolls back an activation the caller could not apply: the pending revert is cancelled and the channel becomes eligible again. External overrides are left alone.
func (l *Limiter) Deactivate(guildID, channelID string) {
	ck := channelKey{GuildID: guildID, ChannelID: channelID}
	l.channels.Compute(ck, func(cs *channelState, loaded bool) (*channelState, bool) {
		if !loaded {
			return nil, true
		}
		if cs.interval == 0 {
			return cs, false
		}
		if cs.revert != nil {
			cs.revert.Stop()
		}
		return nil, true
	})
}

// Cancels all timers and forgets all state. Channels with a revert still pending are reverted immediately, so nothing the limiter slowed outlives it.
func (l *Limiter) Stop() {
	l.authors.Range(func(k authorKey, st *authorState) bool {
		st.sweep.Stop()
		l.authors.Delete(k)
		return true
	})
	l.channels.Range(func(k channelKey, cs *channelState) bool {
		if cs.revert != nil && cs.revert.Stop() {
			l.revert(k, cs)
			return true
		}
		l.channels.Delete(k)
		return true
	})
}
