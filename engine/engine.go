// Event pipeline for guild moderation: message caching, content filtering, adaptive slow mode, audit logging, and aggregated member notifications.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/guildwarden/warden/aggregate"
	"github.com/guildwarden/warden/auditlog"
	"github.com/guildwarden/warden/countstore"
	"github.com/guildwarden/warden/event"
	"github.com/guildwarden/warden/filter"
	"github.com/guildwarden/warden/msgcache"
	"github.com/guildwarden/warden/settings"
	"github.com/guildwarden/warden/slowmode"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/puzpuzpuz/xsync/v3"
)

const (
	DefaultGreetingTemplate = "Welcome {{ mentions }}!"
	DefaultFarewellTemplate = "Goodbye {{ names }}."
)

type Config struct {
	MessageCacheSize int
	// how long filter notifications stay up before being removed
	NotifyTTL time.Duration
	// debounce window for greeting and farewell batches
	GreetingWindow time.Duration
	// debounce window for voice channel audit records
	VoiceDebounce time.Duration
	// how long an automatically deleted message ID is remembered, to suppress a duplicate delete log
	AutoDeletedTTL time.Duration
	// prefixes and command names exempt from word filters
	CommandPrefixes []string
	CommandNames    []string
}

func DefaultConfig() Config {
	return Config{
		MessageCacheSize: msgcache.DefaultCapacity,
		NotifyTTL:        10 * time.Second,
		GreetingWindow:   5 * time.Second,
		VoiceDebounce:    2 * time.Second,
		AutoDeletedTTL:   5 * time.Minute,
		CommandPrefixes:  []string{"!", "/"},
	}
}

// Engine routes gateway events through the moderation components. All methods are safe for concurrent use.
type Engine struct {
	Logger    *slog.Logger
	Platform  Platform
	Settings  settings.Store
	Counters  countstore.CountStore
	Audit     *auditlog.Sink
	Messages  *msgcache.Cache
	Filter    *filter.Engine
	Slowmode  *slowmode.Limiter
	Greetings *aggregate.Aggregator
	Farewells *aggregate.Aggregator
	Config    Config

	voice       *aggregate.Debouncer
	voiceOrigin *xsync.MapOf[string, string]
	notices     *aggregate.Debouncer
	autoDeleted *expirable.LRU[string, struct{}]
	rules       *expirable.LRU[string, compiledRules]

	// lifetime of background work (greeting waits, reverts, notice cleanup)
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewEngine(platform Platform, store settings.Store, counters countstore.CountStore, sink *auditlog.Sink, logger *slog.Logger, config Config) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		Logger:    logger,
		Platform:  platform,
		Settings:  store,
		Counters:  counters,
		Audit:     sink,
		Messages:  msgcache.New(config.MessageCacheSize),
		Greetings: aggregate.New("greeting"),
		Farewells: aggregate.New("farewell"),
		Config:    config,

		voice:       aggregate.NewDebouncer(),
		voiceOrigin: xsync.NewMapOf[string, string](),
		notices:     aggregate.NewDebouncer(),
		autoDeleted: expirable.NewLRU[string, struct{}](10_000, nil, config.AutoDeletedTTL),
		rules:       expirable.NewLRU[string, compiledRules](10_000, nil, time.Hour),

		ctx:    ctx,
		cancel: cancel,
	}
	e.Filter = &filter.Engine{
		Logger: logger.With("component", "filter"),
		Perms:  platform,
		Commands: filter.PrefixCommandMatcher{
			Prefixes: config.CommandPrefixes,
			Commands: config.CommandNames,
		},
	}
	e.Slowmode = slowmode.NewLimiter(e.revertSlowmode, logger)
	return e
}

func eventType(evt any) string {
	switch evt.(type) {
	case event.MessageCreated:
		return "message_created"
	case event.MessageUpdated:
		return "message_updated"
	case event.MessageDeleted:
		return "message_deleted"
	case event.MessagesBulkDeleted:
		return "messages_bulk_deleted"
	case event.MemberJoined:
		return "member_joined"
	case event.MemberLeft:
		return "member_left"
	case event.MemberBanned:
		return "member_banned"
	case event.MemberUnbanned:
		return "member_unbanned"
	case event.RoleChanged:
		return "role_changed"
	case event.ChannelChanged:
		return "channel_changed"
	case event.ChannelRateLimitChanged:
		return "channel_rate_limit_changed"
	case event.VoiceStateChanged:
		return "voice_state_changed"
	case event.GuildRemoved:
		return "guild_removed"
	default:
		return "unknown"
	}
}

// Processes a single gateway event. Errors are returned for logging by the caller; a failure never affects processing of other events.
func (e *Engine) ProcessEvent(ctx context.Context, evt any) (err error) {
	typ := eventType(evt)
	start := time.Now()
	// similar to an HTTP server, we want to recover any panics from event handling
	defer func() {
		if r := recover(); r != nil {
			e.Logger.Error("event processing exception", "err", r, "type", typ)
			err = fmt.Errorf("panic processing %s event: %v", typ, r)
		}
		if err != nil {
			eventErrorCount.WithLabelValues(typ).Inc()
		}
		eventProcessDuration.WithLabelValues(typ).Observe(time.Since(start).Seconds())
	}()
	eventProcessCount.WithLabelValues(typ).Inc()

	switch v := evt.(type) {
	case event.MessageCreated:
		return e.handleMessageCreated(ctx, v.Message)
	case event.MessageUpdated:
		return e.handleMessageUpdated(ctx, v)
	case event.MessageDeleted:
		return e.handleMessageDeleted(ctx, v)
	case event.MessagesBulkDeleted:
		return e.handleBulkDeleted(ctx, v)
	case event.MemberJoined:
		return e.handleMemberJoined(ctx, v)
	case event.MemberLeft:
		return e.handleMemberLeft(ctx, v)
	case event.MemberBanned:
		e.publish(v.GuildID, auditlog.CategoryMemberBan, memberBanPayload(v.Member, true))
		return nil
	case event.MemberUnbanned:
		e.publish(v.GuildID, auditlog.CategoryMemberUnban, memberBanPayload(v.Member, false))
		return nil
	case event.RoleChanged:
		e.publish(v.GuildID, auditlog.CategoryRoleUpdate, roleChangedPayload(v))
		return nil
	case event.ChannelChanged:
		return e.handleChannelChanged(ctx, v)
	case event.ChannelRateLimitChanged:
		if v.Before != v.After {
			e.Slowmode.ExternalChange(v.GuildID, v.ChannelID, v.After)
		}
		return nil
	case event.VoiceStateChanged:
		e.handleVoiceState(v)
		return nil
	case event.GuildRemoved:
		e.forgetGuild(v.GuildID)
		return nil
	default:
		return fmt.Errorf("unsupported event type: %T", evt)
	}
}

func (e *Engine) publish(guildID string, cat auditlog.Category, p *auditlog.Payload) {
	if e.Audit == nil || guildID == "" {
		return
	}
	e.Audit.Publish(guildID, cat, p)
}

func (e *Engine) guildSettings(ctx context.Context, guildID string) (*settings.GuildSettings, error) {
	gs, err := e.Settings.Get(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("loading guild settings: %w", err)
	}
	return gs, nil
}

type compiledRules struct {
	snapshot string
	set      *filter.RuleSet
}

// Returns the compiled filter rules for a settings snapshot. Rules are only recompiled (and malformed ones only logged) when the guild's settings change.
func (e *Engine) ruleSet(gs *settings.GuildSettings) *filter.RuleSet {
	raw, err := json.Marshal(gs)
	if err != nil {
		return filter.Compile(gs, e.Logger)
	}
	snapshot := string(raw)
	if c, ok := e.rules.Get(gs.GuildID); ok && c.snapshot == snapshot {
		return c.set
	}
	set := filter.Compile(gs, e.Logger)
	e.rules.Add(gs.GuildID, compiledRules{snapshot: snapshot, set: set})
	return set
}

// Runs fn in the background, tracked for Shutdown.
func (e *Engine) goBackground(fn func(ctx context.Context)) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				e.Logger.Error("background task exception", "err", r)
			}
		}()
		fn(e.ctx)
	}()
}

func (e *Engine) forgetGuild(guildID string) {
	e.Messages.DropGuild(guildID)
	e.rules.Remove(guildID)
	e.Greetings.Discard(guildID)
	e.Farewells.Discard(guildID)
	if e.Audit != nil {
		e.Audit.ForgetGuild(guildID)
	}
	e.Logger.Info("dropped state for removed guild", "guild", guildID)
}

// Reverts any slow mode still waiting on its timer, stops all timers and background work, then waits (bounded by ctx) for pending audit deliveries.
func (e *Engine) Shutdown(ctx context.Context) error {
	// reverts call out to the platform, so they run before the background context is cancelled
	e.Slowmode.Stop()
	e.cancel()
	e.voice.Stop()
	e.notices.Stop()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		if e.Audit != nil {
			e.Audit.Wait()
		}
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for in-flight work: %w", ctx.Err())
	}
}
