package engine

import (
	"context"
	"errors"
	"time"

	"github.com/guildwarden/warden/aggregate"
	"github.com/guildwarden/warden/auditlog"
	"github.com/guildwarden/warden/event"
	"github.com/guildwarden/warden/settings"
)

func (e *Engine) handleMemberJoined(ctx context.Context, evt event.MemberJoined) error {
	e.publish(evt.GuildID, auditlog.CategoryMemberJoin, memberJoinPayload(evt))
	if evt.Member.Bot {
		return nil
	}
	gs, err := e.guildSettings(ctx, evt.GuildID)
	if err != nil {
		return err
	}
	if !gs.Greeting.Enabled() {
		return nil
	}
	m := aggregate.Member{ID: evt.Member.ID, Name: evt.Member.Name}
	if e.Greetings.Enqueue(evt.GuildID, m) {
		e.goBackground(func(ctx context.Context) {
			e.flushBatch(ctx, e.Greetings, evt.GuildID, DefaultGreetingTemplate, func(gs *settings.GuildSettings) settings.NotificationSettings {
				return gs.Greeting
			})
		})
	}
	return nil
}

func (e *Engine) handleMemberLeft(ctx context.Context, evt event.MemberLeft) error {
	e.publish(evt.GuildID, auditlog.CategoryMemberLeave, memberLeftPayload(evt))
	if evt.Member.Bot {
		return nil
	}
	gs, err := e.guildSettings(ctx, evt.GuildID)
	if err != nil {
		return err
	}
	if !gs.Farewell.Enabled() {
		return nil
	}
	m := aggregate.Member{ID: evt.Member.ID, Name: evt.Member.Name}
	if e.Farewells.Enqueue(evt.GuildID, m) {
		e.goBackground(func(ctx context.Context) {
			e.flushBatch(ctx, e.Farewells, evt.GuildID, DefaultFarewellTemplate, func(gs *settings.GuildSettings) settings.NotificationSettings {
				return gs.Farewell
			})
		})
	}
	return nil
}

// Waits out the debounce window, then renders the guild's batch and posts it. Only ever called by the Enqueue caller which opened the batch.
func (e *Engine) flushBatch(ctx context.Context, agg *aggregate.Aggregator, guildID, fallback string, pick func(*settings.GuildSettings) settings.NotificationSettings) {
	logger := e.Logger.With("guild", guildID, "kind", agg.Kind)
	t := time.NewTimer(e.Config.GreetingWindow)
	defer t.Stop()
	select {
	case <-ctx.Done():
		agg.Discard(guildID)
		return
	case <-t.C:
	}

	// settings are re-read, since the window may have been open for a while
	gs, err := e.Settings.Get(ctx, guildID)
	if err != nil {
		agg.Discard(guildID)
		logger.Error("failed to load guild settings for notification", "err", err)
		return
	}
	ns := pick(gs)
	tmpl := ns.Template
	if tmpl == "" {
		tmpl = fallback
	}
	text, err := agg.Render(guildID, tmpl)
	if errors.Is(err, aggregate.ErrNoBatch) {
		logger.Error("notification batch vanished before render", "err", err)
		return
	}
	if err != nil {
		logger.Warn("failed to render notification", "err", err)
		return
	}
	if !ns.Enabled() {
		return
	}
	if _, err := e.Platform.SendMessage(ctx, ns.ChannelID, text); err != nil {
		platformErrorCount.WithLabelValues("send_message").Inc()
		logger.Warn("failed to send member notification", "err", err, "channel", ns.ChannelID)
		return
	}
	notificationsSent.WithLabelValues(agg.Kind).Inc()
}

func (e *Engine) handleChannelChanged(ctx context.Context, evt event.ChannelChanged) error {
	if evt.Deleted {
		// drops any slow-mode state and pending revert for the channel
		e.Slowmode.ExternalChange(evt.GuildID, evt.ChannelID, 0)
		e.Messages.Guild(evt.GuildID).RemoveWhere(func(m *event.Message) bool {
			return m.ChannelID == evt.ChannelID
		})
	}
	e.publish(evt.GuildID, auditlog.CategoryChannelUpdate, channelChangedPayload(evt))
	return nil
}

// Voice activity is bursty (reconnects, quick hops), so only the settled state per member is logged.
func (e *Engine) handleVoiceState(evt event.VoiceStateChanged) {
	if evt.GuildID == "" || evt.ChannelID == evt.BeforeChannelID {
		// mute, deafen, and stream changes
		return
	}
	key := evt.GuildID + "/" + evt.MemberID
	e.voiceOrigin.LoadOrStore(key, evt.BeforeChannelID)
	if e.Config.VoiceDebounce <= 0 {
		e.flushVoice(key, evt)
		return
	}
	e.voice.Trigger(key, e.Config.VoiceDebounce, func() {
		e.flushVoice(key, evt)
	})
}

func (e *Engine) flushVoice(key string, last event.VoiceStateChanged) {
	from, ok := e.voiceOrigin.LoadAndDelete(key)
	if !ok {
		from = last.BeforeChannelID
	}
	if from == last.ChannelID {
		// left and came back within the window
		return
	}
	e.publish(last.GuildID, auditlog.CategoryVoice, voicePayload(last.MemberID, from, last.ChannelID))
}
