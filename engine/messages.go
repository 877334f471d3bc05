package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/guildwarden/warden/auditlog"
	"github.com/guildwarden/warden/countstore"
	"github.com/guildwarden/warden/event"
	"github.com/guildwarden/warden/filter"
	"github.com/guildwarden/warden/settings"
	"github.com/guildwarden/warden/slowmode"
)

func messageKey(guildID, messageID string) string {
	return guildID + "/" + messageID
}

func (e *Engine) handleMessageCreated(ctx context.Context, msg event.Message) error {
	if msg.GuildID == "" {
		// direct messages are out of scope
		return nil
	}
	e.Messages.Guild(msg.GuildID).Add(&msg)
	if msg.AuthorBot {
		return nil
	}

	gs, err := e.guildSettings(ctx, msg.GuildID)
	if err != nil {
		return err
	}

	outcome := e.Filter.Evaluate(ctx, &msg, e.ruleSet(gs), gs.Ignore)
	if outcome.IsDeleted() {
		e.enforce(ctx, &msg, outcome)
		// a deleted message does not count towards a burst
		return nil
	}

	e.observeSlowmode(ctx, &msg, gs)
	return nil
}

func (e *Engine) handleMessageUpdated(ctx context.Context, evt event.MessageUpdated) error {
	after := evt.After
	if after.GuildID == "" {
		return nil
	}
	bucket := e.Messages.Guild(after.GuildID)
	before := evt.Before
	if before == nil {
		if cached, ok := bucket.TryGet(after.ID); ok {
			before = cached
		}
	}
	// partial updates may omit the author
	if after.AuthorID == "" && before != nil {
		after.AuthorID = before.AuthorID
		after.AuthorName = before.AuthorName
		after.AuthorRoles = before.AuthorRoles
		after.AuthorBot = before.AuthorBot
	}

	if after.AuthorBot {
		bucket.Add(&after)
		return nil
	}
	// link unfurls and pins arrive as updates with unchanged text
	if before == nil || before.Content != after.Content {
		e.publish(after.GuildID, auditlog.CategoryMessageEdit, messageEditPayload(before, &after))
	}
	bucket.Add(&after)

	gs, err := e.guildSettings(ctx, after.GuildID)
	if err != nil {
		return err
	}
	outcome := e.Filter.Evaluate(ctx, &after, e.ruleSet(gs), gs.Ignore)
	if outcome.IsDeleted() {
		e.enforce(ctx, &after, outcome)
	}
	return nil
}

func (e *Engine) handleMessageDeleted(ctx context.Context, evt event.MessageDeleted) error {
	if evt.GuildID == "" {
		return nil
	}
	bucket := e.Messages.Guild(evt.GuildID)
	key := messageKey(evt.GuildID, evt.ID)
	if e.autoDeleted.Contains(key) {
		// already logged as an automod action
		e.autoDeleted.Remove(key)
		bucket.Remove(evt.ID)
		return nil
	}

	msg, ok := bucket.TryGet(evt.ID)
	if ok && msg.AuthorBot {
		bucket.Remove(evt.ID)
		return nil
	}
	if !ok {
		msg = nil
	}
	e.publish(evt.GuildID, auditlog.CategoryMessageDelete, messageDeletePayload(evt, msg))
	bucket.Remove(evt.ID)
	return nil
}

func (e *Engine) handleBulkDeleted(ctx context.Context, evt event.MessagesBulkDeleted) error {
	if evt.GuildID == "" || len(evt.IDs) == 0 {
		return nil
	}
	bucket := e.Messages.Guild(evt.GuildID)
	ids := make(map[string]bool, len(evt.IDs))
	found := []*event.Message{}
	for _, id := range evt.IDs {
		ids[id] = true
		if msg, ok := bucket.TryGet(id); ok {
			found = append(found, msg)
		}
	}
	e.publish(evt.GuildID, auditlog.CategoryMessageBulkDelete, bulkDeletePayload(evt, found))
	bucket.RemoveWhere(func(m *event.Message) bool { return ids[m.ID] })
	return nil
}

// Applies a deleting filter outcome: removes the message, records the automod action, and handles notification and warning side effects.
func (e *Engine) enforce(ctx context.Context, msg *event.Message, outcome filter.Outcome) {
	logger := e.Logger.With("guild", msg.GuildID, "channel", msg.ChannelID, "author", msg.AuthorID, "message", msg.ID, "reason", outcome.Reason)
	key := messageKey(msg.GuildID, msg.ID)

	// recorded before the delete call, since the resulting gateway event can arrive before it returns
	e.autoDeleted.Add(key, struct{}{})
	if err := e.Platform.DeleteMessage(ctx, msg.GuildID, msg.ChannelID, msg.ID); err != nil {
		e.autoDeleted.Remove(key)
		platformErrorCount.WithLabelValues("delete_message").Inc()
		logger.Warn("failed to delete filtered message", "err", err)
		return
	}
	e.Messages.Guild(msg.GuildID).Remove(msg.ID)
	messagesFilteredCount.WithLabelValues(reasonLabel(outcome.Reason)).Inc()
	logger.Info("deleted filtered message", "verdict", outcome.Verdict)

	var w warning
	if outcome.WarnAuthor {
		w = e.warnAuthor(ctx, msg)
	}
	e.publish(msg.GuildID, auditlog.CategoryAutomod, automodDeletePayload(msg, outcome, w))

	if outcome.Verdict == filter.DeletedWithNotification && outcome.NotifyText != "" {
		text := fmt.Sprintf("<@%s> %s", msg.AuthorID, outcome.NotifyText)
		if w.infractions > 0 {
			text += fmt.Sprintf(" (warning %d)", w.infractions)
		}
		e.sendTransient(ctx, msg.GuildID, msg.ChannelID, text)
	}
}

// Only real word-rule patterns would blow up label cardinality.
func reasonLabel(reason string) string {
	switch reason {
	case filter.ReasonInvite, filter.ReasonSticker, filter.ReasonContentType:
		return reason
	default:
		return "word"
	}
}

type warning struct {
	// the author's total; zero if no warning was recorded
	infractions int
	// distinct users warned in the guild today
	warnedToday int
}

// Records an infraction, unless the author outranks the bot.
func (e *Engine) warnAuthor(ctx context.Context, msg *event.Message) warning {
	if !e.Platform.CanModerate(ctx, msg.GuildID, msg.AuthorID) {
		e.Logger.Debug("skipping warning for user above bot in role hierarchy", "guild", msg.GuildID, "author", msg.AuthorID)
		return warning{}
	}
	if e.Counters == nil {
		return warning{}
	}
	logger := e.Logger.With("guild", msg.GuildID, "author", msg.AuthorID)
	name := countstore.InfractionName(msg.GuildID)
	if err := e.Counters.Increment(ctx, name, msg.AuthorID); err != nil {
		logger.Error("failed to record infraction", "err", err)
		return warning{}
	}
	infractionsCount.Inc()
	w := warning{infractions: 1}
	if total, err := e.Counters.GetCount(ctx, name, msg.AuthorID, countstore.PeriodTotal); err != nil {
		logger.Warn("failed to read infraction count", "err", err)
	} else {
		w.infractions = total
	}

	if err := e.Counters.IncrementDistinct(ctx, name, countstore.WarnedUsersBucket, msg.AuthorID); err != nil {
		logger.Warn("failed to record warned user", "err", err)
		return w
	}
	if n, err := e.Counters.GetCountDistinct(ctx, name, countstore.WarnedUsersBucket, countstore.PeriodDay); err != nil {
		logger.Warn("failed to read warned user count", "err", err)
	} else {
		w.warnedToday = n
	}
	return w
}

// Posts a notification which removes itself after NotifyTTL.
func (e *Engine) sendTransient(ctx context.Context, guildID, channelID, text string) {
	id, err := e.Platform.SendMessage(ctx, channelID, text)
	if err != nil {
		platformErrorCount.WithLabelValues("send_message").Inc()
		e.Logger.Warn("failed to send filter notification", "err", err, "guild", guildID, "channel", channelID)
		return
	}
	notificationsSent.WithLabelValues("filter").Inc()
	if e.Config.NotifyTTL <= 0 {
		return
	}
	key := messageKey(guildID, id)
	// our own notice is not an interesting delete in the audit log
	e.autoDeleted.Add(key, struct{}{})
	e.notices.Trigger(key, e.Config.NotifyTTL, func() {
		ctx, cancel := context.WithTimeout(e.ctx, 10*time.Second)
		defer cancel()
		if err := e.Platform.DeleteMessage(ctx, guildID, channelID, id); err != nil {
			platformErrorCount.WithLabelValues("delete_message").Inc()
			e.Logger.Debug("failed to remove filter notification", "err", err, "guild", guildID, "channel", channelID)
		}
	})
}

func slowmodeConfig(s settings.SlowmodeSettings) slowmode.Config {
	return slowmode.Config{
		Threshold: s.Threshold,
		Window:    s.Window,
		Interval:  s.Interval,
		Duration:  s.Duration,
	}
}

// Feeds a message into the slow-mode limiter, if the author and channel are eligible, and applies an escalation.
func (e *Engine) observeSlowmode(ctx context.Context, msg *event.Message, gs *settings.GuildSettings) {
	if !gs.Slowmode.Enabled {
		return
	}
	if gs.Ignore.Exempts(msg.ChannelID, msg.AuthorID, msg.AuthorRoles) {
		return
	}
	if e.Platform.IsModerator(ctx, msg.GuildID, msg.AuthorID, msg.AuthorRoles) {
		return
	}
	if !e.Slowmode.Active(msg.GuildID, msg.ChannelID) {
		cur, err := e.Platform.ChannelRateLimit(ctx, msg.GuildID, msg.ChannelID)
		if err != nil {
			platformErrorCount.WithLabelValues("channel_rate_limit").Inc()
			e.Logger.Warn("failed to read channel rate limit", "err", err, "guild", msg.GuildID, "channel", msg.ChannelID)
			return
		}
		if cur > 0 {
			// set by someone else; not ours to escalate
			return
		}
	}

	res := e.Slowmode.Observe(msg.GuildID, msg.ChannelID, msg.AuthorID, time.Now(), slowmodeConfig(gs.Slowmode))
	if res.Action != slowmode.EnableSlowmode {
		return
	}
	if err := e.Platform.SetChannelRateLimit(ctx, msg.GuildID, msg.ChannelID, res.Interval); err != nil {
		platformErrorCount.WithLabelValues("set_channel_rate_limit").Inc()
		e.Logger.Error("failed to enable slow mode", "err", err, "guild", msg.GuildID, "channel", msg.ChannelID)
		// the next burst gets another chance
		e.Slowmode.Deactivate(msg.GuildID, msg.ChannelID)
		return
	}
	slowmodeEnabledCount.Inc()
	e.Logger.Info("enabled slow mode", "guild", msg.GuildID, "channel", msg.ChannelID, "author", msg.AuthorID, "interval", res.Interval)
	e.publish(msg.GuildID, auditlog.CategoryAutomod, slowmodePayload(msg.ChannelID, msg.AuthorID, res.Interval, gs.Slowmode.Duration))
}

func (e *Engine) revertSlowmode(guildID, channelID string) {
	ctx, cancel := context.WithTimeout(e.ctx, 10*time.Second)
	defer cancel()
	if err := e.Platform.SetChannelRateLimit(ctx, guildID, channelID, 0); err != nil {
		platformErrorCount.WithLabelValues("set_channel_rate_limit").Inc()
		e.Logger.Error("failed to revert slow mode", "err", err, "guild", guildID, "channel", channelID)
		return
	}
	e.Logger.Info("reverted slow mode", "guild", guildID, "channel", channelID)
	e.publish(guildID, auditlog.CategoryAutomod, slowmodePayload(channelID, "", 0, 0))
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
