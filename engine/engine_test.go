package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/guildwarden/warden/auditlog"
	"github.com/guildwarden/warden/countstore"
	"github.com/guildwarden/warden/event"

	"github.com/stretchr/testify/assert"
)

func msgCreated(id, channel, author, content string) event.MessageCreated {
	return event.MessageCreated{Message: event.Message{
		ID:        id,
		GuildID:   FixtureGuild,
		ChannelID: channel,
		AuthorID:  author,
		Content:   content,
		CreatedAt: time.Now(),
	}}
}

func field(p *auditlog.Payload, name string) string {
	for _, f := range p.Fields {
		if f.Name == name {
			return f.Value
		}
	}
	return ""
}

func shutdown(t *testing.T, e *Engine) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, e.Shutdown(ctx))
}

func TestSpamScenario(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := EngineTestFixture()
	defer shutdown(t, f.Engine)

	assert.NoError(f.Engine.ProcessEvent(ctx, msgCreated("m1", "c1", "u1", "this is spam")))

	assert.Equal([]string{"m1"}, f.Platform.DeletedIDs())
	_, ok := f.Engine.Messages.Guild(FixtureGuild).TryGet("m1")
	assert.False(ok)
	// no slow mode observation for the deleted message
	assert.Equal(0, f.Engine.Slowmode.Pending())
	// no chat notification for a plain word rule
	assert.Empty(f.Platform.SentMessages())

	// the platform echoes the deletion back as a gateway event
	assert.NoError(f.Engine.ProcessEvent(ctx, event.MessageDeleted{ID: "m1", GuildID: FixtureGuild, ChannelID: "c1"}))

	f.Engine.Audit.Wait()
	automod := f.Webhooks.Payloads(auditlog.CategoryAutomod)
	assert.Equal(1, len(automod))
	assert.Equal("spam", field(automod[0], "Reason"))
	assert.Equal("this is spam", field(automod[0], "Content"))
	assert.Empty(f.Webhooks.Payloads(auditlog.CategoryMessageDelete))

	// an unfiltered message is observed
	assert.NoError(f.Engine.ProcessEvent(ctx, msgCreated("m2", "c1", "u1", "hello there")))
	assert.Equal(1, f.Engine.Slowmode.Pending())
	_, ok = f.Engine.Messages.Guild(FixtureGuild).TryGet("m2")
	assert.True(ok)
}

func TestFilterExemptions(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := EngineTestFixture()
	defer shutdown(t, f.Engine)

	gs, err := f.Settings.Get(ctx, FixtureGuild)
	assert.NoError(err)
	gs.Ignore.Users = []string{"vip"}
	assert.NoError(f.Settings.Upsert(ctx, gs))
	f.Platform.NoManage["c9"] = true

	assert.NoError(f.Engine.ProcessEvent(ctx, msgCreated("m1", "c1", "vip", "spam")))
	assert.NoError(f.Engine.ProcessEvent(ctx, msgCreated("m2", "c9", "u1", "spam")))
	bot := msgCreated("m3", "c1", "somebot", "spam")
	bot.Message.AuthorBot = true
	assert.NoError(f.Engine.ProcessEvent(ctx, bot))
	assert.NoError(f.Engine.ProcessEvent(ctx, msgCreated("m4", "c1", "u1", "!spam report")))

	assert.Empty(f.Platform.DeletedIDs())
	assert.Equal(4, f.Engine.Messages.Guild(FixtureGuild).Len())
}

func TestRulesCompiledPerSnapshot(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := EngineTestFixture()

	var buf bytes.Buffer
	f.Engine.Logger = slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

	gs, err := f.Settings.Get(ctx, FixtureGuild)
	assert.NoError(err)
	gs.WordFilters = []string{"spam", "two words"}
	assert.NoError(f.Settings.Upsert(ctx, gs))

	for i := 0; i < 3; i++ {
		assert.NoError(f.Engine.ProcessEvent(ctx, msgCreated(fmt.Sprintf("m%d", i), fmt.Sprintf("c%d", i), "u1", "hello")))
	}
	assert.NoError(f.Engine.ProcessEvent(ctx, msgCreated("m3", "c9", "u1", "spam")))
	assert.Equal([]string{"m3"}, f.Platform.DeletedIDs())

	// a settings change is picked up on the next message
	gs.WordFilters = []string{"eggs", "two words"}
	assert.NoError(f.Settings.Upsert(ctx, gs))
	assert.NoError(f.Engine.ProcessEvent(ctx, msgCreated("m4", "c9", "u1", "eggs")))
	assert.Equal([]string{"m3", "m4"}, f.Platform.DeletedIDs())

	shutdown(t, f.Engine)
	assert.Equal(2, strings.Count(buf.String(), "skipping word filter rule"))
}

func TestDeleteFailureKeepsMessage(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := EngineTestFixture()
	defer shutdown(t, f.Engine)

	f.Platform.DeleteErr = errors.New("missing access")
	assert.NoError(f.Engine.ProcessEvent(ctx, msgCreated("m1", "c1", "u1", "spam")))

	_, ok := f.Engine.Messages.Guild(FixtureGuild).TryGet("m1")
	assert.True(ok)
	f.Engine.Audit.Wait()
	assert.Empty(f.Webhooks.Payloads(auditlog.CategoryAutomod))
}

func TestInviteNotificationAndWarning(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := EngineTestFixture()
	defer shutdown(t, f.Engine)

	assert.NoError(f.Engine.ProcessEvent(ctx, msgCreated("m1", "c1", "u1", "join us at discord.gg/abc123")))

	assert.Equal([]string{"m1"}, f.Platform.DeletedIDs())
	sent := f.Platform.SentMessages()
	assert.Equal(1, len(sent))
	assert.Equal("c1", sent[0].ChannelID)
	assert.Equal("<@u1> Invite links are not allowed here. (warning 1)", sent[0].Content)

	n, err := f.Counters.GetCount(ctx, countstore.InfractionName(FixtureGuild), "u1", countstore.PeriodTotal)
	assert.NoError(err)
	assert.Equal(1, n)

	// the notice removes itself
	assert.Eventually(func() bool {
		ids := f.Platform.DeletedIDs()
		return len(ids) == 2 && ids[1] == sent[0].ID
	}, 2*time.Second, 10*time.Millisecond)

	// users above the bot are never warned
	f.Platform.Unmoderatable["admin"] = true
	assert.NoError(f.Engine.ProcessEvent(ctx, msgCreated("m2", "c1", "admin", "discord.gg/xyz")))
	n, err = f.Counters.GetCount(ctx, countstore.InfractionName(FixtureGuild), "admin", countstore.PeriodTotal)
	assert.NoError(err)
	assert.Equal(0, n)
	sent = f.Platform.SentMessages()
	assert.Equal("<@admin> Invite links are not allowed here.", sent[len(sent)-1].Content)

	f.Engine.Audit.Wait()
	automod := f.Webhooks.Payloads(auditlog.CategoryAutomod)
	assert.Equal(2, len(automod))
	warned := 0
	for _, p := range automod {
		assert.Equal("invite", field(p, "Reason"))
		if field(p, "Infractions") == "1" {
			warned++
		}
	}
	assert.Equal(1, warned)
}

func TestWarnedUsersToday(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := EngineTestFixture()
	defer shutdown(t, f.Engine)

	assert.NoError(f.Engine.ProcessEvent(ctx, msgCreated("m1", "c1", "u1", "discord.gg/one")))
	assert.NoError(f.Engine.ProcessEvent(ctx, msgCreated("m2", "c1", "u1", "discord.gg/two")))
	assert.NoError(f.Engine.ProcessEvent(ctx, msgCreated("m3", "c1", "u2", "discord.gg/three")))

	// a repeat offender is counted once
	n, err := f.Counters.GetCountDistinct(ctx, countstore.InfractionName(FixtureGuild), countstore.WarnedUsersBucket, countstore.PeriodDay)
	assert.NoError(err)
	assert.Equal(2, n)

	f.Engine.Audit.Wait()
	byMessage := map[string]*auditlog.Payload{}
	for _, p := range f.Webhooks.Payloads(auditlog.CategoryAutomod) {
		byMessage[field(p, "Infractions")+"/"+field(p, "Users warned today")] = p
	}
	assert.Contains(byMessage, "1/1")
	assert.Contains(byMessage, "2/1")
	assert.Contains(byMessage, "1/2")
}

func TestSlowmodeEscalationAndRevert(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := EngineTestFixture()
	defer shutdown(t, f.Engine)

	for i := 0; i < 4; i++ {
		assert.NoError(f.Engine.ProcessEvent(ctx, msgCreated(fmt.Sprintf("m%d", i), "c1", "u1", "hello")))
	}
	assert.Empty(f.Platform.RateLimitHistory())

	assert.NoError(f.Engine.ProcessEvent(ctx, msgCreated("m4", "c1", "u1", "hello")))
	assert.Equal([]RateLimitCall{{ChannelID: "c1", Seconds: 10}}, f.Platform.RateLimitHistory())

	assert.Eventually(func() bool {
		h := f.Platform.RateLimitHistory()
		return len(h) == 2 && h[1] == RateLimitCall{ChannelID: "c1", Seconds: 0}
	}, 2*time.Second, 10*time.Millisecond)

	// the revert is reported after the platform call returns
	assert.Eventually(func() bool {
		return len(f.Webhooks.Payloads(auditlog.CategoryAutomod)) == 2
	}, 2*time.Second, 10*time.Millisecond)
	automod := f.Webhooks.Payloads(auditlog.CategoryAutomod)
	assert.Equal("Slow mode enabled", automod[0].Title)
	assert.Equal("10s", field(automod[0], "Interval"))
	assert.Equal("Slow mode disabled", automod[1].Title)
}

func TestSlowmodeEnableFailureRollsBack(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := EngineTestFixture()
	defer shutdown(t, f.Engine)

	gs, err := f.Settings.Get(ctx, FixtureGuild)
	assert.NoError(err)
	gs.Slowmode.Duration = 0
	assert.NoError(f.Settings.Upsert(ctx, gs))

	f.Platform.SetRateLimitErr(errors.New("missing permissions"))
	for i := 0; i < 5; i++ {
		assert.NoError(f.Engine.ProcessEvent(ctx, msgCreated(fmt.Sprintf("m%d", i), "c1", "u1", "hello")))
	}
	assert.False(f.Engine.Slowmode.Active(FixtureGuild, "c1"))
	assert.Empty(f.Platform.RateLimitHistory())

	// once the platform recovers, the next burst escalates
	f.Platform.SetRateLimitErr(nil)
	for i := 5; i < 10; i++ {
		assert.NoError(f.Engine.ProcessEvent(ctx, msgCreated(fmt.Sprintf("m%d", i), "c1", "u1", "hello")))
	}
	assert.True(f.Engine.Slowmode.Active(FixtureGuild, "c1"))
	assert.Equal([]RateLimitCall{{ChannelID: "c1", Seconds: 10}}, f.Platform.RateLimitHistory())
}

func TestShutdownRevertsSlowmode(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := EngineTestFixture()

	gs, err := f.Settings.Get(ctx, FixtureGuild)
	assert.NoError(err)
	gs.Slowmode.Duration = time.Hour
	assert.NoError(f.Settings.Upsert(ctx, gs))

	for i := 0; i < 5; i++ {
		assert.NoError(f.Engine.ProcessEvent(ctx, msgCreated(fmt.Sprintf("m%d", i), "c1", "u1", "hello")))
	}
	assert.Equal(10, f.Platform.RateLimits["c1"])

	shutdown(t, f.Engine)
	assert.Equal([]RateLimitCall{{ChannelID: "c1", Seconds: 10}, {ChannelID: "c1", Seconds: 0}}, f.Platform.RateLimitHistory())
	assert.False(f.Engine.Slowmode.Active(FixtureGuild, "c1"))

	automod := f.Webhooks.Payloads(auditlog.CategoryAutomod)
	assert.Equal(2, len(automod))
}

func TestSlowmodeIneligible(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := EngineTestFixture()
	defer shutdown(t, f.Engine)

	f.Platform.Moderators["mod"] = true
	f.Platform.RateLimits["c2"] = 30
	for i := 0; i < 8; i++ {
		assert.NoError(f.Engine.ProcessEvent(ctx, msgCreated(fmt.Sprintf("a%d", i), "c1", "mod", "hello")))
		assert.NoError(f.Engine.ProcessEvent(ctx, msgCreated(fmt.Sprintf("b%d", i), "c2", "u1", "hello")))
	}
	assert.Equal(0, f.Engine.Slowmode.Pending())
	assert.Empty(f.Platform.RateLimitHistory())

	// a moderator lifting the limit makes the channel eligible again
	f.Platform.RateLimits["c2"] = 0
	assert.NoError(f.Engine.ProcessEvent(ctx, event.ChannelRateLimitChanged{GuildID: FixtureGuild, ChannelID: "c2", Before: 30, After: 0}))
	assert.NoError(f.Engine.ProcessEvent(ctx, msgCreated("b8", "c2", "u1", "hello")))
	assert.Equal(1, f.Engine.Slowmode.Pending())
}

func TestMessageEditAudit(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := EngineTestFixture()
	defer shutdown(t, f.Engine)

	assert.NoError(f.Engine.ProcessEvent(ctx, msgCreated("m1", "c1", "u1", "hello there")))

	// partial update, without author
	upd := event.MessageUpdated{After: event.Message{ID: "m1", GuildID: FixtureGuild, ChannelID: "c1", Content: "hello world"}}
	assert.NoError(f.Engine.ProcessEvent(ctx, upd))

	cached, ok := f.Engine.Messages.Guild(FixtureGuild).TryGet("m1")
	assert.True(ok)
	assert.Equal("hello world", cached.Content)
	assert.Equal("u1", cached.AuthorID)

	// same text (eg, a link preview arriving) is not an edit
	assert.NoError(f.Engine.ProcessEvent(ctx, upd))

	// edits are filtered too
	upd.After.Content = "now with spam"
	assert.NoError(f.Engine.ProcessEvent(ctx, upd))
	assert.Equal([]string{"m1"}, f.Platform.DeletedIDs())

	f.Engine.Audit.Wait()
	edits := map[string]*auditlog.Payload{}
	for _, p := range f.Webhooks.Payloads(auditlog.CategoryMessageEdit) {
		edits[field(p, "After")] = p
	}
	assert.Equal(2, len(edits))
	assert.Equal("hello there", field(edits["hello world"], "Before"))
	assert.Equal("hello world", field(edits["now with spam"], "Before"))
	assert.True(strings.Contains(edits["hello world"].Description, "<@u1>"))
	assert.Equal(1, len(f.Webhooks.Payloads(auditlog.CategoryAutomod)))
}

func TestMessageDeleteAudit(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := EngineTestFixture()
	defer shutdown(t, f.Engine)

	assert.NoError(f.Engine.ProcessEvent(ctx, msgCreated("m1", "c1", "u1", "hello")))
	assert.NoError(f.Engine.ProcessEvent(ctx, event.MessageDeleted{ID: "m1", GuildID: FixtureGuild, ChannelID: "c1"}))
	assert.NoError(f.Engine.ProcessEvent(ctx, event.MessageDeleted{ID: "m99", GuildID: FixtureGuild, ChannelID: "c1"}))

	_, ok := f.Engine.Messages.Guild(FixtureGuild).TryGet("m1")
	assert.False(ok)

	f.Engine.Audit.Wait()
	dels := f.Webhooks.Payloads(auditlog.CategoryMessageDelete)
	assert.Equal(2, len(dels))
	byID := map[string]*auditlog.Payload{}
	for _, p := range dels {
		byID[field(p, "Message ID")] = p
	}
	assert.Equal("hello", field(byID["m1"], "Content"))
	assert.True(strings.Contains(byID["m1"].Description, "<@u1>"))
	assert.Equal(unavailable, field(byID["m99"], "Content"))
}

func TestBulkDeleteAudit(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := EngineTestFixture()
	defer shutdown(t, f.Engine)

	for i := 1; i <= 3; i++ {
		assert.NoError(f.Engine.ProcessEvent(ctx, msgCreated(fmt.Sprintf("m%d", i), "c1", "u1", fmt.Sprintf("line %d", i))))
	}
	assert.NoError(f.Engine.ProcessEvent(ctx, msgCreated("keep", "c1", "u2", "unrelated")))

	assert.NoError(f.Engine.ProcessEvent(ctx, event.MessagesBulkDeleted{
		IDs:       []string{"m1", "m2", "m3", "m4"},
		GuildID:   FixtureGuild,
		ChannelID: "c1",
	}))
	assert.Equal([]string{"keep"}, f.Engine.Messages.Guild(FixtureGuild).Keys())

	f.Engine.Audit.Wait()
	bulk := f.Webhooks.Payloads(auditlog.CategoryMessageBulkDelete)
	assert.Equal(1, len(bulk))
	assert.Equal("4 messages deleted", bulk[0].Title)
	assert.Equal("1", field(bulk[0], "Not cached"))
	assert.True(strings.Contains(bulk[0].Description, "line 2"))
}

func TestGreetingsAggregated(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := EngineTestFixture()
	defer shutdown(t, f.Engine)

	gs, err := f.Settings.Get(ctx, FixtureGuild)
	assert.NoError(err)
	gs.Greeting.ChannelID = "welcome"
	assert.NoError(f.Settings.Upsert(ctx, gs))

	for i := 0; i < 10; i++ {
		assert.NoError(f.Engine.ProcessEvent(ctx, event.MemberJoined{
			GuildID:  FixtureGuild,
			Member:   event.Member{ID: fmt.Sprintf("u%d", i), Name: fmt.Sprintf("user%d", i)},
			JoinedAt: time.Now(),
		}))
	}

	assert.Eventually(func() bool {
		return len(f.Platform.SentMessages()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)

	sent := f.Platform.SentMessages()
	assert.Equal(1, len(sent))
	assert.Equal("welcome", sent[0].ChannelID)
	assert.True(strings.HasPrefix(sent[0].Content, "Welcome <@u0>, <@u1>"))
	for i := 0; i < 10; i++ {
		assert.True(strings.Contains(sent[0].Content, fmt.Sprintf("<@u%d>", i)))
	}
	assert.Equal(0, f.Engine.Greetings.Pending(FixtureGuild))

	f.Engine.Audit.Wait()
	assert.Equal(10, len(f.Webhooks.Payloads(auditlog.CategoryMemberJoin)))
}

func TestFarewellTemplate(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := EngineTestFixture()
	defer shutdown(t, f.Engine)

	gs, err := f.Settings.Get(ctx, FixtureGuild)
	assert.NoError(err)
	gs.Farewell.ChannelID = "lobby"
	gs.Farewell.Template = "{{ count }} left: {{ names }}"
	assert.NoError(f.Settings.Upsert(ctx, gs))

	assert.NoError(f.Engine.ProcessEvent(ctx, event.MemberLeft{GuildID: FixtureGuild, Member: event.Member{ID: "u1", Name: "alpha"}}))
	assert.NoError(f.Engine.ProcessEvent(ctx, event.MemberLeft{GuildID: FixtureGuild, Member: event.Member{ID: "u2", Name: "beta"}}))

	assert.Eventually(func() bool {
		return len(f.Platform.SentMessages()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal("2 left: alpha, beta", f.Platform.SentMessages()[0].Content)
}

func TestShutdownCancelsPendingGreeting(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := EngineTestFixture()

	gs, err := f.Settings.Get(ctx, FixtureGuild)
	assert.NoError(err)
	gs.Greeting.ChannelID = "welcome"
	assert.NoError(f.Settings.Upsert(ctx, gs))

	assert.NoError(f.Engine.ProcessEvent(ctx, event.MemberJoined{GuildID: FixtureGuild, Member: event.Member{ID: "u1", Name: "one"}}))
	shutdown(t, f.Engine)

	time.Sleep(100 * time.Millisecond)
	assert.Empty(f.Platform.SentMessages())
	assert.Equal(0, f.Engine.Greetings.Pending(FixtureGuild))
}

func TestVoiceDebounce(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := EngineTestFixture()
	defer shutdown(t, f.Engine)

	hops := []event.VoiceStateChanged{
		{GuildID: FixtureGuild, MemberID: "u1", BeforeChannelID: "vx", ChannelID: "va"},
		{GuildID: FixtureGuild, MemberID: "u1", BeforeChannelID: "va", ChannelID: "vb"},
		{GuildID: FixtureGuild, MemberID: "u1", BeforeChannelID: "vb", ChannelID: "vc"},
		// mute toggle, ignored
		{GuildID: FixtureGuild, MemberID: "u1", BeforeChannelID: "vc", ChannelID: "vc"},
		// joined and left again within the window
		{GuildID: FixtureGuild, MemberID: "u2", BeforeChannelID: "", ChannelID: "va"},
		{GuildID: FixtureGuild, MemberID: "u2", BeforeChannelID: "va", ChannelID: ""},
	}
	for _, h := range hops {
		assert.NoError(f.Engine.ProcessEvent(ctx, h))
	}

	assert.Eventually(func() bool {
		return len(f.Webhooks.Payloads(auditlog.CategoryVoice)) == 1
	}, 2*time.Second, 10*time.Millisecond)
	time.Sleep(150 * time.Millisecond)

	voice := f.Webhooks.Payloads(auditlog.CategoryVoice)
	assert.Equal(1, len(voice))
	assert.Equal("Moved voice channel", voice[0].Title)
	assert.Equal("<@u1> moved from <#vx> to <#vc>", voice[0].Description)
}

func TestMembershipAndChannelAudit(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := EngineTestFixture()
	defer shutdown(t, f.Engine)

	evts := []any{
		event.MemberBanned{GuildID: FixtureGuild, Member: event.Member{ID: "u1", Name: "one"}},
		event.MemberUnbanned{GuildID: FixtureGuild, Member: event.Member{ID: "u1", Name: "one"}},
		event.RoleChanged{GuildID: FixtureGuild, RoleID: "r1", Name: "helpers", BeforeName: "helper"},
		event.ChannelChanged{GuildID: FixtureGuild, ChannelID: "c1", Name: "general", Deleted: true},
	}
	for _, evt := range evts {
		assert.NoError(f.Engine.ProcessEvent(ctx, evt))
	}

	f.Engine.Audit.Wait()
	assert.Equal("Member banned", f.Webhooks.Payloads(auditlog.CategoryMemberBan)[0].Title)
	assert.Equal("Member unbanned", f.Webhooks.Payloads(auditlog.CategoryMemberUnban)[0].Title)
	role := f.Webhooks.Payloads(auditlog.CategoryRoleUpdate)[0]
	assert.Equal("Role updated", role.Title)
	assert.Equal("helper", field(role, "Before"))
	assert.Equal("Channel deleted", f.Webhooks.Payloads(auditlog.CategoryChannelUpdate)[0].Title)
}

func TestGuildRemoved(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := EngineTestFixture()
	defer shutdown(t, f.Engine)

	assert.NoError(f.Engine.ProcessEvent(ctx, msgCreated("m1", "c1", "u1", "hello")))
	assert.Equal(1, f.Engine.Messages.Guilds())
	assert.NoError(f.Engine.ProcessEvent(ctx, event.GuildRemoved{GuildID: FixtureGuild}))
	assert.Equal(0, f.Engine.Messages.Guilds())
}

func TestUnsupportedEvent(t *testing.T) {
	f := EngineTestFixture()
	defer shutdown(t, f.Engine)

	assert.Error(t, f.Engine.ProcessEvent(context.Background(), "not an event"))
}
