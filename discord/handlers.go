package discord

import (
	"context"

	"github.com/guildwarden/warden/event"

	"github.com/bwmarrin/discordgo"
)

// Consumes converted gateway events; implemented by *engine.Engine.
type Processor interface {
	ProcessEvent(ctx context.Context, evt any) error
}

// Subscribes the processor to the session's gateway events. Returns a function which removes all the handlers.
func (b *Bot) RegisterHandlers(proc Processor) func() {
	dispatch := func(evt any) {
		if err := proc.ProcessEvent(context.Background(), evt); err != nil {
			b.Logger.Warn("failed to process gateway event", "err", err)
		}
	}

	removers := []func(){
		b.Session.AddHandler(func(_ *discordgo.Session, g *discordgo.GuildCreate) {
			b.rememberRoles(g.Guild)
		}),
		b.Session.AddHandler(func(_ *discordgo.Session, g *discordgo.GuildDelete) {
			// outages are reported as deletes with the unavailable flag
			if g.Guild == nil || g.Unavailable {
				return
			}
			dispatch(event.GuildRemoved{GuildID: g.ID})
		}),
		b.Session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
			if m.GuildID == "" {
				return
			}
			dispatch(event.MessageCreated{Message: convertMessage(m.Message)})
		}),
		b.Session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageUpdate) {
			if m.GuildID == "" {
				return
			}
			evt := event.MessageUpdated{After: convertMessage(m.Message)}
			if m.BeforeUpdate != nil {
				before := convertMessage(m.BeforeUpdate)
				evt.Before = &before
			}
			dispatch(evt)
		}),
		b.Session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageDelete) {
			if m.GuildID == "" {
				return
			}
			dispatch(event.MessageDeleted{ID: m.ID, GuildID: m.GuildID, ChannelID: m.ChannelID})
		}),
		b.Session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageDeleteBulk) {
			dispatch(event.MessagesBulkDeleted{IDs: m.Messages, GuildID: m.GuildID, ChannelID: m.ChannelID})
		}),
		b.Session.AddHandler(func(_ *discordgo.Session, m *discordgo.GuildMemberAdd) {
			dispatch(event.MemberJoined{GuildID: m.GuildID, Member: convertMember(m.Member), JoinedAt: m.JoinedAt})
		}),
		b.Session.AddHandler(func(_ *discordgo.Session, m *discordgo.GuildMemberRemove) {
			dispatch(event.MemberLeft{GuildID: m.GuildID, Member: convertMember(m.Member)})
		}),
		b.Session.AddHandler(func(_ *discordgo.Session, m *discordgo.GuildBanAdd) {
			dispatch(event.MemberBanned{GuildID: m.GuildID, Member: convertUser(m.User)})
		}),
		b.Session.AddHandler(func(_ *discordgo.Session, m *discordgo.GuildBanRemove) {
			dispatch(event.MemberUnbanned{GuildID: m.GuildID, Member: convertUser(m.User)})
		}),
		b.Session.AddHandler(func(_ *discordgo.Session, r *discordgo.GuildRoleCreate) {
			if r.Role == nil {
				return
			}
			b.roleNames.Store(r.Role.ID, r.Role.Name)
			dispatch(event.RoleChanged{GuildID: r.GuildID, RoleID: r.Role.ID, Name: r.Role.Name})
		}),
		b.Session.AddHandler(func(_ *discordgo.Session, r *discordgo.GuildRoleUpdate) {
			if r.Role == nil {
				return
			}
			before, _ := b.roleNames.Load(r.Role.ID)
			b.roleNames.Store(r.Role.ID, r.Role.Name)
			if before == "" {
				// unknown prior name; still an update, not a creation
				before = r.Role.Name
			}
			dispatch(event.RoleChanged{GuildID: r.GuildID, RoleID: r.Role.ID, Name: r.Role.Name, BeforeName: before})
		}),
		b.Session.AddHandler(func(_ *discordgo.Session, r *discordgo.GuildRoleDelete) {
			name, _ := b.roleNames.LoadAndDelete(r.RoleID)
			dispatch(event.RoleChanged{GuildID: r.GuildID, RoleID: r.RoleID, Name: name, Deleted: true})
		}),
		b.Session.AddHandler(func(_ *discordgo.Session, c *discordgo.ChannelCreate) {
			if c.GuildID == "" {
				return
			}
			dispatch(event.ChannelChanged{GuildID: c.GuildID, ChannelID: c.ID, Name: c.Name, Created: true})
		}),
		b.Session.AddHandler(func(_ *discordgo.Session, c *discordgo.ChannelUpdate) {
			if c.GuildID == "" {
				return
			}
			changed, limit := convertChannelUpdate(c)
			if limit != nil {
				dispatch(*limit)
			}
			dispatch(changed)
		}),
		b.Session.AddHandler(func(_ *discordgo.Session, c *discordgo.ChannelDelete) {
			if c.GuildID == "" {
				return
			}
			dispatch(event.ChannelChanged{GuildID: c.GuildID, ChannelID: c.ID, Name: c.Name, Deleted: true})
		}),
		b.Session.AddHandler(func(_ *discordgo.Session, v *discordgo.VoiceStateUpdate) {
			if v.GuildID == "" {
				return
			}
			dispatch(convertVoiceState(v))
		}),
	}

	return func() {
		for _, remove := range removers {
			remove()
		}
	}
}

func (b *Bot) rememberRoles(g *discordgo.Guild) {
	if g == nil {
		return
	}
	for _, r := range g.Roles {
		b.roleNames.Store(r.ID, r.Name)
	}
}
