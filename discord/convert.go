package discord

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/guildwarden/warden/auditlog"
	"github.com/guildwarden/warden/event"

	"github.com/bwmarrin/discordgo"
	"github.com/rivo/uniseg"
)

const (
	maxEmbedFields     = 25
	maxEmbedFieldValue = 1024
	maxEmbedFieldName  = 256
)

func displayName(u *discordgo.User, nick string) string {
	switch {
	case nick != "":
		return nick
	case u == nil:
		return ""
	case u.GlobalName != "":
		return u.GlobalName
	default:
		return u.Username
	}
}

func convertMessage(m *discordgo.Message) event.Message {
	out := event.Message{
		ID:        m.ID,
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		Content:   m.Content,
		CreatedAt: m.Timestamp,
	}
	nick := ""
	if m.Member != nil {
		out.AuthorRoles = m.Member.Roles
		nick = m.Member.Nick
	}
	if m.Author != nil {
		out.AuthorID = m.Author.ID
		out.AuthorName = displayName(m.Author, nick)
		out.AuthorBot = m.Author.Bot
	}
	// webhook posts (including our own audit records) carry a synthetic author
	if m.WebhookID != "" {
		out.AuthorBot = true
	}
	for _, a := range m.Attachments {
		if a == nil {
			continue
		}
		out.Attachments = append(out.Attachments, event.Attachment{
			ID:          a.ID,
			Filename:    a.Filename,
			URL:         a.URL,
			ContentType: a.ContentType,
			Size:        a.Size,
		})
	}
	for _, s := range m.StickerItems {
		if s != nil {
			out.Stickers = append(out.Stickers, s.ID)
		}
	}
	return out
}

func convertMember(m *discordgo.Member) event.Member {
	if m == nil || m.User == nil {
		return event.Member{}
	}
	return event.Member{
		ID:   m.User.ID,
		Name: displayName(m.User, m.Nick),
		Bot:  m.User.Bot,
	}
}

func convertUser(u *discordgo.User) event.Member {
	if u == nil {
		return event.Member{}
	}
	return event.Member{
		ID:   u.ID,
		Name: displayName(u, ""),
		Bot:  u.Bot,
	}
}

func convertVoiceState(v *discordgo.VoiceStateUpdate) event.VoiceStateChanged {
	out := event.VoiceStateChanged{
		GuildID:   v.GuildID,
		MemberID:  v.UserID,
		ChannelID: v.ChannelID,
	}
	if v.BeforeUpdate != nil {
		out.BeforeChannelID = v.BeforeUpdate.ChannelID
	}
	return out
}

// Converts a channel update, which may also carry a slow-mode interval change. The second return is nil when the interval did not change (or the prior state is unknown).
func convertChannelUpdate(c *discordgo.ChannelUpdate) (event.ChannelChanged, *event.ChannelRateLimitChanged) {
	out := event.ChannelChanged{
		GuildID:   c.GuildID,
		ChannelID: c.ID,
		Name:      c.Name,
	}
	if c.BeforeUpdate == nil {
		return out, nil
	}
	out.BeforeName = c.BeforeUpdate.Name
	if c.BeforeUpdate.RateLimitPerUser == c.RateLimitPerUser {
		return out, nil
	}
	return out, &event.ChannelRateLimitChanged{
		GuildID:   c.GuildID,
		ChannelID: c.ID,
		Before:    c.BeforeUpdate.RateLimitPerUser,
		After:     c.RateLimitPerUser,
	}
}

// Shortens s to at most n characters, cutting on grapheme boundaries so flags and combined emoji stay intact.
func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	var b strings.Builder
	count := 0
	gr := uniseg.NewGraphemes(s)
	for gr.Next() {
		runes := gr.Runes()
		if count+len(runes) > n-1 {
			break
		}
		b.WriteString(gr.Str())
		count += len(runes)
	}
	return b.String() + "…"
}

func embedFromPayload(p *auditlog.Payload) *discordgo.MessageEmbed {
	e := &discordgo.MessageEmbed{
		Title:       p.Title,
		Description: p.Description,
		Color:       p.Color,
	}
	if !p.Timestamp.IsZero() {
		e.Timestamp = p.Timestamp.UTC().Format(time.RFC3339)
	}
	for i, f := range p.Fields {
		if i >= maxEmbedFields {
			break
		}
		val := f.Value
		if val == "" {
			// empty field values are rejected by the API
			val = "-"
		}
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{
			Name:   clip(f.Name, maxEmbedFieldName),
			Value:  clip(val, maxEmbedFieldValue),
			Inline: f.Inline,
		})
	}
	return e
}
