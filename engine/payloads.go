package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/guildwarden/warden/auditlog"
	"github.com/guildwarden/warden/event"
	"github.com/guildwarden/warden/filter"
)

// embed colors
const (
	colorRed    = 0xE74C3C
	colorOrange = 0xE67E22
	colorYellow = 0xF1C40F
	colorGreen  = 0x2ECC71
	colorBlue   = 0x3498DB
	colorGrey   = 0x95A5A6
)

const (
	maxDescription = 4000
	maxFieldValue  = 1000
)

const unavailable = "*content unavailable*"

func mention(userID string) string {
	return "<@" + userID + ">"
}

func channelMention(channelID string) string {
	return "<#" + channelID + ">"
}

func newPayload(title string, color int) *auditlog.Payload {
	return &auditlog.Payload{
		Title:     title,
		Color:     color,
		Timestamp: time.Now().UTC(),
	}
}

func contentOrPlaceholder(msg *event.Message) string {
	if msg == nil {
		return unavailable
	}
	s := strings.TrimSpace(msg.Content)
	if s == "" && len(msg.Attachments) == 0 && len(msg.Stickers) == 0 {
		return "*empty message*"
	}
	if s == "" {
		return "*no text*"
	}
	return truncate(s, maxFieldValue)
}

func addAttachments(p *auditlog.Payload, msg *event.Message) {
	if msg == nil || len(msg.Attachments) == 0 {
		return
	}
	names := make([]string, len(msg.Attachments))
	for i, a := range msg.Attachments {
		names[i] = a.Filename
	}
	p.AddField("Attachments", truncate(strings.Join(names, "\n"), maxFieldValue), false)
}

func messageEditPayload(before, after *event.Message) *auditlog.Payload {
	p := newPayload("Message edited", colorBlue)
	p.Description = fmt.Sprintf("%s edited a message in %s", mention(after.AuthorID), channelMention(after.ChannelID))
	p.AddField("Before", contentOrPlaceholder(before), false)
	p.AddField("After", contentOrPlaceholder(after), false)
	p.AddField("Message ID", after.ID, true)
	return p
}

// Renders a degraded record (no content or author) when the message was never cached or has been evicted.
func messageDeletePayload(evt event.MessageDeleted, msg *event.Message) *auditlog.Payload {
	p := newPayload("Message deleted", colorRed)
	if msg == nil {
		p.Description = fmt.Sprintf("A message was deleted in %s", channelMention(evt.ChannelID))
		p.AddField("Content", unavailable, false)
	} else {
		p.Description = fmt.Sprintf("Message by %s deleted in %s", mention(msg.AuthorID), channelMention(evt.ChannelID))
		p.AddField("Content", contentOrPlaceholder(msg), false)
		addAttachments(p, msg)
		if !msg.CreatedAt.IsZero() {
			p.AddField("Sent", msg.CreatedAt.UTC().Format(time.RFC3339), true)
		}
	}
	p.AddField("Message ID", evt.ID, true)
	return p
}

func bulkDeletePayload(evt event.MessagesBulkDeleted, found []*event.Message) *auditlog.Payload {
	p := newPayload(fmt.Sprintf("%d messages deleted", len(evt.IDs)), colorRed)
	var sb strings.Builder
	fmt.Fprintf(&sb, "Bulk delete in %s\n", channelMention(evt.ChannelID))
	for _, m := range found {
		line := fmt.Sprintf("[%s] %s\n", m.AuthorName, truncate(m.Content, 200))
		if m.AuthorName == "" {
			line = fmt.Sprintf("[%s] %s\n", m.AuthorID, truncate(m.Content, 200))
		}
		if sb.Len()+len(line) > maxDescription {
			sb.WriteString("…\n")
			break
		}
		sb.WriteString(line)
	}
	p.Description = strings.TrimSpace(sb.String())
	if missing := len(evt.IDs) - len(found); missing > 0 {
		p.AddField("Not cached", fmt.Sprintf("%d", missing), true)
	}
	return p
}

func automodDeletePayload(msg *event.Message, outcome filter.Outcome, w warning) *auditlog.Payload {
	p := newPayload("Message removed by filter", colorOrange)
	p.Description = fmt.Sprintf("Message by %s removed in %s", mention(msg.AuthorID), channelMention(msg.ChannelID))
	p.AddField("Reason", outcome.Reason, true)
	p.AddField("Content", contentOrPlaceholder(msg), false)
	addAttachments(p, msg)
	if w.infractions > 0 {
		p.AddField("Infractions", fmt.Sprintf("%d", w.infractions), true)
	}
	if w.warnedToday > 0 {
		p.AddField("Users warned today", fmt.Sprintf("%d", w.warnedToday), true)
	}
	return p
}

// An interval of zero renders the revert record.
func slowmodePayload(channelID, authorID string, interval int, duration time.Duration) *auditlog.Payload {
	if interval == 0 {
		p := newPayload("Slow mode disabled", colorGreen)
		p.Description = fmt.Sprintf("Slow mode in %s was reverted automatically", channelMention(channelID))
		return p
	}
	p := newPayload("Slow mode enabled", colorYellow)
	p.Description = fmt.Sprintf("Slow mode enabled in %s after a burst of messages from %s", channelMention(channelID), mention(authorID))
	p.AddField("Interval", fmt.Sprintf("%ds", interval), true)
	if duration > 0 {
		p.AddField("Reverts after", duration.String(), true)
	}
	return p
}

func memberJoinPayload(evt event.MemberJoined) *auditlog.Payload {
	p := newPayload("Member joined", colorGreen)
	p.Description = fmt.Sprintf("%s (%s)", mention(evt.Member.ID), evt.Member.Name)
	p.AddField("User ID", evt.Member.ID, true)
	if evt.Member.Bot {
		p.AddField("Bot", "yes", true)
	}
	if !evt.JoinedAt.IsZero() {
		p.Timestamp = evt.JoinedAt.UTC()
	}
	return p
}

func memberLeftPayload(evt event.MemberLeft) *auditlog.Payload {
	p := newPayload("Member left", colorGrey)
	p.Description = fmt.Sprintf("%s (%s)", mention(evt.Member.ID), evt.Member.Name)
	p.AddField("User ID", evt.Member.ID, true)
	return p
}

func memberBanPayload(m event.Member, banned bool) *auditlog.Payload {
	title, color := "Member banned", colorRed
	if !banned {
		title, color = "Member unbanned", colorGreen
	}
	p := newPayload(title, color)
	p.Description = fmt.Sprintf("%s (%s)", mention(m.ID), m.Name)
	p.AddField("User ID", m.ID, true)
	return p
}

func roleChangedPayload(evt event.RoleChanged) *auditlog.Payload {
	switch {
	case evt.Deleted:
		p := newPayload("Role deleted", colorRed)
		p.Description = fmt.Sprintf("Role **%s** was deleted", evt.Name)
		p.AddField("Role ID", evt.RoleID, true)
		return p
	case evt.BeforeName == "":
		p := newPayload("Role created", colorGreen)
		p.Description = fmt.Sprintf("Role **%s** was created", evt.Name)
		p.AddField("Role ID", evt.RoleID, true)
		return p
	default:
		p := newPayload("Role updated", colorBlue)
		p.Description = fmt.Sprintf("Role <@&%s> was updated", evt.RoleID)
		if evt.BeforeName != evt.Name {
			p.AddField("Before", evt.BeforeName, true)
			p.AddField("After", evt.Name, true)
		}
		return p
	}
}

func channelChangedPayload(evt event.ChannelChanged) *auditlog.Payload {
	switch {
	case evt.Deleted:
		p := newPayload("Channel deleted", colorRed)
		p.Description = fmt.Sprintf("Channel **#%s** was deleted", evt.Name)
		p.AddField("Channel ID", evt.ChannelID, true)
		return p
	case evt.Created:
		p := newPayload("Channel created", colorGreen)
		p.Description = fmt.Sprintf("Channel %s was created", channelMention(evt.ChannelID))
		return p
	default:
		p := newPayload("Channel updated", colorBlue)
		p.Description = fmt.Sprintf("Channel %s was updated", channelMention(evt.ChannelID))
		if evt.BeforeName != "" && evt.BeforeName != evt.Name {
			p.AddField("Before", evt.BeforeName, true)
			p.AddField("After", evt.Name, true)
		}
		return p
	}
}

func voicePayload(memberID, from, to string) *auditlog.Payload {
	switch {
	case from == "":
		p := newPayload("Joined voice channel", colorGreen)
		p.Description = fmt.Sprintf("%s joined %s", mention(memberID), channelMention(to))
		return p
	case to == "":
		p := newPayload("Left voice channel", colorGrey)
		p.Description = fmt.Sprintf("%s left %s", mention(memberID), channelMention(from))
		return p
	default:
		p := newPayload("Moved voice channel", colorBlue)
		p.Description = fmt.Sprintf("%s moved from %s to %s", mention(memberID), channelMention(from), channelMention(to))
		return p
	}
}
