// Content filters for chat messages: word lists, invite links, stickers, and per-channel content type requirements.
package filter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/guildwarden/warden/event"
	"github.com/guildwarden/warden/keyword"
	"github.com/guildwarden/warden/settings"
)

type Verdict int

const (
	NotFiltered Verdict = iota
	Deleted
	DeletedWithNotification
)

func (v Verdict) String() string {
	switch v {
	case NotFiltered:
		return "not-filtered"
	case Deleted:
		return "deleted"
	case DeletedWithNotification:
		return "deleted-with-notification"
	default:
		return "unknown"
	}
}

const (
	ReasonInvite      = "invite"
	ReasonSticker     = "sticker"
	ReasonContentType = "content-type"
)

type Outcome struct {
	Verdict Verdict
	// for word rules, the configured pattern which matched
	Reason string
	// only set for DeletedWithNotification
	NotifyText string
	WarnAuthor bool
}

func (o Outcome) IsDeleted() bool {
	return o.Verdict != NotFiltered
}

// Reports whether the bot account is able to delete messages in a channel.
type PermissionChecker interface {
	CanManageMessages(ctx context.Context, guildID, channelID string) bool
}

type Engine struct {
	Logger *slog.Logger
	// optional; nil means the bot is assumed to have permission
	Perms PermissionChecker
	// optional; nil means no content is treated as a command
	Commands CommandMatcher
}

func (e *Engine) isCommand(msg *event.Message) bool {
	if e.Commands == nil {
		return false
	}
	return e.Commands.IsCommand(msg.GuildID, msg.Content)
}

// Evaluates rules in fixed precedence and stops at the first rule which deletes the message.
func (e *Engine) Evaluate(ctx context.Context, msg *event.Message, rules *RuleSet, ignore settings.IgnoreSet) Outcome {
	if msg == nil || rules == nil {
		return Outcome{Verdict: NotFiltered}
	}
	if ignore.Exempts(msg.ChannelID, msg.AuthorID, msg.AuthorRoles) {
		return Outcome{Verdict: NotFiltered}
	}
	if e.Perms != nil && !e.Perms.CanManageMessages(ctx, msg.GuildID, msg.ChannelID) {
		return Outcome{Verdict: NotFiltered}
	}

	// computed at most once, and only if some rule needs it
	var cmdChecked, cmd bool
	isCommand := func() bool {
		if !cmdChecked {
			cmd = e.isCommand(msg)
			cmdChecked = true
		}
		return cmd
	}

	if len(rules.Words) > 0 {
		tokens := keyword.TokenizeText(msg.Content)
		for _, wr := range rules.Words {
			if !wr.Matches(tokens) {
				continue
			}
			if isCommand() {
				break
			}
			return Outcome{Verdict: Deleted, Reason: wr.Raw}
		}
	}

	if rules.Invite != nil && HasInvite(msg.Content) {
		return Outcome{
			Verdict:    DeletedWithNotification,
			Reason:     ReasonInvite,
			NotifyText: "Invite links are not allowed here.",
			WarnAuthor: rules.Invite.WarnAuthor,
		}
	}

	if rules.Sticker != nil && len(msg.Stickers) > 0 {
		return Outcome{
			Verdict:    DeletedWithNotification,
			Reason:     ReasonSticker,
			NotifyText: "Stickers are not allowed here.",
		}
	}

	if ctr, ok := rules.ContentTypes[msg.ChannelID]; ok && ctr.Required != 0 {
		present := contentTypesOf(msg, isCommand())
		if !present.Has(ctr.Required) {
			return Outcome{
				Verdict:    DeletedWithNotification,
				Reason:     ReasonContentType,
				NotifyText: fmt.Sprintf("This channel only allows messages with: %s.", ctr.Required),
			}
		}
	}

	return Outcome{Verdict: NotFiltered}
}
