package filter

import (
	"path"
	"regexp"
	"slices"
	"strings"

	"github.com/guildwarden/warden/event"
)

var (
	inviteRegex = regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?(?:discord(?:app)?\.com/invite|discord\.gg|discord\.me|discord\.io|dsc\.gg)/[a-z0-9-]+`)
	urlRegex    = regexp.MustCompile(`(?i)\bhttps?://[^\s<>]+`)
)

var imageExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp"}

// Checks whether message text re-parses as a command invocation for the bot. Implemented outside this package by the command layer; PrefixCommandMatcher is a simple stand-in.
type CommandMatcher interface {
	IsCommand(guildID, content string) bool
}

// Matches content which starts with one of the prefixes, optionally followed by one of a known set of command names.
type PrefixCommandMatcher struct {
	Prefixes []string
	// if empty, any word after the prefix is accepted
	Commands []string
}

func (m PrefixCommandMatcher) IsCommand(guildID, content string) bool {
	for _, p := range m.Prefixes {
		if p == "" || !strings.HasPrefix(content, p) {
			continue
		}
		fields := strings.Fields(strings.TrimPrefix(content, p))
		if len(fields) == 0 {
			return false
		}
		if len(m.Commands) == 0 {
			return true
		}
		return slices.Contains(m.Commands, strings.ToLower(fields[0]))
	}
	return false
}

func HasInvite(content string) bool {
	return inviteRegex.MatchString(content)
}

func HasURL(content string) bool {
	return urlRegex.MatchString(content)
}

func isImage(a event.Attachment) bool {
	if strings.HasPrefix(a.ContentType, "image/") {
		return true
	}
	return slices.Contains(imageExtensions, strings.ToLower(path.Ext(a.Filename)))
}

// Computes which content types are present in a message.
func contentTypesOf(msg *event.Message, isCommand bool) ContentType {
	var ct ContentType
	if len(msg.Attachments) > 0 {
		ct |= ContentAttachment
		for _, a := range msg.Attachments {
			if isImage(a) {
				ct |= ContentImage
				break
			}
		}
	}
	if HasURL(msg.Content) {
		ct |= ContentURL
	}
	if HasInvite(msg.Content) {
		ct |= ContentInvite
	}
	if len(msg.Stickers) > 0 {
		ct |= ContentSticker
	}
	if isCommand {
		ct |= ContentCommandOnly
	}
	return ct
}
