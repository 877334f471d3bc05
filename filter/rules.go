package filter

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/guildwarden/warden/keyword"
	"github.com/guildwarden/warden/settings"
)

var ErrMalformedRule = errors.New("malformed filter rule")

// Bit set of message content types. A channel content rule lists the types a message must have at least one of.
type ContentType uint8

const (
	ContentAttachment ContentType = 1 << iota
	ContentURL
	ContentImage
	ContentInvite
	ContentSticker
	ContentCommandOnly
)

var contentTypeNames = map[string]ContentType{
	"attachment": ContentAttachment,
	"url":        ContentURL,
	"image":      ContentImage,
	"invite":     ContentInvite,
	"sticker":    ContentSticker,
	"command":    ContentCommandOnly,
}

func ParseContentType(name string) (ContentType, error) {
	ct, ok := contentTypeNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("%w: unknown content type %q", ErrMalformedRule, name)
	}
	return ct, nil
}

func (ct ContentType) Has(other ContentType) bool {
	return ct&other != 0
}

func (ct ContentType) String() string {
	names := []string{}
	for _, n := range []string{"attachment", "url", "image", "invite", "sticker", "command"} {
		if ct.Has(contentTypeNames[n]) {
			names = append(names, n)
		}
	}
	return strings.Join(names, ", ")
}

type WordRule struct {
	// as configured, eg "*word"
	Raw     string
	Pattern string
	Kind    keyword.MatchKind
}

func ParseWordRule(raw string) (WordRule, error) {
	if strings.ContainsAny(strings.TrimSpace(raw), " \t\n") {
		return WordRule{}, fmt.Errorf("%w: word pattern contains whitespace: %q", ErrMalformedRule, raw)
	}
	pattern, kind := keyword.ParsePattern(raw)
	if pattern == "" {
		return WordRule{}, fmt.Errorf("%w: empty word pattern: %q", ErrMalformedRule, raw)
	}
	return WordRule{
		Raw:     strings.TrimSpace(raw),
		Pattern: pattern,
		Kind:    kind,
	}, nil
}

func (r WordRule) Matches(tokens []string) bool {
	return keyword.MatchAny(tokens, r.Pattern, r.Kind)
}

type InviteRule struct {
	WarnAuthor bool
}

type StickerRule struct{}

type ContentTypeRule struct {
	Required ContentType
}

// RuleSet is a compiled, read-only snapshot of a guild's filter configuration.
type RuleSet struct {
	Words   []WordRule
	Invite  *InviteRule
	Sticker *StickerRule
	// keyed by channel ID
	ContentTypes map[string]ContentTypeRule
}

// Reports every malformed rule in the settings, joined. Compile tolerates the same errors by skipping the rules.
func Validate(gs *settings.GuildSettings) error {
	var errs []error
	for _, raw := range gs.WordFilters {
		if _, err := ParseWordRule(raw); err != nil {
			errs = append(errs, err)
		}
	}
	for _, names := range gs.ChannelContent {
		for _, n := range names {
			if _, err := ParseContentType(n); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Builds a RuleSet from guild settings. Malformed individual rules are logged and skipped; the rest of the rules still apply.
func Compile(gs *settings.GuildSettings, logger *slog.Logger) *RuleSet {
	if logger == nil {
		logger = slog.Default()
	}
	rs := &RuleSet{
		ContentTypes: make(map[string]ContentTypeRule),
	}
	if gs == nil {
		return rs
	}
	for _, raw := range gs.WordFilters {
		wr, err := ParseWordRule(raw)
		if err != nil {
			logger.Warn("skipping word filter rule", "guild", gs.GuildID, "err", err)
			continue
		}
		rs.Words = append(rs.Words, wr)
	}
	if gs.FilterInvites {
		rs.Invite = &InviteRule{WarnAuthor: gs.WarnOnInvite}
	}
	if gs.FilterStickers {
		rs.Sticker = &StickerRule{}
	}
	for channelID, names := range gs.ChannelContent {
		var req ContentType
		for _, n := range names {
			ct, err := ParseContentType(n)
			if err != nil {
				logger.Warn("skipping channel content type", "guild", gs.GuildID, "channel", channelID, "err", err)
				continue
			}
			req |= ct
		}
		if req != 0 {
			rs.ContentTypes[channelID] = ContentTypeRule{Required: req}
		}
	}
	return rs
}
