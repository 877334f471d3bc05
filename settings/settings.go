// Per-guild configuration consumed by the moderation engine.
//
// Settings are written by an administrative command layer (not part of this module) and read here as point-in-time snapshots. Readers must treat a returned *GuildSettings as read-only.
package settings

import (
	"context"
	"slices"
	"time"
)

type Store interface {
	// Returns default settings (never nil) if nothing is stored for the guild.
	Get(ctx context.Context, guildID string) (*GuildSettings, error)
	Upsert(ctx context.Context, gs *GuildSettings) error
	Delete(ctx context.Context, guildID string) error
}

// IgnoreSet lists channels, users and roles exempt from content filters and slow-mode escalation.
type IgnoreSet struct {
	Channels []string `json:"channels,omitempty"`
	Users    []string `json:"users,omitempty"`
	Roles    []string `json:"roles,omitempty"`
}

func (s IgnoreSet) HasChannel(channelID string) bool {
	return slices.Contains(s.Channels, channelID)
}

func (s IgnoreSet) HasUser(userID string) bool {
	return slices.Contains(s.Users, userID)
}

func (s IgnoreSet) HasAnyRole(roles []string) bool {
	for _, r := range roles {
		if slices.Contains(s.Roles, r) {
			return true
		}
	}
	return false
}

// Exempts returns true if the channel, user, or any of the roles are ignored.
func (s IgnoreSet) Exempts(channelID, userID string, roles []string) bool {
	return s.HasChannel(channelID) || s.HasUser(userID) || s.HasAnyRole(roles)
}

type SlowmodeSettings struct {
	Enabled bool `json:"enabled"`
	// number of messages by a single author, inside Window, which triggers slow mode
	Threshold int           `json:"threshold"`
	Window    time.Duration `json:"window"`
	// slow mode interval applied to the channel, in seconds
	Interval int `json:"interval"`
	// how long slow mode stays on; zero means it is never reverted automatically
	Duration time.Duration `json:"duration"`
}

type NotificationSettings struct {
	ChannelID string `json:"channel_id,omitempty"`
	// pongo2 template; see the aggregate package for available variables. Empty means the built-in default.
	Template string `json:"template,omitempty"`
}

func (n NotificationSettings) Enabled() bool {
	return n.ChannelID != ""
}

type GuildSettings struct {
	GuildID string    `json:"guild_id"`
	Ignore  IgnoreSet `json:"ignore"`

	// raw patterns, with optional leading/trailing "*" wildcards
	WordFilters    []string `json:"word_filters,omitempty"`
	FilterInvites  bool     `json:"filter_invites"`
	WarnOnInvite   bool     `json:"warn_on_invite"`
	FilterStickers bool     `json:"filter_stickers"`
	// channel ID to list of required content type names (eg, "image", "url")
	ChannelContent map[string][]string `json:"channel_content,omitempty"`

	Slowmode SlowmodeSettings `json:"slowmode"`

	Greeting NotificationSettings `json:"greeting"`
	Farewell NotificationSettings `json:"farewell"`
}

func Default(guildID string) *GuildSettings {
	return &GuildSettings{
		GuildID: guildID,
		Slowmode: SlowmodeSettings{
			Enabled:   false,
			Threshold: 5,
			Window:    10 * time.Second,
			Interval:  5,
			Duration:  5 * time.Minute,
		},
	}
}
