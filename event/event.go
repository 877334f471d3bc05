// Typed gateway events consumed by the moderation engine.
//
// The platform adapter (see the discord package) converts its native event structs in to these types, so that the rest of the system never depends on a specific chat platform SDK.
package event

import (
	"time"
)

type Attachment struct {
	ID          string
	Filename    string
	URL         string
	ContentType string
	Size        int
}

// Message is the normalized form of a chat message. Values stored in the message cache are treated as immutable.
type Message struct {
	ID          string
	GuildID     string
	ChannelID   string
	AuthorID    string
	AuthorName  string
	AuthorRoles []string
	AuthorBot   bool
	Content     string
	Attachments []Attachment
	// sticker IDs
	Stickers  []string
	CreatedAt time.Time
}

type MessageCreated struct {
	Message Message
}

// Before is nil when the platform did not supply the prior version.
type MessageUpdated struct {
	Before *Message
	After  Message
}

type MessageDeleted struct {
	ID        string
	GuildID   string
	ChannelID string
}

type MessagesBulkDeleted struct {
	IDs       []string
	GuildID   string
	ChannelID string
}

type Member struct {
	ID   string
	Name string
	Bot  bool
}

type MemberJoined struct {
	GuildID  string
	Member   Member
	JoinedAt time.Time
}

type MemberLeft struct {
	GuildID string
	Member  Member
}

type MemberBanned struct {
	GuildID string
	Member  Member
}

type MemberUnbanned struct {
	GuildID string
	Member  Member
}

type RoleChanged struct {
	GuildID string
	RoleID  string
	Name    string
	// empty for creation events
	BeforeName string
	Deleted    bool
}

type ChannelChanged struct {
	GuildID    string
	ChannelID  string
	Name       string
	BeforeName string
	Created    bool
	Deleted    bool
}

// Slow-mode interval change on a channel, in seconds.
type ChannelRateLimitChanged struct {
	GuildID   string
	ChannelID string
	Before    int
	After     int
}

// The bot was removed from a guild, or the guild became unavailable permanently.
type GuildRemoved struct {
	GuildID string
}

// ChannelID is empty when the member disconnected.
type VoiceStateChanged struct {
	GuildID         string
	MemberID        string
	ChannelID       string
	BeforeChannelID string
}
