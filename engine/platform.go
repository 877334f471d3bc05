package engine

import (
	"context"
)

// Platform is the set of chat platform operations the engine needs. Implemented by the discord package, and by MockPlatform in tests.
type Platform interface {
	DeleteMessage(ctx context.Context, guildID, channelID, messageID string) error
	// Posts a plain text message, returning the new message ID.
	SendMessage(ctx context.Context, channelID, content string) (string, error)
	// Current slow-mode interval of the channel, in seconds.
	ChannelRateLimit(ctx context.Context, guildID, channelID string) (int, error)
	SetChannelRateLimit(ctx context.Context, guildID, channelID string, seconds int) error
	// Whether the bot account can delete other users' messages in the channel.
	CanManageMessages(ctx context.Context, guildID, channelID string) bool
	// Whether the user holds moderation-grade permissions in the guild.
	IsModerator(ctx context.Context, guildID, userID string, roles []string) bool
	// Whether the bot account ranks above the user in the role hierarchy.
	CanModerate(ctx context.Context, guildID, userID string) bool
}
