// Adapter between a bwmarrin/discordgo session and the moderation engine: gateway events are converted to the event package types, and REST calls back the engine's Platform and the audit log's webhook interfaces.
package discord

import (
	"fmt"
	"log/slog"

	"github.com/guildwarden/warden/pkg/robusthttp"

	"github.com/bwmarrin/discordgo"
)

const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMembers |
	discordgo.IntentGuildModeration |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsMessageContent |
	discordgo.IntentsGuildVoiceStates

// Creates (but does not open) a gateway session. REST calls go through a retrying HTTP client; discordgo's own rate limiter still handles 429 responses.
func NewSession(token string, logger *slog.Logger) (*discordgo.Session, error) {
	if token == "" {
		return nil, fmt.Errorf("discord bot token is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}
	s.Client = robusthttp.NewClient(robusthttp.WithLogger(logger.With("subsystem", "discord-http")))
	s.Identify.Intents = Intents
	s.StateEnabled = true
	// message history lives in the engine's own bounded cache
	s.State.MaxMessageCount = 0
	s.State.TrackVoice = true
	return s, nil
}
