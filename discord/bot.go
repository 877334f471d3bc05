package discord

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/guildwarden/warden/auditlog"
	"github.com/guildwarden/warden/engine"

	"github.com/bwmarrin/discordgo"
	"github.com/puzpuzpuz/xsync/v3"
)

const webhookName = "warden audit log"

const moderatorPerms = discordgo.PermissionAdministrator |
	discordgo.PermissionManageGuild |
	discordgo.PermissionManageMessages |
	discordgo.PermissionKickMembers |
	discordgo.PermissionBanMembers |
	discordgo.PermissionModerateMembers

// Bot implements the engine's platform operations and the audit log's webhook operations on top of a discordgo session. Reads prefer the session state cache, falling back to REST.
type Bot struct {
	Session *discordgo.Session
	Logger  *slog.Logger

	// role names by role ID, for rename records; the gateway does not send the prior name
	roleNames *xsync.MapOf[string, string]
}

var _ engine.Platform = (*Bot)(nil)
var _ auditlog.WebhookClient = (*Bot)(nil)
var _ auditlog.ChannelChecker = (*Bot)(nil)

func NewBot(s *discordgo.Session, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		Session:   s,
		Logger:    logger.With("component", "discord"),
		roleNames: xsync.NewMapOf[string, string](),
	}
}

func (b *Bot) selfID() string {
	if b.Session.State != nil && b.Session.State.User != nil {
		return b.Session.State.User.ID
	}
	return ""
}

func (b *Bot) DeleteMessage(ctx context.Context, guildID, channelID, messageID string) error {
	err := b.Session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx))
	if isNotFound(err) {
		return nil
	}
	return err
}

func (b *Bot) SendMessage(ctx context.Context, channelID, content string) (string, error) {
	m, err := b.Session.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return m.ID, nil
}

func (b *Bot) channel(ctx context.Context, channelID string) (*discordgo.Channel, error) {
	if ch, err := b.Session.State.Channel(channelID); err == nil {
		return ch, nil
	}
	return b.Session.Channel(channelID, discordgo.WithContext(ctx))
}

func (b *Bot) ChannelRateLimit(ctx context.Context, guildID, channelID string) (int, error) {
	ch, err := b.channel(ctx, channelID)
	if err != nil {
		return 0, fmt.Errorf("fetching channel: %w", err)
	}
	return ch.RateLimitPerUser, nil
}

func (b *Bot) SetChannelRateLimit(ctx context.Context, guildID, channelID string, seconds int) error {
	_, err := b.Session.ChannelEdit(channelID, &discordgo.ChannelEdit{RateLimitPerUser: &seconds}, discordgo.WithContext(ctx))
	return err
}

func (b *Bot) CanManageMessages(ctx context.Context, guildID, channelID string) bool {
	self := b.selfID()
	perms, err := b.Session.State.UserChannelPermissions(self, channelID)
	if err != nil {
		perms, err = b.Session.UserChannelPermissions(self, channelID, discordgo.WithContext(ctx))
		if err != nil {
			b.Logger.Warn("failed to compute channel permissions", "err", err, "guild", guildID, "channel", channelID)
			return false
		}
	}
	return perms&discordgo.PermissionManageMessages != 0
}

func (b *Bot) guild(ctx context.Context, guildID string) (*discordgo.Guild, error) {
	if g, err := b.Session.State.Guild(guildID); err == nil {
		return g, nil
	}
	return b.Session.Guild(guildID, discordgo.WithContext(ctx))
}

func (b *Bot) member(ctx context.Context, guildID, userID string) (*discordgo.Member, error) {
	if m, err := b.Session.State.Member(guildID, userID); err == nil {
		return m, nil
	}
	return b.Session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
}

func (b *Bot) IsModerator(ctx context.Context, guildID, userID string, roles []string) bool {
	g, err := b.guild(ctx, guildID)
	if err != nil {
		b.Logger.Warn("failed to load guild for permission check", "err", err, "guild", guildID)
		// err on the side of not rate limiting
		return true
	}
	return hasModeratorPerms(g, userID, roles)
}

func hasModeratorPerms(g *discordgo.Guild, userID string, roles []string) bool {
	if g.OwnerID == userID {
		return true
	}
	held := map[string]bool{g.ID: true}
	for _, r := range roles {
		held[r] = true
	}
	for _, r := range g.Roles {
		if held[r.ID] && r.Permissions&moderatorPerms != 0 {
			return true
		}
	}
	return false
}

func (b *Bot) CanModerate(ctx context.Context, guildID, userID string) bool {
	g, err := b.guild(ctx, guildID)
	if err != nil {
		b.Logger.Warn("failed to load guild for hierarchy check", "err", err, "guild", guildID)
		return false
	}
	self, err := b.member(ctx, guildID, b.selfID())
	if err != nil {
		b.Logger.Warn("failed to load bot member", "err", err, "guild", guildID)
		return false
	}
	target, err := b.member(ctx, guildID, userID)
	if err != nil {
		// left the guild already; nothing to rank against
		return true
	}
	return outranks(g, self.Roles, target.Roles, userID)
}

// Whether a member with actorRoles ranks strictly above the target in the role hierarchy. The guild owner is never outranked.
func outranks(g *discordgo.Guild, actorRoles, targetRoles []string, targetID string) bool {
	if g.OwnerID == targetID {
		return false
	}
	return highestRole(g, actorRoles) > highestRole(g, targetRoles)
}

func highestRole(g *discordgo.Guild, roles []string) int {
	held := map[string]bool{}
	for _, r := range roles {
		held[r] = true
	}
	top := 0
	for _, r := range g.Roles {
		if held[r.ID] && r.Position > top {
			top = r.Position
		}
	}
	return top
}

func (b *Bot) Execute(ctx context.Context, ep auditlog.Endpoint, p *auditlog.Payload) error {
	params := &discordgo.WebhookParams{
		Username: webhookName,
		Embeds:   []*discordgo.MessageEmbed{embedFromPayload(p)},
		AllowedMentions: &discordgo.MessageAllowedMentions{
			Parse: []discordgo.AllowedMentionType{},
		},
	}
	_, err := b.Session.WebhookExecute(ep.ID, ep.Token, false, params, discordgo.WithContext(ctx))
	if isNotFound(err) {
		return fmt.Errorf("%w: %s", auditlog.ErrEndpointNotFound, ep.ID)
	}
	return err
}

func (b *Bot) Create(ctx context.Context, guildID, channelID string) (auditlog.Endpoint, error) {
	wh, err := b.Session.WebhookCreate(channelID, webhookName, "", discordgo.WithContext(ctx))
	if err != nil {
		return auditlog.Endpoint{}, err
	}
	return auditlog.Endpoint{ID: wh.ID, Token: wh.Token, ChannelID: wh.ChannelID}, nil
}

func (b *Bot) Lookup(ctx context.Context, endpointID string) (auditlog.Endpoint, error) {
	wh, err := b.Session.Webhook(endpointID, discordgo.WithContext(ctx))
	if isNotFound(err) {
		return auditlog.Endpoint{}, fmt.Errorf("%w: %s", auditlog.ErrEndpointNotFound, endpointID)
	}
	if err != nil {
		return auditlog.Endpoint{}, err
	}
	if wh.Token == "" {
		// only webhooks created by this application expose their token
		return auditlog.Endpoint{}, fmt.Errorf("%w: no token for %s", auditlog.ErrEndpointNotFound, endpointID)
	}
	return auditlog.Endpoint{ID: wh.ID, Token: wh.Token, ChannelID: wh.ChannelID}, nil
}

func (b *Bot) ChannelExists(ctx context.Context, guildID, channelID string) (bool, error) {
	if ch, err := b.Session.State.Channel(channelID); err == nil {
		return ch.GuildID == guildID, nil
	}
	ch, err := b.Session.Channel(channelID, discordgo.WithContext(ctx))
	if isNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return ch.GuildID == guildID, nil
}
