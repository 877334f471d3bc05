// Delivery of audit records to per-guild, per-category webhook endpoints.
//
// Each (guild, category) pair is bound to an output channel and a webhook endpoint on that channel. Endpoints can disappear at any time (deleted by a guild admin), so delivery failures are repaired by creating a fresh endpoint on the same channel and retrying once.
package auditlog

import (
	"context"
	"errors"
	"time"
)

type Category string

const (
	CategoryMessageEdit       Category = "message_edit"
	CategoryMessageDelete     Category = "message_delete"
	CategoryMessageBulkDelete Category = "message_bulk_delete"
	CategoryMemberJoin        Category = "member_join"
	CategoryMemberLeave       Category = "member_leave"
	CategoryMemberBan         Category = "member_ban"
	CategoryMemberUnban       Category = "member_unban"
	CategoryRoleUpdate        Category = "role_update"
	CategoryChannelUpdate     Category = "channel_update"
	CategoryVoice             Category = "voice"
	CategoryAutomod           Category = "automod"
)

var AllCategories = []Category{
	CategoryMessageEdit,
	CategoryMessageDelete,
	CategoryMessageBulkDelete,
	CategoryMemberJoin,
	CategoryMemberLeave,
	CategoryMemberBan,
	CategoryMemberUnban,
	CategoryRoleUpdate,
	CategoryChannelUpdate,
	CategoryVoice,
	CategoryAutomod,
}

// Returned by WebhookClient implementations when an endpoint no longer exists upstream.
var ErrEndpointNotFound = errors.New("webhook endpoint not found")

var ErrRepairBudget = errors.New("webhook repair budget exhausted for guild")

// Binding is the persisted mapping from (guild, category) to an output channel and its webhook endpoint.
type Binding struct {
	GuildID   string
	Category  Category
	ChannelID string
	SinkID    string
	SinkToken string
	IsActive  bool
}

type BindingStore interface {
	// Returns nil (and no error) if there is no binding.
	Get(ctx context.Context, guildID string, cat Category) (*Binding, error)
	// Idempotent insert-or-replace keyed by (guild, category).
	Upsert(ctx context.Context, b Binding) error
	Delete(ctx context.Context, guildID string, cat Category) error
	List(ctx context.Context, guildID string) ([]Binding, error)
}

type Endpoint struct {
	ID        string
	Token     string
	ChannelID string
}

type WebhookClient interface {
	Execute(ctx context.Context, ep Endpoint, p *Payload) error
	// Creates a new endpoint posting in to the given channel.
	Create(ctx context.Context, guildID, channelID string) (Endpoint, error)
	// Fetches an existing endpoint by ID; returns ErrEndpointNotFound if it is gone.
	Lookup(ctx context.Context, endpointID string) (Endpoint, error)
}

type ChannelChecker interface {
	ChannelExists(ctx context.Context, guildID, channelID string) (bool, error)
}

type Field struct {
	Name   string
	Value  string
	Inline bool
}

// Payload is a rendered audit record. Presentation (embeds, colors) is decided by the WebhookClient implementation.
type Payload struct {
	Title       string
	Description string
	Color       int
	Fields      []Field
	Timestamp   time.Time
}

func (p *Payload) AddField(name, value string, inline bool) *Payload {
	p.Fields = append(p.Fields, Field{Name: name, Value: value, Inline: inline})
	return p
}
