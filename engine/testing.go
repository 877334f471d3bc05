package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/guildwarden/warden/auditlog"
	"github.com/guildwarden/warden/countstore"
	"github.com/guildwarden/warden/settings"

	"golang.org/x/time/rate"
)

type SentMessage struct {
	ID        string
	ChannelID string
	Content   string
}

type RateLimitCall struct {
	ChannelID string
	Seconds   int
}

// MockPlatform is an in-memory Platform which records every action.
type MockPlatform struct {
	mu sync.Mutex

	Deleted        []string
	Sent           []SentMessage
	RateLimitCalls []RateLimitCall
	// current slow-mode interval per channel
	RateLimits map[string]int
	Moderators map[string]bool
	// users ranked above the bot
	Unmoderatable map[string]bool
	// channels where the bot cannot delete messages
	NoManage map[string]bool
	// when set, DeleteMessage fails
	DeleteErr error
	// when set, SetChannelRateLimit fails
	RateLimitErr error

	nextID int
}

var _ Platform = (*MockPlatform)(nil)

func NewMockPlatform() *MockPlatform {
	return &MockPlatform{
		RateLimits:    map[string]int{},
		Moderators:    map[string]bool{},
		Unmoderatable: map[string]bool{},
		NoManage:      map[string]bool{},
	}
}

func (p *MockPlatform) DeleteMessage(ctx context.Context, guildID, channelID, messageID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.DeleteErr != nil {
		return p.DeleteErr
	}
	p.Deleted = append(p.Deleted, messageID)
	return nil
}

func (p *MockPlatform) SendMessage(ctx context.Context, channelID, content string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	id := fmt.Sprintf("sent-%d", p.nextID)
	p.Sent = append(p.Sent, SentMessage{ID: id, ChannelID: channelID, Content: content})
	return id, nil
}

func (p *MockPlatform) ChannelRateLimit(ctx context.Context, guildID, channelID string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.RateLimits[channelID], nil
}

func (p *MockPlatform) SetChannelRateLimit(ctx context.Context, guildID, channelID string, seconds int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.RateLimitErr != nil {
		return p.RateLimitErr
	}
	p.RateLimits[channelID] = seconds
	p.RateLimitCalls = append(p.RateLimitCalls, RateLimitCall{ChannelID: channelID, Seconds: seconds})
	return nil
}

func (p *MockPlatform) SetRateLimitErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.RateLimitErr = err
}

func (p *MockPlatform) CanManageMessages(ctx context.Context, guildID, channelID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.NoManage[channelID]
}

func (p *MockPlatform) IsModerator(ctx context.Context, guildID, userID string, roles []string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Moderators[userID]
}

func (p *MockPlatform) CanModerate(ctx context.Context, guildID, userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.Unmoderatable[userID]
}

func (p *MockPlatform) DeletedIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string{}, p.Deleted...)
}

func (p *MockPlatform) SentMessages() []SentMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]SentMessage{}, p.Sent...)
}

func (p *MockPlatform) RateLimitHistory() []RateLimitCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]RateLimitCall{}, p.RateLimitCalls...)
}

// MockWebhooks records delivered audit payloads per endpoint. Every endpoint exists, and every channel exists.
type MockWebhooks struct {
	mu        sync.Mutex
	delivered map[string][]*auditlog.Payload
}

var _ auditlog.WebhookClient = (*MockWebhooks)(nil)
var _ auditlog.ChannelChecker = (*MockWebhooks)(nil)

func NewMockWebhooks() *MockWebhooks {
	return &MockWebhooks{delivered: map[string][]*auditlog.Payload{}}
}

func (w *MockWebhooks) Execute(ctx context.Context, ep auditlog.Endpoint, p *auditlog.Payload) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.delivered[ep.ID] = append(w.delivered[ep.ID], p)
	return nil
}

func (w *MockWebhooks) Create(ctx context.Context, guildID, channelID string) (auditlog.Endpoint, error) {
	return auditlog.Endpoint{ID: "wh-created-" + channelID, Token: "t", ChannelID: channelID}, nil
}

func (w *MockWebhooks) Lookup(ctx context.Context, endpointID string) (auditlog.Endpoint, error) {
	return auditlog.Endpoint{ID: endpointID, Token: "t"}, nil
}

func (w *MockWebhooks) ChannelExists(ctx context.Context, guildID, channelID string) (bool, error) {
	return true, nil
}

// Payloads delivered for a category, given the endpoint naming used by EngineTestFixture.
func (w *MockWebhooks) Payloads(cat auditlog.Category) []*auditlog.Payload {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]*auditlog.Payload{}, w.delivered[FixtureEndpoint(cat)]...)
}

func FixtureEndpoint(cat auditlog.Category) string {
	return "wh-" + string(cat)
}

const FixtureGuild = "g1"

type TestFixture struct {
	Engine   *Engine
	Platform *MockPlatform
	Settings *settings.MemStore
	Counters *countstore.MemCountStore
	Webhooks *MockWebhooks
	Bindings *auditlog.MemBindingStore
}

// Builds an engine on in-memory stores and mocks, with every audit category of FixtureGuild bound to its own endpoint, and short timer settings.
func EngineTestFixture() *TestFixture {
	ctx := context.Background()
	logger := slog.Default()
	platform := NewMockPlatform()
	store := settings.NewMemStore()
	counters := countstore.NewMemCountStore()
	webhooks := NewMockWebhooks()
	bindings := auditlog.NewMemBindingStore()

	sink := auditlog.NewSink(bindings, webhooks, webhooks, logger, auditlog.SinkConfig{
		Timeout:        5 * time.Second,
		RepairsPerHour: 10,
		EndpointRate:   rate.Inf,
		EndpointBurst:  1,
		BindingTTL:     time.Minute,
	})
	for _, cat := range auditlog.AllCategories {
		err := sink.Bind(ctx, auditlog.Binding{
			GuildID:   FixtureGuild,
			Category:  cat,
			ChannelID: "audit-" + string(cat),
			SinkID:    FixtureEndpoint(cat),
			SinkToken: "t",
			IsActive:  true,
		})
		if err != nil {
			panic(err)
		}
	}

	gs := settings.Default(FixtureGuild)
	gs.WordFilters = []string{"spam", "*word"}
	gs.FilterInvites = true
	gs.WarnOnInvite = true
	gs.FilterStickers = true
	gs.Slowmode.Enabled = true
	gs.Slowmode.Interval = 10
	gs.Slowmode.Duration = 100 * time.Millisecond
	if err := store.Upsert(ctx, gs); err != nil {
		panic(err)
	}

	config := DefaultConfig()
	config.NotifyTTL = 50 * time.Millisecond
	config.GreetingWindow = 50 * time.Millisecond
	config.VoiceDebounce = 50 * time.Millisecond

	return &TestFixture{
		Engine:   NewEngine(platform, store, counters, sink, logger, config),
		Platform: platform,
		Settings: store,
		Counters: counters,
		Webhooks: webhooks,
		Bindings: bindings,
	}
}
