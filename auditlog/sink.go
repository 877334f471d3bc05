package auditlog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/RussellLuo/slidingwindow"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/puzpuzpuz/xsync/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("auditlog")

type SinkConfig struct {
	// upper bound on one Publish, including repair and retry
	Timeout time.Duration
	// endpoint re-creations allowed per guild per hour
	RepairsPerHour int64
	// sustained deliveries per second to a single endpoint
	EndpointRate  rate.Limit
	EndpointBurst int
	// how long a binding (or its absence) is trusted before the store is read again; zero never expires
	BindingTTL time.Duration
}

const maxCachedBindings = 50_000

func DefaultSinkConfig() SinkConfig {
	return SinkConfig{
		Timeout:        30 * time.Second,
		RepairsPerHour: 20,
		EndpointRate:   rate.Limit(2.5),
		EndpointBurst:  5,
		BindingTTL:     time.Minute,
	}
}

// Sink delivers audit records. See Publish and Deliver.
type Sink struct {
	Store    BindingStore
	Webhooks WebhookClient
	Channels ChannelChecker
	Logger   *slog.Logger
	Config   SinkConfig

	// bindings known locally, for BindingTTL; entries with IsActive=false also cache "no binding"
	bindings  *expirable.LRU[bindingKey, Binding]
	endpoints *xsync.MapOf[string, Endpoint]
	pacers    *xsync.MapOf[string, *rate.Limiter]
	budgets   *xsync.MapOf[string, *slidingwindow.Limiter]
	repairs   singleflight.Group
	inflight  sync.WaitGroup
}

func NewSink(store BindingStore, webhooks WebhookClient, channels ChannelChecker, logger *slog.Logger, config SinkConfig) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{
		Store:     store,
		Webhooks:  webhooks,
		Channels:  channels,
		Logger:    logger.With("component", "auditlog"),
		Config:    config,
		bindings:  expirable.NewLRU[bindingKey, Binding](maxCachedBindings, nil, config.BindingTTL),
		endpoints: xsync.NewMapOf[string, Endpoint](),
		pacers:    xsync.NewMapOf[string, *rate.Limiter](),
		budgets:   xsync.NewMapOf[string, *slidingwindow.Limiter](),
	}
}

// Fire-and-forget delivery. Never blocks the caller, and failures (including panics) stay inside the spawned goroutine.
func (s *Sink) Publish(guildID string, cat Category, p *Payload) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer func() {
			if r := recover(); r != nil {
				droppedCount.WithLabelValues(string(cat)).Inc()
				s.Logger.Error("audit publish panic", "err", r, "guild", guildID, "category", cat)
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), s.Config.Timeout)
		defer cancel()
		if err := s.Deliver(ctx, guildID, cat, p); err != nil {
			s.Logger.Error("audit record dropped", "err", err, "guild", guildID, "category", cat)
		}
	}()
}

// Blocks until all in-flight publishes have finished.
func (s *Sink) Wait() {
	s.inflight.Wait()
}

// Synchronous delivery, with at most one endpoint repair and one retry.
//
// A missing binding, or a binding whose channel was deleted, is not an error: the record is simply not delivered (and a stale binding is removed).
func (s *Sink) Deliver(ctx context.Context, guildID string, cat Category, p *Payload) error {
	start := time.Now()
	defer func() {
		deliveryDuration.Observe(time.Since(start).Seconds())
	}()
	ctx, span := tracer.Start(ctx, "Deliver")
	defer span.End()
	span.SetAttributes(attribute.String("guild", guildID), attribute.String("category", string(cat)))

	err := s.deliver(ctx, guildID, cat, p)
	if err != nil {
		droppedCount.WithLabelValues(string(cat)).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (s *Sink) deliver(ctx context.Context, guildID string, cat Category, p *Payload) error {
	b, err := s.binding(ctx, guildID, cat)
	if err != nil {
		return fmt.Errorf("loading audit binding: %w", err)
	}
	if b == nil || !b.IsActive || b.ChannelID == "" {
		return nil
	}

	exists, err := s.Channels.ChannelExists(ctx, guildID, b.ChannelID)
	if err != nil {
		return fmt.Errorf("checking audit channel: %w", err)
	}
	if !exists {
		s.deregister(ctx, *b)
		return nil
	}

	ep, err := s.resolve(ctx, *b)
	if err == nil {
		err = s.execute(ctx, ep, p)
		if err == nil {
			deliveriesCount.WithLabelValues(string(cat)).Inc()
			return nil
		}
	}
	s.Logger.Warn("audit delivery failed, repairing endpoint", "err", err, "guild", guildID, "category", cat, "sink", b.SinkID)

	ep, err = s.repair(ctx, *b)
	if err != nil {
		return fmt.Errorf("repairing audit endpoint: %w", err)
	}
	if err := s.execute(ctx, ep, p); err != nil {
		return fmt.Errorf("delivering audit record after repair: %w", err)
	}
	deliveriesCount.WithLabelValues(string(cat)).Inc()
	return nil
}

func (s *Sink) binding(ctx context.Context, guildID string, cat Category) (*Binding, error) {
	k := bindingKey{GuildID: guildID, Category: cat}
	if b, ok := s.bindings.Get(k); ok {
		return &b, nil
	}
	b, err := s.Store.Get(ctx, guildID, cat)
	if err != nil {
		return nil, err
	}
	if b == nil {
		s.bindings.Add(k, Binding{GuildID: guildID, Category: cat})
		return nil, nil
	}
	s.bindings.Add(k, *b)
	return b, nil
}

// Finds the endpoint for a binding: local registry first, then the token stored with the binding, then an upstream lookup.
func (s *Sink) resolve(ctx context.Context, b Binding) (Endpoint, error) {
	if b.SinkID == "" {
		return Endpoint{}, ErrEndpointNotFound
	}
	if ep, ok := s.endpoints.Load(b.SinkID); ok {
		return ep, nil
	}
	ep := Endpoint{ID: b.SinkID, Token: b.SinkToken, ChannelID: b.ChannelID}
	if ep.Token == "" {
		found, err := s.Webhooks.Lookup(ctx, b.SinkID)
		if err != nil {
			return Endpoint{}, err
		}
		ep = found
	}
	s.endpoints.Store(ep.ID, ep)
	return ep, nil
}

func (s *Sink) execute(ctx context.Context, ep Endpoint, p *Payload) error {
	pacer, _ := s.pacers.LoadOrCompute(ep.ID, func() *rate.Limiter {
		return rate.NewLimiter(s.Config.EndpointRate, s.Config.EndpointBurst)
	})
	if err := pacer.Wait(ctx); err != nil {
		return err
	}
	return s.Webhooks.Execute(ctx, ep, p)
}

// Replaces the binding's endpoint with a freshly created one. The new endpoint is persisted before it is returned for use.
//
// Concurrent repairs of the same binding are coalesced, and a repair which finds the binding already repaired by someone else reuses that endpoint.
func (s *Sink) repair(ctx context.Context, failed Binding) (Endpoint, error) {
	k := bindingKey{GuildID: failed.GuildID, Category: failed.Category}
	flight := string(failed.Category) + "/" + failed.GuildID + "/" + failed.SinkID
	v, err, _ := s.repairs.Do(flight, func() (any, error) {
		if cur, ok := s.bindings.Get(k); ok && cur.IsActive && cur.SinkID != "" && cur.SinkID != failed.SinkID {
			if ep, err := s.resolve(ctx, cur); err == nil {
				return ep, nil
			}
		}
		if !s.allowRepair(failed.GuildID) {
			repairsCount.WithLabelValues("budget").Inc()
			return nil, ErrRepairBudget
		}

		ep, err := s.Webhooks.Create(ctx, failed.GuildID, failed.ChannelID)
		if err != nil {
			repairsCount.WithLabelValues("create-failed").Inc()
			return nil, fmt.Errorf("creating webhook endpoint: %w", err)
		}
		if ep.ChannelID == "" {
			ep.ChannelID = failed.ChannelID
		}
		next := failed
		next.SinkID = ep.ID
		next.SinkToken = ep.Token
		if err := s.Store.Upsert(ctx, next); err != nil {
			repairsCount.WithLabelValues("persist-failed").Inc()
			return nil, fmt.Errorf("persisting repaired binding: %w", err)
		}
		s.bindings.Add(k, next)
		if failed.SinkID != "" {
			s.endpoints.Delete(failed.SinkID)
			s.pacers.Delete(failed.SinkID)
		}
		s.endpoints.Store(ep.ID, ep)
		repairsCount.WithLabelValues("ok").Inc()
		s.Logger.Info("repaired audit endpoint", "guild", failed.GuildID, "category", failed.Category, "old_sink", failed.SinkID, "new_sink", ep.ID)
		return ep, nil
	})
	if err != nil {
		return Endpoint{}, err
	}
	return v.(Endpoint), nil
}

func (s *Sink) allowRepair(guildID string) bool {
	if s.Config.RepairsPerHour <= 0 {
		return true
	}
	lim, _ := s.budgets.LoadOrCompute(guildID, func() *slidingwindow.Limiter {
		l, _ := slidingwindow.NewLimiter(time.Hour, s.Config.RepairsPerHour, func() (slidingwindow.Window, slidingwindow.StopFunc) {
			return slidingwindow.NewLocalWindow()
		})
		return l
	})
	return lim.Allow()
}

// Removes a binding whose output channel is gone, from both the local cache and the store.
func (s *Sink) deregister(ctx context.Context, b Binding) {
	k := bindingKey{GuildID: b.GuildID, Category: b.Category}
	s.bindings.Add(k, Binding{GuildID: b.GuildID, Category: b.Category})
	if b.SinkID != "" {
		s.endpoints.Delete(b.SinkID)
		s.pacers.Delete(b.SinkID)
	}
	if err := s.Store.Delete(ctx, b.GuildID, b.Category); err != nil {
		s.Logger.Warn("failed to delete stale audit binding", "err", err, "guild", b.GuildID, "category", b.Category)
		// forget the negative cache entry, so the next publish retries the cleanup
		s.bindings.Remove(k)
		return
	}
	deregisteredCount.Inc()
	s.Logger.Info("removed audit binding for deleted channel", "guild", b.GuildID, "category", b.Category, "channel", b.ChannelID)
}

// Administrative path: creates or replaces a binding. Endpoint creation is deferred to the first delivery if SinkID is empty.
func (s *Sink) Bind(ctx context.Context, b Binding) error {
	if err := s.Store.Upsert(ctx, b); err != nil {
		return err
	}
	s.bindings.Add(bindingKey{GuildID: b.GuildID, Category: b.Category}, b)
	return nil
}

func (s *Sink) Unbind(ctx context.Context, guildID string, cat Category) error {
	if err := s.Store.Delete(ctx, guildID, cat); err != nil {
		return err
	}
	s.Invalidate(guildID, cat)
	return nil
}

// Drops the locally cached binding, so the next publish re-reads the store.
func (s *Sink) Invalidate(guildID string, cat Category) {
	s.bindings.Remove(bindingKey{GuildID: guildID, Category: cat})
}

// Drops all local state for a guild (eg, the bot left it).
func (s *Sink) ForgetGuild(guildID string) {
	for _, cat := range AllCategories {
		k := bindingKey{GuildID: guildID, Category: cat}
		b, ok := s.bindings.Peek(k)
		if !ok {
			continue
		}
		s.bindings.Remove(k)
		if b.SinkID != "" {
			s.endpoints.Delete(b.SinkID)
			s.pacers.Delete(b.SinkID)
		}
	}
	s.budgets.Delete(guildID)
}
