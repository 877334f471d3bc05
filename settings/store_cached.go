package settings

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/guildwarden/warden/cachestore"
)

const cacheName = "guild-settings"

// CachedStore is a read-through cache in front of another Store. Settings are cached as JSON strings, so the same code works with both in-process and redis caches.
type CachedStore struct {
	Inner  Store
	Cache  cachestore.CacheStore
	Logger *slog.Logger
}

var _ Store = (*CachedStore)(nil)

func (s *CachedStore) Get(ctx context.Context, guildID string) (*GuildSettings, error) {
	raw, err := s.Cache.Get(ctx, cacheName, guildID)
	if err != nil {
		s.Logger.Warn("reading settings cache", "guild", guildID, "err", err)
	} else if raw != "" {
		var gs GuildSettings
		if err := json.Unmarshal([]byte(raw), &gs); err == nil {
			return &gs, nil
		}
		s.Logger.Warn("discarding malformed cached settings", "guild", guildID)
	}

	gs, err := s.Inner.Get(ctx, guildID)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(gs)
	if err != nil {
		return nil, err
	}
	if err := s.Cache.Set(ctx, cacheName, guildID, string(b)); err != nil {
		s.Logger.Warn("writing settings cache", "guild", guildID, "err", err)
	}
	return gs, nil
}

func (s *CachedStore) Upsert(ctx context.Context, gs *GuildSettings) error {
	if err := s.Inner.Upsert(ctx, gs); err != nil {
		return err
	}
	return s.Cache.Purge(ctx, cacheName, gs.GuildID)
}

func (s *CachedStore) Delete(ctx context.Context, guildID string) error {
	if err := s.Inner.Delete(ctx, guildID); err != nil {
		return err
	}
	return s.Cache.Purge(ctx, cacheName, guildID)
}
