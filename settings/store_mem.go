package settings

import (
	"context"

	"github.com/puzpuzpuz/xsync/v3"
)

type MemStore struct {
	data *xsync.MapOf[string, *GuildSettings]
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		data: xsync.NewMapOf[string, *GuildSettings](),
	}
}

func (s *MemStore) Get(ctx context.Context, guildID string) (*GuildSettings, error) {
	gs, ok := s.data.Load(guildID)
	if !ok {
		return Default(guildID), nil
	}
	return gs, nil
}

// Stores a copy; later mutation of the argument does not affect readers.
func (s *MemStore) Upsert(ctx context.Context, gs *GuildSettings) error {
	cp := *gs
	s.data.Store(gs.GuildID, &cp)
	return nil
}

func (s *MemStore) Delete(ctx context.Context, guildID string) error {
	s.data.Delete(guildID)
	return nil
}
