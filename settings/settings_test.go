package settings

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/guildwarden/warden/cachestore"
	"github.com/guildwarden/warden/internal/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIgnoreSet(t *testing.T) {
	assert := assert.New(t)

	ign := IgnoreSet{
		Channels: []string{"c1"},
		Users:    []string{"u1"},
		Roles:    []string{"r1", "r2"},
	}
	assert.True(ign.Exempts("c1", "u9", nil))
	assert.True(ign.Exempts("c9", "u1", nil))
	assert.True(ign.Exempts("c9", "u9", []string{"r0", "r2"}))
	assert.False(ign.Exempts("c9", "u9", []string{"r0"}))
	assert.False(IgnoreSet{}.Exempts("c1", "u1", []string{"r1"}))
}

func testStore(t *testing.T, s Store) {
	assert := assert.New(t)
	ctx := context.Background()

	gs, err := s.Get(ctx, "g1")
	assert.NoError(err)
	assert.Equal("g1", gs.GuildID)
	assert.Equal(5, gs.Slowmode.Threshold)

	gs = Default("g1")
	gs.WordFilters = []string{"spam", "*word"}
	gs.Ignore.Users = []string{"u1"}
	gs.ChannelContent = map[string][]string{"c1": {"image"}}
	gs.Slowmode.Window = 30 * time.Second
	assert.NoError(s.Upsert(ctx, gs))

	// upsert twice is fine
	gs.FilterInvites = true
	assert.NoError(s.Upsert(ctx, gs))

	out, err := s.Get(ctx, "g1")
	assert.NoError(err)
	assert.Equal([]string{"spam", "*word"}, out.WordFilters)
	assert.Equal([]string{"u1"}, out.Ignore.Users)
	assert.Equal([]string{"image"}, out.ChannelContent["c1"])
	assert.Equal(30*time.Second, out.Slowmode.Window)
	assert.True(out.FilterInvites)

	assert.NoError(s.Delete(ctx, "g1"))
	out, err = s.Get(ctx, "g1")
	assert.NoError(err)
	assert.Empty(out.WordFilters)
}

func TestMemStore(t *testing.T) {
	testStore(t, NewMemStore())
}

func TestGormStore(t *testing.T) {
	db, err := database.Open("sqlite://:memory:", 1)
	require.NoError(t, err)
	s, err := NewGormStore(db)
	require.NoError(t, err)
	testStore(t, s)
}

func TestCachedStore(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	inner := NewMemStore()
	s := &CachedStore{
		Inner:  inner,
		Cache:  cachestore.NewMemCacheStore(100, time.Hour),
		Logger: slog.Default(),
	}
	testStore(t, s)

	gs := Default("g2")
	gs.WordFilters = []string{"one"}
	assert.NoError(s.Upsert(ctx, gs))
	out, err := s.Get(ctx, "g2")
	assert.NoError(err)
	assert.Equal([]string{"one"}, out.WordFilters)

	// a write that bypasses the cache is not visible until purge
	gs2 := Default("g2")
	gs2.WordFilters = []string{"two"}
	assert.NoError(inner.Upsert(ctx, gs2))
	out, err = s.Get(ctx, "g2")
	assert.NoError(err)
	assert.Equal([]string{"one"}, out.WordFilters)

	assert.NoError(s.Upsert(ctx, gs2))
	out, err = s.Get(ctx, "g2")
	assert.NoError(err)
	assert.Equal([]string{"two"}, out.WordFilters)
}
