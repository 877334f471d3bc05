package auditlog

import (
	"context"
	"sort"

	"github.com/puzpuzpuz/xsync/v3"
)

type bindingKey struct {
	GuildID  string
	Category Category
}

type MemBindingStore struct {
	data *xsync.MapOf[bindingKey, Binding]
}

var _ BindingStore = (*MemBindingStore)(nil)

func NewMemBindingStore() *MemBindingStore {
	return &MemBindingStore{
		data: xsync.NewMapOf[bindingKey, Binding](),
	}
}

func (s *MemBindingStore) Get(ctx context.Context, guildID string, cat Category) (*Binding, error) {
	b, ok := s.data.Load(bindingKey{GuildID: guildID, Category: cat})
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (s *MemBindingStore) Upsert(ctx context.Context, b Binding) error {
	s.data.Store(bindingKey{GuildID: b.GuildID, Category: b.Category}, b)
	return nil
}

func (s *MemBindingStore) Delete(ctx context.Context, guildID string, cat Category) error {
	s.data.Delete(bindingKey{GuildID: guildID, Category: cat})
	return nil
}

func (s *MemBindingStore) List(ctx context.Context, guildID string) ([]Binding, error) {
	out := []Binding{}
	s.data.Range(func(k bindingKey, b Binding) bool {
		if k.GuildID == guildID {
			out = append(out, b)
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}
