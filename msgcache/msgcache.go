package msgcache

import (
	"sync/atomic"

	"github.com/guildwarden/warden/event"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/puzpuzpuz/xsync/v3"
)

const DefaultCapacity = 1_000

// Cache holds a bounded bucket of recently seen messages for every guild.
//
// Buckets are created lazily on first use. The cache is best-effort: a missing entry means there is no content available for an audit record, never an error.
type Cache struct {
	capacity atomic.Int64
	buckets  *xsync.MapOf[string, *Bucket]
}

func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	c := &Cache{
		buckets: xsync.NewMapOf[string, *Bucket](),
	}
	c.capacity.Store(int64(capacity))
	return c
}

// Returns the bucket for the given guild, creating it if needed.
func (c *Cache) Guild(guildID string) *Bucket {
	b, _ := c.buckets.LoadOrCompute(guildID, func() *Bucket {
		return newBucket(int(c.capacity.Load()))
	})
	return b
}

// Applies a new capacity to all existing and future buckets. Shrinking drops the oldest entries.
func (c *Cache) Resize(capacity int) {
	if capacity <= 0 {
		return
	}
	c.capacity.Store(int64(capacity))
	c.buckets.Range(func(_ string, b *Bucket) bool {
		b.data.Resize(capacity)
		return true
	})
}

func (c *Cache) Capacity() int {
	return int(c.capacity.Load())
}

// Discards the entire bucket for a guild (eg, when the bot is removed from it).
func (c *Cache) DropGuild(guildID string) {
	c.buckets.Delete(guildID)
}

func (c *Cache) Guilds() int {
	return c.buckets.Size()
}

// Bucket is a per-guild, fixed-capacity message store with insertion-order (FIFO) eviction.
type Bucket struct {
	data *lru.Cache[string, *event.Message]
}

func newBucket(capacity int) *Bucket {
	// only errors on non-positive size, which New() already guards against
	data, err := lru.NewWithEvict[string, *event.Message](capacity, func(_ string, _ *event.Message) {
		cacheEvictions.Inc()
	})
	if err != nil {
		panic(err)
	}
	return &Bucket{data: data}
}

// Adds (or replaces) a message. Replacing counts as a fresh insertion for eviction purposes.
func (b *Bucket) Add(msg *event.Message) {
	if msg == nil {
		return
	}
	b.data.Add(msg.ID, msg)
}

// Reads never update recency, so eviction order stays the order of insertion.
func (b *Bucket) TryGet(id string) (*event.Message, bool) {
	msg, ok := b.data.Peek(id)
	if ok {
		cacheHits.Inc()
	} else {
		cacheMisses.Inc()
	}
	return msg, ok
}

func (b *Bucket) Remove(id string) {
	b.data.Remove(id)
}

// Removes every message matching the predicate, returning the number removed.
//
// Entries added concurrently with the scan may or may not be considered.
func (b *Bucket) RemoveWhere(pred func(msg *event.Message) bool) int {
	n := 0
	for _, k := range b.data.Keys() {
		msg, ok := b.data.Peek(k)
		if !ok {
			continue
		}
		if pred(msg) && b.data.Remove(k) {
			n++
		}
	}
	return n
}

func (b *Bucket) Len() int {
	return b.data.Len()
}

// Message IDs from oldest to newest.
func (b *Bucket) Keys() []string {
	return b.data.Keys()
}
