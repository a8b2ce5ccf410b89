package cache

import (
	"container/list"
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

// MemoryOptions configures a MemoryBackend.
type MemoryOptions struct {
	// MaxEntries bounds the total entry count across all shards. When it is
	// exceeded the oldest insertion overall is evicted.
	MaxEntries int
	Shards     int
	Clock      clockwork.Clock
}

// MemoryBackend is an in-process Backend. Keys are spread over shards that
// each hold their own lock, so operations on one key are linearizable while
// unrelated keys rarely contend.
type MemoryBackend struct {
	shards []*shard
	clock  clockwork.Clock
	max    int64

	count   atomic.Int64
	seq     atomic.Uint64
	evictMu sync.Mutex
}

type shard struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front is the oldest insertion
}

type memEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
	seq       uint64
}

// NewMemoryBackend returns an empty backend. Zero options fall back to 1000
// entries over 16 shards on the real clock.
func NewMemoryBackend(opts MemoryOptions) *MemoryBackend {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = 1000
	}
	if opts.Shards <= 0 {
		opts.Shards = 16
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	b := &MemoryBackend{shards: make([]*shard, opts.Shards), clock: opts.Clock, max: int64(opts.MaxEntries)}
	for i := range b.shards {
		b.shards[i] = &shard{entries: make(map[string]*list.Element), order: list.New()}
	}
	return b
}

func (b *MemoryBackend) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return b.shards[h.Sum32()%uint32(len(b.shards))]
}

// Get returns the value for key. Expired entries are removed on access.
func (b *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	s := b.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.entries[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	e := el.Value.(*memEntry)
	if !b.clock.Now().Before(e.expiresAt) {
		b.remove(s, el)
		return nil, ErrCacheMiss
	}
	return e.value, nil
}

// Set stores value for ttl. Overwriting a key counts as a new insertion.
func (b *MemoryBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	s := b.shardFor(key)
	s.mu.Lock()
	if el, ok := s.entries[key]; ok {
		b.remove(s, el)
	}
	e := &memEntry{key: key, value: value, expiresAt: b.clock.Now().Add(ttl), seq: b.seq.Add(1)}
	s.entries[key] = s.order.PushBack(e)
	b.count.Add(1)
	s.mu.Unlock()

	for b.count.Load() > b.max {
		b.evictOldest()
	}
	return nil
}

func (b *MemoryBackend) Delete(_ context.Context, key string) error {
	s := b.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.entries[key]; ok {
		b.remove(s, el)
	}
	return nil
}

// remove drops el from s. The caller holds s.mu.
func (b *MemoryBackend) remove(s *shard, el *list.Element) {
	s.order.Remove(el)
	delete(s.entries, el.Value.(*memEntry).key)
	b.count.Add(-1)
}

// evictOldest removes the entry with the lowest insertion sequence. Each
// shard's front is its oldest entry, so only fronts are compared.
func (b *MemoryBackend) evictOldest() {
	b.evictMu.Lock()
	defer b.evictMu.Unlock()

	for b.count.Load() > b.max {
		var victim *shard
		var oldest uint64
		for _, s := range b.shards {
			s.mu.Lock()
			if front := s.order.Front(); front != nil {
				if seq := front.Value.(*memEntry).seq; victim == nil || seq < oldest {
					victim, oldest = s, seq
				}
			}
			s.mu.Unlock()
		}
		if victim == nil {
			return
		}
		victim.mu.Lock()
		// The front may have changed since the scan; only evict what was chosen.
		if front := victim.order.Front(); front != nil && front.Value.(*memEntry).seq == oldest {
			b.remove(victim, front)
		}
		victim.mu.Unlock()
	}
}

// Len counts stored entries, including expired ones not yet evicted.
func (b *MemoryBackend) Len() int {
	n := 0
	for _, s := range b.shards {
		s.mu.Lock()
		n += len(s.entries)
		s.mu.Unlock()
	}
	return n
}

func (b *MemoryBackend) Close() error { return nil }
