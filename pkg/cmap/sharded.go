// Package cmap provides a concurrent-safe sharded map.
//
// It uses sharding to reduce lock contention, providing better
// performance than sync.Map for high-concurrency workloads.
package cmap

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/spaolacci/murmur3"
)

// DefaultShardCount is the default number of shards — 23, per the
// instance manager's reference-counted shard-striped map.
const DefaultShardCount = 23

// Map is a concurrent-safe sharded map.
type Map[K comparable, V any] struct {
	shards     []*shard[K, V]
	shardCount uint64
	seed       uint32
}

type shard[K comparable, V any] struct {
	mu    sync.RWMutex
	items map[K]V
}

// New creates a new sharded map with the default shard count.
func New[K comparable, V any]() *Map[K, V] {
	return NewWithShards[K, V](DefaultShardCount)
}

// NewWithShards creates a new sharded map with the specified shard count.
// Any positive count works; it need not be a power of 2.
func NewWithShards[K comparable, V any](shardCount int) *Map[K, V] {
	if shardCount <= 0 {
		shardCount = DefaultShardCount
	}

	m := &Map[K, V]{
		shards:     make([]*shard[K, V], shardCount),
		shardCount: uint64(shardCount),
		seed:       randSeed(),
	}

	for i := 0; i < shardCount; i++ {
		m.shards[i] = &shard[K, V]{
			items: make(map[K]V),
		}
	}

	return m
}

// randSeed draws a per-Map murmur3 seed so two Maps don't shard
// identically-keyed workloads the same way.
func randSeed() uint32 {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0
	}
	return binary.BigEndian.Uint32(buf[:])
}

// getShard returns the shard for a key, hashing it with murmur3 for
// fast, well-distributed sharding across instance addresses (spec §4.8).
func (m *Map[K, V]) getShard(key K) *shard[K, V] {
	idx := m.hash([]byte(fmt.Sprintf("%v", key)))
	return m.shards[idx]
}

// getShardByString returns the shard for a string key (optimized path,
// skipping the fmt.Sprintf conversion getShard needs for generic keys).
func (m *Map[K, V]) getShardByString(key string) *shard[K, V] {
	idx := m.hash([]byte(key))
	return m.shards[idx]
}

func (m *Map[K, V]) hash(data []byte) uint64 {
	h := murmur3.New64WithSeed(m.seed)
	h.Write(data)
	return h.Sum64() % m.shardCount
}

// Get retrieves a value by key.
func (m *Map[K, V]) Get(key K) (V, bool) {
	shard := m.getShard(key)
	shard.mu.RLock()
	defer shard.mu.RUnlock()
	val, ok := shard.items[key]
	return val, ok
}

// Set stores a key-value pair.
func (m *Map[K, V]) Set(key K, value V) {
	shard := m.getShard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	shard.items[key] = value
}

// Delete removes a key.
func (m *Map[K, V]) Delete(key K) {
	shard := m.getShard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	delete(shard.items, key)
}

// Has checks if a key exists.
func (m *Map[K, V]) Has(key K) bool {
	_, ok := m.Get(key)
	return ok
}

// Count returns the total number of items.
func (m *Map[K, V]) Count() int {
	count := 0
	for _, shard := range m.shards {
		shard.mu.RLock()
		count += len(shard.items)
		shard.mu.RUnlock()
	}
	return count
}

// Clear removes all items.
func (m *Map[K, V]) Clear() {
	for _, shard := range m.shards {
		shard.mu.Lock()
		shard.items = make(map[K]V)
		shard.mu.Unlock()
	}
}
