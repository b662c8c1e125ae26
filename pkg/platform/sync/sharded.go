// Package sync provides keyed locking for in-process critical sections.
package sync

import (
	"hash/fnv"
	"sync"
)

const shardCount = 64

// KeyedMutex serializes callers that share a key while letting unrelated keys
// proceed. Keys are hashed onto a fixed set of shards, so two keys may share
// a shard and briefly wait on each other.
type KeyedMutex struct {
	shards [shardCount]sync.Mutex
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{}
}

func (m *KeyedMutex) Lock(key string)   { m.shards[shardFor(key)].Lock() }
func (m *KeyedMutex) Unlock(key string) { m.shards[shardFor(key)].Unlock() }

// With runs fn while holding the lock for key.
func (m *KeyedMutex) With(key string, fn func() error) error {
	m.Lock(key)
	defer m.Unlock(key)
	return fn()
}

func shardFor(key string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return h.Sum32() % shardCount
}
