package memory

import (
	"hash/maphash"
	"sync"
)

const defaultShards = 32

// shardedMap spreads keys over independently locked shards so a sweep holds
// at most one shard lock at a time and lookups on other shards never wait.
type shardedMap[V any] struct {
	seed   maphash.Seed
	shards []shard[V]
}

type shard[V any] struct {
	mu sync.RWMutex
	m  map[string]V
}

func newShardedMap[V any](n int) *shardedMap[V] {
	if n <= 0 {
		n = defaultShards
	}
	sm := &shardedMap[V]{
		seed:   maphash.MakeSeed(),
		shards: make([]shard[V], n),
	}
	for i := range sm.shards {
		sm.shards[i].m = make(map[string]V)
	}
	return sm
}

func (sm *shardedMap[V]) shardFor(key string) *shard[V] {
	return &sm.shards[maphash.String(sm.seed, key)%uint64(len(sm.shards))]
}

func (sm *shardedMap[V]) get(key string) (V, bool) {
	s := sm.shardFor(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	return v, ok
}

func (sm *shardedMap[V]) put(key string, v V) {
	s := sm.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = v
}

// putIfAbsent stores v unless key is present and reports whether it did.
func (sm *shardedMap[V]) putIfAbsent(key string, v V) bool {
	s := sm.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[key]; ok {
		return false
	}
	s.m[key] = v
	return true
}

type op int

const (
	opKeep op = iota
	opStore
	opRemove
)

// update runs fn under the key's shard write lock, making a read, decide and
// write sequence atomic for that key. fn returns the new value and whether to
// keep, store or remove it.
func (sm *shardedMap[V]) update(key string, fn func(cur V, ok bool) (V, op)) {
	s := sm.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.m[key]
	next, action := fn(cur, ok)
	switch action {
	case opStore:
		s.m[key] = next
	case opRemove:
		delete(s.m, key)
	}
}

// deleteFunc removes every entry for which del returns true, one shard at a
// time, and returns the count removed.
func (sm *shardedMap[V]) deleteFunc(del func(V) bool) int {
	var n int
	for i := range sm.shards {
		s := &sm.shards[i]
		s.mu.Lock()
		for k, v := range s.m {
			if del(v) {
				delete(s.m, k)
				n++
			}
		}
		s.mu.Unlock()
	}
	return n
}

func (sm *shardedMap[V]) len() int {
	var n int
	for i := range sm.shards {
		s := &sm.shards[i]
		s.mu.RLock()
		n += len(s.m)
		s.mu.RUnlock()
	}
	return n
}
