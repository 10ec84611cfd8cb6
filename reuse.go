// reuse.go: Bounded decode-buffer reuse cache for pixcache
//
// Copyright (c) 2025 AGILira
// Series: an AGLIra fragment
// SPDX-License-Identifier: MPL-2.0

package pixcache

import (
	"fmt"
	"image"
	"sync"

	"github.com/gammazero/deque"
)

// slot is one reusable unit of the cache. pending is set while a caller is
// expected to decode into the slot and cleared by Fill or Abort.
type slot struct {
	key     string
	buf     *Buffer
	pending bool
}

// ReuseCache keeps a bounded, insertion-ordered queue of (key, buffer) slots.
// When the queue is full the oldest slot is relabelled for the new key and its
// memory is offered back to the caller as a decode target.
//
// The mutex only guards the slot table. Decoding happens outside of it.
type ReuseCache struct {
	mu     sync.Mutex
	queue  *deque.Deque[*slot]
	index  map[string]*slot
	policy EvictionPolicy
	logger Logger

	hits     int64
	misses   int64
	recycles int64
	fills    int64
	aborts   int64
	releases int64
}

// NewReuseCache creates an empty cache using the eviction policy and logger of config
func NewReuseCache(config CacheConfig) *ReuseCache {
	logger := config.Logger
	if logger == nil {
		logger = nopLogger{}
	}
	return &ReuseCache{
		queue:  deque.New[*slot](),
		index:  make(map[string]*slot),
		policy: policyFor(config.EvictionPolicy),
		logger: logger,
	}
}

// Acquire looks up key with the given working-set capacity.
//
// On a hit it returns the slot's buffer and true; the buffer is nil or not ready
// when the slot still waits for a decode (see Pending). On a miss it returns
// false and either nil (a new slot was created) or a not-ready buffer holding
// the memory of the recycled oldest slot. Capacity may change from call to call; a smaller
// capacity never drops slots, it only recycles one per miss.
func (rc *ReuseCache) Acquire(capacity int, key string) (*Buffer, bool, error) {
	if capacity <= 0 {
		return nil, false, fmt.Errorf("%w: got %d", ErrInvalidCapacity, capacity)
	}

	rc.mu.Lock()
	defer rc.mu.Unlock()

	if s, ok := rc.index[key]; ok {
		rc.hits++
		if rc.policy.PromoteOnHit() {
			rc.moveToBack(s)
		}
		if s.buf == nil || !s.buf.Ready() {
			s.pending = true
		}
		return s.buf, true, nil
	}

	rc.misses++
	if rc.queue.Len() < capacity {
		s := &slot{key: key, pending: true}
		rc.queue.PushBack(s)
		rc.index[key] = s
		rc.logger.Debug("slot allocated", "key", key, "slots", rc.queue.Len())
		return nil, false, nil
	}

	s := rc.queue.PopFront()
	delete(rc.index, s.key)
	evicted := s.key
	s.key = key
	if s.buf != nil {
		if s.pending {
			// The memory belongs to an in-flight decode; never hand it to a second key.
			s.buf.release()
			s.buf = nil
		} else {
			s.buf = s.buf.handOff(key)
		}
	}
	s.pending = true
	rc.queue.PushBack(s)
	rc.index[key] = s
	rc.recycles++

	rc.logger.Debug("slot recycled", "evicted", evicted, "key", key, "reused", s.buf != nil)
	return s.buf, false, nil
}

// Fill associates decoded memory with the slot for key and marks it ready.
// Decoding into the slot's own memory keeps the existing handle; any other
// memory replaces it and the previous handle is released.
func (rc *ReuseCache) Fill(key string, img *image.NRGBA) (*Buffer, error) {
	if img == nil {
		return nil, fmt.Errorf("pixcache: nil image for %q", key)
	}

	rc.mu.Lock()
	defer rc.mu.Unlock()

	s, ok := rc.index[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotResident, key)
	}
	s.pending = false
	rc.fills++

	if s.buf != nil && s.buf.holds(img) {
		s.buf.markReady()
		return s.buf, nil
	}
	if s.buf != nil {
		s.buf.release()
	}
	s.buf = newBuffer(key, img, true)
	return s.buf, nil
}

// Abort clears the in-flight mark for key after a failed decode. The slot
// stays tagged with key and keeps whatever memory it had.
func (rc *ReuseCache) Abort(key string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if s, ok := rc.index[key]; ok && s.pending {
		s.pending = false
		rc.aborts++
	}
}

// Forget marks the buffer for key as stale. The slot and its memory stay
// resident so the next load decodes in place.
func (rc *ReuseCache) Forget(key string) bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	s, ok := rc.index[key]
	if !ok {
		return false
	}
	if s.buf != nil && !s.pending {
		s.buf = s.buf.handOff(key)
	}
	return true
}

// ReleaseAll releases every buffer and empties the cache. Handles issued
// before the call fail with ErrBufferReleased afterwards.
func (rc *ReuseCache) ReleaseAll() {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	n := rc.queue.Len()
	for i := 0; i < n; i++ {
		if s := rc.queue.At(i); s.buf != nil {
			s.buf.release()
			s.buf = nil
		}
	}
	rc.queue.Clear()
	rc.index = make(map[string]*slot)
	if n > 0 {
		rc.releases++
		rc.logger.Info("cache released", "slots", n)
	}
}

// Pending reports whether the slot for key waits for a Fill or Abort
func (rc *ReuseCache) Pending(key string) bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	s, ok := rc.index[key]
	return ok && s.pending
}

// Len returns the number of occupied slots
func (rc *ReuseCache) Len() int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.queue.Len()
}

// Contains reports whether key currently owns a slot
func (rc *ReuseCache) Contains(key string) bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	_, ok := rc.index[key]
	return ok
}

// Keys returns resident keys from oldest to newest
func (rc *ReuseCache) Keys() []string {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	keys := make([]string, 0, rc.queue.Len())
	for i := 0; i < rc.queue.Len(); i++ {
		keys = append(keys, rc.queue.At(i).key)
	}
	return keys
}

// Policy returns the active eviction policy
func (rc *ReuseCache) Policy() EvictionPolicy {
	return rc.policy
}

// Stats returns cache statistics
func (rc *ReuseCache) Stats() CacheStats {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	var resident int64
	for i := 0; i < rc.queue.Len(); i++ {
		if s := rc.queue.At(i); s.buf != nil {
			resident += int64(s.buf.Bytes())
		}
	}

	return CacheStats{
		Slots:         rc.queue.Len(),
		Hits:          rc.hits,
		Misses:        rc.misses,
		Recycles:      rc.recycles,
		Fills:         rc.fills,
		Aborts:        rc.aborts,
		Releases:      rc.releases,
		ResidentBytes: resident,
	}
}

// moveToBack requeues s as the newest slot. Caller holds rc.mu.
func (rc *ReuseCache) moveToBack(s *slot) {
	n := rc.queue.Len()
	if n == 0 || rc.queue.Back() == s {
		return
	}
	for i := 0; i < n; i++ {
		if rc.queue.At(i) == s {
			rc.queue.Remove(i)
			rc.queue.PushBack(s)
			return
		}
	}
}
