package services

import (
	"sort"
	"sync"
)

// keyedLocks serializes mutations that touch overlapping aggregation
// neighborhoods. Locks are always taken in ascending key order so two
// writers touching the same pair of contacts cannot deadlock.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[int64]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{locks: make(map[int64]*lockEntry)}
}

// Acquire blocks until every key is held and returns the release func.
// Duplicate keys are collapsed; a zero key (no contact assigned yet) is
// skipped.
func (k *keyedLocks) Acquire(keys ...int64) func() {
	uniq := make(map[int64]struct{}, len(keys))
	for _, key := range keys {
		if key != 0 {
			uniq[key] = struct{}{}
		}
	}
	ordered := make([]int64, 0, len(uniq))
	for key := range uniq {
		ordered = append(ordered, key)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })

	entries := make([]*lockEntry, 0, len(ordered))
	for _, key := range ordered {
		k.mu.Lock()
		entry, ok := k.locks[key]
		if !ok {
			entry = &lockEntry{}
			k.locks[key] = entry
		}
		entry.refs++
		k.mu.Unlock()

		entry.mu.Lock()
		entries = append(entries, entry)
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		for i := len(ordered) - 1; i >= 0; i-- {
			entries[i].mu.Unlock()
			k.mu.Lock()
			entries[i].refs--
			if entries[i].refs == 0 {
				delete(k.locks, ordered[i])
			}
			k.mu.Unlock()
		}
	}
}
