// Package keymutex serializes operations per string key. The billing engine
// uses it to hold a per-episode lock across validate, write, and refresh so
// concurrent departments billing the same episode never interleave, while
// operations on different episodes never contend.
package keymutex

import "sync"

type entry struct {
	mu   sync.Mutex
	refs int
}

// KeyMutex is a set of mutexes indexed by key. The zero value is not usable;
// call New.
type KeyMutex struct {
	mu    sync.Mutex
	locks map[string]*entry
}

// New creates an empty KeyMutex.
func New() *KeyMutex {
	return &KeyMutex{locks: make(map[string]*entry)}
}

// Lock acquires the mutex for key and returns the unlock function. Entries
// are reference-counted and removed once the last holder releases, so the
// map does not grow with the number of episodes ever seen.
func (k *KeyMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &entry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()

		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
