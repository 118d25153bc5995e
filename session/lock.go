package session

import "sync"

// KeyedMutex serializes work per key. Both the live dispatch path and
// the follow-up scheduler take the same lead key before mutating a
// lead, which is what guarantees strict per-lead turn ordering.
type KeyedMutex struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{entries: make(map[string]*lockEntry)}
}

// Lock blocks until the key is free and returns the unlock func.
// Entries are reference-counted so the map does not grow with every
// lead ever seen.
func (k *KeyedMutex) Lock(key string) func() {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &lockEntry{}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.entries, key)
		}
		k.mu.Unlock()
	}
}
