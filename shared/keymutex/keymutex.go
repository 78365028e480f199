// Package keymutex provides mutual exclusion scoped to string keys, so
// unrelated keys never contend with each other.
package keymutex

import (
	"context"
	"sync"
)

type lockEntry struct {
	// ch holds the single lock token; sending acquires, receiving releases.
	ch   chan struct{}
	refs int
}

// KeyMutex is a set of per-key mutexes. Entries exist only while a key is
// held or waited on, so an idle KeyMutex holds no memory per key.
type KeyMutex struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

func New() *KeyMutex {
	return &KeyMutex{
		locks: make(map[string]*lockEntry),
	}
}

// Lock acquires the mutex for key, blocking until it is available or ctx is
// done. On a ctx error the lock is not held and the error is returned.
func (m *KeyMutex) Lock(ctx context.Context, key string) error {
	m.mu.Lock()
	entry, ok := m.locks[key]
	if !ok {
		entry = &lockEntry{ch: make(chan struct{}, 1)}
		m.locks[key] = entry
	}
	entry.refs++
	m.mu.Unlock()

	select {
	case entry.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		m.release(key)
		return ctx.Err()
	}
}

// Unlock releases the mutex for key. It must only be called after a
// successful Lock for the same key.
func (m *KeyMutex) Unlock(key string) {
	m.mu.Lock()
	entry, ok := m.locks[key]
	m.mu.Unlock()
	if !ok {
		panic("keymutex: unlock of unheld key " + key)
	}

	<-entry.ch
	m.release(key)
}

// release drops one reference to a key's entry and removes it once nothing
// holds or waits on it.
func (m *KeyMutex) release(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.locks[key]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, key)
	}
}
