package services

import "sync"

// keyedLocks serializes all command processing per transaction id.
// Commands on different transactions never contend; two commands on
// the same transaction run strictly one after the other, so the
// read-check-write of a transition is atomic within this process. The
// status compare-and-swap in the repository covers multi-process
// deployments.
type keyedLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{entries: map[string]*lockEntry{}}
}

// Lock acquires the lock for key and returns its release func.
func (k *keyedLocks) Lock(key string) func() {
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
