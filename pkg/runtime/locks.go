package runtime

import "sync"

// instanceLocks hands out one mutex per instance id, so operations on
// different instances run fully in parallel while submits on the same
// instance serialize. Entries are reference-counted and dropped when idle.
type instanceLocks struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newInstanceLocks() *instanceLocks {
	return &instanceLocks{locks: make(map[string]*lockEntry)}
}

// Lock acquires the lock for the instance and returns its unlock function.
func (il *instanceLocks) Lock(instanceID string) func() {
	il.mu.Lock()

	entry, ok := il.locks[instanceID]
	if !ok {
		entry = &lockEntry{}
		il.locks[instanceID] = entry
	}

	entry.refs++
	il.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		il.mu.Lock()

		entry.refs--
		if entry.refs == 0 {
			delete(il.locks, instanceID)
		}

		il.mu.Unlock()
	}
}
