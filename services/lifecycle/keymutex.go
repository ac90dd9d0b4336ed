package lifecycle

import "sync"

// keyMutex provides per-key mutual exclusion. Operations on distinct
// keys proceed in parallel; operations on the same key serialize.
// Entries are reference-counted and removed when the last holder
// releases, so the map does not grow with the policy count.
type keyMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyMutex() *keyMutex {
	return &keyMutex{
		locks: make(map[string]*keyLock),
	}
}

// Lock acquires the mutex for key, blocking until available
func (m *keyMutex) Lock(key string) {
	m.mu.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = &keyLock{}
		m.locks[key] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()
}

// Unlock releases the mutex for key
func (m *keyMutex) Unlock(key string) {
	m.mu.Lock()
	l, ok := m.locks[key]
	if !ok {
		m.mu.Unlock()
		panic("keymutex: unlock of unlocked key " + key)
	}
	l.refs--
	if l.refs == 0 {
		delete(m.locks, key)
	}
	m.mu.Unlock()

	l.mu.Unlock()
}
