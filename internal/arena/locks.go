package arena

import "sync"

// battleLocks serializes requests for the same battle within one process.
// Entries are reference counted and dropped once no request holds them.
type battleLocks struct {
	mu    sync.Mutex
	locks map[string]*battleLock
}

type battleLock struct {
	mu   sync.Mutex
	refs int
}

func newBattleLocks() *battleLocks {
	return &battleLocks{locks: make(map[string]*battleLock)}
}

// lock blocks until battleID is free and returns the matching unlock.
func (b *battleLocks) lock(battleID string) func() {
	b.mu.Lock()
	l, ok := b.locks[battleID]
	if !ok {
		l = &battleLock{}
		b.locks[battleID] = l
	}
	l.refs++
	b.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		b.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(b.locks, battleID)
		}
		b.mu.Unlock()
	}
}

func (b *battleLocks) size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.locks)
}
