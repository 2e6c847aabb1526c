package state

import "sync"

// KeyedMutex hands out one mutex per user. Entries are dropped once no goroutine holds or waits on them.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[int64]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

// NewKeyedMutex returns an empty lock table.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[int64]*refMutex)}
}

// Lock blocks until the user's lock is held and returns the matching unlock function.
func (k *KeyedMutex) Lock(userID int64) (unlock func()) {
	k.mu.Lock()
	m, ok := k.locks[userID]
	if !ok {
		m = &refMutex{}
		k.locks[userID] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	var once sync.Once
	return func() {
		once.Do(func() {
			m.Unlock()
			k.mu.Lock()
			m.refs--
			if m.refs == 0 {
				delete(k.locks, userID)
			}
			k.mu.Unlock()
		})
	}
}

// Len reports how many users currently hold or wait on a lock.
func (k *KeyedMutex) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
