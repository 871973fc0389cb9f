package services

import "sync"

// userLocks hands out one mutex per user id. Entries are dropped once no
// goroutine holds or waits on them, so the table only grows with the number
// of concurrently active users.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[string]*userLock)}
}

// Lock blocks until the user's lock is held and returns its release func.
func (u *userLocks) Lock(userID string) (unlock func()) {
	u.mu.Lock()
	l, ok := u.locks[userID]
	if !ok {
		l = &userLock{}
		u.locks[userID] = l
	}
	l.refs++
	u.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		u.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(u.locks, userID)
		}
		u.mu.Unlock()
	}
}

func (u *userLocks) size() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.locks)
}
