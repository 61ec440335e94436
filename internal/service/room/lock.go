package room

import "sync"

type roomLock struct {
	mu   sync.Mutex
	refs int
}

// roomLocks serializes operations per room. Entries are dropped once no goroutine holds or
// waits for them.
type roomLocks struct {
	mu    sync.Mutex
	locks map[string]*roomLock
}

func newRoomLocks() *roomLocks {
	return &roomLocks{locks: make(map[string]*roomLock)}
}

func (l *roomLocks) lock(roomId string) func() {
	l.mu.Lock()
	rl, ok := l.locks[roomId]
	if !ok {
		rl = &roomLock{}
		l.locks[roomId] = rl
	}
	rl.refs++
	l.mu.Unlock()

	rl.mu.Lock()

	return func() {
		rl.mu.Unlock()

		l.mu.Lock()
		rl.refs--
		if rl.refs == 0 {
			delete(l.locks, roomId)
		}
		l.mu.Unlock()
	}
}

func (l *roomLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.locks)
}
