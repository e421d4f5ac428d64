package analysis

import "sync"

// UserLocks admits at most one in-flight operation per user.
type UserLocks struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func NewUserLocks() *UserLocks {
	return &UserLocks{active: make(map[string]struct{})}
}

// TryAcquire marks userID busy. It returns false if the user already has an
// operation in flight; otherwise the caller must call release when done.
func (l *UserLocks) TryAcquire(userID string) (release func(), ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.active[userID]; busy {
		return nil, false
	}
	l.active[userID] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.active, userID)
			l.mu.Unlock()
		})
	}, true
}
