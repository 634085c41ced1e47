package membership

import (
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

// userLocks serializes mutations per user id so concurrent credential checks
// cannot lose lockout-counter or digest updates.
type userLocks struct {
	locks *xsync.MapOf[int64, *sync.Mutex]
}

func newUserLocks() *userLocks {
	return &userLocks{
		locks: xsync.NewMapOf[int64, *sync.Mutex](),
	}
}

func (l *userLocks) lock(id int64) func() {
	mu, _ := l.locks.LoadOrCompute(id, func() *sync.Mutex {
		return &sync.Mutex{}
	})
	mu.Lock()
	return mu.Unlock
}
