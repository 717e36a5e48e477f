package extension

import (
	"math/rand"
	"sync"
	"time"
)

// lockedRand is a goroutine-safe source shared by generator calls.
type lockedRand struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func newLockedRand(rnd *rand.Rand) *lockedRand {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &lockedRand{rnd: rnd}
}

// between returns a value in [lo, hi]. It returns lo when hi < lo.
func (l *lockedRand) between(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return lo + l.rnd.Intn(hi-lo+1)
}
