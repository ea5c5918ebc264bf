package bot

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// userLimiter keeps one token bucket per user so a single chat cannot flood
// the shared dispatch queue.
type userLimiter struct {
	mu       sync.Mutex
	limiters map[int64]*rate.Limiter
	perMin   int
}

func newUserLimiter(perMinute int) *userLimiter {
	return &userLimiter{
		limiters: make(map[int64]*rate.Limiter),
		perMin:   perMinute,
	}
}

func (l *userLimiter) allow(userID int64) bool {
	if l.perMin <= 0 {
		return true
	}

	l.mu.Lock()
	lim, ok := l.limiters[userID]
	if !ok {
		lim = rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMin)), l.perMin)
		l.limiters[userID] = lim
	}
	l.mu.Unlock()

	return lim.Allow()
}
