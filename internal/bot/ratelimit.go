package bot

import (
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
)

// RateLimiter implements per-user per-command cooldowns on an expiring
// cache: a key exists while the user is still inside the cooldown window.
type RateLimiter struct {
	calls  *cache.Cache
	limits map[string]time.Duration
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		calls: cache.New(5*time.Minute, 10*time.Minute),
		limits: map[string]time.Duration{
			"newkey":  10 * time.Second,
			"mykeys":  3 * time.Second,
			"balance": 3 * time.Second,
		},
	}
}

// IsLimited reports whether the command is still cooling down for the user
// and, if not, starts a new cooldown.
func (r *RateLimiter) IsLimited(userID int64, cmd string) bool {
	limit, ok := r.limits[cmd]
	if !ok {
		limit = 2 * time.Second
	}
	k := fmt.Sprintf("%d:%s", userID, cmd)
	if _, found := r.calls.Get(k); found {
		return true
	}
	r.calls.Set(k, struct{}{}, limit)
	return false
}
