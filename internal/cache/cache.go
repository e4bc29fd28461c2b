// Package cache holds a small TTL cache for /auth/me user snapshots so the
// hot identity lookup does not hit Postgres on every request.
package cache

import (
	"sync"
	"time"

	"github.com/avinash-394/website/internal/domain/user"
)

type UserCache struct {
	mu  sync.RWMutex
	ttl time.Duration
	m   map[string]entry
}

type entry struct {
	u   user.User
	exp time.Time
}

func NewUserCache(ttl time.Duration) *UserCache {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}

	return &UserCache{
		ttl: ttl,
		m:   make(map[string]entry),
	}
}

func (c *UserCache) Get(id string) (user.User, bool) {
	now := time.Now()
	c.mu.RLock()
	e, ok := c.m[id]
	c.mu.RUnlock()
	if !ok {
		return user.User{}, false
	}

	if now.After(e.exp) {
		c.mu.Lock()
		delete(c.m, id)
		c.mu.Unlock()
		return user.User{}, false
	}

	return e.u, true
}

func (c *UserCache) Put(u user.User) {
	c.mu.Lock()
	c.m[u.ID] = entry{u: u, exp: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}

// Invalidate drops a snapshot after any profile/avatar/password mutation.
func (c *UserCache) Invalidate(id string) {
	c.mu.Lock()
	delete(c.m, id)
	c.mu.Unlock()
}

func (c *UserCache) Purge() {
	c.mu.Lock()
	c.m = make(map[string]entry)
	c.mu.Unlock()
}
