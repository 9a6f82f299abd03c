package cache

import (
	"sync"
	"time"
)

type Item struct {
	Value      interface{}
	Expiration int64
}

// Cache is a process-local TTL map. It backs token revocation when Redis
// is disabled, so revocations do not survive a restart or span replicas.
type Cache struct {
	items map[string]Item
	mu    sync.RWMutex
	now   func() time.Time
	stop  chan struct{}
	once  sync.Once
}

func NewCache() *Cache {
	return NewCacheWithGC(time.Minute)
}

// NewCacheWithGC sweeps expired entries every interval.
func NewCacheWithGC(interval time.Duration) *Cache {
	cache := &Cache{
		items: make(map[string]Item),
		now:   time.Now,
		stop:  make(chan struct{}),
	}
	go cache.startGC(interval)
	return cache
}

// Set stores value. A non-positive duration never expires.
func (c *Cache) Set(key string, value interface{}, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiration int64
	if duration > 0 {
		expiration = c.now().Add(duration).UnixNano()
	}
	c.items[key] = Item{
		Value:      value,
		Expiration: expiration,
	}
}

func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, found := c.items[key]
	if !found || c.expired(item) {
		return nil, false
	}

	return item.Value, true
}

func (c *Cache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Close stops the GC goroutine.
func (c *Cache) Close() {
	c.once.Do(func() { close(c.stop) })
}

func (c *Cache) expired(item Item) bool {
	return item.Expiration > 0 && c.now().UnixNano() > item.Expiration
}

func (c *Cache) deleteExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range c.items {
		if c.expired(v) {
			delete(c.items, k)
		}
	}
}

func (c *Cache) startGC(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.deleteExpired()
		case <-c.stop:
			return
		}
	}
}
