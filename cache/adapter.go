package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryCache 简单的内存缓存适配器，进程内共享
type MemoryCache struct {
	cache    map[string]Entry
	lifetime time.Duration
	mu       sync.RWMutex
	now      func() time.Time
}

// NewMemoryCache 创建内存缓存
func NewMemoryCache(lifetime time.Duration) *MemoryCache {
	return &MemoryCache{
		cache:    make(map[string]Entry),
		lifetime: lifetime,
		now:      time.Now,
	}
}

// Get 获取缓存，过期条目视为未命中并被清理
func (c *MemoryCache) Get(_ context.Context, key string) (Entry, bool, error) {
	c.mu.RLock()
	item, exists := c.cache[key]
	c.mu.RUnlock()
	if !exists {
		return Entry{}, false, nil
	}

	if expired(item.ModTime, c.lifetime, c.now()) {
		c.mu.Lock()
		delete(c.cache, key)
		c.mu.Unlock()
		return Entry{}, false, nil
	}

	return Entry{Data: append([]byte(nil), item.Data...), ModTime: item.ModTime}, true, nil
}

// Set 设置缓存
func (c *MemoryCache) Set(_ context.Context, key string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache[key] = Entry{
		Data:    append([]byte(nil), data...),
		ModTime: c.now(),
	}
	return nil
}

// Delete 删除缓存
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.cache, key)
	return nil
}
