package storecache

import (
  "sync"
)

// Cache is a small bounded read cache keyed by string, owned explicitly by
// whichever repo holds it. When the bound is exceeded the oldest inserted key
// is evicted. Zero value is not usable; construct with New.
type Cache[V any] struct {
  mu        sync.Mutex
  max       int
  entries   map[string]V
  order     []string
}

func New[V any](max int) *Cache[V] {
  if max <= 0 {
    max = 256
  }
  return &Cache[V]{
    max:     max,
    entries: make(map[string]V),
  }
}

func (c *Cache[V]) Get(key string) (V, bool) {
  c.mu.Lock()
  defer c.mu.Unlock()
  v, ok := c.entries[key]
  return v, ok
}

func (c *Cache[V]) Set(key string, value V) {
  c.mu.Lock()
  defer c.mu.Unlock()
  if _, exists := c.entries[key]; !exists {
    c.order = append(c.order, key)
    if len(c.order) > c.max {
      oldest := c.order[0]
      c.order = c.order[1:]
      delete(c.entries, oldest)
    }
  }
  c.entries[key] = value
}

func (c *Cache[V]) Delete(key string) {
  c.mu.Lock()
  defer c.mu.Unlock()
  if _, exists := c.entries[key]; !exists {
    return
  }
  delete(c.entries, key)
  for i, k := range c.order {
    if k == key {
      c.order = append(c.order[:i], c.order[i+1:]...)
      break
    }
  }
}

func (c *Cache[V]) Clear() {
  c.mu.Lock()
  defer c.mu.Unlock()
  c.entries = make(map[string]V)
  c.order = nil
}

func (c *Cache[V]) Len() int {
  c.mu.Lock()
  defer c.mu.Unlock()
  return len(c.entries)
}

// Values returns a snapshot of all cached values, in no particular order.
func (c *Cache[V]) Values() []V {
  c.mu.Lock()
  defer c.mu.Unlock()
  out := make([]V, 0, len(c.entries))
  for _, v := range c.entries {
    out = append(out, v)
  }
  return out
}
