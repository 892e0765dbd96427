package storecache

import (
  "testing"
)

func TestCacheEvictsOldest(t *testing.T) {
  c := New[int](2)
  c.Set("a", 1)
  c.Set("b", 2)
  c.Set("c", 3)

  if _, ok := c.Get("a"); ok {
    t.Errorf("oldest entry should have been evicted")
  }
  if v, ok := c.Get("c"); !ok || v != 3 {
    t.Errorf("newest entry missing")
  }
  if c.Len() != 2 {
    t.Errorf("expected 2 entries, got %d", c.Len())
  }
}

func TestCacheSetExistingDoesNotEvict(t *testing.T) {
  c := New[int](2)
  c.Set("a", 1)
  c.Set("b", 2)
  c.Set("a", 10)

  if v, ok := c.Get("a"); !ok || v != 10 {
    t.Errorf("update lost: %v %v", v, ok)
  }
  if _, ok := c.Get("b"); !ok {
    t.Errorf("untouched entry evicted by an update")
  }
}

func TestCacheDeleteAndClear(t *testing.T) {
  c := New[string](4)
  c.Set("a", "x")
  c.Set("b", "y")
  c.Delete("a")
  if _, ok := c.Get("a"); ok {
    t.Errorf("deleted entry still present")
  }
  c.Clear()
  if c.Len() != 0 {
    t.Errorf("clear left %d entries", c.Len())
  }
}
