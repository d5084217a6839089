package cache

import (
	"fmt"
	"testing"
	"time"
)

func TestLRUCacheGetSet(t *testing.T) {
	c := NewLRUCache[map[string]float64](10, time.Minute)

	totals := map[string]float64{"Drew": 3, "Carson": 1.5}
	c.Set("2025-03-03|2025-03-10", totals)

	got, ok := c.Get("2025-03-03|2025-03-10")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got["Drew"] != 3 {
		t.Errorf("Drew = %v, want 3", got["Drew"])
	}

	if _, ok := c.Get("missing"); ok {
		t.Error("expected cache miss for unknown key")
	}
}

func TestLRUCacheEviction(t *testing.T) {
	c := NewLRUCache[int](3, time.Minute)

	for i := 0; i < 4; i++ {
		c.Set(fmt.Sprintf("key%d", i), i)
	}

	if c.Size() != 3 {
		t.Errorf("Size = %d, want 3", c.Size())
	}
	if _, ok := c.Get("key0"); ok {
		t.Error("oldest entry should have been evicted")
	}
	if _, ok := c.Get("key3"); !ok {
		t.Error("newest entry should survive")
	}
}

func TestLRUCacheFlush(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)

	c.Flush()

	if c.Size() != 0 {
		t.Errorf("Size after Flush = %d, want 0", c.Size())
	}
	if _, ok := c.Get("a"); ok {
		t.Error("entry should be gone after Flush")
	}
}

func TestLRUCacheExpiry(t *testing.T) {
	c := NewLRUCache[int](10, 5*time.Millisecond)
	c.Set("a", 1)

	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get("a"); ok {
		t.Error("expired entry should miss")
	}

	c.Set("b", 2)
	time.Sleep(20 * time.Millisecond)
	if removed := c.CleanExpired(); removed == 0 {
		t.Error("CleanExpired should remove stale entries")
	}
}
