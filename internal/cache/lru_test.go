package cache

import (
	"errors"
	"testing"
)

func TestCacheGetSet(t *testing.T) {
	c := New[string, int](0, nil)
	if _, ok := c.Get("a"); ok {
		t.Fatal("empty cache returned a value")
	}
	c.Set("a", 1)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = %v, %v; want 1, true", v, ok)
	}
	s := c.Stats()
	if s.Hits != 1 || s.Misses != 1 || s.Len != 1 {
		t.Errorf("Stats = %+v", s)
	}
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	var evicted []int
	c := New[int, string](2, func(k int, _ string) { evicted = append(evicted, k) })

	c.Set(1, "one")
	c.Set(2, "two")
	c.Get(1) // 2 is now the oldest
	c.Set(3, "three")

	if len(evicted) != 1 || evicted[0] != 2 {
		t.Fatalf("evicted = %v, want [2]", evicted)
	}
	if _, ok := c.Get(2); ok {
		t.Error("evicted key still present")
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
}

func TestCacheReplaceNotifies(t *testing.T) {
	var got []string
	c := New[int, string](0, func(_ int, v string) { got = append(got, v) })
	c.Set(1, "old")
	c.Set(1, "new")
	if len(got) != 1 || got[0] != "old" {
		t.Errorf("replaced values = %v, want [old]", got)
	}
}

func TestCacheGetOrCreate(t *testing.T) {
	c := New[int, int](0, nil)
	calls := 0
	create := func() (int, error) {
		calls++
		return 42, nil
	}
	for range 3 {
		v, err := c.GetOrCreate(7, create)
		if err != nil || v != 42 {
			t.Fatalf("GetOrCreate = %v, %v", v, err)
		}
	}
	if calls != 1 {
		t.Errorf("create called %d times, want 1", calls)
	}

	errBoom := errors.New("boom")
	if _, err := c.GetOrCreate(8, func() (int, error) { return 0, errBoom }); !errors.Is(err, errBoom) {
		t.Errorf("err = %v, want boom", err)
	}
	if _, ok := c.Get(8); ok {
		t.Error("failed creation must not be cached")
	}
}

func TestCacheClearEvictsAll(t *testing.T) {
	n := 0
	c := New[int, int](0, func(int, int) { n++ })
	for i := range 5 {
		c.Set(i, i)
	}
	c.Clear()
	if n != 5 || c.Len() != 0 {
		t.Errorf("Clear: evicted %d, len %d", n, c.Len())
	}
	if c.Delete(0) {
		t.Error("Delete on cleared cache should report false")
	}
}
