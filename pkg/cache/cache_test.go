package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSetAndGet(t *testing.T) {
	c := New[string]()
	c.Set("key1", "value1", 1*time.Second)
	val, ok := c.Get("key1")
	if !ok || val != "value1" {
		t.Fatalf("expected value1, got %v, exists=%v", val, ok)
	}
}

func TestExpiration(t *testing.T) {
	c := New[string]()
	now := time.Now()
	c.now = func() time.Time { return now }
	c.Set("key1", "value1", 100*time.Millisecond)
	now = now.Add(150 * time.Millisecond)
	if _, ok := c.Get("key1"); ok {
		t.Fatalf("expected expired key to return false")
	}
}

func TestDelete(t *testing.T) {
	c := New[string]()
	c.Set("key1", "value1", 1*time.Second)
	c.Delete("key1")
	if _, ok := c.Get("key1"); ok {
		t.Fatalf("expected deleted key to return false")
	}
}

func TestInvalidate(t *testing.T) {
	c := New[string]()
	c.Set("prefix:lv", "latvia", time.Second)
	c.Set("prefix:ge", "georgia", time.Second)
	c.Set("tenant:latvia", "latvia", time.Second)
	c.Invalidate("prefix:")
	_, ok1 := c.Get("prefix:lv")
	_, ok2 := c.Get("prefix:ge")
	_, ok3 := c.Get("tenant:latvia")
	if ok1 || ok2 {
		t.Fatalf("expected prefix keys to be invalidated")
	}
	if !ok3 {
		t.Fatalf("expected tenant:latvia to still exist")
	}
}

func TestGetOrLoad(t *testing.T) {
	c := New[int]()
	calls := 0
	load := func(context.Context) (int, error) {
		calls++
		return 7, nil
	}
	for i := 0; i < 3; i++ {
		v, err := c.GetOrLoad(context.Background(), "k", time.Minute, load)
		if err != nil || v != 7 {
			t.Fatalf("got %d %v", v, err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected a single load, got %d", calls)
	}

	boom := errors.New("boom")
	if _, err := c.GetOrLoad(context.Background(), "bad", time.Minute, func(context.Context) (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, ok := c.Get("bad"); ok {
		t.Fatalf("errors must not be cached")
	}
}
