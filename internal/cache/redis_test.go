package cache

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewRedisCache(mr.Addr(), 0)
	if err != nil {
		t.Fatalf("NewRedisCache failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestRedisCache_SetGet(t *testing.T) {
	c, _ := newTestRedis(t)

	if err := c.Set(Key("fp"), []byte("result"), time.Hour); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	val, found := c.Get(Key("fp"))
	if !found || string(val) != "result" {
		t.Errorf("expected hit with %q, got %q found=%v", "result", val, found)
	}
}

func TestRedisCache_TTL(t *testing.T) {
	c, mr := newTestRedis(t)

	c.Set("k", []byte("v"), time.Hour)
	mr.FastForward(2 * time.Hour)

	if _, found := c.Get("k"); found {
		t.Error("expected entry to expire after TTL")
	}
}

func TestRedisCache_Miss(t *testing.T) {
	c, _ := newTestRedis(t)
	if _, found := c.Get("absent"); found {
		t.Error("expected miss for absent key")
	}
}

func TestRedisCache_Delete(t *testing.T) {
	c, _ := newTestRedis(t)

	c.Set("k", []byte("v"), time.Hour)
	if err := c.Delete("k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, found := c.Get("k"); found {
		t.Error("expected entry removed")
	}
}
