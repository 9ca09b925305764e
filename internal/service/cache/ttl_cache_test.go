package cache

import (
	"testing"
	"time"
)

func TestTTLCacheExpiry(t *testing.T) {
	c := NewTTLCache()
	if err := c.SetBytes("confluence:SPY:1h", []byte(`{"ok":true}`), 20*time.Millisecond); err != nil {
		t.Fatalf("set: %v", err)
	}
	b, ok, err := c.GetBytes("confluence:SPY:1h")
	if err != nil || !ok || string(b) != `{"ok":true}` {
		t.Fatalf("get: %q %v %v", b, ok, err)
	}
	time.Sleep(40 * time.Millisecond)
	if _, ok, _ := c.GetBytes("confluence:SPY:1h"); ok {
		t.Fatalf("entry should have expired")
	}
}

func TestTTLCacheNonBytes(t *testing.T) {
	c := NewTTLCache()
	c.Set("k", 42, 0)
	if _, ok, _ := c.GetBytes("k"); ok {
		t.Fatalf("non-byte values are a miss")
	}
}
