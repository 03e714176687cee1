package cache

import (
	"testing"
	"time"
)

func TestGetSetRoundTrip(t *testing.T) {
	c := New(Options{TTL: time.Minute, SweepInterval: time.Hour})
	defer c.Close()

	c.Set(NamespacePreview, "abc", []byte("hello"))
	v, ok := c.Get(NamespacePreview, "abc")
	if !ok {
		t.Fatal("expected hit")
	}
	if string(v.([]byte)) != "hello" {
		t.Fatalf("got %v", v)
	}

	if _, ok := c.Get(NamespaceContent, "abc"); ok {
		t.Fatal("namespaces must not collide")
	}
}

func TestExpiryOnAccess(t *testing.T) {
	c := New(Options{TTL: 10 * time.Millisecond, SweepInterval: time.Hour})
	defer c.Close()

	c.Set(NamespaceDetails, "x", 1)
	time.Sleep(30 * time.Millisecond)

	if _, ok := c.Get(NamespaceDetails, "x"); ok {
		t.Fatal("expected expired entry to be gone")
	}
	if c.Len() != 0 {
		t.Fatalf("expected cleanup on access, len=%d", c.Len())
	}
}

func TestEvictOldestFraction(t *testing.T) {
	c := New(Options{TTL: time.Hour, SweepInterval: time.Hour})
	defer c.Close()

	for i := 0; i < 10; i++ {
		c.Set(NamespaceDeployer, string(rune('a'+i)), i)
		time.Sleep(time.Millisecond)
	}
	c.mu.Lock()
	c.evictOldestFractionLocked(0.5)
	n := len(c.entries)
	c.mu.Unlock()

	if n != 5 {
		t.Fatalf("expected 5 entries left, got %d", n)
	}
}
