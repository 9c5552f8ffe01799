package ratelimit

import (
	"testing"
	"time"
)

func TestAllowWithinBurst(t *testing.T) {
	l := New(1, 3)
	for i := 0; i < 3; i++ {
		if !l.Allow("1.2.3.4") {
			t.Fatalf("Allow() call %d = false, want true (within burst)", i)
		}
	}
	if l.Allow("1.2.3.4") {
		t.Error("Allow() beyond burst = true, want false")
	}
}

func TestAllowTracksPerIP(t *testing.T) {
	l := New(1, 1)
	if !l.Allow("1.1.1.1") {
		t.Fatal("first caller should be allowed")
	}
	if !l.Allow("2.2.2.2") {
		t.Error("a distinct IP should have its own independent bucket")
	}
	if l.Allow("1.1.1.1") {
		t.Error("first IP should be rate limited after exhausting its burst")
	}
}

func TestReapRemovesIdleEntries(t *testing.T) {
	l := New(1, 1)
	l.ttl = time.Millisecond
	l.Allow("1.1.1.1")

	time.Sleep(5 * time.Millisecond)
	l.Reap()

	l.mu.Lock()
	_, ok := l.entries["1.1.1.1"]
	l.mu.Unlock()
	if ok {
		t.Error("Reap() did not remove an entry past its TTL")
	}
}

func TestReapKeepsRecentEntries(t *testing.T) {
	l := New(1, 1)
	l.Allow("1.1.1.1")
	l.Reap()

	l.mu.Lock()
	_, ok := l.entries["1.1.1.1"]
	l.mu.Unlock()
	if !ok {
		t.Error("Reap() removed a recently-used entry")
	}
}
