package catalog

import (
	"context"
	"testing"
	"time"
)

func TestSoftThrottle_AllowsUpToLimit(t *testing.T) {
	st := newSoftThrottle(3)
	defer st.Stop()

	for i := 0; i < 3; i++ {
		if !st.Allow("search") {
			t.Fatalf("call %d unexpectedly throttled", i)
		}
	}
	if st.Allow("search") {
		t.Error("4th call within the window should be throttled")
	}
}

func TestSoftThrottle_KeysAreIndependent(t *testing.T) {
	st := newSoftThrottle(1)
	defer st.Stop()

	if !st.Allow("search") {
		t.Fatal("first search call should be allowed")
	}
	if !st.Allow("playlist-create") {
		t.Fatal("distinct key should have its own budget")
	}
}

func TestSoftThrottle_DisabledWhenLimitIsZero(t *testing.T) {
	st := newSoftThrottle(0)
	defer st.Stop()

	for i := 0; i < 100; i++ {
		if !st.Allow("search") {
			t.Fatal("limit of 0 should disable throttling entirely")
		}
	}
}

// TestSoftThrottle_WaitBlocksUntilWindowFrees pins that Wait actually blocks a caller over
// budget rather than only logging and proceeding: it must not return until an older timestamp
// ages out of the window, at which point it records the call and returns nil.
func TestSoftThrottle_WaitBlocksUntilWindowFrees(t *testing.T) {
	st := newSoftThrottle(1)
	defer st.Stop()

	// Consume the only slot, but backdate it so the window frees almost immediately instead of
	// making the test wait close to throttleWindow (60s).
	st.mutex.Lock()
	st.entries["search"] = &throttleEntry{timestamps: []time.Time{time.Now().Add(-throttleWindow + 50*time.Millisecond)}}
	st.mutex.Unlock()

	if st.Allow("search") {
		t.Fatal("budget should already be exhausted")
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := st.Wait(ctx, "search"); err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("Wait returned after %v, expected it to actually block until the window freed", elapsed)
	}
}

func TestSoftThrottle_WaitReturnsErrorOnContextCancel(t *testing.T) {
	st := newSoftThrottle(1)
	defer st.Stop()

	if !st.Allow("search") {
		t.Fatal("first call should be allowed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := st.Wait(ctx, "search"); err == nil {
		t.Fatal("expected Wait to return an error when the context is canceled before the window frees")
	}
}

func TestSoftThrottle_WaitDisabledWhenLimitIsZero(t *testing.T) {
	st := newSoftThrottle(0)
	defer st.Stop()

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		if err := st.Wait(ctx, "search"); err != nil {
			t.Fatalf("disabled throttle should never block: %v", err)
		}
	}
}
