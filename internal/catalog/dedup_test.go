package catalog

import "testing"

func TestDedupStore_SeenOrAdd(t *testing.T) {
	d := newDedupStore(10)

	if d.SeenOrAdd("spotify:track:a") {
		t.Error("first occurrence reported as seen")
	}
	if !d.SeenOrAdd("spotify:track:a") {
		t.Error("second occurrence not reported as seen")
	}
	if d.SeenOrAdd("spotify:track:b") {
		t.Error("distinct uri reported as seen")
	}
}

func TestDedupStore_EvictsBeyondCapacity(t *testing.T) {
	d := newDedupStore(2)

	d.SeenOrAdd("a")
	d.SeenOrAdd("b")
	d.SeenOrAdd("c")

	if len(d.seen) > 2 {
		t.Errorf("store holds %d entries, want <= 2", len(d.seen))
	}
}
