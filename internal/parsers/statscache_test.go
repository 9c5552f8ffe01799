package parsers

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/adred-codev/fleetmon/internal/clock"
)

func writeStatsCache(t *testing.T, path string, cost float64) {
	t.Helper()
	content := fmt.Sprintf(`{"modelUsage":{"claude-x":{"costUSD":%g}}}`, cost)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestStatsCacheDifferSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats-cache.json")
	writeStatsCache(t, path, 3)

	d := NewStatsCacheDiffer(path)
	total, ok := d.Seed()
	if !ok {
		t.Fatal("Seed() ok = false, want true")
	}
	if total != 3 {
		t.Errorf("Seed() total = %v, want 3", total)
	}
}

func TestStatsCacheDifferSeedMissingFile(t *testing.T) {
	d := NewStatsCacheDiffer(filepath.Join(t.TempDir(), "missing.json"))
	if _, ok := d.Seed(); ok {
		t.Error("Seed() ok = true for missing file, want false")
	}
}

func TestStatsCacheDifferPollEmitsOnPositiveDelta(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats-cache.json")
	writeStatsCache(t, path, 1)

	d := NewStatsCacheDiffer(path)
	if _, ok := d.Seed(); !ok {
		t.Fatal("Seed() failed")
	}

	// mtime must visibly advance for Poll to treat the file as changed.
	time.Sleep(10 * time.Millisecond)
	writeStatsCache(t, path, 4)

	ids := clock.New()
	evt, ok := d.Poll(ids)
	if !ok {
		t.Fatal("Poll() ok = false, want true after a positive cost delta")
	}
	if evt.Event != "cost_update" {
		t.Errorf("Event = %q, want %q", evt.Event, "cost_update")
	}
	if delta := evt.Metadata["costDelta"]; delta != 3.0 {
		t.Errorf("costDelta = %v, want 3", delta)
	}
}

func TestStatsCacheDifferPollNoEventWithoutMtimeChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats-cache.json")
	writeStatsCache(t, path, 1)

	d := NewStatsCacheDiffer(path)
	d.Seed()

	ids := clock.New()
	if _, ok := d.Poll(ids); ok {
		t.Error("Poll() ok = true with no mtime change, want false")
	}
}

func TestStatsCacheDifferPollNoEventOnDecreasingDelta(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats-cache.json")
	writeStatsCache(t, path, 3)

	d := NewStatsCacheDiffer(path)
	if _, ok := d.Seed(); !ok {
		t.Fatal("Seed() failed")
	}

	// mtime must visibly advance for Poll to treat the file as changed.
	time.Sleep(10 * time.Millisecond)
	writeStatsCache(t, path, 2)

	ids := clock.New()
	if _, ok := d.Poll(ids); ok {
		t.Error("Poll() ok = true on a decreasing cost delta, want false")
	}
	if d.lastCost != 2 {
		t.Errorf("lastCost = %v, want 2 (advanced despite no emitted event)", d.lastCost)
	}
	if d.lastMtime == nil {
		t.Fatal("lastMtime = nil, want advanced")
	}

	// A subsequent rise from the new (lower) baseline must still emit,
	// confirming lastMtime/lastCost both actually advanced above.
	time.Sleep(10 * time.Millisecond)
	writeStatsCache(t, path, 5)

	evt, ok := d.Poll(ids)
	if !ok {
		t.Fatal("Poll() ok = false, want true after a positive delta off the lowered baseline")
	}
	if delta := evt.Metadata["costDelta"]; delta != 3.0 {
		t.Errorf("costDelta = %v, want 3 (5 - 2, not 5 - 3)", delta)
	}
}

func TestStatsCacheDifferPollSeedsLazilyIfNeverSeeded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats-cache.json")
	writeStatsCache(t, path, 2)

	d := NewStatsCacheDiffer(path)
	ids := clock.New()
	if _, ok := d.Poll(ids); ok {
		t.Error("first Poll() before any Seed() should only establish the baseline, ok = false expected")
	}
}
