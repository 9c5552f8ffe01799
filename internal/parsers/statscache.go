package parsers

import (
	"encoding/json"
	"os"
	"time"

	"github.com/adred-codev/fleetmon/internal/clock"
	"github.com/adred-codev/fleetmon/internal/model"
)

// StatsCacheDiffer watches a single stats-cache.json file and emits
// cost_update events for positive cost deltas, per spec.md §4.4.
type StatsCacheDiffer struct {
	path        string
	lastMtime   *time.Time
	lastCost    float64
	initialized bool
}

// NewStatsCacheDiffer returns a differ for path. Call Seed once at startup
// to establish the baseline before polling begins.
func NewStatsCacheDiffer(path string) *StatsCacheDiffer {
	return &StatsCacheDiffer{path: path}
}

type statsCacheFile struct {
	ModelUsage map[string]struct {
		CostUSD float64 `json:"costUSD"`
	} `json:"modelUsage"`
}

func readTotalCost(path string) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	var parsed statsCacheFile
	if err := json.Unmarshal(data, &parsed); err != nil {
		return 0, err
	}
	var total float64
	for _, m := range parsed.ModelUsage {
		total += m.CostUSD
	}
	return total, nil
}

// Seed performs the first, baseline-establishing read: it returns the total
// cost to seed state.cost_total_usd with directly (outside the event
// pipeline, per spec.md §9), and produces no event. A read/parse failure
// leaves the differ uninitialized so the next Poll call retries the seed.
func (d *StatsCacheDiffer) Seed() (float64, bool) {
	total, err := readTotalCost(d.path)
	if err != nil {
		return 0, false
	}
	info, err := os.Stat(d.path)
	if err != nil {
		return 0, false
	}
	mtime := info.ModTime()
	d.lastMtime = &mtime
	d.lastCost = total
	d.initialized = true
	return total, true
}

// Poll checks whether the file's mtime has advanced since the last
// observation. When it has and the new total cost is strictly greater than
// the last observed cost, it returns a cost_update event carrying the
// positive delta. Otherwise it returns (zero, false) — including the
// non-positive-delta case, where last_cost/last_mtime are still advanced so
// the non-decreasing invariant on cost_total_usd is preserved without
// emitting an event.
func (d *StatsCacheDiffer) Poll(ids IDClock) (model.Event, bool) {
	if !d.initialized {
		if _, ok := d.Seed(); !ok {
			return model.Event{}, false
		}
		return model.Event{}, false
	}

	info, err := os.Stat(d.path)
	if err != nil {
		return model.Event{}, false
	}
	mtime := info.ModTime()
	if d.lastMtime != nil && mtime.Equal(*d.lastMtime) {
		return model.Event{}, false
	}

	total, err := readTotalCost(d.path)
	if err != nil {
		// leave last_mtime unchanged for retry
		return model.Event{}, false
	}

	delta := total - d.lastCost
	d.lastMtime = &mtime
	if delta <= 0 {
		d.lastCost = total
		return model.Event{}, false
	}
	d.lastCost = total

	now := clock.NowISO()
	return model.Event{
		ID:      ids.NextEventID(),
		AgentID: "lead",
		Event:   "cost_update",
		Status:  model.StatusOK,
		Message: "",
		Metadata: map[string]any{
			"source":       "stats_cache",
			"costDelta":    delta,
			"costTotalUsd": total,
		},
		Timestamp:  now,
		ReceivedAt: now,
	}, true
}
