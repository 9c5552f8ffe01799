// Package collector implements the background polling loop described in
// spec.md §4.5: history backfill, history/session delta tailing, and
// stats-cache polling, feeding every derived event into the pipeline.
package collector

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/adred-codev/fleetmon/internal/model"
	"github.com/adred-codev/fleetmon/internal/parsers"
	"github.com/adred-codev/fleetmon/internal/tailer"
)

const maxDeltaBytes = 512 * 1024

// Appender is the minimal surface the collector needs from the state
// store.
type Appender interface {
	AppendEvent(evt model.Event)
	SeedCostBaseline(total float64)
}

// CycleObserver receives the wall-clock duration of one full loop
// iteration. Implemented by internal/telemetry.Registry; may be nil.
type CycleObserver interface {
	ObserveCollectorCycle(d time.Duration)
}

// Config controls collector behavior, per spec.md §6.
type Config struct {
	ClaudeHome    string
	PollInterval  time.Duration
	BackfillLines int
}

// Collector owns the history/session cursors and the stats-cache differ
// across loop iterations.
type Collector struct {
	cfg    Config
	store  Appender
	ids    parsers.IDClock
	cycles CycleObserver
	differ *parsers.StatsCacheDiffer

	historyCursor  tailer.Cursor
	sessionCursors map[string]*tailer.Cursor
}

// New builds a Collector. ids is typically a *clock.Clock; cycles may be
// nil.
func New(cfg Config, store Appender, ids parsers.IDClock, cycles CycleObserver) *Collector {
	return &Collector{
		cfg:            cfg,
		store:          store,
		ids:            ids,
		cycles:         cycles,
		differ:         parsers.NewStatsCacheDiffer(statsCachePath(cfg.ClaudeHome)),
		sessionCursors: make(map[string]*tailer.Cursor),
	}
}

func statsCachePath(claudeHome string) string {
	return filepath.Join(claudeHome, "stats-cache.json")
}

func historyPath(claudeHome string) string {
	return filepath.Join(claudeHome, "history.jsonl")
}

func projectsDir(claudeHome string) string {
	return filepath.Join(claudeHome, "projects")
}

// Run performs startup seeding/backfill, then loops until ctx is canceled.
func (c *Collector) Run(ctx context.Context) {
	c.seedCostBaseline()
	c.backfillHistory()

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.tick()
		}
	}
}

func (c *Collector) seedCostBaseline() {
	if total, ok := c.differ.Seed(); ok {
		c.store.SeedCostBaseline(total)
	}
}

// backfillHistory reads the last BackfillLines lines of history.jsonl in
// file order, appends each, then advances the cursor to the current file
// length so forward reads are delta-only hereafter.
func (c *Collector) backfillHistory() {
	path := historyPath(c.cfg.ClaudeHome)
	data, err := os.ReadFile(path)
	if err == nil {
		lines := splitNonEmptyLines(string(data))
		start := 0
		if len(lines) > c.cfg.BackfillLines {
			start = len(lines) - c.cfg.BackfillLines
		}
		for _, line := range lines[start:] {
			if evt, ok := parsers.ParseHistoryLine(line, c.ids); ok {
				c.store.AppendEvent(evt)
			}
		}
	}

	if info, err := os.Stat(path); err == nil {
		c.historyCursor.Offset = info.Size()
	}
}

func splitNonEmptyLines(s string) []string {
	raw := strings.Split(s, "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

func (c *Collector) tick() {
	start := time.Now()

	for _, line := range tailer.ReadDeltaLines(historyPath(c.cfg.ClaudeHome), &c.historyCursor, maxDeltaBytes) {
		if evt, ok := parsers.ParseHistoryLine(line, c.ids); ok {
			c.store.AppendEvent(evt)
		}
	}

	c.pollSessionFiles()

	if evt, ok := c.differ.Poll(c.ids); ok {
		c.store.AppendEvent(evt)
	}

	if c.cycles != nil {
		c.cycles.ObserveCollectorCycle(time.Since(start))
	}
}

// pollSessionFiles enumerates one level of subdirectories under
// <claudeHome>/projects, selects *.jsonl files (top-level files are
// ignored), delta-reads each, and appends the parsed events.
func (c *Collector) pollSessionFiles() {
	for _, path := range discoverSessionFiles(projectsDir(c.cfg.ClaudeHome)) {
		cursor, ok := c.sessionCursors[path]
		if !ok {
			cursor = &tailer.Cursor{}
			c.sessionCursors[path] = cursor
		}
		sessionID := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		for _, line := range tailer.ReadDeltaLines(path, cursor, maxDeltaBytes) {
			for _, evt := range parsers.ParseSessionLine(line, sessionID, c.ids) {
				c.store.AppendEvent(evt)
			}
		}
	}
}

// discoverSessionFiles returns every *.jsonl file found exactly one level
// below dir (i.e. dir/<subdir>/*.jsonl); files directly under dir are
// ignored. Results are sorted for deterministic iteration order.
func discoverSessionFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		subPath := filepath.Join(dir, entry.Name())
		subEntries, err := os.ReadDir(subPath)
		if err != nil {
			continue
		}
		for _, sub := range subEntries {
			if sub.IsDir() {
				continue
			}
			if strings.EqualFold(filepath.Ext(sub.Name()), ".jsonl") {
				files = append(files, filepath.Join(subPath, sub.Name()))
			}
		}
	}
	sort.Strings(files)
	return files
}
