package collector

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/adred-codev/fleetmon/internal/clock"
	"github.com/adred-codev/fleetmon/internal/model"
)

type fakeAppender struct {
	mu     sync.Mutex
	events []model.Event
	seeded float64
}

func (f *fakeAppender) AppendEvent(evt model.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, evt)
}

func (f *fakeAppender) SeedCostBaseline(total float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seeded = total
}

func (f *fakeAppender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func mkdirAll(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("MkdirAll(%q): %v", path, err)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile(%q): %v", path, err)
	}
}

func TestBackfillHistoryRespectsLineLimit(t *testing.T) {
	home := t.TempDir()
	lines := ""
	for i := 0; i < 10; i++ {
		lines += `{"text":"item"}` + "\n"
	}
	writeFile(t, historyPath(home), lines)

	store := &fakeAppender{}
	c := New(Config{ClaudeHome: home, BackfillLines: 3}, store, clock.New(), nil)
	c.backfillHistory()

	if store.count() != 3 {
		t.Errorf("backfillHistory() appended %d events, want 3 (BackfillLines cap)", store.count())
	}
}

func TestBackfillHistoryAdvancesCursorToEOF(t *testing.T) {
	home := t.TempDir()
	writeFile(t, historyPath(home), `{"text":"a"}`+"\n")

	store := &fakeAppender{}
	c := New(Config{ClaudeHome: home, BackfillLines: 25}, store, clock.New(), nil)
	c.backfillHistory()

	info, err := os.Stat(historyPath(home))
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if c.historyCursor.Offset != info.Size() {
		t.Errorf("historyCursor.Offset = %d, want %d", c.historyCursor.Offset, info.Size())
	}
}

func TestDiscoverSessionFilesOneLevelDeep(t *testing.T) {
	dir := t.TempDir()
	mkdirAll(t, filepath.Join(dir, "projA"))
	writeFile(t, filepath.Join(dir, "projA", "session1.jsonl"), "")
	writeFile(t, filepath.Join(dir, "top-level.jsonl"), "") // must be ignored
	mkdirAll(t, filepath.Join(dir, "projB"))
	writeFile(t, filepath.Join(dir, "projB", "session2.jsonl"), "")

	files := discoverSessionFiles(dir)
	if len(files) != 2 {
		t.Fatalf("discoverSessionFiles() = %v, want 2 files", files)
	}
	if filepath.Base(files[0]) != "session1.jsonl" || filepath.Base(files[1]) != "session2.jsonl" {
		t.Errorf("unexpected files: %v", files)
	}
}

func TestDiscoverSessionFilesMissingDir(t *testing.T) {
	if files := discoverSessionFiles(filepath.Join(t.TempDir(), "missing")); files != nil {
		t.Errorf("discoverSessionFiles() = %v, want nil for missing dir", files)
	}
}

func TestTickPicksUpNewHistoryAndSessionLines(t *testing.T) {
	home := t.TempDir()
	writeFile(t, historyPath(home), "")
	mkdirAll(t, filepath.Join(projectsDir(home), "proj1"))

	store := &fakeAppender{}
	c := New(Config{ClaudeHome: home, BackfillLines: 25}, store, clock.New(), nil)
	c.backfillHistory()

	writeFile(t, historyPath(home), `{"text":"new request"}`+"\n")
	writeFile(t, filepath.Join(projectsDir(home), "proj1", "s1.jsonl"), `{"type":"user","message":{"content":"hi"}}`+"\n")

	c.tick()

	if store.count() != 2 {
		t.Fatalf("tick() appended %d events, want 2 (one history, one session)", store.count())
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	home := t.TempDir()
	mkdirAll(t, projectsDir(home))

	store := &fakeAppender{}
	c := New(Config{ClaudeHome: home, PollInterval: time.Millisecond, BackfillLines: 25}, store, clock.New(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run() did not return after context cancellation")
	}
}
