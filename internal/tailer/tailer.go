// Package tailer implements the crash-safe delta reader for append-only
// files described in spec.md §4.3.
package tailer

import (
	"bytes"
	"io"
	"os"
)

// Cursor remembers where a tailed file was last read up to, and any
// trailing partial line carried over from the previous read.
type Cursor struct {
	Offset      int64
	PartialLine string
}

// ReadDeltaLines opens path, stats its length, and returns every complete
// line appended since cursor was last advanced. On truncation (the file has
// shrunk below the cursor's offset — rotation or crash-truncate) the cursor
// is reset and reading resumes from the start of the new content. Reads are
// bounded to maxBytes of catch-up per call; older bytes beyond that window
// are silently skipped. On any read error the cursor is left unchanged and
// an empty slice is returned so the next poll can retry safely.
func ReadDeltaLines(path string, cursor *Cursor, maxBytes int64) []string {
	info, err := os.Stat(path)
	if err != nil {
		return nil
	}

	length := info.Size()
	if length < cursor.Offset {
		cursor.Offset = 0
		cursor.PartialLine = ""
	}

	if length == cursor.Offset {
		return nil
	}

	start := cursor.Offset
	if length-start > maxBytes {
		start = length - maxBytes
	}

	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	if _, err := f.Seek(start, 0); err != nil {
		return nil
	}

	buf := make([]byte, length-start)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil
	}

	cursor.Offset = length

	text := cursor.PartialLine + string(buf)
	parts := bytes.Split([]byte(text), []byte{'\n'})
	cursor.PartialLine = string(parts[len(parts)-1])

	lines := make([]string, 0, len(parts)-1)
	for _, p := range parts[:len(parts)-1] {
		if len(p) == 0 {
			continue
		}
		lines = append(lines, string(p))
	}
	return lines
}
