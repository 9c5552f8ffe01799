// Package parsers implements the transforms from raw on-disk records into
// normalized model.Event values, per spec.md §4.4. The line parsers
// (ParseHistoryLine, ParseSessionLine) are functions of (line, id
// allocator, clock) only; StatsCacheDiffer reads its file and keeps the last
// observed mtime and cost between polls. No component in this package
// touches the state store directly.
package parsers

import (
	"encoding/json"

	"github.com/adred-codev/fleetmon/internal/clock"
	"github.com/adred-codev/fleetmon/internal/model"
)

// IDClock is the minimal surface parsers need from clock.Clock.
type IDClock interface {
	NextEventID() string
}

// ParseHistoryLine parses one line of the history.jsonl file. Returns
// (event, true) on success, or (zero, false) when the line is malformed
// JSON or missing its text field.
func ParseHistoryLine(line string, ids IDClock) (model.Event, bool) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return model.Event{}, false
	}

	text, ok := raw["text"].(string)
	if !ok {
		return model.Event{}, false
	}

	ts := formatUnixSeconds(raw["ts"])
	sessionID, _ := raw["session_id"].(string)
	project, _ := raw["project"].(string)

	now := clock.NowISO()
	return model.Event{
		ID:      ids.NextEventID(),
		AgentID: "lead",
		Event:   "user_request",
		Status:  model.StatusOK,
		Message: truncateRunes(text, 120),
		Metadata: map[string]any{
			"source":     "claude_history",
			"sessionId":  sessionID,
			"project":    project,
			"textLength": len([]rune(text)),
		},
		Timestamp:  ts,
		ReceivedAt: now,
	}, true
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
