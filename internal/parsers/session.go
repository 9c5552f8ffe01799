package parsers

import (
	"encoding/json"
	"fmt"

	"github.com/adred-codev/fleetmon/internal/clock"
	"github.com/adred-codev/fleetmon/internal/model"
)

// ParseSessionLine parses one line of a per-session jsonl file and returns
// zero or more normalized events, per spec.md §4.4. Every returned event
// carries metadata.source = "claude_session".
func ParseSessionLine(line string, sessionID string, ids IDClock) []model.Event {
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return nil
	}

	msgType, _ := raw["type"].(string)
	sid := sessionID
	if v, ok := raw["sessionId"].(string); ok && v != "" {
		sid = v
	}
	timestamp, ok := raw["timestamp"].(string)
	if !ok || timestamp == "" {
		timestamp = clock.NowISO()
	}

	message, _ := raw["message"].(map[string]any)

	switch msgType {
	case "user":
		content, _ := message["content"].(string)
		if content == "" {
			return nil
		}
		return []model.Event{
			newSessionEvent(ids, "user_message", truncateRunes(content, 120), sid, "", timestamp, nil),
		}
	case "assistant":
		return parseAssistantLine(message, sid, timestamp, ids)
	default:
		return nil
	}
}

func parseAssistantLine(message map[string]any, sessionID, timestamp string, ids IDClock) []model.Event {
	if message == nil {
		return nil
	}
	modelName, _ := message["model"].(string)

	var events []model.Event

	if contentArr, ok := message["content"].([]any); ok {
		for _, raw := range contentArr {
			item, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			itemType, _ := item["type"].(string)
			switch itemType {
			case "text":
				text, _ := item["text"].(string)
				if text == "" {
					continue
				}
				events = append(events, newSessionEvent(ids, "assistant_message", truncateRunes(text, 120), sessionID, modelName, timestamp, nil))
			case "tool_use":
				name, _ := item["name"].(string)
				if name == "" {
					name = "unknown_tool"
				}
				input := item["input"]
				extra := map[string]any{"toolInput": input}
				events = append(events, newSessionEvent(ids, "tool_call", name, sessionID, modelName, timestamp, extra))
			}
		}
	}

	if usage, ok := message["usage"].(map[string]any); ok {
		inputTokens := asUint(usage["input_tokens"])
		outputTokens := asUint(usage["output_tokens"])
		cacheRead := asUint(usage["cache_read_input_tokens"])
		total := inputTokens + outputTokens
		if total > 0 {
			extra := map[string]any{
				"tokenUsage": map[string]any{
					"inputTokens":          inputTokens,
					"outputTokens":         outputTokens,
					"cacheReadInputTokens": cacheRead,
					"totalTokens":          total,
				},
			}
			events = append(events, newSessionEvent(ids, "token_usage", fmt.Sprintf("tokens +%d", total), sessionID, modelName, timestamp, extra))
		}
	}

	return events
}

func newSessionEvent(ids IDClock, kind, message, sessionID, modelName, timestamp string, extra map[string]any) model.Event {
	metadata := map[string]any{
		"source":    "claude_session",
		"sessionId": sessionID,
	}
	if modelName != "" {
		metadata["model"] = modelName
	}
	for k, v := range extra {
		metadata[k] = v
	}

	return model.Event{
		ID:         ids.NextEventID(),
		AgentID:    "lead",
		Event:      kind,
		Status:     model.StatusOK,
		Message:    message,
		Metadata:   metadata,
		Timestamp:  timestamp,
		ReceivedAt: clock.NowISO(),
	}
}

func asUint(v any) uint64 {
	f, ok := v.(float64)
	if !ok || f <= 0 {
		return 0
	}
	return uint64(f)
}
