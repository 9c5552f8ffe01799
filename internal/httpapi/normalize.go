package httpapi

import (
	"github.com/adred-codev/fleetmon/internal/clock"
	"github.com/adred-codev/fleetmon/internal/model"
)

// IDClock is the minimal surface the push handler needs to allocate a
// fresh event id.
type IDClock interface {
	NextEventID() string
}

// normalizeIncoming maps a decoded push payload onto a normalized Event,
// applying the defaults in spec.md §4.7. A fresh id and receive time are
// always assigned by the server.
func normalizeIncoming(payload map[string]any, ids IDClock) model.Event {
	now := clock.NowISO()

	agentID := stringOr(payload["agentId"], "unknown-agent")
	kind := stringOr(payload["event"], "heartbeat")
	status := model.NormalizeStatus(stringOr(payload["status"], "ok"))
	message := stringOr(payload["message"], "")
	timestamp := stringOr(payload["timestamp"], now)

	metadata, ok := payload["metadata"].(map[string]any)
	if !ok || metadata == nil {
		metadata = map[string]any{}
	}

	var latency *int64
	if v, ok := payload["latencyMs"]; ok {
		if f, ok := v.(float64); ok {
			i := int64(f)
			latency = &i
		}
	}

	return model.Event{
		ID:         ids.NextEventID(),
		AgentID:    agentID,
		Event:      kind,
		Status:     status,
		LatencyMs:  latency,
		Message:    message,
		Metadata:   metadata,
		Timestamp:  timestamp,
		ReceivedAt: now,
	}
}

func stringOr(v any, def string) string {
	if s, ok := v.(string); ok {
		return s
	}
	return def
}
