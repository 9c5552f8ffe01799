// Package store holds the shared aggregate state and the event append
// pipeline described in spec.md §3-§4.1.
package store

import (
	"encoding/json"
	"sync"

	"github.com/adred-codev/fleetmon/internal/clock"
	"github.com/adred-codev/fleetmon/internal/model"
	"github.com/adred-codev/fleetmon/internal/sse"
)

const (
	maxRecent = 200
	maxAlerts = 120
)

// Broadcaster hands a serialized SSE frame payload off to the fan-out
// registry. Implemented by internal/sse.Hub; the store only calls this
// method on it (internal/sse is imported here for sse.Frame alone).
type Broadcaster interface {
	Broadcast(msg []byte)
}

// Metrics receives best-effort observations of pipeline activity. All
// methods must be safe to call with a nil receiver is not required; callers
// pass a no-op implementation (or nil, guarded below) when metrics are
// disabled.
type Metrics interface {
	ObserveEvent(status model.Status)
	ObserveAlert(severity model.Status)
	SetTokenTotal(total uint64)
	SetCostTotal(total float64)
}

// State is the process-wide aggregate described in spec.md §3.
type State struct {
	Recent       []model.Event
	Alerts       []model.AlertRow
	ByAgent      map[string]*model.AgentRow
	BySource     map[string]*model.SourceRow
	TokenTotal   uint64
	CostTotalUSD float64
}

func newState() *State {
	return &State{
		ByAgent:  make(map[string]*model.AgentRow),
		BySource: make(map[string]*model.SourceRow),
	}
}

// Store is the single mutual-exclusion guard over State.
type Store struct {
	mu    sync.Mutex
	state *State

	clock       *clock.Clock
	broadcaster Broadcaster
	metrics     Metrics
}

// New builds a Store. broadcaster and metrics may be nil.
func New(c *clock.Clock, broadcaster Broadcaster, metrics Metrics) *Store {
	return &Store{
		state:       newState(),
		clock:       c,
		broadcaster: broadcaster,
		metrics:     metrics,
	}
}

// SeedCostBaseline sets the initial stats-cache cost total outside the
// event pipeline, per spec.md §9 ("seed the baseline outside the
// pipeline (preferred)"). Must be called before any concurrent traffic
// begins, typically once at collector startup.
func (s *Store) SeedCostBaseline(total float64) {
	s.mu.Lock()
	s.state.CostTotalUSD = total
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.SetCostTotal(total)
	}
}

// Snapshot returns a deep-enough copy of the state for read-only use
// (callers must not mutate the returned value's nested rows).
func (s *Store) Snapshot() *State {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := &State{
		Recent:       append([]model.Event(nil), s.state.Recent...),
		Alerts:       append([]model.AlertRow(nil), s.state.Alerts...),
		ByAgent:      make(map[string]*model.AgentRow, len(s.state.ByAgent)),
		BySource:     make(map[string]*model.SourceRow, len(s.state.BySource)),
		TokenTotal:   s.state.TokenTotal,
		CostTotalUSD: s.state.CostTotalUSD,
	}
	for k, v := range s.state.ByAgent {
		row := *v
		cp.ByAgent[k] = &row
	}
	for k, v := range s.state.BySource {
		row := *v
		cp.BySource[k] = &row
	}
	return cp
}

// RecentAlerts returns up to n most-recent alerts (newest first).
func (s *Store) RecentAlerts(n int) []model.AlertRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > len(s.state.Alerts) {
		n = len(s.state.Alerts)
	}
	return append([]model.AlertRow(nil), s.state.Alerts[:n]...)
}

type frame struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// AppendEvent is the event pipeline entry point: §4.1. The event must
// already be normalized (id/receivedAt assigned, status mapped).
func (s *Store) AppendEvent(evt model.Event) {
	s.mu.Lock()
	st := s.state

	st.Recent = append([]model.Event{evt}, st.Recent...)
	if len(st.Recent) > maxRecent {
		st.Recent = st.Recent[:maxRecent]
	}

	agent, ok := st.ByAgent[evt.AgentID]
	if !ok {
		agent = &model.AgentRow{AgentID: evt.AgentID, LastSeen: evt.ReceivedAt, LastEvent: evt.Event, LatencyMs: evt.LatencyMs}
		st.ByAgent[evt.AgentID] = agent
	}
	agent.LastSeen = evt.ReceivedAt
	agent.Total++
	agent.LastEvent = evt.Event
	agent.LatencyMs = evt.LatencyMs
	switch evt.Status {
	case model.StatusError:
		agent.Error++
	case model.StatusWarning:
		agent.Warning++
	default:
		agent.OK++
	}

	tokens := extractTokenTotal(evt.Metadata)
	if tokens > 0 {
		agent.TokenTotal += tokens
		st.TokenTotal += tokens
	}

	if evt.Event == "cost_update" {
		if delta := extractCostDelta(evt.Metadata); delta > 0 {
			agent.CostUSD += delta
			st.CostTotalUSD += delta
		}
	}

	source := sourceName(evt.Metadata)
	row, ok := st.BySource[source]
	if !ok {
		row = &model.SourceRow{Source: source, LastSeen: evt.ReceivedAt}
		st.BySource[source] = row
	}
	row.Total++
	row.LastSeen = evt.ReceivedAt
	switch evt.Status {
	case model.StatusError:
		row.Error++
	case model.StatusWarning:
		row.Warning++
	default:
		row.OK++
	}

	var alert *model.AlertRow
	if evt.Status == model.StatusWarning || evt.Status == model.StatusError {
		msg := evt.Message
		if msg == "" {
			msg = "No message"
		}
		a := model.AlertRow{
			ID:        s.clock.NextAlertID(),
			Severity:  evt.Status,
			AgentID:   evt.AgentID,
			Event:     evt.Event,
			Message:   msg,
			CreatedAt: evt.ReceivedAt,
		}
		st.Alerts = append([]model.AlertRow{a}, st.Alerts...)
		if len(st.Alerts) > maxAlerts {
			st.Alerts = st.Alerts[:maxAlerts]
		}
		alert = &a
	}

	tokenTotal := st.TokenTotal
	costTotal := st.CostTotalUSD
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.ObserveEvent(evt.Status)
		if alert != nil {
			s.metrics.ObserveAlert(alert.Severity)
		}
		s.metrics.SetTokenTotal(tokenTotal)
		s.metrics.SetCostTotal(costTotal)
	}

	if s.broadcaster != nil {
		payload, err := json.Marshal(frame{Type: "event", Payload: evt})
		if err == nil {
			s.broadcaster.Broadcast(sse.Frame(payload))
		}
	}
}

func sourceName(metadata map[string]any) string {
	if metadata == nil {
		return "manual"
	}
	if v, ok := metadata["source"].(string); ok && v != "" {
		return v
	}
	return "manual"
}

func extractTokenTotal(metadata map[string]any) uint64 {
	if metadata == nil {
		return 0
	}
	usage, ok := metadata["tokenUsage"].(map[string]any)
	if !ok {
		return 0
	}
	return asNonNegativeUint(usage["totalTokens"])
}

func extractCostDelta(metadata map[string]any) float64 {
	if metadata == nil {
		return 0
	}
	return asFloat(metadata["costDelta"])
}

func asNonNegativeUint(v any) uint64 {
	f := asFloat(v)
	if f <= 0 {
		return 0
	}
	return uint64(f)
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case json.Number:
		f, _ := n.Float64()
		return f
	default:
		return 0
	}
}
