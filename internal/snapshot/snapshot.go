// Package snapshot derives the dashboard payload from the state store,
// per spec.md §4.6.
package snapshot

import (
	"sort"

	"github.com/adred-codev/fleetmon/internal/clock"
	"github.com/adred-codev/fleetmon/internal/model"
	"github.com/adred-codev/fleetmon/internal/store"
)

const (
	recentLimit = 300
	alertsLimit = 20
)

// Build produces a single serialized view of st: generation timestamp,
// derived totals, agents/sources sorted ascending, bounded recent/alert
// views, and the workflow list (one row per observed agent, ascending).
func Build(st *store.State) model.Snapshot {
	agents := make([]model.AgentRow, 0, len(st.ByAgent))
	agentIDs := make([]string, 0, len(st.ByAgent))
	for id := range st.ByAgent {
		agentIDs = append(agentIDs, id)
	}
	sort.Strings(agentIDs)

	totals := model.Totals{Agents: len(agentIDs)}
	for _, id := range agentIDs {
		row := *st.ByAgent[id]
		agents = append(agents, row)
		totals.Total += row.Total
		totals.OK += row.OK
		totals.Warning += row.Warning
		totals.Error += row.Error
		totals.TokenTotal += row.TokenTotal
	}
	totals.CostUSD = st.CostTotalUSD

	sources := make([]model.SourceRow, 0, len(st.BySource))
	sourceNames := make([]string, 0, len(st.BySource))
	for name := range st.BySource {
		sourceNames = append(sourceNames, name)
	}
	sort.Strings(sourceNames)
	for _, name := range sourceNames {
		sources = append(sources, *st.BySource[name])
	}

	recent := st.Recent
	if len(recent) > recentLimit {
		recent = recent[:recentLimit]
	}

	alerts := st.Alerts
	if len(alerts) > alertsLimit {
		alerts = alerts[:alertsLimit]
	}

	workflow := make([]model.WorkflowRow, 0, len(agentIDs))
	for _, id := range agentIDs {
		workflow = append(workflow, workflowRow(st, id))
	}

	return model.Snapshot{
		GeneratedAt:      clock.NowISO(),
		Totals:           totals,
		Agents:           agents,
		Sources:          sources,
		Recent:           append([]model.Event(nil), recent...),
		Alerts:           append([]model.AlertRow(nil), alerts...),
		WorkflowProgress: workflow,
	}
}

// WorkflowRowFor derives the workflow row for a single role id, including
// roles never observed (active: false). This is the fixed-roster helper
// described in spec.md §9 — opt-in, not used by the default snapshot.
func WorkflowRowFor(st *store.State, roleID string) model.WorkflowRow {
	return workflowRow(st, roleID)
}

func workflowRow(st *store.State, roleID string) model.WorkflowRow {
	row, ok := st.ByAgent[roleID]
	if !ok {
		return model.WorkflowRow{
			RoleID:    roleID,
			Active:    false,
			Status:    "idle",
			Total:     0,
			LastEvent: "-",
			LastSeen:  nil,
		}
	}

	status := "idle"
	switch {
	case row.Error > 0:
		status = "blocked"
	case row.Warning > 0:
		status = "at-risk"
	case row.Total > 0:
		status = "running"
	}

	lastSeen := row.LastSeen
	return model.WorkflowRow{
		RoleID:    roleID,
		Active:    true,
		Status:    status,
		Total:     row.Total,
		LastEvent: row.LastEvent,
		LastSeen:  &lastSeen,
	}
}
