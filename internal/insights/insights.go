// Package insights derives dashboard insights from a full, uncapped
// workspace context. Unlike the token-bounded assembler path, nothing
// here is sized for a language model; it feeds the dashboard directly.
package insights

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/pulseboard/assist/internal/fetch"
	"github.com/pulseboard/assist/internal/model"
	"github.com/pulseboard/assist/internal/summary"
)

// ErrOrgAggregationUnsupported is returned by OrganizationInsights.
// Organization-wide aggregation has no defined semantics yet; callers
// fall back to generic no-data insights.
var ErrOrgAggregationUnsupported = errors.New("insights: organization-wide aggregation is not supported")

// ErrWorkspaceNotFound is returned when the workspace does not exist in
// the caller's organization.
var ErrWorkspaceNotFound = errors.New("insights: workspace not found")

// Urgency orders priority items. Higher sorts first.
type Urgency string

const (
	UrgencyHigh   Urgency = "high"
	UrgencyMedium Urgency = "medium"
	UrgencyLow    Urgency = "low"
)

var urgencyRank = map[Urgency]int{UrgencyHigh: 3, UrgencyMedium: 2, UrgencyLow: 1}

// PriorityItem is one actionable entry on the dashboard.
type PriorityItem struct {
	Title   string     `json:"title"`
	Reason  string     `json:"reason"`
	Urgency Urgency    `json:"urgency"`
	DueDate *time.Time `json:"dueDate,omitempty"`
}

// Insights is the full set of derived dashboard content.
type Insights struct {
	Greeting          string         `json:"greeting"`
	PriorityItems     []PriorityItem `json:"priorityItems"`
	ProjectUpdates    []string       `json:"projectUpdates"`
	TeamActivity      []string       `json:"teamActivity"`
	Suggestions       []string       `json:"suggestions"`
	RiskAlerts        []string       `json:"riskAlerts"`
	UpcomingDeadlines []string       `json:"upcomingDeadlines"`
}

// deadlineWindowDays bounds the upcoming-deadlines list.
const deadlineWindowDays = 7

// activityLines caps the team-activity section.
const activityLines = 5

// Engine derives insights from workspace data. It takes its own
// Fetcher so it can run with wider limits than the optimizer path.
type Engine struct {
	fetcher *fetch.Fetcher
	tuning  summary.Tuning
	now     func() time.Time
	logger  zerolog.Logger
}

// New creates an Engine.
func New(fetcher *fetch.Fetcher, tuning summary.Tuning, logger zerolog.Logger) *Engine {
	return &Engine{
		fetcher: fetcher,
		tuning:  tuning,
		now:     time.Now,
		logger:  logger.With().Str("component", "insights").Logger(),
	}
}

// WithClock overrides the time source. Used by tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Greeting is purely a function of local hour-of-day and display name.
func Greeting(now time.Time, displayName string) string {
	var part string
	switch hour := now.Hour(); {
	case hour < 12:
		part = "Good morning"
	case hour < 17:
		part = "Good afternoon"
	default:
		part = "Good evening"
	}
	if displayName == "" {
		return part
	}
	return fmt.Sprintf("%s, %s", part, displayName)
}

// Fallback returns the generic no-data insights used when a richer
// context is unavailable.
func Fallback(now time.Time, displayName string) *Insights {
	return &Insights{
		Greeting:          Greeting(now, displayName),
		PriorityItems:     []PriorityItem{},
		ProjectUpdates:    []string{},
		TeamActivity:      []string{},
		Suggestions:       []string{"Create a project or add tasks to get personalized insights."},
		RiskAlerts:        []string{},
		UpcomingDeadlines: []string{},
	}
}

// OrganizationInsights is explicitly unsupported. The gap is preserved
// rather than papered over with invented aggregation semantics.
func (e *Engine) OrganizationInsights(_ context.Context, orgID, userID string) (*Insights, error) {
	e.logger.Debug().
		Str("org_id", orgID).
		Str("user_id", userID).
		Msg("organization insights requested but not supported")
	return nil, ErrOrgAggregationUnsupported
}

// WorkspaceInsights builds the full insight set for one workspace.
func (e *Engine) WorkspaceInsights(ctx context.Context, orgID, workspaceID, displayName string) (*Insights, error) {
	ws, err := e.fetcher.Workspace(ctx, orgID, workspaceID)
	if err != nil {
		return nil, err
	}
	if ws == nil {
		return nil, ErrWorkspaceNotFound
	}

	bundle, err := e.fetcher.WorkspaceData(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	activities, err := e.fetcher.RecentActivities(ctx, workspaceID, 50)
	if err != nil {
		e.logger.Warn().Err(err).Str("workspace_id", workspaceID).Msg("activity fetch failed, omitting team activity")
		activities = nil
	}

	now := e.now()
	ins := &Insights{
		Greeting:          Greeting(now, displayName),
		PriorityItems:     e.priorityItems(bundle, now),
		ProjectUpdates:    e.projectUpdates(bundle, now),
		TeamActivity:      teamActivity(activities, bundle.Members, now),
		Suggestions:       suggestions(bundle, now),
		RiskAlerts:        e.riskAlerts(bundle, now),
		UpcomingDeadlines: upcomingDeadlines(bundle.Tasks, now),
	}
	return ins, nil
}

func (e *Engine) priorityItems(bundle *fetch.Bundle, now time.Time) []PriorityItem {
	var items []PriorityItem
	for _, t := range bundle.Tasks {
		switch {
		case t.Overdue(now):
			items = append(items, PriorityItem{
				Title: t.Title, Reason: "Overdue", Urgency: UrgencyHigh, DueDate: t.DueDate,
			})
		case t.DueToday(now):
			items = append(items, PriorityItem{
				Title: t.Title, Reason: "Due today", Urgency: UrgencyMedium, DueDate: t.DueDate,
			})
		case t.Blocked():
			items = append(items, PriorityItem{
				Title: t.Title, Reason: "Blocked by dependencies", Urgency: UrgencyLow, DueDate: t.DueDate,
			})
		}
	}
	for _, p := range bundle.Projects {
		if p.Health == model.HealthCritical {
			items = append(items, PriorityItem{
				Title: p.Name, Reason: "Project health is critical", Urgency: UrgencyHigh, DueDate: p.DueDate,
			})
		}
	}
	SortPriorityItems(items)
	return items
}

// SortPriorityItems orders items by urgency descending, then ascending
// due date when both items have one. The sort is stable, so equal items
// keep their insertion order.
func SortPriorityItems(items []PriorityItem) {
	sort.SliceStable(items, func(i, j int) bool {
		ri, rj := urgencyRank[items[i].Urgency], urgencyRank[items[j].Urgency]
		if ri != rj {
			return ri > rj
		}
		if items[i].DueDate != nil && items[j].DueDate != nil {
			return items[i].DueDate.Before(*items[j].DueDate)
		}
		return false
	})
}

func (e *Engine) projectUpdates(bundle *fetch.Bundle, now time.Time) []string {
	updates := make([]string, 0, len(bundle.Projects))
	for _, p := range bundle.Projects {
		score := summary.ProjectHealthScore(p, bundle.Tasks, now, e.tuning)
		updates = append(updates, fmt.Sprintf("%s: %s, %d%% complete, health %d/100",
			p.Name, p.Status, p.Progress, score))
	}
	return updates
}

func teamActivity(activities []model.Activity, members []model.Member, now time.Time) []string {
	if len(activities) == 0 {
		return nil
	}

	names := make(map[string]string, len(members))
	for _, m := range members {
		names[m.UserID] = m.Profile.DisplayName
	}

	cutoff := now.Add(-24 * time.Hour)
	counts := map[string]int{}
	var order []string
	for _, a := range activities {
		if a.CreatedAt.Before(cutoff) {
			continue
		}
		if _, seen := counts[a.UserID]; !seen {
			order = append(order, a.UserID)
		}
		counts[a.UserID]++
	}

	var lines []string
	for _, userID := range order {
		if len(lines) == activityLines {
			break
		}
		name := names[userID]
		if name == "" {
			name = userID
		}
		lines = append(lines, fmt.Sprintf("%s: %d updates in the last 24h", name, counts[userID]))
	}
	return lines
}

func suggestions(bundle *fetch.Bundle, now time.Time) []string {
	var out []string

	var overdue, blocked, active int
	for _, t := range bundle.Tasks {
		if t.Overdue(now) {
			overdue++
		}
		if t.Blocked() {
			blocked++
		}
	}
	for _, p := range bundle.Projects {
		if p.Status == model.ProjectActive {
			active++
		}
	}

	if overdue > 0 {
		out = append(out, fmt.Sprintf("Reprioritize: %d tasks are past their due date.", overdue))
	}
	if blocked > 0 {
		out = append(out, fmt.Sprintf("Unblock: %d tasks are waiting on dependencies.", blocked))
	}
	if active == 0 && len(bundle.Projects) > 0 {
		out = append(out, "No projects are active; consider reactivating or archiving stalled work.")
	}
	if len(bundle.Projects) == 0 {
		out = append(out, "Create a project or add tasks to get personalized insights.")
	}
	return out
}

func (e *Engine) riskAlerts(bundle *fetch.Bundle, now time.Time) []string {
	var alerts []string
	for _, p := range bundle.Projects {
		if p.AtRisk() {
			score := summary.ProjectHealthScore(p, bundle.Tasks, now, e.tuning)
			alerts = append(alerts, fmt.Sprintf("%s is %s (health %d/100)", p.Name, p.Health, score))
		}
		if p.PastDue(now) && p.Status != model.ProjectCompleted {
			alerts = append(alerts, fmt.Sprintf("%s is past its due date", p.Name))
		}
	}
	return alerts
}

func upcomingDeadlines(tasks []model.Task, now time.Time) []string {
	horizon := now.AddDate(0, 0, deadlineWindowDays)

	type due struct {
		title string
		at    time.Time
	}
	var upcoming []due
	for _, t := range tasks {
		if t.DueDate == nil || t.Completed() {
			continue
		}
		if t.DueDate.After(now) && t.DueDate.Before(horizon) {
			upcoming = append(upcoming, due{title: t.Title, at: *t.DueDate})
		}
	}
	sort.SliceStable(upcoming, func(i, j int) bool { return upcoming[i].at.Before(upcoming[j].at) })

	lines := make([]string, 0, len(upcoming))
	for _, d := range upcoming {
		lines = append(lines, fmt.Sprintf("%s — due %s", d.title, d.at.Format("Jan 2")))
	}
	return lines
}
