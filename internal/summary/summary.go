// Package summary reduces raw entity lists into the compact strings and
// numeric signals the assistant feeds to the language model. Everything
// here is pure and synchronous; callers own the data and the clock.
package summary

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/pulseboard/assist/internal/model"
)

// Empty-collection literals. Callers and prompts rely on these exact
// strings, so they are constants rather than inline formatting.
const (
	NoProjects    = "No projects"
	NoTasks       = "No tasks"
	NoTeamMembers = "No team members"
)

// maxHighlightedProjects caps how many project names a summary lists.
const maxHighlightedProjects = 3

// Projects renders a compact one-line summary of a project list.
func Projects(projects []model.Project) string {
	if len(projects) == 0 {
		return NoProjects
	}

	var active, completed, atRisk int
	for _, p := range projects {
		switch p.Status {
		case model.ProjectActive:
			active++
		case model.ProjectCompleted:
			completed++
		}
		if p.AtRisk() {
			atRisk++
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d projects: %d active, %d completed", len(projects), active, completed)
	if atRisk > 0 {
		fmt.Fprintf(&b, ", %d at risk", atRisk)
	}

	names := make([]string, 0, maxHighlightedProjects)
	for _, p := range projects {
		if len(names) == maxHighlightedProjects {
			break
		}
		names = append(names, fmt.Sprintf("%s (%d%%)", p.Name, p.Progress))
	}
	b.WriteString(". ")
	b.WriteString(strings.Join(names, ", "))
	return b.String()
}

// Tasks renders a compact one-line summary of a task list.
func Tasks(tasks []model.Task, now time.Time) string {
	if len(tasks) == 0 {
		return NoTasks
	}

	var completed, inProgress, overdue, highPriority int
	for _, t := range tasks {
		if t.Completed() {
			completed++
		}
		if t.Status == model.TaskInProgress {
			inProgress++
		}
		if t.Overdue(now) {
			overdue++
		}
		if t.HighPriority() {
			highPriority++
		}
	}

	return fmt.Sprintf("%d/%d done, %d in progress, %d overdue, %d high priority",
		completed, len(tasks), inProgress, overdue, highPriority)
}

// Team renders a role breakdown of the active members of a workspace.
func Team(members []model.Member) string {
	if len(members) == 0 {
		return NoTeamMembers
	}

	counts := map[model.MemberRole]int{}
	for _, m := range members {
		counts[m.Role]++
	}

	// Fixed role order keeps the rendering deterministic.
	order := []model.MemberRole{model.RoleOwner, model.RoleAdmin, model.RoleMember, model.RoleGuest}
	var parts []string
	for _, role := range order {
		if n := counts[role]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, plural(string(role), n)))
		}
	}
	return fmt.Sprintf("%d members: %s", len(members), strings.Join(parts, ", "))
}

// UrgentItems detects conditions that need immediate attention. The
// order is fixed: overdue tasks, critical projects, tasks due today.
// Each line appears only when its count is nonzero.
func UrgentItems(projects []model.Project, tasks []model.Task, now time.Time) []string {
	var overdue, dueToday int
	for _, t := range tasks {
		if t.Overdue(now) {
			overdue++
		}
		if t.DueToday(now) {
			dueToday++
		}
	}
	var critical int
	for _, p := range projects {
		if p.Health == model.HealthCritical {
			critical++
		}
	}

	var items []string
	if overdue > 0 {
		items = append(items, fmt.Sprintf("%d %s overdue", overdue, plural("task", overdue)))
	}
	if critical > 0 {
		items = append(items, fmt.Sprintf("%d %s in critical health", critical, plural("project", critical)))
	}
	if dueToday > 0 {
		items = append(items, fmt.Sprintf("%d %s due today", dueToday, plural("task", dueToday)))
	}
	return items
}

// ProjectHealthScore computes the heuristic health score for a project
// against the full workspace task list. The result is an integer in
// [0,100]; weights come from Tuning.
func ProjectHealthScore(p model.Project, tasks []model.Task, now time.Time, tn Tuning) int {
	score := tn.HealthBase + tn.HealthProgressWeight*float64(p.Progress)

	var total, completed, overdue int
	for _, t := range tasks {
		if t.ProjectID != p.ID {
			continue
		}
		total++
		if t.Completed() {
			completed++
		}
		if t.Overdue(now) {
			overdue++
		}
	}
	if total > 0 {
		score += tn.HealthCompletionWeight * float64(completed) / float64(total)
	}

	if p.DueDate != nil {
		if p.DueDate.Before(now) {
			score -= tn.HealthPastDuePenalty
		} else if p.DueDate.Before(now.AddDate(0, 0, tn.HealthDueSoonDays)) {
			score -= tn.HealthDueSoonPenalty
		}
	}

	score -= tn.HealthOverduePenalty * float64(overdue)

	return int(math.Round(math.Min(100, math.Max(0, score))))
}

// EstimateTokens approximates the LLM token cost of a value as its JSON
// length divided by four, rounded up. It is a sizing heuristic, not an
// exact count.
func EstimateTokens(v any) int {
	raw, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return (len(raw) + 3) / 4
}

func plural(word string, n int) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
