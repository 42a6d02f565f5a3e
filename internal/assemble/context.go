package assemble

import (
	"time"

	"github.com/pulseboard/assist/internal/model"
)

// KeyMetrics are the numeric signals carried alongside the summaries.
type KeyMetrics struct {
	TotalProjects  int `json:"totalProjects"`
	ActiveProjects int `json:"activeProjects"`
	TotalTasks     int `json:"totalTasks"`
	CompletedTasks int `json:"completedTasks"`
	OverdueTasks   int `json:"overdueTasks"`
	TeamSize       int `json:"teamSize"`
}

// WorkspaceContext is the optimized, token-bounded snapshot of one
// workspace. It is built wholesale and never partially updated; a stale
// context is replaced, not patched.
type WorkspaceContext struct {
	Workspace       model.Workspace     `json:"workspace"`
	ProjectsSummary string              `json:"projectsSummary"`
	TasksSummary    string              `json:"tasksSummary"`
	RecentMessages  []model.ChatMessage `json:"recentMessages"`
	TeamSummary     string              `json:"teamSummary"`
	Members         []model.Member      `json:"members"`
	KeyMetrics      KeyMetrics          `json:"keyMetrics"`
	UrgentItems     []string            `json:"urgentItems"`
	ContextSize     int                 `json:"contextSize"`
	BuiltAt         time.Time           `json:"builtAt"`
}

// CrossWorkspaceContext aggregates a user's workspaces for queries that
// span the whole organization.
type CrossWorkspaceContext struct {
	Workspaces       []*WorkspaceContext `json:"workspaces"`
	GlobalSummary    string              `json:"globalSummary"`
	TotalContextSize int                 `json:"totalContextSize"`
	PriorityAlerts   []string            `json:"priorityAlerts"`
}
