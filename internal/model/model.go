// Package model defines the entities the assistant core reads from the
// document store and the enums they carry. Records are normalized into
// these structs at the fetch boundary; nothing downstream sees raw
// store documents.
package model

import "time"

// ProjectStatus is the lifecycle state of a project.
type ProjectStatus string

const (
	ProjectPlanning  ProjectStatus = "planning"
	ProjectActive    ProjectStatus = "active"
	ProjectOnHold    ProjectStatus = "on_hold"
	ProjectCompleted ProjectStatus = "completed"
	ProjectArchived  ProjectStatus = "archived"
)

// ProjectHealth is the reported health of a project.
type ProjectHealth string

const (
	HealthHealthy  ProjectHealth = "healthy"
	HealthAtRisk   ProjectHealth = "at_risk"
	HealthCritical ProjectHealth = "critical"
	HealthUnknown  ProjectHealth = "unknown"
)

// TaskStatus is the workflow state of a task.
type TaskStatus string

const (
	TaskBacklog    TaskStatus = "backlog"
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in_progress"
	TaskInReview   TaskStatus = "in_review"
	TaskCompleted  TaskStatus = "completed"
	TaskCancelled  TaskStatus = "cancelled"
)

// TaskPriority is the urgency label on a task.
type TaskPriority string

const (
	PriorityLow      TaskPriority = "low"
	PriorityMedium   TaskPriority = "medium"
	PriorityHigh     TaskPriority = "high"
	PriorityCritical TaskPriority = "critical"
)

// MemberRole is a member's role within a workspace.
type MemberRole string

const (
	RoleOwner  MemberRole = "owner"
	RoleAdmin  MemberRole = "admin"
	RoleMember MemberRole = "member"
	RoleGuest  MemberRole = "guest"
)

// MemberStatusActive is the only membership status counted by the core.
const MemberStatusActive = "active"

// Workspace is a sub-division of an organization. Immutable from this
// core's perspective.
type Workspace struct {
	ID             string
	OrganizationID string
	Name           string
	Emoji          string
	Description    string
}

// Project belongs to a workspace. Progress is a percentage in [0,100].
type Project struct {
	ID          string
	WorkspaceID string
	Name        string
	Status      ProjectStatus
	Health      ProjectHealth
	Progress    int
	DueDate     *time.Time
	UpdatedAt   time.Time
}

// PastDue reports whether the project's due date has already passed.
func (p Project) PastDue(now time.Time) bool {
	return p.DueDate != nil && p.DueDate.Before(now)
}

// AtRisk reports whether the project's health is at_risk or critical.
func (p Project) AtRisk() bool {
	return p.Health == HealthAtRisk || p.Health == HealthCritical
}

// Task belongs to a project. CompletedAt is set iff Status is completed;
// a task with nonempty Dependencies counts as blocked until completed.
type Task struct {
	ID           string
	ProjectID    string
	WorkspaceID  string
	Title        string
	Status       TaskStatus
	Priority     TaskPriority
	DueDate      *time.Time
	CompletedAt  *time.Time
	AssignedTo   []string
	Dependencies []string
	UpdatedAt    time.Time
}

// Completed reports whether the task is done.
func (t Task) Completed() bool { return t.Status == TaskCompleted }

// Overdue reports whether the task's due date has passed without completion.
func (t Task) Overdue(now time.Time) bool {
	return t.DueDate != nil && t.DueDate.Before(now) && !t.Completed()
}

// DueToday reports whether the task is due between now and end of today.
func (t Task) DueToday(now time.Time) bool {
	if t.DueDate == nil || t.Completed() {
		return false
	}
	endOfDay := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), now.Location())
	return !t.DueDate.Before(now) && !t.DueDate.After(endOfDay)
}

// Blocked reports whether the task is waiting on unresolved dependencies.
func (t Task) Blocked() bool { return len(t.Dependencies) > 0 && !t.Completed() }

// HighPriority reports whether the task is high or critical priority.
func (t Task) HighPriority() bool {
	return t.Priority == PriorityHigh || t.Priority == PriorityCritical
}

// ChatMessage is one message in a workspace chat. CreatedAt is the
// ordering key for recency windows.
type ChatMessage struct {
	ID          string
	WorkspaceID string
	UserID      string
	Content     string
	CreatedAt   time.Time
}

// WorkspaceMember is a membership record; the profile is denormalized
// separately and joined at fetch time.
type WorkspaceMember struct {
	UserID       string
	WorkspaceID  string
	Role         MemberRole
	Status       string
	LastActiveAt time.Time
}

// UserProfile is the denormalized user record joined onto memberships.
type UserProfile struct {
	UserID      string
	DisplayName string
	Email       string
}

// Member is a membership joined with its profile.
type Member struct {
	WorkspaceMember
	Profile UserProfile
}

// Activity is a recency signal only; the core never renders its payload.
type Activity struct {
	ID          string
	UserID      string
	WorkspaceID string
	Action      string
	CreatedAt   time.Time
}
