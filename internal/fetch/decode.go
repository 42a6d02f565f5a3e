package fetch

import (
	"time"

	"github.com/pulseboard/assist/internal/docstore"
	"github.com/pulseboard/assist/internal/model"
)

// Field accessors tolerate the two shapes documents arrive in: native
// Go values from the in-memory store and JSON-decoded values (float64
// numbers, RFC 3339 time strings) from the SQLite adapter.

func fieldString(fields map[string]any, key string) string {
	if s, ok := fields[key].(string); ok {
		return s
	}
	return ""
}

func fieldInt(fields map[string]any, key string) int {
	switch n := fields[key].(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

func fieldTime(fields map[string]any, key string) (time.Time, bool) {
	switch v := fields[key].(type) {
	case time.Time:
		return v, true
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func fieldTimePtr(fields map[string]any, key string) *time.Time {
	if t, ok := fieldTime(fields, key); ok {
		return &t
	}
	return nil
}

func fieldStrings(fields map[string]any, key string) []string {
	switch v := fields[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func decodeWorkspace(doc docstore.Document) model.Workspace {
	return model.Workspace{
		ID:             doc.ID,
		OrganizationID: fieldString(doc.Fields, "organizationId"),
		Name:           fieldString(doc.Fields, "name"),
		Emoji:          fieldString(doc.Fields, "emoji"),
		Description:    fieldString(doc.Fields, "description"),
	}
}

func decodeProject(doc docstore.Document) model.Project {
	p := model.Project{
		ID:          doc.ID,
		WorkspaceID: fieldString(doc.Fields, "workspaceId"),
		Name:        fieldString(doc.Fields, "name"),
		Status:      model.ProjectStatus(fieldString(doc.Fields, "status")),
		Health:      model.ProjectHealth(fieldString(doc.Fields, "health")),
		Progress:    fieldInt(doc.Fields, "progress"),
		DueDate:     fieldTimePtr(doc.Fields, "dueDate"),
	}
	if t, ok := fieldTime(doc.Fields, "updatedAt"); ok {
		p.UpdatedAt = t
	}
	// Normalize at the boundary rather than propagating odd shapes.
	if p.Health == "" {
		p.Health = model.HealthUnknown
	}
	if p.Progress < 0 {
		p.Progress = 0
	} else if p.Progress > 100 {
		p.Progress = 100
	}
	return p
}

func decodeTask(doc docstore.Document) model.Task {
	t := model.Task{
		ID:           doc.ID,
		ProjectID:    fieldString(doc.Fields, "projectId"),
		WorkspaceID:  fieldString(doc.Fields, "workspaceId"),
		Title:        fieldString(doc.Fields, "title"),
		Status:       model.TaskStatus(fieldString(doc.Fields, "status")),
		Priority:     model.TaskPriority(fieldString(doc.Fields, "priority")),
		DueDate:      fieldTimePtr(doc.Fields, "dueDate"),
		AssignedTo:   fieldStrings(doc.Fields, "assignedTo"),
		Dependencies: fieldStrings(doc.Fields, "dependencies"),
	}
	if ts, ok := fieldTime(doc.Fields, "updatedAt"); ok {
		t.UpdatedAt = ts
	}
	// completedAt is only meaningful on completed tasks.
	if t.Status == model.TaskCompleted {
		t.CompletedAt = fieldTimePtr(doc.Fields, "completedAt")
	}
	return t
}

func decodeMessage(doc docstore.Document) model.ChatMessage {
	msg := model.ChatMessage{
		ID:          doc.ID,
		WorkspaceID: fieldString(doc.Fields, "workspaceId"),
		UserID:      fieldString(doc.Fields, "userId"),
		Content:     fieldString(doc.Fields, "content"),
	}
	if t, ok := fieldTime(doc.Fields, "createdAt"); ok {
		msg.CreatedAt = t
	}
	return msg
}

func decodeMembership(doc docstore.Document) model.WorkspaceMember {
	m := model.WorkspaceMember{
		UserID:      fieldString(doc.Fields, "userId"),
		WorkspaceID: fieldString(doc.Fields, "workspaceId"),
		Role:        model.MemberRole(fieldString(doc.Fields, "role")),
		Status:      fieldString(doc.Fields, "status"),
	}
	if t, ok := fieldTime(doc.Fields, "lastActiveAt"); ok {
		m.LastActiveAt = t
	}
	return m
}

func decodeProfile(doc docstore.Document) model.UserProfile {
	return model.UserProfile{
		UserID:      doc.ID,
		DisplayName: fieldString(doc.Fields, "displayName"),
		Email:       fieldString(doc.Fields, "email"),
	}
}

func decodeActivity(doc docstore.Document) model.Activity {
	a := model.Activity{
		ID:          doc.ID,
		UserID:      fieldString(doc.Fields, "userId"),
		WorkspaceID: fieldString(doc.Fields, "workspaceId"),
		Action:      fieldString(doc.Fields, "action"),
	}
	if t, ok := fieldTime(doc.Fields, "createdAt"); ok {
		a.CreatedAt = t
	}
	return a
}
