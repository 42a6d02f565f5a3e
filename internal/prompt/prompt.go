// Package prompt renders assembled workspace contexts into the final
// instruction string for the language model. Rendering is stateless and
// deterministic: the same context and message always produce the same
// prompt.
package prompt

import (
	"fmt"
	"strings"

	"github.com/pulseboard/assist/internal/assemble"
	"github.com/pulseboard/assist/internal/model"
)

// maxHistoryMessages caps the condensed chat-history block.
const maxHistoryMessages = 5

const roleFraming = "You are the Pulseboard assistant, embedded in a project-management workspace. " +
	"You help the team understand project state, spot risks, and decide what to do next."

const instructionBlock = "Instructions:\n" +
	"- Be concise and direct.\n" +
	"- Reference concrete projects, tasks, and people from the context above.\n" +
	"- Keep your answer under ~200 words."

// Workspace renders the single-workspace prompt: context sections in
// fixed order, then the chat history, the instruction block, and the
// user's message last.
func Workspace(wc *assemble.WorkspaceContext, userMessage string) string {
	var b strings.Builder

	b.WriteString(roleFraming)
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "Workspace: %s %s\n", wc.Workspace.Name, wc.Workspace.Emoji)
	if wc.Workspace.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", wc.Workspace.Description)
	}
	fmt.Fprintf(&b, "Team size: %d\n", wc.KeyMetrics.TeamSize)
	fmt.Fprintf(&b, "Projects: %d active of %d\n", wc.KeyMetrics.ActiveProjects, wc.KeyMetrics.TotalProjects)
	fmt.Fprintf(&b, "Tasks: %d completed of %d\n", wc.KeyMetrics.CompletedTasks, wc.KeyMetrics.TotalTasks)
	if wc.KeyMetrics.OverdueTasks > 0 {
		fmt.Fprintf(&b, "Warning: %d tasks are overdue.\n", wc.KeyMetrics.OverdueTasks)
	}

	b.WriteString("\n")
	fmt.Fprintf(&b, "Project summary: %s\n", wc.ProjectsSummary)
	fmt.Fprintf(&b, "Task summary: %s\n", wc.TasksSummary)
	fmt.Fprintf(&b, "Team: %s\n", wc.TeamSummary)
	if len(wc.UrgentItems) > 0 {
		fmt.Fprintf(&b, "Urgent: %s\n", strings.Join(wc.UrgentItems, "; "))
	}

	writeHistory(&b, wc)

	b.WriteString("\n")
	b.WriteString(instructionBlock)
	b.WriteString("\n\nUser message: ")
	b.WriteString(userMessage)

	return b.String()
}

// CrossWorkspace renders the multi-workspace prompt. A user with zero
// workspaces gets a dedicated onboarding prompt; that branch is a
// deliberate special case, not a degenerate form of the normal one.
func CrossWorkspace(cw *assemble.CrossWorkspaceContext, userMessage string) string {
	if len(cw.Workspaces) == 0 {
		return onboarding(userMessage)
	}

	var b strings.Builder
	b.WriteString(roleFraming)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Overview: %s\n", cw.GlobalSummary)

	for _, wc := range cw.Workspaces {
		fmt.Fprintf(&b, "\nWorkspace: %s %s\n", wc.Workspace.Name, wc.Workspace.Emoji)
		fmt.Fprintf(&b, "  Projects: %s\n", wc.ProjectsSummary)
		fmt.Fprintf(&b, "  Tasks: %s\n", wc.TasksSummary)
		if len(wc.UrgentItems) > 0 {
			fmt.Fprintf(&b, "  Urgent: %s\n", strings.Join(wc.UrgentItems, "; "))
		}
	}

	if len(cw.PriorityAlerts) > 0 {
		b.WriteString("\nPriority alerts:\n")
		for _, alert := range cw.PriorityAlerts {
			fmt.Fprintf(&b, "- %s\n", alert)
		}
	}

	b.WriteString("\n")
	b.WriteString(instructionBlock)
	b.WriteString("\n\nUser message: ")
	b.WriteString(userMessage)

	return b.String()
}

func onboarding(userMessage string) string {
	var b strings.Builder
	b.WriteString(roleFraming)
	b.WriteString("\n\n")
	b.WriteString("The user has no workspace data yet. Welcome them to Pulseboard, ")
	b.WriteString("briefly explain that workspaces hold projects, tasks, and team chat, ")
	b.WriteString("and suggest creating a first workspace or asking an admin for an invite. ")
	b.WriteString("Do not invent projects or tasks.\n")
	b.WriteString("\n")
	b.WriteString(instructionBlock)
	b.WriteString("\n\nUser message: ")
	b.WriteString(userMessage)
	return b.String()
}

// writeHistory renders the last few chat messages as "speaker: content"
// lines, resolving speakers to display names where the member list
// allows.
func writeHistory(b *strings.Builder, wc *assemble.WorkspaceContext) {
	msgs := wc.RecentMessages
	if len(msgs) == 0 {
		return
	}
	if len(msgs) > maxHistoryMessages {
		msgs = msgs[len(msgs)-maxHistoryMessages:]
	}

	names := make(map[string]string, len(wc.Members))
	for _, m := range wc.Members {
		names[m.UserID] = m.Profile.DisplayName
	}

	b.WriteString("\nRecent chat:\n")
	for _, msg := range msgs {
		fmt.Fprintf(b, "%s: %s\n", speaker(msg, names), msg.Content)
	}
}

func speaker(msg model.ChatMessage, names map[string]string) string {
	if name, ok := names[msg.UserID]; ok && name != "" {
		return name
	}
	return msg.UserID
}
