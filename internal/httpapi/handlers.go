package httpapi

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/pulseboard/assist/internal/assemble"
	"github.com/pulseboard/assist/internal/health"
	"github.com/pulseboard/assist/internal/insights"
	"github.com/pulseboard/assist/internal/metrics"
	"github.com/pulseboard/assist/internal/prompt"
)

// Handlers implements the assistant API endpoints.
type Handlers struct {
	assembler *assemble.Assembler
	engine    *insights.Engine
	checker   *health.Checker
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

// NewHandlers creates the handler set.
func NewHandlers(a *assemble.Assembler, e *insights.Engine, checker *health.Checker, m *metrics.Metrics, logger zerolog.Logger) *Handlers {
	return &Handlers{
		assembler: a,
		engine:    e,
		checker:   checker,
		metrics:   m,
		logger:    logger.With().Str("component", "httpapi").Logger(),
	}
}

type promptRequest struct {
	Message string `json:"message"`
}

type promptResponse struct {
	Prompt      string `json:"prompt"`
	ContextSize int    `json:"contextSize"`
}

// WorkspacePrompt renders the single-workspace assistant prompt.
// An unavailable context is a retryable condition, not an empty
// workspace, so it maps to 503.
func (h *Handlers) WorkspacePrompt(c *fiber.Ctx) error {
	orgID, _ := tenant(c)
	workspaceID := c.Params("id")

	var req promptRequest
	if err := c.BodyParser(&req); err != nil || req.Message == "" {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_request", "Bad Request",
			"Body must be JSON with a non-empty message field")
	}

	wc := h.assembler.OptimizedWorkspaceContext(c.Context(), orgID, workspaceID)
	if wc == nil {
		return problemResponse(c, fiber.StatusServiceUnavailable,
			"context_unavailable", "Context Unavailable",
			"Workspace context could not be built right now; try again")
	}

	h.metrics.RecordPrompt("workspace")
	return c.JSON(promptResponse{
		Prompt:      prompt.Workspace(wc, req.Message),
		ContextSize: wc.ContextSize,
	})
}

// AssistantPrompt renders the cross-workspace prompt for the calling
// user. This path always succeeds: a user with no data gets the
// onboarding prompt rather than an error.
func (h *Handlers) AssistantPrompt(c *fiber.Ctx) error {
	orgID, userID := tenant(c)

	var req promptRequest
	if err := c.BodyParser(&req); err != nil || req.Message == "" {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_request", "Bad Request",
			"Body must be JSON with a non-empty message field")
	}

	cw := h.assembler.CrossWorkspaceContext(c.Context(), orgID, userID)
	h.metrics.RecordPrompt("cross_workspace")
	return c.JSON(promptResponse{
		Prompt:      prompt.CrossWorkspace(cw, req.Message),
		ContextSize: cw.TotalContextSize,
	})
}

// WorkspaceContext exposes the assembled context itself, for the
// dashboard and for debugging.
func (h *Handlers) WorkspaceContext(c *fiber.Ctx) error {
	orgID, _ := tenant(c)
	workspaceID := c.Params("id")

	wc := h.assembler.OptimizedWorkspaceContext(c.Context(), orgID, workspaceID)
	if wc == nil {
		return problemResponse(c, fiber.StatusServiceUnavailable,
			"context_unavailable", "Context Unavailable",
			"Workspace context could not be built right now; try again")
	}
	return c.JSON(wc)
}

// WorkspaceInsights returns the dashboard insight set. A missing
// workspace is 404; any other failure degrades to the generic
// fallback insights rather than an error.
func (h *Handlers) WorkspaceInsights(c *fiber.Ctx) error {
	orgID, _ := tenant(c)
	workspaceID := c.Params("id")
	displayName := c.Query("name")

	ins, err := h.engine.WorkspaceInsights(c.Context(), orgID, workspaceID, displayName)
	if errors.Is(err, insights.ErrWorkspaceNotFound) {
		return problemResponse(c, fiber.StatusNotFound,
			"workspace_not_found", "Not Found",
			"No such workspace in this organization")
	}
	if err != nil {
		h.logger.Warn().Err(err).
			Str("workspace_id", workspaceID).
			Msg("insights degraded to fallback")
		return c.JSON(insights.Fallback(time.Now(), displayName))
	}
	return c.JSON(ins)
}

// OrganizationInsights always degrades to fallback insights:
// organization-wide aggregation is not supported yet.
func (h *Handlers) OrganizationInsights(c *fiber.Ctx) error {
	orgID, userID := tenant(c)
	displayName := c.Query("name")

	if _, err := h.engine.OrganizationInsights(c.Context(), orgID, userID); err != nil {
		return c.JSON(insights.Fallback(time.Now(), displayName))
	}
	// Unreachable until organization aggregation ships.
	return c.JSON(insights.Fallback(time.Now(), displayName))
}

// InvalidateWorkspace drops cached contexts for a workspace after a
// mutation the caller knows about.
func (h *Handlers) InvalidateWorkspace(c *fiber.Ctx) error {
	orgID, _ := tenant(c)
	h.assembler.InvalidateWorkspace(orgID, c.Params("id"))
	return c.SendStatus(fiber.StatusNoContent)
}

// HealthDetail runs all registered dependency checks.
func (h *Handlers) HealthDetail(c *fiber.Ctx) error {
	results := h.checker.RunAll(c.Context())
	status := "ready"
	for _, s := range results {
		if s == health.StatusDown {
			status = "not_ready"
			break
		}
	}
	return c.JSON(fiber.Map{"status": status, "checks": results})
}

// problemResponse writes a structured error body.
func problemResponse(c *fiber.Ctx, status int, code, title, detail string) error {
	return c.Status(status).JSON(fiber.Map{
		"code":   code,
		"title":  title,
		"detail": detail,
	})
}
