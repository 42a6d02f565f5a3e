// Package assemble orchestrates fetch, summarize, and cache into the
// workspace contexts the assistant primes the language model with.
//
// The two public operations deliberately never return errors: a failed
// pipeline degrades to an absent context (single workspace) or an empty
// fallback (cross-workspace), per the product's graceful-degradation
// contract. Failures are logged and counted, not surfaced.
package assemble

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pulseboard/assist/internal/cache"
	"github.com/pulseboard/assist/internal/fetch"
	"github.com/pulseboard/assist/internal/metrics"
	"github.com/pulseboard/assist/internal/model"
	"github.com/pulseboard/assist/internal/summary"
)

// Defaults for the assembler's bounds.
const (
	DefaultCacheCapacity = 100
	DefaultBaseTTL       = 5 * time.Minute
	DefaultMaxWorkspaces = 5

	maxPriorityAlerts = 5
)

// FallbackGlobalSummary is returned when cross-workspace aggregation
// fails outright.
const FallbackGlobalSummary = "Workspace data is currently unavailable"

// Cache key namespaces. Keys are deterministic and tenant-scoped.
const (
	workspaceKeyPrefix = "workspace_context:"
	crossKeyPrefix     = "cross_workspace_context:"
)

// WorkspaceContextKey builds the cache key for one workspace's context.
func WorkspaceContextKey(orgID, workspaceID string) string {
	return workspaceKeyPrefix + orgID + ":" + workspaceID
}

// CrossWorkspaceKey builds the cache key for a user's cross-workspace
// context.
func CrossWorkspaceKey(orgID, userID string) string {
	return crossKeyPrefix + orgID + ":" + userID
}

// Assembler builds and caches workspace contexts.
type Assembler struct {
	fetcher       *fetch.Fetcher
	wsCache       *cache.Cache[*WorkspaceContext]
	crossCache    *cache.Cache[*CrossWorkspaceContext]
	tuning        summary.Tuning
	baseTTL       time.Duration
	maxWorkspaces int
	metrics       *metrics.Metrics
	now           func() time.Time
	logger        zerolog.Logger
}

// Options configures an Assembler beyond its required dependencies.
type Options struct {
	CacheCapacity int
	BaseTTL       time.Duration
	MaxWorkspaces int
	Tuning        summary.Tuning
	Clock         func() time.Time
}

// New creates an Assembler. Zero-valued Options fields fall back to the
// package defaults.
func New(fetcher *fetch.Fetcher, m *metrics.Metrics, logger zerolog.Logger, opts Options) *Assembler {
	if opts.CacheCapacity <= 0 {
		opts.CacheCapacity = DefaultCacheCapacity
	}
	if opts.BaseTTL <= 0 {
		opts.BaseTTL = DefaultBaseTTL
	}
	if opts.MaxWorkspaces <= 0 {
		opts.MaxWorkspaces = DefaultMaxWorkspaces
	}
	if opts.Tuning == (summary.Tuning{}) {
		opts.Tuning = summary.DefaultTuning()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	return &Assembler{
		fetcher:       fetcher,
		wsCache:       cache.New[*WorkspaceContext](opts.CacheCapacity, cache.WithClock[*WorkspaceContext](opts.Clock)),
		crossCache:    cache.New[*CrossWorkspaceContext](opts.CacheCapacity, cache.WithClock[*CrossWorkspaceContext](opts.Clock)),
		tuning:        opts.Tuning,
		baseTTL:       opts.BaseTTL,
		maxWorkspaces: opts.MaxWorkspaces,
		metrics:       m,
		now:           opts.Clock,
		logger:        logger.With().Str("component", "assemble").Logger(),
	}
}

// StartJanitors runs both caches' expiry sweeps until ctx is cancelled.
func (a *Assembler) StartJanitors(ctx context.Context, interval time.Duration) {
	go a.wsCache.Janitor(ctx, interval, a.logger)
	go a.crossCache.Janitor(ctx, interval, a.logger)
}

// OptimizedWorkspaceContext returns the token-bounded context for one
// workspace, from cache when fresh. Returns nil when the workspace does
// not exist or the pipeline failed; callers must treat nil as "context
// unavailable now", not as an empty workspace.
func (a *Assembler) OptimizedWorkspaceContext(ctx context.Context, orgID, workspaceID string) *WorkspaceContext {
	key := WorkspaceContextKey(orgID, workspaceID)
	if cached, ok := a.wsCache.Get(key); ok {
		a.metrics.RecordContextBuild("workspace", "cache_hit")
		return cached
	}

	start := a.now()
	built, err := a.buildWorkspaceContext(ctx, orgID, workspaceID)
	if err != nil {
		a.logger.Error().Err(err).
			Str("org_id", orgID).
			Str("workspace_id", workspaceID).
			Msg("workspace context build failed")
		a.metrics.RecordContextBuild("workspace", "error")
		return nil
	}
	if built == nil {
		a.metrics.RecordContextBuild("workspace", "absent")
		return nil
	}

	recent := a.fetcher.RecentMessageCount(ctx, workspaceID)
	a.wsCache.Set(key, built, a.activityTTL(recent))
	a.metrics.RecordContextBuild("workspace", "fresh")
	a.metrics.ObserveContextBuild("workspace", a.now().Sub(start).Seconds())
	a.metrics.SetCacheEntries("workspace_context", float64(a.wsCache.Len()))
	return built
}

func (a *Assembler) buildWorkspaceContext(ctx context.Context, orgID, workspaceID string) (*WorkspaceContext, error) {
	ws, err := a.fetcher.Workspace(ctx, orgID, workspaceID)
	if err != nil {
		return nil, err
	}
	if ws == nil {
		return nil, nil
	}

	bundle, err := a.fetcher.WorkspaceData(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	now := a.now()
	wc := &WorkspaceContext{
		Workspace:       *ws,
		ProjectsSummary: summary.Projects(bundle.Projects),
		TasksSummary:    summary.Tasks(bundle.Tasks, now),
		RecentMessages:  bundle.Messages,
		TeamSummary:     summary.Team(bundle.Members),
		Members:         bundle.Members,
		KeyMetrics:      computeKeyMetrics(bundle, now),
		UrgentItems:     summary.UrgentItems(bundle.Projects, bundle.Tasks, now),
		BuiltAt:         now,
	}
	wc.ContextSize = summary.EstimateTokens(wc)
	return wc, nil
}

func computeKeyMetrics(bundle *fetch.Bundle, now time.Time) KeyMetrics {
	km := KeyMetrics{
		TotalProjects: len(bundle.Projects),
		TotalTasks:    len(bundle.Tasks),
		TeamSize:      len(bundle.Members),
	}
	for _, p := range bundle.Projects {
		if p.Status == model.ProjectActive {
			km.ActiveProjects++
		}
	}
	for _, t := range bundle.Tasks {
		if t.Completed() {
			km.CompletedTasks++
		}
		if t.Overdue(now) {
			km.OverdueTasks++
		}
	}
	return km
}

// activityTTL scales the base TTL inversely with recent activity: busy
// workspaces go stale fast, quiet ones can be cached longer. A
// freshness/cost trade-off, not a correctness guarantee.
func (a *Assembler) activityTTL(recentMessages int) time.Duration {
	factor := a.tuning.TTLQuietFactor
	switch {
	case recentMessages > a.tuning.TTLBusyThreshold:
		factor = a.tuning.TTLBusyFactor
	case recentMessages > a.tuning.TTLWarmThreshold:
		factor = a.tuning.TTLWarmFactor
	}
	return time.Duration(float64(a.baseTTL) * factor)
}

// CrossWorkspaceContext aggregates the user's most recently active
// workspaces (capped) into one context. It never returns nil: a total
// failure yields an empty context with the fallback summary.
func (a *Assembler) CrossWorkspaceContext(ctx context.Context, orgID, userID string) *CrossWorkspaceContext {
	key := CrossWorkspaceKey(orgID, userID)
	if cached, ok := a.crossCache.Get(key); ok {
		a.metrics.RecordContextBuild("cross_workspace", "cache_hit")
		return cached
	}

	start := a.now()
	memberships, err := a.fetcher.ActiveMemberships(ctx, orgID, userID, a.maxWorkspaces)
	if err != nil {
		a.logger.Error().Err(err).
			Str("org_id", orgID).
			Str("user_id", userID).
			Msg("membership lookup failed, returning fallback cross-workspace context")
		a.metrics.RecordContextBuild("cross_workspace", "error")
		return &CrossWorkspaceContext{
			Workspaces:     []*WorkspaceContext{},
			GlobalSummary:  FallbackGlobalSummary,
			PriorityAlerts: []string{},
		}
	}

	// Fan out per workspace; results land at their membership index so
	// alert truncation follows the resolved membership order.
	fetched := make([]*WorkspaceContext, len(memberships))
	var wg sync.WaitGroup
	for i, m := range memberships {
		wg.Add(1)
		go func(i int, workspaceID string) {
			defer wg.Done()
			fetched[i] = a.OptimizedWorkspaceContext(ctx, orgID, workspaceID)
		}(i, m.WorkspaceID)
	}
	wg.Wait()

	contexts := make([]*WorkspaceContext, 0, len(fetched))
	for _, wc := range fetched {
		if wc != nil {
			contexts = append(contexts, wc)
		}
	}

	cw := &CrossWorkspaceContext{
		Workspaces:     contexts,
		GlobalSummary:  globalSummary(contexts),
		PriorityAlerts: priorityAlerts(contexts),
	}
	for _, wc := range contexts {
		cw.TotalContextSize += wc.ContextSize
	}

	a.crossCache.Set(key, cw, a.baseTTL)
	a.metrics.RecordContextBuild("cross_workspace", "fresh")
	a.metrics.ObserveContextBuild("cross_workspace", a.now().Sub(start).Seconds())
	return cw
}

func globalSummary(contexts []*WorkspaceContext) string {
	if len(contexts) == 0 {
		return FallbackGlobalSummary
	}
	var active, open, overdue int
	for _, wc := range contexts {
		active += wc.KeyMetrics.ActiveProjects
		open += wc.KeyMetrics.TotalTasks - wc.KeyMetrics.CompletedTasks
		overdue += wc.KeyMetrics.OverdueTasks
	}
	return fmt.Sprintf("%d workspaces: %d active projects, %d open tasks, %d overdue",
		len(contexts), active, open, overdue)
}

// priorityAlerts collects workspace-prefixed alerts in workspace order,
// silently truncated at maxPriorityAlerts.
func priorityAlerts(contexts []*WorkspaceContext) []string {
	alerts := make([]string, 0, maxPriorityAlerts)
	for _, wc := range contexts {
		if wc.KeyMetrics.OverdueTasks > 0 {
			alerts = append(alerts, fmt.Sprintf("%s: %d overdue", wc.Workspace.Name, wc.KeyMetrics.OverdueTasks))
			if len(alerts) == maxPriorityAlerts {
				return alerts
			}
		}
		for _, item := range wc.UrgentItems {
			alerts = append(alerts, wc.Workspace.Name+": "+item)
			if len(alerts) == maxPriorityAlerts {
				return alerts
			}
		}
	}
	return alerts
}

// InvalidateWorkspace drops the workspace's cached context plus every
// cross-workspace context in its organization, which may embed it.
// Callers invoke this after a mutation they know about; nothing here is
// wired to store writes.
func (a *Assembler) InvalidateWorkspace(orgID, workspaceID string) {
	a.wsCache.Invalidate(WorkspaceContextKey(orgID, workspaceID))
	a.crossCache.InvalidatePrefix(crossKeyPrefix + orgID + ":")
}

// InvalidateUser drops one user's cached cross-workspace context.
func (a *Assembler) InvalidateUser(orgID, userID string) {
	a.crossCache.Invalidate(CrossWorkspaceKey(orgID, userID))
}
