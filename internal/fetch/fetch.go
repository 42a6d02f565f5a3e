// Package fetch retrieves bounded, recency-ordered slices of workspace
// data from the document store. All reads go through here; the rest of
// the core only ever sees normalized model types.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/pulseboard/assist/internal/docstore"
	"github.com/pulseboard/assist/internal/metrics"
	"github.com/pulseboard/assist/internal/model"
	"github.com/pulseboard/assist/internal/retry"
)

// Placeholder profile substituted when a membership references a user
// with no profile document. A single missing profile must not abort the
// whole aggregation.
const (
	UnknownDisplayName = "Unknown User"
	UnknownEmail       = "unknown@pulseboard.local"
)

// Limits caps how many records each sub-fetch returns.
type Limits struct {
	Projects      int
	Tasks         int
	Messages      int
	Members       int
	ActivityProbe int // recency-signal probe, not surfaced to prompts
}

// DefaultLimits returns the shipped per-type fetch caps.
func DefaultLimits() Limits {
	return Limits{Projects: 10, Tasks: 20, Messages: 10, Members: 20, ActivityProbe: 50}
}

// Bundle is the result of one workspace's fan-out fetch.
type Bundle struct {
	Projects []model.Project
	Tasks    []model.Task
	Messages []model.ChatMessage
	Members  []model.Member
}

// Fetcher reads workspace data through the document store interface.
type Fetcher struct {
	store   docstore.Store
	limits  Limits
	timeout time.Duration
	retry   retry.Config
	metrics *metrics.Metrics
	now     func() time.Time
	logger  zerolog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(f *Fetcher) { f.now = now }
}

// WithRetry overrides the store retry policy.
func WithRetry(cfg retry.Config) Option {
	return func(f *Fetcher) {
		cfg.Retryable = transient
		f.retry = cfg
	}
}

// WithMetrics enables per-collection fetch error counting.
func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Fetcher) { f.metrics = m }
}

// New creates a Fetcher. timeout bounds each sub-fetch of the fan-out.
func New(store docstore.Store, limits Limits, timeout time.Duration, logger zerolog.Logger, opts ...Option) *Fetcher {
	rc := retry.DefaultConfig()
	rc.Retryable = transient
	f := &Fetcher{
		store:   store,
		limits:  limits,
		timeout: timeout,
		retry:   rc,
		now:     time.Now,
		logger:  logger.With().Str("component", "fetch").Logger(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// transient reports whether a store error is worth retrying. Missing
// indexes and missing documents are handled by dedicated paths, and
// context errors mean the caller already gave up.
func transient(err error) bool {
	return !errors.Is(err, docstore.ErrIndexRequired) &&
		!errors.Is(err, docstore.ErrNotFound) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

// Workspace fetches workspace metadata. Returns (nil, nil) when the
// workspace does not exist or belongs to a different organization.
func (f *Fetcher) Workspace(ctx context.Context, orgID, workspaceID string) (*model.Workspace, error) {
	doc, err := f.store.GetByID(ctx, docstore.CollectionWorkspaces, workspaceID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("workspace %s: %w", workspaceID, err)
	}
	ws := decodeWorkspace(*doc)
	if ws.OrganizationID != orgID {
		f.logger.Warn().
			Str("workspace_id", workspaceID).
			Str("org_id", orgID).
			Msg("workspace belongs to a different organization, treating as absent")
		return nil, nil
	}
	return &ws, nil
}

// Projects returns the workspace's projects, newest-updated first.
func (f *Fetcher) Projects(ctx context.Context, workspaceID string) ([]model.Project, error) {
	docs, err := f.queryRecent(ctx, docstore.Query{
		Collection: docstore.CollectionProjects,
		Filters:    []docstore.Filter{{Field: "workspaceId", Value: workspaceID}},
		OrderBy:    "updatedAt",
		Descending: true,
		Limit:      f.limits.Projects,
	})
	if err != nil {
		return nil, err
	}
	out := make([]model.Project, 0, len(docs))
	for _, doc := range docs {
		out = append(out, decodeProject(doc))
	}
	return out, nil
}

// Tasks returns the workspace's tasks, newest-updated first.
func (f *Fetcher) Tasks(ctx context.Context, workspaceID string) ([]model.Task, error) {
	docs, err := f.queryRecent(ctx, docstore.Query{
		Collection: docstore.CollectionTasks,
		Filters:    []docstore.Filter{{Field: "workspaceId", Value: workspaceID}},
		OrderBy:    "updatedAt",
		Descending: true,
		Limit:      f.limits.Tasks,
	})
	if err != nil {
		return nil, err
	}
	out := make([]model.Task, 0, len(docs))
	for _, doc := range docs {
		out = append(out, decodeTask(doc))
	}
	return out, nil
}

// Messages returns the most recent chat messages in chronological order
// (fetched newest-first, then reversed).
func (f *Fetcher) Messages(ctx context.Context, workspaceID string) ([]model.ChatMessage, error) {
	docs, err := f.queryRecent(ctx, docstore.Query{
		Collection: docstore.CollectionMessages,
		Filters:    []docstore.Filter{{Field: "workspaceId", Value: workspaceID}},
		OrderBy:    "createdAt",
		Descending: true,
		Limit:      f.limits.Messages,
	})
	if err != nil {
		return nil, err
	}
	out := make([]model.ChatMessage, len(docs))
	for i, doc := range docs {
		out[len(docs)-1-i] = decodeMessage(doc)
	}
	return out, nil
}

// Members returns the workspace's active members joined to their
// profiles. A missing profile yields the placeholder, never a failure.
func (f *Fetcher) Members(ctx context.Context, workspaceID string) ([]model.Member, error) {
	docs, err := f.query(ctx, docstore.Query{
		Collection: docstore.CollectionMembers,
		Filters: []docstore.Filter{
			{Field: "workspaceId", Value: workspaceID},
			{Field: "status", Value: model.MemberStatusActive},
		},
		Limit: f.limits.Members,
	})
	if err != nil {
		return nil, err
	}

	out := make([]model.Member, 0, len(docs))
	for _, doc := range docs {
		membership := decodeMembership(doc)
		member := model.Member{WorkspaceMember: membership}

		profileDoc, perr := f.store.GetByID(ctx, docstore.CollectionUserProfiles, membership.UserID)
		switch {
		case perr == nil:
			member.Profile = decodeProfile(*profileDoc)
		case errors.Is(perr, docstore.ErrNotFound):
			member.Profile = placeholderProfile(membership.UserID)
		default:
			f.logger.Warn().Err(perr).
				Str("user_id", membership.UserID).
				Msg("profile fetch failed, using placeholder")
			member.Profile = placeholderProfile(membership.UserID)
		}
		out = append(out, member)
	}
	return out, nil
}

func placeholderProfile(userID string) model.UserProfile {
	return model.UserProfile{UserID: userID, DisplayName: UnknownDisplayName, Email: UnknownEmail}
}

// ActiveMemberships returns the user's active memberships in the
// organization, most recently active first, capped at limit.
func (f *Fetcher) ActiveMemberships(ctx context.Context, orgID, userID string, limit int) ([]model.WorkspaceMember, error) {
	docs, err := f.queryRecent(ctx, docstore.Query{
		Collection: docstore.CollectionMembers,
		Filters: []docstore.Filter{
			{Field: "organizationId", Value: orgID},
			{Field: "userId", Value: userID},
			{Field: "status", Value: model.MemberStatusActive},
		},
		OrderBy:    "lastActiveAt",
		Descending: true,
		Limit:      limit,
	})
	if err != nil {
		return nil, err
	}
	out := make([]model.WorkspaceMember, 0, len(docs))
	for _, doc := range docs {
		out = append(out, decodeMembership(doc))
	}
	return out, nil
}

// RecentMessageCount counts chat messages from the last 24 hours, up to
// the activity probe limit. Errors degrade to zero: the count only
// tunes cache TTL and must never block a context build.
func (f *Fetcher) RecentMessageCount(ctx context.Context, workspaceID string) int {
	docs, err := f.queryRecent(ctx, docstore.Query{
		Collection: docstore.CollectionMessages,
		Filters:    []docstore.Filter{{Field: "workspaceId", Value: workspaceID}},
		OrderBy:    "createdAt",
		Descending: true,
		Limit:      f.limits.ActivityProbe,
	})
	if err != nil {
		f.logger.Warn().Err(err).
			Str("workspace_id", workspaceID).
			Msg("activity probe failed, assuming quiet workspace")
		return 0
	}
	cutoff := f.now().Add(-24 * time.Hour)
	count := 0
	for _, doc := range docs {
		if t, ok := fieldTime(doc.Fields, "createdAt"); ok && t.After(cutoff) {
			count++
		}
	}
	return count
}

// RecentActivities returns the workspace's newest activity records.
func (f *Fetcher) RecentActivities(ctx context.Context, workspaceID string, limit int) ([]model.Activity, error) {
	docs, err := f.queryRecent(ctx, docstore.Query{
		Collection: docstore.CollectionActivities,
		Filters:    []docstore.Filter{{Field: "workspaceId", Value: workspaceID}},
		OrderBy:    "createdAt",
		Descending: true,
		Limit:      limit,
	})
	if err != nil {
		return nil, err
	}
	out := make([]model.Activity, 0, len(docs))
	for _, doc := range docs {
		out = append(out, decodeActivity(doc))
	}
	return out, nil
}

// WorkspaceData runs the four sub-fetches for one workspace
// concurrently and joins on all of them. A timed-out sub-fetch degrades
// to empty; any other sub-fetch error fails the bundle.
func (f *Fetcher) WorkspaceData(ctx context.Context, workspaceID string) (*Bundle, error) {
	var bundle Bundle
	results := make(chan error, 4)

	run := func(name string, fn func(ctx context.Context) error) {
		go func() {
			sub, cancel := context.WithTimeout(ctx, f.timeout)
			defer cancel()

			err := fn(sub)
			if err != nil && errors.Is(err, context.DeadlineExceeded) {
				f.logger.Warn().
					Str("fetch", name).
					Str("workspace_id", workspaceID).
					Dur("timeout", f.timeout).
					Msg("sub-fetch timed out, degrading to empty")
				err = nil
			}
			if err != nil {
				err = fmt.Errorf("%s fetch for workspace %s: %w", name, workspaceID, err)
			}
			results <- err
		}()
	}

	run("projects", func(ctx context.Context) error {
		var err error
		bundle.Projects, err = f.Projects(ctx, workspaceID)
		return err
	})
	run("tasks", func(ctx context.Context) error {
		var err error
		bundle.Tasks, err = f.Tasks(ctx, workspaceID)
		return err
	})
	run("messages", func(ctx context.Context) error {
		var err error
		bundle.Messages, err = f.Messages(ctx, workspaceID)
		return err
	})
	run("members", func(ctx context.Context) error {
		var err error
		bundle.Members, err = f.Members(ctx, workspaceID)
		return err
	})

	var firstErr error
	for i := 0; i < 4; i++ {
		if err := <-results; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return &bundle, nil
}

// query wraps store.Query with the transient-error retry policy.
func (f *Fetcher) query(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	var docs []docstore.Document
	err := retry.Do(ctx, f.retry, func(ctx context.Context) error {
		var qerr error
		docs, qerr = f.store.Query(ctx, q)
		return qerr
	})
	if err != nil && !errors.Is(err, docstore.ErrIndexRequired) && f.metrics != nil {
		f.metrics.RecordFetchError(q.Collection)
	}
	return docs, err
}

// queryRecent issues an ordered query and falls back to an unordered
// query plus in-memory sort when the store reports a missing composite
// index. The fallback applies the limit before sorting, so with more
// matching records than the limit it can return a different slice than
// the indexed path; a known, accepted approximation.
func (f *Fetcher) queryRecent(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	docs, err := f.query(ctx, q)
	if err == nil {
		return docs, nil
	}
	if !errors.Is(err, docstore.ErrIndexRequired) {
		return nil, err
	}

	f.logger.Warn().
		Str("collection", q.Collection).
		Str("order_by", q.OrderBy).
		Msg("ordered query unsupported, sorting in memory")

	fallback := q
	fallback.OrderBy = ""
	fallback.Descending = false
	docs, err = f.query(ctx, fallback)
	if err != nil {
		return nil, err
	}
	sortDocsByField(docs, q.OrderBy, q.Descending)
	if q.Limit > 0 && len(docs) > q.Limit {
		docs = docs[:q.Limit]
	}
	return docs, nil
}

func sortDocsByField(docs []docstore.Document, field string, descending bool) {
	sort.SliceStable(docs, func(i, j int) bool {
		if descending {
			return docFieldLess(docs[j], docs[i], field)
		}
		return docFieldLess(docs[i], docs[j], field)
	})
}

func docFieldLess(a, b docstore.Document, field string) bool {
	at, aok := fieldTime(a.Fields, field)
	bt, bok := fieldTime(b.Fields, field)
	if aok && bok {
		return at.Before(bt)
	}
	return fieldString(a.Fields, field) < fieldString(b.Fields, field)
}
