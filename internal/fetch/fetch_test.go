package fetch

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulseboard/assist/internal/docstore"
	"github.com/pulseboard/assist/internal/model"
	"github.com/pulseboard/assist/internal/retry"
)

var testNow = time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

func noRetry() Option {
	return WithRetry(retry.Config{MaxAttempts: 1})
}

func newTestFetcher(t *testing.T, store docstore.Store, opts ...Option) *Fetcher {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return testNow }), noRetry()}, opts...)
	return New(store, DefaultLimits(), 3*time.Second, zerolog.Nop(), opts...)
}

func mustPut(t *testing.T, s docstore.Writer, collection string, doc docstore.Document) {
	t.Helper()
	require.NoError(t, s.Put(context.Background(), collection, doc))
}

func seedWorkspace(t *testing.T, s *docstore.MemoryStore) {
	t.Helper()
	mustPut(t, s, docstore.CollectionWorkspaces, docstore.Document{
		ID: "ws-1",
		Fields: map[string]any{
			"organizationId": "org-1",
			"name":           "Engineering",
			"emoji":          "🚀",
			"description":    "Build the product",
		},
	})
}

func TestWorkspaceFound(t *testing.T) {
	s := docstore.NewMemoryStore()
	seedWorkspace(t, s)
	f := newTestFetcher(t, s)

	ws, err := f.Workspace(context.Background(), "org-1", "ws-1")
	require.NoError(t, err)
	require.NotNil(t, ws)
	assert.Equal(t, "Engineering", ws.Name)
	assert.Equal(t, "org-1", ws.OrganizationID)
}

func TestWorkspaceAbsent(t *testing.T) {
	s := docstore.NewMemoryStore()
	seedWorkspace(t, s)
	f := newTestFetcher(t, s)

	ws, err := f.Workspace(context.Background(), "org-1", "ws-missing")
	require.NoError(t, err)
	assert.Nil(t, ws, "unknown workspace is absent, not an error")

	// A workspace in another organization is indistinguishable from a
	// missing one to the caller.
	ws, err = f.Workspace(context.Background(), "org-other", "ws-1")
	require.NoError(t, err)
	assert.Nil(t, ws)
}

func TestProjectsOrderedAndLimited(t *testing.T) {
	s := docstore.NewMemoryStore()
	for i := 0; i < 15; i++ {
		mustPut(t, s, docstore.CollectionProjects, docstore.Document{
			ID: fmt.Sprintf("p%02d", i),
			Fields: map[string]any{
				"workspaceId": "ws-1",
				"name":        fmt.Sprintf("Project %d", i),
				"status":      "active",
				"health":      "healthy",
				"progress":    i,
				"updatedAt":   testNow.Add(-time.Duration(i) * time.Hour),
			},
		})
	}
	f := newTestFetcher(t, s)

	projects, err := f.Projects(context.Background(), "ws-1")
	require.NoError(t, err)
	require.Len(t, projects, 10, "capped at the project limit")
	assert.Equal(t, "p00", projects[0].ID, "newest-updated first")
	assert.Equal(t, "p09", projects[9].ID)
}

func TestProjectDecodeNormalization(t *testing.T) {
	s := docstore.NewMemoryStore()
	mustPut(t, s, docstore.CollectionProjects, docstore.Document{
		ID: "p1",
		Fields: map[string]any{
			"workspaceId": "ws-1",
			"name":        "Odd",
			"status":      "active",
			"progress":    250,
			"updatedAt":   testNow,
		},
	})
	f := newTestFetcher(t, s)

	projects, err := f.Projects(context.Background(), "ws-1")
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, model.HealthUnknown, projects[0].Health, "missing health normalizes to unknown")
	assert.Equal(t, 100, projects[0].Progress, "progress clamps to 100")
}

func TestMessagesChronological(t *testing.T) {
	s := docstore.NewMemoryStore()
	for i := 0; i < 15; i++ {
		mustPut(t, s, docstore.CollectionMessages, docstore.Document{
			ID: fmt.Sprintf("m%02d", i),
			Fields: map[string]any{
				"workspaceId": "ws-1",
				"userId":      "u1",
				"content":     fmt.Sprintf("msg %d", i),
				"createdAt":   testNow.Add(time.Duration(i) * time.Minute),
			},
		})
	}
	f := newTestFetcher(t, s)

	msgs, err := f.Messages(context.Background(), "ws-1")
	require.NoError(t, err)
	require.Len(t, msgs, 10, "capped at the message limit")

	// The 10 newest messages, oldest of those first.
	assert.Equal(t, "m05", msgs[0].ID)
	assert.Equal(t, "m14", msgs[9].ID)
	for i := 1; i < len(msgs); i++ {
		assert.True(t, msgs[i-1].CreatedAt.Before(msgs[i].CreatedAt), "chronological order")
	}
}

func TestMembersJoinsProfiles(t *testing.T) {
	s := docstore.NewMemoryStore()
	mustPut(t, s, docstore.CollectionMembers, docstore.Document{
		ID: "mb1",
		Fields: map[string]any{
			"workspaceId": "ws-1", "userId": "u1", "role": "owner", "status": "active",
		},
	})
	mustPut(t, s, docstore.CollectionMembers, docstore.Document{
		ID: "mb2",
		Fields: map[string]any{
			"workspaceId": "ws-1", "userId": "u2", "role": "member", "status": "active",
		},
	})
	mustPut(t, s, docstore.CollectionMembers, docstore.Document{
		ID: "mb3",
		Fields: map[string]any{
			"workspaceId": "ws-1", "userId": "u3", "role": "member", "status": "invited",
		},
	})
	mustPut(t, s, docstore.CollectionUserProfiles, docstore.Document{
		ID:     "u1",
		Fields: map[string]any{"displayName": "Ada", "email": "ada@example.com"},
	})
	f := newTestFetcher(t, s)

	members, err := f.Members(context.Background(), "ws-1")
	require.NoError(t, err)
	require.Len(t, members, 2, "inactive memberships are excluded")

	byUser := map[string]model.Member{}
	for _, m := range members {
		byUser[m.UserID] = m
	}
	assert.Equal(t, "Ada", byUser["u1"].Profile.DisplayName)
	assert.Equal(t, UnknownDisplayName, byUser["u2"].Profile.DisplayName, "missing profile gets the placeholder")
	assert.Equal(t, UnknownEmail, byUser["u2"].Profile.Email)
}

func TestActiveMembershipsOrderedByRecency(t *testing.T) {
	s := docstore.NewMemoryStore()
	for i, ws := range []string{"ws-a", "ws-b", "ws-c"} {
		mustPut(t, s, docstore.CollectionMembers, docstore.Document{
			ID: "mb-" + ws,
			Fields: map[string]any{
				"organizationId": "org-1",
				"workspaceId":    ws,
				"userId":         "u1",
				"role":           "member",
				"status":         "active",
				"lastActiveAt":   testNow.Add(-time.Duration(i) * time.Hour),
			},
		})
	}
	f := newTestFetcher(t, s)

	memberships, err := f.ActiveMemberships(context.Background(), "org-1", "u1", 2)
	require.NoError(t, err)
	require.Len(t, memberships, 2)
	assert.Equal(t, "ws-a", memberships[0].WorkspaceID, "most recently active first")
	assert.Equal(t, "ws-b", memberships[1].WorkspaceID)
}

func TestRecentMessageCountWindow(t *testing.T) {
	s := docstore.NewMemoryStore()
	for i := 0; i < 8; i++ {
		mustPut(t, s, docstore.CollectionMessages, docstore.Document{
			ID: fmt.Sprintf("recent-%d", i),
			Fields: map[string]any{
				"workspaceId": "ws-1", "userId": "u1", "content": "x",
				"createdAt": testNow.Add(-time.Duration(i) * time.Hour),
			},
		})
	}
	mustPut(t, s, docstore.CollectionMessages, docstore.Document{
		ID: "stale",
		Fields: map[string]any{
			"workspaceId": "ws-1", "userId": "u1", "content": "x",
			"createdAt": testNow.Add(-48 * time.Hour),
		},
	})
	f := newTestFetcher(t, s)

	assert.Equal(t, 8, f.RecentMessageCount(context.Background(), "ws-1"))
}

func TestRecentMessageCountDegradesToZero(t *testing.T) {
	s := &failingStore{Store: docstore.NewMemoryStore(), failCollection: docstore.CollectionMessages}
	f := newTestFetcher(t, s)

	assert.Equal(t, 0, f.RecentMessageCount(context.Background(), "ws-1"))
}

func TestQueryRecentFallbackMatchesIndexedPath(t *testing.T) {
	indexed := docstore.NewMemoryStore()
	degraded := docstore.NewMemoryStore()

	for i := 0; i < 5; i++ {
		doc := docstore.Document{
			ID: fmt.Sprintf("t%d", i),
			Fields: map[string]any{
				"workspaceId": "ws-1",
				"title":       fmt.Sprintf("task %d", i),
				"status":      "todo",
				"priority":    "medium",
				"updatedAt":   testNow.Add(-time.Duration(i) * time.Hour),
			},
		}
		mustPut(t, indexed, docstore.CollectionTasks, doc)
		mustPut(t, degraded, docstore.CollectionTasks, doc)
	}
	degraded.DropIndex(docstore.CollectionTasks, "updatedAt")

	want, err := newTestFetcher(t, indexed).Tasks(context.Background(), "ws-1")
	require.NoError(t, err)
	got, err := newTestFetcher(t, degraded).Tasks(context.Background(), "ws-1")
	require.NoError(t, err)

	// With fewer matches than the limit the fallback is exact.
	assert.Equal(t, want, got)
}

func TestWorkspaceDataFanOut(t *testing.T) {
	s := docstore.NewMemoryStore()
	seedWorkspace(t, s)
	mustPut(t, s, docstore.CollectionProjects, docstore.Document{
		ID: "p1",
		Fields: map[string]any{
			"workspaceId": "ws-1", "name": "Apollo", "status": "active",
			"health": "healthy", "progress": 40, "updatedAt": testNow,
		},
	})
	mustPut(t, s, docstore.CollectionTasks, docstore.Document{
		ID: "t1",
		Fields: map[string]any{
			"workspaceId": "ws-1", "projectId": "p1", "title": "Ship it",
			"status": "todo", "priority": "high", "updatedAt": testNow,
		},
	})
	mustPut(t, s, docstore.CollectionMessages, docstore.Document{
		ID: "m1",
		Fields: map[string]any{
			"workspaceId": "ws-1", "userId": "u1", "content": "hello", "createdAt": testNow,
		},
	})
	mustPut(t, s, docstore.CollectionMembers, docstore.Document{
		ID: "mb1",
		Fields: map[string]any{
			"workspaceId": "ws-1", "userId": "u1", "role": "owner", "status": "active",
		},
	})
	f := newTestFetcher(t, s)

	bundle, err := f.WorkspaceData(context.Background(), "ws-1")
	require.NoError(t, err)
	assert.Len(t, bundle.Projects, 1)
	assert.Len(t, bundle.Tasks, 1)
	assert.Len(t, bundle.Messages, 1)
	assert.Len(t, bundle.Members, 1)
}

func TestWorkspaceDataFailsOnStoreError(t *testing.T) {
	s := &failingStore{Store: docstore.NewMemoryStore(), failCollection: docstore.CollectionTasks}
	f := newTestFetcher(t, s)

	_, err := f.WorkspaceData(context.Background(), "ws-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tasks fetch")
}

func TestWorkspaceDataTimeoutDegradesToEmpty(t *testing.T) {
	mem := docstore.NewMemoryStore()
	mustPut(t, mem, docstore.CollectionProjects, docstore.Document{
		ID: "p1",
		Fields: map[string]any{
			"workspaceId": "ws-1", "name": "Apollo", "status": "active",
			"health": "healthy", "progress": 40, "updatedAt": testNow,
		},
	})
	s := &slowStore{Store: mem, slowCollection: docstore.CollectionMessages}
	f := New(s, DefaultLimits(), 50*time.Millisecond, zerolog.Nop(),
		WithClock(func() time.Time { return testNow }), noRetry())

	bundle, err := f.WorkspaceData(context.Background(), "ws-1")
	require.NoError(t, err, "a timed-out sub-fetch must not fail the bundle")
	assert.Empty(t, bundle.Messages, "timed-out sub-fetch degrades to empty")
	assert.Len(t, bundle.Projects, 1, "other sub-fetches are unaffected")
}

// failingStore fails every query against one collection.
type failingStore struct {
	docstore.Store
	failCollection string
}

func (s *failingStore) Query(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	if q.Collection == s.failCollection {
		return nil, errors.New("store unavailable")
	}
	return s.Store.Query(ctx, q)
}

// slowStore blocks queries against one collection until the context
// deadline fires.
type slowStore struct {
	docstore.Store
	slowCollection string
}

func (s *slowStore) Query(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	if q.Collection == s.slowCollection {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.Store.Query(ctx, q)
}
