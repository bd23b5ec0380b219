package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketpulse/internal/chat"
	"marketpulse/internal/protocol"
	"marketpulse/internal/task"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db)
}

func TestSessionCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, "sess-1", "Rate outlook")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", sess.ID)

	got, err := s.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "Rate outlook", got.Title)

	require.NoError(t, s.RenameSession(ctx, "sess-1", "FOMC outlook"))
	got, err = s.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "FOMC outlook", got.Title)

	_, err = s.GetSession(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, s.RenameSession(ctx, "missing", "x"), ErrNotFound)

	require.NoError(t, s.DeleteSession(ctx, "sess-1"))
	_, err = s.GetSession(ctx, "sess-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListSessionsOrdersByRecency(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateSession(ctx, "old", "first")
	require.NoError(t, err)
	_, err = s.CreateSession(ctx, "new", "second")
	require.NoError(t, err)

	// Touching the older session should float it back to the top.
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, s.TouchSession(ctx, "old"))

	sessions, err := s.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "old", sessions[0].ID)
}

func TestMessagesRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateSession(ctx, "sess-1", "")
	require.NoError(t, err)

	_, err = s.AppendMessage(ctx, "sess-1", "user", "What moved gold today?", nil)
	require.NoError(t, err)

	sources := []chat.Source{{ID: "s1", Title: "Reuters", URL: "https://example.com/gold"}}
	_, err = s.AppendMessage(ctx, "sess-1", "assistant", "Gold rose on dollar weakness.", sources)
	require.NoError(t, err)

	msgs, err := s.Messages(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "user", msgs[0].Role)
	assert.Empty(t, msgs[0].Sources)
	assert.Equal(t, "assistant", msgs[1].Role)
	require.Len(t, msgs[1].Sources, 1)
	assert.Equal(t, "Reuters", msgs[1].Sources[0].Title)
}

func TestDeleteSessionCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateSession(ctx, "sess-1", "")
	require.NoError(t, err)
	_, err = s.AppendMessage(ctx, "sess-1", "user", "hi", nil)
	require.NoError(t, err)

	require.NoError(t, s.DeleteSession(ctx, "sess-1"))

	msgs, err := s.Messages(ctx, "sess-1")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestSaveAndListRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateSession(ctx, "sess-1", "")
	require.NoError(t, err)

	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	tk := &task.Task{
		ID:            "task-1",
		Title:         "Scan sector movers",
		Status:        protocol.StatusCompleted,
		TotalProgress: 100,
		Output:        "Energy led, tech lagged.",
		StartedAt:     started,
		FinishedAt:    started.Add(40 * time.Second),
		Steps: []task.Step{
			{ID: "step-1", Title: "Fetch quotes", Status: protocol.StatusCompleted, Progress: 100},
			{ID: "step-2", Title: "Rank movers", Status: protocol.StatusCompleted, Progress: 100},
		},
	}

	run, err := s.SaveRun(ctx, "sess-1", tk)
	require.NoError(t, err)
	assert.Equal(t, "task-1", run.TaskID)

	runs, err := s.Runs(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "completed", runs[0].Status)
	assert.Equal(t, 100, runs[0].Progress)
	require.Len(t, runs[0].Steps, 2)
	assert.Equal(t, "Rank movers", runs[0].Steps[1].Title)
	assert.True(t, started.Equal(runs[0].StartedAt))
}

func TestSaveRunWithoutTimestampsStoresNull(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateSession(ctx, "sess-1", "")
	require.NoError(t, err)

	_, err = s.SaveRun(ctx, "sess-1", &task.Task{ID: "bare", Status: protocol.StatusPending})
	require.NoError(t, err)

	runs, err := s.Runs(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.True(t, runs[0].StartedAt.IsZero())
	assert.True(t, runs[0].FinishedAt.IsZero())
}

func TestSchemaVersionCurrent(t *testing.T) {
	s := newTestStore(t)

	current, latest, err := SchemaVersion(s.DB())
	require.NoError(t, err)
	assert.Equal(t, latest, current)
	assert.GreaterOrEqual(t, latest, int64(1))
}
