package journal

import (
	"context"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/GriffinCanCode/termbridge/internal/launcher"
	"github.com/GriffinCanCode/termbridge/internal/lifecycle"
	"github.com/GriffinCanCode/termbridge/internal/shared/id"
)

func newStore(t *testing.T) (*Store, context.Context) {
	t.Helper()
	ctx := context.Background()
	store, err := Open(ctx, filepath.Join(t.TempDir(), "nested", "journal.db"), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, ctx
}

func record(t *testing.T, store *Store, sid id.SessionID, path ...lifecycle.State) []lifecycle.Transition {
	t.Helper()
	m := lifecycle.NewMachine()
	for _, s := range path {
		tr, err := m.To(s, "to "+s.String())
		require.NoError(t, err)
		require.NoError(t, store.RecordTransition(sid, tr))
	}
	return m.History()
}

func TestJournalRoundTrip(t *testing.T) {
	store, ctx := newStore(t)
	sid := id.NewSessionID()

	history := record(t, store, sid,
		lifecycle.SmokeTesting, lifecycle.Ready, lifecycle.Launching,
		lifecycle.Running, lifecycle.Closing, lifecycle.Closed)

	require.NoError(t, store.RecordResult(lifecycle.Result{
		SessionID: sid,
		Cause:     lifecycle.CauseUserQuit,
		Exited:    true,
		Status:    launcher.Status{Signaled: true, Signal: syscall.SIGTERM},
	}))

	sess, err := store.Session(ctx, sid)
	require.NoError(t, err)

	assert.Equal(t, sid, sess.ID)
	assert.Equal(t, "user-quit", sess.Cause)
	assert.True(t, sess.Exited)
	assert.Equal(t, 128+int(syscall.SIGTERM), sess.ExitCode)
	assert.Equal(t, int(syscall.SIGTERM), sess.Signal)
	require.NotNil(t, sess.EndedAt)
	assert.WithinDuration(t, history[0].At, sess.StartedAt, time.Millisecond)

	require.Len(t, sess.Transitions, len(history))
	for i, tr := range history {
		assert.Equal(t, tr.From.String(), sess.Transitions[i].From)
		assert.Equal(t, tr.To.String(), sess.Transitions[i].To)
		assert.Equal(t, tr.Reason, sess.Transitions[i].Reason)
	}
}

func TestJournalFailureResult(t *testing.T) {
	store, ctx := newStore(t)
	sid := id.NewSessionID()
	record(t, store, sid, lifecycle.SmokeTesting, lifecycle.Closed)

	require.NoError(t, store.RecordResult(lifecycle.Result{
		SessionID: sid,
		Cause:     lifecycle.CauseSmoke,
		Err:       &lifecycle.SmokeError{Reason: "echo pty ok (exit status 1)"},
	}))

	sess, err := store.Session(ctx, sid)
	require.NoError(t, err)
	assert.False(t, sess.Exited)
	assert.Equal(t, 1, sess.ExitCode)
	assert.Equal(t, "smoke test failed: echo pty ok (exit status 1)", sess.Error)
}

func TestJournalResultWithoutTransitions(t *testing.T) {
	store, ctx := newStore(t)
	sid := id.NewSessionID()

	require.NoError(t, store.RecordResult(lifecycle.Result{SessionID: sid, Cause: lifecycle.CauseAllocation}))

	sess, err := store.Session(ctx, sid)
	require.NoError(t, err)
	assert.Empty(t, sess.Transitions)
	assert.Equal(t, "allocation-failed", sess.Cause)
}

func TestJournalUnknownSession(t *testing.T) {
	store, ctx := newStore(t)
	_, err := store.Session(ctx, id.SessionID("sess_missing"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestJournalRecent(t *testing.T) {
	store, ctx := newStore(t)

	var ids []id.SessionID
	for i := 0; i < 3; i++ {
		sid := id.NewSessionID()
		ids = append(ids, sid)
		record(t, store, sid, lifecycle.SmokeTesting)
		time.Sleep(2 * time.Millisecond)
	}

	recent, err := store.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, ids[2], recent[0].ID)
	assert.Equal(t, ids[1], recent[1].ID)
	assert.Nil(t, recent[0].EndedAt)
}

func TestJournalReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.db")
	sid := id.NewSessionID()

	store, err := Open(ctx, path, zaptest.NewLogger(t))
	require.NoError(t, err)
	record(t, store, sid, lifecycle.SmokeTesting, lifecycle.Closed)
	require.NoError(t, store.Close())

	store, err = Open(ctx, path, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer store.Close()

	sess, err := store.Session(ctx, sid)
	require.NoError(t, err)
	assert.Len(t, sess.Transitions, 2)
}

func TestCloseNilStore(t *testing.T) {
	var s *Store
	assert.NoError(t, s.Close())
}
