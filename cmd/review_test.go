//go:build !integration

package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scoutbase/curator/internal/model"
	"github.com/scoutbase/curator/internal/store"
)

func newReviewSession(t *testing.T, input string) (*reviewSession, *store.SQLiteStore, *bytes.Buffer) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "review.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	out := &bytes.Buffer{}
	sess := &reviewSession{
		store:    st,
		actor:    "alice",
		pageSize: 10,
		in:       strings.NewReader(input),
		out:      out,
	}
	return sess, st, out
}

func TestReviewSession_ApproveSelected(t *testing.T) {
	sess, st, out := newReviewSession(t, "t 1\nt 3\napprove\nq\n")
	seedPending(t, st, "a", "b", "c")

	require.NoError(t, sess.run(context.Background()))
	assert.Contains(t, out.String(), "2 startup(s) approved")

	got, err := st.GetStartups(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	byID := map[string]model.Status{}
	for _, s := range got {
		byID[s.ID] = s.Status
	}
	assert.Equal(t, model.StatusApproved, byID["a"])
	assert.Equal(t, model.StatusPending, byID["b"])
	assert.Equal(t, model.StatusApproved, byID["c"])
}

func TestReviewSession_SelectAllThenClearViaSecondAll(t *testing.T) {
	// "a" twice: select all, then deselect all. The reject commits nothing.
	sess, st, out := newReviewSession(t, "a\na\nreject\nq\n")
	seedPending(t, st, "a", "b")

	require.NoError(t, sess.run(context.Background()))
	assert.Contains(t, out.String(), "nothing selected")

	got, err := st.GetStartups(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	for _, s := range got {
		assert.Equal(t, model.StatusPending, s.Status)
	}
}

func TestReviewSession_RejectAll(t *testing.T) {
	sess, st, out := newReviewSession(t, "a\nreject\nq\n")
	seedPending(t, st, "a", "b", "c")

	require.NoError(t, sess.run(context.Background()))
	assert.Contains(t, out.String(), "3 startup(s) rejected")

	// The committed page is reloaded; nothing pending remains.
	assert.Contains(t, out.String(), "0 pending")
}

func TestReviewSession_BadInput(t *testing.T) {
	sess, st, out := newReviewSession(t, "t\nt 99\nbogus\nq\n")
	seedPending(t, st, "a")

	require.NoError(t, sess.run(context.Background()))
	assert.Contains(t, out.String(), "usage: t <row>")
	assert.Contains(t, out.String(), "no row 99 on this page")
	assert.Contains(t, out.String(), `unknown command "bogus"`)
}

func TestReviewSession_EOFEndsSession(t *testing.T) {
	sess, st, _ := newReviewSession(t, "")
	seedPending(t, st, "a")

	require.NoError(t, sess.run(context.Background()))
}
