package session

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func strp(s string) *string { return &s }

func TestLoadBranchScenarioS5(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.jsonl")
	s := New(path)

	require.NoError(t, s.Append(Entry{ID: "root", Role: "user", Content: "root", Ts: 1}))
	require.NoError(t, s.Append(Entry{ID: "a", ParentID: strp("root"), Role: "assistant", Content: "a", Ts: 2}))
	require.NoError(t, s.Append(Entry{ID: "b", ParentID: strp("a"), Role: "user", Content: "b", Ts: 3}))
	require.NoError(t, s.Append(Entry{ID: "c", ParentID: strp("a"), Role: "user", Content: "c", Ts: 4}))

	branchB, err := s.LoadBranch("b")
	require.NoError(t, err)
	ids := idsOf(branchB)
	require.Equal(t, []string{"root", "a", "b"}, ids)

	branchC, err := s.LoadBranch("c")
	require.NoError(t, err)
	require.Equal(t, []string{"root", "a", "c"}, idsOf(branchC))
}

func idsOf(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

func TestLoadBranchOrdering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.jsonl")
	s := New(path)
	require.NoError(t, s.Append(Entry{ID: "root", Role: "user", Content: "root", Ts: 1}))
	require.NoError(t, s.Append(Entry{ID: "a", ParentID: strp("root"), Role: "assistant", Content: "a", Ts: 2}))

	branch, err := s.LoadBranch("a")
	require.NoError(t, err)
	require.Nil(t, branch[0].ParentID)
	require.Equal(t, "root", branch[0].ID)
	require.Equal(t, "root", *branch[1].ParentID)
}

func TestBranchFromReturnsIDUnchanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.jsonl")
	s := New(path)
	require.NoError(t, s.Append(Entry{ID: "root", Role: "user", Content: "root", Ts: 1}))

	id, err := s.BranchFrom("root")
	require.NoError(t, err)
	require.Equal(t, "root", id)

	_, err = s.BranchFrom("missing")
	require.Error(t, err)
}

func TestLoadAllMissingFileIsEmpty(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "missing.jsonl"))
	entries, err := s.LoadAll()
	require.NoError(t, err)
	require.Empty(t, entries)
}
