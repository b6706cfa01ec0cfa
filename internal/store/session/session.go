// Package session implements the append-only JSONL session store: a
// forest of entries linked by parent_id, used for chat-style branching
// traces.
package session

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
)

// Entry is one node in the session forest.
type Entry struct {
	ID       string                 `json:"id"`
	ParentID *string                `json:"parent_id,omitempty"`
	Role     string                 `json:"role"`
	Content  string                 `json:"content"`
	Ts       int64                  `json:"ts"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// NewID mints a fresh entry id.
func NewID() string { return uuid.New().String() }

// Store is an append-only JSONL file backing a session forest.
type Store struct {
	path string
}

// New binds a Store to path. The file need not exist yet.
func New(path string) *Store {
	return &Store{path: path}
}

// Append writes entry as the next line of the file.
func (s *Store) Append(entry Entry) error {
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("session.Append: open: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("session.Append: marshal: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("session.Append: write: %w", err)
	}
	return nil
}

// LoadAll reads every entry in the file, in file order. A missing file is
// treated as an empty session, not an error.
func (s *Store) LoadAll() ([]Entry, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("session.LoadAll: open: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("session.LoadAll: parse line: %w", err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("session.LoadAll: scan: %w", err)
	}
	return entries, nil
}

// LoadBranch walks the parent_id chain from leafID to its root and
// returns the entries in chronological order (root first).
func (s *Store) LoadBranch(leafID string) ([]Entry, error) {
	all, err := s.LoadAll()
	if err != nil {
		return nil, err
	}

	byID := make(map[string]Entry, len(all))
	for _, e := range all {
		byID[e.ID] = e
	}

	leaf, ok := byID[leafID]
	if !ok {
		return nil, fmt.Errorf("session.LoadBranch: unknown id %q", leafID)
	}

	var chain []Entry
	cur := leaf
	for {
		chain = append(chain, cur)
		if cur.ParentID == nil {
			break
		}
		parent, ok := byID[*cur.ParentID]
		if !ok {
			break
		}
		cur = parent
	}

	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// BranchFrom verifies fromID exists and returns it unchanged — new
// entries are simply appended with parent_id = fromID, with no dedicated
// branch-marker record.
func (s *Store) BranchFrom(fromID string) (string, error) {
	all, err := s.LoadAll()
	if err != nil {
		return "", err
	}
	for _, e := range all {
		if e.ID == fromID {
			return fromID, nil
		}
	}
	return "", fmt.Errorf("session.BranchFrom: unknown id %q", fromID)
}
