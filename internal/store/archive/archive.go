// Package archive persists trade fills and periodic fitness snapshots to
// SQLite, giving a node a queryable history beyond the in-memory paper
// book and evolution tracker. Each record call writes one row; fills
// older than the 30-day retention window are pruned on open, while
// fitness snapshots are kept.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS fills (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    agent_id    TEXT    NOT NULL,
    ts_ms       INTEGER NOT NULL,
    coin        TEXT    NOT NULL,
    is_buy      INTEGER NOT NULL,
    price       REAL    NOT NULL,
    size        REAL    NOT NULL,
    pnl         REAL    NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS fitness_snapshots (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    agent_id      TEXT    NOT NULL,
    taken_at      DATETIME NOT NULL,
    fitness_score REAL    NOT NULL,
    win_rate      REAL    NOT NULL,
    total_pnl     REAL    NOT NULL,
    max_drawdown  REAL    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fills_agent_ts       ON fills(agent_id, ts_ms DESC);
CREATE INDEX IF NOT EXISTS idx_snapshots_agent_time ON fitness_snapshots(agent_id, taken_at DESC);
`

const retentionFills = 30 * 24 * time.Hour

// Fill is one trade execution archived for an agent.
type Fill struct {
	TimestampMs int64
	Coin        string
	IsBuy       bool
	Price       float64
	Size        float64
	PnL         float64
}

// FitnessSnapshot is one point-in-time read of an agent's evolution
// score, archived so fitness drift can be queried across restarts.
type FitnessSnapshot struct {
	FitnessScore float64
	WinRate      float64
	TotalPnL     float64
	MaxDrawdown  float64
}

// Store is a single-writer SQLite archive, one file per node.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the archive database at path, applies the
// schema, and prunes fills older than the retention window.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("archive.Open: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("archive.Open: apply schema: %w", err)
	}

	s := &Store{db: db}
	s.pruneOld(context.Background())
	return s, nil
}

// RecordFill appends one fill to the archive.
func (s *Store) RecordFill(ctx context.Context, agentID string, f Fill) error {
	isBuy := 0
	if f.IsBuy {
		isBuy = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO fills (agent_id, ts_ms, coin, is_buy, price, size, pnl) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		agentID, f.TimestampMs, f.Coin, isBuy, f.Price, f.Size, f.PnL,
	)
	if err != nil {
		return fmt.Errorf("archive.RecordFill: insert: %w", err)
	}
	return nil
}

// RecordFitnessSnapshot appends one fitness reading, stamped with the
// current wall-clock time.
func (s *Store) RecordFitnessSnapshot(ctx context.Context, agentID string, snap FitnessSnapshot) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO fitness_snapshots (agent_id, taken_at, fitness_score, win_rate, total_pnl, max_drawdown) VALUES (?, ?, ?, ?, ?, ?)`,
		agentID, time.Now().UTC(), snap.FitnessScore, snap.WinRate, snap.TotalPnL, snap.MaxDrawdown,
	)
	if err != nil {
		return fmt.Errorf("archive.RecordFitnessSnapshot: insert: %w", err)
	}
	return nil
}

// FillsSince returns an agent's fills at or after fromMs, oldest first.
func (s *Store) FillsSince(ctx context.Context, agentID string, fromMs int64) ([]Fill, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ts_ms, coin, is_buy, price, size, pnl FROM fills WHERE agent_id = ? AND ts_ms >= ? ORDER BY ts_ms ASC`,
		agentID, fromMs,
	)
	if err != nil {
		return nil, fmt.Errorf("archive.FillsSince: query: %w", err)
	}
	defer rows.Close()

	var out []Fill
	for rows.Next() {
		var f Fill
		var isBuy int
		if err := rows.Scan(&f.TimestampMs, &f.Coin, &isBuy, &f.Price, &f.Size, &f.PnL); err != nil {
			return nil, fmt.Errorf("archive.FillsSince: scan: %w", err)
		}
		f.IsBuy = isBuy == 1
		out = append(out, f)
	}
	return out, rows.Err()
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) pruneOld(ctx context.Context) {
	cutoffMs := time.Now().UTC().Add(-retentionFills).UnixMilli()
	s.db.ExecContext(ctx, `DELETE FROM fills WHERE ts_ms < ?`, cutoffMs)
}
