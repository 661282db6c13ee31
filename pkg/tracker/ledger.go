package tracker

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/pario-ai/frugal/pkg/models"
)

// Ledger persists interactions to SQLite so spend survives the process.
type Ledger struct {
	db *sql.DB
}

const createInteractions = `
CREATE TABLE IF NOT EXISTS interactions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	agent TEXT NOT NULL DEFAULT '',
	signature TEXT NOT NULL DEFAULT '',
	model TEXT NOT NULL DEFAULT '',
	input_tokens INTEGER NOT NULL,
	output_tokens INTEGER NOT NULL,
	cached_tokens INTEGER NOT NULL,
	cost REAL NOT NULL,
	cache_hit INTEGER NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_interactions_session ON interactions(session_id, created_at);
`

const createSessions = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	started_at DATETIME NOT NULL,
	last_activity DATETIME NOT NULL,
	interactions INTEGER NOT NULL DEFAULT 0,
	total_cost REAL NOT NULL DEFAULT 0
);
`

// OpenLedger opens or creates a ledger database and runs auto-migration.
func OpenLedger(dbPath string) (*Ledger, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open ledger db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createInteractions); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate ledger db: %w", err)
	}
	if _, err := db.Exec(createSessions); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sessions table: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Record stores an interaction and updates its session counters.
func (l *Ledger) Record(ctx context.Context, rec models.LedgerRecord) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO interactions (session_id, agent, signature, model, input_tokens, output_tokens, cached_tokens, cost, cache_hit, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID, rec.Agent, rec.Signature, rec.Model,
		rec.InputTokens, rec.OutputTokens, rec.CachedTokens, rec.Cost, rec.CacheHit, rec.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record interaction: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (id, started_at, last_activity, interactions, total_cost) VALUES (?, ?, ?, 1, ?)
		 ON CONFLICT(id) DO UPDATE SET
			last_activity = excluded.last_activity,
			interactions = interactions + 1,
			total_cost = total_cost + excluded.total_cost`,
		rec.SessionID, rec.CreatedAt.UTC(), rec.CreatedAt.UTC(), rec.Cost,
	)
	if err != nil {
		return fmt.Errorf("update session counters: %w", err)
	}
	return tx.Commit()
}

// Records returns interactions oldest first, optionally filtered by session.
func (l *Ledger) Records(ctx context.Context, sessionID string) ([]models.LedgerRecord, error) {
	query := `SELECT id, session_id, agent, signature, model, input_tokens, output_tokens, cached_tokens, cost, cache_hit, created_at
		 FROM interactions`
	var args []any
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY id ASC`

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query interactions: %w", err)
	}
	defer rows.Close()

	var records []models.LedgerRecord
	for rows.Next() {
		var r models.LedgerRecord
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Agent, &r.Signature, &r.Model,
			&r.InputTokens, &r.OutputTokens, &r.CachedTokens, &r.Cost, &r.CacheHit, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Summary aggregates priced interactions per model, optionally for one
// session. Cache hits are counted against the model-less row.
func (l *Ledger) Summary(ctx context.Context, sessionID string) ([]models.LedgerSummary, error) {
	query := `SELECT model, COUNT(*), SUM(cache_hit), SUM(input_tokens), SUM(output_tokens), SUM(cached_tokens), SUM(cost)
		 FROM interactions`
	var args []any
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	query += ` GROUP BY model ORDER BY model`

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	defer rows.Close()

	var summaries []models.LedgerSummary
	for rows.Next() {
		var s models.LedgerSummary
		if err := rows.Scan(&s.Model, &s.Interactions, &s.CacheHits, &s.InputTokens, &s.OutputTokens, &s.CachedTokens, &s.Cost); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// Sessions returns all sessions, most recent first.
func (l *Ledger) Sessions(ctx context.Context) ([]models.Session, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, started_at, last_activity, interactions, total_cost FROM sessions ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		var s models.Session
		if err := rows.Scan(&s.ID, &s.StartedAt, &s.LastActivity, &s.Interactions, &s.TotalCost); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// Close releases the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}
