package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pario-ai/frugal/pkg/models"
)

// Store is a response cache store backed by SQLite. Each signature is one
// row; appends run inside a write transaction.
type Store struct {
	db *sql.DB
}

const createCacheTable = `
CREATE TABLE IF NOT EXISTS cache_records (
	signature TEXT PRIMARY KEY,
	payload BLOB NOT NULL,
	variants INTEGER NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// dsn opens write transactions with BEGIN IMMEDIATE so the read inside
// Append already holds the write lock.
func dsn(dbPath string) string {
	return dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
}

// New opens the database at dbPath and creates the schema.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createCacheTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache db: %w", err)
	}

	return &Store{db: db}, nil
}

// Load returns the record for signature.
func (s *Store) Load(signature string) (models.CacheRecord, bool, error) {
	var payload []byte
	err := s.db.QueryRow(
		`SELECT payload FROM cache_records WHERE signature = ?`, signature,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return models.CacheRecord{}, false, nil
	}
	if err != nil {
		return models.CacheRecord{}, false, fmt.Errorf("cache load: %w", err)
	}

	var rec models.CacheRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return models.CacheRecord{}, false, fmt.Errorf("parse record: %w", err)
	}
	return rec, true, nil
}

// Append adds v to its record in a single transaction.
func (s *Store) Append(v models.CachedVariant, limit int) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("cache begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var rec models.CacheRecord
	var payload []byte
	err = tx.QueryRow(`SELECT payload FROM cache_records WHERE signature = ?`, v.Signature).Scan(&payload)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("cache load: %w", err)
	default:
		// A corrupt payload is replaced rather than blocking new writes.
		_ = json.Unmarshal(payload, &rec)
	}

	rec.Signature = v.Signature
	rec.Append(v, limit)

	out, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	_, err = tx.Exec(
		`INSERT OR REPLACE INTO cache_records (signature, payload, variants, updated_at)
		 VALUES (?, ?, ?, ?)`,
		v.Signature, out, len(rec.Responses), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("cache commit: %w", err)
	}
	return nil
}

// Exists reports whether a row exists for signature.
func (s *Store) Exists(signature string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM cache_records WHERE signature = ?`, signature).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("cache exists: %w", err)
	}
	return n > 0, nil
}

// Delete removes one row.
func (s *Store) Delete(signature string) error {
	if _, err := s.db.Exec(`DELETE FROM cache_records WHERE signature = ?`, signature); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}

// Clear removes every row.
func (s *Store) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM cache_records`); err != nil {
		return fmt.Errorf("cache clear: %w", err)
	}
	return nil
}

// Signatures lists stored signatures, oldest update first.
func (s *Store) Signatures() ([]string, error) {
	rows, err := s.db.Query(`SELECT signature FROM cache_records ORDER BY updated_at, signature`)
	if err != nil {
		return nil, fmt.Errorf("cache list: %w", err)
	}
	defer rows.Close()

	var sigs []string
	for rows.Next() {
		var sig string
		if err := rows.Scan(&sig); err != nil {
			return nil, fmt.Errorf("scan signature: %w", err)
		}
		sigs = append(sigs, sig)
	}
	return sigs, rows.Err()
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
