// Package file is a cache store that keeps one JSON file per signature.
package file

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pario-ai/frugal/pkg/models"
)

const ext = ".json"

// ErrCorrupt marks a record file that exists but cannot be parsed.
var ErrCorrupt = errors.New("corrupt record")

// Store keeps each signature's record in <dir>/<signature>.json. Writes go to
// a temporary file in the same directory and are renamed into place, so a
// reader in another process sees either the old or the new record.
type Store struct {
	dir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates the directory if needed and returns a Store rooted there.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Store{dir: dir, locks: make(map[string]*sync.Mutex)}, nil
}

// Dir returns the root directory.
func (s *Store) Dir() string { return s.dir }

func validName(signature string) error {
	if signature == "" || strings.HasPrefix(signature, ".") || strings.ContainsAny(signature, `/\`) {
		return fmt.Errorf("signature %q cannot name a cache file", signature)
	}
	return nil
}

func (s *Store) path(signature string) string {
	return filepath.Join(s.dir, signature+ext)
}

// lock serialises writers for one signature within this process.
func (s *Store) lock(signature string) func() {
	s.mu.Lock()
	l, ok := s.locks[signature]
	if !ok {
		l = &sync.Mutex{}
		s.locks[signature] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// Load reads and parses a record.
func (s *Store) Load(signature string) (models.CacheRecord, bool, error) {
	if err := validName(signature); err != nil {
		return models.CacheRecord{}, false, err
	}
	data, err := os.ReadFile(s.path(signature))
	if errors.Is(err, fs.ErrNotExist) {
		return models.CacheRecord{}, false, nil
	}
	if err != nil {
		return models.CacheRecord{}, false, fmt.Errorf("read record: %w", err)
	}
	var rec models.CacheRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return models.CacheRecord{}, false, fmt.Errorf("parse record: %w: %w", ErrCorrupt, err)
	}
	return rec, true, nil
}

// Append reads the current record, appends v, trims, and atomically
// replaces the file. An unparseable existing record is replaced; a record
// that cannot be read is left alone and the error returned.
func (s *Store) Append(v models.CachedVariant, limit int) error {
	if err := validName(v.Signature); err != nil {
		return err
	}
	unlock := s.lock(v.Signature)
	defer unlock()

	rec, _, err := s.Load(v.Signature)
	if err != nil {
		if !errors.Is(err, ErrCorrupt) {
			return fmt.Errorf("append %s: %w", v.Signature, err)
		}
		rec = models.CacheRecord{}
	}
	rec.Signature = v.Signature
	rec.Append(v, limit)

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	return writeAtomic(s.dir, s.path(v.Signature), data)
}

func writeAtomic(dir, dst string, data []byte) error {
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dst)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		cleanup()
		return fmt.Errorf("rename record: %w", err)
	}
	return nil
}

// Exists checks for the record file.
func (s *Store) Exists(signature string) (bool, error) {
	if err := validName(signature); err != nil {
		return false, nil
	}
	_, err := os.Stat(s.path(signature))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat record: %w", err)
	}
	return true, nil
}

// Delete removes one record file.
func (s *Store) Delete(signature string) error {
	if err := validName(signature); err != nil {
		return err
	}
	unlock := s.lock(signature)
	defer unlock()
	if err := os.Remove(s.path(signature)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove record: %w", err)
	}
	return nil
}

// Clear removes every record file.
func (s *Store) Clear() error {
	sigs, err := s.Signatures()
	if err != nil {
		return err
	}
	for _, sig := range sigs {
		if err := s.Delete(sig); err != nil {
			return err
		}
	}
	return nil
}

// Signatures lists record files in directory order.
func (s *Store) Signatures() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list cache dir: %w", err)
	}
	var sigs []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ext) {
			continue
		}
		sigs = append(sigs, strings.TrimSuffix(name, ext))
	}
	return sigs, nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }
