package sqlite

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/frugal/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "cache_test.db")
	s, err := New(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func variant(sig string, i int) models.CachedVariant {
	return models.CachedVariant{Signature: sig, Response: fmt.Sprintf("response %d", i)}
}

func TestAppendAndLoad(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Append(variant("abc", 1), 5))

	rec, found, err := s.Load("abc")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "abc", rec.Signature)
	require.Len(t, rec.Responses, 1)
	assert.Equal(t, "response 1", rec.Responses[0].Response)

	_, found, err = s.Load("missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestAppendTrimsOldest(t *testing.T) {
	s := newTestStore(t)
	for i := range 7 {
		require.NoError(t, s.Append(variant("abc", i), 3))
	}

	rec, _, err := s.Load("abc")
	require.NoError(t, err)
	require.Len(t, rec.Responses, 3)
	assert.Equal(t, "response 4", rec.Responses[0].Response)
	assert.Equal(t, "response 6", rec.Responses[2].Response)
}

func TestCorruptPayload(t *testing.T) {
	s := newTestStore(t)
	_, err := s.db.Exec(`INSERT INTO cache_records (signature, payload, variants) VALUES ('bad', 'not json', 0)`)
	require.NoError(t, err)

	_, _, err = s.Load("bad")
	assert.Error(t, err)

	// Appending replaces the corrupt payload.
	require.NoError(t, s.Append(variant("bad", 1), 5))
	rec, found, err := s.Load("bad")
	require.NoError(t, err)
	require.True(t, found)
	assert.Len(t, rec.Responses, 1)
}

func TestConcurrentAppendsAcrossConnections(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "shared.db")
	assert.Contains(t, dsn(dbPath), "_txlock=immediate")

	var stores []*Store
	for range 2 {
		s, err := New(dbPath)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		stores = append(stores, s)
	}

	const perStore = 10
	var wg sync.WaitGroup
	errs := make(chan error, len(stores)*perStore)
	for n, s := range stores {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perStore {
				errs <- s.Append(variant("shared", n*perStore+i), 100)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	rec, found, err := stores[0].Load("shared")
	require.NoError(t, err)
	require.True(t, found)
	assert.Len(t, rec.Responses, len(stores)*perStore, "no append lost to a concurrent writer")
}

func TestExistsDeleteClear(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Append(variant("a", 1), 5))
	require.NoError(t, s.Append(variant("b", 1), 5))

	ok, err := s.Exists("a")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Delete("a"))
	ok, err = s.Exists("a")
	require.NoError(t, err)
	assert.False(t, ok)

	sigs, err := s.Signatures()
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, sigs)

	require.NoError(t, s.Clear())
	sigs, err = s.Signatures()
	require.NoError(t, err)
	assert.Empty(t, sigs)
}
