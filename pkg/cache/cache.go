// Package cache stores several generated responses per signature and hands
// one of them back at random so recurring situations do not read robotic.
package cache

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pario-ai/frugal/pkg/models"
)

// DefaultMaxResponses is the number of variants kept per signature.
const DefaultMaxResponses = 5

// ErrInvalidSignature is returned when a signature cannot name a record.
var ErrInvalidSignature = errors.New("invalid signature")

// Store persists one record per signature.
type Store interface {
	// Load returns the record for signature. found is false when no record
	// exists. A record that cannot be read or parsed returns an error.
	Load(signature string) (rec models.CacheRecord, found bool, err error)
	// Append adds v to its signature's record and trims the record to the
	// most recent limit variants. The write must replace the record
	// atomically so concurrent readers never see a partial record.
	Append(v models.CachedVariant, limit int) error
	// Exists reports whether a record exists without parsing it.
	Exists(signature string) (bool, error)
	// Delete removes one record. Deleting a missing record is not an error.
	Delete(signature string) error
	// Clear removes every record.
	Clear() error
	// Signatures lists the stored signatures.
	Signatures() ([]string, error)
	Close() error
}

// StorageError reports a failed store operation.
type StorageError struct {
	Op        string
	Signature string
	Err       error
}

func (e *StorageError) Error() string {
	if e.Signature == "" {
		return fmt.Sprintf("cache %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("cache %s %s: %v", e.Op, e.Signature, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Cache is a multi-variant response cache.
type Cache struct {
	store        Store
	maxResponses int
	logger       *slog.Logger

	rngMu sync.Mutex
	rng   *rand.Rand

	hits   atomic.Int64
	misses atomic.Int64
}

// Option configures a Cache.
type Option func(*Cache)

// WithMaxResponses sets how many variants are kept per signature.
func WithMaxResponses(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.maxResponses = n
		}
	}
}

// WithRand sets the random source used to pick variants.
func WithRand(r *rand.Rand) Option {
	return func(c *Cache) {
		if r != nil {
			c.rng = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a Cache over store.
func New(store Store, opts ...Option) *Cache {
	c := &Cache{
		store:        store,
		maxResponses: DefaultMaxResponses,
		logger:       slog.Default(),
		rng:          rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// MaxResponses returns the per-signature variant limit.
func (c *Cache) MaxResponses() int { return c.maxResponses }

// Get returns a uniformly random variant stored for signature. Unknown,
// empty, and unreadable records are all reported as a miss.
func (c *Cache) Get(signature string) (models.CachedVariant, bool) {
	rec, found, err := c.store.Load(signature)
	if err != nil {
		c.logger.Warn("cache read failed, treating as miss", "signature", signature, "error", err)
		c.misses.Add(1)
		return models.CachedVariant{}, false
	}
	if !found || len(rec.Responses) == 0 {
		c.logger.Debug("cache miss", "signature", signature)
		c.misses.Add(1)
		return models.CachedVariant{}, false
	}

	c.rngMu.Lock()
	i := c.rng.IntN(len(rec.Responses))
	c.rngMu.Unlock()

	c.hits.Add(1)
	c.logger.Info("cache hit", "signature", signature, "variants", len(rec.Responses))
	return rec.Responses[i], true
}

// Put appends v to its signature's variants, dropping the oldest beyond
// the configured limit.
func (c *Cache) Put(v models.CachedVariant) error {
	if v.Signature == "" {
		return &StorageError{Op: "put", Err: ErrInvalidSignature}
	}
	if v.Metadata.CreatedAt.IsZero() {
		v.Metadata.CreatedAt = time.Now().UTC()
	}
	if err := c.store.Append(v, c.maxResponses); err != nil {
		return &StorageError{Op: "put", Signature: v.Signature, Err: err}
	}
	c.logger.Debug("cached response", "signature", v.Signature)
	return nil
}

// Has reports whether any record exists for signature.
func (c *Cache) Has(signature string) bool {
	ok, err := c.store.Exists(signature)
	if err != nil {
		c.logger.Warn("cache exists check failed", "signature", signature, "error", err)
		return false
	}
	return ok
}

// Delete removes the record for signature.
func (c *Cache) Delete(signature string) error {
	if err := c.store.Delete(signature); err != nil {
		return &StorageError{Op: "delete", Signature: signature, Err: err}
	}
	return nil
}

// Clear removes every stored record.
func (c *Cache) Clear() error {
	if err := c.store.Clear(); err != nil {
		return &StorageError{Op: "clear", Err: err}
	}
	c.logger.Info("cache cleared")
	return nil
}

// Signatures lists the stored signatures.
func (c *Cache) Signatures() ([]string, error) {
	sigs, err := c.store.Signatures()
	if err != nil {
		return nil, &StorageError{Op: "list", Err: err}
	}
	return sigs, nil
}

// Stats counts stored signatures and variants. Records that cannot be read
// still count as signatures but contribute no variants.
func (c *Cache) Stats() (models.CacheStats, error) {
	sigs, err := c.store.Signatures()
	if err != nil {
		return models.CacheStats{}, &StorageError{Op: "stats", Err: err}
	}
	stats := models.CacheStats{
		Signatures: int64(len(sigs)),
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
	}
	for _, sig := range sigs {
		rec, found, err := c.store.Load(sig)
		if err != nil {
			c.logger.Warn("skipping unreadable cache record", "signature", sig, "error", err)
			continue
		}
		if found {
			stats.TotalVariants += int64(len(rec.Responses))
		}
	}
	return stats, nil
}

// Close releases the underlying store.
func (c *Cache) Close() error {
	return c.store.Close()
}
