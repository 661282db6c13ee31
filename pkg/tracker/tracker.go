// Package tracker records what a session actually spent.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pario-ai/frugal/pkg/models"
	"github.com/pario-ai/frugal/pkg/pricing"
)

// Interaction describes a completed model call.
type Interaction struct {
	Model     string
	Agent     string
	Signature string
	Usage     models.Usage
}

// Tracker accumulates per-session cost and cache statistics. It is safe for
// concurrent use.
type Tracker struct {
	table  *pricing.Table
	ledger *Ledger
	logger *slog.Logger
	now    func() time.Time

	mu        sync.Mutex
	sessionID string
	stats     models.SessionStats
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLedger persists every recorded interaction to l.
func WithLedger(l *Ledger) Option {
	return func(t *Tracker) { t.ledger = l }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// New creates a Tracker pricing calls from table. A nil table selects
// pricing.DefaultTable.
func New(table *pricing.Table, opts ...Option) *Tracker {
	if table == nil {
		table = pricing.DefaultTable()
	}
	t := &Tracker{
		table:  table,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, o := range opts {
		o(t)
	}
	t.sessionID = uuid.NewString()
	t.stats = models.SessionStats{StartTime: t.now()}
	return t
}

// Ledger returns the persisted ledger, or nil when none is attached.
func (t *Tracker) Ledger() *Ledger { return t.ledger }

// SessionID identifies the current session in the ledger.
func (t *Tracker) SessionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionID
}

// RecordInteraction prices a completed call and adds it to the session.
// The session totals are updated even if the ledger write fails.
func (t *Tracker) RecordInteraction(ctx context.Context, in Interaction) (models.InteractionCost, error) {
	u := in.Usage
	rec := models.InteractionCost{
		Timestamp:    t.now(),
		Model:        in.Model,
		InputTokens:  u.InputTokens,
		OutputTokens: u.OutputTokens,
		CachedTokens: u.CachedTokens,
		Cost:         t.table.Cost(in.Model, u.InputTokens, u.OutputTokens, u.CachedTokens),
	}

	t.mu.Lock()
	s := &t.stats
	s.TotalInteractions++
	s.TotalInputTokens += int64(u.InputTokens)
	s.TotalOutputTokens += int64(u.OutputTokens)
	s.TotalCachedTokens += int64(u.CachedTokens)
	s.TotalCost += rec.Cost
	s.CacheMisses++
	s.Interactions = append(s.Interactions, rec)
	sessionID := t.sessionID
	t.mu.Unlock()

	t.logger.Debug("recorded interaction",
		"model", in.Model,
		"input_tokens", u.InputTokens,
		"output_tokens", u.OutputTokens,
		"cost", rec.Cost,
	)

	if t.ledger == nil {
		return rec, nil
	}
	err := t.ledger.Record(ctx, models.LedgerRecord{
		SessionID:    sessionID,
		Agent:        in.Agent,
		Signature:    in.Signature,
		Model:        in.Model,
		InputTokens:  u.InputTokens,
		OutputTokens: u.OutputTokens,
		CachedTokens: u.CachedTokens,
		Cost:         rec.Cost,
		CreatedAt:    rec.Timestamp,
	})
	if err != nil {
		return rec, fmt.Errorf("ledger interaction: %w", err)
	}
	return rec, nil
}

// RecordCacheHit counts an interaction served from the cache at no cost.
func (t *Tracker) RecordCacheHit(ctx context.Context, agent, signature string) error {
	t.mu.Lock()
	t.stats.CacheHits++
	t.stats.TotalInteractions++
	sessionID := t.sessionID
	t.mu.Unlock()

	if t.ledger == nil {
		return nil
	}
	err := t.ledger.Record(ctx, models.LedgerRecord{
		SessionID: sessionID,
		Agent:     agent,
		Signature: signature,
		CacheHit:  true,
		CreatedAt: t.now(),
	})
	if err != nil {
		return fmt.Errorf("ledger cache hit: %w", err)
	}
	return nil
}

// Stats reports the session totals. Cost is rounded to four decimals and
// the hit rate to three.
func (t *Tracker) Stats() models.CostStats {
	t.mu.Lock()
	s := t.stats
	t.mu.Unlock()

	var hitRate float64
	if n := s.CacheHits + s.CacheMisses; n > 0 {
		hitRate = float64(s.CacheHits) / float64(n)
	}
	return models.CostStats{
		TotalInteractions: s.TotalInteractions,
		TotalInputTokens:  s.TotalInputTokens,
		TotalOutputTokens: s.TotalOutputTokens,
		TotalCachedTokens: s.TotalCachedTokens,
		TotalCost:         round(s.TotalCost, 4),
		CacheHits:         s.CacheHits,
		CacheMisses:       s.CacheMisses,
		CacheHitRate:      round(hitRate, 3),
		SessionDuration:   t.now().Sub(s.StartTime),
	}
}

// Session returns a copy of the raw session aggregate.
func (t *Tracker) Session() models.SessionStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.stats
	s.Interactions = slices.Clone(s.Interactions)
	return s
}

// LastInteraction returns the most recent priced interaction.
func (t *Tracker) LastInteraction() (models.InteractionCost, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.stats.Interactions) == 0 {
		return models.InteractionCost{}, false
	}
	return t.stats.Interactions[len(t.stats.Interactions)-1], true
}

// Reset starts a new session.
func (t *Tracker) Reset() {
	t.mu.Lock()
	prev := t.sessionID
	t.sessionID = uuid.NewString()
	t.stats = models.SessionStats{StartTime: t.now()}
	t.mu.Unlock()
	t.logger.Info("cost tracker reset", "previous_session", prev)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
