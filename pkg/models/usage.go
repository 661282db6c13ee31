package models

import "time"

// Usage represents token usage reported by a model call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	CachedTokens int `json:"cached_tokens"`
}

// TotalTokens returns input plus output tokens.
func (u Usage) TotalTokens() int {
	return u.InputTokens + u.OutputTokens
}

// InteractionCost is the cost record for a single interaction.
type InteractionCost struct {
	Timestamp    time.Time `json:"timestamp"`
	Model        string    `json:"model"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	CachedTokens int       `json:"cached_tokens"`
	Cost         float64   `json:"cost"`
	CacheHit     bool      `json:"cache_hit"`
}

// SessionStats is the running aggregate kept by a cost tracker.
type SessionStats struct {
	TotalInteractions int
	TotalInputTokens  int64
	TotalOutputTokens int64
	TotalCachedTokens int64
	TotalCost         float64
	CacheHits         int
	CacheMisses       int
	StartTime         time.Time
	Interactions      []InteractionCost
}

// CostStats is the reporting view of SessionStats.
type CostStats struct {
	TotalInteractions int           `json:"total_interactions"`
	TotalInputTokens  int64         `json:"total_input_tokens"`
	TotalOutputTokens int64         `json:"total_output_tokens"`
	TotalCachedTokens int64         `json:"total_cached_tokens"`
	TotalCost         float64       `json:"total_cost"`
	CacheHits         int           `json:"cache_hits"`
	CacheMisses       int           `json:"cache_misses"`
	CacheHitRate      float64       `json:"cache_hit_rate"`
	SessionDuration   time.Duration `json:"session_duration"`
}

// LedgerRecord is a persisted interaction row.
type LedgerRecord struct {
	ID           int64     `json:"id"`
	SessionID    string    `json:"session_id"`
	Agent        string    `json:"agent,omitempty"`
	Signature    string    `json:"signature,omitempty"`
	Model        string    `json:"model"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	CachedTokens int       `json:"cached_tokens"`
	Cost         float64   `json:"cost"`
	CacheHit     bool      `json:"cache_hit"`
	CreatedAt    time.Time `json:"created_at"`
}

// LedgerSummary aggregates ledger rows per model.
type LedgerSummary struct {
	Model        string  `json:"model"`
	Interactions int     `json:"interactions"`
	CacheHits    int     `json:"cache_hits"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	CachedTokens int64   `json:"cached_tokens"`
	Cost         float64 `json:"cost"`
}

// Session groups ledger rows recorded by one tracker instance.
type Session struct {
	ID           string    `json:"id"`
	StartedAt    time.Time `json:"started_at"`
	LastActivity time.Time `json:"last_activity"`
	Interactions int       `json:"interactions"`
	TotalCost    float64   `json:"total_cost"`
}
