package models

import "time"

// VariantMetadata records where a cached response came from.
type VariantMetadata struct {
	Model     string    `json:"model,omitempty"`
	Cost      float64   `json:"cost"`
	LatencyMs int64     `json:"latency_ms"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	// Extra carries caller-supplied labels (situation, turn, ...).
	Extra map[string]string `json:"extra,omitempty"`
}

// CachedVariant is one stored response for a signature.
type CachedVariant struct {
	Signature string          `json:"signature"`
	Response  string          `json:"response"`
	Metadata  VariantMetadata `json:"metadata"`
}

// CacheRecord is the durable form of all variants stored under one signature.
// Variants are ordered oldest first.
type CacheRecord struct {
	Signature string          `json:"signature"`
	Responses []CachedVariant `json:"responses"`
}

// CacheStats reports how much the response cache holds, plus the hit and
// miss counts seen by this process.
type CacheStats struct {
	Signatures    int64 `json:"signatures"`
	TotalVariants int64 `json:"total_variants"`
	Hits          int64 `json:"hits"`
	Misses        int64 `json:"misses"`
}

// Append adds v and keeps only the most recent limit variants.
// A non-positive limit keeps everything.
func (r *CacheRecord) Append(v CachedVariant, limit int) {
	r.Responses = append(r.Responses, v)
	if limit > 0 && len(r.Responses) > limit {
		r.Responses = append([]CachedVariant(nil), r.Responses[len(r.Responses)-limit:]...)
	}
}
