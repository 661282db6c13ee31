// Package bucket maps continuous world-state values onto coarse labels so
// that similar situations produce the same signature.
package bucket

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync"
)

// Unknown is returned when a value falls outside every range.
const Unknown = "unknown"

// Range is a half-open interval [Min, Max) with a label.
type Range struct {
	Min   float64 `json:"min" yaml:"min"`
	Max   float64 `json:"max" yaml:"max"`
	Label string  `json:"label" yaml:"label"`
}

// Config maps a state key to its ordered ranges.
type Config map[string][]Range

// DefaultConfig returns the built-in tables for approval, economy and tension.
func DefaultConfig() Config {
	return Config{
		"approval": {
			{0, 30, "very_low"},
			{30, 50, "low"},
			{50, 70, "medium"},
			{70, 85, "high"},
			{85, 100, "very_high"},
		},
		"economy": {
			{-100, -50, "crisis"},
			{-50, -10, "recession"},
			{-10, 10, "stable"},
			{10, 50, "growing"},
			{50, 100, "booming"},
		},
		"tension": {
			{0, 25, "calm"},
			{25, 50, "uneasy"},
			{50, 75, "tense"},
			{75, 100, "critical"},
		},
	}
}

// Clone returns a deep copy of c.
func (c Config) Clone() Config {
	out := make(Config, len(c))
	for k, r := range c {
		out[k] = slices.Clone(r)
	}
	return out
}

// Validate reports the first range whose bounds are inverted or empty.
func (c Config) Validate() error {
	for _, key := range slices.Sorted(maps.Keys(c)) {
		for i, r := range c[key] {
			if r.Min >= r.Max {
				return fmt.Errorf("bucket %s[%d] %q: min %v must be below max %v", key, i, r.Label, r.Min, r.Max)
			}
			if r.Label == "" {
				return fmt.Errorf("bucket %s[%d]: empty label", key, i)
			}
		}
	}
	return nil
}

// Merge combines configs left to right; later configs win per key.
func Merge(configs ...Config) Config {
	out := make(Config)
	for _, c := range configs {
		for k, r := range c {
			out[k] = slices.Clone(r)
		}
	}
	return out
}

// Classify returns the label of the first range containing v, scanning in
// order. A value equal to the upper bound of the last range belongs to it.
func Classify(v float64, ranges []Range) string {
	for _, r := range ranges {
		if r.Min <= v && v < r.Max {
			return r.Label
		}
	}
	if n := len(ranges); n > 0 && v == ranges[n-1].Max {
		return ranges[n-1].Label
	}
	return Unknown
}

// Encode renders state as comma-joined key:label pairs in lexicographic key
// order. Numbers are bucketed when cfg has ranges for the key, strings are
// lower-cased, booleans become "true"/"false". Anything else is skipped.
func Encode(state State, cfg Config) string {
	parts := make([]string, 0, len(state))
	for _, key := range slices.Sorted(maps.Keys(state)) {
		v := state[key]
		switch v.Kind() {
		case KindNumber:
			ranges, ok := cfg[key]
			if !ok {
				continue
			}
			parts = append(parts, key+":"+Classify(v.Num(), ranges))
		case KindString:
			parts = append(parts, key+":"+strings.ToLower(v.Str()))
		case KindBool:
			parts = append(parts, key+":"+strconv.FormatBool(v.Truth()))
		}
	}
	return strings.Join(parts, ",")
}

// Bucketer holds a bucket configuration. It is safe for concurrent use.
type Bucketer struct {
	mu  sync.RWMutex
	cfg Config
}

// New creates a Bucketer. A nil config selects DefaultConfig.
func New(cfg Config) *Bucketer {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Bucketer{cfg: cfg.Clone()}
}

// Bucket encodes state with the bucketer's configuration.
func (b *Bucketer) Bucket(state State) string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Encode(state, b.cfg)
}

// AddRanges sets the ranges for key, replacing any existing ones.
func (b *Bucketer) AddRanges(key string, ranges []Range) {
	b.mu.Lock()
	b.cfg[key] = slices.Clone(ranges)
	b.mu.Unlock()
}

// Config returns a copy of the current configuration.
func (b *Bucketer) Config() Config {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cfg.Clone()
}
