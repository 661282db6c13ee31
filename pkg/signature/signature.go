// Package signature derives fuzzy-match cache keys for agent interactions.
package signature

import (
	"fmt"
	"strings"

	"github.com/zeebo/xxh3"
)

// Separator joins the components before hashing.
const Separator = "|"

// Len is the width of a rendered signature.
const Len = 16

// Components are the inputs to a signature.
type Components struct {
	AgentName     string `json:"agent_name"`
	SituationType string `json:"situation_type"`
	StateBucket   string `json:"state_bucket"`
	InputIntent   string `json:"input_intent"`
}

// String returns the joined form that is hashed.
func (c Components) String() string {
	return strings.Join([]string{c.AgentName, c.SituationType, c.StateBucket, c.InputIntent}, Separator)
}

// Compute hashes c into 16 lowercase hex characters. It is a pure function
// of its input. The hash is not collision resistant against adversaries.
func Compute(c Components) string {
	return fmt.Sprintf("%016x", xxh3.HashString(c.String()))
}

// FromMap builds a signature from a map with agent_name, situation_type,
// state_bucket and input_intent keys. Missing keys are treated as empty.
func FromMap(m map[string]string) string {
	return Compute(Components{
		AgentName:     m["agent_name"],
		SituationType: m["situation_type"],
		StateBucket:   m["state_bucket"],
		InputIntent:   m["input_intent"],
	})
}

// NormalizeInput lower-cases text, trims it, and collapses whitespace runs
// to a single space.
func NormalizeInput(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// Valid reports whether s looks like a rendered signature.
func Valid(s string) bool {
	if len(s) != Len {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}
