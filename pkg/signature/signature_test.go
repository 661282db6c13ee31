package signature

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/frugal/pkg/bucket"
)

func scenario() Components {
	state := bucket.State{"approval": bucket.Number(67), "economy": bucket.Number(5)}
	return Components{
		AgentName:     "pm",
		SituationType: "budget",
		StateBucket:   bucket.Encode(state, bucket.DefaultConfig()),
		InputIntent:   NormalizeInput("  Reduce   DEFENSE\tspending "),
	}
}

func TestComputeDeterministic(t *testing.T) {
	c := scenario()
	require.Equal(t, "approval:medium,economy:stable", c.StateBucket)
	require.Equal(t, "reduce defense spending", c.InputIntent)

	first := Compute(c)
	assert.Len(t, first, Len)
	assert.True(t, Valid(first))
	for range 100 {
		assert.Equal(t, first, Compute(scenario()))
	}
}

func TestComputeChangesWithAnyComponent(t *testing.T) {
	base := scenario()
	sig := Compute(base)

	variants := []Components{base, base, base, base}
	variants[0].AgentName = "cos"
	variants[1].SituationType = "crisis"
	variants[2].StateBucket = "approval:high,economy:stable"
	variants[3].InputIntent = "raise defense spending"

	seen := map[string]bool{sig: true}
	for _, v := range variants {
		s := Compute(v)
		assert.NotEqual(t, sig, s)
		assert.False(t, seen[s], "signatures should be distinct")
		seen[s] = true
	}
}

func TestComputeUsesSeparator(t *testing.T) {
	a := Components{AgentName: "ab", SituationType: "c"}
	b := Components{AgentName: "a", SituationType: "bc"}
	assert.NotEqual(t, Compute(a), Compute(b))
	assert.Equal(t, "ab|c||", a.String())
}

func TestFromMap(t *testing.T) {
	c := scenario()
	got := FromMap(map[string]string{
		"agent_name":     c.AgentName,
		"situation_type": c.SituationType,
		"state_bucket":   c.StateBucket,
		"input_intent":   c.InputIntent,
	})
	assert.Equal(t, Compute(c), got)
	assert.Equal(t, Compute(Components{}), FromMap(nil))
}

func TestNormalizeInput(t *testing.T) {
	tests := map[string]string{
		"Hello World":            "hello world",
		"  padded  ":             "padded",
		"tabs\tand\nnewlines":    "tabs and newlines",
		"":                       "",
		"   ":                    "",
		"MIXED   case\r\n INPUT": "mixed case input",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeInput(in), "input %q", in)
	}
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("0123456789abcdef"))
	assert.False(t, Valid("0123456789ABCDEF"))
	assert.False(t, Valid("abc"))
	assert.False(t, Valid("../../etc/passwd"))
}
