package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/frugal/pkg/models"
)

const (
	haiku  = "claude-haiku-3-20240307"
	sonnet = "claude-sonnet-4-20250514"
	opus   = "claude-opus-4-20250514"
)

func TestCostFormula(t *testing.T) {
	table := DefaultTable()
	got := table.Cost(sonnet, 1000, 500, 0)
	assert.InDelta(t, 1000/1e6*3.0+500/1e6*15.0, got, 1e-12)
	assert.InDelta(t, 0.0105, got, 1e-12)
}

func TestCostCachedDiscount(t *testing.T) {
	table := DefaultTable()
	// 1000 input with 500 cached bills 1000 - 450 = 550 input tokens.
	got := table.Cost(sonnet, 1000, 0, 500)
	assert.InDelta(t, 550/1e6*3.0, got, 1e-12)

	assert.Zero(t, table.Cost(sonnet, 10, 0, 1000), "effective input never goes negative")
}

func TestLookup(t *testing.T) {
	table := DefaultTable()

	p, ok := table.Lookup(opus)
	require.True(t, ok)
	assert.Equal(t, 15.0, p.Input)

	p, ok = table.Lookup(haiku + "-beta")
	require.True(t, ok, "prefix match")
	assert.Equal(t, 0.25, p.Input)

	p, ok = table.Lookup("mystery-model")
	assert.False(t, ok)
	assert.Equal(t, table.Default(), p)
	assert.InDelta(t, 0.0105, table.Cost("mystery-model", 1000, 500, 0), 1e-12)
}

func TestLookupLongestPrefix(t *testing.T) {
	table := NewTable(models.ModelPricing{Input: 1, Output: 1}, []models.ModelPricing{
		{Model: "gpt-4", Input: 30, Output: 60},
		{Model: "gpt-4o", Input: 2.5, Output: 10},
	})
	p, ok := table.Lookup("gpt-4o-2024-08-06")
	require.True(t, ok)
	assert.Equal(t, 2.5, p.Input)

	names := []string{}
	for _, m := range table.Models() {
		names = append(names, m.Model)
	}
	assert.Equal(t, []string{"gpt-4", "gpt-4o"}, names)
}

func TestEstimateIsPure(t *testing.T) {
	e := NewEstimator(nil, sonnet)
	a := e.Estimate(1000, 500, "")
	b := e.Estimate(1000, 500, sonnet)
	assert.InDelta(t, 0.0105, a, 1e-12)
	assert.Equal(t, a, b)
}

func TestEstimateInteractionDefaults(t *testing.T) {
	e := NewEstimator(nil, sonnet)
	est := e.EstimateInteraction(InteractionInput{})

	assert.Equal(t, DefaultInputTokens+DefaultSystemPromptTokens, est.InputTokens)
	assert.Equal(t, DefaultOutputTokens, est.OutputTokens)
	want := 800/1e6*3.0 + 200/1e6*15.0
	assert.InDelta(t, want, est.Cost, 1e-12)
	assert.InDelta(t, want*0.5, est.MinCost, 1e-12)
	assert.InDelta(t, want*2, est.MaxCost, 1e-12)
	assert.Equal(t, 1, est.Interactions)
	assert.Equal(t, sonnet, est.Model)
}

func TestEstimateInteractionTiersOrdered(t *testing.T) {
	e := NewEstimator(nil, sonnet)
	h := e.EstimateInteraction(InteractionInput{Model: haiku})
	s := e.EstimateInteraction(InteractionInput{Model: sonnet})
	o := e.EstimateInteraction(InteractionInput{Model: opus})
	assert.Less(t, h.Cost, s.Cost)
	assert.Less(t, s.Cost, o.Cost)
}

func TestEstimateInteractionTextAndProfile(t *testing.T) {
	e := NewEstimator(nil, sonnet)

	long := make([]byte, 4000)
	est := e.EstimateInteraction(InteractionInput{Text: string(long), SystemPromptLength: 400})
	assert.Equal(t, 1000+100, est.InputTokens)

	e.SetTokenProfile("pm", TokenProfile{Input: 50, Output: 10, SystemPrompt: 20})
	est = e.EstimateInteraction(InteractionInput{Agent: "pm"})
	assert.Equal(t, 70, est.InputTokens)
	assert.Equal(t, 10, est.OutputTokens)
}

func TestEstimateWithHitRate(t *testing.T) {
	e := NewEstimator(nil, sonnet)
	base := e.EstimateInteraction(InteractionInput{}).Cost

	e.SetCacheHitRate(0.5)
	est := e.EstimateInteraction(InteractionInput{})
	assert.InDelta(t, base*0.5, est.Cost, 1e-12)

	e.SetCacheHitRate(7)
	assert.Equal(t, 1.0, e.EstimateInteraction(InteractionInput{}).CacheHitRate)
}

func TestEstimateBatchAndSession(t *testing.T) {
	e := NewEstimator(nil, sonnet)
	single := e.EstimateInteraction(InteractionInput{})

	batch := e.EstimateBatch(10, "", "")
	assert.InDelta(t, single.Cost*10, batch.Cost, 1e-12)
	assert.InDelta(t, single.MinCost*10*0.3, batch.MinCost, 1e-12)
	assert.InDelta(t, single.MaxCost*10, batch.MaxCost, 1e-12)
	assert.Equal(t, 10, batch.Interactions)

	session := e.EstimateSession(5, 4, "")
	assert.Equal(t, 10, session.Interactions, "two agents per turn at most")
	assert.Equal(t, 2.0, session.Details["interactions_per_turn"])

	solo := e.EstimateSession(5, 1, "")
	assert.Equal(t, 5, solo.Interactions)
}

func TestEstimateReplay(t *testing.T) {
	e := NewEstimator(nil, sonnet)

	empty := e.EstimateReplay(nil, "")
	assert.Zero(t, empty.Cost)

	records := []models.LedgerRecord{
		{Model: haiku, InputTokens: 1_000_000, OutputTokens: 0},
		{Model: haiku, InputTokens: 0, OutputTokens: 1_000_000},
		{Model: haiku, CacheHit: true},
	}
	est := e.EstimateReplay(records, "")
	assert.Equal(t, haiku, est.Model)
	assert.InDelta(t, 0.25+1.25, est.Cost, 1e-9)
	assert.InDelta(t, est.Cost*1.5, est.MaxCost, 1e-9)
	assert.Equal(t, 3, est.Interactions)

	noUsage := e.EstimateReplay([]models.LedgerRecord{{Model: haiku}, {Model: haiku}}, "")
	assert.Equal(t, 2, noUsage.Interactions)
	assert.InDelta(t, e.EstimateBatch(2, "", "").Cost, noUsage.Cost, 1e-12)
}

func TestWillExceed(t *testing.T) {
	e := NewEstimator(nil, sonnet)
	est := Estimate{Cost: 0.02}
	assert.True(t, e.WillExceed(est, 0.01, 0))
	assert.False(t, e.WillExceed(est, 0.05, 0.01))
	assert.True(t, e.WillExceed(est, 0.05, 0.031))
}

func TestRemainingBudget(t *testing.T) {
	e := NewEstimator(nil, sonnet)

	o := e.RemainingBudget(10, 5)
	assert.Equal(t, 5.0, o.Remaining)
	assert.Equal(t, 50.0, o.PercentUsed)
	assert.False(t, o.Warning)
	assert.Positive(t, o.RemainingInteractions)

	o = e.RemainingBudget(10, 8.5)
	assert.True(t, o.Warning)
	assert.False(t, o.Critical)

	o = e.RemainingBudget(10, 12)
	assert.True(t, o.Critical)
	assert.Zero(t, o.Remaining)

	o = e.RemainingBudget(0, 1)
	assert.Zero(t, o.PercentUsed)
}

func TestFormat(t *testing.T) {
	e := NewEstimator(nil, sonnet)
	e.SetCacheHitRate(0.25)
	out := Format(e.EstimateBatch(1000, "", ""))
	assert.Contains(t, out, "Model: "+sonnet)
	assert.Contains(t, out, "Input tokens: ~800,000")
	assert.Contains(t, out, "Expected cache hit rate: 25%")
	assert.Contains(t, out, " - $")

	point := Estimate{Cost: 0.5, MinCost: 0.5, MaxCost: 0.5}
	assert.Equal(t, "$0.5000", point.Range())
}
