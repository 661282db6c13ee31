package pricing

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/pario-ai/frugal/pkg/models"
)

// Token counts assumed when nothing better is known about an interaction.
const (
	DefaultInputTokens        = 500
	DefaultOutputTokens       = 200
	DefaultSystemPromptTokens = 300
)

// Estimate is a predicted cost with a plausible range.
type Estimate struct {
	Cost         float64            `json:"estimated_cost"`
	MinCost      float64            `json:"min_cost"`
	MaxCost      float64            `json:"max_cost"`
	InputTokens  int                `json:"input_tokens"`
	OutputTokens int                `json:"output_tokens"`
	Model        string             `json:"model"`
	Interactions int                `json:"interactions"`
	CacheHitRate float64            `json:"cache_hit_rate"`
	Details      map[string]float64 `json:"details,omitempty"`
}

// Range formats the cost range, or the point estimate when min equals max.
func (e Estimate) Range() string {
	if e.MinCost == e.MaxCost {
		return fmt.Sprintf("$%.4f", e.Cost)
	}
	return fmt.Sprintf("$%.4f - $%.4f", e.MinCost, e.MaxCost)
}

// TokenProfile is the expected token usage of one agent's interactions.
type TokenProfile struct {
	Input        int `json:"input" yaml:"input"`
	Output       int `json:"output" yaml:"output"`
	SystemPrompt int `json:"system_prompt" yaml:"system_prompt"`
}

// InteractionInput describes an interaction to estimate. Zero fields fall
// back to the agent's profile and then to the package defaults.
type InteractionInput struct {
	Text               string
	Agent              string
	Model              string
	SystemPromptLength int
}

// Outlook describes how much of a cost limit is left.
type Outlook struct {
	Limit                 float64 `json:"limit"`
	Current               float64 `json:"current"`
	Remaining             float64 `json:"remaining"`
	PercentUsed           float64 `json:"percent_used"`
	RemainingInteractions int     `json:"estimated_remaining_interactions"`
	Warning               bool    `json:"warning"`
	Critical              bool    `json:"critical"`
}

// Estimator predicts costs without touching any session state.
type Estimator struct {
	table *Table

	mu           sync.RWMutex
	defaultModel string
	hitRate      float64
	profiles     map[string]TokenProfile
}

// NewEstimator creates an Estimator over table. A nil table selects
// DefaultTable.
func NewEstimator(table *Table, defaultModel string) *Estimator {
	if table == nil {
		table = DefaultTable()
	}
	return &Estimator{
		table:        table,
		defaultModel: defaultModel,
		profiles:     make(map[string]TokenProfile),
	}
}

// Table returns the price table.
func (e *Estimator) Table() *Table { return e.table }

// SetDefaultModel sets the model used when none is given.
func (e *Estimator) SetDefaultModel(model string) {
	e.mu.Lock()
	e.defaultModel = model
	e.mu.Unlock()
}

// SetCacheHitRate sets the expected hit rate, clamped to [0, 1].
func (e *Estimator) SetCacheHitRate(rate float64) {
	e.mu.Lock()
	e.hitRate = math.Max(0, math.Min(1, rate))
	e.mu.Unlock()
}

// SetTokenProfile records the expected usage for an agent.
func (e *Estimator) SetTokenProfile(agent string, p TokenProfile) {
	e.mu.Lock()
	e.profiles[agent] = p
	e.mu.Unlock()
}

func (e *Estimator) model(m string) string {
	if m != "" {
		return m
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.defaultModel
}

// Estimate returns the cost of a call with the given token counts.
func (e *Estimator) Estimate(inputTokens, outputTokens int, model string) float64 {
	return e.table.Cost(e.model(model), inputTokens, outputTokens, 0)
}

// EstimateInteraction predicts the cost of a single interaction. Text longer
// than the profile's input is counted at four characters per token.
func (e *Estimator) EstimateInteraction(in InteractionInput) Estimate {
	model := e.model(in.Model)
	price, _ := e.table.Lookup(model)

	e.mu.RLock()
	profile, ok := e.profiles[in.Agent]
	hitRate := e.hitRate
	e.mu.RUnlock()
	if in.Agent == "" || !ok {
		profile = TokenProfile{
			Input:        DefaultInputTokens,
			Output:       DefaultOutputTokens,
			SystemPrompt: DefaultSystemPromptTokens,
		}
	}

	inputTokens := profile.Input
	if in.Text != "" {
		inputTokens = max(inputTokens, len(in.Text)/4)
	}
	systemTokens := profile.SystemPrompt
	if in.SystemPromptLength > 0 {
		systemTokens = in.SystemPromptLength / 4
	}

	totalInput := inputTokens + systemTokens
	inputCost := float64(totalInput) / 1_000_000 * price.Input
	outputCost := float64(profile.Output) / 1_000_000 * price.Output
	cost := inputCost + outputCost
	if hitRate > 0 {
		cost *= 1 - hitRate
	}

	return Estimate{
		Cost:         cost,
		MinCost:      cost * 0.5,
		MaxCost:      cost * 2.0,
		InputTokens:  totalInput,
		OutputTokens: profile.Output,
		Model:        model,
		Interactions: 1,
		CacheHitRate: hitRate,
		Details: map[string]float64{
			"user_input_tokens":    float64(inputTokens),
			"system_prompt_tokens": float64(systemTokens),
			"input_cost":           inputCost,
			"output_cost":          outputCost,
		},
	}
}

// EstimateBatch predicts the cost of count interactions by one agent.
func (e *Estimator) EstimateBatch(count int, agent, model string) Estimate {
	single := e.EstimateInteraction(InteractionInput{Agent: agent, Model: model})
	effective := float64(count) * (1 - single.CacheHitRate)

	return Estimate{
		Cost:         single.Cost * effective,
		MinCost:      single.MinCost * float64(count) * 0.3,
		MaxCost:      single.MaxCost * float64(count),
		InputTokens:  single.InputTokens * count,
		OutputTokens: single.OutputTokens * count,
		Model:        single.Model,
		Interactions: count,
		CacheHitRate: single.CacheHitRate,
		Details: map[string]float64{
			"per_interaction_cost":   single.Cost,
			"effective_interactions": effective,
		},
	}
}

// EstimateSession predicts the cost of a session of turns. At most two
// agents are assumed to respond per turn.
func (e *Estimator) EstimateSession(turns, agentCount int, model string) Estimate {
	perTurn := min(agentCount, 2)
	est := e.EstimateBatch(turns*perTurn, "", model)
	est.Details["turns"] = float64(turns)
	est.Details["agent_count"] = float64(agentCount)
	est.Details["interactions_per_turn"] = float64(perTurn)
	return est
}

// EstimateReplay predicts the cost of replaying recorded interactions
// without the cache. Recorded token counts are used when present; otherwise
// it falls back to EstimateBatch.
func (e *Estimator) EstimateReplay(records []models.LedgerRecord, model string) Estimate {
	if len(records) == 0 {
		return Estimate{Model: e.model(model)}
	}

	var totalIn, totalOut int
	hasUsage := false
	for _, r := range records {
		if r.InputTokens > 0 || r.OutputTokens > 0 {
			hasUsage = true
			totalIn += r.InputTokens
			totalOut += r.OutputTokens
		}
	}
	if !hasUsage {
		return e.EstimateBatch(len(records), "", model)
	}

	if model == "" {
		model = records[0].Model
	}
	model = e.model(model)
	price, _ := e.table.Lookup(model)
	inputCost := float64(totalIn) / 1_000_000 * price.Input
	outputCost := float64(totalOut) / 1_000_000 * price.Output
	cost := inputCost + outputCost

	return Estimate{
		Cost:         cost,
		MinCost:      cost * 0.5,
		MaxCost:      cost * 1.5,
		InputTokens:  totalIn,
		OutputTokens: totalOut,
		Model:        model,
		Interactions: len(records),
		Details: map[string]float64{
			"input_cost":  inputCost,
			"output_cost": outputCost,
		},
	}
}

// WillExceed reports whether spending est on top of current passes limit.
func (e *Estimator) WillExceed(est Estimate, limit, current float64) bool {
	return current+est.Cost > limit
}

// RemainingBudget reports what is left of limit after current has been
// spent. Warning is set above 80% used and Critical above 95%.
func (e *Estimator) RemainingBudget(limit, current float64) Outlook {
	remaining := math.Max(0, limit-current)
	var pct float64
	if limit > 0 {
		pct = current / limit * 100
	}

	var left int
	if single := e.EstimateInteraction(InteractionInput{}).Cost; single > 0 {
		left = int(remaining / single)
	}

	return Outlook{
		Limit:                 limit,
		Current:               current,
		Remaining:             remaining,
		PercentUsed:           math.Round(pct*10) / 10,
		RemainingInteractions: left,
		Warning:               pct > 80,
		Critical:              pct > 95,
	}
}

// Format renders an estimate for humans.
func Format(est Estimate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Cost Estimate: %s\n", est.Range())
	fmt.Fprintf(&b, "  Model: %s\n", est.Model)
	fmt.Fprintf(&b, "  Interactions: %d\n", est.Interactions)
	fmt.Fprintf(&b, "  Input tokens: ~%s\n", humanize.Comma(int64(est.InputTokens)))
	fmt.Fprintf(&b, "  Output tokens: ~%s", humanize.Comma(int64(est.OutputTokens)))
	if est.CacheHitRate > 0 {
		fmt.Fprintf(&b, "\n  Expected cache hit rate: %.0f%%", est.CacheHitRate*100)
	}
	return b.String()
}
