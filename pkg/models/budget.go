package models

// TokenBudget holds the cost and token ceilings for a session.
// A zero ceiling disables that check.
type TokenBudget struct {
	CostLimitPerSession     float64 `json:"cost_limit_per_session" yaml:"cost_limit_per_session"`
	CostLimitPerInteraction float64 `json:"cost_limit_per_interaction" yaml:"cost_limit_per_interaction"`
	MaxInputTokens          int     `json:"max_input_tokens" yaml:"max_input_tokens"`
	MaxOutputTokens         int     `json:"max_output_tokens" yaml:"max_output_tokens"`
	MaxTotalTokens          int     `json:"max_total_tokens" yaml:"max_total_tokens"`
	WarningThreshold        float64 `json:"warning_threshold" yaml:"warning_threshold"`
	ReserveTokens           int     `json:"reserve_tokens" yaml:"reserve_tokens"`
}

// BudgetStatus shows current spend against the configured ceilings.
type BudgetStatus struct {
	Budget          TokenBudget `json:"budget"`
	SpentCost       float64     `json:"spent_cost"`
	PendingCost     float64     `json:"pending_cost,omitempty"`
	RemainingCost   float64     `json:"remaining_cost"`
	InputTokens     int64       `json:"input_tokens"`
	OutputTokens    int64       `json:"output_tokens"`
	RemainingTokens int64       `json:"remaining_tokens"`
	Interactions    int         `json:"interactions"`
	PercentUsed     float64     `json:"percent_used"`
}
