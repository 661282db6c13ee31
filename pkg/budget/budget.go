// Package budget bounds what a session may spend on model calls.
package budget

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/pario-ai/frugal/pkg/models"
)

// ErrBudgetExceeded is returned when a call would exceed a ceiling.
var ErrBudgetExceeded = errors.New("budget exceeded")

// Scope names the ceiling a call ran into.
type Scope string

const (
	ScopeInteraction   Scope = "interaction"
	ScopeSession       Scope = "session"
	ScopeInputTokens   Scope = "input_tokens"
	ScopeContext       Scope = "context"
	ScopeSessionTokens Scope = "session_tokens"
)

func (s Scope) tokens() bool {
	return s == ScopeInputTokens || s == ScopeContext || s == ScopeSessionTokens
}

// ExceededError carries what was attempted and what was left when a call
// was rejected. Cost scopes are in USD and token scopes in tokens.
type ExceededError struct {
	Scope     Scope
	Attempted float64
	Remaining float64
	Limit     float64
}

func (e *ExceededError) Error() string {
	if e.Scope.tokens() {
		return fmt.Sprintf("budget exceeded: %s limit %.0f tokens, attempted %.0f, remaining %.0f",
			e.Scope, e.Limit, e.Attempted, e.Remaining)
	}
	return fmt.Sprintf("budget exceeded: %s limit $%.4f, attempted $%.4f, remaining $%.4f",
		e.Scope, e.Limit, e.Attempted, e.Remaining)
}

// Is makes errors.Is(err, ErrBudgetExceeded) hold.
func (e *ExceededError) Is(target error) bool { return target == ErrBudgetExceeded }

// DefaultContextLimit applies to models without a known context window.
const DefaultContextLimit = 200_000

var contextLimits = map[string]int{
	"claude-haiku-3-20240307":  200_000,
	"claude-sonnet-4-20250514": 200_000,
	"claude-opus-4-20250514":   200_000,
}

// ContextLimit returns the context window of model in tokens.
func ContextLimit(model string) int {
	if n, ok := contextLimits[model]; ok {
		return n
	}
	return DefaultContextLimit
}

// EstimateTokens approximates the token count of text at four characters
// per token.
func EstimateTokens(text string) int {
	return len(text) / 4
}

// Request is a prospective call. OutputTokens is only held as pending
// usage by Reserve.
type Request struct {
	Cost         float64
	InputTokens  int
	OutputTokens int
	Model        string
}

// Reservation is spend held by Reserve until Settle or Release.
type Reservation struct {
	cost   float64
	tokens int64
}

// Decision is the outcome of a budget check.
type Decision struct {
	Allowed         bool
	Warning         bool
	NeedsCompaction bool
	Reason          string
}

// Compaction suggests how far to shrink the conversation history.
type Compaction struct {
	CurrentInputTokens int64 `json:"current_input_tokens"`
	TargetInputTokens  int64 `json:"target_input_tokens"`
	ReductionNeeded    int64 `json:"reduction_needed"`
	KeepRecentMessages int   `json:"keep_recent_messages"`
}

// Manager enforces cost and token ceilings for one session. Spend is only
// recorded by Commit or Settle, after a call has succeeded. Calls admitted
// by Reserve count as pending spend until then, so concurrent callers
// cannot jointly overrun a ceiling.
type Manager struct {
	logger *slog.Logger

	mu            sync.Mutex
	budget        models.TokenBudget
	spent         float64
	inputTokens   int64
	outputTokens  int64
	interactions  int
	pendingCost   float64
	pendingTokens int64
}

// New creates a Manager. A nil logger uses slog.Default.
func New(b models.TokenBudget, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{budget: b, logger: logger}
}

// Check decides whether req may proceed. A rejected request returns an
// *ExceededError alongside a Decision that explains it. Check holds
// nothing; use Reserve when the call will run.
func (m *Manager) Check(req Request) (Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.check(req)
}

// Reserve is Check that, when the request is allowed, holds its cost and
// tokens as pending spend. Every successful Reserve must be followed by
// exactly one Settle or Release.
func (m *Manager) Reserve(req Request) (Reservation, Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, err := m.check(req)
	if err != nil {
		return Reservation{}, d, err
	}
	r := Reservation{cost: req.Cost, tokens: int64(req.InputTokens + req.OutputTokens)}
	m.pendingCost += r.cost
	m.pendingTokens += r.tokens
	return r, d, nil
}

// Settle replaces a reservation with the actual cost and usage of the
// completed call.
func (m *Manager) Settle(r Reservation, cost float64, u models.Usage) {
	m.mu.Lock()
	m.release(r)
	m.mu.Unlock()
	m.Commit(cost, u)
}

// Release drops a reservation whose call did not complete.
func (m *Manager) Release(r Reservation) {
	m.mu.Lock()
	m.release(r)
	m.mu.Unlock()
}

func (m *Manager) release(r Reservation) {
	m.pendingCost = math.Max(0, m.pendingCost-r.cost)
	m.pendingTokens = max(0, m.pendingTokens-r.tokens)
}

func (m *Manager) check(req Request) (Decision, error) {
	b := m.budget
	committed := m.spent + m.pendingCost
	remaining := m.remainingCost()

	if b.CostLimitPerInteraction > 0 && req.Cost > b.CostLimitPerInteraction {
		return m.reject(Decision{}, &ExceededError{
			Scope:     ScopeInteraction,
			Attempted: req.Cost,
			Remaining: remaining,
			Limit:     b.CostLimitPerInteraction,
		})
	}
	if b.CostLimitPerSession > 0 && committed+req.Cost > b.CostLimitPerSession {
		return m.reject(Decision{}, &ExceededError{
			Scope:     ScopeSession,
			Attempted: req.Cost,
			Remaining: remaining,
			Limit:     b.CostLimitPerSession,
		})
	}

	in := float64(req.InputTokens)
	if b.MaxInputTokens > 0 && req.InputTokens > b.MaxInputTokens {
		return m.reject(Decision{NeedsCompaction: true}, &ExceededError{
			Scope:     ScopeInputTokens,
			Attempted: in,
			Remaining: float64(b.MaxInputTokens),
			Limit:     float64(b.MaxInputTokens),
		})
	}
	if window := ContextLimit(req.Model) - b.ReserveTokens; req.InputTokens > window {
		return m.reject(Decision{NeedsCompaction: true}, &ExceededError{
			Scope:     ScopeContext,
			Attempted: in,
			Remaining: float64(max(window, 0)),
			Limit:     float64(ContextLimit(req.Model)),
		})
	}

	used := m.inputTokens + m.outputTokens + m.pendingTokens
	projected := used + int64(req.InputTokens)
	if b.MaxTotalTokens > 0 && projected > int64(b.MaxTotalTokens) {
		return m.reject(Decision{}, &ExceededError{
			Scope:     ScopeSessionTokens,
			Attempted: in,
			Remaining: float64(max(int64(b.MaxTotalTokens)-used, 0)),
			Limit:     float64(b.MaxTotalTokens),
		})
	}

	d := Decision{Allowed: true}
	if b.WarningThreshold > 0 {
		if b.MaxTotalTokens > 0 {
			if ratio := float64(projected) / float64(b.MaxTotalTokens); ratio >= b.WarningThreshold {
				d.Warning = true
				d.Reason = fmt.Sprintf("approaching token budget (%.0f%% used)", ratio*100)
			}
		}
		if b.CostLimitPerSession > 0 {
			if ratio := (committed + req.Cost) / b.CostLimitPerSession; ratio >= b.WarningThreshold {
				d.Warning = true
				d.Reason = fmt.Sprintf("approaching cost budget (%.0f%% used)", ratio*100)
			}
		}
	}
	if d.Warning {
		m.logger.Warn("budget warning", "reason", d.Reason)
	}
	return d, nil
}

func (m *Manager) reject(d Decision, err *ExceededError) (Decision, error) {
	d.Allowed = false
	d.Reason = err.Error()
	m.logger.Warn("budget rejected call",
		"scope", err.Scope,
		"attempted", err.Attempted,
		"remaining", err.Remaining,
		"limit", err.Limit,
	)
	return d, err
}

func (m *Manager) remainingCost() float64 {
	if m.budget.CostLimitPerSession <= 0 {
		return math.Inf(1)
	}
	return math.Max(0, m.budget.CostLimitPerSession-m.spent-m.pendingCost)
}

// Commit records the actual cost and usage of a completed call.
func (m *Manager) Commit(cost float64, u models.Usage) {
	m.mu.Lock()
	m.spent += cost
	m.inputTokens += int64(u.InputTokens)
	m.outputTokens += int64(u.OutputTokens)
	m.interactions++
	total := m.inputTokens + m.outputTokens
	m.mu.Unlock()

	m.logger.Debug("budget commit", "cost", cost, "total_tokens", total)
}

// OutputTokens caps requested at MaxOutputTokens. A non-positive request
// asks for the maximum.
func (m *Manager) OutputTokens(requested int) int {
	m.mu.Lock()
	limit := m.budget.MaxOutputTokens
	m.mu.Unlock()
	if limit <= 0 {
		return requested
	}
	if requested <= 0 || requested > limit {
		return limit
	}
	return requested
}

// Status reports spend against the ceilings.
func (m *Manager) Status() models.BudgetStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	b := m.budget
	s := models.BudgetStatus{
		Budget:       b,
		SpentCost:    m.spent,
		PendingCost:  m.pendingCost,
		InputTokens:  m.inputTokens,
		OutputTokens: m.outputTokens,
		Interactions: m.interactions,
	}
	if b.CostLimitPerSession > 0 {
		s.RemainingCost = math.Max(0, b.CostLimitPerSession-m.spent-m.pendingCost)
		s.PercentUsed = math.Round(m.spent/b.CostLimitPerSession*1000) / 10
	}
	if b.MaxTotalTokens > 0 {
		s.RemainingTokens = max(int64(b.MaxTotalTokens)-(m.inputTokens+m.outputTokens), 0)
	}
	return s
}

// SuggestCompaction proposes a history size that removes targetReduction
// of the input tokens used so far.
func (m *Manager) SuggestCompaction(targetReduction float64) Compaction {
	m.mu.Lock()
	current := m.inputTokens
	m.mu.Unlock()

	target := int64(float64(current) * (1 - targetReduction))
	return Compaction{
		CurrentInputTokens: current,
		TargetInputTokens:  target,
		ReductionNeeded:    current - target,
		KeepRecentMessages: max(3, int(10*(1-targetReduction))),
	}
}

// Budget returns the active ceilings.
func (m *Manager) Budget() models.TokenBudget {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.budget
}

// SetBudget replaces the ceilings without touching recorded spend.
func (m *Manager) SetBudget(b models.TokenBudget) {
	m.mu.Lock()
	m.budget = b
	m.mu.Unlock()
}

// Reset clears recorded spend. Reservations still in flight are kept.
func (m *Manager) Reset() {
	m.mu.Lock()
	m.spent = 0
	m.inputTokens = 0
	m.outputTokens = 0
	m.interactions = 0
	m.mu.Unlock()
	m.logger.Info("budget reset")
}
