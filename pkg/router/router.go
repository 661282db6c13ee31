// Package router picks a model tier for each kind of task.
package router

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/pario-ai/frugal/pkg/config"
)

// TaskType is the kind of work a model call performs.
type TaskType string

const (
	TaskCompaction       TaskType = "compaction"
	TaskSummarization    TaskType = "summarization"
	TaskAgentResponse    TaskType = "agent_response"
	TaskComplexReasoning TaskType = "complex_reasoning"
)

// TaskTypes lists the known task types.
func TaskTypes() []TaskType {
	return []TaskType{TaskCompaction, TaskSummarization, TaskAgentResponse, TaskComplexReasoning}
}

// ParseTaskType accepts the snake_case or upper-case name of a task type.
func ParseTaskType(s string) (TaskType, error) {
	t := TaskType(strings.ToLower(strings.TrimSpace(s)))
	if slices.Contains(TaskTypes(), t) {
		return t, nil
	}
	return "", fmt.Errorf("unknown task type %q", s)
}

// Model identifiers used by the default routing table.
const (
	ModelHaiku  = "claude-haiku-3-20240307"
	ModelSonnet = "claude-sonnet-4-20250514"
	ModelOpus   = "claude-opus-4-20250514"
)

// DefaultRouting sends housekeeping to the cheap tier and agent work to the
// capable tier.
func DefaultRouting() map[TaskType]string {
	return map[TaskType]string{
		TaskCompaction:       ModelHaiku,
		TaskSummarization:    ModelHaiku,
		TaskAgentResponse:    ModelSonnet,
		TaskComplexReasoning: ModelSonnet,
	}
}

// Tier is the cost class of a model.
type Tier string

const (
	TierHaiku   Tier = "haiku"
	TierSonnet  Tier = "sonnet"
	TierOpus    Tier = "opus"
	TierUnknown Tier = "unknown"
)

// TierOf classifies a model identifier by case-insensitive substring.
func TierOf(model string) Tier {
	m := strings.ToLower(model)
	switch {
	case strings.Contains(m, "haiku"):
		return TierHaiku
	case strings.Contains(m, "sonnet"):
		return TierSonnet
	case strings.Contains(m, "opus"):
		return TierOpus
	default:
		return TierUnknown
	}
}

// Route is a resolved provider and model.
type Route struct {
	Provider config.ProviderConfig
	Model    string
}

// Router maps task types to models and models to providers.
type Router struct {
	mu           sync.RWMutex
	routing      map[TaskType]string
	defaultModel string
	providers    []config.ProviderConfig
	logger       *slog.Logger
}

// New creates a Router. A nil routing table selects DefaultRouting and an
// empty defaultModel selects ModelSonnet.
func New(routing map[TaskType]string, defaultModel string, logger *slog.Logger) *Router {
	if routing == nil {
		routing = DefaultRouting()
	}
	if defaultModel == "" {
		defaultModel = ModelSonnet
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		routing:      maps.Clone(routing),
		defaultModel: defaultModel,
		logger:       logger,
	}
}

// FromConfig builds a Router from the router and provider sections.
// Configured routes are layered over DefaultRouting.
func FromConfig(cfg *config.Config, logger *slog.Logger) (*Router, error) {
	routing := DefaultRouting()
	for name, model := range cfg.Router.Routes {
		t, err := ParseTaskType(name)
		if err != nil {
			return nil, fmt.Errorf("router config: %w", err)
		}
		routing[t] = model
	}
	r := New(routing, cfg.Router.DefaultModel, logger)
	r.providers = slices.Clone(cfg.Providers)
	return r, nil
}

// Model returns the model for task, or the default model if task is unmapped.
func (r *Router) Model(task TaskType) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	model, ok := r.routing[task]
	if !ok || model == "" {
		model = r.defaultModel
	}
	r.logger.Debug("routing task", "task", task, "model", model)
	return model
}

// SetModel overrides the model for task.
func (r *Router) SetModel(task TaskType, model string) {
	r.mu.Lock()
	r.routing[task] = model
	r.mu.Unlock()
	r.logger.Info("updated routing", "task", task, "model", model)
}

// DefaultModel returns the fallback model.
func (r *Router) DefaultModel() string {
	return r.defaultModel
}

// Routing returns a copy of the routing table keyed by task name.
func (r *Router) Routing() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.routing))
	for k, v := range r.routing {
		out[string(k)] = v
	}
	return out
}

// Tier returns the tier of the model task routes to.
func (r *Router) Tier(task TaskType) Tier { return TierOf(r.Model(task)) }

// IsHaikuTask reports whether task routes to the cheapest tier.
func (r *Router) IsHaikuTask(task TaskType) bool { return r.Tier(task) == TierHaiku }

// IsSonnetTask reports whether task routes to the standard tier.
func (r *Router) IsSonnetTask(task TaskType) bool { return r.Tier(task) == TierSonnet }

// IsOpusTask reports whether task routes to the most capable tier.
func (r *Router) IsOpusTask(task TaskType) bool { return r.Tier(task) == TierOpus }

// Resolve returns the model for task and the provider that serves it.
// A provider serves a model when one of its model prefixes matches;
// otherwise the first provider is used.
func (r *Router) Resolve(task TaskType) (Route, error) {
	model := r.Model(task)
	if len(r.providers) == 0 {
		return Route{}, fmt.Errorf("no providers configured")
	}
	for _, p := range r.providers {
		for _, prefix := range p.Models {
			if strings.HasPrefix(model, prefix) {
				return Route{Provider: p, Model: model}, nil
			}
		}
	}
	return Route{Provider: r.providers[0], Model: model}, nil
}
