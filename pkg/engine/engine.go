// Package engine runs one agent interaction through bucketing, signature
// lookup, budget gating, the model call and accounting.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/pario-ai/frugal/pkg/bucket"
	"github.com/pario-ai/frugal/pkg/budget"
	"github.com/pario-ai/frugal/pkg/cache"
	"github.com/pario-ai/frugal/pkg/llm"
	"github.com/pario-ai/frugal/pkg/models"
	"github.com/pario-ai/frugal/pkg/pricing"
	"github.com/pario-ai/frugal/pkg/router"
	"github.com/pario-ai/frugal/pkg/signature"
	"github.com/pario-ai/frugal/pkg/tracker"
)

// Phase is a step of the interaction lifecycle.
type Phase string

const (
	PhaseReceived          Phase = "received"
	PhaseBucketed          Phase = "bucketed"
	PhaseSignatureComputed Phase = "signature_computed"
	PhaseCacheLookup       Phase = "cache_lookup"
	PhaseHit               Phase = "hit"
	PhaseMiss              Phase = "miss"
	PhaseBudgetCheck       Phase = "budget_check"
	PhaseModelCall         Phase = "model_call"
	PhaseRecordCost        Phase = "record_cost"
	PhaseCacheStore        Phase = "cache_store"
	PhaseRespond           Phase = "respond"
	PhaseFail              Phase = "fail"
)

// Request is one agent interaction.
type Request struct {
	Agent     string
	Situation string
	State     bucket.State
	Input     string
	// TaskType defaults to router.TaskAgentResponse.
	TaskType        router.TaskType
	SystemPrompt    string
	MaxOutputTokens int
	// Labels are stored with a freshly generated variant.
	Labels map[string]string
}

// Response is the outcome of an interaction.
type Response struct {
	Text        string
	Signature   string
	StateBucket string
	FromCache   bool
	// Shared is set when the response came from a concurrent call for the
	// same signature.
	Shared  bool
	Model   string
	Usage   models.Usage
	Cost    float64
	Latency time.Duration
	Trace   []Phase
}

// Deps are the collaborators of an Engine. Cache may be nil to disable
// reuse. Clients maps provider names to clients and is consulted through
// Router.Resolve; Client is used when Clients is empty.
type Deps struct {
	Bucketer  *bucket.Bucketer
	Cache     *cache.Cache
	Router    *router.Router
	Estimator *pricing.Estimator
	Tracker   *tracker.Tracker
	Budget    *budget.Manager
	Client    llm.Client
	Clients   map[string]llm.Client
	Logger    *slog.Logger
}

// Engine serves interactions. It is safe for concurrent use: concurrent misses
// on one signature share a single model call, and budget reservations keep
// concurrent misses on different signatures within the ceilings.
type Engine struct {
	bucketer  *bucket.Bucketer
	cache     *cache.Cache
	router    *router.Router
	estimator *pricing.Estimator
	tracker   *tracker.Tracker
	budget    *budget.Manager
	client    llm.Client
	clients   map[string]llm.Client
	logger    *slog.Logger

	group   singleflight.Group
	closers []func() error
}

// New creates an Engine. Missing collaborators get defaults, except for
// the model client.
func New(d Deps) (*Engine, error) {
	if d.Client == nil && len(d.Clients) == 0 {
		return nil, errors.New("engine: no model client")
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Bucketer == nil {
		d.Bucketer = bucket.New(nil)
	}
	if d.Router == nil {
		d.Router = router.New(nil, "", d.Logger)
	}
	if d.Estimator == nil {
		d.Estimator = pricing.NewEstimator(nil, d.Router.DefaultModel())
	}
	if d.Tracker == nil {
		d.Tracker = tracker.New(d.Estimator.Table(), tracker.WithLogger(d.Logger))
	}
	if d.Budget == nil {
		d.Budget = budget.New(models.TokenBudget{}, d.Logger)
	}
	return &Engine{
		bucketer:  d.Bucketer,
		cache:     d.Cache,
		router:    d.Router,
		estimator: d.Estimator,
		tracker:   d.Tracker,
		budget:    d.Budget,
		client:    d.Client,
		clients:   maps.Clone(d.Clients),
		logger:    d.Logger,
	}, nil
}

// Interact answers req from the cache when a variant exists for its
// signature and otherwise calls the routed model, provided the budget
// allows it. A rejected call returns a *budget.ExceededError and no model
// is invoked. When the model call succeeds but accounting or caching fails,
// the response is returned together with the error.
func (e *Engine) Interact(ctx context.Context, req Request) (Response, error) {
	trace := []Phase{PhaseReceived}

	stateBucket := e.bucketer.Bucket(req.State)
	trace = append(trace, PhaseBucketed)

	sig := signature.Compute(signature.Components{
		AgentName:     req.Agent,
		SituationType: req.Situation,
		StateBucket:   stateBucket,
		InputIntent:   signature.NormalizeInput(req.Input),
	})
	trace = append(trace, PhaseSignatureComputed)

	if e.cache != nil {
		trace = append(trace, PhaseCacheLookup)
		if v, ok := e.cache.Get(sig); ok {
			trace = append(trace, PhaseHit, PhaseRespond)
			if err := e.tracker.RecordCacheHit(ctx, req.Agent, sig); err != nil {
				e.logger.Warn("record cache hit", "signature", sig, "error", err)
			}
			return Response{
				Text:        v.Response,
				Signature:   sig,
				StateBucket: stateBucket,
				FromCache:   true,
				Model:       v.Metadata.Model,
				Trace:       trace,
			}, nil
		}
	}
	trace = append(trace, PhaseMiss)

	leader := false
	v, err, shared := e.group.Do(sig, func() (any, error) {
		leader = true
		return e.generate(ctx, req, sig)
	})
	resp := v.(Response)
	resp.Signature = sig
	resp.StateBucket = stateBucket
	resp.Shared = shared
	resp.Trace = append(trace, resp.Trace...)

	// A caller that did not pay for the call it was served from counts as
	// a cache hit.
	served := err == nil || resp.Text != ""
	if served && (resp.FromCache || (shared && !leader)) {
		if err := e.tracker.RecordCacheHit(ctx, req.Agent, sig); err != nil {
			e.logger.Warn("record cache hit", "signature", sig, "error", err)
		}
	}
	return resp, err
}

func (e *Engine) generate(ctx context.Context, req Request, sig string) (Response, error) {
	var trace []Phase
	fail := func(err error) (Response, error) {
		return Response{Trace: append(trace, PhaseFail)}, err
	}

	// A flight that started after another one stored this signature is
	// answered from the cache.
	if e.cache != nil && e.cache.Has(sig) {
		if v, ok := e.cache.Get(sig); ok {
			return Response{
				Text:      v.Response,
				FromCache: true,
				Model:     v.Metadata.Model,
				Trace:     []Phase{PhaseHit, PhaseRespond},
			}, nil
		}
	}

	task := req.TaskType
	if task == "" {
		task = router.TaskAgentResponse
	}
	client, model, err := e.route(task)
	if err != nil {
		return fail(err)
	}

	inputTokens := budget.EstimateTokens(req.SystemPrompt) + budget.EstimateTokens(req.Input)
	outputTokens := e.budget.OutputTokens(req.MaxOutputTokens)
	if outputTokens <= 0 {
		outputTokens = llm.DefaultMaxTokens
	}
	estimate := e.estimator.Estimate(inputTokens, outputTokens, model)

	trace = append(trace, PhaseBudgetCheck)
	reservation, _, err := e.budget.Reserve(budget.Request{
		Cost:         estimate,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		Model:        model,
	})
	if err != nil {
		return fail(err)
	}

	trace = append(trace, PhaseModelCall)
	start := time.Now()
	out, err := client.Complete(ctx, llm.Request{
		Model:     model,
		System:    req.SystemPrompt,
		Prompt:    req.Input,
		MaxTokens: outputTokens,
		Agent:     req.Agent,
	})
	latency := time.Since(start)
	if err != nil {
		e.budget.Release(reservation)
		e.logger.Warn("model call failed", "model", model, "signature", sig, "error", err)
		return fail(fmt.Errorf("model call: %w", err))
	}

	trace = append(trace, PhaseRecordCost)
	cost, trackErr := e.tracker.RecordInteraction(ctx, tracker.Interaction{
		Model:     model,
		Agent:     req.Agent,
		Signature: sig,
		Usage:     out.Usage,
	})
	e.budget.Settle(reservation, cost.Cost, out.Usage)

	var storeErr error
	if e.cache != nil {
		trace = append(trace, PhaseCacheStore)
		labels := maps.Clone(req.Labels)
		if labels == nil {
			labels = make(map[string]string)
		}
		labels["agent"] = req.Agent
		labels["situation"] = req.Situation
		labels["task"] = string(task)
		storeErr = e.cache.Put(models.CachedVariant{
			Signature: sig,
			Response:  out.Text,
			Metadata: models.VariantMetadata{
				Model:     model,
				Cost:      cost.Cost,
				LatencyMs: latency.Milliseconds(),
				Extra:     labels,
			},
		})
	}
	trace = append(trace, PhaseRespond)

	e.logger.Info("model call",
		"agent", req.Agent,
		"task", task,
		"model", model,
		"cost", cost.Cost,
		"latency_ms", latency.Milliseconds(),
	)
	return Response{
		Text:    out.Text,
		Model:   model,
		Usage:   out.Usage,
		Cost:    cost.Cost,
		Latency: latency,
		Trace:   trace,
	}, errors.Join(trackErr, storeErr)
}

func (e *Engine) route(task router.TaskType) (llm.Client, string, error) {
	if len(e.clients) == 0 {
		return e.client, e.router.Model(task), nil
	}
	r, err := e.router.Resolve(task)
	if err != nil {
		return nil, "", fmt.Errorf("route %s: %w", task, err)
	}
	c, ok := e.clients[r.Provider.Name]
	if !ok {
		if e.client == nil {
			return nil, "", fmt.Errorf("route %s: no client for provider %s", task, r.Provider.Name)
		}
		c = e.client
	}
	return c, r.Model, nil
}

// Stats bundles the reporting views of every component.
type Stats struct {
	Cache   models.CacheStats   `json:"cache"`
	Cost    models.CostStats    `json:"cost"`
	Budget  models.BudgetStatus `json:"budget"`
	Routing map[string]string   `json:"routing"`
}

// Stats reports cache, cost, budget and routing state.
func (e *Engine) Stats() (Stats, error) {
	s := Stats{
		Cost:    e.tracker.Stats(),
		Budget:  e.budget.Status(),
		Routing: e.router.Routing(),
	}
	if e.cache != nil {
		cs, err := e.cache.Stats()
		if err != nil {
			return s, fmt.Errorf("cache stats: %w", err)
		}
		s.Cache = cs
	}
	return s, nil
}

// Cache returns the response cache, or nil when caching is disabled.
func (e *Engine) Cache() *cache.Cache { return e.cache }

// Tracker returns the cost tracker.
func (e *Engine) Tracker() *tracker.Tracker { return e.tracker }

// Budget returns the budget manager.
func (e *Engine) Budget() *budget.Manager { return e.budget }

// Router returns the model router.
func (e *Engine) Router() *router.Router { return e.router }

// Estimator returns the cost estimator.
func (e *Engine) Estimator() *pricing.Estimator { return e.estimator }

// Bucketer returns the state bucketer.
func (e *Engine) Bucketer() *bucket.Bucketer { return e.bucketer }

// Close releases the resources opened by Build.
func (e *Engine) Close() error {
	var errs []error
	for _, c := range slices.Backward(e.closers) {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}
