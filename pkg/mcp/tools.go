package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pario-ai/frugal/pkg/bucket"
	"github.com/pario-ai/frugal/pkg/signature"
)

// toolHandler is a function that handles a tool call.
type toolHandler func(ctx context.Context, s *Server, args json.RawMessage) ToolCallResult

// toolHandlers maps tool names to their handlers.
var toolHandlers = map[string]toolHandler{
	"frugal_cost_stats":  handleCostStats,
	"frugal_cache_stats": handleCacheStats,
	"frugal_budget":      handleBudget,
	"frugal_routing":     handleRouting,
	"frugal_ledger":      handleLedger,
	"frugal_sessions":    handleSessions,
	"frugal_estimate":    handleEstimate,
	"frugal_signature":   handleSignature,
}

var emptySchema = map[string]any{
	"type":       "object",
	"properties": map[string]any{},
}

// allTools is the list of tool definitions exposed via tools/list.
var allTools = []ToolDefinition{
	{
		Name:        "frugal_cost_stats",
		Description: "Show token and cost totals for the current session, including the cache hit rate.",
		InputSchema: emptySchema,
	},
	{
		Name:        "frugal_cache_stats",
		Description: "Show response cache statistics (signatures, stored variants, hits, misses).",
		InputSchema: emptySchema,
	},
	{
		Name:        "frugal_budget",
		Description: "Show spend against the session and per-interaction cost ceilings.",
		InputSchema: emptySchema,
	},
	{
		Name:        "frugal_routing",
		Description: "Show which model each task type is routed to and its cost tier.",
		InputSchema: emptySchema,
	},
	{
		Name:        "frugal_ledger",
		Description: "Show persisted spend per model, optionally for a single session.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"session_id": map[string]any{
					"type":        "string",
					"description": "Session ID (optional, omit for all sessions)",
				},
			},
		},
	},
	{
		Name:        "frugal_sessions",
		Description: "List persisted sessions with their interaction counts and cost.",
		InputSchema: emptySchema,
	},
	{
		Name:        "frugal_estimate",
		Description: "Estimate the cost of a session of turns before running it.",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []string{"turns"},
			"properties": map[string]any{
				"turns": map[string]any{
					"type":        "integer",
					"description": "Number of turns",
				},
				"agents": map[string]any{
					"type":        "integer",
					"description": "Number of agents that may respond (default 1)",
				},
				"model": map[string]any{
					"type":        "string",
					"description": "Model to price against (optional)",
				},
			},
		},
	},
	{
		Name:        "frugal_signature",
		Description: "Compute the cache signature and state bucket for an interaction.",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []string{"agent", "situation", "input"},
			"properties": map[string]any{
				"agent":     map[string]any{"type": "string"},
				"situation": map[string]any{"type": "string"},
				"input":     map[string]any{"type": "string"},
				"state": map[string]any{
					"type":        "object",
					"description": "World state; numbers are bucketed, strings and booleans pass through",
				},
			},
		},
	},
}

func textResult(text string) ToolCallResult {
	return ToolCallResult{
		Content: []ContentBlock{{Type: "text", Text: text}},
	}
}

func errorResult(text string) ToolCallResult {
	return ToolCallResult{
		Content: []ContentBlock{{Type: "text", Text: text}},
		IsError: true,
	}
}

func handleCostStats(_ context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	return textResult(formatCostStats(s.engine.Tracker().Stats()))
}

func handleCacheStats(_ context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	c := s.engine.Cache()
	if c == nil {
		return textResult("Cache is disabled.")
	}
	stats, err := c.Stats()
	if err != nil {
		return errorResult("Error fetching cache stats: " + err.Error())
	}
	return textResult(formatCacheStats(stats))
}

func handleBudget(_ context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	status := s.engine.Budget().Status()
	outlook := s.engine.Estimator().RemainingBudget(status.Budget.CostLimitPerSession, status.SpentCost)
	return textResult(formatBudget(status, outlook))
}

func handleRouting(_ context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	return textResult(formatRouting(s.engine.Router()))
}

type ledgerArgs struct {
	SessionID string `json:"session_id"`
}

func handleLedger(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	ledger := s.engine.Tracker().Ledger()
	if ledger == nil {
		return textResult("Ledger is not enabled.")
	}
	var args ledgerArgs
	if len(rawArgs) > 0 {
		_ = json.Unmarshal(rawArgs, &args)
	}
	rows, err := ledger.Summary(ctx, args.SessionID)
	if err != nil {
		return errorResult("Error fetching ledger: " + err.Error())
	}
	return textResult(formatLedger(rows))
}

func handleSessions(ctx context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	ledger := s.engine.Tracker().Ledger()
	if ledger == nil {
		return textResult("Ledger is not enabled.")
	}
	sessions, err := ledger.Sessions(ctx)
	if err != nil {
		return errorResult("Error fetching sessions: " + err.Error())
	}
	return textResult(formatSessions(sessions))
}

type estimateArgs struct {
	Turns  int    `json:"turns"`
	Agents int    `json:"agents"`
	Model  string `json:"model"`
}

func handleEstimate(_ context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	var args estimateArgs
	if len(rawArgs) > 0 {
		if err := json.Unmarshal(rawArgs, &args); err != nil {
			return errorResult("Invalid arguments: " + err.Error())
		}
	}
	if args.Turns <= 0 {
		return errorResult("turns must be positive")
	}
	if args.Agents <= 0 {
		args.Agents = 1
	}
	est := s.engine.Estimator().EstimateSession(args.Turns, args.Agents, args.Model)
	return textResult(formatEstimate(est))
}

type signatureArgs struct {
	Agent     string         `json:"agent"`
	Situation string         `json:"situation"`
	Input     string         `json:"input"`
	State     map[string]any `json:"state"`
}

func handleSignature(_ context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	var args signatureArgs
	if len(rawArgs) > 0 {
		if err := json.Unmarshal(rawArgs, &args); err != nil {
			return errorResult("Invalid arguments: " + err.Error())
		}
	}
	stateBucket := s.engine.Bucketer().Bucket(bucket.StateFromMap(args.State))
	sig := signature.Compute(signature.Components{
		AgentName:     args.Agent,
		SituationType: args.Situation,
		StateBucket:   stateBucket,
		InputIntent:   signature.NormalizeInput(args.Input),
	})
	cached := "no"
	if c := s.engine.Cache(); c != nil && c.Has(sig) {
		cached = "yes"
	}
	return textResult(fmt.Sprintf("Signature: %s\nState bucket: %s\nCached: %s\n", sig, stateBucket, cached))
}
