package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/frugal/pkg/bucket"
	"github.com/pario-ai/frugal/pkg/budget"
	"github.com/pario-ai/frugal/pkg/cache"
	"github.com/pario-ai/frugal/pkg/cache/file"
	"github.com/pario-ai/frugal/pkg/engine"
	"github.com/pario-ai/frugal/pkg/llm"
	"github.com/pario-ai/frugal/pkg/models"
	"github.com/pario-ai/frugal/pkg/tracker"
)

func newTestServer(t *testing.T, withLedger bool) (*Server, *engine.Engine) {
	t.Helper()
	store, err := file.New(t.TempDir())
	require.NoError(t, err)

	deps := engine.Deps{
		Cache:  cache.New(store),
		Budget: budget.New(models.TokenBudget{CostLimitPerSession: 1}, nil),
		Client: llm.NewMock(),
	}
	if withLedger {
		ledger, err := tracker.OpenLedger(filepath.Join(t.TempDir(), "ledger.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = ledger.Close() })
		deps.Tracker = tracker.New(nil, tracker.WithLedger(ledger))
	}
	e, err := engine.New(deps)
	require.NoError(t, err)
	return New(e, nil, "test"), e
}

func sendAndReceive(t *testing.T, srv *Server, requests ...string) []Response {
	t.Helper()
	input := strings.Join(requests, "\n") + "\n"
	var out bytes.Buffer
	require.NoError(t, srv.Run(context.Background(), strings.NewReader(input), &out))

	var responses []Response
	for _, line := range bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var resp Response
		require.NoError(t, json.Unmarshal(line, &resp), "line: %s", line)
		responses = append(responses, resp)
	}
	return responses
}

func callTool(t *testing.T, srv *Server, name, args string) ToolCallResult {
	t.Helper()
	if args == "" {
		args = "{}"
	}
	req := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"` + name + `","arguments":` + args + `}}`
	resps := sendAndReceive(t, srv, req)
	require.Len(t, resps, 1)
	require.Nil(t, resps[0].Error)

	data, err := json.Marshal(resps[0].Result)
	require.NoError(t, err)
	var result ToolCallResult
	require.NoError(t, json.Unmarshal(data, &result))
	require.Len(t, result.Content, 1)
	return result
}

func pmInteraction() engine.Request {
	return engine.Request{
		Agent:     "pm",
		Situation: "budget",
		State:     bucket.State{"approval": bucket.Number(67), "economy": bucket.Number(5)},
		Input:     "Reduce defense spending",
	}
}

func TestInitialize(t *testing.T) {
	srv, _ := newTestServer(t, false)
	resps := sendAndReceive(t, srv, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`)
	require.Len(t, resps, 1)

	data, err := json.Marshal(resps[0].Result)
	require.NoError(t, err)
	var result InitializeResult
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Equal(t, ProtocolVersion, result.ProtocolVersion)
	assert.Equal(t, "frugal", result.ServerInfo.Name)
	assert.Equal(t, "test", result.ServerInfo.Version)
}

func TestNotificationGetsNoResponse(t *testing.T) {
	srv, _ := newTestServer(t, false)
	resps := sendAndReceive(t, srv,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"ping"}`,
	)
	require.Len(t, resps, 1)
	assert.JSONEq(t, "2", string(resps[0].ID))
}

func TestToolsList(t *testing.T) {
	srv, _ := newTestServer(t, false)
	resps := sendAndReceive(t, srv, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	require.Len(t, resps, 1)

	data, err := json.Marshal(resps[0].Result)
	require.NoError(t, err)
	var result ToolsListResult
	require.NoError(t, json.Unmarshal(data, &result))
	require.Len(t, result.Tools, len(toolHandlers))
	for _, tool := range result.Tools {
		assert.Contains(t, toolHandlers, tool.Name)
	}
}

func TestParseErrorAndUnknownMethod(t *testing.T) {
	srv, _ := newTestServer(t, false)
	resps := sendAndReceive(t, srv,
		`not json`,
		`{"jsonrpc":"2.0","id":3,"method":"resources/list"}`,
	)
	require.Len(t, resps, 2)
	require.NotNil(t, resps[0].Error)
	assert.Equal(t, CodeParseError, resps[0].Error.Code)
	require.NotNil(t, resps[1].Error)
	assert.Equal(t, CodeMethodNotFound, resps[1].Error.Code)
}

func TestUnknownTool(t *testing.T) {
	srv, _ := newTestServer(t, false)
	result := callTool(t, srv, "nope", "")
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content[0].Text, "unknown tool")
}

func TestCostAndCacheStats(t *testing.T) {
	srv, e := newTestServer(t, false)
	ctx := context.Background()
	_, err := e.Interact(ctx, pmInteraction())
	require.NoError(t, err)
	resp, err := e.Interact(ctx, pmInteraction())
	require.NoError(t, err)
	require.True(t, resp.FromCache)

	cost := callTool(t, srv, "frugal_cost_stats", "")
	assert.False(t, cost.IsError)
	assert.Contains(t, cost.Content[0].Text, "Interactions:  2")
	assert.Contains(t, cost.Content[0].Text, "Hit rate:      50.0%")

	stats := callTool(t, srv, "frugal_cache_stats", "")
	assert.Contains(t, stats.Content[0].Text, "Signatures: 1")
	assert.Contains(t, stats.Content[0].Text, "Hits:       1")
}

func TestBudgetTool(t *testing.T) {
	srv, _ := newTestServer(t, false)
	result := callTool(t, srv, "frugal_budget", "")
	assert.Contains(t, result.Content[0].Text, "Session limit:    $1.00")
	assert.Contains(t, result.Content[0].Text, "Spent:            $0.0000")
}

func TestRoutingTool(t *testing.T) {
	srv, _ := newTestServer(t, false)
	text := callTool(t, srv, "frugal_routing", "").Content[0].Text
	assert.Contains(t, text, "compaction")
	assert.Contains(t, text, "claude-haiku-3-20240307")
	assert.Contains(t, text, "Default model: claude-sonnet-4-20250514")
}

func TestLedgerTools(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		srv, _ := newTestServer(t, false)
		assert.Equal(t, "Ledger is not enabled.", callTool(t, srv, "frugal_ledger", "").Content[0].Text)
		assert.Equal(t, "Ledger is not enabled.", callTool(t, srv, "frugal_sessions", "").Content[0].Text)
	})

	t.Run("enabled", func(t *testing.T) {
		srv, e := newTestServer(t, true)
		_, err := e.Interact(context.Background(), pmInteraction())
		require.NoError(t, err)

		summary := callTool(t, srv, "frugal_ledger", `{"session_id":"`+e.Tracker().SessionID()+`"}`)
		assert.Contains(t, summary.Content[0].Text, "claude-sonnet-4-20250514")

		sessions := callTool(t, srv, "frugal_sessions", "")
		assert.Contains(t, sessions.Content[0].Text, e.Tracker().SessionID())
	})
}

func TestEstimateTool(t *testing.T) {
	srv, _ := newTestServer(t, false)

	result := callTool(t, srv, "frugal_estimate", `{"turns":10,"agents":2}`)
	assert.False(t, result.IsError)
	assert.Contains(t, result.Content[0].Text, "Cost Estimate:")
	assert.Contains(t, result.Content[0].Text, "Interactions: 20")

	bad := callTool(t, srv, "frugal_estimate", `{"turns":0}`)
	assert.True(t, bad.IsError)
}

func TestSignatureTool(t *testing.T) {
	srv, e := newTestServer(t, false)
	args := `{"agent":"pm","situation":"budget","input":"Reduce defense spending","state":{"approval":67,"economy":5}}`

	before := callTool(t, srv, "frugal_signature", args).Content[0].Text
	assert.Contains(t, before, "State bucket: approval:medium,economy:stable")
	assert.Contains(t, before, "Cached: no")

	resp, err := e.Interact(context.Background(), pmInteraction())
	require.NoError(t, err)

	after := callTool(t, srv, "frugal_signature", args).Content[0].Text
	assert.Contains(t, after, "Signature: "+resp.Signature)
	assert.Contains(t, after, "Cached: yes")
}
