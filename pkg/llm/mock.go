package llm

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/pario-ai/frugal/pkg/models"
)

// Handler builds a response for a matching request.
type Handler func(Request) Response

type patternHandler struct {
	pattern string
	fn      Handler
}

// Mock is a scripted Client for tests. Responses are chosen from, in order:
// the agent's queue, the first handler whose pattern occurs in the prompt,
// the shared queue, the static response and finally a fixed default.
type Mock struct {
	mu       sync.Mutex
	static   *Response
	queue    []Response
	agents   map[string][]Response
	handlers []patternHandler
	calls    []Request
	err      error
}

// NewMock returns an empty Mock.
func NewMock() *Mock {
	return &Mock{agents: make(map[string][]Response)}
}

// DefaultMockResponse is returned when nothing else is scripted.
var DefaultMockResponse = Response{
	Text:  "This is a mock response for testing purposes.",
	Usage: models.Usage{InputTokens: 100, OutputTokens: 50},
}

// SetStatic returns r for every request not otherwise scripted.
func (m *Mock) SetStatic(r Response) {
	m.mu.Lock()
	m.static = &r
	m.mu.Unlock()
}

// Enqueue appends responses to the shared queue.
func (m *Mock) Enqueue(rs ...Response) {
	m.mu.Lock()
	m.queue = append(m.queue, rs...)
	m.mu.Unlock()
}

// EnqueueFor appends responses served only to requests from agent.
func (m *Mock) EnqueueFor(agent string, rs ...Response) {
	m.mu.Lock()
	m.agents[agent] = append(m.agents[agent], rs...)
	m.mu.Unlock()
}

// Handle registers fn for prompts containing pattern.
func (m *Mock) Handle(pattern string, fn Handler) {
	m.mu.Lock()
	m.handlers = append(m.handlers, patternHandler{pattern: pattern, fn: fn})
	m.mu.Unlock()
}

// FailWith makes every following call return err. A nil err clears it.
func (m *Mock) FailWith(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

// Complete records req and returns the scripted response.
func (m *Mock) Complete(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, req)
	if m.err != nil {
		return Response{}, m.err
	}

	resp := m.next(req)
	if resp.Model == "" {
		resp.Model = req.Model
	}
	return resp, nil
}

func (m *Mock) next(req Request) Response {
	if q := m.agents[req.Agent]; req.Agent != "" && len(q) > 0 {
		m.agents[req.Agent] = q[1:]
		return q[0]
	}
	for _, h := range m.handlers {
		if strings.Contains(req.Prompt, h.pattern) {
			return h.fn(req)
		}
	}
	if len(m.queue) > 0 {
		r := m.queue[0]
		m.queue = m.queue[1:]
		return r
	}
	if m.static != nil {
		return *m.static
	}
	return DefaultMockResponse
}

// CallCount returns how many calls were made.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Calls returns the recorded requests.
func (m *Mock) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.calls)
}

// LastCall returns the most recent request.
func (m *Mock) LastCall() (Request, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return Request{}, false
	}
	return m.calls[len(m.calls)-1], true
}

// CalledWith reports whether any prompt or system prompt contained s.
func (m *Mock) CalledWith(s string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.ContainsFunc(m.calls, func(r Request) bool {
		return strings.Contains(r.Prompt, s) || strings.Contains(r.System, s)
	})
}

// Reset clears all scripting and history.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.static = nil
	m.queue = nil
	m.agents = make(map[string][]Response)
	m.handlers = nil
	m.calls = nil
	m.err = nil
}
