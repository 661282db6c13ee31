// Package llm defines the model-invocation collaborator and its provider
// adapters. Nothing here decides whether a call should happen.
package llm

import (
	"context"
	"fmt"

	"github.com/pario-ai/frugal/pkg/config"
	"github.com/pario-ai/frugal/pkg/models"
)

// Request is a single completion call.
type Request struct {
	Model     string
	System    string
	Prompt    string
	MaxTokens int
	// Agent is informational; adapters do not send it upstream.
	Agent string
}

// Response is the generated text plus the usage the provider billed.
type Response struct {
	Text  string
	Model string
	Usage models.Usage
}

// Client performs completion calls. Timeouts and retries belong to the
// implementation; callers pass a context.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// DefaultMaxTokens is sent when a request leaves MaxTokens unset.
const DefaultMaxTokens = 4096

// New returns the Client for a provider definition.
func New(p config.ProviderConfig) (Client, error) {
	if p.APIKey == "" {
		return nil, fmt.Errorf("provider %s: missing api key", p.Name)
	}
	switch p.Type {
	case "", "anthropic":
		return NewAnthropic(p.APIKey, p.URL), nil
	case "openai":
		return NewOpenAI(p.APIKey, p.URL), nil
	default:
		return nil, fmt.Errorf("provider %s: unknown type %q", p.Name, p.Type)
	}
}

func maxTokens(n int) int64 {
	if n <= 0 {
		return DefaultMaxTokens
	}
	return int64(n)
}
