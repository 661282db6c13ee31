package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"

	"github.com/pario-ai/frugal/pkg/models"
)

// Anthropic calls the Anthropic Messages API.
type Anthropic struct {
	client anthropic.Client
}

// NewAnthropic creates an Anthropic client. An empty baseURL uses the
// public endpoint.
func NewAnthropic(apiKey, baseURL string) *Anthropic {
	opts := []anthropicoption.RequestOption{anthropicoption.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, anthropicoption.WithBaseURL(baseURL))
	}
	return &Anthropic{client: anthropic.NewClient(opts...)}
}

// Complete sends req as a single user message.
// Input tokens include cache reads, which are also reported as cached.
func (a *Anthropic) Complete(ctx context.Context, req Request) (Response, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: maxTokens(req.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return Response{}, fmt.Errorf("anthropic messages: %w", err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return Response{
		Text:  text.String(),
		Model: string(msg.Model),
		Usage: models.Usage{
			InputTokens:  int(msg.Usage.InputTokens + msg.Usage.CacheReadInputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
			CachedTokens: int(msg.Usage.CacheReadInputTokens),
		},
	}, nil
}
