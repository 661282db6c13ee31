package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/pario-ai/frugal/pkg/models"
)

// OpenAI calls an OpenAI-compatible chat completions API.
type OpenAI struct {
	client openai.Client
}

// NewOpenAI creates an OpenAI client. An empty baseURL uses the public
// endpoint; any OpenAI-compatible server works.
func NewOpenAI(apiKey, baseURL string) *OpenAI {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAI{client: openai.NewClient(opts...)}
}

// Complete sends req as an optional system message and one user message.
func (o *OpenAI) Complete(ctx context.Context, req Request) (Response, error) {
	var msgs []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	msgs = append(msgs, openai.UserMessage(req.Prompt))

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(req.Model),
		Messages:            msgs,
		MaxCompletionTokens: openai.Int(maxTokens(req.MaxTokens)),
	})
	if err != nil {
		return Response{}, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, errors.New("openai chat completion: no choices returned")
	}

	return Response{
		Text:  resp.Choices[0].Message.Content,
		Model: resp.Model,
		Usage: models.Usage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
			CachedTokens: int(resp.Usage.PromptTokensDetails.CachedTokens),
		},
	}, nil
}
