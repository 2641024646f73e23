// Package openai implements core.Gateway over the OpenAI API: Chat
// Completions for completions and the Embeddings endpoint for vectors. It
// adapts StaffMesh's narrow gateway contract onto the SDK parameter types.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"

	"github.com/hupe1980/staffmesh/core"
)

// Options configure the OpenAI gateway adapter. Fields mirror a minimal
// subset of API parameters; extend via functional options without breaking
// callers.
type Options struct {
	Model               string
	EmbeddingModel      string
	EmbeddingDimension  int
	Temperature         float64
	MaxCompletionTokens int64
}

// Gateway wraps the OpenAI client behind the core.Gateway interface.
type Gateway struct {
	client *openai.Client
	opts   Options
}

var _ core.Gateway = (*Gateway)(nil)

// New creates a new OpenAI gateway using the official client (API key from
// the environment).
func New(optFns ...func(o *Options)) *Gateway {
	client := openai.NewClient()
	return NewFromClient(&client, optFns...)
}

// NewFromClient creates a new OpenAI gateway from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Gateway {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		EmbeddingModel:      openai.EmbeddingModelTextEmbedding3Small,
		EmbeddingDimension:  1536,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Gateway{client: client, opts: opts}
}

// Complete implements core.Completer. The retrieved context rides as a
// system message ahead of the user prompt.
func (g *Gateway) Complete(ctx context.Context, prompt, contextText string) (core.Completion, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if contextText != "" {
		messages = append(messages, openai.SystemMessage(contextText))
	}
	messages = append(messages, openai.UserMessage(prompt))

	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               g.opts.Model,
		Temperature:         openai.Float(g.opts.Temperature),
		MaxCompletionTokens: openai.Int(g.opts.MaxCompletionTokens),
	})
	if err != nil {
		return core.Completion{}, fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return core.Completion{}, fmt.Errorf("no choices returned")
	}
	return core.Completion{
		Text:       resp.Choices[0].Message.Content,
		TokensUsed: int(resp.Usage.TotalTokens),
	}, nil
}

// Embed implements core.Embedder via the Embeddings endpoint.
func (g *Gateway) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := g.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: []string{text}},
		Model: g.opts.EmbeddingModel,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings error: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	raw := resp.Data[0].Embedding
	out := make([]float32, len(raw))
	for i, v := range raw {
		out[i] = float32(v)
	}
	return out, nil
}

// Dimension implements core.Embedder.
func (g *Gateway) Dimension() int { return g.opts.EmbeddingDimension }
