package core

import "context"

// Completion is the result of one completion call.
type Completion struct {
	Text       string
	TokensUsed int
}

// Embedder turns text into a fixed-length vector. Implementations wrap an
// external model service and are treated as unreliable and rate-limited.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// Completer produces a natural-language completion for a prompt given
// retrieved context.
type Completer interface {
	Complete(ctx context.Context, prompt, contextText string) (Completion, error)
}

// Gateway is the narrow interface to the embedding/completion model.
type Gateway interface {
	Embedder
	Completer
}
