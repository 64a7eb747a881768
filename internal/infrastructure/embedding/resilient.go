package embedding

import (
	"context"

	"github.com/askidc/corpus-assistant/internal/core/ports"
	"github.com/askidc/corpus-assistant/internal/infrastructure/resilience"
)

// ResilientEmbedder runs an inner embedder through the resilience
// executor. Embedding is idempotent, so retries are safe.
type ResilientEmbedder struct {
	inner      ports.Embedder
	executor   *resilience.Executor
	classifier resilience.ErrorClassifier
}

func WithResilience(inner ports.Embedder, executor *resilience.Executor, classifier resilience.ErrorClassifier) *ResilientEmbedder {
	return &ResilientEmbedder{
		inner:      inner,
		executor:   executor,
		classifier: classifier,
	}
}

func (e *ResilientEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	err := e.executor.Execute(ctx, "embedder.embed", func(ctx context.Context) error {
		vectors, err := e.inner.Embed(ctx, texts)
		if err != nil {
			return err
		}
		out = vectors
		return nil
	}, e.classifier)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (e *ResilientEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := e.executor.Execute(ctx, "embedder.embed_query", func(ctx context.Context) error {
		vector, err := e.inner.EmbedQuery(ctx, text)
		if err != nil {
			return err
		}
		out = vector
		return nil
	}, e.classifier)
	if err != nil {
		return nil, err
	}
	return out, nil
}
