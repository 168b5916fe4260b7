// Package openai wraps the OpenAI SDK behind the embedding interface the
// embeddings stage needs.
package openai

import (
	"context"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rotisserie/eris"
)

// Client defines the embedding operations used by the pipeline.
type Client interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, model string, inputs []string) (*EmbedResponse, error)
}

// EmbedResponse holds the vectors and token accounting for one call.
type EmbedResponse struct {
	Vectors      [][]float64
	PromptTokens int64
}

// Dimensions returns the vector width, or 0 when empty.
func (r *EmbedResponse) Dimensions() int {
	if len(r.Vectors) == 0 {
		return 0
	}
	return len(r.Vectors[0])
}

type sdkClient struct {
	client sdk.Client
}

// NewClient creates an embedding client backed by the official SDK.
func NewClient(apiKey string) Client {
	return &sdkClient{
		client: sdk.NewClient(
			option.WithAPIKey(apiKey),
		),
	}
}

func (c *sdkClient) Embed(ctx context.Context, model string, inputs []string) (*EmbedResponse, error) {
	if len(inputs) == 0 {
		return &EmbedResponse{}, nil
	}

	resp, err := c.client.Embeddings.New(ctx, sdk.EmbeddingNewParams{
		Model: sdk.EmbeddingModel(model),
		Input: sdk.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: inputs,
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "openai: create embeddings")
	}
	if len(resp.Data) != len(inputs) {
		return nil, eris.Errorf("openai: expected %d embeddings, got %d", len(inputs), len(resp.Data))
	}

	vectors := make([][]float64, len(resp.Data))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(vectors) {
			return nil, eris.Errorf("openai: embedding index %d out of range", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}

	return &EmbedResponse{
		Vectors:      vectors,
		PromptTokens: resp.Usage.PromptTokens,
	}, nil
}
