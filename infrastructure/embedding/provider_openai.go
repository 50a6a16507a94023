package embedding

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ahrav/go-concord/internal/ports"
)

// OpenAIDefaultModel is the default embedding model for the OpenAI
// provider.
const OpenAIDefaultModel = string(openai.SmallEmbedding3)

func init() {
	RegisterProviderFactory("openai", newOpenAIProvider)
}

// openaiProvider implements ports.EmbeddingProvider against the OpenAI
// embeddings API.
type openaiProvider struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

var _ ports.EmbeddingProvider = (*openaiProvider)(nil)

// newOpenAIProvider creates an OpenAI embedding provider.
// It returns ErrEmptyAPIKey when no API key is configured.
func newOpenAIProvider(config ClientConfig) (ports.EmbeddingProvider, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := config.Model
	if model == "" {
		model = OpenAIDefaultModel
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &openaiProvider{
		client: openai.NewClientWithConfig(clientConfig),
		model:  openai.EmbeddingModel(model),
	}, nil
}

// Embed requests embeddings for all texts in a single API call and
// returns them in input order.
func (p *openaiProvider) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, ErrNoTexts
	}

	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: p.model,
	})
	if err != nil {
		return nil, p.wrapError(err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai returned %d embeddings for %d texts", len(resp.Data), len(texts))
	}

	out := make([][]float64, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("openai returned embedding with out-of-range index %d", d.Index)
		}
		vec := make([]float64, len(d.Embedding))
		for i, f := range d.Embedding {
			vec[i] = float64(f)
		}
		out[d.Index] = vec
	}
	return out, nil
}

// wrapError maps OpenAI SDK errors onto more actionable messages.
func (p *openaiProvider) wrapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case 401:
			return fmt.Errorf("openai authentication failed: check API key: %w", err)
		case 429:
			return fmt.Errorf("openai rate limit exceeded: %w", err)
		case 500, 502, 503, 504:
			return fmt.Errorf("openai server error (%d): %w", apiErr.HTTPStatusCode, err)
		}
		return fmt.Errorf("openai API error (%d): %w", apiErr.HTTPStatusCode, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("openai request timeout: %w", err)
	}
	return fmt.Errorf("openai embedding request failed: %w", err)
}
