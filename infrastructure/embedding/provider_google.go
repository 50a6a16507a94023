package embedding

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/api/googleapi"
	"google.golang.org/genai"

	"github.com/ahrav/go-concord/internal/ports"
)

// GoogleDefaultModel is the default embedding model for the Google
// provider.
const GoogleDefaultModel = "text-embedding-004"

func init() {
	RegisterProviderFactory("google", newGoogleProvider)
}

// googleProvider implements ports.EmbeddingProvider against the Google
// Gemini embeddings API.
type googleProvider struct {
	client *genai.Client
	model  string
}

var _ ports.EmbeddingProvider = (*googleProvider)(nil)

// newGoogleProvider creates a Google embedding provider.
// It returns ErrEmptyAPIKey when no API key is configured.
func newGoogleProvider(config ClientConfig) (ports.EmbeddingProvider, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := config.Model
	if model == "" {
		model = GoogleDefaultModel
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Google client: %w", err)
	}

	return &googleProvider{client: client, model: model}, nil
}

// Embed requests embeddings for all texts in a single API call and
// returns them in input order.
func (p *googleProvider) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, ErrNoTexts
	}

	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	resp, err := p.client.Models.EmbedContent(ctx, p.model, contents, nil)
	if err != nil {
		return nil, p.wrapError(err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("google returned %d embeddings for %d texts", len(resp.Embeddings), len(texts))
	}

	out := make([][]float64, len(texts))
	for i, e := range resp.Embeddings {
		vec := make([]float64, len(e.Values))
		for j, f := range e.Values {
			vec[j] = float64(f)
		}
		out[i] = vec
	}
	return out, nil
}

// wrapError maps Google API errors onto more actionable messages.
func (p *googleProvider) wrapError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 401, 403:
			return fmt.Errorf("google authentication failed: check API key (%d): %w", apiErr.Code, err)
		case 429:
			return fmt.Errorf("google rate limit exceeded: %w", err)
		case 500, 502, 503, 504:
			return fmt.Errorf("google server error (%d): %w", apiErr.Code, err)
		}
		return fmt.Errorf("google API error (%d): %w", apiErr.Code, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("google request timeout: %w", err)
	}
	return fmt.Errorf("google embedding request failed: %w", err)
}
