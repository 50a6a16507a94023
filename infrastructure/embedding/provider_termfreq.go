package embedding

import (
	"context"
	"math"
	"strings"

	"golang.org/x/text/cases"

	"github.com/ahrav/go-concord/internal/ports"
)

func init() {
	RegisterProviderFactory("termfreq", func(config ClientConfig) (ports.EmbeddingProvider, error) {
		return NewTermFreqProvider(), nil
	})
}

// TermFreqProvider is a deterministic local embedding model: each text
// becomes an L2-normalized bag-of-words vector over the vocabulary of
// the current call. Texts sharing many tokens land close in cosine
// space, which is enough signal for clustering and similarity weighting
// when no hosted embedding API is available (offline runs, tests).
//
// Because the vocabulary is rebuilt per call, vectors from different
// Embed calls are not comparable with each other. The consensus
// strategies only ever compare embeddings produced by one call, so this
// limitation does not surface there.
type TermFreqProvider struct{}

var _ ports.EmbeddingProvider = (*TermFreqProvider)(nil)

// NewTermFreqProvider creates a term-frequency embedding provider.
func NewTermFreqProvider() *TermFreqProvider { return &TermFreqProvider{} }

// Embed builds the call-local vocabulary and returns one normalized
// term-frequency vector per text, in input order.
func (p *TermFreqProvider) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, ErrNoTexts
	}

	folder := cases.Fold()
	tokenized := make([][]string, len(texts))
	vocab := make(map[string]int)
	for i, text := range texts {
		tokens := strings.Fields(folder.String(text))
		tokenized[i] = tokens
		for _, tok := range tokens {
			if _, ok := vocab[tok]; !ok {
				vocab[tok] = len(vocab)
			}
		}
	}

	dim := len(vocab)
	if dim == 0 {
		// All texts are empty; emit degenerate one-dimensional vectors so
		// callers still get one vector per text.
		dim = 1
	}

	out := make([][]float64, len(texts))
	for i, tokens := range tokenized {
		vec := make([]float64, dim)
		for _, tok := range tokens {
			vec[vocab[tok]]++
		}
		normalize(vec)
		out[i] = vec
	}
	return out, nil
}

// normalize scales the vector to unit L2 norm in place. Zero vectors
// are left unchanged.
func normalize(vec []float64) {
	var sq float64
	for _, v := range vec {
		sq += v * v
	}
	if sq == 0 {
		return
	}
	norm := math.Sqrt(sq)
	for i := range vec {
		vec[i] /= norm
	}
}
