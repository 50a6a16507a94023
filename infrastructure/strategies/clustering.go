package strategies

import (
	"context"
	"fmt"
	"math/rand"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-concord/internal/domain"
	"github.com/ahrav/go-concord/internal/ports"
	"github.com/ahrav/go-concord/internal/vecmath"
)

var _ ports.Strategy = (*SemanticClusteringStrategy)(nil)
var _ ports.ClusterDiagnostics = (*SemanticClusteringStrategy)(nil)

// Clustering methods supported by the semantic clustering strategy.
const (
	// MethodDBSCAN selects density-based clustering; the neighborhood
	// radius is derived from the similarity threshold.
	MethodDBSCAN = "dbscan"

	// MethodKMeans selects fixed-k partitioning with NumClusters
	// partitions.
	MethodKMeans = "kmeans"
)

// SemanticClusteringConfig defines the configuration parameters for the
// SemanticClusteringStrategy. All fields are validated during strategy
// creation and parameter unmarshaling.
type SemanticClusteringConfig struct {
	// SimilarityThreshold is the cosine similarity above which two
	// predictions count as semantically close. It drives both the
	// outlier pre-filter and the DBSCAN neighborhood radius
	// (eps = 1 - SimilarityThreshold).
	//
	// Range: 0.0 to 1.0. Default: 0.7.
	SimilarityThreshold float64 `yaml:"similarity_threshold" json:"similarity_threshold" validate:"min=0.0,max=1.0"`

	// MinClusterSize is the minimum neighborhood size (the point itself
	// included) for DBSCAN core points.
	//
	// Default: 2.
	MinClusterSize int `yaml:"min_cluster_size" json:"min_cluster_size" validate:"min=1"`

	// Method selects the clustering algorithm: "dbscan" or "kmeans".
	Method string `yaml:"method" json:"method" validate:"required,oneof=dbscan kmeans"`

	// NumClusters is the partition count for the kmeans method.
	// Zero selects an automatic default; the value is always capped at
	// the number of predictions. Ignored by dbscan.
	NumClusters int `yaml:"num_clusters" json:"num_clusters" validate:"min=0,max=64"`

	// AllowNoiseWinner permits the DBSCAN noise group to win dominance
	// when it is the largest group. Disabling it restricts the consensus
	// to dense clusters, falling back to noise only when nothing else
	// exists.
	AllowNoiseWinner bool `yaml:"allow_noise_winner" json:"allow_noise_winner"`

	// FilterOutliers drops predictions whose mean similarity to all
	// others falls below SimilarityThreshold before clustering.
	FilterOutliers bool `yaml:"filter_outliers" json:"filter_outliers"`
}

// DefaultSemanticClusteringConfig returns the standard clustering
// configuration: density clustering with a 0.7 similarity threshold.
func DefaultSemanticClusteringConfig() SemanticClusteringConfig {
	return SemanticClusteringConfig{
		SimilarityThreshold: 0.7,
		MinClusterSize:      2,
		Method:              MethodDBSCAN,
		AllowNoiseWinner:    true,
		FilterOutliers:      true,
	}
}

// StrictSemanticClusteringConfig returns a conservative preset that
// demands tighter similarity (0.85) and larger clusters (3) before
// trusting a consensus. Useful when hallucinated outliers are expected.
func StrictSemanticClusteringConfig() SemanticClusteringConfig {
	cfg := DefaultSemanticClusteringConfig()
	cfg.SimilarityThreshold = 0.85
	cfg.MinClusterSize = 3
	return cfg
}

// SemanticClusteringStrategy embeds the prediction values, clusters the
// standardized embedding matrix, and returns the highest-confidence
// member of the dominant (largest) cluster. The output confidence is
// that representative's confidence scaled by the mean pairwise cosine
// similarity within the dominant cluster.
//
// The strategy retains the most recent cluster result for diagnostics,
// so a single instance must not serve concurrent Aggregate calls.
type SemanticClusteringStrategy struct {
	name     string
	config   SemanticClusteringConfig
	embedder ports.EmbeddingProvider
	// rng seeds kmeans centroid selection; injectable for reproducible
	// partitions.
	rng *rand.Rand

	last *domain.ClusterResult
}

// NewSemanticClusteringStrategy creates a SemanticClusteringStrategy
// with the specified configuration and embedding provider. A nil rng
// falls back to an unseeded source.
func NewSemanticClusteringStrategy(name string, config SemanticClusteringConfig, embedder ports.EmbeddingProvider, rng *rand.Rand) (*SemanticClusteringStrategy, error) {
	if name == "" {
		return nil, ErrEmptyStrategyName
	}
	if embedder == nil {
		return nil, ErrNilEmbedder
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &SemanticClusteringStrategy{
		name:     name,
		config:   config,
		embedder: embedder,
		rng:      rng,
	}, nil
}

// Name returns the unique identifier for this strategy instance.
func (s *SemanticClusteringStrategy) Name() string { return s.name }

// Validate reports whether the strategy is ready for execution.
func (s *SemanticClusteringStrategy) Validate() error {
	if s.embedder == nil {
		return ErrNilEmbedder
	}
	return validate.Struct(s.config)
}

// UnmarshalParameters decodes YAML configuration and replaces the
// clustering parameters after validation.
func (s *SemanticClusteringStrategy) UnmarshalParameters(params yaml.Node) error {
	config := s.config
	if err := params.Decode(&config); err != nil {
		return fmt.Errorf("failed to decode parameters: %w", err)
	}
	if err := validate.Struct(config); err != nil {
		return fmt.Errorf("parameter validation failed: %w", err)
	}
	s.config = config
	return nil
}

// LastClusterResult returns the cluster structure produced by the most
// recent Aggregate call.
func (s *SemanticClusteringStrategy) LastClusterResult() (domain.ClusterResult, bool) {
	if s.last == nil {
		return domain.ClusterResult{}, false
	}
	return *s.last, true
}

// Aggregate embeds, clusters, and selects the dominant cluster's
// representative.
//
// Algorithm:
//  1. Embed each prediction's canonical text.
//  2. Optionally pre-filter outliers by mean similarity to the rest.
//  3. Standardize the surviving embedding matrix column-wise.
//  4. Cluster (DBSCAN on the derived radius, or fixed-k partitioning).
//  5. Dominant cluster = largest group; representative = its
//     highest-confidence member.
//  6. Confidence = representative confidence x mean intra-cluster
//     similarity, clamped to [0, 1].
func (s *SemanticClusteringStrategy) Aggregate(ctx context.Context, predictions []domain.Prediction) (domain.Prediction, error) {
	if err := checkInput(predictions); err != nil {
		return domain.Prediction{}, err
	}
	if len(predictions) == 1 {
		return predictions[0], nil
	}

	embeddings, err := s.embedder.Embed(ctx, stringTexts(predictions))
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("embedding predictions: %w", err)
	}
	if len(embeddings) != len(predictions) {
		return domain.Prediction{}, fmt.Errorf("%w: got %d for %d texts",
			domain.ErrNoEmbeddings, len(embeddings), len(predictions))
	}

	sim := vecmath.PairwiseCosine(embeddings)

	kept := s.filterOutliers(sim)
	if len(kept) == 0 {
		// Every prediction is far from every other; there is no cluster
		// to trust, so fall back to the most confident input.
		best := topByConfidence(predictions)
		s.last = &domain.ClusterResult{
			Labels:     noiseLabels(len(predictions)),
			Similarity: sim,
		}
		return domain.Prediction{
			ContributorID: ConsensusSemantic,
			Value:         best.Value,
			Confidence:    domain.ClampConfidence(best.Confidence),
		}, nil
	}

	keptVectors := make([][]float64, len(kept))
	for i, idx := range kept {
		keptVectors[i] = embeddings[idx]
	}
	labels := s.cluster(vecmath.Standardize(keptVectors))

	groups, groupOrder := groupByLabel(labels)
	dominantLabel := s.dominantLabel(groups, groupOrder)
	dominant := groups[dominantLabel]

	members := make([]domain.Prediction, len(dominant))
	memberIdx := make([]int, len(dominant))
	for i, ki := range dominant {
		memberIdx[i] = kept[ki]
		members[i] = predictions[kept[ki]]
	}

	representative := topByConfidence(members)
	cohesion := meanPairwiseSimilarity(sim, memberIdx)
	confidence := domain.ClampConfidence(representative.Confidence * cohesion)

	s.last = s.buildResult(predictions, embeddings, sim, kept, labels, groups, groupOrder, dominantLabel)

	return domain.Prediction{
		ContributorID: ConsensusSemantic,
		Value:         representative.Value,
		Confidence:    confidence,
	}, nil
}

// filterOutliers returns the indices surviving the mean-similarity
// pre-filter, or all indices when filtering is disabled or the input is
// too small for the filter to be meaningful.
func (s *SemanticClusteringStrategy) filterOutliers(sim [][]float64) []int {
	n := len(sim)
	all := make([]int, n)
	for i := range all {
		all[i] = i
	}
	if !s.config.FilterOutliers || n <= 2 {
		return all
	}

	kept := make([]int, 0, n)
	for i := 0; i < n; i++ {
		var sum float64
		for j := 0; j < n; j++ {
			if j != i {
				sum += sim[i][j]
			}
		}
		if sum/float64(n-1) >= s.config.SimilarityThreshold {
			kept = append(kept, i)
		}
	}
	return kept
}

// cluster runs the configured algorithm over the standardized vectors.
func (s *SemanticClusteringStrategy) cluster(vectors [][]float64) []int {
	if s.config.Method == MethodKMeans {
		k := s.config.NumClusters
		if k <= 0 {
			k = 3
		}
		if k > len(vectors) {
			k = len(vectors)
		}
		return vecmath.KMeans(vectors, k, s.rng, 0)
	}
	eps := 1 - s.config.SimilarityThreshold
	return vecmath.DBSCAN(vectors, eps, s.config.MinClusterSize)
}

// groupByLabel buckets kept-space indices by cluster label, recording
// labels in order of first appearance for deterministic tie-breaking.
func groupByLabel(labels []int) (map[int][]int, []int) {
	groups := make(map[int][]int)
	var order []int
	for i, l := range labels {
		if _, seen := groups[l]; !seen {
			order = append(order, l)
		}
		groups[l] = append(groups[l], i)
	}
	return groups, order
}

// dominantLabel picks the largest group, preferring dense clusters over
// the noise group unless noise winners are allowed. Size ties resolve
// to the first-appearing label.
func (s *SemanticClusteringStrategy) dominantLabel(groups map[int][]int, order []int) int {
	best := -2
	for _, l := range order {
		if l == domain.NoiseLabel && !s.config.AllowNoiseWinner && len(groups) > 1 {
			continue
		}
		if best == -2 || len(groups[l]) > len(groups[best]) {
			best = l
		}
	}
	if best == -2 {
		best = order[0]
	}
	return best
}

// meanPairwiseSimilarity averages sim over all unordered pairs of the
// given original indices. A single member yields 1.0 by convention.
func meanPairwiseSimilarity(sim [][]float64, indices []int) float64 {
	if len(indices) < 2 {
		return 1.0
	}
	var sum float64
	var pairs int
	for i := 0; i < len(indices); i++ {
		for j := i + 1; j < len(indices); j++ {
			sum += sim[indices[i]][indices[j]]
			pairs++
		}
	}
	return sum / float64(pairs)
}

// buildResult assembles the diagnostic ClusterResult in input space:
// pre-filtered predictions are labeled noise, cluster groups are listed
// dominant-first then by descending size, and noise points trail.
func (s *SemanticClusteringStrategy) buildResult(
	predictions []domain.Prediction,
	embeddings [][]float64,
	sim [][]float64,
	kept []int,
	labels []int,
	groups map[int][]int,
	order []int,
	dominantLabel int,
) *domain.ClusterResult {
	fullLabels := noiseLabels(len(predictions))
	for ki, idx := range kept {
		fullLabels[idx] = labels[ki]
	}

	toPredictions := func(keptIndices []int) []domain.Prediction {
		out := make([]domain.Prediction, len(keptIndices))
		for i, ki := range keptIndices {
			out[i] = predictions[kept[ki]]
		}
		return out
	}

	var others []int
	for _, l := range order {
		if l != dominantLabel && l != domain.NoiseLabel {
			others = append(others, l)
		}
	}
	sort.SliceStable(others, func(i, j int) bool {
		return len(groups[others[i]]) > len(groups[others[j]])
	})

	var outliers [][]domain.Prediction
	for _, l := range others {
		outliers = append(outliers, toPredictions(groups[l]))
	}

	// Noise trails: DBSCAN noise points (when not dominant) plus any
	// predictions removed by the pre-filter.
	var noise []domain.Prediction
	if dominantLabel != domain.NoiseLabel {
		if g, ok := groups[domain.NoiseLabel]; ok {
			noise = append(noise, toPredictions(g)...)
		}
	}
	keptSet := make(map[int]struct{}, len(kept))
	for _, idx := range kept {
		keptSet[idx] = struct{}{}
	}
	for i, p := range predictions {
		if _, ok := keptSet[i]; !ok {
			noise = append(noise, p)
		}
	}
	if len(noise) > 0 {
		outliers = append(outliers, noise)
	}

	centroids := make(map[int][]float64, len(groups))
	for l, g := range groups {
		vectors := make([][]float64, len(g))
		for i, ki := range g {
			vectors[i] = embeddings[kept[ki]]
		}
		centroids[l] = vecmath.Centroid(vectors)
	}

	return &domain.ClusterResult{
		Dominant:   toPredictions(groups[dominantLabel]),
		Outliers:   outliers,
		Labels:     fullLabels,
		Similarity: sim,
		Centroids:  centroids,
	}
}

func noiseLabels(n int) []int {
	labels := make([]int, n)
	for i := range labels {
		labels[i] = domain.NoiseLabel
	}
	return labels
}
