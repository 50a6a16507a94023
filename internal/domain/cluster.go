package domain

// NoiseLabel is the cluster label assigned by density clustering to
// points that do not belong to any dense region.
const NoiseLabel = -1

// ClusterResult captures the outcome of one semantic clustering pass.
// It is transient, scoped to a single aggregation call, and exposed for
// diagnostics by strategies implementing the ClusterDiagnostics
// capability.
type ClusterResult struct {
	// Dominant holds the members of the largest cluster, the trusted
	// subset from which the consensus value is drawn.
	Dominant []Prediction

	// Outliers holds the remaining clusters, largest first. Predictions
	// labeled as noise form their own trailing group when present.
	Outliers [][]Prediction

	// Labels maps each input prediction (by position) to its cluster
	// label; NoiseLabel marks noise points.
	Labels []int

	// Similarity is the full pairwise cosine similarity matrix over the
	// input predictions' embeddings.
	Similarity [][]float64

	// Centroids maps each cluster label to the mean embedding vector of
	// its members.
	Centroids map[int][]float64
}

// Summary condenses the cluster result into the counters tracked by the
// instrumented aggregator's metrics history.
func (r ClusterResult) Summary() ClusterSummary {
	total := len(r.Labels)
	noise := 0
	for _, l := range r.Labels {
		if l == NoiseLabel {
			noise++
		}
	}
	clusters := len(r.Outliers)
	if len(r.Dominant) > 0 {
		clusters++
	}
	return ClusterSummary{
		Predictions:  total,
		Clusters:     clusters,
		DominantSize: len(r.Dominant),
		NoisePoints:  noise,
	}
}

// ClusterSummary is the compact cluster diagnostic embedded in
// PerformanceMetrics snapshots.
type ClusterSummary struct {
	// Predictions is the number of predictions that were clustered.
	Predictions int `json:"predictions"`
	// Clusters is the number of clusters found, noise included.
	Clusters int `json:"clusters"`
	// DominantSize is the member count of the winning cluster.
	DominantSize int `json:"dominant_size"`
	// NoisePoints is the number of predictions labeled as noise.
	NoisePoints int `json:"noise_points"`
}
