package vecmath

import "math/rand"

// DBSCAN clusters vectors with the classic density-based algorithm using
// cosine distance (1 - cosine similarity). eps is the maximum distance
// between neighbors and minPoints the minimum neighborhood size (the
// point itself included) for a point to be a core point.
//
// The returned labels assign each vector a cluster index starting at 0;
// points in no dense region receive the noise label -1.
func DBSCAN(vectors [][]float64, eps float64, minPoints int) []int {
	n := len(vectors)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = -1
	}
	if n == 0 {
		return labels
	}
	if minPoints < 1 {
		minPoints = 1
	}

	sim := PairwiseCosine(vectors)
	neighbors := func(i int) []int {
		var out []int
		for j := 0; j < n; j++ {
			if 1-sim[i][j] <= eps {
				out = append(out, j)
			}
		}
		return out
	}

	visited := make([]bool, n)
	next := 0
	for i := 0; i < n; i++ {
		if visited[i] {
			continue
		}
		visited[i] = true
		seeds := neighbors(i)
		if len(seeds) < minPoints {
			continue // noise, may still be claimed as a border point later
		}
		labels[i] = next
		// Expand the cluster breadth-first over density-reachable points.
		for k := 0; k < len(seeds); k++ {
			j := seeds[k]
			if labels[j] == -1 {
				labels[j] = next
			}
			if visited[j] {
				continue
			}
			visited[j] = true
			jn := neighbors(j)
			if len(jn) >= minPoints {
				seeds = append(seeds, jn...)
			}
		}
		next++
	}
	return labels
}

// KMeans partitions vectors into k clusters with Lloyd's algorithm and
// returns the per-vector labels. Initial centroids are drawn from the
// input via the supplied random source, so callers needing reproducible
// partitions inject a seeded generator.
func KMeans(vectors [][]float64, k int, rng *rand.Rand, maxIterations int) []int {
	n := len(vectors)
	labels := make([]int, n)
	if n == 0 || k <= 1 {
		return labels
	}
	if k > n {
		k = n
	}
	if maxIterations <= 0 {
		maxIterations = 50
	}

	centroids := make([][]float64, k)
	for i, idx := range rng.Perm(n)[:k] {
		c := make([]float64, len(vectors[idx]))
		copy(c, vectors[idx])
		centroids[i] = c
	}

	assign := func() bool {
		changed := false
		for i, v := range vectors {
			best, bestDist := 0, sqDist(v, centroids[0])
			for c := 1; c < k; c++ {
				if d := sqDist(v, centroids[c]); d < bestDist {
					best, bestDist = c, d
				}
			}
			if labels[i] != best {
				labels[i] = best
				changed = true
			}
		}
		return changed
	}

	assign()
	for iter := 0; iter < maxIterations; iter++ {
		for c := 0; c < k; c++ {
			var members [][]float64
			for i, l := range labels {
				if l == c {
					members = append(members, vectors[i])
				}
			}
			// Empty clusters keep their previous centroid.
			if len(members) > 0 {
				centroids[c] = Centroid(members)
			}
		}
		if !assign() {
			break
		}
	}
	return labels
}

func sqDist(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
