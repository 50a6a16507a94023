// Package vecmath provides the dense-vector and scalar statistics used by
// the similarity-based consensus strategies: cosine similarity, matrix
// standardization, Shannon entropy, and small clustering algorithms.
// Everything operates on plain float64 slices; no external linear algebra
// dependency is required at this scale.
package vecmath

import "math"

// Cosine returns the cosine similarity of two equal-length vectors.
// Zero vectors yield a similarity of 0.
func Cosine(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// PairwiseCosine computes the full pairwise cosine similarity matrix.
// The diagonal is 1 by convention, including for zero vectors.
func PairwiseCosine(vectors [][]float64) [][]float64 {
	n := len(vectors)
	sim := make([][]float64, n)
	for i := range sim {
		sim[i] = make([]float64, n)
		sim[i][i] = 1
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			s := Cosine(vectors[i], vectors[j])
			sim[i][j] = s
			sim[j][i] = s
		}
	}
	return sim
}

// UpperTriangle flattens the strict upper triangle of a square matrix
// into a slice, row by row.
func UpperTriangle(m [][]float64) []float64 {
	n := len(m)
	out := make([]float64, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			out = append(out, m[i][j])
		}
	}
	return out
}

// Standardize z-scores each column of the matrix in a fresh copy:
// subtract the column mean and divide by the column standard deviation.
// Columns with zero variance are centered only.
func Standardize(vectors [][]float64) [][]float64 {
	n := len(vectors)
	if n == 0 {
		return nil
	}
	dim := len(vectors[0])
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, dim)
		copy(out[i], vectors[i])
	}
	for d := 0; d < dim; d++ {
		var sum float64
		for i := 0; i < n; i++ {
			sum += out[i][d]
		}
		mean := sum / float64(n)
		var sq float64
		for i := 0; i < n; i++ {
			diff := out[i][d] - mean
			sq += diff * diff
		}
		std := math.Sqrt(sq / float64(n))
		for i := 0; i < n; i++ {
			out[i][d] -= mean
			if std > 0 {
				out[i][d] /= std
			}
		}
	}
	return out
}

// Centroid returns the element-wise mean of the given vectors.
func Centroid(vectors [][]float64) []float64 {
	if len(vectors) == 0 {
		return nil
	}
	dim := len(vectors[0])
	c := make([]float64, dim)
	for _, v := range vectors {
		for d := 0; d < dim; d++ {
			c[d] += v[d]
		}
	}
	for d := 0; d < dim; d++ {
		c[d] /= float64(len(vectors))
	}
	return c
}

// Mean returns the arithmetic mean of the values, or 0 for an empty
// slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Variance returns the population variance of the values.
func Variance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := Mean(values)
	var sq float64
	for _, v := range values {
		diff := v - mean
		sq += diff * diff
	}
	return sq / float64(len(values))
}

// StdDev returns the population standard deviation of the values.
func StdDev(values []float64) float64 { return math.Sqrt(Variance(values)) }
