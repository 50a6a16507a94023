package vecmath

import "math"

// ShannonEntropy computes -sum(p * log2 p) over the given probability
// distribution. Zero entries are skipped; the distribution is assumed to
// sum to 1.
func ShannonEntropy(probs []float64) float64 {
	var h float64
	for _, p := range probs {
		if p > 0 {
			h -= p * math.Log2(p)
		}
	}
	return h
}

// DisagreementEntropy measures how unevenly disagreement is spread over
// the pairwise similarities, normalized to [0, 1] by the maximum entropy
// for that many pairs.
//
// Each pairwise similarity s contributes a disagreement mass of
// max(0, 1-s); the masses are normalized to a probability distribution
// whose Shannon entropy is then divided by log2(len(similarities)).
// Near-identical inputs carry almost no disagreement mass and yield an
// entropy of ~0, while uniformly dissimilar inputs yield 1.
func DisagreementEntropy(similarities []float64) float64 {
	if len(similarities) < 2 {
		return 0
	}
	masses := make([]float64, len(similarities))
	var total float64
	for i, s := range similarities {
		d := 1 - s
		if d < 0 {
			d = 0
		}
		masses[i] = d
		total += d
	}
	// Negligible total disagreement means the predictions all but agree.
	if total < 1e-9 {
		return 0
	}
	for i := range masses {
		masses[i] /= total
	}
	maxEntropy := math.Log2(float64(len(similarities)))
	if maxEntropy == 0 {
		return 0
	}
	h := ShannonEntropy(masses) / maxEntropy
	if h > 1 {
		h = 1
	}
	return h
}

// HistogramEntropy computes the Shannon entropy of numeric values after
// discretizing them into at most maxBins equal-width bins.
func HistogramEntropy(values []float64, maxBins int) float64 {
	if len(values) == 0 {
		return 0
	}
	bins := maxBins
	if len(values) < bins {
		bins = len(values)
	}
	if bins < 1 {
		bins = 1
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if hi == lo {
		// All values identical: a single fully occupied bin.
		return 0
	}
	counts := make([]float64, bins)
	width := (hi - lo) / float64(bins)
	for _, v := range values {
		idx := int((v - lo) / width)
		if idx >= bins {
			idx = bins - 1
		}
		counts[idx]++
	}
	probs := make([]float64, 0, bins)
	for _, c := range counts {
		if c > 0 {
			probs = append(probs, c/float64(len(values)))
		}
	}
	return ShannonEntropy(probs)
}

// FrequencyEntropy computes the Shannon entropy of a categorical value
// distribution given the per-value occurrence counts.
func FrequencyEntropy(counts map[string]int) float64 {
	var total int
	for _, c := range counts {
		total += c
	}
	if total == 0 {
		return 0
	}
	probs := make([]float64, 0, len(counts))
	for _, c := range counts {
		if c > 0 {
			probs = append(probs, float64(c)/float64(total))
		}
	}
	return ShannonEntropy(probs)
}
