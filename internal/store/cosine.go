package store

import "math"

// CosineDistance returns 1 - cosine similarity of a and b, in [0, 2].
// Lower is closer; 0 means identical direction. Mismatched lengths, empty
// input, and zero vectors all report the maximum distance 2.0, so a
// malformed vector can never match anything.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2.0
	}

	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 2.0
	}

	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	// Accumulated rounding can push |sim| past 1.
	if sim > 1 {
		sim = 1
	}
	if sim < -1 {
		sim = -1
	}
	return 1 - sim
}
