// Package metric provides the similarity kernel used by every index.
package metric

import (
	"github.com/hupe1980/simvec/internal/math32"
)

// Magnitude calculates the magnitude (length) of a float32 slice.
func Magnitude(v []float32) float32 {
	return math32.Sqrt(math32.Dot(v, v))
}

// CosineSimilarity calculates the cosine similarity between two float32 slices.
//
// Mismatched lengths and zero-magnitude inputs are defined degenerate cases
// and return 0 - callers must never expect an error or a panic from this
// function.
func CosineSimilarity(v1, v2 []float32) float32 {
	if len(v1) != len(v2) {
		return 0
	}

	magnitudeA := Magnitude(v1)
	magnitudeB := Magnitude(v2)

	// Avoid division by zero
	if magnitudeA == 0 || magnitudeB == 0 {
		return 0
	}

	return math32.Dot(v1, v2) / (magnitudeA * magnitudeB)
}

// SquaredL2 calculates the squared L2 distance between two float32 slices.
// Mismatched lengths return 0, mirroring CosineSimilarity.
func SquaredL2(v1, v2 []float32) float32 {
	if len(v1) != len(v2) {
		return 0
	}

	return math32.SquaredL2(v1, v2)
}
