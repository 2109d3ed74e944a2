package math32

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDot(t *testing.T) {
	assert.Equal(t, float32(0), Dot(nil, nil))
	assert.InDelta(t, 11.0, Dot([]float32{1, 2, 3}, []float32{3, 1, 2}), 1e-6)
}

func TestSquaredL2(t *testing.T) {
	assert.InDelta(t, 2.0, SquaredL2([]float32{1, 1}, []float32{0, 0}), 1e-6)
}

func TestSqrt(t *testing.T) {
	assert.InDelta(t, 3.0, Sqrt(9), 1e-6)
}

func TestScaleInPlace(t *testing.T) {
	v := []float32{1, 2, 4}
	ScaleInPlace(v, 0.5)
	assert.Equal(t, []float32{0.5, 1, 2}, v)
}
