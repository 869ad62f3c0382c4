package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity(t *testing.T) {
	score, err := CosineSimilarity([]float32{1, 0}, []float32{1, 0})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, float64(score), 1e-6)

	score, err = CosineSimilarity([]float32{1, 0}, []float32{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, float64(score), 1e-6)

	score, err = CosineSimilarity([]float32{1, 0}, []float32{-1, 0})
	require.NoError(t, err)
	assert.InDelta(t, -1.0, float64(score), 1e-6)
}

func TestCosineSimilarityScaleInvariant(t *testing.T) {
	a, err := CosineSimilarity([]float32{1, 2, 3}, []float32{4, 5, 6})
	require.NoError(t, err)
	b, err := CosineSimilarity([]float32{10, 20, 30}, []float32{4, 5, 6})
	require.NoError(t, err)
	assert.InDelta(t, float64(a), float64(b), 1e-6)
}

func TestCosineSimilarityErrors(t *testing.T) {
	_, err := CosineSimilarity(nil, []float32{1})
	assert.Error(t, err)

	_, err = CosineSimilarity([]float32{1, 2}, []float32{1})
	assert.Error(t, err)
}

func TestCosineSimilarityZeroVector(t *testing.T) {
	score, err := CosineSimilarity([]float32{0, 0}, []float32{1, 1})
	require.NoError(t, err)
	assert.Equal(t, float32(0), score)
}
