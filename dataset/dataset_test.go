package dataset

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyntheticShapes(t *testing.T) {
	producer, err := NewSynthetic(2, 8, 4, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	batch, err := producer.NextBatch()
	require.NoError(t, err)

	assert.Equal(t, []int{2, 3, 8, 8}, batch.LRImages.Shape)
	assert.Equal(t, []int{2, 3, 32, 32}, batch.HRImages.Shape)
	assert.Equal(t, []int{2, 1, 8, 8}, batch.LRGuides.Shape)
	assert.Equal(t, []int{2, 1, 32, 32}, batch.HRGuides.Shape)
}

func TestSyntheticValuesInUnitRange(t *testing.T) {
	producer, err := NewSynthetic(1, 4, 2, rand.New(rand.NewSource(2)))
	require.NoError(t, err)

	batch, err := producer.NextBatch()
	require.NoError(t, err)

	data, err := batch.LRImages.GetFloat32Data()
	require.NoError(t, err)
	for _, v := range data {
		assert.GreaterOrEqual(t, v, float32(0))
		assert.Less(t, v, float32(1))
	}
}

func TestSyntheticRejectsBadGeometry(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	_, err := NewSynthetic(0, 8, 2, rng)
	assert.Error(t, err)
	_, err = NewSynthetic(1, 0, 2, rng)
	assert.Error(t, err)
	_, err = NewSynthetic(1, 8, 0, rng)
	assert.Error(t, err)
}
