package nn

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatchDiscriminatorShapes(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	dis, err := NewPatchDiscriminator(3, true, rng)
	require.NoError(t, err)

	score, features, err := dis.Forward(randomInput(t, rng, []int{2, 3, 16, 16}))
	require.NoError(t, err)

	// Three stride-2 stages halve 16 down to 2; the head keeps resolution.
	assert.Equal(t, []int{2, 1, 2, 2}, score.Shape)

	require.Len(t, features, 4)
	assert.Equal(t, []int{2, 16, 8, 8}, features[0].Shape)
	assert.Equal(t, []int{2, 32, 4, 4}, features[1].Shape)
	assert.Equal(t, []int{2, 64, 2, 2}, features[2].Shape)
	assert.Equal(t, []int{2, 1, 2, 2}, features[3].Shape)
}

func TestPatchDiscriminatorSigmoidScores(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	dis, err := NewPatchDiscriminator(4, true, rng)
	require.NoError(t, err)

	score, _, err := dis.Forward(randomInput(t, rng, []int{1, 4, 8, 8}))
	require.NoError(t, err)

	data, err := score.GetFloat32Data()
	require.NoError(t, err)
	for _, v := range data {
		assert.Greater(t, v, float32(0))
		assert.Less(t, v, float32(1))
	}
}

func TestPatchDiscriminatorRawScores(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	dis, err := NewPatchDiscriminator(3, false, rng)
	require.NoError(t, err)

	score, features, err := dis.Forward(randomInput(t, rng, []int{1, 3, 8, 8}))
	require.NoError(t, err)

	// Without sigmoid the returned score is the raw head activation.
	assert.Same(t, features[len(features)-1], score)
}

func TestPatchDiscriminatorRejectsChannelMismatch(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	dis, err := NewPatchDiscriminator(4, true, rng)
	require.NoError(t, err)

	_, _, err = dis.Forward(randomInput(t, rng, []int{1, 3, 8, 8}))
	assert.ErrorContains(t, err, "input channels")
}

func TestIdenticalInputsYieldIdenticalFeatures(t *testing.T) {
	// The feature-matching loss over a pair of identical inputs must vanish.
	rng := rand.New(rand.NewSource(15))
	dis, err := NewPatchDiscriminator(4, true, rng)
	require.NoError(t, err)

	input := randomInput(t, rng, []int{1, 4, 16, 16})
	_, first, err := dis.Forward(input)
	require.NoError(t, err)
	_, second, err := dis.Forward(input)
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		a, _ := first[i].GetFloat32Data()
		b, _ := second[i].GetFloat32Data()
		assert.Equal(t, a, b, "feature level %d", i)
	}
}

func TestPatchDiscriminatorParameters(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	dis, err := NewPatchDiscriminator(3, true, rng)
	require.NoError(t, err)

	// Three feature convs plus the head, weight and bias each.
	assert.Len(t, dis.Parameters(), 8)
}
