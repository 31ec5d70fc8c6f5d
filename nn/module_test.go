package nn

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgelab/edgesr/tensor"
)

func randomInput(t *testing.T, rng *rand.Rand, shape []int) *tensor.Tensor {
	t.Helper()
	in, err := tensor.RandomNormal(shape, 0, 1, rng)
	require.NoError(t, err)
	return in
}

func TestConv2dOutputShape(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	conv, err := NewConv2d(3, 16, 3, 2, 1, rng)
	require.NoError(t, err)

	out, err := conv.Forward(randomInput(t, rng, []int{2, 3, 8, 8}))
	require.NoError(t, err)
	assert.Equal(t, []int{2, 16, 4, 4}, out.Shape)
}

func TestConv2dRejectsChannelMismatch(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	conv, err := NewConv2d(3, 16, 3, 1, 1, rng)
	require.NoError(t, err)

	_, err = conv.Forward(randomInput(t, rng, []int{1, 4, 8, 8}))
	assert.ErrorContains(t, err, "input channels")
}

func TestConv2dParameters(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	conv, err := NewConv2d(3, 8, 3, 1, 1, rng)
	require.NoError(t, err)

	params := conv.Parameters()
	require.Len(t, params, 2)
	assert.Equal(t, []int{8, 3, 3, 3}, params[0].Shape)
	assert.Equal(t, []int{8}, params[1].Shape)
	for _, p := range params {
		assert.True(t, p.RequiresGrad())
	}
}

func TestSequentialChaining(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	conv1, err := NewConv2d(3, 8, 3, 1, 1, rng)
	require.NoError(t, err)
	conv2, err := NewConv2d(8, 1, 3, 1, 1, rng)
	require.NoError(t, err)

	seq := NewSequential(conv1, &LeakyReLU{Slope: 0.2}, conv2, &Sigmoid{})
	out, err := seq.Forward(randomInput(t, rng, []int{1, 3, 6, 6}))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1, 6, 6}, out.Shape)

	// Two convs with weight and bias each.
	assert.Len(t, seq.Parameters(), 4)
}

func TestGeneratorShapes(t *testing.T) {
	rng := rand.New(rand.NewSource(2))

	edge, err := NewEdgeGenerator(rng)
	require.NoError(t, err)
	out, err := edge.Forward(randomInput(t, rng, []int{2, 4, 8, 8}))
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1, 8, 8}, out.Shape)

	sr, err := NewSRGenerator(rng)
	require.NoError(t, err)
	out, err = sr.Forward(randomInput(t, rng, []int{2, 4, 8, 8}))
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 8, 8}, out.Shape)
}

func TestGeneratorOutputInUnitRange(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	gen, err := NewEdgeGenerator(rng)
	require.NoError(t, err)

	out, err := gen.Forward(randomInput(t, rng, []int{1, 4, 8, 8}))
	require.NoError(t, err)

	data, err := out.GetFloat32Data()
	require.NoError(t, err)
	for _, v := range data {
		assert.Greater(t, v, float32(0))
		assert.Less(t, v, float32(1))
	}
}

func TestGeneratorRejectsChannelMismatch(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	gen, err := NewEdgeGenerator(rng)
	require.NoError(t, err)

	_, err = gen.Forward(randomInput(t, rng, []int{1, 3, 8, 8}))
	assert.ErrorContains(t, err, "input channels")
}
