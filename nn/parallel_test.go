package nn

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgelab/edgesr/tensor"
)

func TestShardSizes(t *testing.T) {
	assert.Equal(t, []int{2, 2}, shardSizes(4, 2))
	assert.Equal(t, []int{2, 1}, shardSizes(3, 2))
	assert.Equal(t, []int{1, 1}, shardSizes(2, 4))
	assert.Equal(t, []int{3}, shardSizes(3, 1))
}

func TestParallelizeSingleReplicaReturnsInner(t *testing.T) {
	rng := rand.New(rand.NewSource(10))
	gen, err := NewEdgeGenerator(rng)
	require.NoError(t, err)

	assert.Same(t, Module(gen), Parallelize(gen, 1))
	assert.NotSame(t, Module(gen), Parallelize(gen, 2))

	dis, err := NewPatchDiscriminator(3, true, rng)
	require.NoError(t, err)
	assert.Same(t, Discriminator(dis), ParallelizeDiscriminator(dis, 1))
}

func TestDataParallelMatchesSerial(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	gen, err := NewEdgeGenerator(rng)
	require.NoError(t, err)

	input := randomInput(t, rng, []int{4, 4, 8, 8})

	serial, err := gen.Forward(input)
	require.NoError(t, err)
	parallel, err := Parallelize(gen, 2).Forward(input)
	require.NoError(t, err)

	require.Equal(t, serial.Shape, parallel.Shape)
	serialData, _ := serial.GetFloat32Data()
	parallelData, _ := parallel.GetFloat32Data()
	assert.InDeltaSlice(t, serialData, parallelData, 1e-6)
}

func TestDataParallelGradientFlow(t *testing.T) {
	rng := rand.New(rand.NewSource(12))
	gen, err := NewEdgeGenerator(rng)
	require.NoError(t, err)
	wrapped := Parallelize(gen, 2)

	out, err := wrapped.Forward(randomInput(t, rng, []int{4, 4, 8, 8}))
	require.NoError(t, err)

	loss := tensor.MeanAutograd(out)
	require.NoError(t, loss.Backward())

	// Shared parameters accumulate gradients from every shard.
	for i, p := range wrapped.Parameters() {
		require.NotNil(t, p.Grad(), "parameter %d has no gradient", i)
	}
}

func TestParallelDiscriminatorMatchesSerial(t *testing.T) {
	rng := rand.New(rand.NewSource(13))
	dis, err := NewPatchDiscriminator(3, true, rng)
	require.NoError(t, err)

	input := randomInput(t, rng, []int{4, 3, 16, 16})

	serialScore, serialFeatures, err := dis.Forward(input)
	require.NoError(t, err)
	parallelScore, parallelFeatures, err := ParallelizeDiscriminator(dis, 2).Forward(input)
	require.NoError(t, err)

	require.Equal(t, serialScore.Shape, parallelScore.Shape)
	a, _ := serialScore.GetFloat32Data()
	b, _ := parallelScore.GetFloat32Data()
	assert.InDeltaSlice(t, a, b, 1e-6)

	require.Len(t, parallelFeatures, len(serialFeatures))
	for i := range serialFeatures {
		require.Equal(t, serialFeatures[i].Shape, parallelFeatures[i].Shape, "feature level %d", i)
		fa, _ := serialFeatures[i].GetFloat32Data()
		fb, _ := parallelFeatures[i].GetFloat32Data()
		assert.InDeltaSlice(t, fa, fb, 1e-6, "feature level %d", i)
	}
}

func TestDataParallelMoreReplicasThanBatch(t *testing.T) {
	rng := rand.New(rand.NewSource(14))
	gen, err := NewEdgeGenerator(rng)
	require.NoError(t, err)

	out, err := Parallelize(gen, 8).Forward(randomInput(t, rng, []int{2, 4, 8, 8}))
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1, 8, 8}, out.Shape)
}
