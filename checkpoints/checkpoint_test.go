package checkpoints

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgelab/edgesr/tensor"
)

func testWeights() []WeightTensor {
	return []WeightTensor{
		{Name: "param_0", Shape: []int{2, 2}, Data: []float32{1, 2, 3, 4}},
		{Name: "param_1", Shape: []int{2}, Data: []float32{5, 6}},
	}
}

func TestGeneratorRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir())

	require.NoError(t, store.SaveGenerator("EdgeModel", 42, testWeights()))

	ckpt, found, err := store.LoadGenerator("EdgeModel")
	require.NoError(t, err)
	require.True(t, found)

	assert.Equal(t, 42, ckpt.Iteration)
	assert.Equal(t, testWeights(), ckpt.Weights)
	assert.Equal(t, "edgesr", ckpt.Metadata.Framework)
	assert.False(t, ckpt.Metadata.CreatedAt.IsZero())
}

func TestDiscriminatorRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir())

	require.NoError(t, store.SaveDiscriminator("EdgeModel", testWeights()))

	ckpt, found, err := store.LoadDiscriminator("EdgeModel")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, testWeights(), ckpt.Weights)
}

func TestLoadMissingCheckpoint(t *testing.T) {
	store := NewStore(t.TempDir())

	ckpt, found, err := store.LoadGenerator("EdgeModel")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, ckpt)
}

func TestLoadCorruptCheckpoint(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	require.NoError(t, os.WriteFile(store.GeneratorPath("EdgeModel"), []byte("not json{"), 0o644))

	_, found, err := store.LoadGenerator("EdgeModel")
	assert.True(t, found)
	assert.Error(t, err)
}

func TestCheckpointPaths(t *testing.T) {
	store := NewStore("ckpts")
	assert.Equal(t, filepath.Join("ckpts", "SRModel_gen.json"), store.GeneratorPath("SRModel"))
	assert.Equal(t, filepath.Join("ckpts", "SRModel_dis.json"), store.DiscriminatorPath("SRModel"))
}

func TestSaveCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "checkpoints")
	store := NewStore(dir)

	require.NoError(t, store.SaveGenerator("EdgeModel", 1, testWeights()))

	_, err := os.Stat(store.GeneratorPath("EdgeModel"))
	assert.NoError(t, err)
}

func TestSaveOverwrites(t *testing.T) {
	store := NewStore(t.TempDir())

	require.NoError(t, store.SaveGenerator("EdgeModel", 1, testWeights()))
	require.NoError(t, store.SaveGenerator("EdgeModel", 2, testWeights()))

	ckpt, _, err := store.LoadGenerator("EdgeModel")
	require.NoError(t, err)
	assert.Equal(t, 2, ckpt.Iteration)
}

func TestExtractAndLoadWeights(t *testing.T) {
	a, err := tensor.NewTensor([]int{2, 2}, tensor.Float32, []float32{1, 2, 3, 4})
	require.NoError(t, err)
	b, err := tensor.NewTensor([]int{2}, tensor.Float32, []float32{5, 6})
	require.NoError(t, err)

	weights, err := ExtractWeights([]*tensor.Tensor{a, b})
	require.NoError(t, err)
	require.Len(t, weights, 2)
	assert.Equal(t, "param_0", weights[0].Name)

	// Extracted data is a copy, not an alias.
	a.Data.([]float32)[0] = 99
	assert.Equal(t, float32(1), weights[0].Data[0])

	targetA, err := tensor.Zeros([]int{2, 2}, tensor.Float32)
	require.NoError(t, err)
	targetB, err := tensor.Zeros([]int{2}, tensor.Float32)
	require.NoError(t, err)

	require.NoError(t, LoadWeights(weights, []*tensor.Tensor{targetA, targetB}))
	assert.Equal(t, []float32{1, 2, 3, 4}, targetA.Data.([]float32))
	assert.Equal(t, []float32{5, 6}, targetB.Data.([]float32))
}

func TestLoadWeightsValidation(t *testing.T) {
	target, err := tensor.Zeros([]int{2, 2}, tensor.Float32)
	require.NoError(t, err)

	err = LoadWeights(testWeights(), []*tensor.Tensor{target})
	assert.ErrorContains(t, err, "weight count mismatch")

	wrongShape := []WeightTensor{{Name: "param_0", Shape: []int{4}, Data: []float32{1, 2, 3, 4}}}
	err = LoadWeights(wrongShape, []*tensor.Tensor{target})
	assert.ErrorContains(t, err, "shape mismatch")

	wrongDim := []WeightTensor{{Name: "param_0", Shape: []int{2, 3}, Data: []float32{1, 2, 3, 4, 5, 6}}}
	err = LoadWeights(wrongDim, []*tensor.Tensor{target})
	assert.ErrorContains(t, err, "dimension mismatch")
}

func TestLoadWeightsValidatesBeforeCopying(t *testing.T) {
	good, err := tensor.Zeros([]int{2, 2}, tensor.Float32)
	require.NoError(t, err)
	bad, err := tensor.Zeros([]int{3}, tensor.Float32)
	require.NoError(t, err)

	err = LoadWeights(testWeights(), []*tensor.Tensor{good, bad})
	require.Error(t, err)

	// The first target must be untouched even though its entry matched.
	assert.Equal(t, []float32{0, 0, 0, 0}, good.Data.([]float32))
}
