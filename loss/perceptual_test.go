package loss

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgelab/edgesr/tensor"
)

func randomImage(t *testing.T, rng *rand.Rand, shape []int) *tensor.Tensor {
	t.Helper()
	img, err := tensor.RandomNormal(shape, 0.5, 0.2, rng)
	require.NoError(t, err)
	return img
}

func TestContentLossZeroOnIdenticalInputs(t *testing.T) {
	rng := rand.New(rand.NewSource(20))
	x := randomImage(t, rng, []int{1, 3, 8, 8})

	cl := NewContentLoss()
	loss, err := cl.Loss(x, x)
	require.NoError(t, err)
	assert.InDelta(t, 0, scalarValue(t, loss), 1e-7)
}

func TestContentLossPositiveOnDifferentInputs(t *testing.T) {
	rng := rand.New(rand.NewSource(21))
	x := randomImage(t, rng, []int{1, 3, 8, 8})
	y := randomImage(t, rng, []int{1, 3, 8, 8})

	cl := NewContentLoss()
	loss, err := cl.Loss(x, y)
	require.NoError(t, err)
	assert.Greater(t, scalarValue(t, loss), 0.0)
}

func TestContentLossGradientReachesInput(t *testing.T) {
	rng := rand.New(rand.NewSource(22))
	x := randomImage(t, rng, []int{1, 3, 8, 8})
	x.SetRequiresGrad(true)
	y := randomImage(t, rng, []int{1, 3, 8, 8})

	cl := NewContentLoss()
	loss, err := cl.Loss(x, y)
	require.NoError(t, err)
	require.NoError(t, loss.Backward())

	assert.NotNil(t, x.Grad())
	// The frozen extractor never accumulates gradients.
	for _, conv := range cl.extractor.convs {
		for _, p := range conv.Parameters() {
			assert.Nil(t, p.Grad())
		}
	}
}

func TestStyleLossZeroOnIdenticalInputs(t *testing.T) {
	rng := rand.New(rand.NewSource(23))
	x := randomImage(t, rng, []int{1, 3, 8, 8})

	sl := NewStyleLoss()
	loss, err := sl.Loss(x, x)
	require.NoError(t, err)
	assert.InDelta(t, 0, scalarValue(t, loss), 1e-7)
}

func TestStyleLossPositiveOnDifferentInputs(t *testing.T) {
	rng := rand.New(rand.NewSource(24))
	x := randomImage(t, rng, []int{1, 3, 8, 8})
	y := randomImage(t, rng, []int{1, 3, 8, 8})

	sl := NewStyleLoss()
	loss, err := sl.Loss(x, y)
	require.NoError(t, err)
	assert.Greater(t, scalarValue(t, loss), 0.0)
}

func TestPerceptualLossesRejectNonImageInput(t *testing.T) {
	rng := rand.New(rand.NewSource(25))
	bad := randomImage(t, rng, []int{1, 1, 8, 8})
	good := randomImage(t, rng, []int{1, 3, 8, 8})

	cl := NewContentLoss()
	_, err := cl.Loss(bad, good)
	assert.Error(t, err)

	sl := NewStyleLoss()
	_, err = sl.Loss(bad, good)
	assert.Error(t, err)
}
