package loss

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgelab/edgesr/tensor"
)

func constTensor(t *testing.T, shape []int, value float64) *tensor.Tensor {
	t.Helper()
	out, err := tensor.Full(shape, value, tensor.Float32)
	require.NoError(t, err)
	return out
}

func scalarValue(t *testing.T, loss *tensor.Tensor) float64 {
	t.Helper()
	v, err := loss.Item()
	require.NoError(t, err)
	return v
}

func TestNewAdversarialLossVariants(t *testing.T) {
	for _, variant := range []string{"nsgan", "lsgan", "hinge"} {
		l, err := NewAdversarialLoss(variant)
		require.NoError(t, err)
		assert.Equal(t, GANLoss(variant), l.Variant())
	}

	_, err := NewAdversarialLoss("wgan")
	assert.ErrorContains(t, err, "unknown adversarial loss variant")
	_, err = NewAdversarialLoss("")
	assert.Error(t, err)
}

func TestUsesSigmoid(t *testing.T) {
	nsgan, _ := NewAdversarialLoss("nsgan")
	lsgan, _ := NewAdversarialLoss("lsgan")
	hinge, _ := NewAdversarialLoss("hinge")

	assert.True(t, nsgan.UsesSigmoid())
	assert.True(t, lsgan.UsesSigmoid())
	assert.False(t, hinge.UsesSigmoid())
}

func TestNSGANLoss(t *testing.T) {
	l, _ := NewAdversarialLoss("nsgan")
	outputs := constTensor(t, []int{1, 1, 2, 2}, 0.5)

	// -log(0.5) on both sides at the decision midpoint.
	assert.InDelta(t, math.Log(2), scalarValue(t, l.Loss(outputs, true, true)), 1e-5)
	assert.InDelta(t, math.Log(2), scalarValue(t, l.Loss(outputs, false, true)), 1e-5)

	confident := constTensor(t, []int{1, 1, 2, 2}, 0.9)
	assert.InDelta(t, -math.Log(0.9), scalarValue(t, l.Loss(confident, true, true)), 1e-5)
	assert.InDelta(t, -math.Log(0.1), scalarValue(t, l.Loss(confident, false, true)), 1e-4)
}

func TestLSGANLoss(t *testing.T) {
	l, _ := NewAdversarialLoss("lsgan")
	outputs := constTensor(t, []int{1, 1, 2, 2}, 2)

	// mean((x-1)^2) toward the real label, mean(x^2) toward the fake label.
	assert.InDelta(t, 1.0, scalarValue(t, l.Loss(outputs, true, true)), 1e-6)
	assert.InDelta(t, 4.0, scalarValue(t, l.Loss(outputs, false, true)), 1e-6)
}

func TestHingeLoss(t *testing.T) {
	l, _ := NewAdversarialLoss("hinge")

	real := constTensor(t, []int{1, 1, 2, 2}, 0.3)
	fake := constTensor(t, []int{1, 1, 2, 2}, -0.2)

	// Discriminator side: mean(relu(1 -/+ x)).
	assert.InDelta(t, 0.7, scalarValue(t, l.Loss(real, true, true)), 1e-6)
	assert.InDelta(t, 0.8, scalarValue(t, l.Loss(fake, false, true)), 1e-6)

	// Generator side: -mean(x), independent of the label.
	assert.InDelta(t, -0.3, scalarValue(t, l.Loss(real, true, false)), 1e-6)

	// Margins beyond 1 contribute nothing on the discriminator side.
	easy := constTensor(t, []int{1, 1, 2, 2}, 2)
	assert.InDelta(t, 0, scalarValue(t, l.Loss(easy, true, true)), 1e-6)
}

func TestL1(t *testing.T) {
	a := constTensor(t, []int{2, 2}, 1)
	b := constTensor(t, []int{2, 2}, 0.75)

	assert.InDelta(t, 0.25, scalarValue(t, L1(a, b)), 1e-6)
	assert.InDelta(t, 0, scalarValue(t, L1(a, a)), 0)
}

func TestWeightedLossComposition(t *testing.T) {
	// One generator step's loss built the way the controllers build it:
	// weighted adversarial plus weighted feature matching.
	l, _ := NewAdversarialLoss("lsgan")
	scores := constTensor(t, []int{1, 1, 2, 2}, 2)

	adv := tensor.ScaleAutograd(l.Loss(scores, true, false), 0.1)
	fm := tensor.ScaleAutograd(L1(constTensor(t, []int{4}, 0.05), constTensor(t, []int{4}, 0)), 10)
	total := tensor.AddAutograd(adv, fm)

	assert.InDelta(t, 0.2, scalarValue(t, adv), 1e-6)
	assert.InDelta(t, 0.5, scalarValue(t, fm), 1e-6)
	assert.InDelta(t, 0.7, scalarValue(t, total), 1e-6)
}
