package optimizer

import (
	"fmt"
	"math"

	"github.com/edgelab/edgesr/tensor"
)

// AdamConfig holds configuration for the Adam optimizer.
type AdamConfig struct {
	LearningRate float32
	Beta1        float32
	Beta2        float32
	Epsilon      float32
	WeightDecay  float32
}

// DefaultAdamConfig returns the standard Adam hyperparameters.
func DefaultAdamConfig() AdamConfig {
	return AdamConfig{
		LearningRate: 0.001,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-8,
		WeightDecay:  0.0,
	}
}

// AdamOptimizer implements Adam with bias correction over a fixed parameter
// collection. Momentum and variance state is allocated per parameter at
// construction and is not persisted across checkpoints; a resumed run starts
// with fresh optimizer state.
type AdamOptimizer struct {
	config AdamConfig

	params   []*tensor.Tensor
	momentum [][]float32
	variance [][]float32

	stepCount uint64
}

// NewAdamOptimizer creates an Adam optimizer owning the given parameters.
func NewAdamOptimizer(config AdamConfig, params []*tensor.Tensor) (*AdamOptimizer, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("no parameters provided")
	}
	if config.Beta1 < 0 || config.Beta1 >= 1 || config.Beta2 < 0 || config.Beta2 >= 1 {
		return nil, fmt.Errorf("betas must be in [0, 1): beta1=%v beta2=%v", config.Beta1, config.Beta2)
	}
	if config.Epsilon <= 0 {
		config.Epsilon = 1e-8
	}

	adam := &AdamOptimizer{
		config:   config,
		params:   params,
		momentum: make([][]float32, len(params)),
		variance: make([][]float32, len(params)),
	}
	for i, p := range params {
		if p.DType != tensor.Float32 {
			return nil, fmt.Errorf("parameter %d is %s, only Float32 parameters are supported", i, p.DType)
		}
		adam.momentum[i] = make([]float32, p.NumElems)
		adam.variance[i] = make([]float32, p.NumElems)
	}
	return adam, nil
}

// Step applies one Adam update. Parameters whose gradient is nil (never
// touched by a backward pass) are skipped.
func (adam *AdamOptimizer) Step() error {
	adam.stepCount++

	beta1 := float64(adam.config.Beta1)
	beta2 := float64(adam.config.Beta2)
	correction1 := 1.0 - math.Pow(beta1, float64(adam.stepCount))
	correction2 := 1.0 - math.Pow(beta2, float64(adam.stepCount))

	for i, p := range adam.params {
		grad := p.Grad()
		if grad == nil {
			continue
		}
		gradData, err := grad.GetFloat32Data()
		if err != nil {
			return fmt.Errorf("parameter %d gradient: %w", i, err)
		}
		weights, err := p.GetFloat32Data()
		if err != nil {
			return fmt.Errorf("parameter %d: %w", i, err)
		}
		if len(gradData) != len(weights) {
			return fmt.Errorf("parameter %d: gradient has %d elements, parameter has %d", i, len(gradData), len(weights))
		}

		m := adam.momentum[i]
		v := adam.variance[i]
		for j := range weights {
			g := gradData[j]
			if adam.config.WeightDecay > 0 {
				g += adam.config.WeightDecay * weights[j]
			}

			m[j] = adam.config.Beta1*m[j] + (1-adam.config.Beta1)*g
			v[j] = adam.config.Beta2*v[j] + (1-adam.config.Beta2)*g*g

			mHat := float64(m[j]) / correction1
			vHat := float64(v[j]) / correction2
			weights[j] -= adam.config.LearningRate * float32(mHat/(math.Sqrt(vHat)+float64(adam.config.Epsilon)))
		}
	}
	return nil
}

// ZeroGrad clears accumulated gradients on the owned parameters.
func (adam *AdamOptimizer) ZeroGrad() {
	tensor.ZeroGrad(adam.params)
}

func (adam *AdamOptimizer) GetStepCount() uint64 {
	return adam.stepCount
}

func (adam *AdamOptimizer) UpdateLearningRate(lr float32) {
	adam.config.LearningRate = lr
}

func (adam *AdamOptimizer) Parameters() []*tensor.Tensor {
	return adam.params
}
