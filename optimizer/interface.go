// Package optimizer implements gradient-descent parameter updates over
// tensor parameter collections. One optimizer instance owns exactly the
// collection it was constructed with and is the only component that mutates
// those parameters.
package optimizer

import (
	"github.com/edgelab/edgesr/tensor"
)

// Optimizer defines the common interface for all optimizers.
type Optimizer interface {
	// Step applies one update to the owned parameter collection using the
	// gradients currently accumulated on the parameters.
	Step() error

	// ZeroGrad clears the accumulated gradients of the owned parameters.
	ZeroGrad()

	// GetStepCount returns the number of Step calls applied so far.
	GetStepCount() uint64

	// UpdateLearningRate replaces the learning rate for subsequent steps.
	UpdateLearningRate(lr float32)

	// Parameters returns the owned parameter collection.
	Parameters() []*tensor.Tensor
}
