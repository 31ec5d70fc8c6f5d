// Package nn provides the network building blocks consumed by the model
// controllers: convolution layers, activations, the generator and
// discriminator architectures, and replication wrappers. Networks are plain
// compositions over the tensor autograd ops; weight initialization draws from
// an explicitly injected random source.
package nn

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/edgelab/edgesr/tensor"
)

// Module is a differentiable function from one tensor to one tensor.
type Module interface {
	Forward(input *tensor.Tensor) (*tensor.Tensor, error)
	Parameters() []*tensor.Tensor
}

// Conv2d implements a 2D convolution layer with bias.
type Conv2d struct {
	weight  *tensor.Tensor
	bias    *tensor.Tensor
	stride  int
	padding int
}

// NewConv2d creates a convolution layer with Kaiming-normal initialized
// weights and zero bias.
func NewConv2d(inChannels, outChannels, kernelSize, stride, padding int, rng *rand.Rand) (*Conv2d, error) {
	if inChannels < 1 || outChannels < 1 || kernelSize < 1 {
		return nil, fmt.Errorf("invalid conv2d dimensions: in=%d out=%d kernel=%d", inChannels, outChannels, kernelSize)
	}

	fanIn := inChannels * kernelSize * kernelSize
	std := float32(math.Sqrt(2.0 / float64(fanIn)))
	weight, err := tensor.RandomNormal([]int{outChannels, inChannels, kernelSize, kernelSize}, 0, std, rng)
	if err != nil {
		return nil, fmt.Errorf("failed to create weight tensor: %w", err)
	}
	weight.SetRequiresGrad(true)

	bias, err := tensor.Zeros([]int{outChannels}, tensor.Float32)
	if err != nil {
		return nil, fmt.Errorf("failed to create bias tensor: %w", err)
	}
	bias.SetRequiresGrad(true)

	return &Conv2d{
		weight:  weight,
		bias:    bias,
		stride:  stride,
		padding: padding,
	}, nil
}

func (c *Conv2d) InChannels() int {
	return c.weight.Shape[1]
}

func (c *Conv2d) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	if len(input.Shape) != 4 {
		return nil, fmt.Errorf("conv2d expects a [batch, channel, height, width] input, got shape %v", input.Shape)
	}
	if input.Shape[1] != c.InChannels() {
		return nil, fmt.Errorf("conv2d configured for %d input channels, got %d", c.InChannels(), input.Shape[1])
	}
	return tensor.Conv2dAutograd(input, c.weight, c.bias, c.stride, c.padding), nil
}

func (c *Conv2d) Parameters() []*tensor.Tensor {
	return []*tensor.Tensor{c.weight, c.bias}
}

// LeakyReLU applies leaky ReLU with a fixed negative slope.
type LeakyReLU struct {
	Slope float32
}

func (l *LeakyReLU) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	return tensor.LeakyReLUAutograd(input, l.Slope), nil
}

func (l *LeakyReLU) Parameters() []*tensor.Tensor {
	return nil
}

// Sigmoid squashes activations into (0, 1).
type Sigmoid struct{}

func (s *Sigmoid) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	return tensor.SigmoidAutograd(input), nil
}

func (s *Sigmoid) Parameters() []*tensor.Tensor {
	return nil
}

// ReLU applies the rectifier.
type ReLU struct{}

func (r *ReLU) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	return tensor.ReLUAutograd(input), nil
}

func (r *ReLU) Parameters() []*tensor.Tensor {
	return nil
}

// Sequential chains modules, feeding each output into the next module.
type Sequential struct {
	modules []Module
}

func NewSequential(modules ...Module) *Sequential {
	return &Sequential{modules: modules}
}

func (s *Sequential) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	out := input
	var err error
	for i, m := range s.modules {
		out, err = m.Forward(out)
		if err != nil {
			return nil, fmt.Errorf("sequential module %d: %w", i, err)
		}
	}
	return out, nil
}

func (s *Sequential) Parameters() []*tensor.Tensor {
	var params []*tensor.Tensor
	for _, m := range s.modules {
		params = append(params, m.Parameters()...)
	}
	return params
}
