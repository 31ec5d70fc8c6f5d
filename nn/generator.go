package nn

import (
	"fmt"
	"math/rand"

	"github.com/edgelab/edgesr/tensor"
)

// Generator wraps a convolutional trunk with a fixed input channel arity.
// Edge and gradient generators take the upsampled image plus guidance map
// (4 channels) and emit a single-channel guidance map; the SR generator takes
// the sparse-upsampled image plus high-res guidance (4 channels) and emits a
// 3-channel image.
type Generator struct {
	trunk       *Sequential
	inChannels  int
	outChannels int
}

func newGenerator(inChannels, outChannels, width int, rng *rand.Rand) (*Generator, error) {
	conv1, err := NewConv2d(inChannels, width, 3, 1, 1, rng)
	if err != nil {
		return nil, err
	}
	conv2, err := NewConv2d(width, width, 3, 1, 1, rng)
	if err != nil {
		return nil, err
	}
	conv3, err := NewConv2d(width, outChannels, 3, 1, 1, rng)
	if err != nil {
		return nil, err
	}

	return &Generator{
		trunk: NewSequential(
			conv1, &LeakyReLU{Slope: 0.2},
			conv2, &LeakyReLU{Slope: 0.2},
			conv3, &Sigmoid{},
		),
		inChannels:  inChannels,
		outChannels: outChannels,
	}, nil
}

// NewEdgeGenerator builds the edge-map generator: image+edge in, edge out.
func NewEdgeGenerator(rng *rand.Rand) (*Generator, error) {
	return newGenerator(4, 1, 32, rng)
}

// NewGradientGenerator builds the gradient-map generator: image+gradient in,
// gradient out.
func NewGradientGenerator(rng *rand.Rand) (*Generator, error) {
	return newGenerator(4, 1, 32, rng)
}

// NewSRGenerator builds the super-resolution generator: sparse image+guidance
// in, RGB image out.
func NewSRGenerator(rng *rand.Rand) (*Generator, error) {
	return newGenerator(4, 3, 32, rng)
}

func (g *Generator) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	if len(input.Shape) != 4 {
		return nil, fmt.Errorf("generator expects a [batch, channel, height, width] input, got shape %v", input.Shape)
	}
	if input.Shape[1] != g.inChannels {
		return nil, fmt.Errorf("generator configured for %d input channels, got %d", g.inChannels, input.Shape[1])
	}
	return g.trunk.Forward(input)
}

func (g *Generator) Parameters() []*tensor.Tensor {
	return g.trunk.Parameters()
}

func (g *Generator) OutChannels() int {
	return g.outChannels
}
