package nn

import (
	"fmt"
	"math/rand"

	"github.com/edgelab/edgesr/tensor"
)

// Discriminator is a differentiable real/fake classifier that also exposes
// its intermediate feature activations for feature-matching losses.
type Discriminator interface {
	// Forward returns the per-patch scores and the intermediate activations
	// of every feature layer, shallow to deep.
	Forward(input *tensor.Tensor) (*tensor.Tensor, []*tensor.Tensor, error)
	Parameters() []*tensor.Tensor
}

// PatchDiscriminator classifies overlapping patches with a strided
// convolution stack. With useSigmoid the scores are squashed to (0, 1) for
// the BCE-style adversarial variants; the hinge variant consumes raw scores.
type PatchDiscriminator struct {
	convs      []*Conv2d
	final      *Conv2d
	useSigmoid bool
	slope      float32
}

// NewPatchDiscriminator builds a discriminator with the given input channel
// arity (3 for image-only, 4 for image+guidance pairs).
func NewPatchDiscriminator(inChannels int, useSigmoid bool, rng *rand.Rand) (*PatchDiscriminator, error) {
	widths := []int{16, 32, 64}

	var convs []*Conv2d
	in := inChannels
	for _, w := range widths {
		conv, err := NewConv2d(in, w, 3, 2, 1, rng)
		if err != nil {
			return nil, fmt.Errorf("failed to build discriminator conv: %w", err)
		}
		convs = append(convs, conv)
		in = w
	}
	final, err := NewConv2d(in, 1, 3, 1, 1, rng)
	if err != nil {
		return nil, fmt.Errorf("failed to build discriminator head: %w", err)
	}

	return &PatchDiscriminator{
		convs:      convs,
		final:      final,
		useSigmoid: useSigmoid,
		slope:      0.2,
	}, nil
}

func (d *PatchDiscriminator) InChannels() int {
	return d.convs[0].InChannels()
}

func (d *PatchDiscriminator) Forward(input *tensor.Tensor) (*tensor.Tensor, []*tensor.Tensor, error) {
	if len(input.Shape) != 4 {
		return nil, nil, fmt.Errorf("discriminator expects a [batch, channel, height, width] input, got shape %v", input.Shape)
	}
	if input.Shape[1] != d.InChannels() {
		return nil, nil, fmt.Errorf("discriminator configured for %d input channels, got %d", d.InChannels(), input.Shape[1])
	}

	features := make([]*tensor.Tensor, 0, len(d.convs)+1)
	out := input
	for _, conv := range d.convs {
		var err error
		out, err = conv.Forward(out)
		if err != nil {
			return nil, nil, err
		}
		out = tensor.LeakyReLUAutograd(out, d.slope)
		features = append(features, out)
	}

	score, err := d.final.Forward(out)
	if err != nil {
		return nil, nil, err
	}
	features = append(features, score)

	if d.useSigmoid {
		score = tensor.SigmoidAutograd(score)
	}
	return score, features, nil
}

func (d *PatchDiscriminator) Parameters() []*tensor.Tensor {
	var params []*tensor.Tensor
	for _, conv := range d.convs {
		params = append(params, conv.Parameters()...)
	}
	params = append(params, d.final.Parameters()...)
	return params
}
