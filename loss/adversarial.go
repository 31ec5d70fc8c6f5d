// Package loss provides the loss primitives consumed by the model
// controllers: adversarial loss in its closed set of variants, L1
// reconstruction loss, and feature-based content and style losses.
package loss

import (
	"fmt"

	"github.com/edgelab/edgesr/tensor"
)

// GANLoss selects the adversarial loss variant.
type GANLoss string

const (
	GANLossNSGAN GANLoss = "nsgan"
	GANLossLSGAN GANLoss = "lsgan"
	GANLossHinge GANLoss = "hinge"
)

// AdversarialLoss drives generator outputs toward the discriminator's "real"
// decision boundary and the discriminator toward correct classification.
type AdversarialLoss struct {
	variant GANLoss
}

// NewAdversarialLoss fails fast on any variant outside the closed set rather
// than defaulting to an arbitrary one.
func NewAdversarialLoss(variant string) (*AdversarialLoss, error) {
	switch GANLoss(variant) {
	case GANLossNSGAN, GANLossLSGAN, GANLossHinge:
		return &AdversarialLoss{variant: GANLoss(variant)}, nil
	default:
		return nil, fmt.Errorf("unknown adversarial loss variant %q (want nsgan, lsgan or hinge)", variant)
	}
}

func (l *AdversarialLoss) Variant() GANLoss {
	return l.variant
}

// UsesSigmoid reports whether discriminator scores must be squashed to (0, 1)
// before this loss consumes them. The hinge variant works on raw scores.
func (l *AdversarialLoss) UsesSigmoid() bool {
	return l.variant != GANLossHinge
}

// Loss computes the adversarial loss of discriminator outputs against the
// real/fake target. forDiscriminator selects the discriminator side of the
// hinge objective; the BCE and least-squares variants are symmetric.
func (l *AdversarialLoss) Loss(outputs *tensor.Tensor, isReal, forDiscriminator bool) *tensor.Tensor {
	switch l.variant {
	case GANLossNSGAN:
		// BCE with a constant label: -mean(log x) for real, -mean(log(1-x))
		// for fake.
		x := outputs
		if !isReal {
			ones := mustFull(outputs.Shape, 1)
			x = tensor.SubAutograd(ones, outputs)
		}
		return tensor.ScaleAutograd(tensor.MeanAutograd(tensor.LogAutograd(x)), -1)

	case GANLossLSGAN:
		diff := outputs
		if isReal {
			ones := mustFull(outputs.Shape, 1)
			diff = tensor.SubAutograd(outputs, ones)
		}
		return tensor.MeanAutograd(tensor.MulAutograd(diff, diff))

	case GANLossHinge:
		if forDiscriminator {
			ones := mustFull(outputs.Shape, 1)
			var margin *tensor.Tensor
			if isReal {
				margin = tensor.SubAutograd(ones, outputs)
			} else {
				margin = tensor.AddAutograd(ones, outputs)
			}
			return tensor.MeanAutograd(tensor.ReLUAutograd(margin))
		}
		return tensor.ScaleAutograd(tensor.MeanAutograd(outputs), -1)
	}
	panic(fmt.Sprintf("unreachable adversarial variant %q", l.variant))
}

func mustFull(shape []int, value float64) *tensor.Tensor {
	t, err := tensor.Full(shape, value, tensor.Float32)
	if err != nil {
		panic(fmt.Sprintf("full tensor: %v", err))
	}
	return t
}

// L1 is the mean absolute difference between two tensors.
func L1(a, b *tensor.Tensor) *tensor.Tensor {
	return tensor.MeanAutograd(tensor.AbsAutograd(tensor.SubAutograd(a, b)))
}
