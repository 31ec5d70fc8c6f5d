package model

import (
	"fmt"
	"math/rand"

	"github.com/edgelab/edgesr/config"
	"github.com/edgelab/edgesr/loss"
	"github.com/edgelab/edgesr/nn"
	"github.com/edgelab/edgesr/optimizer"
	"github.com/edgelab/edgesr/tensor"
)

// guided is the shared controller core for the edge and gradient variants:
// a 4-channel discriminator over (image, guidance) pairs, an adversarial term
// and a feature-matching term.
type guided struct {
	base
	scale     int
	advLoss   *loss.AdversarialLoss
	advWeight float64
	fmWeight  float64
}

func newGuided(name string, newGen func(*rand.Rand) (*nn.Generator, error), opts *config.Options, rng *rand.Rand) (*guided, error) {
	advLoss, err := loss.NewAdversarialLoss(opts.GANLoss)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	gen, err := newGen(rng)
	if err != nil {
		return nil, fmt.Errorf("%s generator: %w", name, err)
	}
	dis, err := nn.NewPatchDiscriminator(4, advLoss.UsesSigmoid(), rng)
	if err != nil {
		return nil, fmt.Errorf("%s discriminator: %w", name, err)
	}

	generator := nn.Parallelize(gen, opts.Replicas())
	discriminator := nn.ParallelizeDiscriminator(dis, opts.Replicas())

	adamConfig := optimizer.AdamConfig{
		LearningRate: float32(opts.LR),
		Beta1:        float32(opts.Beta1),
		Beta2:        float32(opts.Beta2),
		Epsilon:      1e-8,
	}
	genOpt, err := optimizer.NewAdamOptimizer(adamConfig, generator.Parameters())
	if err != nil {
		return nil, fmt.Errorf("%s generator optimizer: %w", name, err)
	}
	disOpt, err := optimizer.NewAdamOptimizer(adamConfig, discriminator.Parameters())
	if err != nil {
		return nil, fmt.Errorf("%s discriminator optimizer: %w", name, err)
	}

	return &guided{
		base: base{
			name:          name,
			mode:          opts.Mode,
			generator:     generator,
			discriminator: discriminator,
			genOptimizer:  genOpt,
			disOptimizer:  disOpt,
		},
		scale:     opts.Scale,
		advLoss:   advLoss,
		advWeight: opts.AdvWeight1,
		fmWeight:  opts.FMWeight,
	}, nil
}

// Forward upsamples the low-res image and guidance map by the configured
// scale, concatenates them channel-wise and runs the generator. Inputs are
// never mutated; the result is a freshly produced high-res guidance map.
func (m *guided) Forward(lrImages, lrGuides *tensor.Tensor) (*tensor.Tensor, error) {
	if err := checkChannels(lrImages, 3, "low-res image"); err != nil {
		return nil, err
	}
	if err := checkChannels(lrGuides, 1, "low-res guidance"); err != nil {
		return nil, err
	}

	hrImages := tensor.UpsampleNearestAutograd(lrImages, m.scale)
	hrGuides := tensor.UpsampleNearestAutograd(lrGuides, m.scale)
	inputs := tensor.ConcatAutograd([]*tensor.Tensor{hrImages, hrGuides}, 1)
	return m.generator.Forward(inputs)
}

// Process runs one complete training step without applying any update.
func (m *guided) Process(lrImages, hrImages, lrGuides, hrGuides *tensor.Tensor) (*tensor.Tensor, *tensor.Tensor, *tensor.Tensor, LossLog, error) {
	if err := m.beginStep(); err != nil {
		return nil, nil, nil, nil, err
	}

	outputs, err := m.Forward(lrImages, lrGuides)
	if err != nil {
		m.abortStep()
		return nil, nil, nil, nil, err
	}

	// Discriminator loss over the real pair and the gradient-detached fake
	// pair; the detach keeps discriminator training from reaching back into
	// the generator.
	disInputReal := tensor.ConcatAutograd([]*tensor.Tensor{hrImages, hrGuides}, 1)
	disInputFake := tensor.ConcatAutograd([]*tensor.Tensor{hrImages, outputs.Detach()}, 1)
	disReal, disRealFeat, err := m.discriminator.Forward(disInputReal)
	if err != nil {
		m.abortStep()
		return nil, nil, nil, nil, err
	}
	disFake, _, err := m.discriminator.Forward(disInputFake)
	if err != nil {
		m.abortStep()
		return nil, nil, nil, nil, err
	}
	disRealLoss := m.advLoss.Loss(disReal, true, true)
	disFakeLoss := m.advLoss.Loss(disFake, false, true)
	disLoss := tensor.ScaleAutograd(tensor.AddAutograd(disRealLoss, disFakeLoss), 0.5)

	// Generator adversarial loss through a fresh, attached discriminator
	// evaluation of the fake pair.
	genInputFake := tensor.ConcatAutograd([]*tensor.Tensor{hrImages, outputs}, 1)
	genFake, genFakeFeat, err := m.discriminator.Forward(genInputFake)
	if err != nil {
		m.abortStep()
		return nil, nil, nil, nil, err
	}
	genGanLoss := tensor.ScaleAutograd(m.advLoss.Loss(genFake, true, false), float32(m.advWeight))
	genLoss := genGanLoss

	// Feature matching against the detached real-pair activations.
	var genFmLoss *tensor.Tensor
	for i := range disRealFeat {
		term := loss.L1(genFakeFeat[i], disRealFeat[i].Detach())
		if genFmLoss == nil {
			genFmLoss = term
		} else {
			genFmLoss = tensor.AddAutograd(genFmLoss, term)
		}
	}
	genFmLoss = tensor.ScaleAutograd(genFmLoss, float32(m.fmWeight))
	genLoss = tensor.AddAutograd(genLoss, genFmLoss)

	logs := LossLog{
		{"l_dis", scalar(disLoss)},
		{"l_gen", scalar(genGanLoss)},
		{"l_fm", scalar(genFmLoss)},
	}
	return outputs, genLoss, disLoss, logs, nil
}

// EdgeModel generates high-resolution edge maps from low-resolution images
// and edge maps.
type EdgeModel struct {
	guided
}

func NewEdgeModel(opts *config.Options, rng *rand.Rand) (*EdgeModel, error) {
	g, err := newGuided("EdgeModel", nn.NewEdgeGenerator, opts, rng)
	if err != nil {
		return nil, err
	}
	return &EdgeModel{guided: *g}, nil
}

// GradientModel generates high-resolution gradient maps from low-resolution
// images and gradient maps.
type GradientModel struct {
	guided
}

func NewGradientModel(opts *config.Options, rng *rand.Rand) (*GradientModel, error) {
	g, err := newGuided("GradientModel", nn.NewGradientGenerator, opts, rng)
	if err != nil {
		return nil, err
	}
	return &GradientModel{guided: *g}, nil
}
