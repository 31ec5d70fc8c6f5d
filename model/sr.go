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

// SRModel generates high-resolution images from low-resolution images and an
// already high-resolution guidance map. Its discriminator sees images only
// (3 channels) and its generator loss adds pixel, content and style terms in
// place of feature matching.
type SRModel struct {
	base
	scale int

	advLoss     *loss.AdversarialLoss
	contentLoss *loss.ContentLoss
	styleLoss   *loss.StyleLoss

	advWeight     float64
	l1Weight      float64
	contentWeight float64
	styleWeight   float64
}

func NewSRModel(opts *config.Options, rng *rand.Rand) (*SRModel, error) {
	advLoss, err := loss.NewAdversarialLoss(opts.GANLoss)
	if err != nil {
		return nil, fmt.Errorf("SRModel: %w", err)
	}

	gen, err := nn.NewSRGenerator(rng)
	if err != nil {
		return nil, fmt.Errorf("SRModel generator: %w", err)
	}
	dis, err := nn.NewPatchDiscriminator(3, advLoss.UsesSigmoid(), rng)
	if err != nil {
		return nil, fmt.Errorf("SRModel discriminator: %w", err)
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
		return nil, fmt.Errorf("SRModel generator optimizer: %w", err)
	}
	disOpt, err := optimizer.NewAdamOptimizer(adamConfig, discriminator.Parameters())
	if err != nil {
		return nil, fmt.Errorf("SRModel discriminator optimizer: %w", err)
	}

	return &SRModel{
		base: base{
			name:          "SRModel",
			mode:          opts.Mode,
			generator:     generator,
			discriminator: discriminator,
			genOptimizer:  genOpt,
			disOptimizer:  disOpt,
		},
		scale:         opts.Scale,
		advLoss:       advLoss,
		contentLoss:   loss.NewContentLoss(),
		styleLoss:     loss.NewStyleLoss(),
		advWeight:     opts.AdvWeight2,
		l1Weight:      opts.L1Weight,
		contentWeight: opts.ContentWeight,
		styleWeight:   opts.StyleWeight,
	}, nil
}

// Forward upsamples the low-res image with the fixed zero-insertion kernel,
// concatenates the high-res guidance map and runs the generator. The sparse
// upsampling keeps every original pixel at coordinates that are multiples of
// the scale factor, so downsampling by stride recovers the input exactly.
func (m *SRModel) Forward(lrImages, hrGuides *tensor.Tensor) (*tensor.Tensor, error) {
	if err := checkChannels(lrImages, 3, "low-res image"); err != nil {
		return nil, err
	}
	if err := checkChannels(hrGuides, 1, "high-res guidance"); err != nil {
		return nil, err
	}

	hrImages := tensor.ZeroUpsampleAutograd(lrImages, m.scale)
	inputs := tensor.ConcatAutograd([]*tensor.Tensor{hrImages, hrGuides}, 1)
	return m.generator.Forward(inputs)
}

// Process runs one complete training step without applying any update. The
// low-res guidance argument is accepted for interface parity with the guided
// controllers but the SR variant consumes only the high-res guidance map.
func (m *SRModel) Process(lrImages, hrImages, _, hrGuides *tensor.Tensor) (*tensor.Tensor, *tensor.Tensor, *tensor.Tensor, LossLog, error) {
	if err := m.beginStep(); err != nil {
		return nil, nil, nil, nil, err
	}

	outputs, err := m.Forward(lrImages, hrGuides)
	if err != nil {
		m.abortStep()
		return nil, nil, nil, nil, err
	}

	// Discriminator loss: real images vs the gradient-detached fake.
	disReal, _, err := m.discriminator.Forward(hrImages)
	if err != nil {
		m.abortStep()
		return nil, nil, nil, nil, err
	}
	disFake, _, err := m.discriminator.Forward(outputs.Detach())
	if err != nil {
		m.abortStep()
		return nil, nil, nil, nil, err
	}
	disRealLoss := m.advLoss.Loss(disReal, true, true)
	disFakeLoss := m.advLoss.Loss(disFake, false, true)
	disLoss := tensor.ScaleAutograd(tensor.AddAutograd(disRealLoss, disFakeLoss), 0.5)

	// Generator adversarial loss through an attached evaluation.
	genFake, _, err := m.discriminator.Forward(outputs)
	if err != nil {
		m.abortStep()
		return nil, nil, nil, nil, err
	}
	genGanLoss := tensor.ScaleAutograd(m.advLoss.Loss(genFake, true, false), float32(m.advWeight))
	genLoss := genGanLoss

	// Pixel reconstruction.
	genL1Loss := tensor.ScaleAutograd(loss.L1(outputs, hrImages), float32(m.l1Weight))
	genLoss = tensor.AddAutograd(genLoss, genL1Loss)

	// Perceptual content distance.
	contentLoss, err := m.contentLoss.Loss(outputs, hrImages)
	if err != nil {
		m.abortStep()
		return nil, nil, nil, nil, err
	}
	genContentLoss := tensor.ScaleAutograd(contentLoss, float32(m.contentWeight))
	genLoss = tensor.AddAutograd(genLoss, genContentLoss)

	// Style distance over Gram matrices.
	styleLoss, err := m.styleLoss.Loss(outputs, hrImages)
	if err != nil {
		m.abortStep()
		return nil, nil, nil, nil, err
	}
	genStyleLoss := tensor.ScaleAutograd(styleLoss, float32(m.styleWeight))
	genLoss = tensor.AddAutograd(genLoss, genStyleLoss)

	logs := LossLog{
		{"l_dis", scalar(disLoss)},
		{"l_gen", scalar(genGanLoss)},
		{"l_l1", scalar(genL1Loss)},
		{"l_content", scalar(genContentLoss)},
		{"l_style", scalar(genStyleLoss)},
	}
	return outputs, genLoss, disLoss, logs, nil
}
