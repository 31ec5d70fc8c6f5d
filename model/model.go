// Package model implements the adversarial training controllers for the
// edge-informed super-resolution cascade. Each controller owns one generator,
// one discriminator and two independently scheduled Adam optimizers, and
// drives the ordering-critical GAN step protocol: Process composes one
// forward pass and the weighted loss terms without touching gradients;
// Backward applies the discriminator update strictly before the generator
// update.
package model

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/edgelab/edgesr/checkpoints"
	"github.com/edgelab/edgesr/config"
	"github.com/edgelab/edgesr/nn"
	"github.com/edgelab/edgesr/optimizer"
	"github.com/edgelab/edgesr/tensor"
)

var (
	// ErrStepInFlight is returned when Process is called while a prior step
	// has not been closed with Backward.
	ErrStepInFlight = errors.New("model: training step already in flight, call Backward first")

	// ErrNoStepInFlight is returned when Backward is called without a
	// matching Process.
	ErrNoStepInFlight = errors.New("model: no training step in flight, call Process first")
)

// LossEntry is one named scalar in the per-step loss log.
type LossEntry struct {
	Name  string
	Value float64
}

// LossLog is the ordered per-step loss record; insertion order matches the
// order the losses were computed.
type LossLog []LossEntry

// Controller is the training-facing surface shared by the three model
// variants.
type Controller interface {
	Name() string
	Iteration() int
	Forward(lrImages, guidance *tensor.Tensor) (*tensor.Tensor, error)
	Process(lrImages, hrImages, lrGuides, hrGuides *tensor.Tensor) (*tensor.Tensor, *tensor.Tensor, *tensor.Tensor, LossLog, error)
	Backward(genLoss, disLoss *tensor.Tensor) error
	UpdateLearningRate(lr float32)
	Save(store *checkpoints.Store) error
	Load(store *checkpoints.Store) error
}

// base carries the state shared by every controller: identity, the iteration
// counter, the owned networks and optimizers, and the in-flight step guard.
type base struct {
	name      string
	mode      config.Mode
	iteration int
	inFlight  bool

	generator     nn.Module
	discriminator nn.Discriminator
	genOptimizer  optimizer.Optimizer
	disOptimizer  optimizer.Optimizer
}

func (b *base) Name() string {
	return b.name
}

func (b *base) Iteration() int {
	return b.iteration
}

// beginStep opens a training step: it rejects overlapping steps, advances the
// iteration counter before any loss computation, and clears both optimizers'
// accumulated gradients before any backward computation.
func (b *base) beginStep() error {
	if b.inFlight {
		return ErrStepInFlight
	}
	b.inFlight = true
	b.iteration++

	b.genOptimizer.ZeroGrad()
	b.disOptimizer.ZeroGrad()
	return nil
}

func (b *base) abortStep() {
	b.inFlight = false
}

// Backward closes the in-flight step. The discriminator loss is
// back-propagated and its optimizer stepped before the generator loss is
// touched: the generator's loss graph holds a discriminator evaluation made
// with pre-update parameters, and the convolution ops snapshot their weights
// at forward time, so this sequencing keeps both updates consistent with the
// forward passes that produced them. Do not reorder or interleave the two
// phases.
func (b *base) Backward(genLoss, disLoss *tensor.Tensor) error {
	if !b.inFlight {
		return ErrNoStepInFlight
	}

	if err := disLoss.Backward(); err != nil {
		return fmt.Errorf("discriminator backward: %w", err)
	}
	if err := b.disOptimizer.Step(); err != nil {
		return fmt.Errorf("discriminator step: %w", err)
	}

	if err := genLoss.Backward(); err != nil {
		return fmt.Errorf("generator backward: %w", err)
	}
	if err := b.genOptimizer.Step(); err != nil {
		return fmt.Errorf("generator step: %w", err)
	}

	b.inFlight = false
	return nil
}

// UpdateLearningRate applies a new learning rate to both optimizers.
func (b *base) UpdateLearningRate(lr float32) {
	b.genOptimizer.UpdateLearningRate(lr)
	b.disOptimizer.UpdateLearningRate(lr)
}

// Save persists generator weights plus the iteration counter, and the
// discriminator weights, into the store's two per-model files.
func (b *base) Save(store *checkpoints.Store) error {
	slog.Info("Saving checkpoint", "model", b.name, "iteration", b.iteration)

	genWeights, err := checkpoints.ExtractWeights(b.generator.Parameters())
	if err != nil {
		return fmt.Errorf("extract generator weights: %w", err)
	}
	if err := store.SaveGenerator(b.name, b.iteration, genWeights); err != nil {
		return fmt.Errorf("save generator: %w", err)
	}

	disWeights, err := checkpoints.ExtractWeights(b.discriminator.Parameters())
	if err != nil {
		return fmt.Errorf("extract discriminator weights: %w", err)
	}
	if err := store.SaveDiscriminator(b.name, disWeights); err != nil {
		return fmt.Errorf("save discriminator: %w", err)
	}
	return nil
}

// Load restores prior state if checkpoint files exist. Missing or unreadable
// files are not errors: the model starts from scratch and the condition is
// logged. The discriminator file is consulted only in training mode;
// inference never needs it. Optimizer state is recreated fresh on every run.
func (b *base) Load(store *checkpoints.Store) error {
	ckpt, found, err := store.LoadGenerator(b.name)
	switch {
	case err != nil:
		slog.Info("Ignoring unreadable generator checkpoint", "model", b.name, "error", err)
	case found:
		if err := checkpoints.LoadWeights(ckpt.Weights, b.generator.Parameters()); err != nil {
			slog.Info("Ignoring incompatible generator checkpoint", "model", b.name, "error", err)
			break
		}
		b.iteration = ckpt.Iteration
		slog.Info("Loaded generator checkpoint", "model", b.name, "iteration", b.iteration)
	default:
		slog.Info("No generator checkpoint, starting from scratch", "model", b.name)
	}

	if b.mode != config.ModeTrain {
		return nil
	}

	disCkpt, found, err := store.LoadDiscriminator(b.name)
	switch {
	case err != nil:
		slog.Info("Ignoring unreadable discriminator checkpoint", "model", b.name, "error", err)
	case found:
		if err := checkpoints.LoadWeights(disCkpt.Weights, b.discriminator.Parameters()); err != nil {
			slog.Info("Ignoring incompatible discriminator checkpoint", "model", b.name, "error", err)
			break
		}
		slog.Info("Loaded discriminator checkpoint", "model", b.name)
	}
	return nil
}

func checkChannels(t *tensor.Tensor, channels int, what string) error {
	if len(t.Shape) != 4 {
		return fmt.Errorf("%s must be a [batch, channel, height, width] tensor, got shape %v", what, t.Shape)
	}
	if t.Shape[1] != channels {
		return fmt.Errorf("%s must have %d channels, got %d", what, channels, t.Shape[1])
	}
	return nil
}

func scalar(t *tensor.Tensor) float64 {
	v, err := t.Item()
	if err != nil {
		panic(fmt.Sprintf("loss tensor is not scalar: %v", err))
	}
	return v
}
