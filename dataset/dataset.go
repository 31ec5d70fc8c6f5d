// Package dataset defines the batch producer interface the trainer consumes
// and a synthetic producer for smoke-training and tests. Real data pipelines
// (decoding, edge/gradient extraction, augmentation) live outside this
// module; anything yielding aligned low/high-resolution image and guidance
// batches can drive the controllers.
package dataset

import (
	"fmt"
	"math/rand"

	"github.com/edgelab/edgesr/tensor"
)

// Batch is one aligned training batch. Images carry 3 channels, guidance
// maps carry 1; high-res spatial dimensions are the low-res dimensions times
// the configured scale factor.
type Batch struct {
	LRImages *tensor.Tensor
	HRImages *tensor.Tensor
	LRGuides *tensor.Tensor
	HRGuides *tensor.Tensor
}

// Producer yields training batches.
type Producer interface {
	NextBatch() (*Batch, error)
}

// Synthetic produces uniform random batches with contract-correct shapes.
type Synthetic struct {
	batchSize int
	lrSize    int
	scale     int
	rng       *rand.Rand
}

// NewSynthetic creates a synthetic producer. lrSize is the low-res spatial
// edge length; high-res tensors are lrSize*scale on each axis.
func NewSynthetic(batchSize, lrSize, scale int, rng *rand.Rand) (*Synthetic, error) {
	if batchSize < 1 || lrSize < 1 || scale < 1 {
		return nil, fmt.Errorf("invalid synthetic dataset geometry: batch=%d size=%d scale=%d", batchSize, lrSize, scale)
	}
	return &Synthetic{
		batchSize: batchSize,
		lrSize:    lrSize,
		scale:     scale,
		rng:       rng,
	}, nil
}

func (s *Synthetic) NextBatch() (*Batch, error) {
	hrSize := s.lrSize * s.scale

	lrImages, err := s.uniform([]int{s.batchSize, 3, s.lrSize, s.lrSize})
	if err != nil {
		return nil, err
	}
	hrImages, err := s.uniform([]int{s.batchSize, 3, hrSize, hrSize})
	if err != nil {
		return nil, err
	}
	lrGuides, err := s.uniform([]int{s.batchSize, 1, s.lrSize, s.lrSize})
	if err != nil {
		return nil, err
	}
	hrGuides, err := s.uniform([]int{s.batchSize, 1, hrSize, hrSize})
	if err != nil {
		return nil, err
	}

	return &Batch{
		LRImages: lrImages,
		HRImages: hrImages,
		LRGuides: lrGuides,
		HRGuides: hrGuides,
	}, nil
}

func (s *Synthetic) uniform(shape []int) (*tensor.Tensor, error) {
	n := 1
	for _, d := range shape {
		n *= d
	}
	data := make([]float32, n)
	for i := range data {
		data[i] = s.rng.Float32()
	}
	return tensor.NewTensor(shape, tensor.Float32, data)
}
