package loss

import (
	"fmt"
	"math/rand"

	"github.com/edgelab/edgesr/nn"
	"github.com/edgelab/edgesr/tensor"
)

// featureSeed fixes the extractor weights so content and style distances are
// stable across processes and checkpoint resumes.
const featureSeed = 901

// featureExtractor is a frozen convolutional pyramid standing in for a
// pretrained perceptual network. Its parameters never require gradients;
// gradient flow to the compared images passes through the convolutions
// unchanged.
type featureExtractor struct {
	convs []*nn.Conv2d
}

func newFeatureExtractor() *featureExtractor {
	rng := rand.New(rand.NewSource(featureSeed))
	widths := []int{8, 16, 32}

	fe := &featureExtractor{}
	in := 3
	for _, w := range widths {
		conv, err := nn.NewConv2d(in, w, 3, 2, 1, rng)
		if err != nil {
			panic(fmt.Sprintf("feature extractor: %v", err))
		}
		for _, p := range conv.Parameters() {
			p.SetRequiresGrad(false)
		}
		fe.convs = append(fe.convs, conv)
		in = w
	}
	return fe
}

// features returns one activation map per pyramid level, shallow to deep.
func (fe *featureExtractor) features(x *tensor.Tensor) ([]*tensor.Tensor, error) {
	out := x
	levels := make([]*tensor.Tensor, 0, len(fe.convs))
	for _, conv := range fe.convs {
		var err error
		out, err = conv.Forward(out)
		if err != nil {
			return nil, err
		}
		out = tensor.ReLUAutograd(out)
		levels = append(levels, out)
	}
	return levels, nil
}

// ContentLoss measures the perceptual distance between two images as the
// summed L1 distance of their feature activations.
type ContentLoss struct {
	extractor *featureExtractor
}

func NewContentLoss() *ContentLoss {
	return &ContentLoss{extractor: newFeatureExtractor()}
}

func (c *ContentLoss) Loss(x, y *tensor.Tensor) (*tensor.Tensor, error) {
	fx, err := c.extractor.features(x)
	if err != nil {
		return nil, fmt.Errorf("content loss: %w", err)
	}
	fy, err := c.extractor.features(y)
	if err != nil {
		return nil, fmt.Errorf("content loss: %w", err)
	}

	total := L1(fx[0], fy[0].Detach())
	for i := 1; i < len(fx); i++ {
		total = tensor.AddAutograd(total, L1(fx[i], fy[i].Detach()))
	}
	return total, nil
}

// StyleLoss measures the distance between the Gram matrices of two images'
// feature activations, summed over pyramid levels.
type StyleLoss struct {
	extractor *featureExtractor
}

func NewStyleLoss() *StyleLoss {
	return &StyleLoss{extractor: newFeatureExtractor()}
}

func (s *StyleLoss) Loss(x, y *tensor.Tensor) (*tensor.Tensor, error) {
	fx, err := s.extractor.features(x)
	if err != nil {
		return nil, fmt.Errorf("style loss: %w", err)
	}
	fy, err := s.extractor.features(y)
	if err != nil {
		return nil, fmt.Errorf("style loss: %w", err)
	}

	var total *tensor.Tensor
	for i := range fx {
		gx := tensor.GramAutograd(fx[i])
		gy := tensor.GramAutograd(fy[i].Detach())
		d := tensor.MeanAutograd(tensor.AbsAutograd(tensor.SubAutograd(gx, gy)))
		if total == nil {
			total = d
		} else {
			total = tensor.AddAutograd(total, d)
		}
	}
	return total, nil
}
