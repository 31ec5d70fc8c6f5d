package checkpoints

import (
	"fmt"

	"github.com/edgelab/edgesr/tensor"
)

// ExtractWeights copies parameter data out of tensors for serialization.
// Names are positional; loading matches tensors by position with shape
// validation.
func ExtractWeights(params []*tensor.Tensor) ([]WeightTensor, error) {
	weights := make([]WeightTensor, 0, len(params))
	for i, p := range params {
		data, err := p.GetFloat32Data()
		if err != nil {
			return nil, fmt.Errorf("failed to extract parameter %d: %w", i, err)
		}
		weights = append(weights, WeightTensor{
			Name:  fmt.Sprintf("param_%d", i),
			Shape: append([]int(nil), p.Shape...),
			Data:  append([]float32(nil), data...),
		})
	}
	return weights, nil
}

// LoadWeights copies checkpoint data back into parameter tensors. Tensors are
// matched positionally and every shape is verified before any data moves.
func LoadWeights(weights []WeightTensor, params []*tensor.Tensor) error {
	if len(weights) != len(params) {
		return fmt.Errorf("weight count mismatch: %d weights, %d parameters", len(weights), len(params))
	}

	for i, p := range params {
		w := weights[i]
		if len(w.Shape) != len(p.Shape) {
			return fmt.Errorf("shape mismatch for %s: checkpoint %v vs parameter %v", w.Name, w.Shape, p.Shape)
		}
		for j, dim := range p.Shape {
			if dim != w.Shape[j] {
				return fmt.Errorf("dimension mismatch for %s at index %d: checkpoint %d vs parameter %d",
					w.Name, j, w.Shape[j], dim)
			}
		}
		if len(w.Data) != p.NumElems {
			return fmt.Errorf("data length mismatch for %s: %d values for %d elements", w.Name, len(w.Data), p.NumElems)
		}
	}

	for i, p := range params {
		data, err := p.GetFloat32Data()
		if err != nil {
			return fmt.Errorf("failed to load parameter %d: %w", i, err)
		}
		copy(data, weights[i].Data)
	}
	return nil
}
