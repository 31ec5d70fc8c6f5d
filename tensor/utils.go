package tensor

import (
	"fmt"
	"math"
)

// Clone returns a deep copy of the tensor data. The autograd graph is not
// copied.
func (t *Tensor) Clone() (*Tensor, error) {
	clone := &Tensor{
		Shape:        append([]int(nil), t.Shape...),
		Strides:      append([]int(nil), t.Strides...),
		DType:        t.DType,
		NumElems:     t.NumElems,
		requiresGrad: t.requiresGrad,
	}

	switch t.DType {
	case Float32:
		data := make([]float32, t.NumElems)
		copy(data, t.Data.([]float32))
		clone.Data = data
	case Int32:
		data := make([]int32, t.NumElems)
		copy(data, t.Data.([]int32))
		clone.Data = data
	default:
		return nil, fmt.Errorf("unsupported dtype for clone: %s", t.DType)
	}
	return clone, nil
}

func (t *Tensor) GetFloat32Data() ([]float32, error) {
	if t.DType != Float32 {
		return nil, fmt.Errorf("tensor is not Float32, got %s", t.DType)
	}
	return t.Data.([]float32), nil
}

// Item returns the value of a single-element tensor as float64.
func (t *Tensor) Item() (float64, error) {
	if t.NumElems != 1 {
		return 0, fmt.Errorf("item requires a single-element tensor, got shape %v", t.Shape)
	}
	switch t.DType {
	case Float32:
		return float64(t.Data.([]float32)[0]), nil
	case Int32:
		return float64(t.Data.([]int32)[0]), nil
	default:
		return 0, fmt.Errorf("unsupported dtype: %s", t.DType)
	}
}

func (t *Tensor) At(indices ...int) (float32, error) {
	if len(indices) != len(t.Shape) {
		return 0, fmt.Errorf("expected %d indices, got %d", len(t.Shape), len(indices))
	}
	idx := 0
	for i, coord := range indices {
		if coord < 0 || coord >= t.Shape[i] {
			return 0, fmt.Errorf("index %d out of range for dimension %d (size %d)", coord, i, t.Shape[i])
		}
		idx += coord * t.Strides[i]
	}
	data, err := t.GetFloat32Data()
	if err != nil {
		return 0, err
	}
	return data[idx], nil
}

func (t *Tensor) Size() []int {
	return t.Shape
}

func (t *Tensor) Numel() int {
	return t.NumElems
}

func (t *Tensor) Dim() int {
	return len(t.Shape)
}

func (t *Tensor) Equal(other *Tensor) bool {
	if err := checkCompatibility(t, other); err != nil {
		return false
	}
	switch t.DType {
	case Float32:
		a := t.Data.([]float32)
		b := other.Data.([]float32)
		for i := range a {
			if a[i] != b[i] {
				return false
			}
		}
	case Int32:
		a := t.Data.([]int32)
		b := other.Data.([]int32)
		for i := range a {
			if a[i] != b[i] {
				return false
			}
		}
	}
	return true
}

// HasNaN reports whether any element is NaN or infinite. Non-finite losses
// are propagated to the caller, never suppressed; this is a monitoring aid.
func (t *Tensor) HasNaN() bool {
	data, err := t.GetFloat32Data()
	if err != nil {
		return false
	}
	for _, v := range data {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return true
		}
	}
	return false
}

// ZeroGrad resets the accumulated gradients of the given tensors in place.
func ZeroGrad(tensors []*Tensor) {
	for _, t := range tensors {
		if t.requiresGrad && t.grad != nil {
			data := t.grad.Data.([]float32)
			for i := range data {
				data[i] = 0
			}
		}
	}
}
