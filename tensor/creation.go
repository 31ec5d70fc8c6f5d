package tensor

import (
	"fmt"
	"math/rand"
)

func NewTensor(shape []int, dtype DType, data interface{}) (*Tensor, error) {
	if err := validateShape(shape); err != nil {
		return nil, err
	}

	t := &Tensor{
		Shape:    append([]int(nil), shape...),
		Strides:  calculateStrides(shape),
		DType:    dtype,
		NumElems: calculateNumElements(shape),
	}

	if err := t.setData(data); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tensor) setData(data interface{}) error {
	switch t.DType {
	case Float32:
		values, ok := data.([]float32)
		if !ok {
			return fmt.Errorf("data type mismatch: expected []float32 for %s tensor", t.DType)
		}
		if len(values) != t.NumElems {
			return fmt.Errorf("data length mismatch: expected %d elements, got %d", t.NumElems, len(values))
		}
		t.Data = values
	case Int32:
		values, ok := data.([]int32)
		if !ok {
			return fmt.Errorf("data type mismatch: expected []int32 for %s tensor", t.DType)
		}
		if len(values) != t.NumElems {
			return fmt.Errorf("data length mismatch: expected %d elements, got %d", t.NumElems, len(values))
		}
		t.Data = values
	default:
		return fmt.Errorf("unsupported dtype: %s", t.DType)
	}
	return nil
}

func Zeros(shape []int, dtype DType) (*Tensor, error) {
	switch dtype {
	case Float32:
		return NewTensor(shape, dtype, make([]float32, calculateNumElements(shape)))
	case Int32:
		return NewTensor(shape, dtype, make([]int32, calculateNumElements(shape)))
	default:
		return nil, fmt.Errorf("unsupported dtype: %s", dtype)
	}
}

func Ones(shape []int, dtype DType) (*Tensor, error) {
	return Full(shape, 1.0, dtype)
}

func Full(shape []int, value float64, dtype DType) (*Tensor, error) {
	n := calculateNumElements(shape)
	switch dtype {
	case Float32:
		data := make([]float32, n)
		for i := range data {
			data[i] = float32(value)
		}
		return NewTensor(shape, dtype, data)
	case Int32:
		data := make([]int32, n)
		for i := range data {
			data[i] = int32(value)
		}
		return NewTensor(shape, dtype, data)
	default:
		return nil, fmt.Errorf("unsupported dtype: %s", dtype)
	}
}

// RandomNormal draws from N(mean, std) using the supplied source so weight
// initialization stays reproducible without any ambient global seed.
func RandomNormal(shape []int, mean, std float32, rng *rand.Rand) (*Tensor, error) {
	data := make([]float32, calculateNumElements(shape))
	for i := range data {
		data[i] = mean + std*float32(rng.NormFloat64())
	}
	return NewTensor(shape, Float32, data)
}

// FromScalar wraps a single value in a [1] tensor.
func FromScalar(value float64) *Tensor {
	t, err := NewTensor([]int{1}, Float32, []float32{float32(value)})
	if err != nil {
		panic(fmt.Sprintf("FromScalar: %v", err))
	}
	return t
}
