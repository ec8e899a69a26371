package tensor

import (
	"fmt"
	"math/rand"
)

// NewTensor wraps data in a tensor of the given shape. A nil data slice
// allocates zeros. The slice is used directly, not copied.
func NewTensor(shape []int, data []float32) (*Tensor, error) {
	if err := validateShape(shape); err != nil {
		return nil, err
	}

	numElems := calculateNumElements(shape)
	if data == nil {
		data = make([]float32, numElems)
	} else if len(data) != numElems {
		return nil, fmt.Errorf("data length %d does not match tensor size %d", len(data), numElems)
	}

	return &Tensor{
		Shape:    append([]int(nil), shape...),
		Strides:  calculateStrides(shape),
		Device:   CPU,
		Data:     data,
		NumElems: numElems,
	}, nil
}

func Zeros(shape []int) (*Tensor, error) {
	return NewTensor(shape, nil)
}

func Ones(shape []int) (*Tensor, error) {
	return Full(shape, 1)
}

func Full(shape []int, value float32) (*Tensor, error) {
	t, err := Zeros(shape)
	if err != nil {
		return nil, err
	}
	for i := range t.Data {
		t.Data[i] = value
	}
	return t, nil
}

// Uniform fills a tensor with values drawn from [low, high) using rng, so
// initialization is reproducible for a fixed seed.
func Uniform(shape []int, low, high float32, rng *rand.Rand) (*Tensor, error) {
	t, err := Zeros(shape)
	if err != nil {
		return nil, err
	}
	span := high - low
	for i := range t.Data {
		t.Data[i] = low + span*rng.Float32()
	}
	return t, nil
}

// mustZeros is used inside autograd ops where the shape was already validated.
func mustZeros(shape []int) *Tensor {
	t, err := Zeros(shape)
	if err != nil {
		panic(fmt.Sprintf("failed to allocate tensor: %v", err))
	}
	return t
}
