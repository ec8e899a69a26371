package tensor

import (
	"fmt"
	"math"
)

func checkCompatibility(t1, t2 *Tensor) error {
	if t1.Device != t2.Device {
		return fmt.Errorf("tensors must be on same device: %s vs %s", t1.Device, t2.Device)
	}
	if !shapesEqual(t1.Shape, t2.Shape) {
		return fmt.Errorf("tensor shapes must match: %v vs %v", t1.Shape, t2.Shape)
	}
	return nil
}

func Add(t1, t2 *Tensor) (*Tensor, error) {
	if err := checkCompatibility(t1, t2); err != nil {
		return nil, err
	}
	result := mustZeros(t1.Shape)
	for i := range result.Data {
		result.Data[i] = t1.Data[i] + t2.Data[i]
	}
	return result, nil
}

func Sub(t1, t2 *Tensor) (*Tensor, error) {
	if err := checkCompatibility(t1, t2); err != nil {
		return nil, err
	}
	result := mustZeros(t1.Shape)
	for i := range result.Data {
		result.Data[i] = t1.Data[i] - t2.Data[i]
	}
	return result, nil
}

func Mul(t1, t2 *Tensor) (*Tensor, error) {
	if err := checkCompatibility(t1, t2); err != nil {
		return nil, err
	}
	result := mustZeros(t1.Shape)
	for i := range result.Data {
		result.Data[i] = t1.Data[i] * t2.Data[i]
	}
	return result, nil
}

// Scale multiplies every element by s.
func Scale(t *Tensor, s float32) *Tensor {
	result := mustZeros(t.Shape)
	for i, v := range t.Data {
		result.Data[i] = v * s
	}
	return result
}

func Abs(t *Tensor) *Tensor {
	result := mustZeros(t.Shape)
	for i, v := range t.Data {
		if v < 0 {
			v = -v
		}
		result.Data[i] = v
	}
	return result
}

func ReLU(t *Tensor) *Tensor {
	result := mustZeros(t.Shape)
	for i, v := range t.Data {
		if v > 0 {
			result.Data[i] = v
		}
	}
	return result
}

// Mean returns the arithmetic mean of all elements, accumulated in float64.
func Mean(t *Tensor) float64 {
	var sum float64
	for _, v := range t.Data {
		sum += float64(v)
	}
	return sum / float64(t.NumElems)
}

// Clamp limits every element to [low, high] in place.
func Clamp(t *Tensor, low, high float32) {
	for i, v := range t.Data {
		if v < low {
			t.Data[i] = low
		} else if v > high {
			t.Data[i] = high
		}
	}
}

// IsFinite reports whether every element is neither NaN nor infinite.
func IsFinite(t *Tensor) bool {
	for _, v := range t.Data {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
