package tensor

import (
	"fmt"
)

func (t *Tensor) Clone() *Tensor {
	data := make([]float32, len(t.Data))
	copy(data, t.Data)
	return &Tensor{
		Shape:        append([]int(nil), t.Shape...),
		Strides:      append([]int(nil), t.Strides...),
		Device:       t.Device,
		Data:         data,
		NumElems:     t.NumElems,
		requiresGrad: t.requiresGrad,
	}
}

// Item returns the value of a single-element tensor.
func (t *Tensor) Item() (float32, error) {
	if t.NumElems != 1 {
		return 0, fmt.Errorf("item() can only be called on tensors with one element, got %d elements", t.NumElems)
	}
	return t.Data[0], nil
}

func (t *Tensor) At(indices ...int) (float32, error) {
	if len(indices) != len(t.Shape) {
		return 0, fmt.Errorf("number of indices (%d) must match tensor dimensions (%d)", len(indices), len(t.Shape))
	}

	flatIndex := 0
	for i, idx := range indices {
		if idx < 0 || idx >= t.Shape[i] {
			return 0, fmt.Errorf("index %d out of bounds for dimension %d with size %d", idx, i, t.Shape[i])
		}
		flatIndex += idx * t.Strides[i]
	}
	return t.Data[flatIndex], nil
}

func (t *Tensor) Numel() int {
	return t.NumElems
}

// ToDevice returns the tensor placed on device. Only CPU storage exists in
// this build, so a GPU request fails.
func (t *Tensor) ToDevice(device DeviceType) (*Tensor, error) {
	if device == t.Device {
		return t, nil
	}
	if device == GPU && !IsGPUAvailable() {
		return nil, fmt.Errorf("cannot move tensor to %s: no accelerator available", device)
	}
	result := t.Detach()
	result.Device = device
	return result, nil
}

// IsGPUAvailable reports whether an accelerator backend is compiled in.
// Training falls back to the CPU when it is not.
func IsGPUAvailable() bool {
	return false
}

// SelectDevice returns GPU when an accelerator is available and CPU otherwise.
func SelectDevice() DeviceType {
	if IsGPUAvailable() {
		return GPU
	}
	return CPU
}
