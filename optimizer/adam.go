package optimizer

import (
	"fmt"
	"math"

	"github.com/tsawler/go-lfca/tensor"
)

// AdamOptimizerState holds Adam hyperparameters and the per-parameter moment
// estimates. The moments live only in memory and start from zero.
type AdamOptimizerState struct {
	// Hyperparameters
	LR          float32
	Beta1       float32 // Momentum decay (typically 0.9)
	Beta2       float32 // Variance decay (typically 0.999)
	Epsilon     float32 // Small constant to prevent division by zero (typically 1e-8)
	WeightDecay float32 // L2 regularization coefficient

	MomentumBuffers [][]float32 // First moment for each weight tensor
	VarianceBuffers [][]float32 // Second moment for each weight tensor
	WeightBuffers   []*tensor.Tensor

	// Step tracking for bias correction
	StepCount uint64
}

// AdamConfig holds configuration for Adam optimizer
type AdamConfig struct {
	LearningRate float32
	Beta1        float32
	Beta2        float32
	Epsilon      float32
	WeightDecay  float32
}

// DefaultAdamConfig returns default Adam optimizer configuration
func DefaultAdamConfig() AdamConfig {
	return AdamConfig{
		LearningRate: 0.001,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-8,
		WeightDecay:  0.0,
	}
}

// NewAdamOptimizer creates an Adam optimizer over params.
func NewAdamOptimizer(config AdamConfig, params []*tensor.Tensor) (*AdamOptimizerState, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("no parameters provided")
	}
	if config.Beta1 < 0 || config.Beta1 >= 1 || config.Beta2 < 0 || config.Beta2 >= 1 {
		return nil, fmt.Errorf("beta values must be in [0, 1), got %g and %g", config.Beta1, config.Beta2)
	}

	adam := &AdamOptimizerState{
		LR:              config.LearningRate,
		Beta1:           config.Beta1,
		Beta2:           config.Beta2,
		Epsilon:         config.Epsilon,
		WeightDecay:     config.WeightDecay,
		MomentumBuffers: make([][]float32, len(params)),
		VarianceBuffers: make([][]float32, len(params)),
		WeightBuffers:   make([]*tensor.Tensor, len(params)),
	}

	for i, p := range params {
		if p == nil {
			return nil, fmt.Errorf("parameter %d is nil", i)
		}
		if !p.RequiresGrad() {
			return nil, fmt.Errorf("parameter %d (shape %v) does not require grad", i, p.Shape)
		}
		adam.WeightBuffers[i] = p
		adam.MomentumBuffers[i] = make([]float32, p.NumElems)
		adam.VarianceBuffers[i] = make([]float32, p.NumElems)
	}

	return adam, nil
}

// Step performs a single Adam update using the gradients accumulated on each
// parameter. Parameters without a gradient are left unchanged.
func (adam *AdamOptimizerState) Step() error {
	adam.StepCount++

	// Bias corrections are computed in float64 so that beta^t stays accurate
	// over long runs.
	t := float64(adam.StepCount)
	bc1 := 1 - math.Pow(float64(adam.Beta1), t)
	bc2 := 1 - math.Pow(float64(adam.Beta2), t)
	stepSize := float64(adam.LR) / bc1
	bc2Sqrt := math.Sqrt(bc2)

	b1, b2 := adam.Beta1, adam.Beta2
	for i, w := range adam.WeightBuffers {
		grad := w.Grad()
		if grad == nil {
			continue
		}
		if grad.NumElems != w.NumElems {
			return fmt.Errorf("gradient for parameter %d has %d elements, expected %d", i, grad.NumElems, w.NumElems)
		}

		m := adam.MomentumBuffers[i]
		v := adam.VarianceBuffers[i]
		for j, g := range grad.Data {
			if adam.WeightDecay != 0 {
				g += adam.WeightDecay * w.Data[j]
			}
			m[j] = b1*m[j] + (1-b1)*g
			v[j] = b2*v[j] + (1-b2)*g*g

			denom := math.Sqrt(float64(v[j]))/bc2Sqrt + float64(adam.Epsilon)
			w.Data[j] -= float32(stepSize * float64(m[j]) / denom)
		}
	}

	return nil
}

// ZeroGrad clears the accumulated gradients of all managed parameters
func (adam *AdamOptimizerState) ZeroGrad() {
	tensor.ZeroGrad(adam.WeightBuffers)
}

// UpdateLearningRate updates the learning rate (useful for learning rate scheduling)
func (adam *AdamOptimizerState) UpdateLearningRate(newLR float32) {
	adam.LR = newLR
}

func (adam *AdamOptimizerState) LearningRate() float32 {
	return adam.LR
}

// GetStepCount returns the current step count
func (adam *AdamOptimizerState) GetStepCount() uint64 {
	return adam.StepCount
}

// GetStats returns optimizer statistics
func (adam *AdamOptimizerState) GetStats() AdamStats {
	return AdamStats{
		StepCount:       adam.StepCount,
		LearningRate:    adam.LR,
		Beta1:           adam.Beta1,
		Beta2:           adam.Beta2,
		Epsilon:         adam.Epsilon,
		WeightDecay:     adam.WeightDecay,
		NumParameters:   len(adam.WeightBuffers),
		TotalBufferSize: adam.getTotalBufferSize(),
	}
}

// AdamStats provides statistics about the Adam optimizer
type AdamStats struct {
	StepCount       uint64
	LearningRate    float32
	Beta1           float32
	Beta2           float32
	Epsilon         float32
	WeightDecay     float32
	NumParameters   int
	TotalBufferSize int
}

// getTotalBufferSize returns the bytes held by the moment buffers
func (adam *AdamOptimizerState) getTotalBufferSize() int {
	total := 0
	for i := range adam.MomentumBuffers {
		total += 4 * (len(adam.MomentumBuffers[i]) + len(adam.VarianceBuffers[i]))
	}
	return total
}
