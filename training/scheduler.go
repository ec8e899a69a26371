package training

import (
	"math"
)

// LRScheduler maps an epoch to a learning rate. Implementations are pure
// functions of their arguments, so the session can recompute the rate for
// any epoch, including after a resume.
type LRScheduler interface {
	// GetLR returns the learning rate to use during epoch
	GetLR(epoch int, step int, baseLR float64) float64

	// GetName returns the scheduler name for logging
	GetName() string
}

// StepLRScheduler reduces learning rate by a factor every stepSize epochs
type StepLRScheduler struct {
	StepSize int     // Epochs between LR reductions
	Gamma    float64 // Multiplicative factor of LR decay
}

// NewStepLRScheduler creates a step learning rate scheduler
func NewStepLRScheduler(stepSize int, gamma float64) *StepLRScheduler {
	if stepSize <= 0 {
		stepSize = 30 // Default: reduce every 30 epochs
	}
	if gamma <= 0 || gamma >= 1 {
		gamma = 0.1 // Default: reduce by 10x
	}
	return &StepLRScheduler{
		StepSize: stepSize,
		Gamma:    gamma,
	}
}

// NewDecayScheduler returns the training schedule for a run of epochNum
// epochs: the rate is multiplied by 0.1 once 80% of the epochs have
// elapsed, and again every such interval after that.
func NewDecayScheduler(epochNum int) *StepLRScheduler {
	stepSize := int(math.Ceil(0.8 * float64(epochNum)))
	if stepSize < 1 {
		stepSize = 1
	}
	return NewStepLRScheduler(stepSize, 0.1)
}

func (s *StepLRScheduler) GetLR(epoch int, step int, baseLR float64) float64 {
	times := epoch / s.StepSize
	return baseLR * math.Pow(s.Gamma, float64(times))
}

func (s *StepLRScheduler) GetName() string {
	return "StepLR"
}
