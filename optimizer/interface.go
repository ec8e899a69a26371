package optimizer

// Optimizer defines the common interface for all optimizers. Implementations
// read the gradients accumulated on their parameters and update the parameter
// data in place.
type Optimizer interface {
	// Step performs a single optimization step
	Step() error

	// ZeroGrad clears the gradients of every managed parameter
	ZeroGrad()

	// GetStepCount returns the current optimization step number
	GetStepCount() uint64

	// UpdateLearningRate updates the learning rate
	UpdateLearningRate(lr float32)

	// LearningRate returns the rate used by the next Step
	LearningRate() float32
}
