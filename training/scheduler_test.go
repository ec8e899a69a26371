package training

import (
	"math"
	"testing"
)

func TestStepLRScheduler(t *testing.T) {
	scheduler := NewStepLRScheduler(2, 0.1)
	baseLR := 0.1

	tests := []struct {
		epoch      int
		expectedLR float64
	}{
		{0, 0.1},    // Initial
		{1, 0.1},    // No change yet
		{2, 0.01},   // First reduction
		{3, 0.01},   // Same
		{4, 0.001},  // Second reduction
		{5, 0.001},  // Same
		{6, 0.0001}, // Third reduction
	}

	for _, tt := range tests {
		lr := scheduler.GetLR(tt.epoch, 0, baseLR)
		if math.Abs(lr-tt.expectedLR) > 1e-8 {
			t.Errorf("Epoch %d: expected LR %f, got %f", tt.epoch, tt.expectedLR, lr)
		}
	}
}

func TestDecaySchedulerTenEpochs(t *testing.T) {
	scheduler := NewDecayScheduler(10)
	baseLR := 6e-5

	for epoch := 0; epoch < 10; epoch++ {
		lr := scheduler.GetLR(epoch, 0, baseLR)
		want := baseLR
		if epoch >= 8 {
			want = baseLR * 0.1
		}
		if math.Abs(lr-want) > 1e-15 {
			t.Errorf("Epoch %d: expected LR %g, got %g", epoch, want, lr)
		}
	}
}

func TestDecaySchedulerStepSize(t *testing.T) {
	tests := []struct {
		epochNum int
		stepSize int
	}{
		{10000, 8000},
		{10, 8},
		{3, 3}, // first decay once epoch >= 2.4
		{1, 1},
		{0, 1},
	}
	for _, tt := range tests {
		if got := NewDecayScheduler(tt.epochNum).StepSize; got != tt.stepSize {
			t.Errorf("epochNum %d: expected step size %d, got %d", tt.epochNum, tt.stepSize, got)
		}
	}
}

func TestSchedulerNames(t *testing.T) {
	tests := []struct {
		scheduler LRScheduler
		expected  string
	}{
		{NewStepLRScheduler(10, 0.1), "StepLR"},
		{NewDecayScheduler(10), "StepLR"},
	}

	for _, tt := range tests {
		name := tt.scheduler.GetName()
		if name != tt.expected {
			t.Errorf("Expected name %s, got %s", tt.expected, name)
		}
	}
}
