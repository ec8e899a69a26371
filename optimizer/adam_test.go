package optimizer

import (
	"math"
	"testing"

	"github.com/tsawler/go-lfca/tensor"
)

func param(t *testing.T, data ...float32) *tensor.Tensor {
	t.Helper()
	p, err := tensor.NewTensor([]int{len(data)}, data)
	if err != nil {
		t.Fatalf("Failed to create tensor: %v", err)
	}
	p.SetRequiresGrad(true)
	return p
}

// backwardDot sets p.grad = g by differentiating mean(p * g) * n.
func backwardDot(t *testing.T, p *tensor.Tensor, g ...float32) {
	t.Helper()
	scaled := make([]float32, len(g))
	for i, v := range g {
		scaled[i] = v * float32(len(g))
	}
	gt, _ := tensor.NewTensor([]int{len(g)}, scaled)
	if err := tensor.MeanAutograd(tensor.MulAutograd(p, gt)).Backward(); err != nil {
		t.Fatalf("Backward failed: %v", err)
	}
}

// TestAdamConfig tests the Adam configuration
func TestAdamConfig(t *testing.T) {
	config := DefaultAdamConfig()

	if config.LearningRate != 0.001 {
		t.Errorf("Expected learning rate 0.001, got %f", config.LearningRate)
	}
	if config.Beta1 != 0.9 {
		t.Errorf("Expected beta1 0.9, got %f", config.Beta1)
	}
	if config.Beta2 != 0.999 {
		t.Errorf("Expected beta2 0.999, got %f", config.Beta2)
	}
	if config.Epsilon != 1e-8 {
		t.Errorf("Expected epsilon 1e-8, got %f", config.Epsilon)
	}
	if config.WeightDecay != 0.0 {
		t.Errorf("Expected weight decay 0.0, got %f", config.WeightDecay)
	}
}

func TestNewAdamOptimizerErrors(t *testing.T) {
	if _, err := NewAdamOptimizer(DefaultAdamConfig(), nil); err == nil {
		t.Error("Expected error for no parameters")
	}

	frozen, _ := tensor.NewTensor([]int{2}, nil)
	if _, err := NewAdamOptimizer(DefaultAdamConfig(), []*tensor.Tensor{frozen}); err == nil {
		t.Error("Expected error for parameter without grad")
	}

	cfg := DefaultAdamConfig()
	cfg.Beta1 = 1
	if _, err := NewAdamOptimizer(cfg, []*tensor.Tensor{param(t, 1)}); err == nil {
		t.Error("Expected error for beta1 = 1")
	}
}

func TestAdamFirstStepIsSignScaled(t *testing.T) {
	p := param(t, 1, -2, 0.5)
	cfg := DefaultAdamConfig()
	cfg.LearningRate = 0.1
	adam, err := NewAdamOptimizer(cfg, []*tensor.Tensor{p})
	if err != nil {
		t.Fatalf("NewAdamOptimizer failed: %v", err)
	}

	backwardDot(t, p, 0.5, -3, 0)
	if err := adam.Step(); err != nil {
		t.Fatalf("Step failed: %v", err)
	}

	// after bias correction the first update is lr * g / (|g| + eps)
	want := []float32{0.9, -1.9, 0.5}
	for i := range want {
		if math.Abs(float64(p.Data[i]-want[i])) > 1e-5 {
			t.Errorf("param[%d]: expected %f, got %f", i, want[i], p.Data[i])
		}
	}
	if adam.GetStepCount() != 1 {
		t.Errorf("Expected step count 1, got %d", adam.GetStepCount())
	}
}

func TestAdamMatchesReference(t *testing.T) {
	p := param(t, 0.3, -0.7)
	cfg := AdamConfig{LearningRate: 0.01, Beta1: 0.9, Beta2: 0.999, Epsilon: 1e-8, WeightDecay: 0.1}
	adam, _ := NewAdamOptimizer(cfg, []*tensor.Tensor{p})

	grads := [][]float32{{0.2, -0.1}, {0.4, 0.3}, {-0.5, 0.05}, {0.1, -0.2}}

	ref := []float64{0.3, -0.7}
	var m, v [2]float64
	for step, g := range grads {
		adam.ZeroGrad()
		backwardDot(t, p, g...)
		if err := adam.Step(); err != nil {
			t.Fatalf("Step failed: %v", err)
		}

		n := float64(step + 1)
		for i := range ref {
			gi := float64(g[i]) + 0.1*ref[i]
			m[i] = 0.9*m[i] + 0.1*gi
			v[i] = 0.999*v[i] + 0.001*gi*gi
			mHat := m[i] / (1 - math.Pow(0.9, n))
			vHat := v[i] / (1 - math.Pow(0.999, n))
			ref[i] -= 0.01 * mHat / (math.Sqrt(vHat) + 1e-8)
		}
	}

	for i := range ref {
		if math.Abs(float64(p.Data[i])-ref[i]) > 1e-5 {
			t.Errorf("param[%d]: expected %f, got %f", i, ref[i], p.Data[i])
		}
	}
}

func TestAdamSkipsParametersWithoutGradient(t *testing.T) {
	a := param(t, 1, 2)
	b := param(t, 3)
	adam, _ := NewAdamOptimizer(DefaultAdamConfig(), []*tensor.Tensor{a, b})

	backwardDot(t, a, 1, 1)
	if err := adam.Step(); err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	if b.Data[0] != 3 {
		t.Errorf("Parameter without gradient changed to %f", b.Data[0])
	}
	if a.Data[0] == 1 {
		t.Error("Parameter with gradient was not updated")
	}
}

func TestAdamConvergesOnQuadratic(t *testing.T) {
	p := param(t, 5, -3)
	target, _ := tensor.NewTensor([]int{2}, []float32{1, 2})
	cfg := DefaultAdamConfig()
	cfg.LearningRate = 0.05
	adam, _ := NewAdamOptimizer(cfg, []*tensor.Tensor{p})

	for i := 0; i < 2000; i++ {
		adam.ZeroGrad()
		d := tensor.SubAutograd(p, target)
		if err := tensor.MeanAutograd(tensor.MulAutograd(d, d)).Backward(); err != nil {
			t.Fatalf("Backward failed: %v", err)
		}
		if err := adam.Step(); err != nil {
			t.Fatalf("Step failed: %v", err)
		}
	}

	for i, want := range target.Data {
		if math.Abs(float64(p.Data[i]-want)) > 1e-2 {
			t.Errorf("param[%d]: expected %f, got %f", i, want, p.Data[i])
		}
	}
}

func TestAdamLearningRateAndStats(t *testing.T) {
	var opt Optimizer
	adam, _ := NewAdamOptimizer(DefaultAdamConfig(), []*tensor.Tensor{param(t, 1, 2), param(t, 3)})
	opt = adam

	opt.UpdateLearningRate(0.5)
	if opt.LearningRate() != 0.5 {
		t.Errorf("Expected learning rate 0.5, got %f", opt.LearningRate())
	}

	stats := adam.GetStats()
	if stats.NumParameters != 2 {
		t.Errorf("Expected 2 parameters, got %d", stats.NumParameters)
	}
	if stats.TotalBufferSize != 4*2*3 {
		t.Errorf("Expected 24 bytes of state, got %d", stats.TotalBufferSize)
	}
	if stats.LearningRate != 0.5 {
		t.Errorf("Stats learning rate %f", stats.LearningRate)
	}
}
