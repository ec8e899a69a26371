package training

import (
	"math"
	"testing"
)

func TestCalculateReconstructionMetrics(t *testing.T) {
	predictions := []float32{0.5, 0.5, 0.25, 1}
	trueValues := []float32{0.5, 0.25, 0.5, 0.5}

	m := CalculateReconstructionMetrics(predictions, trueValues)

	// errors: 0, 0.25, -0.25, 0.5
	if math.Abs(m.MAE-0.25) > 1e-9 {
		t.Errorf("Expected MAE 0.25, got %f", m.MAE)
	}
	wantMSE := (0.0625 + 0.0625 + 0.25) / 4
	if math.Abs(m.MSE-wantMSE) > 1e-9 {
		t.Errorf("Expected MSE %f, got %f", wantMSE, m.MSE)
	}
	if math.Abs(m.RMSE-math.Sqrt(wantMSE)) > 1e-9 {
		t.Errorf("Expected RMSE %f, got %f", math.Sqrt(wantMSE), m.RMSE)
	}
	wantPSNR := 10 * math.Log10(1/wantMSE)
	if math.Abs(m.PSNR-wantPSNR) > 1e-9 {
		t.Errorf("Expected PSNR %f, got %f", wantPSNR, m.PSNR)
	}
}

func TestCalculateReconstructionMetricsEdgeCases(t *testing.T) {
	if m := CalculateReconstructionMetrics(nil, nil); m != (ReconstructionMetrics{}) {
		t.Errorf("Expected zero metrics for empty input, got %+v", m)
	}
	if m := CalculateReconstructionMetrics([]float32{1}, []float32{1, 2}); m != (ReconstructionMetrics{}) {
		t.Errorf("Expected zero metrics for mismatched input, got %+v", m)
	}
	exact := CalculateReconstructionMetrics([]float32{0.1, 0.2}, []float32{0.1, 0.2})
	if !math.IsInf(exact.PSNR, 1) {
		t.Errorf("Expected +Inf PSNR for an exact match, got %f", exact.PSNR)
	}
}

func TestPSNR(t *testing.T) {
	tests := []struct {
		mse  float64
		want float64
	}{
		{1, 0},
		{0.01, 20},
		{0.001, 30},
	}
	for _, tt := range tests {
		if got := PSNR(tt.mse); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("PSNR(%g): expected %f, got %f", tt.mse, tt.want, got)
		}
	}
}

func TestMeanLoss(t *testing.T) {
	if got := MeanLoss([]float64{0.1, 0.2, 0.6}); math.Abs(got-0.3) > 1e-12 {
		t.Errorf("Expected mean 0.3, got %f", got)
	}
	if got := MeanLoss(nil); got != 0 {
		t.Errorf("Expected 0 for no batches, got %f", got)
	}
	if got := MeanLoss([]float64{0.1, math.NaN()}); !math.IsNaN(got) {
		t.Errorf("Expected NaN to propagate, got %f", got)
	}
}
