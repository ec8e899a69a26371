package training

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ReconstructionMetrics holds the error of a reconstruction against its
// ground truth. Intensities are assumed to lie in [0, 1].
type ReconstructionMetrics struct {
	MAE  float64 // Mean Absolute Error
	MSE  float64 // Mean Squared Error
	RMSE float64 // Root Mean Squared Error
	PSNR float64 // Peak signal-to-noise ratio in dB, +Inf for an exact match
}

// CalculateReconstructionMetrics compares two equally sized intensity slices.
// It returns the zero value when the slices are empty or differ in length.
func CalculateReconstructionMetrics(predictions, trueValues []float32) ReconstructionMetrics {
	if len(predictions) == 0 || len(predictions) != len(trueValues) {
		return ReconstructionMetrics{}
	}

	diff := make([]float64, len(predictions))
	for i := range predictions {
		diff[i] = float64(predictions[i]) - float64(trueValues[i])
	}

	n := float64(len(diff))
	mae := floats.Norm(diff, 1) / n
	mse := floats.Dot(diff, diff) / n

	return ReconstructionMetrics{
		MAE:  mae,
		MSE:  mse,
		RMSE: math.Sqrt(mse),
		PSNR: PSNR(mse),
	}
}

// PSNR converts a mean squared error on [0, 1] intensities to decibels.
func PSNR(mse float64) float64 {
	if mse <= 0 {
		return math.Inf(1)
	}
	return 10 * math.Log10(1/mse)
}

// MeanLoss averages per-batch losses. A NaN or Inf batch loss propagates.
func MeanLoss(losses []float64) float64 {
	if len(losses) == 0 {
		return 0
	}
	return stat.Mean(losses, nil)
}
