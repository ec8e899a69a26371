package training

import (
	"fmt"

	"github.com/tsawler/go-lfca/tensor"
)

// Loss computes a scalar training objective. The returned tensor is part of
// the autograd graph, so calling Backward on it fills parameter gradients.
type Loss interface {
	Forward(predicted, target *tensor.Tensor) (*tensor.Tensor, error)
	Name() string
}

// L1Loss implements the mean absolute error loss function
type L1Loss struct {
	reduction string // "mean" or "sum"
}

// NewL1Loss creates a new L1 loss function
func NewL1Loss(reduction string) *L1Loss {
	if reduction == "" {
		reduction = "mean"
	}
	return &L1Loss{reduction: reduction}
}

// Forward computes L = (1/N) * sum(|y_pred - y_true|)
func (l1 *L1Loss) Forward(predicted, target *tensor.Tensor) (*tensor.Tensor, error) {
	if len(predicted.Shape) != len(target.Shape) {
		return nil, fmt.Errorf("predicted and target tensors must have the same shape")
	}
	for i, dim := range predicted.Shape {
		if dim != target.Shape[i] {
			return nil, fmt.Errorf("predicted and target tensors must have the same shape")
		}
	}

	loss := tensor.MeanAutograd(tensor.AbsAutograd(tensor.SubAutograd(predicted, target)))

	switch l1.reduction {
	case "mean":
		return loss, nil
	case "sum":
		n, err := tensor.Full([]int{1}, float32(predicted.NumElems))
		if err != nil {
			return nil, err
		}
		return tensor.ScaleAutograd(loss, n), nil
	default:
		return nil, fmt.Errorf("unknown reduction %q", l1.reduction)
	}
}

func (l1 *L1Loss) Name() string {
	return "L1Loss"
}
