package tensor

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

func general(t *Tensor) blas32.General {
	return blas32.General{
		Rows:   t.Shape[0],
		Cols:   t.Shape[1],
		Stride: t.Shape[1],
		Data:   t.Data,
	}
}

func transFlag(transpose bool) blas.Transpose {
	if transpose {
		return blas.Trans
	}
	return blas.NoTrans
}

// gemm computes op(a) @ op(b) where op optionally transposes a 2-D tensor.
func gemm(a, b *Tensor, transA, transB bool) (*Tensor, error) {
	if len(a.Shape) != 2 || len(b.Shape) != 2 {
		return nil, fmt.Errorf("matmul requires 2-D tensors, got %v and %v", a.Shape, b.Shape)
	}

	rows, inner := a.Shape[0], a.Shape[1]
	if transA {
		rows, inner = inner, rows
	}
	innerB, cols := b.Shape[0], b.Shape[1]
	if transB {
		innerB, cols = cols, innerB
	}
	if inner != innerB {
		return nil, fmt.Errorf("incompatible dimensions for matmul: %v x %v (transA=%t, transB=%t)",
			a.Shape, b.Shape, transA, transB)
	}

	result := mustZeros([]int{rows, cols})
	blas32.Gemm(transFlag(transA), transFlag(transB), 1, general(a), general(b), 0, general(result))
	return result, nil
}

func MatMul(t1, t2 *Tensor) (*Tensor, error) {
	return gemm(t1, t2, false, false)
}

// Transpose swaps the two axes of a 2-D tensor.
func Transpose(t *Tensor) (*Tensor, error) {
	if len(t.Shape) != 2 {
		return nil, fmt.Errorf("transpose requires a 2-D tensor, got %v", t.Shape)
	}
	rows, cols := t.Shape[0], t.Shape[1]
	result := mustZeros([]int{cols, rows})
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			result.Data[j*rows+i] = t.Data[i*cols+j]
		}
	}
	return result, nil
}

// Reshape returns a tensor sharing t's data with a new shape. The result is
// not connected to t's autograd graph.
func Reshape(t *Tensor, newShape []int) (*Tensor, error) {
	if err := validateShape(newShape); err != nil {
		return nil, err
	}
	if calculateNumElements(newShape) != t.NumElems {
		return nil, fmt.Errorf("cannot reshape tensor of %d elements to %v", t.NumElems, newShape)
	}
	return &Tensor{
		Shape:    append([]int(nil), newShape...),
		Strides:  calculateStrides(newShape),
		Device:   t.Device,
		Data:     t.Data,
		NumElems: t.NumElems,
	}, nil
}
