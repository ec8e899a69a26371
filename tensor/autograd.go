package tensor

import (
	"fmt"
)

// Backward propagates gradients from a scalar tensor to every tensor in its
// graph that requires them. Gradients of leaf tensors accumulate across calls
// until ZeroGrad is called.
func (t *Tensor) Backward() error {
	if t.NumElems != 1 {
		return fmt.Errorf("backward requires a scalar tensor, got shape %v", t.Shape)
	}
	if !t.requiresGrad {
		return fmt.Errorf("tensor does not require grad")
	}

	order := topologicalOrder(t)
	seed, err := Ones(t.Shape)
	if err != nil {
		return err
	}
	t.accumulateGrad(seed)

	// order lists inputs before the tensors built from them
	for i := len(order) - 1; i >= 0; i-- {
		node := order[i]
		if node.creator == nil || node.grad == nil {
			continue
		}
		inputs := node.creator.Inputs()
		grads := node.creator.Backward(node.grad)
		for j, in := range inputs {
			if in.requiresGrad && grads[j] != nil {
				in.accumulateGrad(grads[j])
			}
		}
		// Interior gradients are not needed once propagated.
		node.grad = nil
	}
	return nil
}

func topologicalOrder(root *Tensor) []*Tensor {
	var order []*Tensor
	visited := make(map[*Tensor]bool)

	var visit func(t *Tensor)
	visit = func(t *Tensor) {
		if visited[t] {
			return
		}
		visited[t] = true
		if t.creator != nil {
			for _, in := range t.creator.Inputs() {
				if in.requiresGrad {
					visit(in)
				}
			}
		}
		order = append(order, t)
	}
	visit(root)
	return order
}

func (t *Tensor) accumulateGrad(g *Tensor) {
	if t.grad == nil {
		t.grad = mustZeros(t.Shape)
	}
	for i, v := range g.Data {
		t.grad.Data[i] += v
	}
}

// ZeroGrad clears the accumulated gradients of the given tensors.
func ZeroGrad(tensors []*Tensor) {
	for _, t := range tensors {
		if t.requiresGrad && t.grad != nil {
			for i := range t.grad.Data {
				t.grad.Data[i] = 0
			}
		}
	}
}

// Detach returns a tensor sharing t's data that is cut from the graph.
func (t *Tensor) Detach() *Tensor {
	return &Tensor{
		Shape:    t.Shape,
		Strides:  t.Strides,
		Device:   t.Device,
		Data:     t.Data,
		NumElems: t.NumElems,
	}
}

func finish(op Operation, result *Tensor, inputs ...*Tensor) *Tensor {
	for _, in := range inputs {
		if in.requiresGrad {
			result.requiresGrad = true
			result.creator = op
			break
		}
	}
	return result
}

// AddOp implements the Operation interface for elementwise addition
type AddOp struct {
	inputs []*Tensor
}

func (op *AddOp) Inputs() []*Tensor { return op.inputs }

func (op *AddOp) Forward(inputs ...*Tensor) *Tensor {
	if len(inputs) != 2 {
		panic("AddOp requires exactly 2 inputs")
	}
	op.inputs = inputs
	result, err := Add(inputs[0], inputs[1])
	if err != nil {
		panic(fmt.Sprintf("Forward pass failed: %v", err))
	}
	return finish(op, result, inputs...)
}

func (op *AddOp) Backward(gradOut *Tensor) []*Tensor {
	// ∂(a + b)/∂a = 1, ∂(a + b)/∂b = 1
	return []*Tensor{gradOut, gradOut}
}

// SubOp implements the Operation interface for elementwise subtraction
type SubOp struct {
	inputs []*Tensor
}

func (op *SubOp) Inputs() []*Tensor { return op.inputs }

func (op *SubOp) Forward(inputs ...*Tensor) *Tensor {
	if len(inputs) != 2 {
		panic("SubOp requires exactly 2 inputs")
	}
	op.inputs = inputs
	result, err := Sub(inputs[0], inputs[1])
	if err != nil {
		panic(fmt.Sprintf("Forward pass failed: %v", err))
	}
	return finish(op, result, inputs...)
}

func (op *SubOp) Backward(gradOut *Tensor) []*Tensor {
	// ∂(a - b)/∂a = 1, ∂(a - b)/∂b = -1
	return []*Tensor{gradOut, Scale(gradOut, -1)}
}

// MulOp implements the Operation interface for elementwise multiplication
type MulOp struct {
	inputs []*Tensor
}

func (op *MulOp) Inputs() []*Tensor { return op.inputs }

func (op *MulOp) Forward(inputs ...*Tensor) *Tensor {
	if len(inputs) != 2 {
		panic("MulOp requires exactly 2 inputs")
	}
	op.inputs = inputs
	result, err := Mul(inputs[0], inputs[1])
	if err != nil {
		panic(fmt.Sprintf("Forward pass failed: %v", err))
	}
	return finish(op, result, inputs...)
}

func (op *MulOp) Backward(gradOut *Tensor) []*Tensor {
	a, b := op.inputs[0], op.inputs[1]
	// ∂(a * b)/∂a = b, ∂(a * b)/∂b = a
	gradA, err := Mul(gradOut, b)
	if err != nil {
		panic(fmt.Sprintf("Backward pass failed for gradA: %v", err))
	}
	gradB, err := Mul(gradOut, a)
	if err != nil {
		panic(fmt.Sprintf("Backward pass failed for gradB: %v", err))
	}
	return []*Tensor{gradA, gradB}
}

// MatMulOp implements the Operation interface for 2-D matrix multiplication
type MatMulOp struct {
	inputs []*Tensor
}

func (op *MatMulOp) Inputs() []*Tensor { return op.inputs }

func (op *MatMulOp) Forward(inputs ...*Tensor) *Tensor {
	if len(inputs) != 2 {
		panic("MatMulOp requires exactly 2 inputs")
	}
	op.inputs = inputs
	result, err := MatMul(inputs[0], inputs[1])
	if err != nil {
		panic(fmt.Sprintf("Forward pass failed: %v", err))
	}
	return finish(op, result, inputs...)
}

func (op *MatMulOp) Backward(gradOut *Tensor) []*Tensor {
	a, b := op.inputs[0], op.inputs[1]

	// ∂(A @ B)/∂A = gradOut @ B^T, ∂(A @ B)/∂B = A^T @ gradOut
	var gradA, gradB *Tensor
	var err error
	if a.requiresGrad {
		gradA, err = gemm(gradOut, b, false, true)
		if err != nil {
			panic(fmt.Sprintf("Backward pass failed for gradA: %v", err))
		}
	}
	if b.requiresGrad {
		gradB, err = gemm(a, gradOut, true, false)
		if err != nil {
			panic(fmt.Sprintf("Backward pass failed for gradB: %v", err))
		}
	}
	return []*Tensor{gradA, gradB}
}

// TransposeOp implements the Operation interface for 2-D transposition
type TransposeOp struct {
	inputs []*Tensor
}

func (op *TransposeOp) Inputs() []*Tensor { return op.inputs }

func (op *TransposeOp) Forward(inputs ...*Tensor) *Tensor {
	if len(inputs) != 1 {
		panic("TransposeOp requires exactly 1 input")
	}
	op.inputs = inputs
	result, err := Transpose(inputs[0])
	if err != nil {
		panic(fmt.Sprintf("Forward pass failed: %v", err))
	}
	return finish(op, result, inputs...)
}

func (op *TransposeOp) Backward(gradOut *Tensor) []*Tensor {
	grad, err := Transpose(gradOut)
	if err != nil {
		panic(fmt.Sprintf("Backward pass failed: %v", err))
	}
	return []*Tensor{grad}
}

// ReLUOp implements the Operation interface for ReLU activation
type ReLUOp struct {
	inputs []*Tensor
}

func (op *ReLUOp) Inputs() []*Tensor { return op.inputs }

func (op *ReLUOp) Forward(inputs ...*Tensor) *Tensor {
	if len(inputs) != 1 {
		panic("ReLUOp requires exactly 1 input")
	}
	op.inputs = inputs
	return finish(op, ReLU(inputs[0]), inputs...)
}

func (op *ReLUOp) Backward(gradOut *Tensor) []*Tensor {
	a := op.inputs[0]

	// ∂ReLU(x)/∂x = 1 if x > 0, else 0
	grad := mustZeros(gradOut.Shape)
	for i, v := range a.Data {
		if v > 0 {
			grad.Data[i] = gradOut.Data[i]
		}
	}
	return []*Tensor{grad}
}

// AbsOp implements the Operation interface for elementwise absolute value
type AbsOp struct {
	inputs []*Tensor
}

func (op *AbsOp) Inputs() []*Tensor { return op.inputs }

func (op *AbsOp) Forward(inputs ...*Tensor) *Tensor {
	if len(inputs) != 1 {
		panic("AbsOp requires exactly 1 input")
	}
	op.inputs = inputs
	return finish(op, Abs(inputs[0]), inputs...)
}

func (op *AbsOp) Backward(gradOut *Tensor) []*Tensor {
	a := op.inputs[0]

	// ∂|x|/∂x = sign(x), with sign(0) = 0
	grad := mustZeros(gradOut.Shape)
	for i, v := range a.Data {
		switch {
		case v > 0:
			grad.Data[i] = gradOut.Data[i]
		case v < 0:
			grad.Data[i] = -gradOut.Data[i]
		}
	}
	return []*Tensor{grad}
}

// MeanOp implements the Operation interface for a full reduction to a scalar
type MeanOp struct {
	inputs []*Tensor
}

func (op *MeanOp) Inputs() []*Tensor { return op.inputs }

func (op *MeanOp) Forward(inputs ...*Tensor) *Tensor {
	if len(inputs) != 1 {
		panic("MeanOp requires exactly 1 input")
	}
	op.inputs = inputs
	result := mustZeros([]int{1})
	result.Data[0] = float32(Mean(inputs[0]))
	return finish(op, result, inputs...)
}

func (op *MeanOp) Backward(gradOut *Tensor) []*Tensor {
	a := op.inputs[0]
	grad, err := Full(a.Shape, gradOut.Data[0]/float32(a.NumElems))
	if err != nil {
		panic(fmt.Sprintf("Backward pass failed: %v", err))
	}
	return []*Tensor{grad}
}

// AddBiasOp adds a bias vector of shape [cols] to every row of a [rows, cols] matrix
type AddBiasOp struct {
	inputs []*Tensor
}

func (op *AddBiasOp) Inputs() []*Tensor { return op.inputs }

func (op *AddBiasOp) Forward(inputs ...*Tensor) *Tensor {
	if len(inputs) != 2 {
		panic("AddBiasOp requires exactly 2 inputs")
	}
	a, bias := inputs[0], inputs[1]
	if len(a.Shape) != 2 || bias.NumElems != a.Shape[1] {
		panic(fmt.Sprintf("AddBiasOp shape mismatch: %v + %v", a.Shape, bias.Shape))
	}
	op.inputs = inputs

	cols := a.Shape[1]
	result := mustZeros(a.Shape)
	for i, v := range a.Data {
		result.Data[i] = v + bias.Data[i%cols]
	}
	return finish(op, result, inputs...)
}

func (op *AddBiasOp) Backward(gradOut *Tensor) []*Tensor {
	bias := op.inputs[1]
	cols := bias.NumElems

	// The bias gradient sums over the broadcast row dimension.
	gradBias := mustZeros(bias.Shape)
	for i, v := range gradOut.Data {
		gradBias.Data[i%cols] += v
	}
	return []*Tensor{gradOut, gradBias}
}

// ScaleOp multiplies a tensor by a learnable scalar of shape [1]
type ScaleOp struct {
	inputs []*Tensor
}

func (op *ScaleOp) Inputs() []*Tensor { return op.inputs }

func (op *ScaleOp) Forward(inputs ...*Tensor) *Tensor {
	if len(inputs) != 2 {
		panic("ScaleOp requires exactly 2 inputs")
	}
	if inputs[1].NumElems != 1 {
		panic(fmt.Sprintf("ScaleOp requires a scalar factor, got shape %v", inputs[1].Shape))
	}
	op.inputs = inputs
	return finish(op, Scale(inputs[0], inputs[1].Data[0]), inputs...)
}

func (op *ScaleOp) Backward(gradOut *Tensor) []*Tensor {
	a, s := op.inputs[0], op.inputs[1]

	gradS := mustZeros(s.Shape)
	var sum float64
	for i, v := range gradOut.Data {
		sum += float64(v) * float64(a.Data[i])
	}
	gradS.Data[0] = float32(sum)
	return []*Tensor{Scale(gradOut, s.Data[0]), gradS}
}

// GatherOp builds a tensor whose element i is input element index[i]. It is
// used for layout changes such as permuting light-field axes.
type GatherOp struct {
	inputs []*Tensor
	index  []int
	shape  []int
}

// NewGatherOp creates a gather with a fixed index map and output shape.
func NewGatherOp(index []int, shape []int) *GatherOp {
	return &GatherOp{index: index, shape: shape}
}

func (op *GatherOp) Inputs() []*Tensor { return op.inputs }

func (op *GatherOp) Forward(inputs ...*Tensor) *Tensor {
	if len(inputs) != 1 {
		panic("GatherOp requires exactly 1 input")
	}
	if calculateNumElements(op.shape) != len(op.index) {
		panic(fmt.Sprintf("GatherOp index length %d does not match shape %v", len(op.index), op.shape))
	}
	a := inputs[0]
	op.inputs = inputs

	result := mustZeros(op.shape)
	for i, src := range op.index {
		result.Data[i] = a.Data[src]
	}
	return finish(op, result, inputs...)
}

func (op *GatherOp) Backward(gradOut *Tensor) []*Tensor {
	a := op.inputs[0]
	grad := mustZeros(a.Shape)
	for i, src := range op.index {
		grad.Data[src] += gradOut.Data[i]
	}
	return []*Tensor{grad}
}

// High-level autograd functions that create and execute operations

// AddAutograd performs addition with automatic differentiation
func AddAutograd(a, b *Tensor) *Tensor {
	op := &AddOp{}
	return op.Forward(a, b)
}

// SubAutograd performs subtraction with automatic differentiation
func SubAutograd(a, b *Tensor) *Tensor {
	op := &SubOp{}
	return op.Forward(a, b)
}

// MulAutograd performs multiplication with automatic differentiation
func MulAutograd(a, b *Tensor) *Tensor {
	op := &MulOp{}
	return op.Forward(a, b)
}

// MatMulAutograd performs matrix multiplication with automatic differentiation
func MatMulAutograd(a, b *Tensor) *Tensor {
	op := &MatMulOp{}
	return op.Forward(a, b)
}

// TransposeAutograd transposes a matrix with automatic differentiation
func TransposeAutograd(a *Tensor) *Tensor {
	op := &TransposeOp{}
	return op.Forward(a)
}

// ReLUAutograd performs ReLU activation with automatic differentiation
func ReLUAutograd(a *Tensor) *Tensor {
	op := &ReLUOp{}
	return op.Forward(a)
}

// AbsAutograd takes the elementwise absolute value with automatic differentiation
func AbsAutograd(a *Tensor) *Tensor {
	op := &AbsOp{}
	return op.Forward(a)
}

// MeanAutograd reduces to the mean with automatic differentiation
func MeanAutograd(a *Tensor) *Tensor {
	op := &MeanOp{}
	return op.Forward(a)
}

// AddBiasAutograd adds a row bias with automatic differentiation
func AddBiasAutograd(a, bias *Tensor) *Tensor {
	op := &AddBiasOp{}
	return op.Forward(a, bias)
}

// ScaleAutograd multiplies by a scalar tensor with automatic differentiation
func ScaleAutograd(a, s *Tensor) *Tensor {
	op := &ScaleOp{}
	return op.Forward(a, s)
}

// GatherAutograd gathers elements by index with automatic differentiation
func GatherAutograd(a *Tensor, index []int, shape []int) *Tensor {
	op := NewGatherOp(index, shape)
	return op.Forward(a)
}
