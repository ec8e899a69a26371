// Package model implements the light-field compressed-sensing reconstruction
// network: a learned measurement matrix (proj_init) followed by an unrolled
// sequence of gradient-projection stages with a small learned refinement.
package model

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/tsawler/go-lfca/tensor"
)

// Options fix the geometry of a Network.
type Options struct {
	AngResolution  int
	ChannelNum     int
	MeasurementNum int
	StageNum       int
}

// NamedParameter pairs a learnable tensor with its state-dict key.
type NamedParameter struct {
	Name   string
	Tensor *tensor.Tensor
}

type stage struct {
	step *tensor.Tensor // [1]
	fc1W *tensor.Tensor // [A, H]
	fc1B *tensor.Tensor // [H]
	fc2W *tensor.Tensor // [H, A]
}

// Network reconstructs light fields of shape [B, u, v, c, x, y]. Each spatial
// pixel's angular vector of A = u*v samples is compressed to M measurements
// and reconstructed independently.
type Network struct {
	opts Options

	// projInit is the measurement matrix [A, M]; its elements are kept in [0, 1].
	projInit *tensor.Tensor
	// projBack maps measurements to an initial estimate [M, A].
	projBack *tensor.Tensor
	stages   []stage
}

// New builds a network with weights drawn from rng. The projection weights
// are clamped to [0, 1] before New returns.
func New(opts Options, rng *rand.Rand) (*Network, error) {
	if opts.AngResolution <= 0 || opts.ChannelNum <= 0 || opts.MeasurementNum <= 0 {
		return nil, fmt.Errorf("invalid network geometry: %+v", opts)
	}
	if opts.StageNum < 0 {
		return nil, fmt.Errorf("stage count must not be negative, got %d", opts.StageNum)
	}

	a := opts.AngResolution * opts.AngResolution
	m := opts.MeasurementNum
	h := 2 * a

	n := &Network{opts: opts}
	var err error
	if n.projInit, err = tensor.Uniform([]int{a, m}, 0, 1, rng); err != nil {
		return nil, err
	}
	if n.projBack, err = xavier(a, m, []int{m, a}, rng); err != nil {
		return nil, err
	}

	for i := 0; i < opts.StageNum; i++ {
		var s stage
		if s.step, err = tensor.Full([]int{1}, 1/float32(a)); err != nil {
			return nil, err
		}
		if s.fc1W, err = xavier(a, h, []int{a, h}, rng); err != nil {
			return nil, err
		}
		if s.fc1B, err = tensor.Zeros([]int{h}); err != nil {
			return nil, err
		}
		if s.fc2W, err = xavier(h, a, []int{h, a}, rng); err != nil {
			return nil, err
		}
		// start each refinement close to the identity
		for j := range s.fc2W.Data {
			s.fc2W.Data[j] *= 0.1
		}
		n.stages = append(n.stages, s)
	}

	for _, p := range n.Parameters() {
		p.SetRequiresGrad(true)
	}
	n.ClampProjectionWeights()
	return n, nil
}

func xavier(fanIn, fanOut int, shape []int, rng *rand.Rand) (*tensor.Tensor, error) {
	limit := float32(math.Sqrt(6 / float64(fanIn+fanOut)))
	return tensor.Uniform(shape, -limit, limit, rng)
}

// Options returns the geometry the network was built with.
func (n *Network) Options() Options {
	return n.opts
}

// NamedParameters lists every learnable tensor in a fixed order.
func (n *Network) NamedParameters() []NamedParameter {
	params := []NamedParameter{
		{"proj_init.weight", n.projInit},
		{"proj_back.weight", n.projBack},
	}
	for i, s := range n.stages {
		prefix := fmt.Sprintf("stages.%d.", i)
		params = append(params,
			NamedParameter{prefix + "step", s.step},
			NamedParameter{prefix + "fc1.weight", s.fc1W},
			NamedParameter{prefix + "fc1.bias", s.fc1B},
			NamedParameter{prefix + "fc2.weight", s.fc2W},
		)
	}
	return params
}

// Parameters returns the learnable tensors in NamedParameters order.
func (n *Network) Parameters() []*tensor.Tensor {
	named := n.NamedParameters()
	params := make([]*tensor.Tensor, len(named))
	for i, p := range named {
		params[i] = p.Tensor
	}
	return params
}

// NumParameters counts the trainable scalars.
func (n *Network) NumParameters() int {
	total := 0
	for _, p := range n.Parameters() {
		if p.RequiresGrad() {
			total += p.NumElems
		}
	}
	return total
}

// ProjectionWeights returns the live measurement matrix [A, M].
func (n *Network) ProjectionWeights() *tensor.Tensor {
	return n.projInit
}

// ClampProjectionWeights forces every measurement weight into [0, 1]. It must
// be called after each optimizer step.
func (n *Network) ClampProjectionWeights() {
	tensor.Clamp(n.projInit, 0, 1)
}

// Forward reconstructs lf, shaped [B, u, v, c, x, y], from its own measurements.
func (n *Network) Forward(lf *tensor.Tensor) (*tensor.Tensor, error) {
	layout, err := n.layoutFor(lf.Shape)
	if err != nil {
		return nil, err
	}

	x := tensor.GatherAutograd(lf, layout.toRows, []int{layout.rows, layout.ang})
	y := tensor.MatMulAutograd(x, n.projInit)
	est := tensor.MatMulAutograd(y, n.projBack)
	projT := tensor.TransposeAutograd(n.projInit)

	for _, s := range n.stages {
		residual := tensor.SubAutograd(tensor.MatMulAutograd(est, n.projInit), y)
		grad := tensor.MatMulAutograd(residual, projT)
		est = tensor.SubAutograd(est, tensor.ScaleAutograd(grad, s.step))

		hidden := tensor.ReLUAutograd(tensor.AddBiasAutograd(tensor.MatMulAutograd(est, s.fc1W), s.fc1B))
		est = tensor.AddAutograd(est, tensor.MatMulAutograd(hidden, s.fc2W))
	}

	return tensor.GatherAutograd(est, layout.fromRows, lf.Shape), nil
}

// layout maps between the light-field tensor and the [rows, A] matrix of
// per-pixel angular vectors.
type layout struct {
	rows, ang int
	toRows    []int
	fromRows  []int
}

func (n *Network) layoutFor(shape []int) (*layout, error) {
	if len(shape) != 6 {
		return nil, fmt.Errorf("expected light field of shape [B, u, v, c, x, y], got %v", shape)
	}
	b, u, v, c, xs, ys := shape[0], shape[1], shape[2], shape[3], shape[4], shape[5]
	if u != n.opts.AngResolution || v != n.opts.AngResolution {
		return nil, fmt.Errorf("angular extent %dx%d does not match network resolution %d", u, v, n.opts.AngResolution)
	}
	if c != n.opts.ChannelNum {
		return nil, fmt.Errorf("light field has %d channels, network expects %d", c, n.opts.ChannelNum)
	}

	l := &layout{rows: b * c * xs * ys, ang: u * v}
	l.toRows = make([]int, l.rows*l.ang)
	l.fromRows = make([]int, l.rows*l.ang)
	for bi := 0; bi < b; bi++ {
		for ui := 0; ui < u; ui++ {
			for vi := 0; vi < v; vi++ {
				for ci := 0; ci < c; ci++ {
					for xi := 0; xi < xs; xi++ {
						for yi := 0; yi < ys; yi++ {
							lfIndex := ((((bi*u+ui)*v+vi)*c+ci)*xs+xi)*ys + yi
							row := ((bi*c+ci)*xs+xi)*ys + yi
							rowIndex := row*l.ang + ui*v + vi
							l.toRows[rowIndex] = lfIndex
							l.fromRows[lfIndex] = rowIndex
						}
					}
				}
			}
		}
	}
	return l, nil
}
