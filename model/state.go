package model

import (
	"fmt"
)

// StateEntry is a detached copy of one parameter.
type StateEntry struct {
	Name  string
	Shape []int
	Data  []float32
}

// StateDict returns copies of every parameter in NamedParameters order.
func (n *Network) StateDict() []StateEntry {
	named := n.NamedParameters()
	state := make([]StateEntry, len(named))
	for i, p := range named {
		state[i] = StateEntry{
			Name:  p.Name,
			Shape: append([]int(nil), p.Tensor.Shape...),
			Data:  append([]float32(nil), p.Tensor.Data...),
		}
	}
	return state
}

// LoadStateDict copies values into the network's parameters. Every parameter
// must be present with a matching shape; unknown names are rejected. The
// projection weights are clamped afterwards.
func (n *Network) LoadStateDict(state []StateEntry) error {
	byName := make(map[string]StateEntry, len(state))
	for _, e := range state {
		if _, dup := byName[e.Name]; dup {
			return fmt.Errorf("duplicate parameter %q in state dict", e.Name)
		}
		byName[e.Name] = e
	}

	named := n.NamedParameters()
	if len(byName) != len(named) {
		return fmt.Errorf("state dict has %d parameters, network has %d", len(byName), len(named))
	}

	// validate everything before touching the weights
	for _, p := range named {
		e, ok := byName[p.Name]
		if !ok {
			return fmt.Errorf("state dict is missing parameter %q", p.Name)
		}
		if !equalShape(e.Shape, p.Tensor.Shape) || len(e.Data) != p.Tensor.NumElems {
			return fmt.Errorf("parameter %q: shape %v does not match %v", p.Name, e.Shape, p.Tensor.Shape)
		}
	}
	for _, p := range named {
		copy(p.Tensor.Data, byName[p.Name].Data)
	}

	n.ClampProjectionWeights()
	return nil
}

func equalShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
