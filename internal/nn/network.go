// Package nn is a small dense feed-forward network engine with a trainable
// Fit and a side-effect free Predict.
package nn

import (
	"errors"
	"fmt"
	"math/rand"
)

// ErrShape is returned when an input or target has the wrong width.
var ErrShape = errors.New("shape mismatch")

// Topology describes the layer sizes of a network.
type Topology struct {
	Inputs  int
	Hidden  []int
	Outputs int
	// Softmax normalizes the output layer into a probability vector.
	Softmax bool
}

// Network is a stack of Dense layers. Hidden layers use ReLU; the output
// layer is linear, optionally followed by softmax.
type Network struct {
	topology Topology
	layers   []*Dense
	cost     Cost
}

// NewNetwork builds a network with freshly initialised weights drawn from rnd.
func NewNetwork(topology Topology, rnd *rand.Rand) (*Network, error) {
	if topology.Inputs <= 0 || topology.Outputs <= 0 {
		return nil, fmt.Errorf("%w: inputs %d outputs %d", ErrShape, topology.Inputs, topology.Outputs)
	}
	n := &Network{
		topology: topology,
		cost:     MSECost{},
	}
	inputSize := topology.Inputs
	for _, size := range topology.Hidden {
		if size <= 0 {
			return nil, fmt.Errorf("%w: hidden layer size %d", ErrShape, size)
		}
		n.layers = append(n.layers, NewDense(inputSize, size, ReLUActivation{}).InitWeightsReLU(rnd))
		inputSize = size
	}
	n.layers = append(n.layers, NewDense(inputSize, topology.Outputs, IdentityActivation{}).InitWeightsGlorot(rnd))
	return n, nil
}

// Predict runs one forward pass. It allocates its own buffers and never
// writes to the network.
func (n *Network) Predict(input []float64) ([]float64, error) {
	if len(input) != n.topology.Inputs {
		return nil, fmt.Errorf("%w: input has %d values, want %d", ErrShape, len(input), n.topology.Inputs)
	}
	ws := n.newActivations()
	out := n.forward(ws, input)
	return append([]float64(nil), out...), nil
}

// activations holds the per-layer buffers of one forward/backward pass.
type activations struct {
	z   [][]float64
	a   [][]float64
	out []float64
}

func (n *Network) newActivations() *activations {
	ws := &activations{
		z: make([][]float64, len(n.layers)),
		a: make([][]float64, len(n.layers)),
	}
	for i, l := range n.layers {
		ws.z[i] = make([]float64, l.Outputs())
		ws.a[i] = make([]float64, l.Outputs())
	}
	ws.out = make([]float64, n.topology.Outputs)
	return ws
}

func (n *Network) forward(ws *activations, input []float64) []float64 {
	in := input
	for i, l := range n.layers {
		l.forward(in, ws.z[i], ws.a[i])
		in = ws.a[i]
	}
	last := len(n.layers) - 1
	if n.topology.Softmax {
		Softmax(ws.out, ws.z[last])
	} else {
		copy(ws.out, ws.a[last])
	}
	return ws.out
}

func (n *Network) layerInput(ws *activations, input []float64, i int) []float64 {
	if i == 0 {
		return input
	}
	return ws.a[i-1]
}
