package nn

import (
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// Dense is a fully connected layer. Weights are stored one row per output.
type Dense struct {
	activation Activation
	weights    Matrix
	biases     []float64
	wGradients Gradients
	bGradients Gradients
}

func NewDense(inputSize, outputSize int, activation Activation) *Dense {
	return &Dense{
		activation: activation,
		weights:    NewMatrix(outputSize, inputSize),
		biases:     make([]float64, outputSize),
		wGradients: NewGradients(outputSize * inputSize),
		bGradients: NewGradients(outputSize),
	}
}

func (l *Dense) Inputs() int  { return l.weights.Cols }
func (l *Dense) Outputs() int { return l.weights.Rows }

// InitWeightsReLU uses He initialisation.
func (l *Dense) InitWeightsReLU(rnd *rand.Rand) *Dense {
	InitUniform(rnd, l.weights.Data, 2.0/float64(l.weights.Cols))
	return l
}

// InitWeightsGlorot suits sigmoid, identity and softmax outputs.
func (l *Dense) InitWeightsGlorot(rnd *rand.Rand) *Dense {
	InitUniform(rnd, l.weights.Data, 2.0/float64(l.weights.Cols+l.weights.Rows))
	return l
}

// forward writes pre-activations into z and activations into a.
func (l *Dense) forward(input, z, a []float64) {
	for o := range z {
		z[o] = l.biases[o] + floats.Dot(l.weights.Row(o), input)
		a[o] = l.activation.Sigma(z[o])
	}
}

// backward accumulates parameter gradients for delta (dL/dz) into wGrad and
// bGrad, and writes dL/dinput into inErr when it is non-nil.
func (l *Dense) backward(input, delta, inErr, wGrad, bGrad []float64) {
	cols := l.weights.Cols
	if inErr != nil {
		for i := range inErr {
			inErr[i] = 0
		}
	}
	for o, d := range delta {
		if d == 0 {
			continue
		}
		bGrad[o] += d
		floats.AddScaled(wGrad[o*cols:(o+1)*cols], d, input)
		if inErr != nil {
			floats.AddScaled(inErr, d, l.weights.Row(o))
		}
	}
}

func (l *Dense) applyGradients(opt *Adam) {
	l.wGradients.Apply(l.weights.Data, opt)
	l.bGradients.Apply(l.biases, opt)
}
