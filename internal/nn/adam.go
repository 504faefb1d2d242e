package nn

import "math"

// Adam defaults.
const (
	LearningRate = 0.001
	Beta1        = 0.9
	Beta2        = 0.999
	Epsilon      = 1e-7
)

// Adam holds optimizer hyperparameters and the shared step counter.
type Adam struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64

	step int
}

// NewAdam returns an optimizer with default moments and the given rate.
// A non-positive rate selects LearningRate.
func NewAdam(lr float64) *Adam {
	if lr <= 0 {
		lr = LearningRate
	}
	return &Adam{LearningRate: lr, Beta1: Beta1, Beta2: Beta2, Epsilon: Epsilon}
}

// Gradient is one parameter's accumulated gradient and its moment estimates.
type Gradient struct {
	Value float64
	M1    float64
	M2    float64
}

// Gradients shadows a Matrix with optimizer state.
type Gradients struct {
	Data []Gradient
}

// NewGradients returns zeroed gradients for n parameters.
func NewGradients(n int) Gradients {
	return Gradients{Data: make([]Gradient, n)}
}

// Accumulate adds scale*delta element-wise into the gradient values.
func (g *Gradients) Accumulate(delta []float64, scale float64) {
	for i := range g.Data {
		g.Data[i].Value += delta[i] * scale
	}
}

// Apply performs one bias-corrected update of params and clears the values.
func (g *Gradients) Apply(params []float64, opt *Adam) {
	c1 := 1 - math.Pow(opt.Beta1, float64(opt.step))
	c2 := 1 - math.Pow(opt.Beta2, float64(opt.step))
	for i := range g.Data {
		d := &g.Data[i]
		d.M1 = d.M1*opt.Beta1 + d.Value*(1-opt.Beta1)
		d.M2 = d.M2*opt.Beta2 + d.Value*d.Value*(1-opt.Beta2)
		mHat := d.M1 / c1
		vHat := d.M2 / c2
		params[i] -= opt.LearningRate * mHat / (math.Sqrt(vHat) + opt.Epsilon)
		d.Value = 0
	}
}

// Step advances the shared step counter before a round of Apply calls.
func (opt *Adam) Step() { opt.step++ }
