package nn

import "math"

// Activation is an element-wise transfer function and its derivative.
type Activation interface {
	Sigma(x float64) float64
	SigmaPrime(x float64) float64
}

type IdentityActivation struct{}

func (IdentityActivation) Sigma(x float64) float64      { return x }
func (IdentityActivation) SigmaPrime(x float64) float64 { return 1 }

type ReLUActivation struct{}

func (ReLUActivation) Sigma(x float64) float64 {
	if x > 0 {
		return x
	}
	return 0
}

func (ReLUActivation) SigmaPrime(x float64) float64 {
	if x > 0 {
		return 1
	}
	return 0
}

type SigmoidActivation struct{}

func (s SigmoidActivation) Sigma(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

func (s SigmoidActivation) SigmaPrime(x float64) float64 {
	y := s.Sigma(x)
	return y * (1 - y)
}

// Softmax writes the normalized exponentials of z into dst.
func Softmax(dst, z []float64) {
	peak := math.Inf(-1)
	for _, v := range z {
		if v > peak {
			peak = v
		}
	}
	var sum float64
	for i, v := range z {
		dst[i] = math.Exp(v - peak)
		sum += dst[i]
	}
	for i := range dst {
		dst[i] /= sum
	}
}

// softmaxBackward maps dL/dp to dL/dz through the softmax Jacobian.
func softmaxBackward(dst, p, grad []float64) {
	var dot float64
	for j := range p {
		dot += grad[j] * p[j]
	}
	for i := range p {
		dst[i] = p[i] * (grad[i] - dot)
	}
}
