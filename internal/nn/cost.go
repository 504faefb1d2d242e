package nn

// Cost measures the error of one predicted value against its target.
type Cost interface {
	Cost(predicted, target float64) float64
	CostPrime(predicted, target float64) float64
}

// MSECost is the squared error; the network averages it over outputs.
type MSECost struct{}

func (MSECost) Cost(predicted, target float64) float64 {
	x := predicted - target
	return x * x
}

func (MSECost) CostPrime(predicted, target float64) float64 {
	return 2 * (predicted - target)
}
