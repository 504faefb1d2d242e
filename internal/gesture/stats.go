package gesture

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Stats holds per-feature min/max bounds for inputs and labels. Features
// whose range is zero are scaled by 1, so they normalize to 0.
type Stats struct {
	InputMin []float64 `json:"input_min"`
	InputMax []float64 `json:"input_max"`
	LabelMin []float64 `json:"label_min"`
	LabelMax []float64 `json:"label_max"`
}

// ComputeStats computes bounds column-wise. All rows of inputs, and of
// labels, must share a width.
func ComputeStats(inputs, labels [][]float64) Stats {
	s := Stats{}
	s.InputMin, s.InputMax = bounds(inputs)
	s.LabelMin, s.LabelMax = bounds(labels)
	return s
}

func bounds(rows [][]float64) (lo, hi []float64) {
	if len(rows) == 0 {
		return nil, nil
	}
	width := len(rows[0])
	lo = make([]float64, width)
	hi = make([]float64, width)
	for i := range lo {
		lo[i] = math.Inf(1)
		hi[i] = math.Inf(-1)
	}
	for _, r := range rows {
		for i, v := range r {
			lo[i] = math.Min(lo[i], v)
			hi[i] = math.Max(hi[i], v)
		}
	}
	return lo, hi
}

func scale(lo, hi []float64) []float64 {
	r := make([]float64, len(lo))
	floats.SubTo(r, hi, lo)
	for i, v := range r {
		if v == 0 {
			r[i] = 1
		}
	}
	return r
}

// NormalizeInput maps x into [0, 1] with the input bounds.
func (s Stats) NormalizeInput(x []float64) []float64 {
	return apply(x, s.InputMin, scale(s.InputMin, s.InputMax))
}

// NormalizeLabel maps y into [0, 1] with the label bounds.
func (s Stats) NormalizeLabel(y []float64) []float64 {
	return apply(y, s.LabelMin, scale(s.LabelMin, s.LabelMax))
}

// DenormalizeLabel is the inverse of NormalizeLabel.
func (s Stats) DenormalizeLabel(y []float64) []float64 {
	out := make([]float64, len(y))
	floats.MulTo(out, y, scale(s.LabelMin, s.LabelMax))
	floats.Add(out, s.LabelMin)
	return out
}

func apply(v, lo, r []float64) []float64 {
	out := make([]float64, len(v))
	floats.SubTo(out, v, lo)
	floats.Div(out, r)
	return out
}
