package nn

import (
	"math"
	"math/rand"
)

// Matrix is a dense row-major matrix.
type Matrix struct {
	Data []float64
	Rows int
	Cols int
}

func NewMatrix(rows, cols int) Matrix {
	return Matrix{Data: make([]float64, rows*cols), Rows: rows, Cols: cols}
}

// Row returns row i as a view into Data.
func (m *Matrix) Row(i int) []float64 {
	return m.Data[i*m.Cols : (i+1)*m.Cols]
}

func (m *Matrix) Clone() Matrix {
	return Matrix{Data: append([]float64(nil), m.Data...), Rows: m.Rows, Cols: m.Cols}
}

// InitUniform fills data with zero-mean uniform values of the given variance.
func InitUniform(rnd *rand.Rand, data []float64, variance float64) {
	const uniformVariance = 1.0 / 12
	scale := math.Sqrt(variance / uniformVariance)
	for i := range data {
		data[i] = (rnd.Float64() - 0.5) * scale
	}
}
