package dataset

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/ayusman/handsign/internal/detector"
	"github.com/ayusman/handsign/internal/gesture"
)

// record is the stored form of one example: raw landmarks as [x, y, z]
// triples, wrist first, and the label vector.
type record struct {
	Inputs [][3]float64 `json:"inputs"`
	Labels []float64    `json:"labels"`
}

// Encode serializes examples as a JSON array of records.
func Encode(examples []gesture.Example) ([]byte, error) {
	records := make([]record, len(examples))
	for i, e := range examples {
		r := record{
			Inputs: make([][3]float64, len(e.Landmarks)),
			Labels: []float64(e.Label),
		}
		if r.Labels == nil {
			r.Labels = []float64{}
		}
		for j, p := range e.Landmarks {
			r.Inputs[j] = [3]float64{p.X, p.Y, p.Z}
		}
		records[i] = r
	}
	return json.Marshal(records)
}

// Decode parses Encode's output and recomputes features from the raw
// landmarks.
func Decode(data []byte) ([]gesture.Example, error) {
	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	examples := make([]gesture.Example, len(records))
	for i, r := range records {
		points := make([]detector.Point3D, len(r.Inputs))
		for j, p := range r.Inputs {
			for _, v := range p {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					return nil, fmt.Errorf("%w: example %d point %d is not finite", ErrMalformed, i, j)
				}
			}
			points[j] = detector.Point3D{X: p[0], Y: p[1], Z: p[2]}
		}
		examples[i] = gesture.NewExample(points, gesture.Label(r.Labels))
	}
	return examples, nil
}
