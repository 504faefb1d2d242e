// Package gesture turns hand landmarks into feature vectors, trains the
// gesture classifier on labelled examples and scores live features.
package gesture

import (
	"errors"

	"github.com/ayusman/handsign/internal/detector"
)

var (
	// ErrTraining is returned when a training run cannot produce a model.
	ErrTraining = errors.New("training failed")
	// ErrMalformedLabel is returned when label text cannot be parsed.
	ErrMalformedLabel = errors.New("malformed label")
)

// Example is one labelled observation. Landmarks are kept as detected so
// the dataset can be stored unnormalized; Features is Normalize(Landmarks).
type Example struct {
	Landmarks []detector.Point3D
	Features  []float64
	Label     Label
}

// NewExample copies landmarks and label and computes the features.
func NewExample(landmarks []detector.Point3D, label Label) Example {
	raw := append([]detector.Point3D(nil), landmarks...)
	return Example{
		Landmarks: raw,
		Features:  Normalize(raw),
		Label:     label.Clone(),
	}
}
