package gesture

import "github.com/ayusman/handsign/internal/detector"

// FeatureLen is the length of every feature vector: 21 points of x, y, z.
const FeatureLen = detector.NumLandmarks * 3

// Normalize translates every landmark so the wrist (index 0) sits at the
// origin and flattens the result to FeatureLen values. Missing points are
// zero-padded and extra points dropped; an empty set yields all zeros.
//
// The same function feeds collection and inference.
func Normalize(points []detector.Point3D) []float64 {
	features := make([]float64, FeatureLen)
	if len(points) == 0 {
		return features
	}

	anchor := points[detector.Wrist]
	n := min(len(points), detector.NumLandmarks)
	for i := 0; i < n; i++ {
		p := points[i].Sub(anchor)
		features[i*3] = p.X
		features[i*3+1] = p.Y
		features[i*3+2] = p.Z
	}
	return features
}
