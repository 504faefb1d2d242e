// Package detector provides hand detection interfaces and types for gesture recognition.
package detector

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// Point3D represents a 3D point in space with x, y, z coordinates.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Add returns the point shifted by d.
func (p Point3D) Add(d Point3D) Point3D {
	return Point3D{X: p.X + d.X, Y: p.Y + d.Y, Z: p.Z + d.Z}
}

// Sub returns the point relative to origin o.
func (p Point3D) Sub(o Point3D) Point3D {
	return Point3D{X: p.X - o.X, Y: p.Y - o.Y, Z: p.Z - o.Z}
}

// HandLandmarks represents the 21 hand landmarks detected by MediaPipe.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"` // "Left" or "Right"
	Score      float64               `json:"score"`
}

// Slice returns the landmarks as an ordered slice, wrist first.
func (h *HandLandmarks) Slice() []Point3D {
	if h == nil {
		return nil
	}
	points := make([]Point3D, NumLandmarks)
	copy(points, h.Points[:])
	return points
}

// Translate returns a copy of the hand with every point shifted by d.
func (h HandLandmarks) Translate(d Point3D) HandLandmarks {
	for i := range h.Points {
		h.Points[i] = h.Points[i].Add(d)
	}
	return h
}
