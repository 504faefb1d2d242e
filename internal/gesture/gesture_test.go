package gesture

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/ayusman/handsign/internal/detector"
)

func floatEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestNormalize_Shape(t *testing.T) {
	openPalmHand := detector.OpenPalmLandmarks()
	full := openPalmHand.Slice()
	extra := append(full, detector.Point3D{X: 9, Y: 9, Z: 9})

	tests := []struct {
		name   string
		points []detector.Point3D
	}{
		{"empty", nil},
		{"single", full[:1]},
		{"partial", full[:5]},
		{"full", full},
		{"extra", extra},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.points)
			if len(got) != FeatureLen {
				t.Fatalf("len = %d, want %d", len(got), FeatureLen)
			}
			// Positions past the input are zero padded.
			for i := min(len(tt.points), detector.NumLandmarks) * 3; i < FeatureLen; i++ {
				if got[i] != 0 {
					t.Errorf("feature %d = %f, want 0", i, got[i])
				}
			}
		})
	}
}

func TestNormalize_WristAnchored(t *testing.T) {
	thumbsUpHand := detector.ThumbsUpLandmarks()
	points := thumbsUpHand.Slice()
	got := Normalize(points)

	if got[0] != 0 || got[1] != 0 || got[2] != 0 {
		t.Errorf("wrist features = %v, want zeros", got[:3])
	}
	tip := points[detector.ThumbTip].Sub(points[detector.Wrist])
	i := detector.ThumbTip * 3
	if !floatEqual(got[i], tip.X) || !floatEqual(got[i+1], tip.Y) || !floatEqual(got[i+2], tip.Z) {
		t.Errorf("thumb tip features = %v, want %v", got[i:i+3], tip)
	}
}

func TestNormalize_TranslationInvariant(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	for trial := 0; trial < 50; trial++ {
		var hand detector.HandLandmarks
		for i := range hand.Points {
			hand.Points[i] = detector.Point3D{X: rnd.Float64(), Y: rnd.Float64(), Z: rnd.Float64() - 0.5}
		}
		d := detector.Point3D{X: rnd.NormFloat64(), Y: rnd.NormFloat64(), Z: rnd.NormFloat64()}

		a := Normalize(hand.Slice())
		shifted := hand.Translate(d)
		b := Normalize(shifted.Slice())

		for i := range a {
			if !floatEqual(a[i], b[i]) {
				t.Fatalf("trial %d: feature %d differs after translation by %v: %f vs %f", trial, i, d, a[i], b[i])
			}
		}
	}
}

func TestNewExample_Copies(t *testing.T) {
	openPalmHand := detector.OpenPalmLandmarks()
	points := openPalmHand.Slice()
	label := Label{1, 0}
	e := NewExample(points, label)

	points[3].X = 99
	label[0] = 5
	if e.Landmarks[3].X == 99 || e.Label[0] == 5 {
		t.Error("NewExample kept references to caller slices")
	}
	if len(e.Features) != FeatureLen {
		t.Errorf("features len = %d", len(e.Features))
	}
}

func TestParseLabel(t *testing.T) {
	tests := []struct {
		text    string
		width   int
		want    Label
		wantErr bool
	}{
		{"1,0,0", 3, Label{1, 0, 0}, false},
		{"[1, 0, 0]", 3, Label{1, 0, 0}, false},
		{" 0 1 ", 2, Label{0, 1}, false},
		{"0.5,0.5", 0, Label{0.5, 0.5}, false},
		{"", 2, nil, true},
		{"[]", 2, nil, true},
		{"1,x", 2, nil, true},
		{"1,0", 3, nil, true},
		{"NaN,1", 2, nil, true},
		{"1,Inf", 2, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, err := ParseLabel(tt.text, tt.width)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedLabel) {
					t.Errorf("ParseLabel(%q) error = %v, want ErrMalformedLabel", tt.text, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseLabel(%q) error = %v", tt.text, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseLabel(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestLabel_StringRoundTrip(t *testing.T) {
	l := Label{1, 0, 0.25}
	got, err := ParseLabel(l.String(), 3)
	if err != nil {
		t.Fatalf("ParseLabel() error = %v", err)
	}
	if !got.Equal(l) {
		t.Errorf("round trip = %v, want %v", got, l)
	}
	if !OneHot(1, 3).Equal(Label{0, 1, 0}) {
		t.Errorf("OneHot(1, 3) = %v", OneHot(1, 3))
	}
}

func TestStats(t *testing.T) {
	inputs := [][]float64{{0, 5, 2}, {10, 5, 4}}
	labels := [][]float64{{1, 0}, {0, 1}}
	s := ComputeStats(inputs, labels)

	got := s.NormalizeInput([]float64{5, 5, 3})
	want := []float64{0.5, 0, 0.5}
	for i := range want {
		if !floatEqual(got[i], want[i]) {
			t.Errorf("NormalizeInput()[%d] = %f, want %f", i, got[i], want[i])
		}
	}

	y := []float64{0.25, 0.75}
	back := s.DenormalizeLabel(s.NormalizeLabel(y))
	for i := range y {
		if !floatEqual(back[i], y[i]) {
			t.Errorf("label round trip [%d] = %f, want %f", i, back[i], y[i])
		}
	}
}

func TestStats_ZeroRange(t *testing.T) {
	s := ComputeStats([][]float64{{3, 1}, {3, 2}}, [][]float64{{1}, {1}})

	got := s.NormalizeInput([]float64{3, 2})
	if got[0] != 0 || math.IsNaN(got[0]) {
		t.Errorf("constant feature normalized to %f, want 0", got[0])
	}
	if label := s.DenormalizeLabel([]float64{0}); label[0] != 1 {
		t.Errorf("constant label denormalized to %f, want 1", label[0])
	}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name   string
		scores []float64
		want   Decision
	}{
		{"first match wins", []float64{0.85, 0.9}, Decision{Class: 0, Score: 0.85, Detected: true}},
		{"later match", []float64{0.1, 0.95}, Decision{Class: 1, Score: 0.95, Detected: true}},
		{"threshold inclusive", []float64{0.8, 0.2}, Decision{Class: 0, Score: 0.8, Detected: true}},
		{"none", []float64{0.5, 0.5}, Decision{Class: -1}},
		{"no model", nil, Decision{Class: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Decide(tt.scores, DefaultThreshold); got != tt.want {
				t.Errorf("Decide(%v) = %+v, want %+v", tt.scores, got, tt.want)
			}
		})
	}
}

func TestDecision_Name(t *testing.T) {
	names := []string{"thumbs_up", "open_palm"}
	if got := (Decision{Class: 1, Detected: true}).Name(names); got != "open_palm" {
		t.Errorf("Name() = %q", got)
	}
	if got := (Decision{Class: -1}).Name(names); got != "" {
		t.Errorf("undetected Name() = %q", got)
	}
	if got := (Decision{Class: 5, Detected: true}).Name(names); got != "" {
		t.Errorf("out of range Name() = %q", got)
	}
}
