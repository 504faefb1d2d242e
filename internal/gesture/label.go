package gesture

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Label is a numeric class vector, usually one-hot.
type Label []float64

// OneHot returns a label of the given width with class set to 1.
func OneHot(class, width int) Label {
	l := make(Label, width)
	if class >= 0 && class < width {
		l[class] = 1
	}
	return l
}

// ParseLabel parses comma or space separated numbers, optionally wrapped in
// brackets ("1,0,0", "[1, 0, 0]", "1 0 0"). A positive width requires
// exactly that many values.
func ParseLabel(text string, width int) (Label, error) {
	trimmed := strings.TrimSpace(text)
	trimmed = strings.TrimPrefix(trimmed, "[")
	trimmed = strings.TrimSuffix(trimmed, "]")

	fields := strings.FieldsFunc(trimmed, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: %q is empty", ErrMalformedLabel, text)
	}

	label := make(Label, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: %q is not a number", ErrMalformedLabel, f)
		}
		label = append(label, v)
	}
	if width > 0 && len(label) != width {
		return nil, fmt.Errorf("%w: got %d values, want %d", ErrMalformedLabel, len(label), width)
	}
	return label, nil
}

// Clone returns a copy of l that shares no memory with it.
func (l Label) Clone() Label {
	if l == nil {
		return nil
	}
	return append(Label(nil), l...)
}

// Equal reports whether l and o have the same values in the same order.
func (l Label) Equal(o Label) bool {
	if len(l) != len(o) {
		return false
	}
	for i := range l {
		if l[i] != o[i] {
			return false
		}
	}
	return true
}

// String formats the label the way ParseLabel reads it.
func (l Label) String() string {
	parts := make([]string, len(l))
	for i, v := range l {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}
