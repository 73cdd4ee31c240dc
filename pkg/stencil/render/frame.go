package render

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Length is an ODF length such as "4.5cm" or "1.2in".
type Length struct {
	Value float64
	Unit  string
}

// centimeters per unit
var unitSizes = map[string]float64{
	"cm": 1,
	"mm": 0.1,
	"in": 2.54,
	"pt": 2.54 / 72,
	"pc": 2.54 / 6,
	"px": 2.54 / 96,
}

// ParseLength parses a number followed by one of cm, mm, in, pt, pc or px.
func ParseLength(s string) (Length, error) {
	s = strings.TrimSpace(s)
	i := len(s)
	for i > 0 && (s[i-1] < '0' || s[i-1] > '9') && s[i-1] != '.' {
		i--
	}
	unit := strings.ToLower(s[i:])
	if _, ok := unitSizes[unit]; !ok {
		return Length{}, fmt.Errorf("invalid length %q: unknown unit %q", s, unit)
	}
	v, err := strconv.ParseFloat(s[:i], 64)
	if err != nil {
		return Length{}, fmt.Errorf("invalid length %q: %w", s, err)
	}
	return Length{Value: v, Unit: unit}, nil
}

// In converts l to unit.
func (l Length) In(unit string) Length {
	if unit == l.Unit {
		return l
	}
	from, ok1 := unitSizes[l.Unit]
	to, ok2 := unitSizes[unit]
	if !ok1 || !ok2 {
		return l
	}
	return Length{Value: l.Value * from / to, Unit: unit}
}

// String formats l with at most four decimals, rounding toward zero so a
// fitted frame never grows past its bounds.
func (l Length) String() string {
	v := math.Floor(l.Value*1e4) / 1e4
	return strconv.FormatFloat(v, 'f', -1, 64) + l.Unit
}

// FitFrame scales an image of imgWidth x imgHeight pixels into a frame of
// width x height while keeping the image aspect ratio:
//
//	scale = min(width/imgWidth, height/imgHeight)
//
// The results use the units of the inputs and never exceed them.
func FitFrame(width, height Length, imgWidth, imgHeight int) (Length, Length, error) {
	if imgWidth <= 0 || imgHeight <= 0 {
		return width, height, fmt.Errorf("invalid image size %dx%d", imgWidth, imgHeight)
	}
	if width.Value <= 0 || height.Value <= 0 {
		return width, height, fmt.Errorf("invalid frame size %s x %s", width, height)
	}
	h := height.In(width.Unit)
	scale := math.Min(width.Value/float64(imgWidth), h.Value/float64(imgHeight))
	outW := Length{Value: float64(imgWidth) * scale, Unit: width.Unit}
	outH := Length{Value: float64(imgHeight) * scale, Unit: width.Unit}.In(height.Unit)
	return outW, outH, nil
}
