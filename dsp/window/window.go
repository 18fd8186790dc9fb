// Package window generates the taper functions used for grain extraction and
// frame analysis.
package window

import (
	"math"

	"github.com/cwbudde/algo-vecmath"
)

// Type identifies a window function.
type Type int

const (
	TypeRectangular Type = iota
	TypeHann
	TypeHamming
	TypeBlackman
)

// Generate returns the window coefficients for the given type and length.
// The symmetric form is used: w[0] = w[length-1] for the tapered types.
func Generate(t Type, length int) []float64 {
	if length <= 0 {
		return nil
	}

	out := make([]float64, length)
	if length == 1 {
		out[0] = 1
		return out
	}

	n := float64(length - 1)
	for i := range out {
		x := float64(i) / n
		out[i] = eval(t, x)
	}

	return out
}

// Apply multiplies buf in-place by the selected window.
func Apply(t Type, buf []float64) {
	if len(buf) == 0 {
		return
	}

	coeffs := Generate(t, len(buf))
	vecmath.MulBlockInPlace(buf, coeffs)
}

// ApplyCoefficients writes samples*coeffs into dst. All slices must share the
// same length; mismatches leave dst untouched.
func ApplyCoefficients(dst, samples, coeffs []float64) {
	if len(dst) != len(samples) || len(samples) != len(coeffs) {
		return
	}

	vecmath.MulBlock(dst, samples, coeffs)
}

func eval(t Type, x float64) float64 {
	switch t {
	case TypeHann:
		return 0.5 - 0.5*math.Cos(2*math.Pi*x)
	case TypeHamming:
		return 0.54 - 0.46*math.Cos(2*math.Pi*x)
	case TypeBlackman:
		return 0.42 - 0.5*math.Cos(2*math.Pi*x) + 0.08*math.Cos(4*math.Pi*x)
	default:
		return 1
	}
}
