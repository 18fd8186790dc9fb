package core

import "math"

const defaultEpsilon = 1e-12

// Clamp limits value to the inclusive range [min, max].
func Clamp(value, min, max float64) float64 {
	if min > max {
		min, max = max, min
	}

	if value < min {
		return min
	}

	if value > max {
		return max
	}

	return value
}

// NearlyEqual reports whether a and b are equal within eps.
func NearlyEqual(a, b, eps float64) bool {
	if eps <= 0 {
		eps = defaultEpsilon
	}

	diff := math.Abs(a - b)
	if diff <= eps {
		return true
	}

	largest := math.Max(math.Abs(a), math.Abs(b))
	if largest == 0 {
		return diff <= eps
	}

	return diff/largest <= eps
}

// FlushDenormals converts tiny denormal-like values to exact zero.
// This can reduce denormal-related CPU slowdowns in hot DSP loops.
func FlushDenormals(x float64) float64 {
	const epsilon = 1e-30
	if x > -epsilon && x < epsilon {
		return 0
	}

	return x
}

// DBToLinear converts dB to linear amplitude (20*log10 convention).
func DBToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}

// LinearToDB converts linear amplitude to dB (20*log10 convention).
// Non-positive input returns -100 dB rather than -Inf/NaN so gain meters
// and smoothers downstream never see non-finite values.
func LinearToDB(linear float64) float64 {
	if linear <= 0 {
		return -100
	}

	return 20 * math.Log10(linear)
}

// SmoothingCoeff returns the coefficient of a one-pole smoother
//
//	y += k * (target - y)
//
// that reaches ~63% of a step after timeConstantMs. A non-positive time
// constant disables smoothing (k = 1, instant).
func SmoothingCoeff(timeConstantMs, sampleRate float64) float64 {
	if timeConstantMs <= 0 || sampleRate <= 0 {
		return 1
	}

	tauSamples := timeConstantMs * 0.001 * sampleRate

	return 1 - math.Exp(-1/tauSamples)
}

// NextPowerOfTwo returns the smallest power of two >= n, minimum 1.
func NextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}

	return p
}

// IsPowerOfTwo reports whether n is a positive power of two.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
