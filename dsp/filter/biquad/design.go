package biquad

import "math"

// Bandpass designs a constant-peak-gain bandpass biquad (unity gain at the
// center frequency). Frequencies outside (0, sampleRate/2) or non-positive Q
// yield a pass-through section rather than an unstable filter.
func Bandpass(freq, q, sampleRate float64) Coefficients {
	if sampleRate <= 0 || freq <= 0 || freq >= sampleRate/2 {
		return Coefficients{B0: 1}
	}
	if q <= 0 {
		q = 0.7071067811865476
	}

	w0 := 2 * math.Pi * freq / sampleRate
	cw := math.Cos(w0)
	sw := math.Sin(w0)
	alpha := sw / (2 * q)

	b0 := alpha
	b1 := 0.0
	b2 := -alpha
	a0 := 1 + alpha
	a1 := -2 * cw
	a2 := 1 - alpha

	inv := 1 / a0

	return Coefficients{
		B0: b0 * inv,
		B1: b1 * inv,
		B2: b2 * inv,
		A1: a1 * inv,
		A2: a2 * inv,
	}
}
