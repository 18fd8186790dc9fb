package biquad

import (
	"math"
	"testing"
)

func TestSection_ProcessSample_MatchesDifferenceEquation(t *testing.T) {
	c := Coefficients{B0: 0.25, B1: 0.5, B2: 0.25, A1: -0.2, A2: 0.04}
	s := NewSection(c)

	input := []float64{1, 0, 0, 0, 0.5, -1}

	// Direct-form reference using the raw recurrence.
	var x1, x2, y1, y2 float64
	for i, x := range input {
		want := c.B0*x + c.B1*x1 + c.B2*x2 - c.A1*y1 - c.A2*y2
		x2, x1 = x1, x
		y2, y1 = y1, want

		got := s.ProcessSample(x)
		if math.Abs(got-want) > 1e-12 {
			t.Fatalf("sample %d: got %v, want %v", i, got, want)
		}
	}
}

func TestSection_ProcessBlock_MatchesPerSample(t *testing.T) {
	c := Coefficients{B0: 0.1, B1: 0.2, B2: 0.1, A1: -0.5, A2: 0.1}
	perSample := NewSection(c)
	block := NewSection(c)

	input := []float64{0.3, -0.7, 1, 0.2, 0, -0.1, 0.9, -0.4}
	want := make([]float64, len(input))
	for i, x := range input {
		want[i] = perSample.ProcessSample(x)
	}

	buf := append([]float64(nil), input...)
	block.ProcessBlock(buf)

	for i := range buf {
		if math.Abs(buf[i]-want[i]) > 1e-12 {
			t.Fatalf("block sample %d: got %v, want %v", i, buf[i], want[i])
		}
	}
}

func TestSection_Reset(t *testing.T) {
	s := NewSection(Coefficients{B0: 0.5, B1: 0.5, A1: -0.9})
	first := s.ProcessSample(1)

	s.Reset()
	if got := s.ProcessSample(1); got != first {
		t.Fatalf("after Reset: got %v, want %v", got, first)
	}
}

// magnitudeAt evaluates |H(e^{jw})| for a section.
func magnitudeAt(c Coefficients, freq, sampleRate float64) float64 {
	w := 2 * math.Pi * freq / sampleRate
	z1 := complex(math.Cos(-w), math.Sin(-w))
	z2 := z1 * z1

	num := complex(c.B0, 0) + complex(c.B1, 0)*z1 + complex(c.B2, 0)*z2
	den := complex(1, 0) + complex(c.A1, 0)*z1 + complex(c.A2, 0)*z2

	return cmplxAbs(num) / cmplxAbs(den)
}

func cmplxAbs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}

func TestBandpass_UnityAtCenter(t *testing.T) {
	const sampleRate = 48000.0

	for _, freq := range []float64{250, 1000, 7000} {
		c := Bandpass(freq, 2, sampleRate)

		if got := magnitudeAt(c, freq, sampleRate); math.Abs(got-1) > 1e-6 {
			t.Fatalf("center magnitude at %v Hz: got %v, want 1", freq, got)
		}

		// An octave away the response must be well down.
		if got := magnitudeAt(c, freq*2, sampleRate); got > 0.5 {
			t.Fatalf("magnitude one octave above %v Hz: got %v, want < 0.5", freq, got)
		}
	}
}

func TestBandpass_DegenerateParamsPassThrough(t *testing.T) {
	tests := []struct {
		name             string
		freq, sampleRate float64
	}{
		{"zero freq", 0, 48000},
		{"above nyquist", 30000, 48000},
		{"zero sample rate", 1000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Bandpass(tt.freq, 2, tt.sampleRate)
			if c != (Coefficients{B0: 1}) {
				t.Fatalf("got %+v, want pass-through", c)
			}
		})
	}
}
