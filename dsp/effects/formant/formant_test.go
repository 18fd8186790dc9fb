package formant

import (
	"math"
	"testing"

	"github.com/vanely/nova-tune/dsp/signal"
)

func rms(buf []float64) float64 {
	var sum float64
	for _, v := range buf {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(buf)))
}

func sineBlock(t *testing.T, freq float64, samples int) [][]float64 {
	t.Helper()
	tone, err := signal.NewGenerator(48000).Sine(freq, 0.5, samples)
	if err != nil {
		t.Fatalf("Sine: %v", err)
	}
	return [][]float64{tone}
}

func TestProcessor_UnityIsPassthrough(t *testing.T) {
	p, err := New(48000, 1, 512)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	block := sineBlock(t, 440, 512)
	want := make([]float64, 512)
	copy(want, block[0])

	p.ProcessBlock(block)

	for i := range want {
		if block[0][i] != want[i] {
			t.Fatalf("sample %d modified on unity shift: got %v, want %v", i, block[0][i], want[i])
		}
	}
}

func TestProcessor_EffectiveRatioClamping(t *testing.T) {
	p, err := New(48000, 1, 64)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// A 4x pitch shift would ask for 0.25x preservation; clamp to 0.5.
	p.SetPitchCompensation(4)
	p.Reset()
	if got := p.ShiftRatio(); got != MinShiftRatio {
		t.Errorf("large compensation: got %v, want %v", got, MinShiftRatio)
	}

	p.SetPitchCompensation(1)
	p.SetShift(12)
	p.Reset()
	want := math.Pow(2, maxShiftSemitones/12)
	if got := p.ShiftRatio(); math.Abs(got-want) > 1e-12 {
		t.Errorf("oversized shift: got %v, want %v (clamped to ±6 st)", got, want)
	}
}

func TestProcessor_ShiftedBankAttenuatesOffTargetBands(t *testing.T) {
	p, err := New(48000, 1, 1024)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// Pitch shifted down one octave: formants move up 2x, so the
	// synthesis bank starts at 500 Hz and a 250 Hz tone loses energy.
	p.SetPitchCompensation(0.5)
	p.Reset()

	block := sineBlock(t, 250, 8192)
	inRMS := rms(block[0])
	p.ProcessBlock(block)
	outRMS := rms(block[0][4096:])

	if outRMS > inRMS*0.7 {
		t.Errorf("250 Hz tone through 2x-shifted bank: out RMS %v, want < 0.7 of in RMS %v", outRMS, inRMS)
	}
}

func TestProcessor_EnvelopeTracksActiveBand(t *testing.T) {
	p, err := New(48000, 1, 1024)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	p.SetPitchCompensation(0.8)
	p.Reset()

	p.ProcessBlock(sineBlock(t, 1000, 8192))

	// Band 2 is centered at 1000 Hz; band 7 at 7000 Hz.
	if p.BandEnvelope(2) <= p.BandEnvelope(7) {
		t.Errorf("envelope: 1 kHz band %v should exceed 7 kHz band %v for a 1 kHz tone",
			p.BandEnvelope(2), p.BandEnvelope(7))
	}
	if p.BandEnvelope(-1) != 0 || p.BandEnvelope(NumBands) != 0 {
		t.Error("out-of-range band envelope should be 0")
	}
}

func TestProcessor_RatioGlidesTowardTarget(t *testing.T) {
	p, err := New(48000, 1, 512)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	p.SetPitchCompensation(0.5) // target ratio 2

	block := sineBlock(t, 440, 512)
	p.ProcessBlock(block)

	got := p.ShiftRatio()
	if got <= 1 || got >= 2 {
		t.Errorf("ratio after one block: got %v, want partway between 1 and 2", got)
	}

	for range 200 {
		b := sineBlock(t, 440, 512)
		p.ProcessBlock(b)
	}
	if got := p.ShiftRatio(); math.Abs(got-2) > 0.01 {
		t.Errorf("ratio after settling: got %v, want ~2", got)
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(0, 1, 64); err == nil {
		t.Error("zero sample rate: expected error")
	}
	if _, err := New(48000, 0, 64); err == nil {
		t.Error("zero channels: expected error")
	}
	if _, err := New(48000, 1, 0); err == nil {
		t.Error("zero max block: expected error")
	}
}
