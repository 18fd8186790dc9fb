package pitch

import (
	"fmt"
	"math"

	"github.com/vanely/nova-tune/dsp/buffer"
	"github.com/vanely/nova-tune/dsp/core"
	"github.com/vanely/nova-tune/dsp/window"
)

const (
	defaultWindowMs = 25.0
	minWindowSize   = 256
	maxWindowSize   = 2048

	// MinRatio and MaxRatio bound the pitch shift to one octave in
	// either direction; larger shifts degrade badly in the time domain.
	MinRatio = 0.5
	MaxRatio = 2.0

	ratioSmoothingMs = 5.0

	correlationTiny = 1e-10
)

// Shifter is a mono streaming WSOLA pitch shifter. Grains are taken
// from the input at a fixed analysis hop, aligned against the already
// written output by a waveform-similarity search, and overlap-added at
// a ratio-dependent synthesis hop. Output lags the input by one window.
type Shifter struct {
	sampleRate  float64
	windowSize  int
	analysisHop int

	targetRatio  float64
	currentRatio float64
	smoothing    float64
	searchRadius int

	win   []float64
	grain []float64

	input  *buffer.Ring
	output *buffer.Ring

	lastGrainStart int
	available      int
	outputPhase    float64
	outputWritePos int
	outputReadPos  int
}

// NewShifter creates a pitch shifter for the given sample rate.
func NewShifter(sampleRate float64) (*Shifter, error) {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return nil, fmt.Errorf("pitch: sample rate must be positive and finite, got %v", sampleRate)
	}

	windowSize := int(defaultWindowMs * 0.001 * sampleRate)
	windowSize = int(core.Clamp(float64(windowSize), minWindowSize, maxWindowSize))

	in, err := buffer.NewRing(windowSize * 4)
	if err != nil {
		return nil, fmt.Errorf("pitch: input ring: %w", err)
	}
	out, err := buffer.NewRing(windowSize * 4)
	if err != nil {
		return nil, fmt.Errorf("pitch: output ring: %w", err)
	}

	s := &Shifter{
		sampleRate:   sampleRate,
		windowSize:   windowSize,
		analysisHop:  windowSize / 4,
		targetRatio:  1,
		currentRatio: 1,
		smoothing:    core.SmoothingCoeff(ratioSmoothingMs, sampleRate),
		win:          window.Generate(window.TypeHann, windowSize),
		grain:        make([]float64, windowSize),
		input:        in,
		output:       out,
	}
	s.searchRadius = s.analysisHop / 2
	s.Reset()
	return s, nil
}

// WindowSize returns the grain length in samples.
func (s *Shifter) WindowSize() int { return s.windowSize }

// LatencySamples returns the processing delay, one full window.
func (s *Shifter) LatencySamples() int { return s.windowSize }

// PitchRatio returns the target pitch ratio.
func (s *Shifter) PitchRatio() float64 { return s.targetRatio }

// SetPitchRatio sets the target pitch ratio, clamped to [MinRatio,
// MaxRatio]. The working ratio glides toward the target per sample.
func (s *Shifter) SetPitchRatio(ratio float64) {
	if math.IsNaN(ratio) {
		return
	}
	s.targetRatio = core.Clamp(ratio, MinRatio, MaxRatio)
}

// SetSearchRadius overrides the waveform-similarity search radius in
// samples, clamped to [0, analysisHop/2]. Smaller radii trade quality
// for CPU.
func (s *Shifter) SetSearchRadius(radius int) {
	if radius < 0 {
		radius = 0
	}
	if radius > s.analysisHop/2 {
		radius = s.analysisHop / 2
	}
	s.searchRadius = radius
}

// SearchRadius returns the current similarity search radius in samples.
func (s *Shifter) SearchRadius() int { return s.searchRadius }

// Reset clears all buffered audio. The target ratio is kept and the
// working ratio snaps to it.
func (s *Shifter) Reset() {
	s.input.Reset()
	s.output.Reset()
	s.lastGrainStart = 0
	s.available = 0
	s.outputPhase = 0
	s.outputWritePos = s.windowSize
	s.outputReadPos = 0
	s.currentRatio = s.targetRatio
}

// ProcessSample shifts one sample, returning output delayed by one
// window.
func (s *Shifter) ProcessSample(in float64) float64 {
	s.currentRatio += s.smoothing * (s.targetRatio - s.currentRatio)

	s.input.Write(in)
	s.available++

	hop := s.synthesisHop()
	for s.available >= s.windowSize && s.outputPhase >= hop {
		s.placeGrain(hop)
		s.outputPhase -= hop
	}
	s.outputPhase++

	out := s.output.At(s.outputReadPos)
	s.output.SetAt(s.outputReadPos, 0)
	s.outputReadPos++
	return out
}

// ProcessInPlace shifts a block of samples in place.
func (s *Shifter) ProcessInPlace(buf []float64) {
	for i, v := range buf {
		buf[i] = s.ProcessSample(v)
	}
}

// synthesisHop returns the grain spacing in the output. Closer spacing
// repeats waveform cycles faster (pitch up), wider spacing stretches
// them (pitch down).
func (s *Shifter) synthesisHop() float64 {
	if s.currentRatio <= 0 {
		return float64(s.analysisHop)
	}
	return float64(s.analysisHop) / s.currentRatio
}

// placeGrain extracts the next analysis grain and overlap-adds it at
// the best-matching output position.
func (s *Shifter) placeGrain(hop float64) {
	start := s.lastGrainStart + s.analysisHop
	if s.input.WritePos()-start < s.windowSize {
		return
	}

	s.input.ReadBlock(s.grain, start)
	window.ApplyCoefficients(s.grain, s.grain, s.win)
	s.lastGrainStart = start
	s.available -= s.analysisHop

	pos := s.findBestPosition(s.outputWritePos)
	for i, g := range s.grain {
		s.output.AddAt(pos+i, g)
	}
	s.outputWritePos += int(hop)
}

// findBestPosition searches around the nominal write position for the
// offset where the grain best correlates with audio already in the
// output, reducing phase discontinuities at grain boundaries. The very
// first grain has nothing to align against and uses the nominal
// position directly.
func (s *Shifter) findBestPosition(nominal int) int {
	if s.outputWritePos == s.windowSize || s.searchRadius == 0 {
		return nominal
	}

	overlap := s.windowSize / 2
	best := nominal
	bestCorr := -1.0

	for pos := nominal - s.searchRadius; pos <= nominal+s.searchRadius; pos++ {
		corr := 0.0
		normGrain := 0.0
		normOut := 0.0
		for i := 0; i < overlap; i++ {
			g := s.grain[i]
			o := s.output.At(pos + i)
			corr += g * o
			normGrain += g * g
			normOut += o * o
		}
		norm := math.Sqrt(normGrain * normOut)
		if norm > correlationTiny {
			corr /= norm
		} else {
			corr = 0
		}
		if corr > bestCorr {
			bestCorr = corr
			best = pos
		}
	}
	return best
}
