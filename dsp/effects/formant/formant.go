// Package formant implements filter-bank formant shifting. A bank of
// fixed analysis bandpass filters tracks the spectral envelope while a
// second bank at shifted center frequencies redistributes the energy,
// preserving vocal timbre under pitch shifting.
package formant

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-vecmath"

	"github.com/vanely/nova-tune/dsp/core"
	"github.com/vanely/nova-tune/dsp/filter/biquad"
	"github.com/vanely/nova-tune/dsp/music"
)

// NumBands is the number of filter-bank bands.
const NumBands = 8

// bandCenters spans the human formant regions, roughly F1 through the
// presence band.
var bandCenters = [NumBands]float64{250, 500, 1000, 1500, 2500, 3500, 5000, 7000}

const (
	bandQ = 2.0

	// MinShiftRatio and MaxShiftRatio bound the effective formant
	// shift after pitch compensation.
	MinShiftRatio = 0.5
	MaxShiftRatio = 2.0

	maxShiftSemitones = 6.0

	shiftSmoothingMs    = 10.0
	envelopeSmoothingMs = 5.0

	// unityEpsilon is the no-op fast path threshold: within this of a
	// 1.0 ratio the processor passes audio through untouched.
	unityEpsilon = 0.001

	// ratioUpdateEpsilon is how far the smoothed ratio must move
	// before filter coefficients are recomputed.
	ratioUpdateEpsilon = 0.001
)

// Processor shifts formants on up to two channels.
type Processor struct {
	sampleRate float64
	channels   int

	shiftSemitones    float64
	pitchCompensation float64
	targetRatio       float64
	currentRatio      float64
	appliedRatio      float64

	shiftSmoothing    float64
	envelopeSmoothing float64

	analysis  [][]*biquad.Section // [channel][band]
	synthesis [][]*biquad.Section
	envelopes [NumBands]float64

	in    []float64
	band  []float64
	accum []float64
}

// New creates a formant processor. channels is clamped to 2; maxBlock
// sizes the internal scratch buffers.
func New(sampleRate float64, channels, maxBlock int) (*Processor, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("formant: sample rate must be positive, got %v", sampleRate)
	}
	if channels < 1 {
		return nil, fmt.Errorf("formant: need at least one channel, got %d", channels)
	}
	if maxBlock < 1 {
		return nil, fmt.Errorf("formant: max block must be positive, got %d", maxBlock)
	}
	if channels > 2 {
		channels = 2
	}

	p := &Processor{
		sampleRate:        sampleRate,
		channels:          channels,
		pitchCompensation: 1,
		targetRatio:       1,
		currentRatio:      1,
		appliedRatio:      1,
		shiftSmoothing:    core.SmoothingCoeff(shiftSmoothingMs, sampleRate),
		envelopeSmoothing: core.SmoothingCoeff(envelopeSmoothingMs, sampleRate),
		analysis:          make([][]*biquad.Section, channels),
		synthesis:         make([][]*biquad.Section, channels),
		in:                make([]float64, maxBlock),
		band:              make([]float64, maxBlock),
		accum:             make([]float64, maxBlock),
	}
	for ch := range channels {
		p.analysis[ch] = make([]*biquad.Section, NumBands)
		p.synthesis[ch] = make([]*biquad.Section, NumBands)
		for band := range NumBands {
			p.analysis[ch][band] = biquad.NewSection(biquad.Coefficients{})
			p.synthesis[ch][band] = biquad.NewSection(biquad.Coefficients{})
		}
	}
	p.updateFilters()
	return p, nil
}

// SetShift sets the user formant shift in semitones, clamped to ±6.
func (p *Processor) SetShift(semitones float64) {
	if math.IsNaN(semitones) {
		return
	}
	p.shiftSemitones = core.Clamp(semitones, -maxShiftSemitones, maxShiftSemitones)
	p.targetRatio = p.effectiveRatio()
}

// SetPitchCompensation tells the processor how much the signal has
// been pitch shifted, so formants can be moved back toward their
// original positions.
func (p *Processor) SetPitchCompensation(pitchRatio float64) {
	p.pitchCompensation = pitchRatio
	p.targetRatio = p.effectiveRatio()
}

// ShiftRatio returns the smoothed effective shift ratio.
func (p *Processor) ShiftRatio() float64 { return p.currentRatio }

// Reset clears all filter and envelope state. The shift ratio snaps
// to its target.
func (p *Processor) Reset() {
	for ch := range p.analysis {
		for band := range p.analysis[ch] {
			p.analysis[ch][band].Reset()
			p.synthesis[ch][band].Reset()
		}
	}
	p.envelopes = [NumBands]float64{}
	p.currentRatio = p.targetRatio
	if math.Abs(p.currentRatio-p.appliedRatio) > ratioUpdateEpsilon {
		p.updateFilters()
	}
}

// BandEnvelope returns the tracked envelope of the given analysis
// band, or 0 for an out-of-range band index.
func (p *Processor) BandEnvelope(band int) float64 {
	if band < 0 || band >= NumBands {
		return 0
	}
	return p.envelopes[band]
}

// effectiveRatio combines the preservation ratio (inverse of the pitch
// shift) with the user shift, clamped to the safe range.
func (p *Processor) effectiveRatio() float64 {
	preservation := 1.0
	if p.pitchCompensation > 0 {
		preservation = 1 / p.pitchCompensation
	}
	combined := preservation * music.SemitonesToRatio(p.shiftSemitones)
	return core.Clamp(combined, MinShiftRatio, MaxShiftRatio)
}

// updateFilters recomputes both banks. Analysis centers stay fixed;
// synthesis centers move with the current ratio. Centers are clamped
// below Nyquist.
func (p *Processor) updateFilters() {
	maxFreq := p.sampleRate * 0.45
	for band := range NumBands {
		analysisFreq := core.Clamp(bandCenters[band], 20, maxFreq)
		synthesisFreq := core.Clamp(bandCenters[band]*p.currentRatio, 20, maxFreq)

		ac := biquad.Bandpass(analysisFreq, bandQ, p.sampleRate)
		sc := biquad.Bandpass(synthesisFreq, bandQ, p.sampleRate)
		for ch := range p.channels {
			p.analysis[ch][band].SetCoefficients(ac)
			p.synthesis[ch][band].SetCoefficients(sc)
		}
	}
	p.appliedRatio = p.currentRatio
}

// ProcessBlock shifts formants in place. Channels beyond the first two
// are passed through. Blocks longer than maxBlock are processed in
// chunks.
func (p *Processor) ProcessBlock(block [][]float64) {
	if len(block) == 0 || len(block[0]) == 0 {
		return
	}

	if math.Abs(p.currentRatio-1) < unityEpsilon && math.Abs(p.targetRatio-1) < unityEpsilon {
		return
	}

	n := len(block[0])
	for start := 0; start < n; start += len(p.in) {
		end := start + len(p.in)
		if end > n {
			end = n
		}
		p.processChunk(block, start, end)
	}
}

func (p *Processor) processChunk(block [][]float64, start, end int) {
	n := end - start

	for range n {
		p.currentRatio += p.shiftSmoothing * (p.targetRatio - p.currentRatio)
	}
	if math.Abs(p.currentRatio-p.appliedRatio) > ratioUpdateEpsilon {
		p.updateFilters()
	}

	channels := len(block)
	if channels > p.channels {
		channels = p.channels
	}

	for ch := range channels {
		in := p.in[:n]
		band := p.band[:n]
		accum := p.accum[:n]

		copy(in, block[ch][start:end])
		for i := range accum {
			accum[i] = 0
		}

		for b := range NumBands {
			copy(band, in)
			p.analysis[ch][b].ProcessBlock(band)
			if ch == 0 {
				env := p.envelopes[b]
				for _, v := range band {
					env += p.envelopeSmoothing * (math.Abs(v) - env)
				}
				p.envelopes[b] = env
			}

			copy(band, in)
			p.synthesis[ch][b].ProcessBlock(band)
			vecmath.AddBlockInPlace(accum, band)
		}

		copy(block[ch][start:end], accum)
	}
}
