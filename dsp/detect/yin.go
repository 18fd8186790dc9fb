// Package detect provides monophonic fundamental-frequency estimation
// based on the YIN algorithm with an FFT-accelerated difference function.
package detect

import (
	"fmt"
	"math"

	algofft "github.com/MeKo-Christian/algo-fft"

	"github.com/vanely/nova-tune/dsp/core"
	"github.com/vanely/nova-tune/dsp/music"
)

// VoiceType selects the expected fundamental-frequency range of the
// incoming signal. Narrowing the range reduces octave errors and the
// per-frame search cost.
type VoiceType int

const (
	VoiceSoprano VoiceType = iota
	VoiceAltoTenor
	VoiceLowMale
	VoiceInstrument
)

// String returns a human-readable name for the voice type.
func (v VoiceType) String() string {
	switch v {
	case VoiceSoprano:
		return "soprano"
	case VoiceAltoTenor:
		return "alto/tenor"
	case VoiceLowMale:
		return "low male"
	case VoiceInstrument:
		return "instrument"
	default:
		return "unknown"
	}
}

// Range returns the fundamental-frequency search range in Hz.
func (v VoiceType) Range() (minHz, maxHz float64) {
	switch v {
	case VoiceSoprano:
		return 220, 1200
	case VoiceLowMale:
		return 65, 450
	case VoiceInstrument:
		return 50, 2000
	default:
		return 110, 750
	}
}

// Estimate is the result of analysing one frame.
type Estimate struct {
	FrequencyHz   float64
	MidiNote      float64
	PeriodSamples float64
	Voiced        bool
	Confidence    float64
}

// Tuned constants for the YIN search.
const (
	// frameDurationMs is the nominal analysis frame length; the actual
	// frame is the nearest power of two at the current sample rate,
	// capped at maxFrameSize.
	frameDurationMs = 46.0
	maxFrameSize    = 4096

	// yinThreshold is the absolute threshold on the cumulative-mean
	// normalized difference below which a lag is accepted directly.
	yinThreshold = 0.15

	// fallbackThreshold bounds the global-minimum fallback: a frame
	// whose best normalized difference exceeds this is unvoiced.
	fallbackThreshold = 0.5
)

// Detector estimates the fundamental frequency of a monophonic signal.
// Feed it audio with Process; it analyses one frame every hop and keeps
// the most recent estimate available through Latest.
type Detector struct {
	sampleRate float64
	frameSize  int
	hopSize    int
	windowSize int
	minLag     int
	maxLag     int

	frame  []float64
	hopBuf []float64
	filled int
	staged int

	plan     *algofft.Plan[complex128]
	frameC   []complex128
	windowC  []complex128
	frameF   []complex128
	windowF  []complex128
	corrC    []complex128
	prefix   []float64
	diff     []float64
	normDiff []float64

	latest Estimate
}

// NewDetector creates a detector for the given sample rate and voice type.
func NewDetector(sampleRate float64, voice VoiceType) (*Detector, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("detect: sample rate must be positive, got %v", sampleRate)
	}

	nominal := frameDurationMs * 0.001 * sampleRate
	frameSize := 1 << int(math.Round(math.Log2(nominal)))
	if frameSize > maxFrameSize {
		frameSize = maxFrameSize
	}
	windowSize := frameSize / 2

	minHz, maxHz := voice.Range()
	minLag := int(sampleRate / maxHz)
	if minLag < 2 {
		minLag = 2
	}
	maxLag := int(sampleRate / minHz)
	if maxLag > windowSize-1 {
		maxLag = windowSize - 1
	}
	if minLag >= maxLag {
		return nil, fmt.Errorf("detect: frequency range %v..%v Hz not resolvable at %v Hz sample rate", minHz, maxHz, sampleRate)
	}

	plan, err := algofft.NewPlan64(frameSize)
	if err != nil {
		return nil, fmt.Errorf("detect: create FFT plan: %w", err)
	}

	return &Detector{
		sampleRate: sampleRate,
		frameSize:  frameSize,
		hopSize:    frameSize / 8,
		windowSize: windowSize,
		minLag:     minLag,
		maxLag:     maxLag,
		frame:      make([]float64, frameSize),
		hopBuf:     make([]float64, frameSize/8),
		plan:       plan,
		frameC:     make([]complex128, frameSize),
		windowC:    make([]complex128, frameSize),
		frameF:     make([]complex128, frameSize),
		windowF:    make([]complex128, frameSize),
		corrC:      make([]complex128, frameSize),
		prefix:     make([]float64, frameSize+1),
		diff:       make([]float64, windowSize),
		normDiff:   make([]float64, windowSize),
	}, nil
}

// FrameSize returns the analysis frame length in samples.
func (d *Detector) FrameSize() int { return d.frameSize }

// HopSize returns the number of samples between successive analyses.
func (d *Detector) HopSize() int { return d.hopSize }

// Latest returns the most recent estimate. Before the first full frame
// has been accumulated it reports an unvoiced zero estimate.
func (d *Detector) Latest() Estimate { return d.latest }

// Reset clears the accumulated signal and the latest estimate.
func (d *Detector) Reset() {
	for i := range d.frame {
		d.frame[i] = 0
	}
	d.filled = 0
	d.staged = 0
	d.latest = Estimate{}
}

// Process feeds input samples to the detector, analysing a frame each
// time a hop worth of new material has arrived.
func (d *Detector) Process(input []float64) {
	for _, s := range input {
		if d.filled < d.frameSize {
			d.frame[d.filled] = s
			d.filled++
			if d.filled == d.frameSize {
				d.analyze()
			}
			continue
		}

		d.hopBuf[d.staged] = s
		d.staged++
		if d.staged == d.hopSize {
			copy(d.frame, d.frame[d.hopSize:])
			copy(d.frame[d.frameSize-d.hopSize:], d.hopBuf)
			d.staged = 0
			d.analyze()
		}
	}
}

// analyze runs YIN on the current frame and stores the estimate.
func (d *Detector) analyze() {
	d.computeDifference()

	if !d.normalizeDifference() {
		d.latest = Estimate{}
		return
	}

	lag := d.findLag()
	if lag < 0 {
		d.latest = Estimate{}
		return
	}

	period := d.refineLag(lag)
	freq := d.sampleRate / period

	d.latest = Estimate{
		FrequencyHz:   freq,
		MidiNote:      music.FrequencyToMidi(freq),
		PeriodSamples: period,
		Voiced:        true,
		Confidence:    core.Clamp(1-d.normDiff[lag], 0, 1),
	}
}

// computeDifference fills d.diff with the YIN difference function
//
//	d(tau) = sum_{j<W} (x[j] - x[j+tau])^2
//	       = P(0) + P(tau) - 2*r(tau)
//
// where P(tau) is the window energy starting at tau and r(tau) the
// cross-correlation of the frame with its first half, computed by FFT.
func (d *Detector) computeDifference() {
	w := d.windowSize

	d.prefix[0] = 0
	for i, s := range d.frame {
		d.prefix[i+1] = d.prefix[i] + s*s
	}

	for i, s := range d.frame {
		d.frameC[i] = complex(s, 0)
	}
	for i := range d.windowC {
		if i < w {
			d.windowC[i] = complex(d.frame[i], 0)
		} else {
			d.windowC[i] = 0
		}
	}

	// Errors are impossible here: the plan size matches the buffers.
	_ = d.plan.Forward(d.frameF, d.frameC)
	_ = d.plan.Forward(d.windowF, d.windowC)
	for i := range d.corrC {
		d.corrC[i] = d.frameF[i] * complex(real(d.windowF[i]), -imag(d.windowF[i]))
	}
	_ = d.plan.Inverse(d.corrC, d.corrC)

	energy0 := d.prefix[w]
	for tau := 0; tau < w; tau++ {
		energyTau := d.prefix[tau+w] - d.prefix[tau]
		d.diff[tau] = energy0 + energyTau - 2*real(d.corrC[tau])
		if d.diff[tau] < 0 {
			d.diff[tau] = 0
		}
	}
}

// normalizeDifference applies cumulative-mean normalization. It reports
// false when the frame is silent (all differences zero).
func (d *Detector) normalizeDifference() bool {
	d.normDiff[0] = 1
	sum := 0.0
	for tau := 1; tau < d.windowSize; tau++ {
		sum += d.diff[tau]
		if sum == 0 {
			d.normDiff[tau] = 1
			continue
		}
		d.normDiff[tau] = d.diff[tau] * float64(tau) / sum
	}
	return sum != 0
}

// findLag locates the period candidate: the first lag in range below
// the absolute threshold, extended while the difference keeps falling.
// Without a sub-threshold minimum it falls back to the global minimum
// in range, accepted only when reasonably periodic. Returns -1 when
// the frame is unvoiced.
func (d *Detector) findLag() int {
	for tau := d.minLag; tau <= d.maxLag; tau++ {
		if d.normDiff[tau] >= yinThreshold {
			continue
		}
		for tau+1 <= d.maxLag && d.normDiff[tau+1] < d.normDiff[tau] {
			tau++
		}
		return tau
	}

	best := d.minLag
	for tau := d.minLag + 1; tau <= d.maxLag; tau++ {
		if d.normDiff[tau] < d.normDiff[best] {
			best = tau
		}
	}
	if d.normDiff[best] < fallbackThreshold {
		return best
	}
	return -1
}

// refineLag improves the integer lag to sub-sample precision by fitting
// a parabola through the normalized difference at lag-1, lag, lag+1.
func (d *Detector) refineLag(lag int) float64 {
	if lag <= 0 || lag >= d.windowSize-1 {
		return float64(lag)
	}

	left := d.normDiff[lag-1]
	mid := d.normDiff[lag]
	right := d.normDiff[lag+1]

	denom := left - 2*mid + right
	if denom == 0 {
		return float64(lag)
	}

	offset := 0.5 * (left - right) / denom
	if math.Abs(offset) > 1 {
		return float64(lag)
	}
	return float64(lag) + offset
}
