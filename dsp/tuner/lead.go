package tuner

import (
	"fmt"
	"math"

	"github.com/vanely/nova-tune/dsp/core"
	"github.com/vanely/nova-tune/dsp/detect"
	"github.com/vanely/nova-tune/dsp/effects/pitch"
	"github.com/vanely/nova-tune/dsp/music"
)

// Retune speed endpoints. The mapping between them is exponential
// because perceived correction speed is logarithmic.
const (
	retuneSlowMs = 400.0 // speed 0, natural
	retuneFastMs = 0.5   // speed 100, robotic

	// humanizeDriftCents is the maximum slow-drift depth at full
	// humanize.
	humanizeDriftCents = 8.0

	// vibratoRateHz and vibratoDepthCents shape the preserved-vibrato
	// LFO at full depth.
	vibratoRateHz     = 5.0
	vibratoDepthCents = 20.0
)

// LeadCorrection pitch-corrects the lead vocal toward the mapped scale
// target. One shifter per channel; retune speed becomes a one-pole
// coefficient on the correction ratio.
type LeadCorrection struct {
	sampleRate float64
	channels   int

	shifters []*pitch.Shifter
	dry      [][]float64

	retuneSpeed float64
	humanize    float64
	vibrato     float64
	mix         float64

	smoothing    float64
	targetRatio  float64
	currentRatio float64

	driftPhase   float64
	vibratoPhase float64
}

// NewLeadCorrection creates the lead corrector.
func NewLeadCorrection(sampleRate float64, maxBlock, channels int) (*LeadCorrection, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("tuner: sample rate must be positive, got %v", sampleRate)
	}
	if maxBlock < 1 || channels < 1 {
		return nil, fmt.Errorf("tuner: need positive block size and channel count, got %d/%d", maxBlock, channels)
	}

	l := &LeadCorrection{
		sampleRate:   sampleRate,
		channels:     channels,
		shifters:     make([]*pitch.Shifter, channels),
		dry:          make([][]float64, channels),
		retuneSpeed:  50,
		mix:          1,
		targetRatio:  1,
		currentRatio: 1,
	}
	for ch := range channels {
		s, err := pitch.NewShifter(sampleRate)
		if err != nil {
			return nil, err
		}
		l.shifters[ch] = s
		l.dry[ch] = make([]float64, maxBlock)
	}
	l.SetRetuneSpeed(l.retuneSpeed)
	return l, nil
}

// SetRetuneSpeed sets the correction speed (0..100) and refreshes the
// one-pole coefficient.
func (l *LeadCorrection) SetRetuneSpeed(speed float64) {
	l.retuneSpeed = core.Clamp(speed, 0, 100)
	l.smoothing = core.SmoothingCoeff(retuneTimeConstantMs(l.retuneSpeed), l.sampleRate)
}

// SetHumanize sets the humanize amount (0..100).
func (l *LeadCorrection) SetHumanize(amount float64) {
	l.humanize = core.Clamp(amount, 0, 100)
}

// SetVibrato sets the preserved-vibrato depth (0..100).
func (l *LeadCorrection) SetVibrato(amount float64) {
	l.vibrato = core.Clamp(amount, 0, 100)
}

// SetMix sets the wet fraction (0..1).
func (l *LeadCorrection) SetMix(wet float64) {
	l.mix = core.Clamp(wet, 0, 1)
}

// CorrectionSemitones reports the correction currently applied.
func (l *LeadCorrection) CorrectionSemitones() float64 {
	return music.RatioToSemitones(l.currentRatio)
}

// LatencySamples returns the shifter latency.
func (l *LeadCorrection) LatencySamples() int {
	return l.shifters[0].LatencySamples()
}

// SetSearchRadius forwards the WSOLA search radius to every channel
// shifter.
func (l *LeadCorrection) SetSearchRadius(radius int) {
	for _, s := range l.shifters {
		s.SetSearchRadius(radius)
	}
}

// Reset clears audio history; the correction ratio returns to unity.
func (l *LeadCorrection) Reset() {
	for _, s := range l.shifters {
		s.SetPitchRatio(1)
		s.Reset()
	}
	l.targetRatio = 1
	l.currentRatio = 1
	l.driftPhase = 0
	l.vibratoPhase = 0
}

// retuneTimeConstantMs maps speed 0..100 onto 400..0.5 ms.
func retuneTimeConstantMs(speed float64) float64 {
	return retuneSlowMs * math.Pow(retuneFastMs/retuneSlowMs, speed/100)
}

// targetFor computes the raw correction ratio for the current mapping.
// Unvoiced frames correct nothing.
func (l *LeadCorrection) targetFor(est detect.Estimate, m music.MappingResult) float64 {
	if !est.Voiced || m.LeadTargetFrequencyHz <= 0 || m.DetectedFrequencyHz <= 0 {
		return 1
	}
	ratio := m.LeadTargetFrequencyHz / m.DetectedFrequencyHz
	return core.Clamp(ratio, pitch.MinRatio, pitch.MaxRatio)
}

// applyHumanization backs the ratio off toward unity and multiplies in
// a slow three-sine drift so the correction never sounds mechanically
// exact.
func (l *LeadCorrection) applyHumanization(ratio float64) float64 {
	if l.humanize <= 0 {
		return ratio
	}
	factor := l.humanize / 100

	blended := ratio + (1-ratio)*factor*0.5

	l.driftPhase += 0.00005
	if l.driftPhase > 2*math.Pi {
		l.driftPhase -= 2 * math.Pi
	}
	lfo := math.Sin(l.driftPhase)*0.5 +
		math.Sin(l.driftPhase*2.7)*0.3 +
		math.Sin(l.driftPhase*4.1)*0.2
	return blended * music.CentsToRatio(lfo*humanizeDriftCents*factor)
}

// applyVibrato multiplies a slow pitch LFO into the ratio, emulating
// the vibrato the correction would otherwise flatten out.
func (l *LeadCorrection) applyVibrato(ratio float64, blockLen int) float64 {
	if l.vibrato <= 0 {
		return ratio
	}
	depth := vibratoDepthCents * l.vibrato / 100
	out := ratio * music.CentsToRatio(math.Sin(l.vibratoPhase)*depth)

	l.vibratoPhase += 2 * math.Pi * vibratoRateHz * float64(blockLen) / l.sampleRate
	if l.vibratoPhase > 2*math.Pi {
		l.vibratoPhase -= 2 * math.Pi
	}
	return out
}

// Process corrects one block in place.
func (l *LeadCorrection) Process(block [][]float64, est detect.Estimate, m music.MappingResult) {
	if len(block) == 0 || len(block[0]) == 0 {
		return
	}
	n := len(block[0])
	if n > len(l.dry[0]) {
		for ch := range l.dry {
			l.dry[ch] = make([]float64, n)
		}
	}

	for ch := 0; ch < len(block) && ch < l.channels; ch++ {
		copy(l.dry[ch][:n], block[ch])
	}

	l.targetRatio = l.targetFor(est, m)
	if est.Voiced {
		l.targetRatio = l.applyHumanization(l.targetRatio)
		l.targetRatio = l.applyVibrato(l.targetRatio, n)
	}

	smoothed := l.currentRatio
	for range n {
		smoothed += l.smoothing * (l.targetRatio - smoothed)
	}
	l.currentRatio = smoothed

	for ch := 0; ch < len(block) && ch < l.channels; ch++ {
		l.shifters[ch].SetPitchRatio(l.currentRatio)
		l.shifters[ch].ProcessInPlace(block[ch])
	}

	if l.mix < 1 {
		wet, dryGain := l.mix, 1-l.mix
		for ch := 0; ch < len(block) && ch < l.channels; ch++ {
			dry := l.dry[ch]
			for i := range block[ch] {
				block[ch][i] = block[ch][i]*wet + dry[i]*dryGain
			}
		}
	}
}
