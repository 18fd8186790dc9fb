package tuner

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/cwbudde/algo-vecmath"

	"github.com/vanely/nova-tune/dsp/core"
	"github.com/vanely/nova-tune/dsp/delay"
	"github.com/vanely/nova-tune/dsp/detect"
	"github.com/vanely/nova-tune/dsp/effects/formant"
	"github.com/vanely/nova-tune/dsp/effects/pitch"
	"github.com/vanely/nova-tune/dsp/music"
)

const (
	maxVoiceDelayMs = 50.0

	// humanizeIntervalMs is the cadence at which the random pitch and
	// timing offsets are re-rolled.
	humanizeIntervalMs = 100.0

	voicePitchSmoothingMs = 5.0
	voiceGainSmoothingMs  = 10.0

	// delaySmoothing glides the variable delay between re-rolled
	// targets so timing humanization never jumps.
	delaySmoothing = 0.001

	// silenceGain is the fade-out floor below which a disabled voice
	// stops producing output entirely.
	silenceGain = 0.001
)

// HarmonyVoice generates one backing voice from the corrected lead:
// pitch shift to the harmony interval, formant correction, randomized
// timing and detune, then smoothed gain and constant-power pan.
type HarmonyVoice struct {
	sampleRate float64
	channels   int

	shifters []*pitch.Shifter
	formants *formant.Processor
	delays   []*delay.Line
	rng      *rand.Rand

	params VoiceParams

	pitchSmoothing float64
	gainSmoothing  float64

	targetRatio  float64
	currentRatio float64
	targetGain   float64
	currentGain  float64
	targetPanL   float64
	targetPanR   float64
	panL         float64
	panR         float64

	pitchOffsetCents float64
	delayTarget      float64
	currentDelay     float64
	sinceHumanize    int
	humanizeInterval int

	scratch [][]float64
	views   [][]float64

	harmonyMidi float64
}

// NewHarmonyVoice creates a harmony voice. The random source drives
// the humanization; sharing one across voices would correlate their
// timing drift, so give each voice its own.
func NewHarmonyVoice(sampleRate float64, maxBlock, channels int, rng *rand.Rand) (*HarmonyVoice, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("tuner: sample rate must be positive, got %v", sampleRate)
	}
	if maxBlock < 1 || channels < 1 {
		return nil, fmt.Errorf("tuner: need positive block size and channel count, got %d/%d", maxBlock, channels)
	}
	if rng == nil {
		return nil, fmt.Errorf("tuner: harmony voice needs a random source")
	}

	fp, err := formant.New(sampleRate, channels, maxBlock)
	if err != nil {
		return nil, err
	}

	v := &HarmonyVoice{
		sampleRate:       sampleRate,
		channels:         channels,
		shifters:         make([]*pitch.Shifter, channels),
		formants:         fp,
		delays:           make([]*delay.Line, channels),
		rng:              rng,
		pitchSmoothing:   core.SmoothingCoeff(voicePitchSmoothingMs, sampleRate),
		gainSmoothing:    core.SmoothingCoeff(voiceGainSmoothingMs, sampleRate),
		targetRatio:      1,
		currentRatio:     1,
		targetPanL:       math.Sqrt2 / 2,
		targetPanR:       math.Sqrt2 / 2,
		humanizeInterval: int(humanizeIntervalMs * 0.001 * sampleRate),
		scratch:          make([][]float64, channels),
		views:            make([][]float64, channels),
	}
	v.panL, v.panR = v.targetPanL, v.targetPanR

	maxDelay := int(maxVoiceDelayMs * 0.001 * sampleRate)
	for ch := range channels {
		s, err := pitch.NewShifter(sampleRate)
		if err != nil {
			return nil, err
		}
		v.shifters[ch] = s

		d, err := delay.New(maxDelay)
		if err != nil {
			return nil, err
		}
		v.delays[ch] = d
		v.scratch[ch] = make([]float64, maxBlock)
	}
	return v, nil
}

// SetParams installs the voice configuration. Gain and pan targets
// update immediately; the smoothed values glide there during Process.
func (v *HarmonyVoice) SetParams(p VoiceParams) {
	v.params = p

	if p.Enabled {
		v.targetGain = core.DBToLinear(p.LevelDB)
	} else {
		v.targetGain = 0
	}

	angle := (core.Clamp(p.Pan, -1, 1) + 1) * 0.25 * math.Pi
	v.targetPanL = math.Cos(angle)
	v.targetPanR = math.Sin(angle)

	v.formants.SetShift(p.FormantShift)
}

// SetSearchRadius forwards the WSOLA search radius to every channel
// shifter.
func (v *HarmonyVoice) SetSearchRadius(radius int) {
	for _, s := range v.shifters {
		s.SetSearchRadius(radius)
	}
}

// LatencySamples returns the shifter latency. The humanization delay
// is intentional timing variation, not latency.
func (v *HarmonyVoice) LatencySamples() int {
	return v.shifters[0].LatencySamples()
}

// HarmonyMidi reports the most recent harmony target note.
func (v *HarmonyVoice) HarmonyMidi() float64 { return v.harmonyMidi }

// Reset clears all audio history and smoothed state.
func (v *HarmonyVoice) Reset() {
	for ch := range v.shifters {
		v.shifters[ch].SetPitchRatio(1)
		v.shifters[ch].Reset()
		v.delays[ch].Reset()
	}
	v.formants.Reset()

	v.targetRatio = 1
	v.currentRatio = 1
	v.currentGain = 0
	v.panL, v.panR = v.targetPanL, v.targetPanR
	v.pitchOffsetCents = 0
	v.delayTarget = 0
	v.currentDelay = 0
	v.sinceHumanize = 0
	v.harmonyMidi = 0
}

// targetFor computes this voice's pitch ratio from the mapping result.
func (v *HarmonyVoice) targetFor(est detect.Estimate, m music.MappingResult, mapper *music.Mapper) float64 {
	if !est.Voiced || m.LeadTargetMidi <= 0 {
		return 1
	}

	h := music.HarmonyInterval{
		Enabled:        true,
		Mode:           v.params.Mode,
		DiatonicDegree: v.params.DiatonicDegree,
		SemitoneOffset: v.params.SemitoneOffset,
	}
	harmonyMidi := mapper.HarmonyTarget(h, m.LeadTargetMidi)
	harmonyMidi += v.pitchOffsetCents / 100
	v.harmonyMidi = harmonyMidi

	// The source signal is the corrected lead, already at the lead
	// target pitch, so the shift is relative to the target.
	ratio := music.SemitonesToRatio(harmonyMidi - m.LeadTargetMidi)
	return core.Clamp(ratio, pitch.MinRatio, pitch.MaxRatio)
}

// rollHumanization re-randomizes the pitch and timing offsets. Called
// on a ~100 ms cadence, never per sample.
func (v *HarmonyVoice) rollHumanization() {
	pc := v.params.HumanizePitchCents
	next := -pc + 2*pc*v.rng.Float64()
	v.pitchOffsetCents += 0.1 * (next - v.pitchOffsetCents)

	ms := v.params.HumanizeTimingMs * v.rng.Float64()
	v.delayTarget = ms * 0.001 * v.sampleRate
}

// Process renders the voice from the corrected lead and adds it into
// dst. A disabled voice fades its gain to zero, then goes fully idle.
func (v *HarmonyVoice) Process(dst, lead [][]float64, est detect.Estimate, m music.MappingResult, mapper *music.Mapper) {
	if len(lead) == 0 || len(lead[0]) == 0 {
		return
	}
	if !v.params.Enabled && v.currentGain <= silenceGain {
		v.harmonyMidi = 0
		return
	}

	n := len(lead[0])
	channels := len(lead)
	if channels > v.channels {
		channels = v.channels
	}
	if n > len(v.scratch[0]) {
		for ch := range v.scratch {
			v.scratch[ch] = make([]float64, n)
		}
	}

	v.sinceHumanize += n
	if v.sinceHumanize >= v.humanizeInterval {
		v.rollHumanization()
		v.sinceHumanize = 0
	}

	v.targetRatio = v.targetFor(est, m, mapper)
	for range n {
		v.currentRatio += v.pitchSmoothing * (v.targetRatio - v.currentRatio)
	}

	buf := v.views[:channels]
	for ch := range channels {
		buf[ch] = v.scratch[ch][:n]
		copy(buf[ch], lead[ch])

		v.shifters[ch].SetPitchRatio(v.currentRatio)
		v.shifters[ch].ProcessInPlace(buf[ch])
	}

	v.formants.SetPitchCompensation(v.currentRatio)
	v.formants.ProcessBlock(buf)

	if v.params.HumanizeTimingMs > 0 {
		v.applyTimingHumanization(buf)
	}

	v.applyGainAndPan(buf)

	for ch := range channels {
		vecmath.AddBlockInPlace(dst[ch][:n], buf[ch])
	}
}

// applyTimingHumanization runs each channel through a variable delay
// whose length glides toward the re-rolled target.
func (v *HarmonyVoice) applyTimingHumanization(buf [][]float64) {
	for ch := range buf {
		line := v.delays[ch]
		d := buf[ch]
		for i, s := range d {
			if ch == 0 {
				v.currentDelay += delaySmoothing * (v.delayTarget - v.currentDelay)
			}
			line.Write(s)
			d[i] = line.ReadFractional(v.currentDelay + 1)
		}
	}
}

// applyGainAndPan applies the smoothed level and constant-power pan.
// Mono input gets the left pan gain.
func (v *HarmonyVoice) applyGainAndPan(buf [][]float64) {
	n := len(buf[0])
	for i := range n {
		v.currentGain += v.gainSmoothing * (v.targetGain - v.currentGain)
		v.panL += v.gainSmoothing * (v.targetPanL - v.panL)
		v.panR += v.gainSmoothing * (v.targetPanR - v.panR)

		buf[0][i] *= v.currentGain * v.panL
		if len(buf) > 1 {
			buf[1][i] *= v.currentGain * v.panR
		}
	}
}
