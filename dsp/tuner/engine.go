// Package tuner assembles the full vocal processing chain: pitch
// detection, scale mapping, lead correction and harmony generation,
// orchestrated per block behind a lock-free parameter snapshot.
package tuner

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync/atomic"

	"github.com/cwbudde/algo-vecmath"

	"github.com/vanely/nova-tune/dsp/detect"
	"github.com/vanely/nova-tune/dsp/music"
)

// ErrNotPrepared is returned by Process before Prepare has been called.
var ErrNotPrepared = errors.New("tuner: engine not prepared")

// softClipDrive keeps roughly 1.5 dB of headroom before the tanh
// limiter bites.
const softClipDrive = 0.9

// Status is a snapshot of what the engine heard and did, safe to read
// from a UI thread while audio runs.
type Status struct {
	Voiced              bool
	DetectedFrequencyHz float64
	DetectedMidi        float64
	Confidence          float64
	TargetFrequencyHz   float64
	CentsOffTarget      float64
	CorrectionSemitones float64

	// HarmonyMidi holds each voice's current target note, zero for
	// idle voices.
	HarmonyMidi [music.NumHarmonyVoices]float64
}

// NoteName returns the detected note's name, or "-" when unvoiced.
func (s Status) NoteName() string {
	if !s.Voiced || s.DetectedMidi <= 0 {
		return "-"
	}
	return music.NoteName(int(math.Round(s.DetectedMidi)))
}

// Engine is the top-level processor. Construct with New, size with
// Prepare, then call Process from the audio thread. SetParameters may
// be called concurrently from any thread.
type Engine struct {
	params atomic.Pointer[Parameters]

	sampleRate float64
	maxBlock   int
	channels   int
	prepared   bool

	detector *detect.Detector
	mapper   *music.Mapper
	lead     *LeadCorrection
	voices   [music.NumHarmonyVoices]*HarmonyVoice

	inputType detect.VoiceType
	quality   QualityMode
	seed      int64

	mono     []float64
	leadBuf  [][]float64
	harmBuf  [][]float64
	leadView [][]float64
	harmView [][]float64

	voiced              atomic.Bool
	detectedFrequencyHz atomic.Uint64
	detectedMidi        atomic.Uint64
	confidence          atomic.Uint64
	targetFrequencyHz   atomic.Uint64
	centsOffTarget      atomic.Uint64
	correction          atomic.Uint64
	harmonyMidi         [music.NumHarmonyVoices]atomic.Uint64
}

// Option configures an Engine.
type Option func(*Engine)

// WithSeed fixes the humanization random sequence, for reproducible
// rendering and tests.
func WithSeed(seed int64) Option {
	return func(e *Engine) { e.seed = seed }
}

// New creates an unprepared engine with default parameters.
func New(opts ...Option) *Engine {
	e := &Engine{seed: 1}
	p := DefaultParameters()
	e.params.Store(&p)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetParameters atomically replaces the parameter snapshot. The next
// Process call picks it up in full.
func (e *Engine) SetParameters(p Parameters) {
	e.params.Store(&p)
}

// Parameters returns the current snapshot.
func (e *Engine) Parameters() Parameters {
	return *e.params.Load()
}

// Prepare sizes every component for the given stream format. It may be
// called again to change formats; all audio history is dropped.
func (e *Engine) Prepare(sampleRate float64, maxBlock, channels int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("tuner: sample rate must be positive, got %v", sampleRate)
	}
	if maxBlock < 1 {
		return fmt.Errorf("tuner: max block must be positive, got %d", maxBlock)
	}
	if channels < 1 {
		return fmt.Errorf("tuner: need at least one channel, got %d", channels)
	}

	p := e.params.Load()

	det, err := detect.NewDetector(sampleRate, p.InputType)
	if err != nil {
		return err
	}
	lead, err := NewLeadCorrection(sampleRate, maxBlock, channels)
	if err != nil {
		return err
	}
	var voices [music.NumHarmonyVoices]*HarmonyVoice
	for i := range voices {
		v, err := NewHarmonyVoice(sampleRate, maxBlock, channels, rand.New(rand.NewSource(e.seed+int64(i))))
		if err != nil {
			return err
		}
		voices[i] = v
	}

	e.sampleRate = sampleRate
	e.maxBlock = maxBlock
	e.channels = channels
	e.detector = det
	e.mapper = music.NewMapper()
	e.lead = lead
	e.voices = voices
	e.inputType = p.InputType
	e.quality = QualityStudio

	e.mono = make([]float64, maxBlock)
	e.leadBuf = make([][]float64, channels)
	e.harmBuf = make([][]float64, channels)
	e.leadView = make([][]float64, channels)
	e.harmView = make([][]float64, channels)
	for ch := range channels {
		e.leadBuf[ch] = make([]float64, maxBlock)
		e.harmBuf[ch] = make([]float64, maxBlock)
	}

	e.prepared = true
	e.Reset()
	return nil
}

// Reset clears all audio history without changing the prepared state
// or parameters.
func (e *Engine) Reset() {
	if !e.prepared {
		return
	}
	e.detector.Reset()
	e.mapper.Reset()
	e.lead.Reset()
	for _, v := range e.voices {
		v.Reset()
	}
	e.storeStatus(detect.Estimate{}, music.MappingResult{}, 0)
}

// LatencySamples reports the engine's output delay. Detection and
// harmony run in parallel with the lead path and share its shifter
// window, so the lead correction latency is the total.
func (e *Engine) LatencySamples() int {
	if !e.prepared {
		return 0
	}
	return e.lead.LatencySamples()
}

// Status returns the latest detection and correction snapshot.
func (e *Engine) Status() Status {
	s := Status{
		Voiced:              e.voiced.Load(),
		DetectedFrequencyHz: math.Float64frombits(e.detectedFrequencyHz.Load()),
		DetectedMidi:        math.Float64frombits(e.detectedMidi.Load()),
		Confidence:          math.Float64frombits(e.confidence.Load()),
		TargetFrequencyHz:   math.Float64frombits(e.targetFrequencyHz.Load()),
		CentsOffTarget:      math.Float64frombits(e.centsOffTarget.Load()),
		CorrectionSemitones: math.Float64frombits(e.correction.Load()),
	}
	for i := range s.HarmonyMidi {
		s.HarmonyMidi[i] = math.Float64frombits(e.harmonyMidi[i].Load())
	}
	return s
}

func (e *Engine) storeStatus(est detect.Estimate, m music.MappingResult, correction float64) {
	e.voiced.Store(est.Voiced)
	e.detectedFrequencyHz.Store(math.Float64bits(est.FrequencyHz))
	e.detectedMidi.Store(math.Float64bits(est.MidiNote))
	e.confidence.Store(math.Float64bits(est.Confidence))
	e.targetFrequencyHz.Store(math.Float64bits(m.LeadTargetFrequencyHz))
	e.centsOffTarget.Store(math.Float64bits(m.CentsOffTarget))
	e.correction.Store(math.Float64bits(correction))
	for i, v := range e.voices {
		e.harmonyMidi[i].Store(math.Float64bits(v.HarmonyMidi()))
	}
}

// applyParameters pushes the snapshot into every component. Input type
// and block growth force partial re-preparation.
func (e *Engine) applyParameters(p *Parameters, blockLen int) error {
	if blockLen > e.maxBlock || p.InputType != e.inputType {
		if err := e.regrow(p, blockLen); err != nil {
			return err
		}
	}

	e.mapper.SetKeyScale(p.Key, p.Scale)
	for i, vp := range p.Voices {
		e.mapper.SetHarmony(i, music.HarmonyInterval{
			Enabled:        vp.Enabled,
			Mode:           vp.Mode,
			DiatonicDegree: vp.DiatonicDegree,
			SemitoneOffset: vp.SemitoneOffset,
		})
		e.voices[i].SetParams(vp)
	}

	e.lead.SetRetuneSpeed(p.RetuneSpeed)
	e.lead.SetHumanize(p.Humanize)
	e.lead.SetVibrato(p.Vibrato)
	e.lead.SetMix(p.Mix)

	if p.Quality != e.quality {
		e.quality = p.Quality
		radius := e.lead.shifters[0].WindowSize() / 8
		if p.Quality == QualityLive {
			radius /= 2
		}
		e.lead.SetSearchRadius(radius)
		for _, v := range e.voices {
			v.SetSearchRadius(radius)
		}
	}
	return nil
}

// regrow re-prepares the stateful components for a larger block size
// or a changed detector range. Some hosts legitimately grow the block
// mid-stream.
func (e *Engine) regrow(p *Parameters, blockLen int) error {
	if blockLen < e.maxBlock {
		blockLen = e.maxBlock
	}
	if p.InputType != e.inputType {
		det, err := detect.NewDetector(e.sampleRate, p.InputType)
		if err != nil {
			return err
		}
		e.detector = det
		e.inputType = p.InputType
	}
	if blockLen > e.maxBlock {
		lead, err := NewLeadCorrection(e.sampleRate, blockLen, e.channels)
		if err != nil {
			return err
		}
		for i := range e.voices {
			v, err := NewHarmonyVoice(e.sampleRate, blockLen, e.channels, rand.New(rand.NewSource(e.seed+int64(i))))
			if err != nil {
				return err
			}
			e.voices[i] = v
		}
		e.lead = lead
		e.maxBlock = blockLen
		e.mono = make([]float64, blockLen)
		for ch := range e.channels {
			e.leadBuf[ch] = make([]float64, blockLen)
			e.harmBuf[ch] = make([]float64, blockLen)
		}
		e.quality = QualityStudio
	}
	return nil
}

// Process runs the full chain on one block in place. Channel slices
// must all share the same length.
func (e *Engine) Process(block [][]float64) error {
	if !e.prepared {
		return ErrNotPrepared
	}
	if len(block) == 0 || len(block[0]) == 0 {
		return nil
	}
	n := len(block[0])
	for ch := range block {
		if len(block[ch]) != n {
			return fmt.Errorf("tuner: channel %d has %d samples, channel 0 has %d", ch, len(block[ch]), n)
		}
	}

	p := e.params.Load()
	if p.Bypass {
		return nil
	}
	if err := e.applyParameters(p, n); err != nil {
		return err
	}

	// Detection runs on the mono sum.
	mono := e.mono[:n]
	copy(mono, block[0])
	for ch := 1; ch < len(block); ch++ {
		vecmath.AddBlockInPlace(mono, block[ch])
	}
	if len(block) > 1 {
		vecmath.ScaleBlock(mono, mono, 1/float64(len(block)))
	}
	e.detector.Process(mono)
	est := e.detector.Latest()

	m := e.mapper.Map(est.MidiNote, est.FrequencyHz, est.Voiced)

	channels := len(block)
	if channels > e.channels {
		channels = e.channels
	}

	leadView := e.leadView[:channels]
	harmView := e.harmView[:channels]
	for ch := range channels {
		copy(e.leadBuf[ch][:n], block[ch])
		leadView[ch] = e.leadBuf[ch][:n]
		harmView[ch] = e.harmBuf[ch][:n]
		for i := range harmView[ch] {
			harmView[ch][i] = 0
		}
	}

	e.lead.Process(leadView, est, m)

	for _, v := range e.voices {
		v.Process(harmView, leadView, est, m, e.mapper)
	}

	for ch := range channels {
		out := block[ch]
		lead := leadView[ch]
		harm := harmView[ch]
		for i := range out[:n] {
			mixed := lead[i] + harm[i]
			out[i] = math.Tanh(mixed*softClipDrive) / softClipDrive
		}
	}

	e.storeStatus(est, m, e.lead.CorrectionSemitones())
	return nil
}
