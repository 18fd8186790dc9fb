package tuner

import (
	"github.com/vanely/nova-tune/dsp/detect"
	"github.com/vanely/nova-tune/dsp/music"
)

// QualityMode trades correction quality against CPU cost.
type QualityMode int

const (
	// QualityStudio uses the full waveform-similarity search.
	QualityStudio QualityMode = iota
	// QualityLive halves the search radius for lower CPU on stage.
	QualityLive
)

// VoiceParams configures one harmony voice.
type VoiceParams struct {
	Enabled bool
	Mode    music.HarmonyMode

	// DiatonicDegree is the scale-degree offset (-7..+7) used in
	// diatonic mode; SemitoneOffset the fixed offset in semitone mode.
	DiatonicDegree int
	SemitoneOffset int

	LevelDB      float64 // voice gain in dB
	Pan          float64 // -1 left .. +1 right
	FormantShift float64 // extra formant shift in semitones

	HumanizeTimingMs   float64 // random delay range, 0..50 ms
	HumanizePitchCents float64 // random detune range in cents
}

// Parameters is one immutable snapshot of every user-facing control.
// The engine reads one snapshot per block, so all fields take effect
// together.
type Parameters struct {
	Bypass bool

	InputType detect.VoiceType
	Key       music.Key
	Scale     music.Scale

	RetuneSpeed float64 // 0 slow/natural .. 100 instant
	Humanize    float64 // 0..100
	Vibrato     float64 // 0..100, preserved vibrato depth
	Mix         float64 // 0 dry .. 1 wet

	Quality QualityMode

	Voices [music.NumHarmonyVoices]VoiceParams
}

// DefaultParameters returns the power-on state: C major, moderate
// retune, fully wet, all harmony voices off.
func DefaultParameters() Parameters {
	p := Parameters{
		InputType:   detect.VoiceAltoTenor,
		Key:         music.KeyC,
		Scale:       music.ScaleMajor,
		RetuneSpeed: 50,
		Mix:         1,
	}
	for i := range p.Voices {
		p.Voices[i] = VoiceParams{
			Mode:    music.HarmonyDiatonic,
			LevelDB: -6,
		}
	}
	return p
}

// Preset is a quick harmony-stack configuration applied across all
// three voices at once.
type Preset int

const (
	PresetNone Preset = iota
	PresetPop3rdUp
	PresetPop3rdAnd5th
	PresetThirdsAboveBelow
	PresetFifthsWide
	PresetOctaveDouble
	PresetOctavePlus3rd
	PresetChoirStack
)

// String returns the preset's display name.
func (p Preset) String() string {
	switch p {
	case PresetNone:
		return "None"
	case PresetPop3rdUp:
		return "Pop 3rd Up"
	case PresetPop3rdAnd5th:
		return "Pop 3rd & 5th"
	case PresetThirdsAboveBelow:
		return "Thirds Above & Below"
	case PresetFifthsWide:
		return "Fifths Wide"
	case PresetOctaveDouble:
		return "Octave Double"
	case PresetOctavePlus3rd:
		return "Octave + 3rd"
	case PresetChoirStack:
		return "Choir Stack"
	default:
		return "Unknown"
	}
}

// ApplyPreset overwrites the harmony voice configuration with the
// given preset. Lead correction settings are untouched. Degree counts
// are diatonic: +2 degrees is a third, +4 a fifth, ±7 an octave.
func (p *Parameters) ApplyPreset(preset Preset) {
	voice := func(degree int, pan float64) VoiceParams {
		return VoiceParams{
			Enabled:        true,
			Mode:           music.HarmonyDiatonic,
			DiatonicDegree: degree,
			LevelDB:        -6,
			Pan:            pan,
		}
	}
	off := VoiceParams{Mode: music.HarmonyDiatonic, LevelDB: -6}

	switch preset {
	case PresetPop3rdUp:
		p.Voices = [music.NumHarmonyVoices]VoiceParams{voice(2, 0), off, off}
	case PresetPop3rdAnd5th:
		p.Voices = [music.NumHarmonyVoices]VoiceParams{voice(2, -0.3), voice(4, 0.3), off}
	case PresetThirdsAboveBelow:
		p.Voices = [music.NumHarmonyVoices]VoiceParams{voice(2, -0.3), voice(-2, 0.3), off}
	case PresetFifthsWide:
		p.Voices = [music.NumHarmonyVoices]VoiceParams{voice(4, -0.8), voice(-4, 0.8), off}
	case PresetOctaveDouble:
		p.Voices = [music.NumHarmonyVoices]VoiceParams{voice(7, 0), off, off}
	case PresetOctavePlus3rd:
		p.Voices = [music.NumHarmonyVoices]VoiceParams{voice(7, -0.2), voice(2, 0.2), off}
	case PresetChoirStack:
		p.Voices = [music.NumHarmonyVoices]VoiceParams{voice(2, -0.5), voice(-2, 0.5), voice(4, 0)}
	default:
		p.Voices = [music.NumHarmonyVoices]VoiceParams{off, off, off}
	}
}
