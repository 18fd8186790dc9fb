package music

import "math"

// NumHarmonyVoices is the number of harmony lines the mapper computes
// targets for.
const NumHarmonyVoices = 3

// HarmonyMode selects how a harmony voice derives its interval.
type HarmonyMode int

const (
	// HarmonyDiatonic offsets by scale degrees, so the semitone span depends
	// on where in the scale the lead note sits.
	HarmonyDiatonic HarmonyMode = iota

	// HarmonySemitone offsets by a fixed number of semitones.
	HarmonySemitone
)

// HarmonyInterval configures the interval of one harmony voice.
type HarmonyInterval struct {
	Enabled        bool
	Mode           HarmonyMode
	DiatonicDegree int // scale degrees, -7..+7
	SemitoneOffset int // -12..+12
}

// MappingResult is the per-block outcome of mapping a pitch estimate onto the
// active key and scale. Disabled or unvoiced harmony targets are 0.
type MappingResult struct {
	DetectedMidi        float64
	DetectedFrequencyHz float64
	Voiced              bool

	LeadTargetMidi        float64
	LeadTargetFrequencyHz float64
	CentsOffTarget        float64

	HarmonyTargetMidi [NumHarmonyVoices]float64
}

// Mapper quantizes detected pitch to the active key/scale and derives harmony
// target notes. It holds no sample-rate state; all methods are cheap enough
// to run once per block.
type Mapper struct {
	key       Key
	scale     Scale
	intervals []int

	harmonies [NumHarmonyVoices]HarmonyInterval

	last MappingResult
}

// NewMapper returns a mapper set to C major with all harmonies disabled.
func NewMapper() *Mapper {
	return &Mapper{
		key:       KeyC,
		scale:     ScaleMajor,
		intervals: ScaleMajor.Intervals(),
	}
}

// SetKeyScale updates the active key root and scale.
func (m *Mapper) SetKeyScale(key Key, scale Scale) {
	m.key = key
	m.scale = scale
	m.intervals = scale.Intervals()
}

// Key returns the active key root.
func (m *Mapper) Key() Key { return m.key }

// Scale returns the active scale.
func (m *Mapper) Scale() Scale { return m.scale }

// SetHarmony configures the interval of one harmony voice. Out-of-range
// indices are ignored.
func (m *Mapper) SetHarmony(voice int, h HarmonyInterval) {
	if voice < 0 || voice >= NumHarmonyVoices {
		return
	}
	m.harmonies[voice] = h
}

// LastResult returns the most recent mapping.
func (m *Mapper) LastResult() MappingResult { return m.last }

// Reset clears the cached mapping.
func (m *Mapper) Reset() {
	m.last = MappingResult{}
}

// Map quantizes one pitch estimate and computes per-voice harmony targets.
// An unvoiced estimate yields zeroed targets.
func (m *Mapper) Map(detectedMidi, detectedFrequencyHz float64, voiced bool) MappingResult {
	result := MappingResult{
		DetectedMidi:        detectedMidi,
		DetectedFrequencyHz: detectedFrequencyHz,
		Voiced:              voiced,
	}

	if !voiced {
		m.last = result
		return result
	}

	result.LeadTargetMidi = m.QuantizeToScale(detectedMidi)
	result.LeadTargetFrequencyHz = MidiToFrequency(result.LeadTargetMidi)
	result.CentsOffTarget = (detectedMidi - result.LeadTargetMidi) * centsPerSemitone

	for i, h := range m.harmonies {
		if !h.Enabled {
			continue
		}
		result.HarmonyTargetMidi[i] = m.HarmonyTarget(h, result.LeadTargetMidi)
	}

	m.last = result
	return result
}

// HarmonyTarget computes the target MIDI note for one harmony interval from
// the given base note. Disabled intervals return 0.
func (m *Mapper) HarmonyTarget(h HarmonyInterval, baseMidi float64) float64 {
	if !h.Enabled {
		return 0
	}

	switch h.Mode {
	case HarmonySemitone:
		return baseMidi + float64(h.SemitoneOffset)
	default:
		return baseMidi + float64(m.DiatonicToSemitones(h.DiatonicDegree, baseMidi))
	}
}

// QuantizeToScale snaps a fractional MIDI note to the nearest note of the
// active scale. Notes already in the scale round to themselves, so the
// operation is idempotent on integer scale notes. The chromatic scale reduces
// to round-to-nearest.
func (m *Mapper) QuantizeToScale(midiNote float64) float64 {
	if m.scale == ScaleChromatic {
		return math.Round(midiNote)
	}

	rounded := int(math.Round(midiNote))
	relative := m.relativePitchClass(rounded)

	for _, interval := range m.intervals {
		if interval == relative {
			return float64(rounded)
		}
	}

	// Nearest scale offset by circular semitone distance; the ascending scan
	// keeps the first (lowest) offset on ties.
	nearest := 0
	minDistance := semitonesPerOctave

	for _, interval := range m.intervals {
		dist := relative - interval
		if dist < 0 {
			dist = -dist
		}
		if wrapped := semitonesPerOctave - dist; wrapped < dist {
			dist = wrapped
		}

		if dist < minDistance {
			minDistance = dist
			nearest = interval
		}
	}

	adjustment := nearest - relative
	if adjustment > semitonesPerOctave/2 {
		adjustment -= semitonesPerOctave
	}
	if adjustment < -semitonesPerOctave/2 {
		adjustment += semitonesPerOctave
	}

	return float64(rounded + adjustment)
}

// DiatonicToSemitones converts a scale-degree delta into a semitone offset
// relative to fromMidi. The span depends on where fromMidi sits in the scale:
// +2 degrees from C in C major is 4 semitones (C->E) but only 3 from D
// (D->F). Deltas beyond the scale size accumulate +/-12 per octave wrap.
func (m *Mapper) DiatonicToSemitones(scaleDegrees int, fromMidi float64) int {
	if scaleDegrees == 0 {
		return 0
	}

	size := len(m.intervals)
	relative := m.relativePitchClass(int(math.Round(fromMidi)))

	// Degree of the starting note: exact match, else the nearest degree below
	// so off-scale leads still produce tight harmonies.
	startDegree := 0
	for i, interval := range m.intervals {
		if interval == relative {
			startDegree = i
			break
		}
		if interval < relative {
			startDegree = i
		}
	}

	targetDegree := startDegree + scaleDegrees
	octaveShift := 0
	for targetDegree >= size {
		targetDegree -= size
		octaveShift += semitonesPerOctave
	}
	for targetDegree < 0 {
		targetDegree += size
		octaveShift -= semitonesPerOctave
	}

	return m.intervals[targetDegree] - m.intervals[startDegree] + octaveShift
}

// IsNoteInScale reports whether the integer MIDI note lies on the active
// scale.
func (m *Mapper) IsNoteInScale(midiNote int) bool {
	relative := m.relativePitchClass(midiNote)
	for _, interval := range m.intervals {
		if interval == relative {
			return true
		}
	}
	return false
}

func (m *Mapper) relativePitchClass(midiNote int) int {
	pc := midiNote % semitonesPerOctave
	if pc < 0 {
		pc += semitonesPerOctave
	}
	return (pc - int(m.key) + semitonesPerOctave) % semitonesPerOctave
}
