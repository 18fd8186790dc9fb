// Package music provides note/frequency conversions, key/scale definitions
// and the mapping of detected pitch onto scale targets and harmony intervals.
package music

import (
	"fmt"
	"math"
)

const (
	// ConcertPitchHz is the tuning reference for A4.
	ConcertPitchHz = 440.0

	// midiNoteA4 is the MIDI note number of the tuning reference.
	midiNoteA4 = 69.0

	semitonesPerOctave = 12
	centsPerSemitone   = 100.0
)

// FrequencyToMidi converts a frequency in Hz to a fractional MIDI note.
// Non-positive frequencies map to 0 (the unvoiced sentinel).
func FrequencyToMidi(frequencyHz float64) float64 {
	if frequencyHz <= 0 {
		return 0
	}

	return midiNoteA4 + semitonesPerOctave*math.Log2(frequencyHz/ConcertPitchHz)
}

// MidiToFrequency converts a fractional MIDI note to a frequency in Hz.
func MidiToFrequency(midiNote float64) float64 {
	return ConcertPitchHz * math.Pow(2, (midiNote-midiNoteA4)/semitonesPerOctave)
}

// PitchRatio returns the frequency ratio that shifts sourceMidi to targetMidi.
func PitchRatio(targetMidi, sourceMidi float64) float64 {
	return math.Pow(2, (targetMidi-sourceMidi)/semitonesPerOctave)
}

// SemitonesToRatio converts a semitone offset to a frequency ratio.
func SemitonesToRatio(semitones float64) float64 {
	return math.Pow(2, semitones/semitonesPerOctave)
}

// RatioToSemitones converts a frequency ratio to semitones.
// Non-positive ratios map to 0.
func RatioToSemitones(ratio float64) float64 {
	if ratio <= 0 {
		return 0
	}

	return semitonesPerOctave * math.Log2(ratio)
}

// CentsToRatio converts a cents offset (1/100 semitone) to a frequency ratio.
func CentsToRatio(cents float64) float64 {
	return math.Pow(2, cents/(semitonesPerOctave*centsPerSemitone))
}

// CentsOffset returns how far midiNote sits from its nearest integer note,
// in cents (-50 to +50).
func CentsOffset(midiNote float64) float64 {
	return (midiNote - math.Round(midiNote)) * centsPerSemitone
}

var noteNames = [semitonesPerOctave]string{
	"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B",
}

// NoteName formats a MIDI note as a name with octave, e.g. 69 -> "A4".
func NoteName(midiNote int) string {
	pc := midiNote % semitonesPerOctave
	if pc < 0 {
		pc += semitonesPerOctave
	}
	octave := int(math.Floor(float64(midiNote)/semitonesPerOctave)) - 1

	return fmt.Sprintf("%s%d", noteNames[pc], octave)
}
