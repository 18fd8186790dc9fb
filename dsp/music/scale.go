package music

// Key is the root pitch class of the active key, 0 = C through 11 = B.
type Key int

// Pitch-class roots in semitone order.
const (
	KeyC Key = iota
	KeyCSharp
	KeyD
	KeyDSharp
	KeyE
	KeyF
	KeyFSharp
	KeyG
	KeyGSharp
	KeyA
	KeyASharp
	KeyB
)

// String returns the key's pitch-class name.
func (k Key) String() string {
	if k < 0 || int(k) >= len(noteNames) {
		return "?"
	}
	return noteNames[k]
}

// Scale selects one of the built-in scale interval sets.
type Scale int

const (
	ScaleMajor Scale = iota
	ScaleNaturalMinor
	ScaleHarmonicMinor
	ScaleMelodicMinor
	ScaleChromatic
)

var scaleNames = [...]string{
	"Major", "Natural Minor", "Harmonic Minor", "Melodic Minor", "Chromatic",
}

// String returns the display name of the scale.
func (s Scale) String() string {
	if s < 0 || int(s) >= len(scaleNames) {
		return "?"
	}
	return scaleNames[s]
}

var scaleIntervals = [...][]int{
	ScaleMajor:         {0, 2, 4, 5, 7, 9, 11},
	ScaleNaturalMinor:  {0, 2, 3, 5, 7, 8, 10},
	ScaleHarmonicMinor: {0, 2, 3, 5, 7, 8, 11},
	ScaleMelodicMinor:  {0, 2, 3, 5, 7, 9, 11},
	ScaleChromatic:     {0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11},
}

// Intervals returns the ascending semitone offsets from the key root that
// define the scale. Unknown scales fall back to chromatic. The returned slice
// is shared and must not be mutated.
func (s Scale) Intervals() []int {
	if s < 0 || int(s) >= len(scaleIntervals) {
		return scaleIntervals[ScaleChromatic]
	}
	return scaleIntervals[s]
}
