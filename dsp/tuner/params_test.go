package tuner

import (
	"testing"

	"github.com/vanely/nova-tune/dsp/music"
)

func TestDefaultParameters(t *testing.T) {
	p := DefaultParameters()

	if p.Bypass {
		t.Error("default should not be bypassed")
	}
	if p.Key != music.KeyC || p.Scale != music.ScaleMajor {
		t.Errorf("default key/scale: got %v %v, want C major", p.Key, p.Scale)
	}
	if p.Mix != 1 {
		t.Errorf("default mix: got %v, want fully wet", p.Mix)
	}
	for i, v := range p.Voices {
		if v.Enabled {
			t.Errorf("voice %d enabled by default", i)
		}
	}
}

func TestApplyPreset(t *testing.T) {
	cases := []struct {
		preset  Preset
		enabled [music.NumHarmonyVoices]bool
		degrees [music.NumHarmonyVoices]int
	}{
		{PresetNone, [3]bool{false, false, false}, [3]int{0, 0, 0}},
		{PresetPop3rdUp, [3]bool{true, false, false}, [3]int{2, 0, 0}},
		{PresetPop3rdAnd5th, [3]bool{true, true, false}, [3]int{2, 4, 0}},
		{PresetThirdsAboveBelow, [3]bool{true, true, false}, [3]int{2, -2, 0}},
		{PresetFifthsWide, [3]bool{true, true, false}, [3]int{4, -4, 0}},
		{PresetOctaveDouble, [3]bool{true, false, false}, [3]int{7, 0, 0}},
		{PresetOctavePlus3rd, [3]bool{true, true, false}, [3]int{7, 2, 0}},
		{PresetChoirStack, [3]bool{true, true, true}, [3]int{2, -2, 4}},
	}

	for _, tc := range cases {
		t.Run(tc.preset.String(), func(t *testing.T) {
			p := DefaultParameters()
			p.RetuneSpeed = 73 // must survive the preset
			p.ApplyPreset(tc.preset)

			if p.RetuneSpeed != 73 {
				t.Error("preset touched lead correction settings")
			}
			for i := range p.Voices {
				if p.Voices[i].Enabled != tc.enabled[i] {
					t.Errorf("voice %d enabled: got %v, want %v", i, p.Voices[i].Enabled, tc.enabled[i])
				}
				if p.Voices[i].DiatonicDegree != tc.degrees[i] {
					t.Errorf("voice %d degree: got %d, want %d", i, p.Voices[i].DiatonicDegree, tc.degrees[i])
				}
				if p.Voices[i].Mode != music.HarmonyDiatonic {
					t.Errorf("voice %d mode: got %v, want diatonic", i, p.Voices[i].Mode)
				}
			}
		})
	}
}

func TestPresetStrings(t *testing.T) {
	if PresetChoirStack.String() != "Choir Stack" {
		t.Errorf("got %q", PresetChoirStack.String())
	}
	if Preset(99).String() != "Unknown" {
		t.Errorf("got %q", Preset(99).String())
	}
}

func TestFifthsWidePansOutward(t *testing.T) {
	p := DefaultParameters()
	p.ApplyPreset(PresetFifthsWide)
	if p.Voices[0].Pan >= 0 || p.Voices[1].Pan <= 0 {
		t.Errorf("wide preset pans: got %v and %v, want left/right split",
			p.Voices[0].Pan, p.Voices[1].Pan)
	}
}
