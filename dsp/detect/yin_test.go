package detect

import (
	"math"
	"testing"

	"github.com/vanely/nova-tune/dsp/signal"
)

func centsBetween(a, b float64) float64 {
	return 1200 * math.Log2(a/b)
}

func TestDetector_SineAcrossSampleRates(t *testing.T) {
	cases := []struct {
		name       string
		sampleRate float64
		freq       float64
		voice      VoiceType
	}{
		{"A4 at 44.1k", 44100, 440, VoiceAltoTenor},
		{"A4 at 48k", 48000, 440, VoiceAltoTenor},
		{"A4 at 96k", 96000, 440, VoiceAltoTenor},
		{"low G at 48k", 48000, 98, VoiceLowMale},
		{"soprano C6 at 48k", 48000, 1046.5, VoiceSoprano},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			det, err := NewDetector(tc.sampleRate, tc.voice)
			if err != nil {
				t.Fatalf("NewDetector: %v", err)
			}

			tone, err := signal.NewGenerator(tc.sampleRate).Sine(tc.freq, 0.5, det.FrameSize()*3)
			if err != nil {
				t.Fatalf("Sine: %v", err)
			}
			det.Process(tone)

			est := det.Latest()
			if !est.Voiced {
				t.Fatal("expected voiced estimate for steady sine")
			}
			if off := math.Abs(centsBetween(est.FrequencyHz, tc.freq)); off > 1 {
				t.Errorf("frequency: got %v Hz, want %v Hz (off %.2f cents)", est.FrequencyHz, tc.freq, off)
			}
			if est.Confidence < 0.8 {
				t.Errorf("confidence: got %v, want >= 0.8 for clean sine", est.Confidence)
			}
			wantPeriod := tc.sampleRate / tc.freq
			if math.Abs(est.PeriodSamples-wantPeriod) > wantPeriod*0.01 {
				t.Errorf("period: got %v samples, want ~%v", est.PeriodSamples, wantPeriod)
			}
		})
	}
}

func TestDetector_SilenceIsUnvoiced(t *testing.T) {
	det, err := NewDetector(48000, VoiceAltoTenor)
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}

	det.Process(signal.NewGenerator(48000).Silence(det.FrameSize() * 2))

	est := det.Latest()
	if est.Voiced {
		t.Error("silence: expected unvoiced")
	}
	if est.FrequencyHz != 0 || est.MidiNote != 0 {
		t.Errorf("silence: got freq %v midi %v, want zeroes", est.FrequencyHz, est.MidiNote)
	}
}

func TestDetector_NoiseIsUnvoiced(t *testing.T) {
	det, err := NewDetector(48000, VoiceAltoTenor)
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}

	noise, err := signal.NewGenerator(48000, signal.WithSeed(3)).WhiteNoise(0.5, det.FrameSize()*2)
	if err != nil {
		t.Fatalf("WhiteNoise: %v", err)
	}
	det.Process(noise)

	if det.Latest().Voiced {
		t.Error("white noise: expected unvoiced")
	}
}

func TestDetector_OutOfRangeRejected(t *testing.T) {
	// 1500 Hz sits above the alto/tenor ceiling of 750 Hz.
	det, err := NewDetector(48000, VoiceAltoTenor)
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}

	tone, err := signal.NewGenerator(48000).Sine(1500, 0.5, det.FrameSize()*2)
	if err != nil {
		t.Fatalf("Sine: %v", err)
	}
	det.Process(tone)

	if est := det.Latest(); est.Voiced {
		// A harmonic-free tone above range may alias to a subharmonic;
		// it must at least stay inside the configured range.
		min, max := VoiceAltoTenor.Range()
		if est.FrequencyHz < min || est.FrequencyHz > max {
			t.Errorf("estimate %v Hz escaped the %v..%v Hz range", est.FrequencyHz, min, max)
		}
	}
}

func TestDetector_Reset(t *testing.T) {
	det, err := NewDetector(48000, VoiceAltoTenor)
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}

	tone, err := signal.NewGenerator(48000).Sine(440, 0.5, det.FrameSize()*2)
	if err != nil {
		t.Fatalf("Sine: %v", err)
	}
	det.Process(tone)
	if !det.Latest().Voiced {
		t.Fatal("expected voiced before reset")
	}

	det.Reset()
	if det.Latest().Voiced {
		t.Error("expected cleared estimate after reset")
	}
}

func TestDetector_FrameSizing(t *testing.T) {
	det44, err := NewDetector(44100, VoiceAltoTenor)
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	if det44.FrameSize() != 2048 {
		t.Errorf("44.1k frame: got %d, want 2048", det44.FrameSize())
	}
	if det44.HopSize() != 256 {
		t.Errorf("44.1k hop: got %d, want 256", det44.HopSize())
	}

	det48, err := NewDetector(48000, VoiceAltoTenor)
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	if det48.FrameSize() != 2048 {
		t.Errorf("48k frame: got %d, want 2048", det48.FrameSize())
	}

	det96, err := NewDetector(96000, VoiceAltoTenor)
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	if det96.FrameSize() != 4096 {
		t.Errorf("96k frame: got %d, want 4096", det96.FrameSize())
	}
}

func TestNewDetector_RejectsBadSampleRate(t *testing.T) {
	if _, err := NewDetector(0, VoiceAltoTenor); err == nil {
		t.Fatal("expected error for zero sample rate")
	}
}
