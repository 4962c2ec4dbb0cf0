package afe

import (
	"testing"
	"time"
)

func TestFramesFor(t *testing.T) {
	tests := []struct {
		name     string
		d        time.Duration
		frameDur time.Duration
		want     int
	}{
		{"zero duration", 0, 32 * time.Millisecond, 1},
		{"exact", 64 * time.Millisecond, 32 * time.Millisecond, 2},
		{"rounds up", 200 * time.Millisecond, 32 * time.Millisecond, 7},
		{"shorter than frame", 5 * time.Millisecond, 32 * time.Millisecond, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := framesFor(tt.d, tt.frameDur); got != tt.want {
				t.Errorf("framesFor(%v, %v) = %d, want %d", tt.d, tt.frameDur, got, tt.want)
			}
		})
	}
}

func TestRMSVAD_Hysteresis(t *testing.T) {
	vad := newRMSVAD(VADConfig{Enabled: true, Mode: 1, MinSpeech: 20 * time.Millisecond, MinSilence: 30 * time.Millisecond}, 10*time.Millisecond)

	loud := tone(6000)
	quiet := silence()

	if ev := vad.process(loud); ev != 0 {
		t.Errorf("first loud frame should not start speech, got %v", ev)
	}
	if ev := vad.process(loud); ev != EventVADStart {
		t.Errorf("expected VAD_START on second loud frame, got %v", ev)
	}
	if ev := vad.process(loud); ev != 0 {
		t.Errorf("expected no event while speaking, got %v", ev)
	}

	// a short pause must not end speech
	vad.process(quiet)
	vad.process(quiet)
	if ev := vad.process(loud); ev != 0 {
		t.Errorf("expected speech to continue, got %v", ev)
	}

	for i := 0; i < 2; i++ {
		if ev := vad.process(quiet); ev != 0 {
			t.Errorf("silence frame %d ended speech early", i)
		}
	}
	if ev := vad.process(quiet); ev != EventVADEnd {
		t.Errorf("expected VAD_END, got %v", ev)
	}
}

func TestRMSVAD_ModeClamp(t *testing.T) {
	if v := newRMSVAD(VADConfig{Mode: -3}, time.Millisecond); v.threshold != vadThresholds[0] {
		t.Errorf("negative mode threshold = %v", v.threshold)
	}
	if v := newRMSVAD(VADConfig{Mode: 9}, time.Millisecond); v.threshold != vadThresholds[3] {
		t.Errorf("large mode threshold = %v", v.threshold)
	}
}

func TestLoudnessDB(t *testing.T) {
	if got := loudnessDB(silence()); got != -96 {
		t.Errorf("silence loudness = %v, want -96", got)
	}
	full := tone(32767)
	if got := loudnessDB(full); got > 0 || got < -0.01 {
		t.Errorf("full-scale loudness = %v, want ~0", got)
	}
	half := tone(16384)
	if got := loudnessDB(half); got < -6.1 || got > -5.9 {
		t.Errorf("half-scale loudness = %v, want ~-6", got)
	}
}
