package hal

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/lokutor-ai/audio-manager/pkg/ringbuffer"
)

func validMic() MicConfig {
	return MicConfig{Port: 1, SampleRate: 16000, Bits: 32, MaxFrameSamples: 512, BitShift: 14}
}

func validSpeaker() SpeakerConfig {
	return SpeakerConfig{Port: 0, SampleRate: 16000, Bits: 16, MaxFrameSamples: 1024}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		mic     MicConfig
		speaker SpeakerConfig
	}{
		{"zero mic rate", MicConfig{Bits: 16, MaxFrameSamples: 512}, validSpeaker()},
		{"odd mic bits", MicConfig{SampleRate: 16000, Bits: 24, MaxFrameSamples: 512}, validSpeaker()},
		{"mic shift too large", MicConfig{SampleRate: 16000, Bits: 32, MaxFrameSamples: 512, BitShift: 20}, validSpeaker()},
		{"zero speaker frame", validMic(), SpeakerConfig{SampleRate: 16000, Bits: 16}},
		{"odd speaker bits", validMic(), SpeakerConfig{SampleRate: 16000, Bits: 8, MaxFrameSamples: 1024}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := New(tt.mic, tt.speaker, nil)
			if h != nil {
				t.Fatalf("expected nil HAL")
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestDecodeS32_ShiftAndSaturate(t *testing.T) {
	in := make([]byte, 12)
	binary.LittleEndian.PutUint32(in[0:], uint32(int32(1000)<<14))
	neg := int32(-1000) << 14
	binary.LittleEndian.PutUint32(in[4:], uint32(neg))
	binary.LittleEndian.PutUint32(in[8:], uint32(int32(math.MaxInt32)))

	out := make([]int16, 3)
	n := decodeS32(in, out, 14)
	if n != 3 {
		t.Fatalf("expected 3 samples, got %d", n)
	}
	if out[0] != 1000 || out[1] != -1000 {
		t.Errorf("expected [1000 -1000], got %v", out[:2])
	}
	if out[2] != math.MaxInt16 {
		t.Errorf("expected saturation to %d, got %d", math.MaxInt16, out[2])
	}
}

func TestEncodeDecodeS16(t *testing.T) {
	in := []int16{0, 1, -1, math.MaxInt16, math.MinInt16}
	raw := make([]byte, len(in)*2)
	encodeS16(in, raw)

	out := make([]int16, len(in))
	if n := decodeS16(raw, out); n != len(in) {
		t.Fatalf("expected %d samples, got %d", len(in), n)
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("sample %d: expected %d, got %d", i, in[i], out[i])
		}
	}
}

func TestEncodeS32_WidensToUpperBits(t *testing.T) {
	raw := make([]byte, 4)
	encodeS32([]int16{-2}, raw)
	if got := int32(binary.LittleEndian.Uint32(raw)); got != -2<<16 {
		t.Errorf("expected %d, got %d", -2<<16, got)
	}
}

func TestDecode_ClampsToOutput(t *testing.T) {
	raw := make([]byte, 8)
	out := make([]int16, 2)
	if n := decodeS16(raw, out); n != 2 {
		t.Errorf("expected decode to stop at output length, got %d", n)
	}
}

func TestFlushMic_DropsBacklog(t *testing.T) {
	buf, err := ringbuffer.New(64, ringbuffer.WithOverwrite())
	if err != nil {
		t.Fatalf("ringbuffer.New failed: %v", err)
	}
	defer buf.Close()
	h := &HAL{micBuf: buf}

	if _, err := buf.Write([]int16{1, 2, 3, 4}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	h.FlushMic()
	if n := buf.Length(); n != 0 {
		t.Errorf("expected empty mic queue after flush, got %d samples", n)
	}

	if _, err := buf.Write([]int16{5}); err != nil {
		t.Fatalf("Write after flush failed: %v", err)
	}
	out := make([]int16, 1)
	if n, err := buf.Read(out); err != nil || n != 1 || out[0] != 5 {
		t.Errorf("expected fresh sample 5, got %v (n=%d, err=%v)", out, n, err)
	}
}
