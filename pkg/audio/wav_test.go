package audio

import (
	"bytes"
	"errors"
	"io"
	"os"
	"testing"
)

// recordTo writes frames through a Recorder into a temp file and returns it
// rewound for reading
func recordTo(t *testing.T, sampleRate int, frames ...[]int16) *os.File {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "rec-*.wav")
	if err != nil {
		t.Fatalf("CreateTemp failed: %v", err)
	}
	t.Cleanup(func() { f.Close() })

	rec := NewRecorder(f, sampleRate)
	for i, frame := range frames {
		if err := rec.Write(frame); err != nil {
			t.Fatalf("Write %d failed: %v", i, err)
		}
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		t.Fatalf("Seek failed: %v", err)
	}
	return f
}

func TestRecorder_WritesPCMWAV(t *testing.T) {
	pcm := []int16{0, 1000, -1000, 32767, -32768}
	f := recordTo(t, 16000, pcm)

	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("RIFF")) {
		t.Errorf("Expected RIFF prefix")
	}
	if !bytes.Contains(data, []byte("WAVE")) {
		t.Errorf("Expected WAVE format identifier")
	}
	if want := 44 + 2*len(pcm); len(data) != want {
		t.Errorf("Expected length %d, got %d", want, len(data))
	}

	got, rate, err := ReadWAV(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ReadWAV failed: %v", err)
	}
	if rate != 16000 {
		t.Errorf("Expected sample rate 16000, got %d", rate)
	}
	if len(got) != len(pcm) {
		t.Fatalf("Expected %d samples, got %d", len(pcm), len(got))
	}
	for i := range pcm {
		if got[i] != pcm[i] {
			t.Errorf("sample %d: expected %d, got %d", i, pcm[i], got[i])
		}
	}
}

func TestRecorder_StreamsFrames(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "rec-*.wav")
	if err != nil {
		t.Fatalf("CreateTemp failed: %v", err)
	}
	defer f.Close()
	rec := NewRecorder(f, 8000)

	for i := 0; i < 3; i++ {
		frame := []int16{int16(i), int16(i + 10)}
		if err := rec.Write(frame); err != nil {
			t.Fatalf("Write %d failed: %v", i, err)
		}
	}
	if err := rec.Write(nil); err != nil {
		t.Errorf("empty write should be ignored, got %v", err)
	}
	if rec.Samples() != 6 {
		t.Errorf("Expected 6 samples, got %d", rec.Samples())
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := rec.Write([]int16{1}); !errors.Is(err, ErrRecorderClosed) {
		t.Errorf("Expected ErrRecorderClosed, got %v", err)
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		t.Fatalf("Seek failed: %v", err)
	}
	got, rate, err := ReadWAV(f)
	if err != nil {
		t.Fatalf("ReadWAV failed: %v", err)
	}
	if rate != 8000 || len(got) != 6 {
		t.Errorf("Expected 6 samples at 8000 Hz, got %d at %d", len(got), rate)
	}
	if got[5] != 12 {
		t.Errorf("Expected last sample 12, got %d", got[5])
	}
}

func TestReadWAV_Invalid(t *testing.T) {
	_, _, err := ReadWAV(bytes.NewReader([]byte("definitely not a wav file, just text")))
	if !errors.Is(err, ErrInvalidWAV) {
		t.Errorf("Expected ErrInvalidWAV, got %v", err)
	}
}

func TestPCMBytes(t *testing.T) {
	samples := []int16{1, -1, 256}
	data := Int16ToBytes(samples)
	if !bytes.Equal(data, []byte{0x01, 0x00, 0xff, 0xff, 0x00, 0x01}) {
		t.Errorf("unexpected encoding %x", data)
	}

	back := BytesToInt16(append(data, 0x7f))
	if len(back) != 3 || back[1] != -1 || back[2] != 256 {
		t.Errorf("unexpected decoding %v", back)
	}
}
