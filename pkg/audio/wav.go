// Package audio holds PCM helpers and WAV encoding for recorded speech.
package audio

import (
	"errors"
	"fmt"
	"io"
	"sync"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

var (
	// ErrInvalidWAV is returned when input is not a readable PCM WAV stream
	ErrInvalidWAV = errors.New("invalid WAV data")

	// ErrRecorderClosed is returned by Write after Close
	ErrRecorderClosed = errors.New("recorder closed")
)

const (
	bitDepth  = 16
	numChans  = 1
	formatPCM = 1
)

// Recorder streams mono 16-bit frames into a WAV container. The header is
// finalised on Close.
type Recorder struct {
	mu         sync.Mutex
	enc        *wav.Encoder
	sampleRate int
	samples    int
	closed     bool
}

// NewRecorder starts a WAV stream on w
func NewRecorder(w io.WriteSeeker, sampleRate int) *Recorder {
	return &Recorder{
		enc:        wav.NewEncoder(w, sampleRate, bitDepth, numChans, formatPCM),
		sampleRate: sampleRate,
	}
}

// Write appends one frame. Safe for concurrent use.
func (r *Recorder) Write(pcm []int16) error {
	if len(pcm) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRecorderClosed
	}

	buf := &goaudio.IntBuffer{
		Data:           make([]int, len(pcm)),
		Format:         &goaudio.Format{SampleRate: r.sampleRate, NumChannels: numChans},
		SourceBitDepth: bitDepth,
	}
	for i, s := range pcm {
		buf.Data[i] = int(s)
	}
	if err := r.enc.Write(buf); err != nil {
		return fmt.Errorf("failed to write WAV frame: %w", err)
	}
	r.samples += len(pcm)
	return nil
}

// Samples returns how many samples have been written
func (r *Recorder) Samples() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.samples
}

// Close finalises the header. It does not close the underlying writer.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRecorderClosed
	}
	r.closed = true
	return r.enc.Close()
}

// ReadWAV decodes a PCM WAV stream to mono 16-bit samples. Stereo input is
// averaged; 8, 24 and 32-bit input is rescaled.
func ReadWAV(r io.ReadSeeker) ([]int16, int, error) {
	dec := wav.NewDecoder(r)
	dec.ReadInfo()
	if !dec.IsValidFile() {
		return nil, 0, ErrInvalidWAV
	}
	if dec.NumChans != 1 && dec.NumChans != 2 {
		return nil, 0, fmt.Errorf("%w: unsupported channel count %d", ErrInvalidWAV, dec.NumChans)
	}

	full, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
	}

	shift, err := depthShift(int(dec.BitDepth))
	if err != nil {
		return nil, 0, err
	}

	chans := int(dec.NumChans)
	out := make([]int16, len(full.Data)/chans)
	for i := range out {
		sum := 0
		for c := 0; c < chans; c++ {
			sum += full.Data[i*chans+c]
		}
		v := sum / chans
		if dec.BitDepth == 8 {
			v -= 128
		}
		if shift > 0 {
			v <<= shift
		} else if shift < 0 {
			v >>= -shift
		}
		out[i] = int16(v)
	}
	return out, int(dec.SampleRate), nil
}

func depthShift(depth int) (int, error) {
	switch depth {
	case 8:
		return 8, nil
	case 16:
		return 0, nil
	case 24:
		return -8, nil
	case 32:
		return -16, nil
	default:
		return 0, fmt.Errorf("%w: unsupported bit depth %d", ErrInvalidWAV, depth)
	}
}
