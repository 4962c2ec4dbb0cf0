// Package ringbuffer provides a fixed-capacity queue of 16-bit PCM samples
// shared between the playback path and the acoustic front-end.
package ringbuffer

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/smallnest/ringbuffer"
)

const bytesPerSample = 2

var (
	// ErrClosed is returned by operations on a closed buffer
	ErrClosed = errors.New("ring buffer closed")

	// ErrFull is returned when a write does not fit and overwrite is disabled
	ErrFull = errors.New("ring buffer full")

	// ErrInvalidCapacity is returned when a buffer is created with capacity <= 0
	ErrInvalidCapacity = errors.New("ring buffer capacity must be positive")
)

// Buffer is a thread-safe circular queue of int16 samples. Writes are
// all-or-nothing unless the buffer was created with WithOverwrite, in which
// case the oldest samples are discarded to make room.
type Buffer struct {
	mu        sync.Mutex
	rb        *ringbuffer.RingBuffer
	capacity  int
	overwrite bool
	closed    bool
	scratch   []byte
}

// Option configures a Buffer
type Option func(*Buffer)

// WithOverwrite makes writes drop the oldest samples instead of failing
// when the buffer is full.
func WithOverwrite() Option {
	return func(b *Buffer) {
		b.overwrite = true
	}
}

// New creates a buffer holding up to capacity samples
func New(capacity int, opts ...Option) (*Buffer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}
	b := &Buffer{
		rb:       ringbuffer.New(capacity * bytesPerSample),
		capacity: capacity,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Write queues samples. It returns the number of samples written.
func (b *Buffer) Write(samples []int16) (int, error) {
	if len(samples) == 0 {
		return 0, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, ErrClosed
	}

	if b.overwrite {
		if len(samples) > b.capacity {
			samples = samples[len(samples)-b.capacity:]
		}
		if over := len(samples) - b.rb.Free()/bytesPerSample; over > 0 {
			b.discardLocked(over)
		}
	} else if len(samples) > b.rb.Free()/bytesPerSample {
		return 0, ErrFull
	}

	data := b.encode(samples)
	n, err := b.rb.Write(data)
	if err != nil {
		return n / bytesPerSample, fmt.Errorf("ring buffer write: %w", err)
	}
	return n / bytesPerSample, nil
}

// Read dequeues up to len(dst) samples. An empty buffer yields 0 without error.
func (b *Buffer) Read(dst []int16) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, ErrClosed
	}

	avail := b.rb.Length() / bytesPerSample
	if avail == 0 {
		return 0, nil
	}
	want := len(dst)
	if want > avail {
		want = avail
	}

	raw := b.scratchLocked(want * bytesPerSample)
	n, err := b.rb.Read(raw)
	if err != nil && !errors.Is(err, ringbuffer.ErrIsEmpty) {
		return 0, fmt.Errorf("ring buffer read: %w", err)
	}
	samples := n / bytesPerSample
	for i := 0; i < samples; i++ {
		dst[i] = int16(binary.LittleEndian.Uint16(raw[i*bytesPerSample:]))
	}
	return samples, nil
}

// Length returns the number of queued samples
func (b *Buffer) Length() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0
	}
	return b.rb.Length() / bytesPerSample
}

// Free returns how many samples can be written without overwriting
func (b *Buffer) Free() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0
	}
	return b.rb.Free() / bytesPerSample
}

// Capacity returns the buffer size in samples
func (b *Buffer) Capacity() int {
	return b.capacity
}

// Reset drops all queued samples
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rb.Reset()
}

// Close releases the buffer. Further reads and writes fail with ErrClosed.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	b.closed = true
	b.rb.Reset()
	b.scratch = nil
	return nil
}

// discardLocked drops the oldest n samples (caller must lock)
func (b *Buffer) discardLocked(n int) {
	avail := b.rb.Length() / bytesPerSample
	if n > avail {
		n = avail
	}
	if n == 0 {
		return
	}
	_, _ = b.rb.Read(b.scratchLocked(n * bytesPerSample))
}

func (b *Buffer) scratchLocked(size int) []byte {
	if cap(b.scratch) < size {
		b.scratch = make([]byte, size)
	}
	return b.scratch[:size]
}

func (b *Buffer) encode(samples []int16) []byte {
	out := make([]byte, len(samples)*bytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*bytesPerSample:], uint16(s))
	}
	return out
}
