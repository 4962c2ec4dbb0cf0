// Package playback drives the speaker from a queue of PCM samples and
// mirrors everything it plays into a reference queue for echo cancellation.
package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lokutor-ai/audio-manager/pkg/logging"
	"github.com/lokutor-ai/audio-manager/pkg/ringbuffer"
)

var (
	// ErrQueueFull is returned when queued audio does not drain in time
	ErrQueueFull = errors.New("playback queue full")

	// ErrClosed is returned by operations on a closed controller
	ErrClosed = errors.New("playback controller closed")

	// ErrInvalidConfig is returned by New for unusable parameters
	ErrInvalidConfig = errors.New("invalid playback configuration")
)

// DefaultWriteTimeout bounds how long Write waits for queue space
const DefaultWriteTimeout = 2 * time.Second

// Speaker accepts frames for output, blocking at the hardware rate
type Speaker interface {
	WriteSpeaker(ctx context.Context, frame []int16) error
}

// VolumeReader exposes the current playback volume in percent (0-100)
type VolumeReader interface {
	Volume() uint8
}

// Config configures a Controller
type Config struct {
	Speaker          Speaker
	PlaybackSamples  int
	ReferenceSamples int
	FrameSamples     int
	Volume           VolumeReader
	WriteTimeout     time.Duration
	Logger           logging.Logger
}

// Controller owns the playback and reference queues
type Controller struct {
	cfg    Config
	logger logging.Logger

	queue     *ringbuffer.Buffer
	reference *ringbuffer.Buffer

	// stateMu orders Start against the drain check in the loop
	stateMu sync.Mutex
	running atomic.Bool
	closed  atomic.Bool

	wake  chan struct{}
	space chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates both queues and starts the playback loop in the stopped state
func New(cfg Config) (*Controller, error) {
	if cfg.Speaker == nil {
		return nil, fmt.Errorf("%w: speaker is nil", ErrInvalidConfig)
	}
	if cfg.FrameSamples <= 0 || cfg.PlaybackSamples < cfg.FrameSamples {
		return nil, fmt.Errorf("%w: frame %d, queue %d samples", ErrInvalidConfig, cfg.FrameSamples, cfg.PlaybackSamples)
	}
	if cfg.ReferenceSamples <= 0 {
		return nil, fmt.Errorf("%w: reference queue %d samples", ErrInvalidConfig, cfg.ReferenceSamples)
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}

	queue, err := ringbuffer.New(cfg.PlaybackSamples)
	if err != nil {
		return nil, fmt.Errorf("playback queue: %w", err)
	}
	reference, err := ringbuffer.New(cfg.ReferenceSamples, ringbuffer.WithOverwrite())
	if err != nil {
		_ = queue.Close()
		return nil, fmt.Errorf("reference queue: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		cfg:       cfg,
		logger:    logging.OrNoOp(cfg.Logger),
		queue:     queue,
		reference: reference,
		wake:      make(chan struct{}, 1),
		space:     make(chan struct{}, 1),
		ctx:       ctx,
		cancel:    cancel,
	}

	c.wg.Add(1)
	go c.loop()

	c.logger.Info("playback controller created",
		"queueSamples", cfg.PlaybackSamples,
		"referenceSamples", cfg.ReferenceSamples,
		"frameSamples", cfg.FrameSamples)
	return c, nil
}

// ReferenceBuffer returns the reference queue. The controller keeps
// ownership; callers must not close it.
func (c *Controller) ReferenceBuffer() *ringbuffer.Buffer {
	return c.reference
}

// Write queues pcm for playback. If the queue stays full for longer than the
// write timeout, ErrQueueFull is returned and nothing is queued.
func (c *Controller) Write(ctx context.Context, pcm []int16) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if len(pcm) == 0 {
		return nil
	}
	if len(pcm) > c.queue.Capacity() {
		return fmt.Errorf("%w: %d samples exceeds capacity %d", ErrQueueFull, len(pcm), c.queue.Capacity())
	}

	timer := time.NewTimer(c.cfg.WriteTimeout)
	defer timer.Stop()

	for {
		_, err := c.queue.Write(pcm)
		if err == nil {
			return nil
		}
		if errors.Is(err, ringbuffer.ErrClosed) {
			return ErrClosed
		}
		if !errors.Is(err, ringbuffer.ErrFull) {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.ctx.Done():
			return ErrClosed
		case <-timer.C:
			return fmt.Errorf("%w: %d samples free, %d requested", ErrQueueFull, c.queue.Free(), len(pcm))
		case <-c.space:
		}
	}
}

// FreeSpace returns the number of samples that can be queued right now
func (c *Controller) FreeSpace() int {
	if c.closed.Load() {
		return 0
	}
	return c.queue.Free()
}

// Start begins draining the queue to the speaker
func (c *Controller) Start() error {
	if c.closed.Load() {
		return ErrClosed
	}
	c.stateMu.Lock()
	wasRunning := c.running.Swap(true)
	c.stateMu.Unlock()

	if !wasRunning {
		c.logger.Debug("playback started", "queued", c.queue.Length())
	}
	notify(c.wake)
	return nil
}

// Stop pauses playback. Queued audio is kept.
func (c *Controller) Stop() error {
	if c.closed.Load() {
		return ErrClosed
	}
	c.stateMu.Lock()
	wasRunning := c.running.Swap(false)
	c.stateMu.Unlock()

	if wasRunning {
		c.logger.Debug("playback stopped", "queued", c.queue.Length())
	}
	return nil
}

// Clear drops all queued audio
func (c *Controller) Clear() error {
	if c.closed.Load() {
		return ErrClosed
	}
	c.queue.Reset()
	notify(c.space)
	c.logger.Debug("playback queue cleared")
	return nil
}

// IsRunning reports whether playback is active. Playback stops by itself
// once the queue drains.
func (c *Controller) IsRunning() bool {
	return c.running.Load()
}

// Close stops the loop and releases both queues
func (c *Controller) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	c.running.Store(false)
	c.cancel()
	c.wg.Wait()

	_ = c.queue.Close()
	_ = c.reference.Close()
	c.logger.Info("playback controller closed")
	return nil
}

func (c *Controller) loop() {
	defer c.wg.Done()

	frame := make([]int16, c.cfg.FrameSamples)
	for {
		if !c.running.Load() {
			select {
			case <-c.ctx.Done():
				return
			case <-c.wake:
			}
			continue
		}

		n, err := c.queue.Read(frame)
		if err != nil {
			return
		}
		if n == 0 {
			c.stateMu.Lock()
			if c.queue.Length() == 0 && c.running.Swap(false) {
				c.logger.Debug("playback drained")
			}
			c.stateMu.Unlock()
			continue
		}
		notify(c.space)

		out := frame[:n]
		applyVolume(out, c.volume())
		_, _ = c.reference.Write(out)

		if err := c.cfg.Speaker.WriteSpeaker(c.ctx, out); err != nil {
			if c.ctx.Err() != nil {
				return
			}
			c.logger.Warn("speaker write failed", "error", err)
		}
	}
}

func (c *Controller) volume() uint8 {
	if c.cfg.Volume == nil {
		return 100
	}
	v := c.cfg.Volume.Volume()
	if v > 100 {
		v = 100
	}
	return v
}

// applyVolume scales samples in place by volume percent
func applyVolume(samples []int16, volume uint8) {
	if volume >= 100 {
		return
	}
	for i, s := range samples {
		samples[i] = int16(int32(s) * int32(volume) / 100)
	}
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
