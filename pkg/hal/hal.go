// Package hal is the hardware abstraction for the microphone and speaker.
// Both paths run on miniaudio devices; frames cross the device callbacks
// through sample ring buffers so callers get blocking frame semantics.
package hal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/gen2brain/malgo"
	"github.com/lokutor-ai/audio-manager/pkg/logging"
	"github.com/lokutor-ai/audio-manager/pkg/ringbuffer"
)

// ErrClosed is returned by ReadMic and WriteSpeaker after Close
var ErrClosed = errors.New("hardware abstraction closed")

// micBufferFrames and speakerBufferFrames size the callback-side queues in
// device frames. The mic queue overwrites so a slow reader loses old audio
// rather than stalling the capture callback.
const (
	micBufferFrames     = 8
	speakerBufferFrames = 4
)

// HAL owns one capture and one playback device
type HAL struct {
	mic     MicConfig
	speaker SpeakerConfig
	logger  logging.Logger

	audioCtx *malgo.AllocatedContext
	capture  *malgo.Device
	playback *malgo.Device

	micBuf     *ringbuffer.Buffer
	speakerBuf *ringbuffer.Buffer
	micReady   chan struct{}
	spkSpace   chan struct{}

	micScratch []int16
	spkScratch []int16

	closeOnce sync.Once
	closed    atomic.Bool
	done      chan struct{}
}

// New opens and starts the capture and playback devices
func New(mic MicConfig, speaker SpeakerConfig, logger logging.Logger) (*HAL, error) {
	if err := mic.validate(); err != nil {
		return nil, err
	}
	if err := speaker.validate(); err != nil {
		return nil, err
	}

	h := &HAL{
		mic:        mic,
		speaker:    speaker,
		logger:     logging.OrNoOp(logger),
		micReady:   make(chan struct{}, 1),
		spkSpace:   make(chan struct{}, 1),
		micScratch: make([]int16, mic.MaxFrameSamples),
		spkScratch: make([]int16, speaker.MaxFrameSamples),
		done:       make(chan struct{}),
	}

	var err error
	if h.micBuf, err = ringbuffer.New(mic.MaxFrameSamples*micBufferFrames, ringbuffer.WithOverwrite()); err != nil {
		return nil, err
	}
	if h.speakerBuf, err = ringbuffer.New(speaker.MaxFrameSamples * speakerBufferFrames); err != nil {
		return nil, err
	}

	h.audioCtx, err = malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		h.logger.Debug("malgo", "message", message)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init audio context: %w", err)
	}

	if err := h.initCapture(); err != nil {
		h.Close()
		return nil, err
	}
	if err := h.initPlayback(); err != nil {
		h.Close()
		return nil, err
	}

	h.logger.Info("hardware abstraction ready",
		"micPort", mic.Port, "micRate", mic.SampleRate, "micBits", mic.Bits,
		"speakerPort", speaker.Port, "speakerRate", speaker.SampleRate, "speakerBits", speaker.Bits)
	return h, nil
}

func (h *HAL) initCapture() error {
	format := malgo.FormatS16
	if h.mic.Bits == 32 {
		format = malgo.FormatS32
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = format
	cfg.Capture.Channels = 1
	cfg.SampleRate = uint32(h.mic.SampleRate)
	cfg.PeriodSizeInFrames = uint32(h.mic.MaxFrameSamples)
	cfg.Alsa.NoMMap = 1

	if id, ok := h.deviceID(malgo.Capture, h.mic.Port); ok {
		cfg.Capture.DeviceID = id
	}

	dev, err := malgo.InitDevice(h.audioCtx.Context, cfg, malgo.DeviceCallbacks{Data: h.onCapture(format)})
	if err != nil {
		return fmt.Errorf("failed to init capture device: %w", err)
	}
	h.capture = dev

	if err := dev.Start(); err != nil {
		return fmt.Errorf("failed to start capture device: %w", err)
	}
	return nil
}

func (h *HAL) initPlayback() error {
	format := malgo.FormatS16
	if h.speaker.Bits == 32 {
		format = malgo.FormatS32
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = format
	cfg.Playback.Channels = 1
	cfg.SampleRate = uint32(h.speaker.SampleRate)
	cfg.PeriodSizeInFrames = uint32(h.speaker.MaxFrameSamples)
	cfg.Alsa.NoMMap = 1

	if id, ok := h.deviceID(malgo.Playback, h.speaker.Port); ok {
		cfg.Playback.DeviceID = id
	}

	dev, err := malgo.InitDevice(h.audioCtx.Context, cfg, malgo.DeviceCallbacks{Data: h.onPlayback(format)})
	if err != nil {
		return fmt.Errorf("failed to init playback device: %w", err)
	}
	h.playback = dev

	if err := dev.Start(); err != nil {
		return fmt.Errorf("failed to start playback device: %w", err)
	}
	return nil
}

// deviceID maps a port number onto the enumerated device list. Out of range
// ports fall back to the system default device.
func (h *HAL) deviceID(kind malgo.DeviceType, port int) (unsafe.Pointer, bool) {
	infos, err := h.audioCtx.Devices(kind)
	if err != nil || port < 0 || port >= len(infos) {
		return nil, false
	}
	return infos[port].ID.Pointer(), true
}

func (h *HAL) onCapture(format malgo.FormatType) malgo.DataProc {
	return func(_, pInput []byte, frameCount uint32) {
		if h.closed.Load() || len(pInput) == 0 {
			return
		}
		n := int(frameCount)
		if n > len(h.micScratch) {
			h.micScratch = make([]int16, n)
		}
		var got int
		if format == malgo.FormatS32 {
			got = decodeS32(pInput, h.micScratch[:n], h.mic.BitShift)
		} else {
			got = decodeS16(pInput, h.micScratch[:n])
		}
		if _, err := h.micBuf.Write(h.micScratch[:got]); err != nil {
			return
		}
		notify(h.micReady)
	}
}

func (h *HAL) onPlayback(format malgo.FormatType) malgo.DataProc {
	return func(pOutput, _ []byte, frameCount uint32) {
		n := int(frameCount)
		if n > len(h.spkScratch) {
			h.spkScratch = make([]int16, n)
		}
		frame := h.spkScratch[:n]
		got := 0
		if !h.closed.Load() {
			got, _ = h.speakerBuf.Read(frame)
		}
		for i := got; i < n; i++ {
			frame[i] = 0
		}
		if format == malgo.FormatS32 {
			encodeS32(frame, pOutput)
		} else {
			encodeS16(frame, pOutput)
		}
		notify(h.spkSpace)
	}
}

// ReadMic blocks until len(buf) microphone samples are available
func (h *HAL) ReadMic(ctx context.Context, buf []int16) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	for {
		if h.closed.Load() {
			return 0, ErrClosed
		}
		if h.micBuf.Length() >= len(buf) {
			return h.micBuf.Read(buf)
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-h.done:
			return 0, ErrClosed
		case <-h.micReady:
		}
	}
}

// WriteSpeaker blocks until the whole frame is queued for the playback device
func (h *HAL) WriteSpeaker(ctx context.Context, frame []int16) error {
	if len(frame) == 0 {
		return nil
	}
	if limit := h.speakerBuf.Capacity(); len(frame) > limit {
		if err := h.WriteSpeaker(ctx, frame[:limit]); err != nil {
			return err
		}
		return h.WriteSpeaker(ctx, frame[limit:])
	}
	for {
		if h.closed.Load() {
			return ErrClosed
		}
		_, err := h.speakerBuf.Write(frame)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ringbuffer.ErrFull) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-h.done:
			return ErrClosed
		case <-h.spkSpace:
		}
	}
}

// FlushMic discards captured audio nobody has read yet
func (h *HAL) FlushMic() {
	h.micBuf.Reset()
}

// Close stops both devices and releases the audio context
func (h *HAL) Close() error {
	h.closeOnce.Do(func() {
		h.closed.Store(true)
		close(h.done)

		if h.capture != nil {
			h.capture.Uninit()
			h.capture = nil
		}
		if h.playback != nil {
			h.playback.Uninit()
			h.playback = nil
		}
		if h.audioCtx != nil {
			_ = h.audioCtx.Uninit()
			h.audioCtx.Free()
			h.audioCtx = nil
		}
		_ = h.micBuf.Close()
		_ = h.speakerBuf.Close()
		h.logger.Info("hardware abstraction closed")
	})
	return nil
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
