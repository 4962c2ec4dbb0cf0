// Package afe is the acoustic front-end: it pulls microphone frames while
// listening is enabled, cleans them up against the speaker reference, and
// reports wake-word and voice-activity detections.
package afe

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lokutor-ai/audio-manager/pkg/logging"
)

// Wrapper runs the front-end pipeline on its own goroutine
type Wrapper struct {
	cfg    Config
	logger logging.Logger

	wakeMu sync.RWMutex
	wakeup WakeupConfig

	frameDur time.Duration
	vad      *rmsVAD
	echo     *echoSuppressor
	agc      *agc

	// session state, touched only by the loop goroutine
	streamTime time.Duration
	awake      bool
	awakeUntil time.Duration
	wasRunning bool

	echoFrames atomic.Uint64
	frameCount atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool
}

// New validates cfg and starts the processing loop. The loop idles until
// the gate reports running.
func New(cfg Config) (*Wrapper, error) {
	if cfg.Mic == nil {
		return nil, fmt.Errorf("%w: microphone is nil", ErrInvalidConfig)
	}
	if cfg.Gate == nil {
		return nil, fmt.Errorf("%w: gate is nil", ErrInvalidConfig)
	}
	if cfg.Wakeup.Enabled && cfg.Detector == nil {
		return nil, ErrNoDetector
	}
	if cfg.FrameSamples <= 0 {
		cfg.FrameSamples = DefaultFrameSamples
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultSampleRate
	}

	frameDur := time.Duration(cfg.FrameSamples) * time.Second / time.Duration(cfg.SampleRate)
	ctx, cancel := context.WithCancel(context.Background())
	w := &Wrapper{
		cfg:      cfg,
		logger:   logging.OrNoOp(cfg.Logger),
		wakeup:   cfg.Wakeup,
		frameDur: frameDur,
		vad:      newRMSVAD(cfg.VAD, frameDur),
		echo:     newEchoSuppressor(),
		agc:      newAGC(),
		ctx:      ctx,
		cancel:   cancel,
	}

	w.wg.Add(1)
	go w.loop()

	w.logger.Info("front-end created",
		"wakeWord", cfg.Wakeup.WakeWordName,
		"wakeEnabled", cfg.Wakeup.Enabled,
		"vadEnabled", cfg.VAD.Enabled,
		"vadMode", cfg.VAD.Mode,
		"aec", cfg.Features.AEC, "ns", cfg.Features.NS, "agc", cfg.Features.AGC)
	return w, nil
}

// UpdateWakeupConfig swaps the wake-word settings used for subsequent frames
func (w *Wrapper) UpdateWakeupConfig(cfg WakeupConfig) error {
	if w.closed.Load() {
		return ErrClosed
	}
	if cfg.Enabled && w.cfg.Detector == nil {
		return ErrNoDetector
	}
	w.wakeMu.Lock()
	w.wakeup = cfg
	w.wakeMu.Unlock()

	w.logger.Info("wake-word config updated",
		"wakeWord", cfg.WakeWordName, "enabled", cfg.Enabled, "sensitivity", cfg.Sensitivity)
	return nil
}

// WakeupConfig returns the active wake-word settings
func (w *Wrapper) WakeupConfig() WakeupConfig {
	w.wakeMu.RLock()
	defer w.wakeMu.RUnlock()
	return w.wakeup
}

// Frames returns how many microphone frames have been processed
func (w *Wrapper) Frames() uint64 {
	return w.frameCount.Load()
}

// EchoFrames returns how many frames were muted as speaker echo
func (w *Wrapper) EchoFrames() uint64 {
	return w.echoFrames.Load()
}

// Close stops the loop and waits for it to exit
func (w *Wrapper) Close() error {
	if !w.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	w.cancel()
	w.wg.Wait()
	w.logger.Info("front-end closed", "frames", w.frameCount.Load())
	return nil
}

func (w *Wrapper) loop() {
	defer w.wg.Done()

	frame := make([]int16, w.cfg.FrameSamples)
	ref := make([]int16, w.cfg.FrameSamples)
	idle := time.NewTicker(idlePollInterval)
	defer idle.Stop()

	for {
		if w.ctx.Err() != nil {
			return
		}

		if !w.cfg.Gate.Running() {
			if w.wasRunning {
				w.resetSession()
			}
			select {
			case <-w.ctx.Done():
				return
			case <-idle.C:
			}
			continue
		}
		if !w.wasRunning {
			if f, ok := w.cfg.Mic.(MicFlusher); ok {
				f.FlushMic()
			}
			w.wasRunning = true
		}

		n, err := w.cfg.Mic.ReadMic(w.ctx, frame)
		if err != nil {
			if w.ctx.Err() != nil {
				return
			}
			w.logger.Warn("microphone read failed", "error", err)
			select {
			case <-w.ctx.Done():
				return
			case <-idle.C:
			}
			continue
		}
		if n == 0 || !w.cfg.Gate.Running() {
			continue
		}

		w.process(frame[:n], ref[:n])
	}
}

func (w *Wrapper) process(frame, ref []int16) {
	defer w.frameCount.Add(1)
	w.streamTime += w.frameDur

	if w.cfg.Reference != nil {
		m, err := w.cfg.Reference.Read(ref)
		if err == nil && m > 0 && w.cfg.Features.AEC {
			if w.echo.suppress(frame, ref[:m]) {
				w.echoFrames.Add(1)
			}
		}
	}
	if w.cfg.Features.NS {
		noiseGate(frame)
	}
	if w.cfg.Features.AGC {
		w.agc.apply(frame)
	}

	wake := w.WakeupConfig()
	if wake.Enabled && w.cfg.Detector != nil {
		if idx, ok := w.cfg.Detector.Detect(frame, wake); ok {
			db := loudnessDB(frame)
			w.logger.Info("wake word detected", "index", idx, "volumeDB", db)
			w.awake = true
			w.awakeUntil = w.streamTime + wake.Timeout
			w.vad.reset()
			w.emit(Event{Type: EventWakeupDetected, WakeWordIndex: idx, VolumeDB: db})
		}
	}

	if w.cfg.VAD.Enabled {
		w.detectVoice(frame, wake)
	}

	if w.cfg.OnRecord != nil && w.cfg.Gate.Recording() {
		out := make([]int16, len(frame))
		copy(out, frame)
		w.cfg.OnRecord(out)
	}
}

// detectVoice runs VAD. With wake-word detection enabled, voice events are
// only reported inside the awake window opened by a detection.
func (w *Wrapper) detectVoice(frame []int16, wake WakeupConfig) {
	ev := w.vad.process(frame)

	if !wake.Enabled {
		if ev != 0 {
			w.emit(Event{Type: ev})
		}
		return
	}

	if !w.awake {
		return
	}
	switch ev {
	case EventVADStart:
		w.emit(Event{Type: ev})
	case EventVADEnd:
		w.emit(Event{Type: ev})
		w.awakeUntil = w.streamTime + wake.EndDelay
	}
	if !w.vad.isSpeaking && w.streamTime >= w.awakeUntil {
		w.awake = false
		w.logger.Debug("awake window closed")
	}
}

func (w *Wrapper) resetSession() {
	w.wasRunning = false
	w.awake = false
	w.vad.reset()
	w.agc = newAGC()
}

func (w *Wrapper) emit(ev Event) {
	if w.cfg.OnEvent != nil {
		w.cfg.OnEvent(ev)
	}
}
