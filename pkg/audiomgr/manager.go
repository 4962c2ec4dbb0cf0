// Package audiomgr coordinates the audio hardware, playback, acoustic
// front-end and push button of a voice device behind one facade, and turns
// their callbacks into a single stream of application events.
package audiomgr

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/lokutor-ai/audio-manager/pkg/afe"
	"github.com/lokutor-ai/audio-manager/pkg/button"
	"github.com/lokutor-ai/audio-manager/pkg/hal"
	"github.com/lokutor-ai/audio-manager/pkg/playback"
	"github.com/lokutor-ai/audio-manager/pkg/ringbuffer"
)

// Manager owns the collaborators between Init and Deinit
type Manager struct {
	factory Factory
	logger  Logger
	metrics atomic.Pointer[Metrics]

	state    State
	onRecord atomic.Pointer[RecordHandler]

	// lifeMu serializes Init and Deinit. mu guards the fields below and is
	// never held while a collaborator is closed, so callbacks may call back
	// into the facade during teardown.
	lifeMu      sync.Mutex
	mu          sync.RWMutex
	initialized bool
	config      Config

	hw        Hardware
	playback  Playback
	frontEnd  FrontEnd
	button    Button
	reference *ringbuffer.Buffer

	// events is never closed. done ends blocked sends when Deinit starts,
	// stop tells the dispatcher to drain and exit once the producers are gone.
	events     chan Event
	done       chan struct{}
	stop       chan struct{}
	dispatchWG sync.WaitGroup
}

// New creates a manager that builds its collaborators on real devices.
// If logger is nil, a no-op logger is used.
func New(logger Logger) *Manager {
	return NewWithFactory(&DeviceFactory{}, logger)
}

// NewWithFactory creates a manager with a custom collaborator factory
func NewWithFactory(factory Factory, logger Logger) *Manager {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	return &Manager{
		factory: factory,
		logger:  logger,
	}
}

// SetMetrics attaches Prometheus counters; nil detaches them
func (m *Manager) SetMetrics(metrics *Metrics) {
	m.metrics.Store(metrics)
}

// Init builds the hardware abstraction, playback controller, front-end and
// button handler in that order. If any step fails everything built so far
// is closed in reverse order and no state is kept.
//
// Calling Init on an initialized manager succeeds without changing anything.
func (m *Manager) Init(cfg Config) error {
	m.lifeMu.Lock()
	defer m.lifeMu.Unlock()

	if m.IsInitialized() {
		m.mu.RLock()
		same := m.config.sameSettings(cfg)
		m.mu.RUnlock()
		if !same {
			m.logger.Warn("audio manager already initialized, new configuration ignored")
		} else {
			m.logger.Warn("audio manager already initialized")
		}
		return nil
	}
	if cfg.OnEvent == nil {
		return fmt.Errorf("%w: event callback is required", ErrInvalidArgument)
	}
	if m.factory == nil {
		return fmt.Errorf("%w: no collaborator factory", ErrInvalidArgument)
	}

	m.logger.Info("initializing audio manager",
		"micRate", cfg.Hardware.Mic.SampleRate,
		"speakerRate", cfg.Hardware.Speaker.SampleRate,
		"wakeWord", cfg.Wakeup.WakeWordName,
		"wakeEnabled", cfg.Wakeup.Enabled)

	m.state.setVolume(DefaultVolume)
	events := make(chan Event, eventQueueSize)
	done := make(chan struct{})

	var (
		hw  Hardware
		pb  Playback
		fe  FrontEnd
		btn Button
	)
	rollback := func() {
		close(done)
		if fe != nil {
			_ = fe.Close()
		}
		if pb != nil {
			_ = pb.Close()
		}
		if hw != nil {
			_ = hw.Close()
		}
		m.state.reset()
	}

	hw, err := m.factory.NewHardware(micParams(cfg.Hardware.Mic), speakerParams(cfg.Hardware.Speaker), m.logger)
	if err != nil {
		return m.initFailed("hardware", err, rollback)
	}

	pb, err = m.factory.NewPlayback(hw, PlaybackParams{
		PlaybackSamples:  PlaybackBufferSamples,
		ReferenceSamples: ReferenceBufferSamples,
		FrameSamples:     PlaybackFrameSamples,
		Volume:           &m.state,
		Logger:           m.logger,
	})
	if err != nil {
		return m.initFailed("playback", err, rollback)
	}
	reference := pb.ReferenceBuffer()

	fe, err = m.factory.NewFrontEnd(hw, FrontEndParams{
		Reference:    reference,
		Wakeup:       cfg.Wakeup,
		VAD:          cfg.VAD,
		Features:     cfg.Features,
		Gate:         &m.state,
		OnEvent:      func(ev afe.Event) { m.onFrontEndEvent(events, done, ev) },
		OnRecord:     m.onFrontEndRecord,
		FrameSamples: MicFrameSamples,
		SampleRate:   cfg.Hardware.Mic.SampleRate,
		Logger:       m.logger,
	})
	if err != nil {
		return m.initFailed("frontend", err, rollback)
	}

	btn, err = m.factory.NewButton(ButtonParams{
		GPIO:      cfg.Hardware.Button.GPIO,
		ActiveLow: cfg.Hardware.Button.ActiveLow,
		Debounce:  ButtonDebounce,
		OnEvent:   func(ev button.EventType) { m.onButtonEvent(events, done, ev) },
		Logger:    m.logger,
	})
	if err != nil {
		return m.initFailed("button", err, rollback)
	}

	m.mu.Lock()
	m.config = cfg
	m.hw, m.playback, m.frontEnd, m.button = hw, pb, fe, btn
	m.reference = reference
	m.events = events
	m.done = done
	m.stop = make(chan struct{})
	m.initialized = true
	stop := m.stop
	m.mu.Unlock()

	m.dispatchWG.Add(1)
	go m.dispatch(events, stop, cfg.OnEvent)

	m.logger.Info("audio manager initialized")
	return nil
}

func (m *Manager) initFailed(stage string, err error, rollback func()) error {
	m.logger.Error("audio manager initialization failed", "stage", stage, "error", err)
	m.metrics.Load().recordInitFailure(stage)
	rollback()
	return fmt.Errorf("%w: %s: %w", classify(err), stage, err)
}

// classify maps rejected parameters to ErrInvalidArgument and everything
// else to ErrResourceExhausted
func classify(err error) error {
	switch {
	case errors.Is(err, hal.ErrInvalidConfig),
		errors.Is(err, playback.ErrInvalidConfig),
		errors.Is(err, afe.ErrInvalidConfig),
		errors.Is(err, afe.ErrNoDetector),
		errors.Is(err, button.ErrInvalidConfig):
		return ErrInvalidArgument
	default:
		return ErrResourceExhausted
	}
}

// Deinit stops listening and playback, closes the collaborators in reverse
// order of creation and returns the manager to its zero state. Events
// already queued are still delivered before Deinit returns, so Deinit must
// not be called from the event handler. Collaborator events raised after
// Deinit starts are dropped.
func (m *Manager) Deinit() {
	m.lifeMu.Lock()
	defer m.lifeMu.Unlock()

	m.mu.Lock()
	if !m.initialized {
		m.mu.Unlock()
		return
	}
	m.stopLocked()
	// unblocks collaborator callbacks waiting on a full queue
	close(m.done)
	hw, pb, fe, btn := m.hw, m.playback, m.frontEnd, m.button
	stop := m.stop
	m.hw, m.playback, m.frontEnd, m.button = nil, nil, nil, nil
	m.reference = nil
	m.events, m.done, m.stop = nil, nil, nil
	m.config = Config{}
	m.initialized = false
	m.mu.Unlock()

	if err := pb.Stop(); err != nil {
		m.logger.Warn("failed to stop playback", "error", err)
	}
	if err := btn.Close(); err != nil {
		m.logger.Warn("failed to close button handler", "error", err)
	}
	if err := fe.Close(); err != nil {
		m.logger.Warn("failed to close front-end", "error", err)
	}
	// the controller closes the reference queue it owns
	if err := pb.Close(); err != nil {
		m.logger.Warn("failed to close playback controller", "error", err)
	}
	if err := hw.Close(); err != nil {
		m.logger.Warn("failed to close hardware", "error", err)
	}

	close(stop)
	m.dispatchWG.Wait()

	m.state.reset()
	m.onRecord.Store(nil)
	m.logger.Info("audio manager deinitialized")
}

// IsInitialized reports whether Init has completed and Deinit has not run
func (m *Manager) IsInitialized() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.initialized
}

func micParams(c MicConfig) hal.MicConfig {
	return hal.MicConfig{
		Port:            c.Port,
		BCLKGPIO:        c.BCLKGPIO,
		LRCKGPIO:        c.LRCKGPIO,
		DINGPIO:         c.DINGPIO,
		SampleRate:      c.SampleRate,
		Bits:            c.Bits,
		MaxFrameSamples: MicFrameSamples,
		BitShift:        MicBitShift,
	}
}

func speakerParams(c SpeakerConfig) hal.SpeakerConfig {
	return hal.SpeakerConfig{
		Port:            c.Port,
		BCLKGPIO:        c.BCLKGPIO,
		LRCKGPIO:        c.LRCKGPIO,
		DOUTGPIO:        c.DOUTGPIO,
		SampleRate:      c.SampleRate,
		Bits:            c.Bits,
		MaxFrameSamples: PlaybackFrameSamples,
	}
}
