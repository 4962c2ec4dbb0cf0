// Package button debounces a push button and reports press and release.
package button

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/lokutor-ai/audio-manager/pkg/logging"
)

var (
	// ErrInvalidConfig is returned by New for unusable parameters
	ErrInvalidConfig = errors.New("invalid button configuration")

	// ErrPinUnavailable is returned when the GPIO cannot be opened
	ErrPinUnavailable = errors.New("gpio pin unavailable")

	// ErrClosed is returned by Close on a closed handler
	ErrClosed = errors.New("button handler closed")
)

const (
	DefaultDebounce     = 50 * time.Millisecond
	DefaultPollInterval = 10 * time.Millisecond
)

// EventType is a debounced edge
type EventType int

const (
	EventPress EventType = iota + 1
	EventRelease
)

func (t EventType) String() string {
	switch t {
	case EventPress:
		return "PRESS"
	case EventRelease:
		return "RELEASE"
	default:
		return "UNKNOWN"
	}
}

// Pin reports the raw electrical level, true meaning high
type Pin interface {
	Read() (bool, error)
}

// Config configures a Handler. When Pin is nil the GPIO number is opened
// through the host's GPIO registry.
type Config struct {
	GPIO         int
	ActiveLow    bool
	Debounce     time.Duration
	PollInterval time.Duration
	Pin          Pin
	OnEvent      func(EventType)
	Logger       logging.Logger
}

// Handler polls a pin on its own goroutine
type Handler struct {
	cfg    Config
	logger logging.Logger
	pin    Pin

	mu     sync.Mutex
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup
}

// New opens the pin if needed and starts polling
func New(cfg Config) (*Handler, error) {
	if cfg.OnEvent == nil {
		return nil, fmt.Errorf("%w: event callback is nil", ErrInvalidConfig)
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	logger := logging.OrNoOp(cfg.Logger)
	pin := cfg.Pin
	if pin == nil {
		p, err := openGPIO(cfg.GPIO, cfg.ActiveLow)
		if err != nil {
			return nil, err
		}
		pin = p
	}

	h := &Handler{
		cfg:    cfg,
		logger: logger,
		pin:    pin,
		done:   make(chan struct{}),
	}

	initial, err := h.pressed()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPinUnavailable, err)
	}

	h.wg.Add(1)
	go h.poll(initial)

	logger.Info("button handler created", "gpio", cfg.GPIO, "activeLow", cfg.ActiveLow, "debounce", cfg.Debounce)
	return h, nil
}

// Close stops polling and waits for the goroutine to exit
func (h *Handler) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrClosed
	}
	h.closed = true
	close(h.done)
	h.mu.Unlock()

	h.wg.Wait()
	h.logger.Debug("button handler closed", "gpio", h.cfg.GPIO)
	return nil
}

func (h *Handler) pressed() (bool, error) {
	level, err := h.pin.Read()
	if err != nil {
		return false, err
	}
	if h.cfg.ActiveLow {
		return !level, nil
	}
	return level, nil
}

// poll reports a new state once the raw level has held for the debounce
// interval.
func (h *Handler) poll(stable bool) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.cfg.PollInterval)
	defer ticker.Stop()

	candidate := stable
	var since time.Time

	for {
		select {
		case <-h.done:
			return
		case now := <-ticker.C:
			level, err := h.pressed()
			if err != nil {
				h.logger.Warn("button read failed", "gpio", h.cfg.GPIO, "error", err)
				continue
			}
			if level != candidate {
				candidate = level
				since = now
				continue
			}
			if candidate == stable || now.Sub(since) < h.cfg.Debounce {
				continue
			}
			stable = candidate
			if stable {
				h.cfg.OnEvent(EventPress)
			} else {
				h.cfg.OnEvent(EventRelease)
			}
		}
	}
}

var hostInit struct {
	once sync.Once
	err  error
}

// gpioPin adapts a periph pin to Pin
type gpioPin struct {
	p gpio.PinIO
}

func (g gpioPin) Read() (bool, error) {
	return g.p.Read() == gpio.High, nil
}

func openGPIO(num int, activeLow bool) (Pin, error) {
	hostInit.once.Do(func() {
		_, hostInit.err = host.Init()
	})
	if hostInit.err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPinUnavailable, hostInit.err)
	}

	p := gpioreg.ByName(strconv.Itoa(num))
	if p == nil {
		return nil, fmt.Errorf("%w: gpio %d not found", ErrPinUnavailable, num)
	}
	pull := gpio.PullDown
	if activeLow {
		pull = gpio.PullUp
	}
	if err := p.In(pull, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPinUnavailable, err)
	}
	return gpioPin{p: p}, nil
}
