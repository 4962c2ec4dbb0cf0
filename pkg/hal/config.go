package hal

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is returned when mic or speaker parameters are unusable
var ErrInvalidConfig = errors.New("invalid hardware configuration")

// MicConfig describes the microphone path. The port selects the capture
// device index; the GPIO numbers document the I2S wiring of the board.
type MicConfig struct {
	Port            int
	BCLKGPIO        int
	LRCKGPIO        int
	DINGPIO         int
	SampleRate      int
	Bits            int
	MaxFrameSamples int
	// BitShift is applied to 32-bit microphone words before narrowing to 16 bits
	BitShift int
}

// SpeakerConfig describes the speaker path
type SpeakerConfig struct {
	Port            int
	BCLKGPIO        int
	LRCKGPIO        int
	DOUTGPIO        int
	SampleRate      int
	Bits            int
	MaxFrameSamples int
}

func (c MicConfig) validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("%w: mic sample rate %d", ErrInvalidConfig, c.SampleRate)
	}
	if c.Bits != 16 && c.Bits != 32 {
		return fmt.Errorf("%w: mic bit depth %d (want 16 or 32)", ErrInvalidConfig, c.Bits)
	}
	if c.MaxFrameSamples <= 0 {
		return fmt.Errorf("%w: mic frame size %d", ErrInvalidConfig, c.MaxFrameSamples)
	}
	if c.BitShift < 0 || c.BitShift > 16 {
		return fmt.Errorf("%w: mic bit shift %d", ErrInvalidConfig, c.BitShift)
	}
	return nil
}

func (c SpeakerConfig) validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("%w: speaker sample rate %d", ErrInvalidConfig, c.SampleRate)
	}
	if c.Bits != 16 && c.Bits != 32 {
		return fmt.Errorf("%w: speaker bit depth %d (want 16 or 32)", ErrInvalidConfig, c.Bits)
	}
	if c.MaxFrameSamples <= 0 {
		return fmt.Errorf("%w: speaker frame size %d", ErrInvalidConfig, c.MaxFrameSamples)
	}
	return nil
}
