package audiomgr

import (
	"github.com/lokutor-ai/audio-manager/pkg/afe"
	"github.com/lokutor-ai/audio-manager/pkg/logging"
)

type Logger = logging.Logger

type NoOpLogger = logging.NoOpLogger

type EventType string

const (
	EventButtonTrigger  EventType = "BUTTON_TRIGGER"
	EventButtonRelease  EventType = "BUTTON_RELEASE"
	EventWakeupDetected EventType = "WAKEUP_DETECTED"
	EventVADStart       EventType = "VAD_START"
	EventVADEnd         EventType = "VAD_END"
)

// WakeupData is carried by EventWakeupDetected
type WakeupData struct {
	WakeWordIndex int     `json:"wake_word_index"`
	VolumeDB      float64 `json:"volume_db"`
}

// Event is the unified application event. Wakeup is only set for
// EventWakeupDetected.
type Event struct {
	Type   EventType   `json:"type"`
	Wakeup *WakeupData `json:"wakeup,omitempty"`
}

// EventHandler receives unified events on the manager's dispatch goroutine
type EventHandler func(Event)

// RecordHandler receives processed microphone frames while recording. The
// slice is owned by the handler.
type RecordHandler func(pcm []int16)

type MicConfig struct {
	Port       int
	BCLKGPIO   int
	LRCKGPIO   int
	DINGPIO    int
	SampleRate int
	Bits       int
}

type SpeakerConfig struct {
	Port       int
	BCLKGPIO   int
	LRCKGPIO   int
	DOUTGPIO   int
	SampleRate int
	Bits       int
}

type ButtonConfig struct {
	GPIO      int
	ActiveLow bool
}

// HardwareConfig is the board pin and rate map
type HardwareConfig struct {
	Mic     MicConfig
	Speaker SpeakerConfig
	Button  ButtonConfig
}

type (
	WakeupConfig  = afe.WakeupConfig
	VADConfig     = afe.VADConfig
	FeatureConfig = afe.FeatureConfig
)

// Config is applied by Init. OnEvent is mandatory.
type Config struct {
	Hardware HardwareConfig
	Wakeup   WakeupConfig
	VAD      VADConfig
	Features FeatureConfig
	OnEvent  EventHandler
}

// sameSettings compares everything except the callback
func (c Config) sameSettings(o Config) bool {
	return c.Hardware == o.Hardware &&
		c.Wakeup == o.Wakeup &&
		c.VAD == o.VAD &&
		c.Features == o.Features
}
