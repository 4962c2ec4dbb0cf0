package afe

import (
	"context"
	"errors"
	"time"

	"github.com/lokutor-ai/audio-manager/pkg/logging"
)

var (
	// ErrInvalidConfig is returned for unusable front-end parameters
	ErrInvalidConfig = errors.New("invalid front-end configuration")

	// ErrNoDetector is returned when wake-word detection is enabled without a detector
	ErrNoDetector = errors.New("wake-word detection enabled but no detector configured")

	// ErrClosed is returned by operations on a closed wrapper
	ErrClosed = errors.New("front-end closed")
)

const (
	DefaultFrameSamples = 512
	DefaultSampleRate   = 16000
	idlePollInterval    = 20 * time.Millisecond
)

// WakeupConfig controls wake-word detection
type WakeupConfig struct {
	Enabled        bool
	WakeWordName   string
	ModelPartition string
	// Sensitivity is detector specific; higher is more eager
	Sensitivity int
	// Timeout closes the awake window when no speech starts
	Timeout time.Duration
	// EndDelay keeps the awake window open after speech ends
	EndDelay time.Duration
}

// VADConfig controls voice activity detection. Mode 0-3 selects
// progressively higher energy thresholds.
type VADConfig struct {
	Enabled    bool
	Mode       int
	MinSpeech  time.Duration
	MinSilence time.Duration
}

// FeatureConfig toggles the enhancement stages
type FeatureConfig struct {
	AEC  bool
	NS   bool
	AGC  bool
	Mode int
}

// EventType identifies front-end detections
type EventType int

const (
	EventWakeupDetected EventType = iota + 1
	EventVADStart
	EventVADEnd
)

func (t EventType) String() string {
	switch t {
	case EventWakeupDetected:
		return "WAKEUP_DETECTED"
	case EventVADStart:
		return "VAD_START"
	case EventVADEnd:
		return "VAD_END"
	default:
		return "UNKNOWN"
	}
}

// Event is emitted for every detection. WakeWordIndex and VolumeDB are only
// set for EventWakeupDetected.
type Event struct {
	Type          EventType
	WakeWordIndex int
	VolumeDB      float64
}

// Microphone supplies fixed-size capture frames
type Microphone interface {
	ReadMic(ctx context.Context, buf []int16) (int, error)
}

// MicFlusher is implemented by microphones that keep capturing while the
// front-end is idle. The backlog is flushed when listening starts.
type MicFlusher interface {
	FlushMic()
}

// ReferenceReader supplies recently played speaker samples
type ReferenceReader interface {
	Read(dst []int16) (int, error)
}

// Gate exposes the listening and recording flags owned by the caller
type Gate interface {
	Running() bool
	Recording() bool
}

// Detector scores one frame for wake words. It returns the index of the
// matched word when a detection fires.
type Detector interface {
	Detect(frame []int16, cfg WakeupConfig) (index int, detected bool)
}

// Config configures a Wrapper
type Config struct {
	Mic          Microphone
	Reference    ReferenceReader
	Wakeup       WakeupConfig
	VAD          VADConfig
	Features     FeatureConfig
	Detector     Detector
	Gate         Gate
	OnEvent      func(Event)
	OnRecord     func(pcm []int16)
	FrameSamples int
	SampleRate   int
	Logger       logging.Logger
}
