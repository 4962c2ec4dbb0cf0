package audiomgr

import (
	"context"
	"time"

	"github.com/lokutor-ai/audio-manager/pkg/afe"
	"github.com/lokutor-ai/audio-manager/pkg/button"
	"github.com/lokutor-ai/audio-manager/pkg/hal"
	"github.com/lokutor-ai/audio-manager/pkg/playback"
	"github.com/lokutor-ai/audio-manager/pkg/ringbuffer"
)

// Hardware is the microphone and speaker path
type Hardware interface {
	afe.Microphone
	playback.Speaker
	Close() error
}

// Playback owns the playback and reference queues
type Playback interface {
	ReferenceBuffer() *ringbuffer.Buffer
	Write(ctx context.Context, pcm []int16) error
	FreeSpace() int
	Start() error
	Stop() error
	Clear() error
	IsRunning() bool
	Close() error
}

type FrontEnd interface {
	UpdateWakeupConfig(cfg afe.WakeupConfig) error
	Close() error
}

type Button interface {
	Close() error
}

type PlaybackParams struct {
	PlaybackSamples  int
	ReferenceSamples int
	FrameSamples     int
	Volume           playback.VolumeReader
	Logger           Logger
}

type FrontEndParams struct {
	Reference    afe.ReferenceReader
	Wakeup       afe.WakeupConfig
	VAD          afe.VADConfig
	Features     afe.FeatureConfig
	Gate         afe.Gate
	OnEvent      func(afe.Event)
	OnRecord     func(pcm []int16)
	FrameSamples int
	SampleRate   int
	Logger       Logger
}

type ButtonParams struct {
	GPIO      int
	ActiveLow bool
	Debounce  time.Duration
	OnEvent   func(button.EventType)
	Logger    Logger
}

// Factory builds the collaborators in Init. Tests substitute their own.
//
// The front-end and button callbacks may block while the event queue is
// full. Close on those collaborators must wait for their callback
// goroutines to return; events raised after Close are dropped.
type Factory interface {
	NewHardware(mic hal.MicConfig, speaker hal.SpeakerConfig, logger Logger) (Hardware, error)
	NewPlayback(hw Hardware, params PlaybackParams) (Playback, error)
	NewFrontEnd(hw Hardware, params FrontEndParams) (FrontEnd, error)
	NewButton(params ButtonParams) (Button, error)
}
