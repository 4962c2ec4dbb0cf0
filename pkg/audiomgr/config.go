package audiomgr

import "time"

const (
	// PlaybackFrameSamples is read from the playback queue per speaker write
	PlaybackFrameSamples = 1024

	// PlaybackBufferSamples holds several seconds of 16 kHz audio
	PlaybackBufferSamples = 512 * 1024 / 2

	// ReferenceBufferSamples holds about half a second of played audio
	ReferenceBufferSamples = 16 * 1024 / 2

	MicFrameSamples = 512
	MicBitShift     = 14

	ButtonDebounce = 50 * time.Millisecond

	DefaultVolume = 80

	eventQueueSize = 64
)

// DefaultConfig returns 16 kHz mono audio with VAD and all enhancement
// stages on and wake-word detection off. OnEvent must still be set.
func DefaultConfig() Config {
	return Config{
		Hardware: HardwareConfig{
			Mic: MicConfig{
				SampleRate: 16000,
				Bits:       32,
			},
			Speaker: SpeakerConfig{
				SampleRate: 16000,
				Bits:       16,
			},
			Button: ButtonConfig{ActiveLow: true},
		},
		Wakeup: WakeupConfig{
			Enabled:        false,
			ModelPartition: "model",
			Sensitivity:    2,
			Timeout:        8000 * time.Millisecond,
			EndDelay:       1200 * time.Millisecond,
		},
		VAD: VADConfig{
			Enabled:    true,
			Mode:       2,
			MinSpeech:  200 * time.Millisecond,
			MinSilence: 400 * time.Millisecond,
		},
		Features: FeatureConfig{
			AEC:  true,
			NS:   true,
			AGC:  true,
			Mode: 1,
		},
	}
}
