package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lokutor-ai/audio-manager/pkg/audiomgr"
)

const envPrefix = "AUDIOMGR"

// settings is the daemon configuration after flags, environment and .env
// have been merged
type settings struct {
	LogLevel    string
	MetricsAddr string
	RecordDir   string
	UplinkURL   string
	UplinkKey   string
	Greeting    string
	Volume      int

	VADMode    int
	MinSpeech  time.Duration
	MinSilence time.Duration

	MicPort     int
	SpeakerPort int
	ButtonGPIO  int
}

func setupFlags(cmd *cobra.Command, v *viper.Viper) error {
	f := cmd.Flags()
	f.String("log-level", "info", "Log level: debug, info, warn, error")
	f.String("metrics-addr", ":9090", "Address for the Prometheus /metrics endpoint, empty to disable")
	f.String("record-dir", "recordings", "Directory for WAV recordings of each conversation turn, empty to disable")
	f.String("uplink-url", "", "Voice server websocket URL (ws:// or wss://), empty to disable")
	f.String("uplink-key", "", "API key sent to the voice server")
	f.String("greeting", "", "WAV file played once at startup")
	f.Int("volume", audiomgr.DefaultVolume, "Playback volume 0-100")

	f.Int("vad-mode", 2, "VAD aggressiveness 0-3")
	f.Duration("min-speech", 200*time.Millisecond, "Speech needed before VAD start")
	f.Duration("min-silence", 400*time.Millisecond, "Silence needed before VAD end")

	f.Int("mic-port", 1, "Capture device index")
	f.Int("speaker-port", 0, "Playback device index")
	f.Int("button-gpio", 0, "Push button GPIO number")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(f); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}

func loadSettings(v *viper.Viper) settings {
	return settings{
		LogLevel:    v.GetString("log-level"),
		MetricsAddr: v.GetString("metrics-addr"),
		RecordDir:   v.GetString("record-dir"),
		UplinkURL:   v.GetString("uplink-url"),
		UplinkKey:   v.GetString("uplink-key"),
		Greeting:    v.GetString("greeting"),
		Volume:      v.GetInt("volume"),
		VADMode:     v.GetInt("vad-mode"),
		MinSpeech:   v.GetDuration("min-speech"),
		MinSilence:  v.GetDuration("min-silence"),
		MicPort:     v.GetInt("mic-port"),
		SpeakerPort: v.GetInt("speaker-port"),
		ButtonGPIO:  v.GetInt("button-gpio"),
	}
}

// boardConfig is the pin map of the reference board: an I2S MEMS
// microphone on port 1 and an I2S amplifier on port 0
func boardConfig(s settings, onEvent audiomgr.EventHandler) audiomgr.Config {
	cfg := audiomgr.DefaultConfig()

	cfg.Hardware.Mic = audiomgr.MicConfig{
		Port:       s.MicPort,
		BCLKGPIO:   15,
		LRCKGPIO:   2,
		DINGPIO:    39,
		SampleRate: 16000,
		Bits:       32,
	}
	cfg.Hardware.Speaker = audiomgr.SpeakerConfig{
		Port:       s.SpeakerPort,
		BCLKGPIO:   48,
		LRCKGPIO:   38,
		DOUTGPIO:   47,
		SampleRate: 16000,
		Bits:       16,
	}
	cfg.Hardware.Button = audiomgr.ButtonConfig{GPIO: s.ButtonGPIO, ActiveLow: true}

	// no wake-word model ships with the daemon; the button starts a turn
	cfg.Wakeup.WakeWordName = "小鸭小鸭"

	cfg.VAD.Mode = s.VADMode
	cfg.VAD.MinSpeech = s.MinSpeech
	cfg.VAD.MinSilence = s.MinSilence

	cfg.OnEvent = onEvent
	return cfg
}
