package main

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lokutor-ai/audio-manager/pkg/audiomgr"
)

func newTestCommand(t *testing.T) (*cobra.Command, *viper.Viper) {
	t.Helper()
	v := viper.New()
	cmd := &cobra.Command{Use: "audiomgr"}
	require.NoError(t, setupFlags(cmd, v))
	return cmd, v
}

func TestLoadSettings_Defaults(t *testing.T) {
	_, v := newTestCommand(t)
	s := loadSettings(v)

	assert.Equal(t, "info", s.LogLevel)
	assert.Equal(t, ":9090", s.MetricsAddr)
	assert.Equal(t, audiomgr.DefaultVolume, s.Volume)
	assert.Equal(t, 2, s.VADMode)
	assert.Equal(t, 200*time.Millisecond, s.MinSpeech)
	assert.Equal(t, 400*time.Millisecond, s.MinSilence)
	assert.Empty(t, s.UplinkURL)
}

func TestLoadSettings_Environment(t *testing.T) {
	t.Setenv("AUDIOMGR_UPLINK_URL", "ws://voice.local/ws")
	t.Setenv("AUDIOMGR_VOLUME", "35")
	t.Setenv("AUDIOMGR_MIN_SILENCE", "1s")

	_, v := newTestCommand(t)
	s := loadSettings(v)

	assert.Equal(t, "ws://voice.local/ws", s.UplinkURL)
	assert.Equal(t, 35, s.Volume)
	assert.Equal(t, time.Second, s.MinSilence)
}

func TestLoadSettings_FlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("AUDIOMGR_VAD_MODE", "1")

	cmd, v := newTestCommand(t)
	require.NoError(t, cmd.Flags().Parse([]string{"--vad-mode=3", "--record-dir="}))
	s := loadSettings(v)

	assert.Equal(t, 3, s.VADMode)
	assert.Empty(t, s.RecordDir)
}

func TestBoardConfig(t *testing.T) {
	_, v := newTestCommand(t)
	s := loadSettings(v)
	s.VADMode = 3

	cfg := boardConfig(s, func(audiomgr.Event) {})

	assert.Equal(t, audiomgr.MicConfig{Port: 1, BCLKGPIO: 15, LRCKGPIO: 2, DINGPIO: 39, SampleRate: 16000, Bits: 32}, cfg.Hardware.Mic)
	assert.Equal(t, audiomgr.SpeakerConfig{Port: 0, BCLKGPIO: 48, LRCKGPIO: 38, DOUTGPIO: 47, SampleRate: 16000, Bits: 16}, cfg.Hardware.Speaker)
	assert.True(t, cfg.Hardware.Button.ActiveLow)
	assert.False(t, cfg.Wakeup.Enabled)
	assert.Equal(t, 3, cfg.VAD.Mode)
	assert.True(t, cfg.Features.AEC)
	assert.NotNil(t, cfg.OnEvent)
}
