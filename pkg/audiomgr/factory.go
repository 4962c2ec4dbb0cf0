package audiomgr

import (
	"github.com/lokutor-ai/audio-manager/pkg/afe"
	"github.com/lokutor-ai/audio-manager/pkg/button"
	"github.com/lokutor-ai/audio-manager/pkg/hal"
	"github.com/lokutor-ai/audio-manager/pkg/playback"
)

// DeviceFactory builds collaborators on real audio devices and GPIO
type DeviceFactory struct {
	// Detector scores frames for wake words. Required only when wake-word
	// detection is enabled.
	Detector afe.Detector

	// Pin overrides the GPIO lookup for the button
	Pin button.Pin
}

func (f *DeviceFactory) NewHardware(mic hal.MicConfig, speaker hal.SpeakerConfig, logger Logger) (Hardware, error) {
	h, err := hal.New(mic, speaker, logger)
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (f *DeviceFactory) NewPlayback(hw Hardware, params PlaybackParams) (Playback, error) {
	c, err := playback.New(playback.Config{
		Speaker:          hw,
		PlaybackSamples:  params.PlaybackSamples,
		ReferenceSamples: params.ReferenceSamples,
		FrameSamples:     params.FrameSamples,
		Volume:           params.Volume,
		Logger:           params.Logger,
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (f *DeviceFactory) NewFrontEnd(hw Hardware, params FrontEndParams) (FrontEnd, error) {
	w, err := afe.New(afe.Config{
		Mic:          hw,
		Reference:    params.Reference,
		Wakeup:       params.Wakeup,
		VAD:          params.VAD,
		Features:     params.Features,
		Detector:     f.Detector,
		Gate:         params.Gate,
		OnEvent:      params.OnEvent,
		OnRecord:     params.OnRecord,
		FrameSamples: params.FrameSamples,
		SampleRate:   params.SampleRate,
		Logger:       params.Logger,
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (f *DeviceFactory) NewButton(params ButtonParams) (Button, error) {
	b, err := button.New(button.Config{
		GPIO:      params.GPIO,
		ActiveLow: params.ActiveLow,
		Debounce:  params.Debounce,
		Pin:       f.Pin,
		OnEvent:   params.OnEvent,
		Logger:    params.Logger,
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}
