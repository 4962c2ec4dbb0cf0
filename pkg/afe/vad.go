package afe

import (
	"math"
	"time"
)

// vadThresholds maps VAD mode to the RMS level treated as speech
var vadThresholds = [...]float64{0.005, 0.01, 0.02, 0.04}

// rmsVAD is an energy detector with hysteresis. Time advances by frame
// duration, so behaviour depends only on the samples fed in.
type rmsVAD struct {
	threshold    float64
	minConfirmed int
	silenceLimit int

	isSpeaking        bool
	consecutiveFrames int
	silenceFrames     int
}

func newRMSVAD(cfg VADConfig, frameDur time.Duration) *rmsVAD {
	mode := cfg.Mode
	if mode < 0 {
		mode = 0
	}
	if mode >= len(vadThresholds) {
		mode = len(vadThresholds) - 1
	}
	return &rmsVAD{
		threshold:    vadThresholds[mode],
		minConfirmed: framesFor(cfg.MinSpeech, frameDur),
		silenceLimit: framesFor(cfg.MinSilence, frameDur),
	}
}

func framesFor(d, frameDur time.Duration) int {
	if d <= 0 || frameDur <= 0 {
		return 1
	}
	n := int((d + frameDur - 1) / frameDur)
	if n < 1 {
		n = 1
	}
	return n
}

// process returns EventVADStart, EventVADEnd or 0
func (v *rmsVAD) process(frame []int16) EventType {
	rms := frameRMS(frame)

	if rms > v.threshold {
		v.consecutiveFrames++
		v.silenceFrames = 0
		if !v.isSpeaking && v.consecutiveFrames >= v.minConfirmed {
			v.isSpeaking = true
			return EventVADStart
		}
		return 0
	}

	v.consecutiveFrames = 0
	if v.isSpeaking {
		v.silenceFrames++
		if v.silenceFrames >= v.silenceLimit {
			v.isSpeaking = false
			v.silenceFrames = 0
			return EventVADEnd
		}
	}
	return 0
}

func (v *rmsVAD) reset() {
	v.isSpeaking = false
	v.consecutiveFrames = 0
	v.silenceFrames = 0
}

// frameRMS returns the RMS of frame normalised to [0, 1]
func frameRMS(frame []int16) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, s := range frame {
		f := float64(s) / 32768.0
		sum += f * f
	}
	return math.Sqrt(sum / float64(len(frame)))
}

// loudnessDB returns frame level in dBFS, floored at -96
func loudnessDB(frame []int16) float64 {
	rms := frameRMS(frame)
	if rms <= 0 {
		return -96
	}
	db := 20 * math.Log10(rms)
	if db < -96 {
		return -96
	}
	return db
}
