package audiomgr

import "sync/atomic"

// State is the flag cell shared with the collaborators. The manager is the
// only writer; the front-end and playback controller read it through the
// afe.Gate and playback.VolumeReader interfaces.
type State struct {
	running   atomic.Bool
	recording atomic.Bool
	volume    atomic.Uint32
}

func (s *State) Running() bool   { return s.running.Load() }
func (s *State) Recording() bool { return s.recording.Load() }
func (s *State) Volume() uint8   { return uint8(s.volume.Load()) }

// stop clears recording before running so no reader sees recording
// without running after the transition
func (s *State) stop() (wasRunning bool) {
	s.recording.Store(false)
	return s.running.Swap(false)
}

func (s *State) setVolume(v int) uint8 {
	if v < 0 {
		v = 0
	}
	if v > 100 {
		v = 100
	}
	s.volume.Store(uint32(v))
	return uint8(v)
}

func (s *State) reset() {
	s.recording.Store(false)
	s.running.Store(false)
	s.volume.Store(0)
}
