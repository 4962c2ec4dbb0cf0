package audiomgr

import (
	"context"
	"fmt"
)

// Start enables the front-end. Idempotent.
func (m *Manager) Start() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.initialized {
		return ErrInvalidState
	}
	if m.state.running.Swap(true) {
		return nil
	}
	m.logger.Info("listening started", "wakeWord", m.config.Wakeup.WakeWordName)
	return nil
}

// Stop disables the front-end and ends any recording. It never fails.
func (m *Manager) Stop() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	m.stopLocked()
	return nil
}

func (m *Manager) stopLocked() {
	if m.state.stop() {
		m.logger.Info("listening stopped")
	}
}

// TriggerConversation queues a BUTTON_TRIGGER event as if the button had
// been pressed. It does not wait for queue space, so the event handler may
// call it; a full queue returns ErrResourceExhausted.
func (m *Manager) TriggerConversation() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.initialized {
		return ErrInvalidState
	}
	m.logger.Info("conversation triggered")
	if !m.tryEnqueue(m.events, Event{Type: EventButtonTrigger}) {
		return fmt.Errorf("%w: event queue full", ErrResourceExhausted)
	}
	return nil
}

// StartRecording lets processed microphone frames through to the record
// callback. It does not start listening.
func (m *Manager) StartRecording() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.initialized {
		return ErrInvalidState
	}
	if !m.state.recording.Swap(true) {
		m.logger.Info("recording started")
	}
	return nil
}

// StopRecording is idempotent and never fails
func (m *Manager) StopRecording() error {
	if m.state.recording.Swap(false) {
		m.logger.Info("recording stopped")
	}
	return nil
}

// SetRecordCallback replaces the record sink; nil drops recorded frames.
// It may be called before Init; Deinit clears it.
func (m *Manager) SetRecordCallback(handler RecordHandler) {
	if handler == nil {
		m.onRecord.Store(nil)
		return
	}
	m.onRecord.Store(&handler)
}

// PlayAudio queues pcm for playback, blocking while the queue is full up to
// the controller's write timeout
func (m *Manager) PlayAudio(ctx context.Context, pcm []int16) error {
	m.mu.RLock()
	pb := m.playback
	initialized := m.initialized
	m.mu.RUnlock()

	if !initialized {
		return ErrInvalidState
	}
	if len(pcm) == 0 {
		return fmt.Errorf("%w: empty audio", ErrInvalidArgument)
	}
	return pb.Write(ctx, pcm)
}

// GetPlaybackFreeSpace returns the free playback queue space in samples, or
// 0 when not initialized
func (m *Manager) GetPlaybackFreeSpace() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.initialized {
		return 0
	}
	return m.playback.FreeSpace()
}

func (m *Manager) StartPlayback() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.initialized {
		return ErrInvalidState
	}
	return m.playback.Start()
}

// StopPlayback keeps queued audio. It succeeds when not initialized.
func (m *Manager) StopPlayback() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.initialized {
		return nil
	}
	return m.playback.Stop()
}

func (m *Manager) ClearPlaybackBuffer() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.initialized {
		return ErrInvalidState
	}
	return m.playback.Clear()
}

// SetVolume clamps volume to 0-100. The playback loop picks it up on its
// next frame.
func (m *Manager) SetVolume(volume int) {
	v := m.state.setVolume(volume)
	m.logger.Info("volume set", "volume", int(v))
}

func (m *Manager) GetVolume() uint8 {
	return m.state.Volume()
}

// UpdateWakeupConfig stores cfg and pushes it to the running front-end
func (m *Manager) UpdateWakeupConfig(cfg WakeupConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		return ErrInvalidState
	}
	if err := m.frontEnd.UpdateWakeupConfig(cfg); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	m.config.Wakeup = cfg
	return nil
}

func (m *Manager) GetWakeupConfig() (WakeupConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.initialized {
		return WakeupConfig{}, ErrInvalidState
	}
	return m.config.Wakeup, nil
}

func (m *Manager) IsRunning() bool {
	return m.state.Running()
}

func (m *Manager) IsRecording() bool {
	return m.state.Recording()
}

// IsPlaying asks the playback controller, which stops itself once its
// queue drains
func (m *Manager) IsPlaying() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.initialized {
		return false
	}
	return m.playback.IsRunning()
}
