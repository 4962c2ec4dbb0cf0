package audiomgr

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lokutor-ai/audio-manager/pkg/afe"
	"github.com/lokutor-ai/audio-manager/pkg/hal"
	"github.com/lokutor-ai/audio-manager/pkg/ringbuffer"
)

// lifecycleLog records collaborator creation and closing in order
type lifecycleLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *lifecycleLog) add(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, s)
}

func (l *lifecycleLog) get() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.entries...)
}

func (l *lifecycleLog) count(s string) int {
	n := 0
	for _, e := range l.get() {
		if e == s {
			n++
		}
	}
	return n
}

type MockHardware struct {
	log    *lifecycleLog
	mic    chan []int16
	micCfg hal.MicConfig
	spkCfg hal.SpeakerConfig
}

func (h *MockHardware) ReadMic(ctx context.Context, buf []int16) (int, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case f := <-h.mic:
		return copy(buf, f), nil
	}
}

func (h *MockHardware) WriteSpeaker(ctx context.Context, frame []int16) error {
	return nil
}

func (h *MockHardware) Close() error {
	h.log.add("close:hardware")
	return nil
}

type MockPlayback struct {
	log       *lifecycleLog
	params    PlaybackParams
	reference *ringbuffer.Buffer

	mu       sync.Mutex
	written  [][]int16
	writeErr error
	running  bool
	cleared  int
	stops    int
	free     int
}

func (p *MockPlayback) ReferenceBuffer() *ringbuffer.Buffer { return p.reference }

func (p *MockPlayback) Write(ctx context.Context, pcm []int16) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writeErr != nil {
		return p.writeErr
	}
	p.written = append(p.written, append([]int16(nil), pcm...))
	return nil
}

func (p *MockPlayback) FreeSpace() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.free
}

func (p *MockPlayback) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.running = true
	return nil
}

func (p *MockPlayback) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.running = false
	p.stops++
	return nil
}

func (p *MockPlayback) Clear() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cleared++
	return nil
}

func (p *MockPlayback) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *MockPlayback) Close() error {
	p.log.add("close:playback")
	return p.reference.Close()
}

func (p *MockPlayback) writes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.written)
}

type MockFrontEnd struct {
	log       *lifecycleLog
	params    FrontEndParams
	updateErr error

	mu     sync.Mutex
	wakeup afe.WakeupConfig
}

func (f *MockFrontEnd) UpdateWakeupConfig(cfg afe.WakeupConfig) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.wakeup = cfg
	return nil
}

func (f *MockFrontEnd) Close() error {
	f.log.add("close:frontend")
	return nil
}

type MockButton struct {
	log    *lifecycleLog
	params ButtonParams
}

func (b *MockButton) Close() error {
	b.log.add("close:button")
	return nil
}

// MockFactory builds mock collaborators. failAt names the stage that
// returns failErr. With realFrontEnd set, NewFrontEnd builds a real
// afe.Wrapper reading the mock hardware.
type MockFactory struct {
	log          lifecycleLog
	failAt       string
	failErr      error
	realFrontEnd bool

	hw       *MockHardware
	playback *MockPlayback
	frontEnd *MockFrontEnd
	wrapper  *afe.Wrapper
	button   *MockButton
}

func (f *MockFactory) fail(stage string) error {
	if f.failAt != stage {
		return nil
	}
	if f.failErr != nil {
		return f.failErr
	}
	return errors.New(stage + " unavailable")
}

func (f *MockFactory) NewHardware(mic hal.MicConfig, speaker hal.SpeakerConfig, logger Logger) (Hardware, error) {
	if err := f.fail("hardware"); err != nil {
		return nil, err
	}
	f.log.add("new:hardware")
	f.hw = &MockHardware{log: &f.log, mic: make(chan []int16, 64), micCfg: mic, spkCfg: speaker}
	return f.hw, nil
}

func (f *MockFactory) NewPlayback(hw Hardware, params PlaybackParams) (Playback, error) {
	if err := f.fail("playback"); err != nil {
		return nil, err
	}
	ref, err := ringbuffer.New(params.ReferenceSamples, ringbuffer.WithOverwrite())
	if err != nil {
		return nil, err
	}
	f.log.add("new:playback")
	f.playback = &MockPlayback{log: &f.log, params: params, reference: ref, free: params.PlaybackSamples}
	return f.playback, nil
}

func (f *MockFactory) NewFrontEnd(hw Hardware, params FrontEndParams) (FrontEnd, error) {
	if err := f.fail("frontend"); err != nil {
		return nil, err
	}
	f.log.add("new:frontend")
	if f.realFrontEnd {
		w, err := afe.New(afe.Config{
			Mic:          hw,
			Reference:    params.Reference,
			Wakeup:       params.Wakeup,
			VAD:          params.VAD,
			Features:     params.Features,
			Gate:         params.Gate,
			OnEvent:      params.OnEvent,
			OnRecord:     params.OnRecord,
			FrameSamples: 160,
			SampleRate:   16000,
		})
		if err != nil {
			return nil, err
		}
		f.wrapper = w
		return w, nil
	}
	f.frontEnd = &MockFrontEnd{log: &f.log, params: params}
	return f.frontEnd, nil
}

func (f *MockFactory) NewButton(params ButtonParams) (Button, error) {
	if err := f.fail("button"); err != nil {
		return nil, err
	}
	f.log.add("new:button")
	f.button = &MockButton{log: &f.log, params: params}
	return f.button, nil
}

// eventSink collects delivered events
type eventSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *eventSink) handle(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *eventSink) get() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func (s *eventSink) waitFor(t *testing.T, n int) []Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if evs := s.get(); len(evs) >= n {
			return evs
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d events, got %d", n, len(s.get()))
	return nil
}

func testConfig(sink *eventSink) Config {
	cfg := DefaultConfig()
	cfg.OnEvent = sink.handle
	return cfg
}

func newInitialized(t *testing.T) (*Manager, *MockFactory, *eventSink) {
	t.Helper()
	factory := &MockFactory{}
	sink := &eventSink{}
	m := NewWithFactory(factory, nil)
	if err := m.Init(testConfig(sink)); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(m.Deinit)
	return m, factory, sink
}
