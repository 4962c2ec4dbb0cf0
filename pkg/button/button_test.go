package button

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakePin struct {
	level atomic.Bool
	fail  atomic.Bool
}

func (p *fakePin) Read() (bool, error) {
	if p.fail.Load() {
		return false, errors.New("bus error")
	}
	return p.level.Load(), nil
}

type recorder struct {
	mu     sync.Mutex
	events []EventType
}

func (r *recorder) on(ev EventType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) get() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]EventType(nil), r.events...)
}

func newHandler(t *testing.T, pin Pin, activeLow bool, rec *recorder) *Handler {
	t.Helper()
	h, err := New(Config{
		Pin:          pin,
		ActiveLow:    activeLow,
		Debounce:     20 * time.Millisecond,
		PollInterval: 2 * time.Millisecond,
		OnEvent:      rec.on,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func TestNew_RequiresCallback(t *testing.T) {
	_, err := New(Config{Pin: &fakePin{}})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNew_InitialReadFailure(t *testing.T) {
	pin := &fakePin{}
	pin.fail.Store(true)
	_, err := New(Config{Pin: pin, OnEvent: func(EventType) {}})
	assert.ErrorIs(t, err, ErrPinUnavailable)
}

func TestHandler_ActiveLowPressRelease(t *testing.T) {
	pin := &fakePin{}
	pin.level.Store(true) // idle high
	rec := &recorder{}
	newHandler(t, pin, true, rec)

	pin.level.Store(false)
	require.Eventually(t, func() bool { return len(rec.get()) == 1 }, time.Second, time.Millisecond)

	pin.level.Store(true)
	require.Eventually(t, func() bool { return len(rec.get()) == 2 }, time.Second, time.Millisecond)

	assert.Equal(t, []EventType{EventPress, EventRelease}, rec.get())
}

func TestHandler_ActiveHigh(t *testing.T) {
	pin := &fakePin{}
	rec := &recorder{}
	newHandler(t, pin, false, rec)

	pin.level.Store(true)
	require.Eventually(t, func() bool { return len(rec.get()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, EventPress, rec.get()[0])
}

func TestHandler_IgnoresBounce(t *testing.T) {
	pin := &fakePin{}
	pin.level.Store(true)
	rec := &recorder{}
	newHandler(t, pin, true, rec)

	// glitches shorter than the debounce interval
	for i := 0; i < 5; i++ {
		pin.level.Store(false)
		time.Sleep(3 * time.Millisecond)
		pin.level.Store(true)
		time.Sleep(3 * time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, rec.get())
}

func TestHandler_ReadErrorsAreSkipped(t *testing.T) {
	pin := &fakePin{}
	pin.level.Store(true)
	rec := &recorder{}
	newHandler(t, pin, true, rec)

	pin.fail.Store(true)
	time.Sleep(20 * time.Millisecond)
	pin.fail.Store(false)
	pin.level.Store(false)

	require.Eventually(t, func() bool { return len(rec.get()) == 1 }, time.Second, time.Millisecond)
}

func TestHandler_CloseTwice(t *testing.T) {
	rec := &recorder{}
	h, err := New(Config{Pin: &fakePin{}, OnEvent: rec.on})
	require.NoError(t, err)
	require.NoError(t, h.Close())
	assert.ErrorIs(t, h.Close(), ErrClosed)
}

func TestEventType_String(t *testing.T) {
	assert.Equal(t, "PRESS", EventPress.String())
	assert.Equal(t, "RELEASE", EventRelease.String())
	assert.Equal(t, "UNKNOWN", EventType(0).String())
}
