package audiomgr

import (
	"github.com/lokutor-ai/audio-manager/pkg/afe"
	"github.com/lokutor-ai/audio-manager/pkg/button"
)

func translateButton(ev button.EventType) (Event, bool) {
	switch ev {
	case button.EventPress:
		return Event{Type: EventButtonTrigger}, true
	case button.EventRelease:
		return Event{Type: EventButtonRelease}, true
	default:
		return Event{}, false
	}
}

func translateFrontEnd(ev afe.Event) (Event, bool) {
	switch ev.Type {
	case afe.EventWakeupDetected:
		return Event{
			Type: EventWakeupDetected,
			Wakeup: &WakeupData{
				WakeWordIndex: ev.WakeWordIndex,
				VolumeDB:      ev.VolumeDB,
			},
		}, true
	case afe.EventVADStart:
		return Event{Type: EventVADStart}, true
	case afe.EventVADEnd:
		return Event{Type: EventVADEnd}, true
	default:
		return Event{}, false
	}
}

func (m *Manager) onButtonEvent(events chan<- Event, done <-chan struct{}, ev button.EventType) {
	out, ok := translateButton(ev)
	if !ok {
		return
	}
	m.logger.Info("button event", "type", string(out.Type))
	m.enqueue(events, done, out)
}

func (m *Manager) onFrontEndEvent(events chan<- Event, done <-chan struct{}, ev afe.Event) {
	out, ok := translateFrontEnd(ev)
	if !ok {
		return
	}
	m.enqueue(events, done, out)
}

// onFrontEndRecord forwards processed frames as-is. The front-end only
// produces them while recording, so the flag is not checked again here.
func (m *Manager) onFrontEndRecord(pcm []int16) {
	h := m.onRecord.Load()
	if h == nil || *h == nil {
		return
	}
	(*h)(pcm)
	m.metrics.Load().recordFrame()
}

// enqueue waits for queue space so no event is lost while the handler is
// slow. Once done is closed the event is dropped instead.
func (m *Manager) enqueue(events chan<- Event, done <-chan struct{}, ev Event) {
	select {
	case <-done:
		m.dropped(ev)
		return
	default:
	}
	select {
	case events <- ev:
	case <-done:
		m.dropped(ev)
	}
}

// tryEnqueue is enqueue without waiting
func (m *Manager) tryEnqueue(events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	default:
		m.dropped(ev)
		return false
	}
}

func (m *Manager) dropped(ev Event) {
	m.logger.Warn("event dropped", "type", string(ev.Type))
	m.metrics.Load().recordDropped()
}

// dispatch delivers events in order. After stop is closed it delivers what
// is still queued and returns.
func (m *Manager) dispatch(events <-chan Event, stop <-chan struct{}, handler EventHandler) {
	defer m.dispatchWG.Done()
	deliver := func(ev Event) {
		handler(ev)
		m.metrics.Load().recordEvent(ev.Type)
	}
	for {
		select {
		case ev := <-events:
			deliver(ev)
		case <-stop:
			for {
				select {
				case ev := <-events:
					deliver(ev)
				default:
					return
				}
			}
		}
	}
}
