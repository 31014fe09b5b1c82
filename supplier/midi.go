package supplier

import (
	"gitlab.com/gomidi/midi/v2"
)

type (
	// Event is a MIDI message positioned at a frame offset relative to the
	// start of the requested window.
	Event struct {
		Frame   int
		Message midi.Message
	}

	// EventSink receives MIDI events produced during supply.
	EventSink interface {
		AddEvent(frame int, msg midi.Message)
	}

	// EventList is a fixed capacity EventSink which keeps events ordered by
	// frame. Events beyond capacity are dropped and counted.
	EventList struct {
		events  []Event
		dropped int
	}
)

// NewEventList allocates an event list with capacity.
func NewEventList(capacity int) *EventList {
	return &EventList{
		events: make([]Event, 0, capacity),
	}
}

// AddEvent inserts the event keeping frame order. Events at equal frames
// keep insertion order.
func (l *EventList) AddEvent(frame int, msg midi.Message) {
	if len(l.events) == cap(l.events) {
		l.dropped++
		return
	}
	i := len(l.events)
	for i > 0 && l.events[i-1].Frame > frame {
		i--
	}
	l.events = append(l.events, Event{})
	copy(l.events[i+1:], l.events[i:])
	l.events[i] = Event{Frame: frame, Message: msg}
}

// Events returns ordered events. Slice is valid until next Reset.
func (l *EventList) Events() []Event {
	return l.events
}

// Len returns number of events.
func (l *EventList) Len() int {
	return len(l.events)
}

// Dropped returns number of events which didn't fit into capacity since
// last reset.
func (l *EventList) Dropped() int {
	return l.dropped
}

// Reset removes all events, capacity is kept.
func (l *EventList) Reset() {
	l.events = l.events[:0]
	l.dropped = 0
}

// windowSink passes only events within [from, to).
type windowSink struct {
	target   EventSink
	from, to int
}

func (s *windowSink) AddEvent(frame int, msg midi.Message) {
	if frame < s.from || frame >= s.to {
		return
	}
	s.target.AddEvent(frame, msg)
}

// scaleSink maps event frames by dividing them with ratio.
type scaleSink struct {
	target EventSink
	ratio  float64
	limit  int
}

func (s *scaleSink) AddEvent(frame int, msg midi.Message) {
	f := roundFrames(float64(frame) / s.ratio)
	if f >= s.limit {
		f = s.limit - 1
	}
	if f < 0 {
		f = 0
	}
	s.target.AddEvent(f, msg)
}
