package engine

import "fmt"

// EventType identifies a turn or match lifecycle event.
type EventType string

const (
	EventMatchStarted EventType = "match_started" // Roll holds {light, dark}
	EventTurnBegan    EventType = "turn_began"
	EventMoveAccepted EventType = "move_accepted"
	EventMoveRejected EventType = "move_rejected"
	EventMoveUndone   EventType = "move_undone"
	EventTurnEnded    EventType = "turn_ended"
	EventMatchEnded   EventType = "match_ended"
)

// TurnEndReason says why a turn finished.
type TurnEndReason int

const (
	TurnInProgress TurnEndReason = iota
	AllPipsUsed
	NoLegalMove
	PlayerEnded
)

func (r TurnEndReason) String() string {
	switch r {
	case TurnInProgress:
		return "in progress"
	case AllPipsUsed:
		return "all pips used"
	case NoLegalMove:
		return "no legal move"
	case PlayerEnded:
		return "player ended"
	}
	return fmt.Sprintf("end(%d)", int(r))
}

// Event is published to an EventSink. Only the fields relevant to Type
// are set.
type Event struct {
	Type EventType
	Side Side

	Roll      Roll // TurnBegan
	MaxUsable int  // TurnBegan

	Origin int   // MoveAccepted, MoveRejected, MoveUndone
	Pip    int   // MoveAccepted, MoveRejected, MoveUndone
	Hit    bool  // MoveAccepted
	Board  Board // MoveAccepted, MoveUndone

	Rejection Reason        // MoveRejected
	EndReason TurnEndReason // TurnEnded
	Winner    Side          // MatchEnded
}

// EventSink consumes lifecycle events. Sinks are called synchronously on
// the goroutine driving the engine.
type EventSink interface {
	Handle(Event)
}

// EventFunc adapts a function to EventSink.
type EventFunc func(Event)

// Handle calls f(e).
func (f EventFunc) Handle(e Event) { f(e) }

// EventLog records every event it receives.
type EventLog struct {
	Events []Event
}

// Handle appends e.
func (l *EventLog) Handle(e Event) { l.Events = append(l.Events, e) }

// OfType returns the recorded events of type t.
func (l *EventLog) OfType(t EventType) []Event {
	var out []Event
	for _, e := range l.Events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type multiSink []EventSink

func (m multiSink) Handle(e Event) {
	for _, s := range m {
		s.Handle(e)
	}
}

// Tee fans events out to every non-nil sink.
func Tee(sinks ...EventSink) EventSink {
	var out multiSink
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}
