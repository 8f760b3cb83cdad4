// Package match provides persistence and transcripts for backgammon
// matches: saving and loading a match's state, and recording a game so it
// can be exported in MAT-style notation and replayed.
package match

import (
	"github.com/google/uuid"

	"github.com/yourusername/bgrules/pkg/engine"
)

// Record is the transcript of one game.
type Record struct {
	MatchID uuid.UUID
	Light   string // Light player's name
	Dark    string // Dark player's name
	Event   string
	Date    string // YYYY-MM-DD

	Opening   engine.OpeningRoll
	Turns     []TurnRecord
	Winner    engine.Side
	HasWinner bool
}

// TurnRecord is one side's turn: the roll and the moves played.
type TurnRecord struct {
	Number int // 1-indexed
	Side   engine.Side
	Roll   engine.Roll
	Moves  []MoveRecord
	End    engine.TurnEndReason
}

// MoveRecord is one checker move in board numbering.
type MoveRecord struct {
	Origin int // 0 = bar
	Pip    int
	Hit    bool
}

// NewRecord creates an empty record for a match.
func NewRecord(id uuid.UUID, light, dark string) *Record {
	return &Record{
		MatchID: id,
		Light:   light,
		Dark:    dark,
		Turns:   make([]TurnRecord, 0),
	}
}

// AddTurn starts a new turn in the record.
func (r *Record) AddTurn(side engine.Side, roll engine.Roll) *TurnRecord {
	r.Turns = append(r.Turns, TurnRecord{
		Number: len(r.Turns) + 1,
		Side:   side,
		Roll:   roll,
		Moves:  make([]MoveRecord, 0, 4),
	})
	return &r.Turns[len(r.Turns)-1]
}

// lastTurn returns the turn being recorded, if any.
func (r *Record) lastTurn() *TurnRecord {
	if len(r.Turns) == 0 {
		return nil
	}
	return &r.Turns[len(r.Turns)-1]
}

// Handle records engine events, so a Record can be passed as the
// EventSink of a match.
func (r *Record) Handle(e engine.Event) {
	switch e.Type {
	case engine.EventMatchStarted:
		r.Opening = engine.OpeningRoll{Light: e.Roll[0], Dark: e.Roll[1], First: e.Side}
	case engine.EventTurnBegan:
		r.AddTurn(e.Side, e.Roll)
	case engine.EventMoveAccepted:
		if t := r.lastTurn(); t != nil {
			t.Moves = append(t.Moves, MoveRecord{Origin: e.Origin, Pip: e.Pip, Hit: e.Hit})
		}
	case engine.EventMoveUndone:
		if t := r.lastTurn(); t != nil && len(t.Moves) > 0 {
			t.Moves = t.Moves[:len(t.Moves)-1]
		}
	case engine.EventTurnEnded:
		if t := r.lastTurn(); t != nil {
			t.End = e.EndReason
		}
	case engine.EventMatchEnded:
		r.Winner, r.HasWinner = e.Winner, true
	}
}
