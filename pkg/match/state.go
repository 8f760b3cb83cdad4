package match

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/yourusername/bgrules/pkg/engine"
)

// StateVersion is the current persisted layout version.
const StateVersion = 1

// ErrInvalidState is returned when a saved state breaks a board or turn
// invariant. It wraps engine.ErrInvariant.
var ErrInvalidState = fmt.Errorf("%w: invalid match state", engine.ErrInvariant)

// State is the persisted form of a match.
type State struct {
	Version    int        `json:"version"`
	MatchID    uuid.UUID  `json:"match_id"`
	PositionID string     `json:"position_id"`          // gnubg ID with side_to_move on roll
	SideToMove string     `json:"side_to_move"`         // "light" or "dark"
	Started    bool       `json:"started"`              // opening roll done
	Roll       *[2]int    `json:"roll,omitempty"`       // last roll
	Remaining  []int      `json:"remaining,omitempty"`  // pips left in the active turn
	TurnStart  string     `json:"turn_start,omitempty"` // gnubg ID of the board the active turn began from
	Played     [][2]int   `json:"played,omitempty"`     // [origin, pip] of each move of the active turn
	TurnEnded  bool       `json:"turn_ended"`           // no turn in progress
	Opening    *[2]int    `json:"opening,omitempty"`    // opening roll not yet played
	Bar        SideCounts `json:"bar"`                  // checkers on the bar
	Tray       SideCounts `json:"tray"`                 // checkers borne off
	Points     []Point    `json:"points"`               // points 1..24
	Winner     string     `json:"winner,omitempty"`     // set once the match is over
	Turns      int        `json:"turns"`                // turns begun so far
}

// SideCounts holds one counter per side.
type SideCounts struct {
	Light int `json:"light"`
	Dark  int `json:"dark"`
}

func (c SideCounts) of(side engine.Side) int {
	if side == engine.Dark {
		return c.Dark
	}
	return c.Light
}

// Point is one board point; Side is empty when Count is zero.
type Point struct {
	Side  string `json:"side,omitempty"`
	Count int    `json:"count"`
}

// FromMatch captures the state of m.
func FromMatch(m *engine.Match) State {
	return FromMatchState(m.State())
}

// FromMatchState converts an engine snapshot to its persisted form.
func FromMatchState(ms engine.MatchState) State {
	b := ms.Board
	st := State{
		Version:    StateVersion,
		MatchID:    ms.ID,
		PositionID: b.PositionID(ms.SideToMove),
		SideToMove: ms.SideToMove.String(),
		Started:    ms.Started,
		TurnEnded:  !ms.TurnActive,
		Bar:        SideCounts{Light: b.Bar(engine.Light), Dark: b.Bar(engine.Dark)},
		Tray:       SideCounts{Light: b.Tray(engine.Light), Dark: b.Tray(engine.Dark)},
		Points:     make([]Point, engine.NumPoints),
		Turns:      ms.Turns,
	}
	if ms.LastRoll.Valid() {
		r := [2]int(ms.LastRoll)
		st.Roll = &r
	}
	if ms.TurnActive {
		st.Remaining = ms.Remaining.Values()
		if len(ms.Played) > 0 {
			st.TurnStart = ms.TurnStart.PositionID(ms.SideToMove)
		}
		for _, mv := range ms.Played {
			st.Played = append(st.Played, [2]int{mv.Origin, mv.Pip})
		}
	}
	if ms.Opening != nil {
		r := [2]int(*ms.Opening)
		st.Opening = &r
	}
	for i := 1; i <= engine.NumPoints; i++ {
		p := b.Point(i)
		if side, ok := p.Side(); ok {
			st.Points[i-1] = Point{Side: side.String(), Count: p.Count()}
		}
	}
	if ms.HasWinner {
		st.Winner = ms.Winner.String()
	}
	return st
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}

// MatchState decodes and validates the persisted form.
func (st State) MatchState() (engine.MatchState, error) {
	var ms engine.MatchState
	if st.Version != StateVersion {
		return ms, invalid("unsupported version %d", st.Version)
	}
	side, err := engine.ParseSide(st.SideToMove)
	if err != nil {
		return ms, invalid("side_to_move: %v", err)
	}
	if len(st.Points) != engine.NumPoints {
		return ms, invalid("%d points, want %d", len(st.Points), engine.NumPoints)
	}
	if st.Turns < 0 {
		return ms, invalid("negative turn count %d", st.Turns)
	}

	var b engine.Board
	for i, p := range st.Points {
		switch {
		case p.Count < 0 || p.Count > engine.CheckersPerSide:
			return ms, invalid("point %d holds %d checkers", i+1, p.Count)
		case p.Count == 0:
			if p.Side != "" {
				return ms, invalid("empty point %d has side %q", i+1, p.Side)
			}
			continue
		}
		owner, err := engine.ParseSide(p.Side)
		if err != nil {
			return ms, invalid("point %d: %v", i+1, err)
		}
		b.SetPoint(i+1, engine.Occupied(owner, p.Count))
	}
	for _, s := range engine.Sides {
		bar, tray := st.Bar.of(s), st.Tray.of(s)
		if bar < 0 || bar > engine.CheckersPerSide || tray < 0 || tray > engine.CheckersPerSide {
			return ms, invalid("%s bar %d tray %d out of range", s, bar, tray)
		}
		b.SetBar(s, bar)
		b.SetTray(s, tray)
	}
	if err := b.Validate(); err != nil {
		return ms, fmt.Errorf("%w: %w", ErrInvalidState, err)
	}
	if st.PositionID != "" && st.PositionID != b.PositionID(side) {
		return ms, invalid("position_id %s does not match board %s", st.PositionID, b.PositionID(side))
	}

	ms = engine.MatchState{
		ID:         st.MatchID,
		Board:      b,
		SideToMove: side,
		Started:    st.Started,
		TurnActive: !st.TurnEnded,
		Turns:      st.Turns,
	}
	if st.Roll != nil {
		ms.LastRoll = engine.Roll(*st.Roll)
		if !ms.LastRoll.Valid() {
			return ms, invalid("roll %v", *st.Roll)
		}
	}
	if st.Opening != nil {
		r := engine.Roll(*st.Opening)
		if !r.Valid() || r.IsDouble() {
			return ms, invalid("opening roll %v", *st.Opening)
		}
		ms.Opening = &r
	}

	if ms.TurnActive {
		if st.Roll == nil {
			return ms, invalid("active turn without a roll")
		}
		if len(st.Remaining) == 0 || len(st.Remaining) > 4 {
			return ms, invalid("active turn with %d remaining pips", len(st.Remaining))
		}
		for _, pip := range st.Remaining {
			if pip < 1 || pip > 6 {
				return ms, invalid("remaining pip %d", pip)
			}
		}
		ms.Remaining = engine.PipsOf(st.Remaining...)
		if err := st.decodeTurn(side, &ms); err != nil {
			return ms, err
		}
	} else if len(st.Remaining) > 0 || len(st.Played) > 0 || st.TurnStart != "" {
		return ms, invalid("ended turn with remaining pips %v and moves %v", st.Remaining, st.Played)
	}

	winner, won := engine.Winner(&b)
	switch {
	case st.Winner == "" && won:
		return ms, invalid("%s has borne off all checkers but no winner is recorded", winner)
	case st.Winner != "":
		w, err := engine.ParseSide(st.Winner)
		if err != nil {
			return ms, invalid("winner: %v", err)
		}
		if !won || w != winner {
			return ms, invalid("%s recorded as winner", w)
		}
		if ms.TurnActive {
			return ms, invalid("turn in progress after the match ended")
		}
		ms.Winner, ms.HasWinner = w, true
	}
	return ms, nil
}

// decodeTurn fills in the start board and move history of the active
// turn. The moves themselves are checked when the match is restored.
func (st State) decodeTurn(side engine.Side, ms *engine.MatchState) error {
	switch {
	case len(st.Played) == 0 && st.TurnStart == "":
		return nil
	case len(st.Played) == 0:
		return invalid("turn_start without played moves")
	case st.TurnStart == "":
		return invalid("moves played without turn_start")
	}
	start, err := engine.BoardFromPositionID(st.TurnStart, side)
	if err != nil {
		return fmt.Errorf("%w: turn_start: %w", ErrInvalidState, err)
	}
	ms.TurnStart = start
	if total := ms.LastRoll.Pips().Len(); len(st.Played)+len(st.Remaining) > total {
		return invalid("%d moves and %d pips left from a roll of %d", len(st.Played), len(st.Remaining), total)
	}
	for _, mv := range st.Played {
		if mv[0] < engine.BarOrigin || mv[0] > engine.NumPoints || mv[1] < 1 || mv[1] > 6 {
			return invalid("played move %v", mv)
		}
		ms.Played = append(ms.Played, engine.PlayedMove{Origin: mv[0], Pip: mv[1]})
	}
	return nil
}

// Restore validates st and rebuilds the match it describes.
func (st State) Restore(opts engine.MatchOptions) (*engine.Match, error) {
	ms, err := st.MatchState()
	if err != nil {
		return nil, err
	}
	m, err := engine.RestoreMatch(ms, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidState, err)
	}
	return m, nil
}

// Save writes st as indented JSON.
func Save(w io.Writer, st State) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(st); err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}
	return nil
}

// Load reads a state written by Save and validates it.
func Load(r io.Reader) (State, error) {
	var st State
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&st); err != nil {
		return State{}, fmt.Errorf("%w: decoding: %v", ErrInvalidState, err)
	}
	if _, err := st.MatchState(); err != nil {
		return State{}, err
	}
	return st, nil
}

// SaveFile writes m's state to path, replacing the file atomically.
func SaveFile(path string, m *engine.Match) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("saving state: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Save(tmp, FromMatch(m)); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("saving state: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("saving state: %w", err)
	}
	return nil
}

// LoadFile reads the state at path and restores the match.
func LoadFile(path string, opts engine.MatchOptions) (*engine.Match, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loading state: %w", err)
	}
	defer f.Close()

	st, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return st.Restore(opts)
}
