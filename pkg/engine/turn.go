package engine

// Rules holds the optional rule switches.
type Rules struct {
	// AllowEarlyEnd lets a player end a turn while legal moves remain.
	// Standard play forbids it.
	AllowEarlyEnd bool `yaml:"allow_early_end" env:"ALLOW_EARLY_END"`
}

// TurnOptions configures a Turn.
type TurnOptions struct {
	Rules Rules
	Sink  EventSink  // optional
	Cache *PlanCache // optional; shared by successive turns of a match

	onEnd func(*Turn)
}

// PlayedMove is one committed checker move.
type PlayedMove struct {
	Origin int
	Pip    int
	Dest   int // 0 or 25 for a bear-off
	Hit    bool

	before     Board
	beforePips Pips
}

// Turn is the controller for one side's turn. It owns the live board and
// the remaining pips; every accepted move commits immediately and every
// rejected one leaves the turn untouched.
type Turn struct {
	side      Side
	roll      Roll
	start     Board
	board     Board
	remaining Pips
	maxMoves  int
	plan      Plan
	planner   *Planner
	opts      TurnOptions
	moves     []PlayedMove
	ended     bool
	endReason TurnEndReason
}

// BeginTurn starts side's turn on board with roll. If no pip can be
// played the turn ends immediately.
func BeginTurn(board Board, side Side, roll Roll, opts TurnOptions) (*Turn, error) {
	if !roll.Valid() {
		return nil, invariantf("invalid roll %v", roll)
	}
	return ResumeTurn(board, side, roll, roll.Pips(), opts)
}

// ResumeTurn rebuilds a turn part-way through, with remaining pips left
// of roll. Used when restoring a saved match.
func ResumeTurn(board Board, side Side, roll Roll, remaining Pips, opts TurnOptions) (*Turn, error) {
	if !side.Valid() {
		return nil, invariantf("invalid side %d", side)
	}
	if !roll.Valid() {
		return nil, invariantf("invalid roll %v", roll)
	}
	if !subset(remaining, roll.Pips()) {
		return nil, invariantf("pips %v not part of roll %v", remaining, roll)
	}
	if err := board.Validate(); err != nil {
		return nil, err
	}

	t := &Turn{
		side:      side,
		roll:      roll,
		start:     board,
		board:     board,
		remaining: remaining,
		planner:   NewPlanner(side, opts.Cache),
		opts:      opts,
	}
	t.replan()
	t.maxMoves = t.plan.MaxMoves
	t.emit(Event{Type: EventTurnBegan, Roll: roll, MaxUsable: t.maxMoves})

	if t.IsFinished() {
		t.finish(t.naturalEnd())
	}
	return t, nil
}

func subset(a, b Pips) bool {
	for v := 1; v <= 6; v++ {
		if a.Count(v) > b.Count(v) {
			return false
		}
	}
	return true
}

func (t *Turn) emit(e Event) {
	if t.opts.Sink == nil {
		return
	}
	e.Side = t.side
	t.opts.Sink.Handle(e)
}

func (t *Turn) replan() {
	t.plan = t.planner.Plan(&t.board, t.remaining)
}

func (t *Turn) rejected(reason Reason, origin, pip int) error {
	t.emit(Event{Type: EventMoveRejected, Origin: origin, Pip: pip, Rejection: reason})
	return reject(reason, origin, pip)
}

// TryMove plays pip from origin (0 for the bar). It returns nil when the
// move was accepted and committed, a *Rejection when it was refused, or
// an ErrInvariant error if the engine itself is inconsistent.
func (t *Turn) TryMove(origin, pip int) error {
	if t.ended {
		return t.rejected(TurnAlreadyEnded, origin, pip)
	}
	if !t.remaining.Has(pip) {
		return t.rejected(PipUnavailable, origin, pip)
	}
	if !t.plan.Allows(pip) {
		return t.rejected(PipNotPermittedByMaxUsage, origin, pip)
	}
	if err := CheckMove(&t.board, t.side, origin, pip); err != nil {
		reason, _ := ReasonOf(err)
		return t.rejected(reason, origin, pip)
	}
	if !t.planner.Keeps(&t.board, t.remaining, origin, pip, t.plan.MaxMoves) {
		return t.rejected(PipNotPermittedByMaxUsage, origin, pip)
	}

	hit := IsHit(&t.board, t.side, origin, pip)
	next, err := ApplyMove(t.board, t.side, origin, pip)
	if err != nil {
		return err
	}

	t.moves = append(t.moves, PlayedMove{
		Origin:     origin,
		Pip:        pip,
		Dest:       clampDest(Destination(origin, pip, t.side)),
		Hit:        hit,
		before:     t.board,
		beforePips: t.remaining,
	})
	t.board = next
	t.remaining.Remove(pip)
	t.replan()
	t.emit(Event{Type: EventMoveAccepted, Origin: origin, Pip: pip, Hit: hit, Board: t.board})

	if t.IsFinished() {
		t.finish(t.naturalEnd())
	}
	return nil
}

// clampDest maps bear-off destinations to 0 or 25.
func clampDest(dest int) int {
	switch {
	case dest < 1:
		return 0
	case dest > NumPoints:
		return NumPoints + 1
	}
	return dest
}

// Undo takes back the last move of the turn.
func (t *Turn) Undo() error {
	if t.ended {
		return t.rejected(TurnAlreadyEnded, 0, 0)
	}
	if len(t.moves) == 0 {
		return t.rejected(NothingToUndo, 0, 0)
	}
	last := t.moves[len(t.moves)-1]
	t.moves = t.moves[:len(t.moves)-1]
	t.board = last.before
	t.remaining = last.beforePips
	t.replan()
	t.emit(Event{Type: EventMoveUndone, Origin: last.Origin, Pip: last.Pip, Board: t.board})
	return nil
}

// EndTurn ends the turn on the player's request. Unless the rules allow
// it, the request is refused while a legal move remains.
func (t *Turn) EndTurn() error {
	if t.ended {
		return t.rejected(TurnAlreadyEnded, 0, 0)
	}
	if t.plan.MaxMoves > 0 && !t.opts.Rules.AllowEarlyEnd {
		return t.rejected(PlayableMovesRemain, 0, 0)
	}
	t.finish(PlayerEnded)
	return nil
}

// IsFinished reports whether the turn is over or can make no further
// progress: no pips remain, no remaining pip is playable, or the side has
// won.
func (t *Turn) IsFinished() bool {
	if t.ended || t.remaining.Empty() || t.plan.MaxMoves == 0 {
		return true
	}
	_, won := Winner(&t.board)
	return won
}

func (t *Turn) naturalEnd() TurnEndReason {
	if t.remaining.Empty() {
		return AllPipsUsed
	}
	return NoLegalMove
}

func (t *Turn) finish(reason TurnEndReason) {
	t.ended = true
	t.endReason = reason
	t.emit(Event{Type: EventTurnEnded, EndReason: reason})
	if t.opts.onEnd != nil {
		t.opts.onEnd(t)
	}
}

// Side returns the side to move.
func (t *Turn) Side() Side { return t.side }

// Roll returns the dice values of the turn.
func (t *Turn) Roll() Roll { return t.roll }

// Board returns the live board.
func (t *Turn) Board() Board { return t.board }

// Start returns the board as it was when the turn began, or when it was
// resumed without its move history.
func (t *Turn) Start() Board { return t.start }

// Remaining returns the pips not yet played.
func (t *Turn) Remaining() Pips { return t.remaining }

// MaxMoves is the number of pips the turn must play in total. For a turn
// resumed without its move history it counts only the pips left at
// resumption.
func (t *Turn) MaxMoves() int { return t.maxMoves }

// Permitted returns the pip values that may be played next.
func (t *Turn) Permitted() []int {
	if t.ended {
		return nil
	}
	return append([]int(nil), t.plan.Permitted...)
}

// LegalOrigins returns the origins from which pip may be played next,
// taking max-usage into account.
func (t *Turn) LegalOrigins(pip int) []int {
	if t.ended || !t.plan.Allows(pip) {
		return nil
	}
	var out []int
	for _, origin := range LegalOrigins(&t.board, t.side, pip) {
		if t.planner.Keeps(&t.board, t.remaining, origin, pip, t.plan.MaxMoves) {
			out = append(out, origin)
		}
	}
	return out
}

// Moves returns the moves committed so far.
func (t *Turn) Moves() []PlayedMove {
	return append([]PlayedMove(nil), t.moves...)
}

// Ended reports whether the turn has been closed.
func (t *Turn) Ended() bool { return t.ended }

// EndReason returns why the turn ended, or TurnInProgress.
func (t *Turn) EndReason() TurnEndReason { return t.endReason }
