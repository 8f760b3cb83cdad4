package engine

import (
	"errors"
	"math/rand/v2"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Match lifecycle errors. These indicate a caller driving the match out
// of order.
var (
	ErrMatchStarted    = errors.New("match already started")
	ErrMatchNotStarted = errors.New("match not started")
	ErrMatchOver       = errors.New("match is over")
	ErrTurnInProgress  = errors.New("turn still in progress")
)

// MatchOptions configures a Match.
type MatchOptions struct {
	ID     uuid.UUID   // zero value picks a random ID
	Source RandSource  // nil seeds a PCG source from the runtime RNG
	Sink   EventSink   // optional
	Logger *zap.Logger // nil disables logging
	Rules  Rules
}

// OpeningRoll is the result of the opening procedure.
type OpeningRoll struct {
	Light   int
	Dark    int
	First   Side
	Rerolls int
}

// Roll is the roll the first player plays: the winning die first.
func (o OpeningRoll) Roll() Roll {
	if o.First == Dark {
		return Roll{o.Dark, o.Light}
	}
	return Roll{o.Light, o.Dark}
}

// MatchState is the externally observable state of a match.
type MatchState struct {
	ID         uuid.UUID
	Board      Board
	SideToMove Side
	Started    bool
	LastRoll   Roll         // zero before the first turn
	TurnActive bool         // a turn is in progress
	Remaining  Pips         // pips left in the active turn
	Opening    *Roll        // opening roll not yet played
	TurnStart  Board        // board the active turn began from
	Played     []PlayedMove // moves of the active turn; Origin and Pip are replayed
	Winner     Side
	HasWinner  bool
	Turns      int
}

// Match alternates turns between the two sides until one bears off all
// fifteen checkers. A Match is not safe for concurrent use; run separate
// matches on separate goroutines.
type Match struct {
	id      uuid.UUID
	board   Board
	dice    *Dice
	side    Side
	started bool
	opening *Roll
	last    Roll
	turn    *Turn
	turns   int

	winner    Side
	hasWinner bool

	rules  Rules
	cache  *PlanCache
	sink   EventSink
	logger *zap.Logger
}

// NewMatch creates a match on the standard opening position.
func NewMatch(opts MatchOptions) *Match {
	src := opts.Source
	if src == nil {
		src = NewRandSource(rand.Uint64())
	}
	id := opts.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Match{
		id:     id,
		board:  StandardBoard(),
		dice:   NewDice(src),
		rules:  opts.Rules,
		cache:  NewPlanCache(DefaultPlanCacheSize),
		sink:   opts.Sink,
		logger: logger.With(zap.String("match", id.String())),
	}
}

// RestoreMatch rebuilds a match from a saved state. The board is
// re-validated. An active turn with a move history is replayed from its
// starting board so its moves can still be undone; without one it is
// resumed with its remaining pips. Restoring publishes no events.
func RestoreMatch(st MatchState, opts MatchOptions) (*Match, error) {
	if st.ID != uuid.Nil {
		opts.ID = st.ID
	}
	m := NewMatch(opts)
	if err := st.Board.Validate(); err != nil {
		return nil, err
	}
	if !st.SideToMove.Valid() {
		return nil, invariantf("invalid side to move %d", st.SideToMove)
	}
	m.board = st.Board
	m.side = st.SideToMove
	m.started = st.Started || st.TurnActive || st.Turns > 0
	m.last = st.LastRoll
	m.turns = st.Turns
	if st.Opening != nil {
		if !st.Opening.Valid() {
			return nil, invariantf("invalid opening roll %v", *st.Opening)
		}
		r := *st.Opening
		m.opening = &r
	}

	if w, ok := Winner(&m.board); ok {
		m.winner, m.hasWinner = w, true
		return m, nil
	}
	if st.HasWinner {
		return nil, invariantf("%s recorded as winner with %d borne off", st.Winner, m.board.Tray(st.Winner))
	}

	if st.TurnActive {
		if err := m.dice.Set(st.LastRoll); err != nil {
			return nil, err
		}
		t, err := m.rebuildTurn(st)
		if err != nil {
			return nil, err
		}
		m.board = t.Start()
		m.turn = t
	}
	return m, nil
}

// rebuildTurn recreates the turn in progress described by st without
// publishing events, then checks it lands on the saved board and pips.
func (m *Match) rebuildTurn(st MatchState) (*Turn, error) {
	quiet := TurnOptions{Rules: m.rules, Cache: m.cache}
	var t *Turn
	var err error
	if len(st.Played) == 0 {
		t, err = ResumeTurn(st.Board, m.side, st.LastRoll, st.Remaining, quiet)
	} else {
		t, err = BeginTurn(st.TurnStart, m.side, st.LastRoll, quiet)
		for i := 0; err == nil && i < len(st.Played); i++ {
			mv := st.Played[i]
			if rerr := t.TryMove(mv.Origin, mv.Pip); rerr != nil {
				err = invariantf("replaying move %d/%d: %v", mv.Origin, mv.Pip, rerr)
			}
		}
	}
	if err != nil {
		return nil, err
	}

	switch {
	case t.Ended():
		return nil, invariantf("saved turn of %s has nothing left to play", m.side)
	case t.Board() != st.Board:
		return nil, invariantf("saved moves do not lead to the saved board")
	case t.Remaining() != st.Remaining:
		return nil, invariantf("saved moves leave %s, saved %s", t.Remaining(), st.Remaining)
	}
	t.opts = m.turnOptions()
	return t, nil
}

// ID returns the match identifier.
func (m *Match) ID() uuid.UUID { return m.id }

// Start runs the opening roll: each side rolls one die, ties are rolled
// again, and the higher die moves first playing both dice as its first
// roll.
func (m *Match) Start() (OpeningRoll, error) {
	if m.started {
		return OpeningRoll{}, ErrMatchStarted
	}
	var o OpeningRoll
	for {
		o.Light, o.Dark = m.dice.Die(), m.dice.Die()
		if o.Light != o.Dark {
			break
		}
		o.Rerolls++
	}
	return m.open(o), nil
}

// StartWith runs the opening with known dice, for replays. Equal dice
// are refused since they would have been rolled again.
func (m *Match) StartWith(light, dark int) (OpeningRoll, error) {
	if m.started {
		return OpeningRoll{}, ErrMatchStarted
	}
	if !(Roll{light, dark}).Valid() || light == dark {
		return OpeningRoll{}, invariantf("invalid opening %d-%d", light, dark)
	}
	return m.open(OpeningRoll{Light: light, Dark: dark}), nil
}

func (m *Match) open(o OpeningRoll) OpeningRoll {
	o.First = Light
	if o.Dark > o.Light {
		o.First = Dark
	}

	r := o.Roll()
	m.opening = &r
	m.side = o.First
	m.started = true
	m.logger.Info("match started",
		zap.Stringer("first", o.First),
		zap.Int("light", o.Light),
		zap.Int("dark", o.Dark),
		zap.Int("rerolls", o.Rerolls))
	if m.sink != nil {
		m.sink.Handle(Event{Type: EventMatchStarted, Side: o.First, Roll: Roll{o.Light, o.Dark}})
	}
	return o
}

func (m *Match) turnOptions() TurnOptions {
	return TurnOptions{
		Rules: m.rules,
		Sink:  m.sink,
		Cache: m.cache,
		onEnd: m.finishTurn,
	}
}

// NextTurn rolls for the side to move and returns its Turn. The side
// changes once the turn ends; a turn with no legal move is returned
// already ended.
func (m *Match) NextTurn() (*Turn, error) {
	switch {
	case !m.started:
		return nil, ErrMatchNotStarted
	case m.hasWinner:
		return nil, ErrMatchOver
	case m.turn != nil && !m.turn.Ended():
		return nil, ErrTurnInProgress
	}

	var roll Roll
	if m.opening != nil {
		roll = *m.opening
		m.opening = nil
		if err := m.dice.Set(roll); err != nil {
			return nil, err
		}
	} else {
		roll = m.dice.Roll()
	}
	return m.beginTurn(roll)
}

// PlayRoll starts the next turn with a roll supplied by the caller, for
// replaying recorded games.
func (m *Match) PlayRoll(roll Roll) (*Turn, error) {
	switch {
	case !m.started:
		return nil, ErrMatchNotStarted
	case m.hasWinner:
		return nil, ErrMatchOver
	case m.turn != nil && !m.turn.Ended():
		return nil, ErrTurnInProgress
	}
	m.opening = nil
	if err := m.dice.Set(roll); err != nil {
		return nil, err
	}
	return m.beginTurn(roll)
}

func (m *Match) beginTurn(roll Roll) (*Turn, error) {
	m.last = roll
	m.turns++
	m.logger.Debug("turn began",
		zap.Int("turn", m.turns),
		zap.Stringer("side", m.side),
		zap.Stringer("roll", roll))

	t, err := BeginTurn(m.board, m.side, roll, m.turnOptions())
	if err != nil {
		return nil, err
	}
	m.turn = t
	return t, nil
}

// finishTurn adopts the turn's board and hands play to the opponent.
func (m *Match) finishTurn(t *Turn) {
	m.board = t.Board()
	m.dice.Reset()
	m.logger.Debug("turn ended",
		zap.Int("turn", m.turns),
		zap.Stringer("side", t.Side()),
		zap.Stringer("reason", t.EndReason()),
		zap.Int("moves", len(t.moves)))

	if w, ok := Winner(&m.board); ok {
		m.winner, m.hasWinner = w, true
		m.logger.Info("match ended",
			zap.Stringer("winner", w),
			zap.Int("turns", m.turns),
			zap.Int("loser_pips", m.board.PipCount(w.Opponent())))
		if m.sink != nil {
			m.sink.Handle(Event{Type: EventMatchEnded, Side: w, Winner: w})
		}
		return
	}
	m.side = m.side.Opponent()
}

// Turn returns the current or most recent turn, if any.
func (m *Match) Turn() *Turn { return m.turn }

// Board returns the board, including moves of a turn in progress.
func (m *Match) Board() Board {
	if m.turn != nil && !m.turn.Ended() {
		return m.turn.Board()
	}
	return m.board
}

// Winner returns the winning side once the match is over.
func (m *Match) Winner() (Side, bool) { return m.winner, m.hasWinner }

// State returns a snapshot of the match.
func (m *Match) State() MatchState {
	st := MatchState{
		ID:         m.id,
		Board:      m.Board(),
		SideToMove: m.side,
		Started:    m.started,
		LastRoll:   m.last,
		Winner:     m.winner,
		HasWinner:  m.hasWinner,
		Turns:      m.turns,
	}
	if m.opening != nil {
		r := *m.opening
		st.Opening = &r
	}
	if m.turn != nil && !m.turn.Ended() {
		st.TurnActive = true
		st.Remaining = m.turn.Remaining()
		st.TurnStart = m.turn.Start()
		st.Played = m.turn.Moves()
	}
	return st
}
