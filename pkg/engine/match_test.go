package engine

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestMatchOpeningRerollsTies(t *testing.T) {
	log := &EventLog{}
	m := NewMatch(MatchOptions{
		Source: &fixedSource{faces: []int{4, 4, 2, 5}},
		Sink:   log,
	})

	o, err := m.Start()
	require.NoError(t, err)
	assert.Equal(t, 1, o.Rerolls)
	assert.Equal(t, 2, o.Light)
	assert.Equal(t, 5, o.Dark)
	assert.Equal(t, Dark, o.First)
	assert.Equal(t, Roll{5, 2}, o.Roll())

	started := log.OfType(EventMatchStarted)
	require.Len(t, started, 1)
	assert.Equal(t, Roll{2, 5}, started[0].Roll)

	_, err = m.Start()
	assert.ErrorIs(t, err, ErrMatchStarted)

	turn, err := m.NextTurn()
	require.NoError(t, err)
	assert.Equal(t, Dark, turn.Side())
	assert.Equal(t, Roll{5, 2}, turn.Roll())
}

func TestMatchLifecycleErrors(t *testing.T) {
	m := NewMatch(MatchOptions{Source: NewRandSource(1)})
	_, err := m.NextTurn()
	assert.ErrorIs(t, err, ErrMatchNotStarted)
	_, err = m.PlayRoll(Roll{3, 1})
	assert.ErrorIs(t, err, ErrMatchNotStarted)

	_, err = m.StartWith(3, 3)
	assert.ErrorIs(t, err, ErrInvariant)
	_, err = m.StartWith(3, 1)
	require.NoError(t, err)

	turn, err := m.NextTurn()
	require.NoError(t, err)
	assert.Equal(t, Light, turn.Side())
	_, err = m.NextTurn()
	assert.ErrorIs(t, err, ErrTurnInProgress)
	_, err = m.PlayRoll(Roll{2, 2})
	assert.ErrorIs(t, err, ErrTurnInProgress)
}

func TestMatchAlternatesSides(t *testing.T) {
	m := NewMatch(MatchOptions{Source: NewRandSource(3)})
	_, err := m.StartWith(1, 3)
	require.NoError(t, err)

	turn, err := m.NextTurn()
	require.NoError(t, err)
	assert.Equal(t, Dark, turn.Side())
	require.NoError(t, turn.TryMove(1, 1))
	require.NoError(t, turn.TryMove(17, 3))
	assert.True(t, turn.Ended())

	st := m.State()
	assert.Equal(t, Light, st.SideToMove)
	assert.False(t, st.TurnActive)
	assert.Nil(t, st.Opening)
	assert.Equal(t, 1, st.Turns)
	assert.Equal(t, Occupied(Dark, 1), st.Board.Point(20))

	next, err := m.PlayRoll(Roll{6, 5})
	require.NoError(t, err)
	assert.Equal(t, Light, next.Side())
	require.NoError(t, next.TryMove(24, 6))

	live := m.Board()
	assert.Equal(t, Occupied(Light, 1), live.Point(18), "board shows moves in progress")
	st = m.State()
	assert.True(t, st.TurnActive)
	assert.Equal(t, PipsOf(5), st.Remaining)
	assert.Equal(t, Roll{6, 5}, st.LastRoll)
}

// The last bear-off ends the match.
func TestMatchEnds(t *testing.T) {
	log := &EventLog{}
	b := position(t, at(1, Light, 1), at(19, Dark, 15))
	m, err := RestoreMatch(MatchState{Board: b, SideToMove: Light, Started: true}, MatchOptions{Sink: log})
	require.NoError(t, err)

	turn, err := m.PlayRoll(Roll{1, 1})
	require.NoError(t, err)
	require.NoError(t, turn.TryMove(1, 1))

	w, over := m.Winner()
	require.True(t, over)
	assert.Equal(t, Light, w)
	ended := log.OfType(EventMatchEnded)
	require.Len(t, ended, 1)
	assert.Equal(t, Light, ended[0].Winner)

	st := m.State()
	assert.True(t, st.HasWinner)
	assert.Equal(t, Light, st.SideToMove, "no flip after the winning turn")

	_, err = m.NextTurn()
	assert.ErrorIs(t, err, ErrMatchOver)
}

func TestRestoreMatchResumesTurn(t *testing.T) {
	id := uuid.New()
	m := NewMatch(MatchOptions{ID: id, Source: NewRandSource(8)})
	_, err := m.StartWith(6, 2)
	require.NoError(t, err)
	turn, err := m.NextTurn()
	require.NoError(t, err)
	require.NoError(t, turn.TryMove(24, 6))

	st := m.State()
	restored, err := RestoreMatch(st, MatchOptions{Source: NewRandSource(9)})
	require.NoError(t, err)
	assert.Equal(t, id, restored.ID())
	assert.Equal(t, st, restored.State())

	rt := restored.Turn()
	require.NotNil(t, rt)
	assert.Equal(t, []int{2}, rt.Permitted())
	require.NoError(t, rt.TryMove(13, 2))
	assert.Equal(t, Dark, restored.State().SideToMove)
}

// darkOpeningMove starts a match where Dark opens 3-1 and plays 1/4.
func darkOpeningMove(t *testing.T) *Match {
	t.Helper()
	m := NewMatch(MatchOptions{Source: NewRandSource(5)})
	_, err := m.StartWith(1, 3)
	require.NoError(t, err)
	turn, err := m.NextTurn()
	require.NoError(t, err)
	require.NoError(t, turn.TryMove(1, 3))
	return m
}

func TestRestoreMatchReplaysHistory(t *testing.T) {
	st := darkOpeningMove(t).State()
	require.Len(t, st.Played, 1)
	assert.Equal(t, StandardBoard(), st.TurnStart)

	log := &EventLog{}
	restored, err := RestoreMatch(st, MatchOptions{Sink: log})
	require.NoError(t, err)
	assert.Empty(t, log.Events, "restoring publishes nothing")
	assert.Equal(t, st, restored.State())

	rt := restored.Turn()
	require.NotNil(t, rt)
	assert.Equal(t, StandardBoard(), rt.Start())
	assert.Equal(t, 2, rt.MaxMoves())
	require.NoError(t, rt.Undo())
	assert.Equal(t, PipsOf(1, 3), rt.Remaining())
	assert.Equal(t, StandardBoard(), restored.Board())
	assert.Len(t, log.OfType(EventMoveUndone), 1)

	require.NoError(t, rt.TryMove(1, 1))
	require.NoError(t, rt.TryMove(17, 3))
	assert.Equal(t, Light, restored.State().SideToMove)
	assert.Len(t, log.OfType(EventTurnEnded), 1)
}

func TestRestoreMatchRejectsBadHistory(t *testing.T) {
	st := darkOpeningMove(t).State()
	tests := []struct {
		name   string
		mutate func(*MatchState)
	}{
		{"different move", func(s *MatchState) { s.Played = []PlayedMove{{Origin: 1, Pip: 1}} }},
		{"illegal move", func(s *MatchState) { s.Played = []PlayedMove{{Origin: 1, Pip: 5}} }},
		{"too many moves", func(s *MatchState) {
			s.Played = []PlayedMove{{Origin: 1, Pip: 3}, {Origin: 1, Pip: 1}}
		}},
		{"missing start board", func(s *MatchState) { s.TurnStart = Board{} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bad := st
			tt.mutate(&bad)
			_, err := RestoreMatch(bad, MatchOptions{})
			assert.ErrorIs(t, err, ErrInvariant)
		})
	}
}

func TestRestoreMatchRejectsBadState(t *testing.T) {
	bad := StandardBoard()
	bad.SetBar(Light, 1)
	_, err := RestoreMatch(MatchState{Board: bad}, MatchOptions{})
	assert.ErrorIs(t, err, ErrInvariant)

	_, err = RestoreMatch(MatchState{Board: StandardBoard(), SideToMove: Side(3)}, MatchOptions{})
	assert.ErrorIs(t, err, ErrInvariant)

	_, err = RestoreMatch(MatchState{
		Board:      StandardBoard(),
		Started:    true,
		TurnActive: true,
		LastRoll:   Roll{3, 1},
		Remaining:  PipsOf(5),
	}, MatchOptions{})
	assert.ErrorIs(t, err, ErrInvariant)

	_, err = RestoreMatch(MatchState{Board: StandardBoard(), Winner: Dark, HasWinner: true}, MatchOptions{})
	assert.ErrorIs(t, err, ErrInvariant)
}

func TestMatchLogs(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	m := NewMatch(MatchOptions{Source: NewRandSource(4), Logger: zap.New(core)})
	_, err := m.StartWith(5, 2)
	require.NoError(t, err)
	turn, err := m.NextTurn()
	require.NoError(t, err)
	require.NoError(t, turn.TryMove(13, 5))
	require.NoError(t, turn.TryMove(13, 2))

	assert.Equal(t, 1, logs.FilterMessage("match started").Len())
	assert.Equal(t, 1, logs.FilterMessage("turn began").Len())
	ended := logs.FilterMessage("turn ended").All()
	require.Len(t, ended, 1)
	assert.Equal(t, "light", ended[0].ContextMap()["side"])
	assert.Equal(t, m.ID().String(), ended[0].ContextMap()["match"])
}

// Every turn of many seeded games keeps the board invariants and plays
// exactly the number of pips the planner required.
func TestMatchRandomGames(t *testing.T) {
	for seed := uint64(1); seed <= 10; seed++ {
		src := NewRandSource(seed)
		m := NewMatch(MatchOptions{Source: src})
		_, err := m.Start()
		require.NoError(t, err)

		for turns := 0; ; turns++ {
			require.Less(t, turns, 5000, "seed %d", seed)
			if _, over := m.Winner(); over {
				break
			}
			turn, err := m.NextTurn()
			require.NoError(t, err)
			for !turn.Ended() {
				pips := turn.Permitted()
				pip := pips[src.IntN(len(pips))]
				origins := turn.LegalOrigins(pip)
				require.NotEmpty(t, origins)
				require.NoError(t, turn.TryMove(origins[src.IntN(len(origins))], pip))

				b := turn.Board()
				require.NoError(t, b.Validate())
				if b.Bar(turn.Side()) > 0 {
					for p := 1; p <= 6; p++ {
						for _, o := range LegalOrigins(&b, turn.Side(), p) {
							assert.Equal(t, BarOrigin, o)
						}
					}
				}
			}
			b := turn.Board()
			if _, won := Winner(&b); !won {
				assert.Len(t, turn.Moves(), turn.MaxMoves(), "seed %d", seed)
			}
		}
	}
}
