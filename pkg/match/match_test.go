package match

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/bgrules/pkg/engine"
)

// playGame plays a seeded game to the end, always choosing the lowest
// permitted pip and the first legal origin for it.
func playGame(t *testing.T, seed uint64, sink engine.EventSink) *engine.Match {
	t.Helper()
	m := engine.NewMatch(engine.MatchOptions{
		ID:     uuid.New(),
		Source: engine.NewRandSource(seed),
		Sink:   sink,
	})
	_, err := m.Start()
	require.NoError(t, err)

	for i := 0; i < 5000; i++ {
		if _, over := m.Winner(); over {
			return m
		}
		turn, err := m.NextTurn()
		require.NoError(t, err)
		for !turn.Ended() {
			pip := turn.Permitted()[0]
			origins := turn.LegalOrigins(pip)
			require.NotEmpty(t, origins, "pip %d permitted with no origin", pip)
			require.NoError(t, turn.TryMove(origins[0], pip))
		}
	}
	t.Fatalf("game with seed %d did not finish", seed)
	return nil
}

func TestRecordFollowsMatch(t *testing.T) {
	rec := NewRecord(uuid.Nil, "alice", "bob")
	m := playGame(t, 7, rec)

	winner, ok := m.Winner()
	require.True(t, ok)
	assert.True(t, rec.HasWinner)
	assert.Equal(t, winner, rec.Winner)
	assert.Len(t, rec.Turns, m.State().Turns)

	first := rec.Turns[0]
	assert.Equal(t, rec.Opening.First, first.Side)
	assert.Equal(t, rec.Opening.Roll(), first.Roll)
	for i, turn := range rec.Turns {
		assert.Equal(t, i+1, turn.Number)
		assert.NotEqual(t, engine.TurnInProgress, turn.End, "turn %d", turn.Number)
		if i > 0 {
			assert.Equal(t, rec.Turns[i-1].Side.Opponent(), turn.Side, "turn %d", turn.Number)
		}
	}
}

func TestRecordDropsUndoneMoves(t *testing.T) {
	rec := NewRecord(uuid.Nil, "", "")
	m := engine.NewMatch(engine.MatchOptions{Sink: rec})
	_, err := m.StartWith(3, 1)
	require.NoError(t, err)

	turn, err := m.NextTurn()
	require.NoError(t, err)
	require.NoError(t, turn.TryMove(8, 3))
	require.NoError(t, turn.Undo())
	require.NoError(t, turn.TryMove(13, 3))

	require.Len(t, rec.Turns, 1)
	assert.Equal(t, []MoveRecord{{Origin: 13, Pip: 3}}, rec.Turns[0].Moves)
}

const openingTranscript = ` ; [Light "alice"]
 ; [Dark "bob"]
 ; [Event "club night"]
 Opening: light 3 dark 1

  1) light 31: 8/5 6/5
  2) dark 52: 24/22 13/8
`

func TestImportMAT(t *testing.T) {
	rec, m, err := ImportMAT(strings.NewReader(openingTranscript), engine.MatchOptions{})
	require.NoError(t, err)

	assert.Equal(t, "alice", rec.Light)
	assert.Equal(t, "bob", rec.Dark)
	assert.Equal(t, "club night", rec.Event)
	assert.Equal(t, engine.Light, rec.Opening.First)
	require.Len(t, rec.Turns, 2)
	assert.Equal(t, []MoveRecord{{Origin: 8, Pip: 3}, {Origin: 6, Pip: 1}}, rec.Turns[0].Moves)
	assert.Equal(t, []MoveRecord{{Origin: 1, Pip: 2}, {Origin: 12, Pip: 5}}, rec.Turns[1].Moves)

	b := m.Board()
	assert.Equal(t, engine.Occupied(engine.Light, 2), b.Point(5))
	assert.Equal(t, engine.Occupied(engine.Dark, 1), b.Point(3))
	assert.Equal(t, engine.Occupied(engine.Dark, 4), b.Point(17))
	assert.Equal(t, engine.Light, m.State().SideToMove)
}

func TestImportMATRejects(t *testing.T) {
	header := " Opening: light 3 dark 1\n"
	tests := []struct {
		name string
		body string
		want error
	}{
		{"blocked point", "  1) light 31: 13/10 13/12\n", engine.ErrDestinationBlocked},
		{"pip used twice", "  1) light 31: 6/3 6/3\n", engine.ErrPipUnavailable},
		{"turn left unfinished", "  1) light 31: 8/5\n", engine.ErrPlayableMovesRemain},
		{"wrong side", "  1) dark 31: 8/5 6/5\n", ErrBadTranscript},
		{"not the opening roll", "  1) light 42: 8/4 6/4\n", ErrBadTranscript},
		{"out of sequence", "  2) light 31: 8/5 6/5\n", ErrBadTranscript},
		{"garbage", "  1) light 31: 8-5\n", ErrBadTranscript},
		{"false winner", "  1) light 31: 8/5 6/5\n Wins: light\n", ErrBadTranscript},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ImportMAT(strings.NewReader(header+tt.body), engine.MatchOptions{})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, _, err := ImportMAT(strings.NewReader("  1) light 31: 8/5 6/5\n"), engine.MatchOptions{})
	assert.ErrorIs(t, err, ErrBadTranscript, "missing opening")
}

func TestExportImportRoundTrip(t *testing.T) {
	for _, seed := range []uint64{1, 2, 3} {
		rec := NewRecord(uuid.Nil, "alice", "bob")
		m := playGame(t, seed, rec)
		rec.MatchID = m.ID()

		var out bytes.Buffer
		require.NoError(t, ExportMAT(&out, rec))

		imported, replayed, err := ImportMAT(bytes.NewReader(out.Bytes()), engine.MatchOptions{})
		require.NoError(t, err, "seed %d:\n%s", seed, out.String())

		assert.Equal(t, m.ID(), replayed.ID())
		assert.Equal(t, m.Board(), replayed.Board(), "seed %d", seed)
		w1, _ := m.Winner()
		w2, ok := replayed.Winner()
		assert.True(t, ok)
		assert.Equal(t, w1, w2)

		var again bytes.Buffer
		require.NoError(t, ExportMAT(&again, imported))
		assert.Equal(t, out.String(), again.String(), "seed %d", seed)
	}
}

func TestFormatMoves(t *testing.T) {
	turn := TurnRecord{
		Side: engine.Dark,
		Roll: engine.Roll{6, 4},
		Moves: []MoveRecord{
			{Origin: engine.BarOrigin, Pip: 4, Hit: true},
			{Origin: 21, Pip: 6},
		},
	}
	assert.Equal(t, "bar/21* 4/off", formatMovesMAT(turn))
	assert.Equal(t, "cannot move", formatMovesMAT(TurnRecord{Side: engine.Light}))
}

func TestParseMoves(t *testing.T) {
	moves, err := parseMovesMAT("bar/22 13/9*(2) 3/off")
	require.NoError(t, err)
	assert.Equal(t, []parsedMove{{25, 22}, {13, 9}, {13, 9}, {3, 0}}, moves)

	moves, err = parseMovesMAT("cannot move")
	require.NoError(t, err)
	assert.Empty(t, moves)

	for _, bad := range []string{"6/8", "x/3", "6/3(9)", "6/3 6/3 6/3 6/3 6/3", "26/20"} {
		_, err := parseMovesMAT(bad)
		assert.ErrorIs(t, err, ErrBadTranscript, bad)
	}
}

func TestCandidatePips(t *testing.T) {
	assert.Equal(t, []int{3}, candidatePips(parsedMove{from: 8, to: 5}, engine.PipsOf(3, 1)))
	assert.Equal(t, []int{2, 5, 6}, candidatePips(parsedMove{from: 2, to: 0}, engine.PipsOf(6, 5)))
}

func TestStateRoundTrip(t *testing.T) {
	m := engine.NewMatch(engine.MatchOptions{Source: engine.NewRandSource(11)})
	_, err := m.StartWith(6, 2)
	require.NoError(t, err)
	turn, err := m.NextTurn()
	require.NoError(t, err)
	require.NoError(t, turn.TryMove(24, 6))

	var buf bytes.Buffer
	require.NoError(t, Save(&buf, FromMatch(m)))
	assert.Contains(t, buf.String(), `"side_to_move": "light"`)

	st, err := Load(&buf)
	require.NoError(t, err)
	restored, err := st.Restore(engine.MatchOptions{})
	require.NoError(t, err)

	assert.Equal(t, m.State(), restored.State())
	require.NotNil(t, restored.Turn())
	assert.Equal(t, engine.PipsOf(2), restored.Turn().Remaining())
	require.NoError(t, restored.Turn().TryMove(24, 2))
	assert.True(t, restored.Turn().Ended())
	assert.Equal(t, engine.Dark, restored.State().SideToMove)
}

func TestStateKeepsTurnHistory(t *testing.T) {
	m := engine.NewMatch(engine.MatchOptions{Source: engine.NewRandSource(12)})
	_, err := m.StartWith(1, 3)
	require.NoError(t, err)
	turn, err := m.NextTurn()
	require.NoError(t, err)
	require.NoError(t, turn.TryMove(1, 3))

	var buf bytes.Buffer
	require.NoError(t, Save(&buf, FromMatch(m)))
	assert.Contains(t, buf.String(), `"turn_start": "4HPwATDgc/ABMA"`)

	st, err := Load(&buf)
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{1, 3}}, st.Played)

	rec := NewRecord(m.ID(), "light", "dark")
	restored, err := st.Restore(engine.MatchOptions{Sink: rec})
	require.NoError(t, err)
	assert.Empty(t, rec.Turns, "restoring starts no turn")

	rt := restored.Turn()
	require.NotNil(t, rt)
	assert.Equal(t, engine.StandardBoard(), rt.Start())
	require.NoError(t, rt.Undo())
	assert.Equal(t, engine.PipsOf(1, 3), rt.Remaining())
	assert.Equal(t, engine.StandardBoard(), restored.Board())

	// The undo survives another save.
	again := FromMatch(restored)
	assert.Empty(t, again.Played)
	assert.Empty(t, again.TurnStart)
	assert.ElementsMatch(t, []int{1, 3}, again.Remaining)
}

func TestStateRejectsBadHistory(t *testing.T) {
	m := engine.NewMatch(engine.MatchOptions{Source: engine.NewRandSource(12)})
	_, err := m.StartWith(1, 3)
	require.NoError(t, err)
	turn, err := m.NextTurn()
	require.NoError(t, err)
	require.NoError(t, turn.TryMove(1, 3))
	valid := FromMatch(m)

	tests := []struct {
		name   string
		mutate func(*State)
	}{
		{"moves without start", func(s *State) { s.TurnStart = "" }},
		{"start without moves", func(s *State) { s.Played = nil }},
		{"bad start id", func(s *State) { s.TurnStart = "!!" }},
		{"move out of range", func(s *State) { s.Played = [][2]int{{30, 3}} }},
		{"more moves than dice", func(s *State) { s.Played = [][2]int{{1, 3}, {1, 1}} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := valid
			st.Played = append([][2]int(nil), valid.Played...)
			tt.mutate(&st)
			_, err := st.MatchState()
			assert.ErrorIs(t, err, ErrInvalidState)
		})
	}

	replayed := valid
	replayed.Played = [][2]int{{17, 3}}
	_, err = replayed.Restore(engine.MatchOptions{})
	assert.ErrorIs(t, err, ErrInvalidState, "moves must lead to the saved board")
}

func TestStateBeforeStart(t *testing.T) {
	m := engine.NewMatch(engine.MatchOptions{})
	st := FromMatch(m)
	assert.True(t, st.TurnEnded)
	assert.False(t, st.Started)
	assert.Nil(t, st.Roll)

	restored, err := st.Restore(engine.MatchOptions{})
	require.NoError(t, err)
	assert.Equal(t, m.State(), restored.State())
}

func TestLoadRejectsInvalidState(t *testing.T) {
	valid := func() State {
		return FromMatch(engine.NewMatch(engine.MatchOptions{}))
	}
	tests := []struct {
		name   string
		mutate func(*State)
	}{
		{"missing checker", func(s *State) { s.Points[0].Count = 1; s.PositionID = "" }},
		{"extra checker", func(s *State) { s.Bar.Light = 1; s.PositionID = "" }},
		{"empty point with side", func(s *State) { s.Points[1].Side = "dark" }},
		{"unknown owner", func(s *State) { s.Points[0].Side = "blue" }},
		{"bad side to move", func(s *State) { s.SideToMove = "nobody" }},
		{"short board", func(s *State) { s.Points = s.Points[:23] }},
		{"stale position id", func(s *State) {
			s.Points[0], s.Points[2] = Point{Side: "dark", Count: 1}, Point{Side: "dark", Count: 1}
		}},
		{"remaining after turn end", func(s *State) { s.Remaining = []int{3} }},
		{"active turn without roll", func(s *State) { s.TurnEnded = false; s.Remaining = []int{3} }},
		{"remaining pip out of range", func(s *State) {
			s.TurnEnded = false
			s.Roll = &[2]int{3, 1}
			s.Remaining = []int{7}
		}},
		{"double opening", func(s *State) { s.Opening = &[2]int{4, 4} }},
		{"winner without tray", func(s *State) { s.Winner = "dark" }},
		{"version", func(s *State) { s.Version = 9 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := valid()
			tt.mutate(&st)

			var buf bytes.Buffer
			require.NoError(t, Save(&buf, st))
			_, err := Load(&buf)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidState)
			assert.ErrorIs(t, err, engine.ErrInvariant)
		})
	}

	_, err := Load(strings.NewReader(`{"version":1,"colour":"red"}`))
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestStateWinner(t *testing.T) {
	var b engine.Board
	b.SetTray(engine.Light, engine.CheckersPerSide)
	b.SetPoint(19, engine.Occupied(engine.Dark, 15))
	st := FromMatchState(engine.MatchState{
		Board:      b,
		SideToMove: engine.Light,
		Started:    true,
		Winner:     engine.Light,
		HasWinner:  true,
		Turns:      40,
	})

	ms, err := st.MatchState()
	require.NoError(t, err)
	assert.True(t, ms.HasWinner)
	assert.Equal(t, engine.Light, ms.Winner)

	st.Winner = ""
	_, err = st.MatchState()
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestSaveLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "match.json")

	m := engine.NewMatch(engine.MatchOptions{Source: engine.NewRandSource(3)})
	_, err := m.Start()
	require.NoError(t, err)
	require.NoError(t, SaveFile(path, m))

	loaded, err := LoadFile(path, engine.MatchOptions{})
	require.NoError(t, err)
	assert.Equal(t, m.State(), loaded.State())

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.json"), engine.MatchOptions{})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrInvalidState))
}
