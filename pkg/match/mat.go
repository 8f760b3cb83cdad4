package match

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/yourusername/bgrules/pkg/engine"
)

// The transcript format follows the Jellyfish/gnubg MAT layout, one turn
// per line, with points numbered from the mover's point of view:
//
//	; [Light "alice"]
//	; [Dark "bob"]
//	Opening: light 3 dark 5
//
//	  1) dark 53: 24/19 13/10
//	  2) light 64: 24/18 13/9*
//	  3) dark 66: cannot move
//	Wins: light

// ErrBadTranscript is returned for transcripts that cannot be parsed or
// that do not replay legally.
var ErrBadTranscript = errors.New("bad transcript")

var (
	tagRE     = regexp.MustCompile(`\[(\w+)\s+"([^"]*)"\]`)
	openingRE = regexp.MustCompile(`^Opening:\s*light\s+([1-6])\s+dark\s+([1-6])$`)
	turnRE    = regexp.MustCompile(`^(\d+)\)\s+(light|dark)\s+([1-6])([1-6]):\s*(.*)$`)
	winsRE    = regexp.MustCompile(`^Wins:\s*(light|dark)$`)
)

// ExportMAT writes a record as a transcript.
func ExportMAT(w io.Writer, rec *Record) error {
	bw := bufio.NewWriter(w)
	if rec.MatchID != uuid.Nil {
		fmt.Fprintf(bw, " ; [Match \"%s\"]\n", rec.MatchID)
	}
	fmt.Fprintf(bw, " ; [Light \"%s\"]\n", rec.Light)
	fmt.Fprintf(bw, " ; [Dark \"%s\"]\n", rec.Dark)
	if rec.Event != "" {
		fmt.Fprintf(bw, " ; [Event \"%s\"]\n", rec.Event)
	}
	if rec.Date != "" {
		fmt.Fprintf(bw, " ; [Date \"%s\"]\n", rec.Date)
	}
	fmt.Fprintf(bw, " Opening: light %d dark %d\n\n", rec.Opening.Light, rec.Opening.Dark)

	for _, t := range rec.Turns {
		fmt.Fprintf(bw, "%3d) %s %d%d: %s\n", t.Number, t.Side, t.Roll[0], t.Roll[1], formatMovesMAT(t))
	}
	if rec.HasWinner {
		fmt.Fprintf(bw, " Wins: %s\n", rec.Winner)
	}
	return bw.Flush()
}

// formatMovesMAT renders a turn's moves, or "cannot move".
func formatMovesMAT(t TurnRecord) string {
	if len(t.Moves) == 0 {
		return "cannot move"
	}
	parts := make([]string, len(t.Moves))
	for i, m := range t.Moves {
		dest := engine.Destination(m.Origin, m.Pip, t.Side)
		s := formatPointMAT(m.Origin, t.Side) + "/" + formatPointMAT(dest, t.Side)
		if m.Hit {
			s += "*"
		}
		parts[i] = s
	}
	return strings.Join(parts, " ")
}

// formatPointMAT converts a board point into the mover's numbering.
func formatPointMAT(point int, side engine.Side) string {
	switch {
	case point == engine.BarOrigin:
		return "bar"
	case engine.IsBearOff(point):
		return "off"
	}
	return strconv.Itoa(side.Perspective(point))
}

// parsedMove is one checker move read from a transcript, in the mover's
// numbering. to == 0 means off.
type parsedMove struct {
	from, to int
}

// parseMovesMAT parses "24/18 13/9*(2) bar/22" style move lists.
func parseMovesMAT(text string) ([]parsedMove, error) {
	text = strings.TrimSpace(text)
	if text == "" || strings.EqualFold(text, "cannot move") {
		return nil, nil
	}

	var moves []parsedMove
	for _, part := range strings.Fields(text) {
		count := 1
		if idx := strings.Index(part, "("); idx != -1 {
			end := strings.Index(part, ")")
			if end < idx {
				return nil, fmt.Errorf("%w: bad repeat in %q", ErrBadTranscript, part)
			}
			n, err := strconv.Atoi(part[idx+1 : end])
			if err != nil || n < 1 || n > 4 {
				return nil, fmt.Errorf("%w: bad repeat in %q", ErrBadTranscript, part)
			}
			count = n
			part = part[:idx]
		}
		part = strings.TrimSuffix(part, "*")

		fromTo := strings.Split(part, "/")
		if len(fromTo) != 2 {
			return nil, fmt.Errorf("%w: bad move %q", ErrBadTranscript, part)
		}
		from, err := parsePointMAT(fromTo[0])
		if err != nil {
			return nil, err
		}
		to, err := parsePointMAT(strings.TrimSuffix(fromTo[1], "*"))
		if err != nil {
			return nil, err
		}
		if from <= to {
			return nil, fmt.Errorf("%w: move %q does not advance", ErrBadTranscript, part)
		}
		for i := 0; i < count; i++ {
			moves = append(moves, parsedMove{from: from, to: to})
		}
	}
	if len(moves) > 4 {
		return nil, fmt.Errorf("%w: %d moves in one turn", ErrBadTranscript, len(moves))
	}
	return moves, nil
}

// parsePointMAT reads a point in the mover's numbering: 25 for the bar,
// 0 for off.
func parsePointMAT(s string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bar":
		return engine.NumPoints + 1, nil
	case "off":
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > engine.NumPoints {
		return 0, fmt.Errorf("%w: bad point %q", ErrBadTranscript, s)
	}
	return n, nil
}

// boardOrigin converts a mover's-numbering origin into a board origin.
func boardOrigin(from int, side engine.Side) int {
	if from == engine.NumPoints+1 {
		return engine.BarOrigin
	}
	if side == engine.Dark {
		return engine.NumPoints + 1 - from
	}
	return from
}

// ImportMAT parses a transcript and replays it through the engine. Every
// move must be accepted and every turn must finish legally. The returned
// match is positioned after the last recorded turn.
func ImportMAT(r io.Reader, opts engine.MatchOptions) (*Record, *engine.Match, error) {
	rec := NewRecord(uuid.Nil, "", "")
	var turns []turnLine
	var wins *engine.Side
	haveOpening := false

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, ";") {
			if m := tagRE.FindStringSubmatch(line); m != nil {
				applyTag(rec, strings.ToLower(m[1]), m[2])
			}
			continue
		}

		if m := openingRE.FindStringSubmatch(line); m != nil {
			rec.Opening.Light, _ = strconv.Atoi(m[1])
			rec.Opening.Dark, _ = strconv.Atoi(m[2])
			haveOpening = true
			continue
		}

		if m := winsRE.FindStringSubmatch(line); m != nil {
			side, _ := engine.ParseSide(m[1])
			wins = &side
			continue
		}

		if m := turnRE.FindStringSubmatch(line); m != nil {
			tl, err := parseTurnLine(m)
			if err != nil {
				return nil, nil, err
			}
			turns = append(turns, tl)
			continue
		}

		return nil, nil, fmt.Errorf("%w: unrecognized line %q", ErrBadTranscript, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("reading transcript: %w", err)
	}
	if !haveOpening {
		return nil, nil, fmt.Errorf("%w: missing opening roll", ErrBadTranscript)
	}

	replayed, m, err := replay(rec, turns, opts)
	if err != nil {
		return nil, nil, err
	}
	if wins != nil {
		if w, ok := m.Winner(); !ok || w != *wins {
			return nil, nil, fmt.Errorf("%w: transcript claims %s won", ErrBadTranscript, *wins)
		}
	}
	return replayed, m, nil
}

func applyTag(rec *Record, key, value string) {
	switch key {
	case "match":
		if id, err := uuid.Parse(value); err == nil {
			rec.MatchID = id
		}
	case "light":
		rec.Light = value
	case "dark":
		rec.Dark = value
	case "event":
		rec.Event = value
	case "date":
		rec.Date = value
	}
}

type turnLine struct {
	number int
	side   engine.Side
	roll   engine.Roll
	moves  []parsedMove
}

func parseTurnLine(m []string) (turnLine, error) {
	var tl turnLine
	tl.number, _ = strconv.Atoi(m[1])
	tl.side, _ = engine.ParseSide(m[2])
	tl.roll[0], _ = strconv.Atoi(m[3])
	tl.roll[1], _ = strconv.Atoi(m[4])
	moves, err := parseMovesMAT(m[5])
	if err != nil {
		return tl, fmt.Errorf("turn %d: %w", tl.number, err)
	}
	tl.moves = moves
	return tl, nil
}

// replay drives a fresh match through the parsed turns, recording it.
func replay(meta *Record, turns []turnLine, opts engine.MatchOptions) (*Record, *engine.Match, error) {
	rec := NewRecord(meta.MatchID, meta.Light, meta.Dark)
	rec.Event, rec.Date = meta.Event, meta.Date
	if meta.MatchID != uuid.Nil {
		opts.ID = meta.MatchID
	}
	opts.Sink = engine.Tee(rec, opts.Sink)

	m := engine.NewMatch(opts)
	if _, err := m.StartWith(meta.Opening.Light, meta.Opening.Dark); err != nil {
		return nil, nil, fmt.Errorf("%w: opening: %w", ErrBadTranscript, err)
	}

	for i, tl := range turns {
		if tl.number != i+1 {
			return nil, nil, fmt.Errorf("%w: turn %d out of sequence", ErrBadTranscript, tl.number)
		}
		var t *engine.Turn
		var err error
		if i == 0 {
			if tl.roll != rec.Opening.Roll() {
				return nil, nil, fmt.Errorf("%w: first turn roll %v is not the opening roll", ErrBadTranscript, tl.roll)
			}
			t, err = m.NextTurn()
		} else {
			t, err = m.PlayRoll(tl.roll)
		}
		if err != nil {
			return nil, nil, fmt.Errorf("%w: turn %d: %w", ErrBadTranscript, tl.number, err)
		}
		if t.Side() != tl.side {
			return nil, nil, fmt.Errorf("%w: turn %d: %s to move, not %s", ErrBadTranscript, tl.number, t.Side(), tl.side)
		}
		if err := playMoves(t, tl.moves); err != nil {
			return nil, nil, fmt.Errorf("%w: turn %d: %w", ErrBadTranscript, tl.number, err)
		}
		if !t.Ended() {
			if err := t.EndTurn(); err != nil {
				return nil, nil, fmt.Errorf("%w: turn %d: %w", ErrBadTranscript, tl.number, err)
			}
		}
	}
	return rec, m, nil
}

// playMoves applies parsed moves, choosing the pip for each bear-off.
// An overshooting bear-off does not name its pip, so the candidates are
// tried in order and the choice is undone if the rest of the turn fails.
func playMoves(t *engine.Turn, moves []parsedMove) error {
	if len(moves) == 0 {
		return nil
	}
	mv := moves[0]
	origin := boardOrigin(mv.from, t.Side())

	var err error
	for _, pip := range candidatePips(mv, t.Remaining()) {
		if err = t.TryMove(origin, pip); err != nil {
			continue
		}
		rest := moves[1:]
		if len(rest) == 0 {
			return nil
		}
		if t.Ended() {
			return fmt.Errorf("%d moves left after the turn ended", len(rest))
		}
		if err = playMoves(t, rest); err == nil {
			return nil
		}
		if undoErr := t.Undo(); undoErr != nil {
			return err
		}
	}
	if err == nil {
		err = fmt.Errorf("no pip plays %d/%d", mv.from, mv.to)
	}
	return err
}

// candidatePips lists the pips that could produce a move, exact first.
func candidatePips(mv parsedMove, remaining engine.Pips) []int {
	exact := mv.from - mv.to
	out := []int{exact}
	if mv.to == 0 {
		for pip := exact + 1; pip <= 6; pip++ {
			if remaining.Has(pip) {
				out = append(out, pip)
			}
		}
	}
	return out
}
