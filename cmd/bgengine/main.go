// bgengine - command line front end for the backgammon rules engine
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"strings"

	"go.uber.org/zap"

	"github.com/yourusername/bgrules/internal/config"
	"github.com/yourusername/bgrules/internal/logging"
	"github.com/yourusername/bgrules/internal/selfplay"
	"github.com/yourusername/bgrules/pkg/engine"
	"github.com/yourusername/bgrules/pkg/match"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "new":
		err = cmdNew(args)
	case "roll":
		err = cmdRoll(args)
	case "move":
		err = cmdMove(args)
	case "undo":
		err = cmdUndo(args)
	case "end":
		err = cmdEnd(args)
	case "show":
		err = cmdShow(args)
	case "import":
		err = cmdImport(args)
	case "selfplay":
		err = cmdSelfPlay(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`bgengine - Backgammon rules engine

Usage: bgengine <command> [options]

Commands:
  new       Start a match (opening roll), or set up a position
  roll      Roll the dice for the side to move
  move      Play one checker: -from N -pip P (from 0 = bar)
  undo      Take back the last move of the turn
  end       End the turn
  show      Print the board and the moves available
  import    Replay a MAT transcript and save the resulting state
  selfplay  Play random games and check the rules hold

Every command accepts -config <file.yaml> and -state <file.json>.
Environment variables BGRULES_* override the config file.

Points are numbered 1-24: dark moves 1 -> 24 and bears off past 24,
light moves 24 -> 1 and bears off past 1.`)
}

// session is the per-invocation context shared by the commands.
type session struct {
	cfg    config.Config
	logger *zap.Logger
	state  string
}

type commonFlags struct {
	config *string
	state  *string
}

func addCommonFlags(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		config: fs.String("config", "", "YAML config file"),
		state:  fs.String("state", "", "Match state file (default from config)"),
	}
}

func (c commonFlags) open() (*session, error) {
	cfg, err := config.Load(*c.config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return nil, err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return nil, err
	}
	s := &session{cfg: cfg, logger: logger, state: cfg.StateFile}
	if *c.state != "" {
		s.state = *c.state
	}
	return s, nil
}

// fail reports err and returns it. Rule rejections are the player's
// mistake and are logged as warnings; anything else is an error.
func (s *session) fail(msg string, err error) error {
	if engine.IsRejection(err) {
		s.logger.Warn(msg, zap.Error(err))
		fmt.Fprintf(os.Stderr, "Rejected: %v\n", err)
	} else {
		s.logger.Error(msg, zap.Error(err))
	}
	_ = s.logger.Sync()
	return err
}

// source seeds the dice. A configured seed is mixed with the turn number
// so successive invocations do not repeat the same roll.
func (s *session) source(turns int) engine.RandSource {
	if s.cfg.Seed == 0 {
		return engine.NewRandSource(rand.Uint64())
	}
	return engine.NewRandSource(selfplay.GameSeed(s.cfg.Seed, turns))
}

func (s *session) options(turns int) engine.MatchOptions {
	return engine.MatchOptions{
		Source: s.source(turns),
		Logger: s.logger,
		Rules:  s.cfg.Rules,
	}
}

// load restores the match in the state file.
func (s *session) load() (*engine.Match, error) {
	f, err := os.Open(s.state)
	if err != nil {
		return nil, fmt.Errorf("loading state: %w", err)
	}
	defer f.Close()
	st, err := match.Load(f)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", s.state, err)
	}
	return st.Restore(s.options(st.Turns))
}

func (s *session) save(m *engine.Match) error {
	if err := match.SaveFile(s.state, m); err != nil {
		return err
	}
	s.logger.Debug("state saved", zap.String("file", s.state))
	return nil
}

func cmdNew(args []string) error {
	fs := flag.NewFlagSet("new", flag.ExitOnError)
	common := addCommonFlags(fs)
	posFlag := fs.String("position", "", "Start from a gnubg position ID instead of the opening")
	sideFlag := fs.String("side", "light", "Side on roll for -position")
	fs.Parse(args)

	s, err := common.open()
	if err != nil {
		return err
	}

	var m *engine.Match
	if *posFlag != "" {
		m, err = setupPosition(s, *posFlag, *sideFlag)
		if err != nil {
			return s.fail("setting up position", err)
		}
		fmt.Printf("Position set up, %s to roll\n", m.State().SideToMove)
	} else {
		m = engine.NewMatch(s.options(0))
		o, err := m.Start()
		if err != nil {
			return s.fail("starting match", err)
		}
		fmt.Printf("Opening roll: light %d, dark %d", o.Light, o.Dark)
		if o.Rerolls > 0 {
			fmt.Printf(" (after %d tie(s))", o.Rerolls)
		}
		fmt.Printf("\n%s plays %s first\n", o.First, o.Roll())
	}

	if err := s.save(m); err != nil {
		return s.fail("saving state", err)
	}
	fmt.Printf("Match %s saved to %s\n", m.ID(), s.state)
	return nil
}

func setupPosition(s *session, id, sideName string) (*engine.Match, error) {
	// Accept gnubg's "position:match" form; only the position is used.
	if idx := strings.Index(id, ":"); idx >= 0 {
		id = id[:idx]
	}
	side, err := engine.ParseSide(sideName)
	if err != nil {
		return nil, err
	}
	board, err := engine.BoardFromPositionID(id, side)
	if err != nil {
		return nil, fmt.Errorf("invalid position ID: %w", err)
	}
	return engine.RestoreMatch(engine.MatchState{
		Board:      board,
		SideToMove: side,
		Started:    true,
	}, s.options(0))
}

func cmdRoll(args []string) error {
	fs := flag.NewFlagSet("roll", flag.ExitOnError)
	common := addCommonFlags(fs)
	fs.Parse(args)

	s, err := common.open()
	if err != nil {
		return err
	}
	m, err := s.load()
	if err != nil {
		return s.fail("loading match", err)
	}
	t, err := m.NextTurn()
	if err != nil {
		return s.fail("rolling", err)
	}

	fmt.Printf("%s rolls %s\n", t.Side(), t.Roll())
	if t.Ended() {
		fmt.Println("No legal move, turn passes")
	} else {
		printOptions(t)
	}
	if err := s.save(m); err != nil {
		return s.fail("saving state", err)
	}
	return nil
}

// activeTurn loads the match and returns its turn in progress.
func activeTurn(s *session) (*engine.Match, *engine.Turn, error) {
	m, err := s.load()
	if err != nil {
		return nil, nil, err
	}
	if w, over := m.Winner(); over {
		return nil, nil, fmt.Errorf("%w: %s has won", engine.ErrMatchOver, w)
	}
	t := m.Turn()
	if t == nil || t.Ended() {
		return nil, nil, errors.New("no turn in progress; roll first")
	}
	return m, t, nil
}

func cmdMove(args []string) error {
	fs := flag.NewFlagSet("move", flag.ExitOnError)
	common := addCommonFlags(fs)
	from := fs.Int("from", -1, "Origin point (0 = bar)")
	pip := fs.Int("pip", 0, "Pip value to play")
	fs.Parse(args)

	s, err := common.open()
	if err != nil {
		return err
	}
	if *from < 0 || *pip == 0 {
		fmt.Fprintln(os.Stderr, "Usage: bgengine move -from <point> -pip <value>")
		return errors.New("move: -from and -pip required")
	}

	m, t, err := activeTurn(s)
	if err != nil {
		return s.fail("loading turn", err)
	}
	if err := t.TryMove(*from, *pip); err != nil {
		return s.fail("move refused", err)
	}

	last := t.Moves()[len(t.Moves())-1]
	fmt.Printf("%s %s\n", t.Side(), formatPlayed(last))
	reportTurn(m, t)
	if err := s.save(m); err != nil {
		return s.fail("saving state", err)
	}
	return nil
}

func cmdUndo(args []string) error {
	fs := flag.NewFlagSet("undo", flag.ExitOnError)
	common := addCommonFlags(fs)
	fs.Parse(args)

	s, err := common.open()
	if err != nil {
		return err
	}
	m, t, err := activeTurn(s)
	if err != nil {
		return s.fail("loading turn", err)
	}
	if err := t.Undo(); err != nil {
		return s.fail("undo refused", err)
	}
	fmt.Printf("Undone, remaining %s\n", t.Remaining())
	printOptions(t)
	if err := s.save(m); err != nil {
		return s.fail("saving state", err)
	}
	return nil
}

func cmdEnd(args []string) error {
	fs := flag.NewFlagSet("end", flag.ExitOnError)
	common := addCommonFlags(fs)
	fs.Parse(args)

	s, err := common.open()
	if err != nil {
		return err
	}
	m, t, err := activeTurn(s)
	if err != nil {
		return s.fail("loading turn", err)
	}
	if err := t.EndTurn(); err != nil {
		return s.fail("end refused", err)
	}
	reportTurn(m, t)
	if err := s.save(m); err != nil {
		return s.fail("saving state", err)
	}
	return nil
}

func cmdShow(args []string) error {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	common := addCommonFlags(fs)
	fs.Parse(args)

	s, err := common.open()
	if err != nil {
		return err
	}
	m, err := s.load()
	if err != nil {
		return s.fail("loading match", err)
	}

	st := m.State()
	b := m.Board()
	fmt.Print(b.String())
	fmt.Printf("Match:       %s\n", st.ID)
	fmt.Printf("Position ID: %s\n", b.PositionID(st.SideToMove))
	fmt.Printf("Pips:        light %d, dark %d\n", b.PipCount(engine.Light), b.PipCount(engine.Dark))
	fmt.Printf("Bar:         light %d, dark %d\n", b.Bar(engine.Light), b.Bar(engine.Dark))
	fmt.Printf("Off:         light %d, dark %d\n", b.Tray(engine.Light), b.Tray(engine.Dark))
	fmt.Printf("Turns:       %d\n", st.Turns)

	switch {
	case st.HasWinner:
		fmt.Printf("%s has won\n", st.Winner)
	case !st.Started:
		fmt.Println("Opening roll not made")
	case st.TurnActive:
		fmt.Printf("%s to play %s, remaining %s\n", st.SideToMove, st.LastRoll, st.Remaining)
		printOptions(m.Turn())
	case st.Opening != nil:
		fmt.Printf("%s to play opening %s\n", st.SideToMove, *st.Opening)
	default:
		fmt.Printf("%s to roll\n", st.SideToMove)
	}
	return nil
}

func cmdImport(args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	common := addCommonFlags(fs)
	file := fs.String("file", "", "MAT transcript to replay")
	fs.Parse(args)

	s, err := common.open()
	if err != nil {
		return err
	}
	if *file == "" {
		fmt.Fprintln(os.Stderr, "Usage: bgengine import -file <transcript.mat>")
		return errors.New("import: -file required")
	}

	f, err := os.Open(*file)
	if err != nil {
		return s.fail("opening transcript", err)
	}
	defer f.Close()

	rec, m, err := match.ImportMAT(f, s.options(0))
	if err != nil {
		return s.fail("replaying transcript", err)
	}
	fmt.Printf("Replayed %d turns of %s vs %s\n", len(rec.Turns), rec.Light, rec.Dark)
	if rec.HasWinner {
		fmt.Printf("%s won\n", rec.Winner)
	}
	if err := s.save(m); err != nil {
		return s.fail("saving state", err)
	}
	return nil
}

func cmdSelfPlay(args []string) error {
	fs := flag.NewFlagSet("selfplay", flag.ExitOnError)
	common := addCommonFlags(fs)
	games := fs.Int("games", 0, "Number of games (default from config)")
	workers := fs.Int("workers", 0, "Parallel workers (default from config)")
	seed := fs.Uint64("seed", 0, "Base seed (default from config)")
	fs.Parse(args)

	s, err := common.open()
	if err != nil {
		return err
	}

	opts := selfplay.Options{
		Games:    s.cfg.SelfPlay.Games,
		Workers:  s.cfg.SelfPlay.Workers,
		Seed:     s.cfg.Seed,
		MaxTurns: s.cfg.SelfPlay.MaxTurns,
		Probes:   s.cfg.SelfPlay.Probes,
		Rules:    s.cfg.Rules,
		Logger:   s.logger,
	}
	if *games > 0 {
		opts.Games = *games
	}
	if *workers > 0 {
		opts.Workers = *workers
	}
	if *seed != 0 {
		opts.Seed = *seed
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := selfplay.Run(ctx, opts)
	if err != nil {
		return s.fail("selfplay", err)
	}

	fmt.Printf("Games:        %d (dark %d, light %d)\n", res.Games, res.DarkWins, res.LightWins)
	fmt.Printf("Dark wins:    %.1f%%\n", res.DarkWinRate*100)
	fmt.Printf("Turns:        %.1f ± %.1f\n", res.MeanTurns, res.StdDevTurns)
	fmt.Printf("Moves:        %.1f per game\n", res.MeanMoves)
	fmt.Printf("Hits:         %.1f per game\n", res.MeanHits)
	fmt.Printf("Loser pips:   %.1f ± %.1f\n", res.MeanLoserPips, res.StdDevLoserPips)
	fmt.Printf("Rejections:   %d probes refused, none changed a turn\n", res.Rejections)
	fmt.Printf("Elapsed:      %s\n", res.Elapsed)
	return nil
}

func formatPlayed(m engine.PlayedMove) string {
	from := fmt.Sprint(m.Origin)
	if m.Origin == engine.BarOrigin {
		from = "bar"
	}
	to := fmt.Sprint(m.Dest)
	if engine.IsBearOff(m.Dest) {
		to = "off"
	}
	s := fmt.Sprintf("%s/%s", from, to)
	if m.Hit {
		s += "*"
	}
	return s
}

func reportTurn(m *engine.Match, t *engine.Turn) {
	if !t.Ended() {
		fmt.Printf("Remaining %s\n", t.Remaining())
		printOptions(t)
		return
	}
	fmt.Printf("Turn over (%s)\n", t.EndReason())
	if w, over := m.Winner(); over {
		fmt.Printf("%s wins\n", w)
	}
}

// printOptions lists each playable pip and the origins it may be played
// from.
func printOptions(t *engine.Turn) {
	if t == nil || t.Ended() {
		return
	}
	for _, pip := range t.Permitted() {
		origins := t.LegalOrigins(pip)
		parts := make([]string, len(origins))
		for i, o := range origins {
			if o == engine.BarOrigin {
				parts[i] = "bar"
			} else {
				parts[i] = fmt.Sprint(o)
			}
		}
		fmt.Printf("  pip %d from %s\n", pip, strings.Join(parts, ", "))
	}
}
