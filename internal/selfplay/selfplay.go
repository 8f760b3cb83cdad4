// Package selfplay plays random legal games through the engine and checks
// the board invariants after every move. It is used as a soak test for
// the rules and to report basic statistics about random play.
package selfplay

import (
	"context"
	"fmt"
	"math/rand/v2"
	"runtime"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/yourusername/bgrules/pkg/engine"
)

// Options controls a self-play run.
type Options struct {
	Games    int    // Number of games to play (default 100)
	Workers  int    // Parallel workers (0 = GOMAXPROCS)
	Seed     uint64 // Base seed (0 = random)
	MaxTurns int    // Abort a game that runs longer than this (default 5000)
	Probes   int    // Illegal moves tried per turn to check rejections leave no trace
	Rules    engine.Rules
	Logger   *zap.Logger
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		Games:    100,
		MaxTurns: 5000,
		Probes:   2,
	}
}

// GameResult describes one finished game.
type GameResult struct {
	Index      int
	Seed       uint64
	Winner     engine.Side
	Turns      int
	Moves      int
	Hits       int
	Rejections int
	LoserPips  int // loser's pip count when the game ended
}

// Result summarizes a run.
type Result struct {
	Games     int
	DarkWins  int
	LightWins int

	DarkWinRate     float64
	MeanTurns       float64
	StdDevTurns     float64
	MeanMoves       float64
	MeanHits        float64
	MeanLoserPips   float64
	StdDevLoserPips float64

	Rejections int
	Elapsed    time.Duration
	Details    []GameResult
}

// GameSeed derives the seed of game i so results do not depend on the
// number of workers.
func GameSeed(base uint64, i int) uint64 {
	return base + uint64(i)*0x9e3779b97f4a7c15
}

// Run plays opts.Games games across opts.Workers goroutines. The first
// invariant violation cancels the run and is returned.
func Run(ctx context.Context, opts Options) (*Result, error) {
	def := DefaultOptions()
	if opts.Games <= 0 {
		opts.Games = def.Games
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.Seed == 0 {
		opts.Seed = rand.Uint64()
	}
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = def.MaxTurns
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	logger := opts.Logger.Named("selfplay")
	logger.Info("selfplay starting",
		zap.Int("games", opts.Games),
		zap.Int("workers", opts.Workers),
		zap.Uint64("seed", opts.Seed))

	start := time.Now()
	results := make([]GameResult, opts.Games)
	var done atomic.Int64
	step := int64(max(opts.Games/10, 1))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i := 0; i < opts.Games; i++ {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := PlayGame(GameSeed(opts.Seed, i), opts)
			if err != nil {
				return fmt.Errorf("game %d: %w", i, err)
			}
			res.Index = i
			results[i] = res
			if n := done.Add(1); n%step == 0 {
				logger.Debug("selfplay progress", zap.Int64("done", n), zap.Int("games", opts.Games))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r := summarize(results)
	r.Elapsed = time.Since(start)
	logger.Info("selfplay finished",
		zap.Int("games", r.Games),
		zap.Float64("dark_win_rate", r.DarkWinRate),
		zap.Float64("mean_turns", r.MeanTurns),
		zap.Duration("elapsed", r.Elapsed))
	return r, nil
}

func summarize(games []GameResult) *Result {
	r := &Result{Games: len(games), Details: games}
	if len(games) == 0 {
		return r
	}
	turns := make([]float64, len(games))
	moves := make([]float64, len(games))
	hits := make([]float64, len(games))
	pips := make([]float64, len(games))
	darkWins := make([]float64, len(games))
	for i, g := range games {
		turns[i] = float64(g.Turns)
		moves[i] = float64(g.Moves)
		hits[i] = float64(g.Hits)
		pips[i] = float64(g.LoserPips)
		if g.Winner == engine.Dark {
			r.DarkWins++
			darkWins[i] = 1
		} else {
			r.LightWins++
		}
		r.Rejections += g.Rejections
	}
	r.DarkWinRate = stat.Mean(darkWins, nil)
	r.MeanTurns, r.StdDevTurns = stat.MeanStdDev(turns, nil)
	r.MeanMoves = stat.Mean(moves, nil)
	r.MeanHits = stat.Mean(hits, nil)
	r.MeanLoserPips, r.StdDevLoserPips = stat.MeanStdDev(pips, nil)
	return r
}

// PlayGame plays one game with random legal moves drawn from seed.
func PlayGame(seed uint64, opts Options) (GameResult, error) {
	res := GameResult{Seed: seed}
	rng := engine.NewRandSource(seed)
	m := engine.NewMatch(engine.MatchOptions{
		Source: rng,
		Rules:  opts.Rules,
		Logger: opts.Logger,
	})
	if _, err := m.Start(); err != nil {
		return res, err
	}

	for {
		if w, over := m.Winner(); over {
			b := m.Board()
			res.Winner = w
			res.LoserPips = b.PipCount(w.Opponent())
			res.Turns = m.State().Turns
			return res, nil
		}
		if opts.MaxTurns > 0 && m.State().Turns >= opts.MaxTurns {
			return res, fmt.Errorf("%w: no winner after %d turns (seed %d)", engine.ErrInvariant, opts.MaxTurns, seed)
		}

		t, err := m.NextTurn()
		if err != nil {
			return res, err
		}
		if err := playTurn(t, rng, opts.Probes, &res); err != nil {
			return res, fmt.Errorf("turn %d (seed %d): %w", m.State().Turns, seed, err)
		}
	}
}

// playTurn makes random permitted moves until the turn ends, checking the
// board after each one.
func playTurn(t *engine.Turn, rng *rand.Rand, probes int, res *GameResult) error {
	for !t.Ended() {
		for i := 0; i < probes; i++ {
			if err := probe(t, rng, res); err != nil {
				return err
			}
		}
		if t.Ended() {
			break
		}

		permitted := t.Permitted()
		if len(permitted) == 0 {
			return fmt.Errorf("%w: turn open with nothing permitted", engine.ErrInvariant)
		}
		pip := permitted[rng.IntN(len(permitted))]
		origins := t.LegalOrigins(pip)
		if len(origins) == 0 {
			return fmt.Errorf("%w: pip %d permitted without an origin", engine.ErrInvariant, pip)
		}
		origin := origins[rng.IntN(len(origins))]

		before := t.Board()
		opp := t.Side().Opponent()
		if err := t.TryMove(origin, pip); err != nil {
			return fmt.Errorf("permitted move %d/%d refused: %w", origin, pip, err)
		}
		res.Moves++

		after := t.Board()
		if err := after.Validate(); err != nil {
			return err
		}
		if after == before {
			return fmt.Errorf("%w: move %d/%d left the board unchanged", engine.ErrInvariant, origin, pip)
		}
		if after.Bar(opp) > before.Bar(opp) {
			res.Hits++
		}
	}

	final := t.Board()
	if _, won := engine.Winner(&final); !won && len(t.Moves()) != t.MaxMoves() {
		return fmt.Errorf("%w: played %d of %d playable pips", engine.ErrInvariant, len(t.Moves()), t.MaxMoves())
	}
	return nil
}

// probe tries a random move. When the engine rejects it, the turn must be
// left exactly as it was; when it is accepted it is taken back.
func probe(t *engine.Turn, rng *rand.Rand, res *GameResult) error {
	origin := rng.IntN(engine.NumPoints + 1)
	pip := 1 + rng.IntN(6)

	board, remaining := t.Board(), t.Remaining()
	err := t.TryMove(origin, pip)
	switch {
	case err == nil:
		if t.Ended() {
			res.Moves++
			return nil
		}
		return t.Undo()
	case !engine.IsRejection(err):
		return err
	}
	res.Rejections++
	if t.Board() != board || t.Remaining() != remaining {
		return fmt.Errorf("%w: rejected move %d/%d changed the turn", engine.ErrInvariant, origin, pip)
	}
	return nil
}
