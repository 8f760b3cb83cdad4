package engine

import (
	"fmt"
	"math/rand/v2"
	"strings"
)

// RandSource supplies uniformly distributed integers in [0, n).
// *rand.Rand from math/rand/v2 satisfies it.
type RandSource interface {
	IntN(n int) int
}

// NewRandSource returns a deterministic PCG-backed source.
func NewRandSource(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Roll is the pair of values shown by the two dice.
type Roll [2]int

// IsDouble reports whether both dice show the same value.
func (r Roll) IsDouble() bool { return r[0] == r[1] }

// Valid reports whether both values are in 1..6.
func (r Roll) Valid() bool {
	return r[0] >= 1 && r[0] <= 6 && r[1] >= 1 && r[1] <= 6
}

// Pips returns the multiset the roll grants: {a, b}, or four of a kind
// for a double.
func (r Roll) Pips() Pips {
	var p Pips
	p.Add(r[0])
	p.Add(r[1])
	if r.IsDouble() {
		p.Add(r[0])
		p.Add(r[0])
	}
	return p
}

func (r Roll) String() string {
	return fmt.Sprintf("%d-%d", r[0], r[1])
}

// Pips is a multiset of pip values 1..6. The zero value is empty and
// Pips values are comparable.
type Pips struct {
	n [7]uint8
}

// PipsOf builds a multiset from values; out-of-range values are dropped.
func PipsOf(values ...int) Pips {
	var p Pips
	for _, v := range values {
		p.Add(v)
	}
	return p
}

// Add inserts one pip.
func (p *Pips) Add(pip int) {
	if pip >= 1 && pip <= 6 {
		p.n[pip]++
	}
}

// Remove deletes one pip and reports whether it was present.
func (p *Pips) Remove(pip int) bool {
	if !p.Has(pip) {
		return false
	}
	p.n[pip]--
	return true
}

// Has reports whether at least one pip of this value remains.
func (p Pips) Has(pip int) bool {
	return pip >= 1 && pip <= 6 && p.n[pip] > 0
}

// Count returns how many pips of this value remain.
func (p Pips) Count(pip int) int {
	if pip < 1 || pip > 6 {
		return 0
	}
	return int(p.n[pip])
}

// Len is the number of pips in the multiset.
func (p Pips) Len() int {
	total := 0
	for _, c := range p.n {
		total += int(c)
	}
	return total
}

// Empty reports whether no pips remain.
func (p Pips) Empty() bool { return p.Len() == 0 }

// Distinct returns each value present, ascending.
func (p Pips) Distinct() []int {
	var out []int
	for v := 1; v <= 6; v++ {
		if p.n[v] > 0 {
			out = append(out, v)
		}
	}
	return out
}

// Values lists every pip, ascending, with repetition.
func (p Pips) Values() []int {
	var out []int
	for v := 1; v <= 6; v++ {
		for i := 0; i < int(p.n[v]); i++ {
			out = append(out, v)
		}
	}
	return out
}

// Without returns a copy with one pip of this value removed.
func (p Pips) Without(pip int) Pips {
	p.Remove(pip)
	return p
}

// context packs the multiset into an int32 (3 bits per value).
func (p Pips) context() int32 {
	var ctx int32
	for v := 1; v <= 6; v++ {
		ctx |= int32(p.n[v]&0x7) << uint(3*(v-1))
	}
	return ctx
}

func (p Pips) String() string {
	vals := p.Values()
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = fmt.Sprint(v)
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// Dice draws rolls from an injected random source.
type Dice struct {
	src    RandSource
	roll   Roll
	rolled bool
}

// NewDice returns un-rolled dice drawing from src.
func NewDice(src RandSource) *Dice {
	return &Dice{src: src}
}

// Die draws a single value in 1..6.
func (d *Dice) Die() int {
	return d.src.IntN(6) + 1
}

// Roll draws both dice independently and returns the result.
func (d *Dice) Roll() Roll {
	d.roll = Roll{d.Die(), d.Die()}
	d.rolled = true
	return d.roll
}

// Set forces the dice to a known roll, for replays and restored games.
func (d *Dice) Set(r Roll) error {
	if !r.Valid() {
		return invariantf("invalid roll %v", r)
	}
	d.roll = r
	d.rolled = true
	return nil
}

// Values returns the two values rolled.
func (d *Dice) Values() (Roll, error) {
	if !d.rolled {
		return Roll{}, ErrDiceNotRolled
	}
	return d.roll, nil
}

// IsDouble reports whether the current roll is a double.
func (d *Dice) IsDouble() (bool, error) {
	if !d.rolled {
		return false, ErrDiceNotRolled
	}
	return d.roll.IsDouble(), nil
}

// Pips returns the multiset granted by the current roll.
func (d *Dice) Pips() (Pips, error) {
	if !d.rolled {
		return Pips{}, ErrDiceNotRolled
	}
	return d.roll.Pips(), nil
}

// Rolled reports whether the dice currently hold a roll.
func (d *Dice) Rolled() bool { return d.rolled }

// Reset clears the dice to the un-rolled state.
func (d *Dice) Reset() {
	d.roll = Roll{}
	d.rolled = false
}
