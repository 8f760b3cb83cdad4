package engine

import (
	"github.com/samber/lo"
)

// Plan summarizes what a pip multiset allows from a position.
type Plan struct {
	// MaxMoves is the largest number of pips that can be played in
	// some legal order (0..4).
	MaxMoves int
	// Playable lists the pip values that have a legal single move.
	Playable []int
	// Permitted lists the pip values that may be played next without
	// falling short of MaxMoves. For a non-double roll where only one
	// pip can be played and either would do, it is narrowed to the
	// higher one.
	Permitted []int
}

// Allows reports whether pip is in the permitted set.
func (p Plan) Allows(pip int) bool {
	return lo.Contains(p.Permitted, pip)
}

// PlanMaxUsage computes the Plan for side playing pips from board b,
// using a fresh cache.
func PlanMaxUsage(b Board, side Side, pips Pips) Plan {
	return NewPlanner(side, nil).Plan(&b, pips)
}

// MaxUsage returns only the maximum playable count.
func MaxUsage(b Board, side Side, pips Pips) int {
	return NewPlanner(side, nil).MaxUsage(&b, pips)
}

// Planner runs the depth-first max-usage search for one side, memoizing
// (position, multiset) results in a PlanCache.
type Planner struct {
	side  Side
	cache *PlanCache
}

// NewPlanner returns a planner for side. A nil cache gets a default one.
func NewPlanner(side Side, cache *PlanCache) *Planner {
	if cache == nil {
		cache = NewPlanCache(DefaultPlanCacheSize)
	}
	return &Planner{side: side, cache: cache}
}

// Side returns the side the planner searches for.
func (p *Planner) Side() Side { return p.side }

// MaxUsage returns the largest k such that k pips of the multiset can be
// played in sequence from b.
func (p *Planner) MaxUsage(b *Board, pips Pips) int {
	total := pips.Len()
	if total == 0 {
		return 0
	}

	key := b.Key(p.side)
	ctx := pips.context()
	if k, ok := p.cache.Lookup(key, ctx); ok {
		return k
	}

	best := 0
search:
	for _, pip := range pips.Distinct() {
		rest := pips.Without(pip)
		for _, origin := range LegalOrigins(b, p.side, pip) {
			next := *b
			if err := applyChecked(&next, p.side, origin, pip); err != nil {
				continue
			}
			if k := 1 + p.MaxUsage(&next, rest); k > best {
				best = k
				if best == total {
					break search
				}
			}
		}
	}

	p.cache.Add(key, ctx, best)
	return best
}

// Keeps reports whether playing pip from origin still allows target pips
// to be played in total, counting this move.
func (p *Planner) Keeps(b *Board, pips Pips, origin, pip, target int) bool {
	if CheckMove(b, p.side, origin, pip) != nil || !pips.Has(pip) {
		return false
	}
	next := *b
	if err := applyChecked(&next, p.side, origin, pip); err != nil {
		return false
	}
	return 1+p.MaxUsage(&next, pips.Without(pip)) >= target
}

// Plan computes the full Plan for b and pips.
func (p *Planner) Plan(b *Board, pips Pips) Plan {
	plan := Plan{MaxMoves: p.MaxUsage(b, pips)}

	for _, pip := range pips.Distinct() {
		origins := LegalOrigins(b, p.side, pip)
		if len(origins) == 0 {
			continue
		}
		plan.Playable = append(plan.Playable, pip)
		if plan.MaxMoves == 0 {
			continue
		}
		if lo.ContainsBy(origins, func(origin int) bool {
			return p.Keeps(b, pips, origin, pip, plan.MaxMoves)
		}) {
			plan.Permitted = append(plan.Permitted, pip)
		}
	}

	// With one of two different dice playable, the higher must be used.
	if plan.MaxMoves == 1 && isSplitRoll(pips) && len(plan.Permitted) == 2 {
		plan.Permitted = []int{lo.Max(plan.Permitted)}
	}
	return plan
}

// isSplitRoll reports whether pips is an untouched non-double roll.
func isSplitRoll(pips Pips) bool {
	d := pips.Distinct()
	return len(d) == 2 && pips.Len() == 2
}
