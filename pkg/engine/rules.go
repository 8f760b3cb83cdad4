package engine

// Destination returns where a checker of side lands when it moves pip
// pips from origin. Origin 0 enters from the bar. A destination outside
// 1..24 means the checker is borne off.
func Destination(origin, pip int, side Side) int {
	if origin == BarOrigin {
		return side.EntryPoint(pip)
	}
	return origin + side.Direction()*pip
}

// IsBearOff reports whether dest lies beyond the board.
func IsBearOff(dest int) bool {
	return dest < 1 || dest > NumPoints
}

// CheckMove reports whether side may move one checker pip pips from
// origin. It returns nil when the move is legal and a *Rejection
// otherwise, or an ErrInvariant error for an unknown side. Max-usage is
// not considered here; see PlanMaxUsage.
func CheckMove(b *Board, side Side, origin, pip int) error {
	if !side.Valid() {
		return invariantf("invalid side %d", side)
	}
	if pip < 1 || pip > 6 {
		return reject(PipUnavailable, origin, pip)
	}
	if origin < BarOrigin || origin > NumPoints {
		return reject(OriginNotOwned, origin, pip)
	}

	if origin == BarOrigin {
		if b.bar[side] == 0 {
			return reject(NoCheckerOnBar, origin, pip)
		}
	} else {
		if b.bar[side] > 0 {
			return reject(BarPriorityViolation, origin, pip)
		}
		if !b.points[origin].OwnedBy(side) {
			return reject(OriginNotOwned, origin, pip)
		}
	}

	dest := Destination(origin, pip, side)
	if !IsBearOff(dest) {
		if landingBlocked(b, side, dest) {
			return reject(DestinationBlocked, origin, pip)
		}
		return nil
	}

	if !b.AllHome(side) {
		return reject(BearOffNotAllowed, origin, pip)
	}
	distance := side.OffDistance(origin)
	if pip == distance {
		return nil
	}
	if hasCheckerBehind(b, side, origin) {
		return reject(OvershootNotPermitted, origin, pip)
	}
	return nil
}

// landingBlocked reports whether two or more opposing checkers hold dest.
func landingBlocked(b *Board, side Side, dest int) bool {
	p := b.points[dest]
	return p.count >= 2 && p.side != side
}

// hasCheckerBehind reports whether side has a checker in its home
// quadrant farther from the edge than origin.
func hasCheckerBehind(b *Board, side Side, origin int) bool {
	lo, hi := side.HomeRange()
	for i := lo; i <= hi; i++ {
		if side.OffDistance(i) > side.OffDistance(origin) && b.points[i].OwnedBy(side) {
			return true
		}
	}
	return false
}

// ApplyMove checks a move and returns the board that results from it.
// The input board is not modified.
func ApplyMove(b Board, side Side, origin, pip int) (Board, error) {
	if err := CheckMove(&b, side, origin, pip); err != nil {
		return b, err
	}
	next := b
	if err := applyChecked(&next, side, origin, pip); err != nil {
		return b, err
	}
	if err := next.Validate(); err != nil {
		return b, err
	}
	return next, nil
}

// applyChecked performs a move already known to be legal.
func applyChecked(b *Board, side Side, origin, pip int) error {
	if origin == BarOrigin {
		if err := b.PopBar(side); err != nil {
			return err
		}
	} else if err := b.Take(origin, 1); err != nil {
		return err
	}

	dest := Destination(origin, pip, side)
	if IsBearOff(dest) {
		return b.PushTray(side)
	}

	if opp := side.Opponent(); b.points[dest].IsBlot(opp) {
		if err := b.Take(dest, 1); err != nil {
			return err
		}
		if err := b.PushBar(opp); err != nil {
			return err
		}
	}
	return b.Place(dest, side, 1)
}

// IsHit reports whether a legal move lands on an opposing blot.
func IsHit(b *Board, side Side, origin, pip int) bool {
	if !side.Valid() || origin < BarOrigin || origin > NumPoints {
		return false
	}
	dest := Destination(origin, pip, side)
	return !IsBearOff(dest) && b.points[dest].IsBlot(side.Opponent())
}

// LegalOrigins returns, in ascending order, every origin from which side
// may legally move pip. It contains only 0 when side has checkers on the
// bar and entry is open.
func LegalOrigins(b *Board, side Side, pip int) []int {
	if !side.Valid() {
		return nil
	}
	var origins []int
	if b.bar[side] > 0 {
		if CheckMove(b, side, BarOrigin, pip) == nil {
			origins = append(origins, BarOrigin)
		}
		return origins
	}
	for i := 1; i <= NumPoints; i++ {
		if b.points[i].OwnedBy(side) && CheckMove(b, side, i, pip) == nil {
			origins = append(origins, i)
		}
	}
	return origins
}

// AnyLegal reports whether any pip of the multiset has a legal origin.
func AnyLegal(b *Board, side Side, pips Pips) bool {
	for _, pip := range pips.Distinct() {
		if len(LegalOrigins(b, side, pip)) > 0 {
			return true
		}
	}
	return false
}

// Winner returns the side that has borne off all fifteen checkers.
func Winner(b *Board) (Side, bool) {
	for _, side := range Sides {
		if b.tray[side] == CheckersPerSide {
			return side, true
		}
	}
	return 0, false
}
