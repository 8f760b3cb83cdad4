// Package engine implements the rules of two-player backgammon: board
// state, dice, move legality, the maximum-usage planner, turn control
// and match alternation.
//
// Points are numbered 1-24 on a single shared board. Dark moves from 1
// toward 24 (home 19-24, bears off past 24); Light moves from 24 toward 1
// (home 1-6, bears off past 1). Origin 0 in a move means "from the bar".
package engine

import "fmt"

// Board geometry.
const (
	NumPoints       = 24
	CheckersPerSide = 15
	HomeSize        = 6
	BarOrigin       = 0
)

// Side identifies one of the two players.
type Side uint8

const (
	Light Side = iota
	Dark
)

// Sides lists both sides in a stable order.
var Sides = [2]Side{Light, Dark}

// Opponent returns the other side.
func (s Side) Opponent() Side {
	return s ^ 1
}

// Valid reports whether s is Light or Dark.
func (s Side) Valid() bool {
	return s == Light || s == Dark
}

func (s Side) String() string {
	switch s {
	case Light:
		return "light"
	case Dark:
		return "dark"
	}
	return fmt.Sprintf("side(%d)", uint8(s))
}

// ParseSide parses the names produced by String.
func ParseSide(name string) (Side, error) {
	switch name {
	case "light":
		return Light, nil
	case "dark":
		return Dark, nil
	}
	return 0, fmt.Errorf("unknown side %q", name)
}

// Direction is +1 for Dark and -1 for Light.
func (s Side) Direction() int {
	if s == Dark {
		return 1
	}
	return -1
}

// HomeRange returns the lowest and highest point of the side's home
// quadrant.
func (s Side) HomeRange() (lo, hi int) {
	if s == Dark {
		return NumPoints - HomeSize + 1, NumPoints
	}
	return 1, HomeSize
}

// InHome reports whether point lies in the side's home quadrant.
func (s Side) InHome(point int) bool {
	lo, hi := s.HomeRange()
	return point >= lo && point <= hi
}

// EntryPoint is the point a checker re-enters on from the bar with pip.
func (s Side) EntryPoint(pip int) int {
	if s == Dark {
		return pip
	}
	return NumPoints + 1 - pip
}

// OffDistance is the number of pips needed to bear a checker off from
// point.
func (s Side) OffDistance(point int) int {
	if s == Dark {
		return NumPoints + 1 - point
	}
	return point
}

// Perspective converts a board point into the side's own numbering,
// where 1 is the deepest home point and 24 the farthest away.
func (s Side) Perspective(point int) int {
	return s.OffDistance(point)
}
