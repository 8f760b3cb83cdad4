package engine

import (
	"fmt"
	"strings"

	"github.com/yourusername/bgrules/internal/positionid"
)

// PointState is the content of one point: empty, or some checkers of a
// single side. The zero value is Empty.
type PointState struct {
	side  Side
	count uint8
}

// Empty is the state of a point with no checkers.
var Empty = PointState{}

// Occupied returns the state of a point holding n checkers of side.
// n == 0 yields Empty.
func Occupied(side Side, n int) PointState {
	if n <= 0 {
		return Empty
	}
	return PointState{side: side, count: uint8(n)}
}

// IsEmpty reports whether the point holds no checkers.
func (p PointState) IsEmpty() bool { return p.count == 0 }

// Side returns the owner of an occupied point. ok is false for Empty.
func (p PointState) Side() (side Side, ok bool) {
	return p.side, p.count > 0
}

// Count returns the number of checkers on the point.
func (p PointState) Count() int { return int(p.count) }

// OwnedBy reports whether the point holds at least one checker of side.
func (p PointState) OwnedBy(side Side) bool {
	return p.count > 0 && p.side == side
}

// IsBlot reports whether the point holds exactly one checker of side.
func (p PointState) IsBlot(side Side) bool {
	return p.count == 1 && p.side == side
}

func (p PointState) String() string {
	if p.count == 0 {
		return "empty"
	}
	return fmt.Sprintf("%s:%d", p.side, p.count)
}

// Board is the position of all checkers. It is a plain value: copying a
// Board clones it and == compares two positions.
type Board struct {
	points [NumPoints + 1]PointState // index 0 unused
	bar    [2]uint8
	tray   [2]uint8
}

// StandardBoard returns the opening position.
func StandardBoard() Board {
	var b Board
	b.SetupStandard()
	return b
}

// SetupStandard resets b to the opening position: Dark has 2 on 1, 5 on
// 12, 3 on 17 and 5 on 19; Light mirrors it on 24, 13, 8 and 6.
func (b *Board) SetupStandard() {
	*b = Board{}
	layout := []struct {
		point, n int
	}{
		{1, 2}, {12, 5}, {17, 3}, {19, 5},
	}
	for _, l := range layout {
		b.points[l.point] = Occupied(Dark, l.n)
		b.points[NumPoints+1-l.point] = Occupied(Light, l.n)
	}
}

// Point returns the state of point i. Out-of-range indexes read as Empty.
func (b *Board) Point(i int) PointState {
	if i < 1 || i > NumPoints {
		return Empty
	}
	return b.points[i]
}

// Bar returns the number of side's checkers on the bar.
func (b *Board) Bar(side Side) int { return int(b.bar[side]) }

// Tray returns the number of side's checkers borne off.
func (b *Board) Tray(side Side) int { return int(b.tray[side]) }

// Place adds n checkers of side to point i.
func (b *Board) Place(i int, side Side, n int) error {
	if i < 1 || i > NumPoints {
		return invariantf("place on point %d", i)
	}
	if n < 0 {
		return invariantf("place %d checkers", n)
	}
	cur := b.points[i]
	if cur.count > 0 && cur.side != side {
		return invariantf("place %s on point %d held by %s", side, i, cur.side)
	}
	total := int(cur.count) + n
	if total > CheckersPerSide {
		return invariantf("point %d would hold %d checkers", i, total)
	}
	b.points[i] = Occupied(side, total)
	return nil
}

// Take removes n checkers from point i.
func (b *Board) Take(i int, n int) error {
	if i < 1 || i > NumPoints {
		return invariantf("take from point %d", i)
	}
	cur := b.points[i]
	if n < 0 || int(cur.count) < n {
		return invariantf("take %d from point %d holding %d", n, i, cur.count)
	}
	b.points[i] = Occupied(cur.side, int(cur.count)-n)
	return nil
}

// PushBar puts one of side's checkers on the bar.
func (b *Board) PushBar(side Side) error {
	if b.bar[side] >= CheckersPerSide {
		return invariantf("%s bar overflow", side)
	}
	b.bar[side]++
	return nil
}

// PopBar takes one of side's checkers off the bar.
func (b *Board) PopBar(side Side) error {
	if b.bar[side] == 0 {
		return invariantf("%s bar is empty", side)
	}
	b.bar[side]--
	return nil
}

// PushTray bears one of side's checkers off.
func (b *Board) PushTray(side Side) error {
	if b.tray[side] >= CheckersPerSide {
		return invariantf("%s tray overflow", side)
	}
	b.tray[side]++
	return nil
}

// SetBar and SetTray overwrite the off-board counters. They exist for
// position setup and decoding; call Validate afterwards.
func (b *Board) SetBar(side Side, n int) { b.bar[side] = uint8(n) }

func (b *Board) SetTray(side Side, n int) { b.tray[side] = uint8(n) }

// SetPoint overwrites point i. Out-of-range indexes are ignored.
func (b *Board) SetPoint(i int, p PointState) {
	if i >= 1 && i <= NumPoints {
		b.points[i] = p
	}
}

// OnPoints counts side's checkers on the 24 points.
func (b *Board) OnPoints(side Side) int {
	n := 0
	for i := 1; i <= NumPoints; i++ {
		if b.points[i].OwnedBy(side) {
			n += int(b.points[i].count)
		}
	}
	return n
}

// Checkers counts all of side's checkers: points, bar and tray.
func (b *Board) Checkers(side Side) int {
	return b.OnPoints(side) + int(b.bar[side]) + int(b.tray[side])
}

// PipCount is the total number of pips side needs to bear everything
// off. Checkers on the bar count 25.
func (b *Board) PipCount(side Side) int {
	pips := int(b.bar[side]) * (NumPoints + 1)
	for i := 1; i <= NumPoints; i++ {
		if b.points[i].OwnedBy(side) {
			pips += int(b.points[i].count) * side.OffDistance(i)
		}
	}
	return pips
}

// AllHome reports whether every checker side still has in play is in its
// home quadrant.
func (b *Board) AllHome(side Side) bool {
	if b.bar[side] > 0 {
		return false
	}
	for i := 1; i <= NumPoints; i++ {
		if b.points[i].OwnedBy(side) && !side.InHome(i) {
			return false
		}
	}
	return true
}

// Validate checks the global invariants: 15 checkers per side across
// points, bar and tray.
func (b *Board) Validate() error {
	for _, side := range Sides {
		if n := b.Checkers(side); n != CheckersPerSide {
			return invariantf("%s has %d checkers", side, n)
		}
		if b.tray[side] > CheckersPerSide {
			return invariantf("%s tray holds %d", side, b.tray[side])
		}
	}
	for i := 1; i <= NumPoints; i++ {
		if p := b.points[i]; p.count > 0 && !p.side.Valid() {
			return invariantf("point %d owned by %s", i, p.side)
		}
	}
	return nil
}

// Tan converts the board into gnubg's per-player layout with onRoll as
// the player to move.
func (b *Board) Tan(onRoll Side) positionid.Board {
	var tan positionid.Board
	for slot, side := range [2]Side{Dark, Light} {
		for i := 1; i <= NumPoints; i++ {
			if b.points[i].OwnedBy(side) {
				tan[slot][side.Perspective(i)-1] = b.points[i].count
			}
		}
		tan[slot][positionid.BarSlot] = b.bar[side]
	}
	if onRoll == Dark {
		return positionid.SwapSides(tan)
	}
	return tan
}

// BoardFromTan rebuilds a board from gnubg's layout. Checkers missing
// from the layout are placed in the tray.
func BoardFromTan(tan positionid.Board, onRoll Side) (Board, error) {
	if !onRoll.Valid() {
		return Board{}, invariantf("invalid side %d", onRoll)
	}
	if onRoll == Dark {
		tan = positionid.SwapSides(tan)
	}
	var b Board
	for slot, side := range [2]Side{Dark, Light} {
		for i := 1; i <= NumPoints; i++ {
			if n := tan[slot][side.Perspective(i)-1]; n > 0 {
				if err := b.Place(i, side, int(n)); err != nil {
					return Board{}, err
				}
			}
		}
		b.bar[side] = tan[slot][positionid.BarSlot]
		on := b.OnPoints(side) + int(b.bar[side])
		if on > CheckersPerSide {
			return Board{}, invariantf("%s has %d checkers in play", side, on)
		}
		b.tray[side] = uint8(CheckersPerSide - on)
	}
	return b, b.Validate()
}

// BoardFromPositionID decodes a GNU Backgammon position ID with onRoll
// to move.
func BoardFromPositionID(id string, onRoll Side) (Board, error) {
	tan, err := positionid.BoardFromPositionID(id)
	if err != nil {
		return Board{}, err
	}
	return BoardFromTan(tan, onRoll)
}

// Key is a compact hashable form of the board seen from onRoll.
func (b *Board) Key(onRoll Side) positionid.PositionKey {
	return positionid.MakePositionKey(b.Tan(onRoll))
}

// PositionID returns the GNU Backgammon position ID with onRoll to move.
func (b *Board) PositionID(onRoll Side) string {
	return positionid.PositionID(b.Tan(onRoll))
}

// String renders the board in a compact one-line-per-row debug form.
func (b Board) String() string {
	var sb strings.Builder
	row := func(from, to, step int) {
		for i := from; i != to+step; i += step {
			p := b.points[i]
			switch {
			case p.count == 0:
				sb.WriteString(" .")
			case p.side == Dark:
				fmt.Fprintf(&sb, " %dD", p.count)
			default:
				fmt.Fprintf(&sb, " %dL", p.count)
			}
		}
		sb.WriteByte('\n')
	}
	row(13, 24, 1)
	row(12, 1, -1)
	fmt.Fprintf(&sb, "bar L:%d D:%d  off L:%d D:%d",
		b.bar[Light], b.bar[Dark], b.tray[Light], b.tray[Dark])
	return sb.String()
}
