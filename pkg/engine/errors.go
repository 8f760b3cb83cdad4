package engine

import (
	"errors"
	"fmt"
)

// ErrInvariant marks programming errors and broken board invariants.
// These are never player mistakes; the state they leave behind is
// undefined.
var ErrInvariant = errors.New("invariant violation")

// ErrDiceNotRolled is returned when dice are queried before a roll.
var ErrDiceNotRolled = fmt.Errorf("%w: dice not rolled", ErrInvariant)

func invariantf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvariant, fmt.Sprintf(format, args...))
}

// Reason classifies a rule rejection.
type Reason int

const (
	BarPriorityViolation Reason = iota + 1
	OriginNotOwned
	DestinationBlocked
	BearOffNotAllowed
	OvershootNotPermitted
	NoCheckerOnBar
	PipUnavailable
	TurnAlreadyEnded
	PipNotPermittedByMaxUsage
	PlayableMovesRemain
	NothingToUndo
)

var reasonNames = map[Reason]string{
	BarPriorityViolation:      "bar priority violation",
	OriginNotOwned:            "origin not owned",
	DestinationBlocked:        "destination blocked",
	BearOffNotAllowed:         "bear-off not allowed",
	OvershootNotPermitted:     "overshoot not permitted",
	NoCheckerOnBar:            "no checker on bar",
	PipUnavailable:            "pip unavailable",
	TurnAlreadyEnded:          "turn already ended",
	PipNotPermittedByMaxUsage: "pip not permitted by max usage",
	PlayableMovesRemain:       "playable moves remain",
	NothingToUndo:             "nothing to undo",
}

func (r Reason) String() string {
	if name, ok := reasonNames[r]; ok {
		return name
	}
	return fmt.Sprintf("reason(%d)", int(r))
}

// Sentinels for errors.Is matching against a *Rejection.
var (
	ErrBarPriorityViolation      = &Rejection{Reason: BarPriorityViolation}
	ErrOriginNotOwned            = &Rejection{Reason: OriginNotOwned}
	ErrDestinationBlocked        = &Rejection{Reason: DestinationBlocked}
	ErrBearOffNotAllowed         = &Rejection{Reason: BearOffNotAllowed}
	ErrOvershootNotPermitted     = &Rejection{Reason: OvershootNotPermitted}
	ErrNoCheckerOnBar            = &Rejection{Reason: NoCheckerOnBar}
	ErrPipUnavailable            = &Rejection{Reason: PipUnavailable}
	ErrTurnAlreadyEnded          = &Rejection{Reason: TurnAlreadyEnded}
	ErrPipNotPermittedByMaxUsage = &Rejection{Reason: PipNotPermittedByMaxUsage}
	ErrPlayableMovesRemain       = &Rejection{Reason: PlayableMovesRemain}
	ErrNothingToUndo             = &Rejection{Reason: NothingToUndo}
)

// Rejection is a user-visible refusal of a move or turn command. It never
// accompanies a state change.
type Rejection struct {
	Reason Reason
	Origin int
	Pip    int
}

func reject(reason Reason, origin, pip int) *Rejection {
	return &Rejection{Reason: reason, Origin: origin, Pip: pip}
}

func (r *Rejection) Error() string {
	if r.Pip == 0 {
		return r.Reason.String()
	}
	return fmt.Sprintf("%s (origin %d, pip %d)", r.Reason, r.Origin, r.Pip)
}

// Is matches any rejection with the same reason.
func (r *Rejection) Is(target error) bool {
	t, ok := target.(*Rejection)
	return ok && t.Reason == r.Reason
}

// ReasonOf extracts the rejection reason from err, if any.
func ReasonOf(err error) (Reason, bool) {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej.Reason, true
	}
	return 0, false
}

// IsRejection reports whether err is a rule rejection rather than an
// invariant violation.
func IsRejection(err error) bool {
	_, ok := ReasonOf(err)
	return ok
}
