package engine

import "errors"

// Kind classifies an engine failure so the boundary can map it to a status
// without matching individual errors.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindPhase         Kind = "phase"
	KindAuthorization Kind = "authorization"
	KindConcurrency   Kind = "concurrency"
	KindFeasibility   Kind = "feasibility"
	KindInternal      Kind = "internal"
)

// Error is a sentinel engine error carrying its Kind. Compare with errors.Is.
type Error struct {
	Kind Kind
	msg  string
}

func (e *Error) Error() string { return e.msg }

func newError(kind Kind, msg string) *Error { return &Error{Kind: kind, msg: msg} }

var (
	ErrInvalidChoice       = newError(KindValidation, "choice index out of range")
	ErrInvalidPair         = newError(KindValidation, "drawer cannot be paired with that giftee")
	ErrUnknownParticipant  = newError(KindValidation, "unknown participant")
	ErrGifteeUnavailable   = newError(KindValidation, "giftee has already been drawn")
	ErrUnsupportedCommand  = newError(KindValidation, "unsupported command")
	ErrWrongPhase          = newError(KindPhase, "operation not allowed in the current selection phase")
	ErrNotStarted          = newError(KindPhase, "game has not been started")
	ErrAlreadyStarted      = newError(KindPhase, "game has already been started")
	ErrGameAlreadyComplete = newError(KindPhase, "game already completed")
	ErrForbidden           = newError(KindAuthorization, "caller is not identified")
	ErrAdminOnly           = newError(KindAuthorization, "admin access required")
	ErrNotYourTurn         = newError(KindAuthorization, "not your turn")
	ErrTurnInProgress      = newError(KindConcurrency, "turn already in progress")
	ErrTurnNotLocked       = newError(KindConcurrency, "turn is not locked")
	ErrInfeasible          = newError(KindFeasibility, "roster cannot complete the draw from this state")
)

// KindOf returns the Kind of the first engine error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
