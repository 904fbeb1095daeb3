package engine

import "errors"

// Ошибки валидации и состояния, возвращаемые движком матча синхронно.
// Движок ничего не ретраит сам — это зона ответственности вызывающего слоя.
var (
	ErrInvalidParticipant   = errors.New("participant is not part of this match")
	ErrDuplicateSubmission  = errors.New("participant already submitted a move for the current round")
	ErrMatchAlreadyComplete = errors.New("match is already complete")
	ErrMatchCancelled       = errors.New("match was cancelled")
	ErrMatchNotReady        = errors.New("match is still awaiting a second player")
	ErrMatchFull            = errors.New("match already has two players")
	ErrUnknownChoice        = errors.New("choice is not part of the match rule set")
	ErrInvalidBestOf        = errors.New("best-of must be a positive odd number")
)
