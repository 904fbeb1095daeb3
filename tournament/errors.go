package tournament

import "errors"

// Ошибки контроллера турнира: валидация и недопустимые для текущего
// статуса операции. Сообщаются вызывающему синхронно, без ретраев.
var (
	ErrRegistrationNotOpen    = errors.New("tournament registration is not open")
	ErrTournamentFull         = errors.New("tournament registration is full")
	ErrDuplicateParticipant   = errors.New("participant is already registered")
	ErrBelowMinimumPlayers    = errors.New("registered participant count is below the mode minimum")
	ErrUnknownMatch           = errors.New("match is not tracked by this tournament")
	ErrInvalidStatusChange    = errors.New("operation is not valid for the current tournament status")
	ErrTournamentNotRunning   = errors.New("tournament is not in progress")
	ErrTournamentTerminal     = errors.New("tournament already reached a terminal status")
	// ErrBracketCorrupted — зафиксировано нарушение инварианта сетки; турнир
	// переведён в corrupted и требует ручного вмешательства.
	ErrBracketCorrupted = errors.New("bracket invariant violated, tournament marked corrupted")
)
