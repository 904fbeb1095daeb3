package models

import "time"

type MatchStatus string

const (
	MatchScheduled     MatchStatus = "scheduled"
	MatchAwaitingMoves MatchStatus = "awaiting_moves"
	MatchResolved      MatchStatus = "resolved"
	MatchCancelled     MatchStatus = "cancelled"
)

// Match — один матч best-of-N между двумя участниками. SlotUID привязывает
// матч к слоту сетки (nil для быстрых матчей вне турнира). Инвариант:
// WinnerID установлен тогда и только тогда, когда один из участников набрал
// ceil(BestOf/2) выигранных раундов либо матч завершён форфейтом.
type Match struct {
	ID           string      `json:"id" db:"id"`
	TournamentID *int        `json:"tournament_id,omitempty" db:"tournament_id"`
	SlotUID      *string     `json:"slot_uid,omitempty" db:"slot_uid"`
	BestOf       int         `json:"best_of" db:"best_of"`
	P1ID         *int        `json:"p1_id,omitempty" db:"p1_id"`
	P2ID         *int        `json:"p2_id,omitempty" db:"p2_id"`
	P1Name       string      `json:"p1_name" db:"p1_name"`
	P2Name       string      `json:"p2_name" db:"p2_name"`
	P1Wins       int         `json:"p1_wins" db:"p1_wins"`
	P2Wins       int         `json:"p2_wins" db:"p2_wins"`
	WinnerID     *int        `json:"winner_id,omitempty" db:"winner_id"`
	WonByForfeit bool        `json:"won_by_forfeit" db:"won_by_forfeit"`
	Status       MatchStatus `json:"status" db:"status"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`

	Rounds []RoundOfPlay `json:"rounds,omitempty" db:"-"`
}
