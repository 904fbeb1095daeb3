package models

import "time"

// RoundOutcome — исход одного раунда внутри матча.
type RoundOutcome string

const (
	RoundP1Wins RoundOutcome = "participant1_wins"
	RoundP2Wins RoundOutcome = "participant2_wins"
	RoundTie    RoundOutcome = "tie"
)

// RoundOfPlay — один одновременный обмен ходами внутри матча. Не путать с
// раундом сетки: это уровень матча. Ничья не засчитывается никому, раунд
// переигрывается новой записью со следующим номером.
type RoundOfPlay struct {
	ID       int          `json:"id" db:"id"`
	MatchID  string       `json:"match_id" db:"match_id"`
	Number   int          `json:"number" db:"number"`
	P1Choice string       `json:"p1_choice" db:"p1_choice"`
	P2Choice string       `json:"p2_choice" db:"p2_choice"`
	Outcome  RoundOutcome `json:"outcome" db:"outcome"`
	PlayedAt time.Time    `json:"played_at" db:"played_at"`
}
