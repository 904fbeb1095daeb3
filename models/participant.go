package models

import "time"

// ParticipantStatus соответствует ENUM participant_status в БД.
type ParticipantStatus string

const (
	ParticipantActive     ParticipantStatus = "active"
	ParticipantEliminated ParticipantStatus = "eliminated"
	ParticipantChampion   ParticipantStatus = "champion"
)

// Participant — зарегистрированный игрок турнира. Seed назначается при
// регистрации (порядок регистрации либо внешний рейтинг) и не меняется
// после фиксации сетки. Статус меняет только контроллер турнира.
type Participant struct {
	ID           int               `json:"id" db:"id"`
	TournamentID int               `json:"tournament_id" db:"tournament_id"`
	UserID       *int              `json:"user_id,omitempty" db:"user_id"`
	DisplayName  string            `json:"display_name" db:"display_name"`
	Seed         int               `json:"seed" db:"seed"`
	Status       ParticipantStatus `json:"status" db:"status"`
	CreatedAt    time.Time         `json:"created_at" db:"created_at"`
}
