package models

import "time"

// TournamentStatus представляет статусы турнира, соответствующие ENUM в БД.
type TournamentStatus string

const (
	TournamentCreated       TournamentStatus = "created"
	TournamentRegistration  TournamentStatus = "registration"
	TournamentBracketLocked TournamentStatus = "bracket_locked"
	TournamentInProgress    TournamentStatus = "in_progress"
	TournamentCompleted     TournamentStatus = "completed"
	TournamentCancelled     TournamentStatus = "cancelled"
	// TournamentCorrupted выставляется при нарушении инварианта сетки.
	// Турнир в этом статусе требует ручного вмешательства.
	TournamentCorrupted TournamentStatus = "corrupted"
)

// BracketMode — режим турнирной сетки.
type BracketMode string

const (
	ModeSingleElimination BracketMode = "single_elimination"
	ModeDoubleElimination BracketMode = "double_elimination"
	ModeRoundRobin        BracketMode = "round_robin"
)

// Tournament представляет турнир.
type Tournament struct {
	ID              int              `json:"id" db:"id"`
	Name            string           `json:"name" db:"name"`
	Description     *string          `json:"description,omitempty" db:"description"`
	Mode            BracketMode      `json:"mode" db:"mode"`
	ChoiceSet       string           `json:"choice_set" db:"choice_set"` // "classic" или "five_choice"
	BestOf          int              `json:"best_of" db:"best_of"`
	OrganizerID     int              `json:"organizer_id" db:"organizer_id"`
	Status          TournamentStatus `json:"status" db:"status"`
	MinParticipants int              `json:"min_participants" db:"min_participants"`
	MaxParticipants int              `json:"max_participants" db:"max_participants"`
	ChampionID      *int             `json:"champion_id,omitempty" db:"champion_id"`
	CreatedAt       time.Time        `json:"created_at" db:"created_at"`
	LogoKey         *string          `json:"-" db:"logo_key"`
	LogoURL         *string          `json:"logo_url,omitempty" db:"-"`

	// Опциональные связанные сущности (не мапятся напрямую)
	Organizer    *User         `json:"organizer,omitempty" db:"-"`
	Participants []Participant `json:"participants,omitempty" db:"-"`
	Matches      []Match       `json:"matches,omitempty" db:"-"`
}

// Terminal сообщает, достиг ли турнир конечного статуса.
func (t *Tournament) Terminal() bool {
	switch t.Status {
	case TournamentCompleted, TournamentCancelled, TournamentCorrupted:
		return true
	}
	return false
}
