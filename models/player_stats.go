package models

// PlayerStats — накопительная статистика пользователя по завершённым матчам.
type PlayerStats struct {
	UserID        int `json:"user_id" db:"user_id"`
	MatchesPlayed int `json:"matches_played" db:"matches_played"`
	MatchesWon    int `json:"matches_won" db:"matches_won"`
	RoundsWon     int `json:"rounds_won" db:"rounds_won"`
	RoundsLost    int `json:"rounds_lost" db:"rounds_lost"`
	RoundsTied    int `json:"rounds_tied" db:"rounds_tied"`
}
