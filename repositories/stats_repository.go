package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Dosada05/rps-arena/models"
)

// StatsRepository — накопительная статистика пользователей по матчам.
type StatsRepository interface {
	Record(ctx context.Context, userID int, won bool, roundsWon, roundsLost, roundsTied int) error
	GetByUser(ctx context.Context, userID int) (*models.PlayerStats, error)
}

type postgresStatsRepository struct {
	db *sql.DB
}

func NewPostgresStatsRepository(db *sql.DB) StatsRepository {
	return &postgresStatsRepository{db: db}
}

func (r *postgresStatsRepository) Record(ctx context.Context, userID int, won bool, roundsWon, roundsLost, roundsTied int) error {
	wonInc := 0
	if won {
		wonInc = 1
	}
	query := `
		INSERT INTO player_stats (user_id, matches_played, matches_won, rounds_won, rounds_lost, rounds_tied)
		VALUES ($1, 1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			matches_played = player_stats.matches_played + 1,
			matches_won = player_stats.matches_won + $2,
			rounds_won = player_stats.rounds_won + $3,
			rounds_lost = player_stats.rounds_lost + $4,
			rounds_tied = player_stats.rounds_tied + $5`

	if _, err := r.db.ExecContext(ctx, query, userID, wonInc, roundsWon, roundsLost, roundsTied); err != nil {
		return fmt.Errorf("failed to record stats for user %d: %w", userID, err)
	}
	return nil
}

func (r *postgresStatsRepository) GetByUser(ctx context.Context, userID int) (*models.PlayerStats, error) {
	query := `
		SELECT user_id, matches_played, matches_won, rounds_won, rounds_lost, rounds_tied
		FROM player_stats
		WHERE user_id = $1`

	stats := &models.PlayerStats{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&stats.UserID,
		&stats.MatchesPlayed,
		&stats.MatchesWon,
		&stats.RoundsWon,
		&stats.RoundsLost,
		&stats.RoundsTied,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return &models.PlayerStats{UserID: userID}, nil
		}
		return nil, fmt.Errorf("failed to scan stats for user %d: %w", userID, err)
	}
	return stats, nil
}
