package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Dosada05/rps-arena/models"
)

// RoundRepository хранит историю раундов матчей (включая переигранные
// ничьи) для аудита и восстановления.
type RoundRepository interface {
	Create(ctx context.Context, exec SQLExecutor, round *models.RoundOfPlay) error
	ListByMatch(ctx context.Context, matchID string) ([]models.RoundOfPlay, error)
}

type postgresRoundRepository struct {
	db *sql.DB
}

func NewPostgresRoundRepository(db *sql.DB) RoundRepository {
	return &postgresRoundRepository{db: db}
}

func (r *postgresRoundRepository) Create(ctx context.Context, exec SQLExecutor, round *models.RoundOfPlay) error {
	if exec == nil {
		exec = r.db
	}
	query := `
		INSERT INTO rounds_of_play (match_id, number, p1_choice, p2_choice, outcome, played_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	err := exec.QueryRowContext(ctx, query,
		round.MatchID,
		round.Number,
		round.P1Choice,
		round.P2Choice,
		round.Outcome,
		round.PlayedAt,
	).Scan(&round.ID)
	if err != nil {
		return fmt.Errorf("failed to create round %d of match %s: %w", round.Number, round.MatchID, err)
	}
	return nil
}

func (r *postgresRoundRepository) ListByMatch(ctx context.Context, matchID string) ([]models.RoundOfPlay, error) {
	query := `
		SELECT id, match_id, number, p1_choice, p2_choice, outcome, played_at
		FROM rounds_of_play
		WHERE match_id = $1
		ORDER BY number`

	rows, err := r.db.QueryContext(ctx, query, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rounds for match %s: %w", matchID, err)
	}
	defer rows.Close()

	var out []models.RoundOfPlay
	for rows.Next() {
		var rp models.RoundOfPlay
		if err := rows.Scan(&rp.ID, &rp.MatchID, &rp.Number, &rp.P1Choice, &rp.P2Choice, &rp.Outcome, &rp.PlayedAt); err != nil {
			return nil, fmt.Errorf("failed to scan round row: %w", err)
		}
		out = append(out, rp)
	}
	return out, rows.Err()
}
