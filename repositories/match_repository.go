package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/rps-arena/models"
)

var ErrMatchNotFound = errors.New("match not found")

// MatchRepository сохраняет снимки матчей. Ядро не пишет в БД само: сервис
// снимает Snapshot с движка и кладёт его сюда fire-and-forget.
type MatchRepository interface {
	Upsert(ctx context.Context, exec SQLExecutor, m *models.Match) error
	GetByID(ctx context.Context, id string) (*models.Match, error)
	ListByTournament(ctx context.Context, tournamentID int) ([]*models.Match, error)
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

const matchColumns = `id, tournament_id, slot_uid, best_of, p1_id, p2_id, p1_name, p2_name,
	p1_wins, p2_wins, winner_id, won_by_forfeit, status, created_at`

// Upsert пишет снимок целиком: матч обновляется после каждого раунда, и
// перезапись всей строки проще отслеживания дельт.
func (r *postgresMatchRepository) Upsert(ctx context.Context, exec SQLExecutor, m *models.Match) error {
	if exec == nil {
		exec = r.db
	}
	query := `
		INSERT INTO matches
			(id, tournament_id, slot_uid, best_of, p1_id, p2_id, p1_name, p2_name,
			 p1_wins, p2_wins, winner_id, won_by_forfeit, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			p2_id = EXCLUDED.p2_id,
			p2_name = EXCLUDED.p2_name,
			p1_wins = EXCLUDED.p1_wins,
			p2_wins = EXCLUDED.p2_wins,
			winner_id = EXCLUDED.winner_id,
			won_by_forfeit = EXCLUDED.won_by_forfeit,
			status = EXCLUDED.status`

	_, err := exec.ExecContext(ctx, query,
		m.ID,
		m.TournamentID,
		m.SlotUID,
		m.BestOf,
		m.P1ID,
		m.P2ID,
		m.P1Name,
		m.P2Name,
		m.P1Wins,
		m.P2Wins,
		m.WinnerID,
		m.WonByForfeit,
		m.Status,
		m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert match %s: %w", m.ID, err)
	}
	return nil
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, id string) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1`

	m := &models.Match{}
	err := scanMatch(r.db.QueryRowContext(ctx, query, id), m)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match %s: %w", id, err)
	}
	return m, nil
}

func (r *postgresMatchRepository) ListByTournament(ctx context.Context, tournamentID int) ([]*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE tournament_id = $1 ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	var out []*models.Match
	for rows.Next() {
		m := &models.Match{}
		if err := scanMatch(rows, m); err != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanMatch(row rowScanner, m *models.Match) error {
	return row.Scan(
		&m.ID,
		&m.TournamentID,
		&m.SlotUID,
		&m.BestOf,
		&m.P1ID,
		&m.P2ID,
		&m.P1Name,
		&m.P2Name,
		&m.P1Wins,
		&m.P2Wins,
		&m.WinnerID,
		&m.WonByForfeit,
		&m.Status,
		&m.CreatedAt,
	)
}
