package services

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Dosada05/rps-arena/brackets"
	"github.com/Dosada05/rps-arena/game"
	"github.com/Dosada05/rps-arena/models"
	"github.com/Dosada05/rps-arena/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTournamentRepo struct {
	mu    sync.Mutex
	seq   int
	items map[int]models.Tournament
}

func newStubTournamentRepo() *stubTournamentRepo {
	return &stubTournamentRepo{items: make(map[int]models.Tournament)}
}

func (r *stubTournamentRepo) Create(_ context.Context, t *models.Tournament) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	t.ID = r.seq
	t.CreatedAt = time.Now()
	r.items[t.ID] = *t
	return nil
}

func (r *stubTournamentRepo) GetByID(_ context.Context, id int) (*models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.items[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	return &t, nil
}

func (r *stubTournamentRepo) List(_ context.Context, _ repositories.ListTournamentsFilter) ([]*models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Tournament
	for _, t := range r.items {
		copied := t
		out = append(out, &copied)
	}
	return out, nil
}

func (r *stubTournamentRepo) ListByStatus(ctx context.Context, status models.TournamentStatus) ([]*models.Tournament, error) {
	return r.List(ctx, repositories.ListTournamentsFilter{Status: &status})
}

func (r *stubTournamentRepo) UpdateStatus(_ context.Context, _ repositories.SQLExecutor, id int, status models.TournamentStatus, championID *int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.items[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.Status = status
	t.ChampionID = championID
	r.items[id] = t
	return nil
}

func (r *stubTournamentRepo) UpdateLogoKey(_ context.Context, id int, logoKey *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.items[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.LogoKey = logoKey
	r.items[id] = t
	return nil
}

type stubUserRepo struct{}

func (stubUserRepo) Create(_ context.Context, user *models.User) error {
	user.ID = 1
	return nil
}

func (stubUserRepo) GetByID(context.Context, int) (*models.User, error) {
	return nil, repositories.ErrUserNotFound
}

func (stubUserRepo) GetByEmail(context.Context, string) (*models.User, error) {
	return nil, repositories.ErrUserNotFound
}

func newTestTournamentService(t *testing.T) (TournamentService, *stubTournamentRepo) {
	t.Helper()
	tournamentRepo := newStubTournamentRepo()
	participantRepo := newStubParticipantRepo()
	matchRepo := newStubMatchRepo()
	roundRepo := &stubRoundRepo{}
	publisher := NewEventFanout(brackets.NewHub(slog.Default()),
		tournamentRepo, participantRepo, matchRepo, roundRepo, slog.Default())
	svc := NewTournamentService(nil, tournamentRepo, participantRepo, matchRepo,
		roundRepo, stubUserRepo{}, nil, publisher, slog.Default())
	return svc, tournamentRepo
}

// Контроллер завершённого турнира выбрасывается из памяти, дальше турнир
// обслуживается из персистентности.
func TestCompletedTournamentReleased(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestTournamentService(t)

	created, err := svc.Create(ctx, 1, CreateTournamentInput{
		Name:   "arena cup",
		Mode:   string(models.ModeSingleElimination),
		BestOf: 1,
	})
	require.NoError(t, err)
	id := created.ID

	require.NoError(t, svc.OpenRegistration(ctx, id, 1))
	ctrl, ok := svc.Controller(id)
	require.True(t, ok)

	_, err = ctrl.Register(101, "alice")
	require.NoError(t, err)
	_, err = ctrl.Register(102, "bob")
	require.NoError(t, err)
	require.NoError(t, svc.Start(ctx, id, 1))

	snap := ctrl.Snapshot()
	require.Len(t, snap.Matches, 1)
	matchID := snap.Matches[0].ID

	_, err = ctrl.SubmitMove(ctx, matchID, 101, game.Paper)
	require.NoError(t, err)
	res, err := ctrl.SubmitMove(ctx, matchID, 102, game.Rock)
	require.NoError(t, err)
	require.True(t, res.MatchOver)

	require.Eventually(t, func() bool {
		_, live := svc.Controller(id)
		return !live
	}, time.Second, 10*time.Millisecond, "terminal controller must leave the active set")
	assert.Empty(t, svc.ActiveControllers())

	require.Eventually(t, func() bool {
		got, err := svc.GetByID(ctx, id)
		return err == nil && got.Status == models.TournamentCompleted
	}, time.Second, 10*time.Millisecond, "completed tournament must be served from persistence")

	got, err := svc.GetByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got.ChampionID)
	assert.Equal(t, 101, *got.ChampionID)
}

func TestCancelledTournamentReleased(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestTournamentService(t)

	created, err := svc.Create(ctx, 1, CreateTournamentInput{
		Name:   "abandoned cup",
		Mode:   string(models.ModeRoundRobin),
		BestOf: 1,
	})
	require.NoError(t, err)
	id := created.ID

	require.NoError(t, svc.OpenRegistration(ctx, id, 1))
	require.NoError(t, svc.Cancel(ctx, id, 1))

	require.Eventually(t, func() bool {
		_, live := svc.Controller(id)
		return !live
	}, time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		got, err := svc.GetByID(ctx, id)
		return err == nil && got.Status == models.TournamentCancelled
	}, time.Second, 10*time.Millisecond)
}
