package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/Dosada05/rps-arena/brackets"
	"github.com/Dosada05/rps-arena/game"
	"github.com/Dosada05/rps-arena/models"
	"github.com/Dosada05/rps-arena/repositories"
	"github.com/Dosada05/rps-arena/storage"
	"github.com/Dosada05/rps-arena/tournament"
	"golang.org/x/sync/errgroup"
)

type CreateTournamentInput struct {
	Name            string  `json:"name"`
	Description     *string `json:"description,omitempty"`
	Mode            string  `json:"mode"`
	ChoiceSet       string  `json:"choice_set"`
	BestOf          int     `json:"best_of"`
	MinParticipants int     `json:"min_participants"`
	MaxParticipants int     `json:"max_participants"`
}

type TournamentService interface {
	Create(ctx context.Context, organizerID int, input CreateTournamentInput) (*models.Tournament, error)
	OpenRegistration(ctx context.Context, id, currentUserID int) error
	Register(ctx context.Context, id int, userID *int, displayName string) (*models.Participant, error)
	Start(ctx context.Context, id, currentUserID int) error
	Cancel(ctx context.Context, id, currentUserID int) error
	GetByID(ctx context.Context, id int) (*models.Tournament, error)
	List(ctx context.Context, filter repositories.ListTournamentsFilter) ([]*models.Tournament, error)
	BracketJSON(ctx context.Context, id int) (json.RawMessage, error)
	UploadLogo(ctx context.Context, id, currentUserID int, file io.Reader, size int64, contentType string) (*models.Tournament, error)

	// Controller отдаёт живой контроллер активного турнира (для сервиса
	// матчей и планировщика форфейтов).
	Controller(id int) (*tournament.Controller, bool)
	ActiveControllers() []*tournament.Controller
}

type tournamentService struct {
	db              *sql.DB
	tournamentRepo  repositories.TournamentRepository
	participantRepo repositories.ParticipantRepository
	matchRepo       repositories.MatchRepository
	roundRepo       repositories.RoundRepository
	userRepo        repositories.UserRepository
	uploader        storage.FileUploader
	publisher       tournament.Publisher
	logger          *slog.Logger

	mu     sync.RWMutex
	active map[int]*tournament.Controller
}

func NewTournamentService(
	db *sql.DB,
	tournamentRepo repositories.TournamentRepository,
	participantRepo repositories.ParticipantRepository,
	matchRepo repositories.MatchRepository,
	roundRepo repositories.RoundRepository,
	userRepo repositories.UserRepository,
	uploader storage.FileUploader,
	publisher tournament.Publisher,
	logger *slog.Logger,
) TournamentService {
	return &tournamentService{
		db:              db,
		tournamentRepo:  tournamentRepo,
		participantRepo: participantRepo,
		matchRepo:       matchRepo,
		roundRepo:       roundRepo,
		userRepo:        userRepo,
		uploader:        uploader,
		publisher:       publisher,
		logger:          logger,
		active:          make(map[int]*tournament.Controller),
	}
}

func (s *tournamentService) Create(ctx context.Context, organizerID int, input CreateTournamentInput) (*models.Tournament, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrNameRequired
	}
	if input.BestOf == 0 {
		input.BestOf = 3
	}
	if input.BestOf < 1 || input.BestOf%2 == 0 {
		return nil, ErrInvalidBestOf
	}
	mode := models.BracketMode(input.Mode)
	if _, err := brackets.ForMode(mode); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, input.Mode)
	}
	if input.ChoiceSet == "" {
		input.ChoiceSet = "classic"
	}
	if _, err := game.ByName(input.ChoiceSet); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidChoiceSet, input.ChoiceSet)
	}

	t := &models.Tournament{
		Name:            name,
		Description:     input.Description,
		Mode:            mode,
		ChoiceSet:       input.ChoiceSet,
		BestOf:          input.BestOf,
		OrganizerID:     organizerID,
		Status:          models.TournamentCreated,
		MinParticipants: input.MinParticipants,
		MaxParticipants: input.MaxParticipants,
	}
	if err := s.tournamentRepo.Create(ctx, t); err != nil {
		if errors.Is(err, repositories.ErrTournamentNameConflict) {
			return nil, ErrTournamentNameConflict
		}
		return nil, err
	}

	ctrl, err := tournament.New(tournament.Config{
		Tournament: t,
		Publisher:  s.publisher,
		Logger:     s.logger,
		OnTerminal: s.release,
	})
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.active[t.ID] = ctrl
	s.mu.Unlock()

	s.logger.Info("tournament created",
		slog.Int("tournament_id", t.ID),
		slog.String("mode", string(t.Mode)),
		slog.Int("organizer_id", organizerID))
	return ctrl.Snapshot(), nil
}

// release выбрасывает контроллер терминального турнира из active: сетка
// живёт в памяти только пока турнир идёт, дальше его обслуживает БД.
// Снимки completed/cancelled сохраняет eventFanout; corrupted событий не
// публикует, поэтому статус записывается здесь.
func (s *tournamentService) release(t *models.Tournament) {
	s.mu.Lock()
	delete(s.active, t.ID)
	s.mu.Unlock()

	if t.Status == models.TournamentCorrupted {
		if err := s.tournamentRepo.UpdateStatus(context.Background(), nil, t.ID, t.Status, nil); err != nil {
			s.logger.Error("failed to persist corrupted status",
				slog.Int("tournament_id", t.ID), slog.Any("error", err))
		}
	}
	s.logger.Info("tournament controller released",
		slog.Int("tournament_id", t.ID), slog.String("status", string(t.Status)))
}

func (s *tournamentService) Controller(id int) (*tournament.Controller, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ctrl, ok := s.active[id]
	return ctrl, ok
}

func (s *tournamentService) ActiveControllers() []*tournament.Controller {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*tournament.Controller, 0, len(s.active))
	for _, ctrl := range s.active {
		out = append(out, ctrl)
	}
	return out
}

func (s *tournamentService) controllerChecked(ctx context.Context, id, currentUserID int) (*tournament.Controller, error) {
	ctrl, ok := s.Controller(id)
	if !ok {
		return nil, ErrTournamentNotFound
	}
	if currentUserID > 0 {
		if err := s.checkOrganizer(ctx, ctrl.Snapshot(), currentUserID); err != nil {
			return nil, err
		}
	}
	return ctrl, nil
}

func (s *tournamentService) checkOrganizer(ctx context.Context, t *models.Tournament, currentUserID int) error {
	if t.OrganizerID == currentUserID {
		return nil
	}
	user, err := s.userRepo.GetByID(ctx, currentUserID)
	if err == nil && user.Role == models.RoleAdmin {
		return nil
	}
	return ErrForbiddenOperation
}

func (s *tournamentService) OpenRegistration(ctx context.Context, id, currentUserID int) error {
	ctrl, err := s.controllerChecked(ctx, id, currentUserID)
	if err != nil {
		return err
	}
	if err := ctrl.OpenRegistration(); err != nil {
		return err
	}
	if err := s.tournamentRepo.UpdateStatus(ctx, nil, id, models.TournamentRegistration, nil); err != nil {
		s.logger.Error("failed to persist registration status", slog.Int("tournament_id", id), slog.Any("error", err))
	}
	return nil
}

// Register создаёт запись участника в транзакции: строка в БД даёт ID,
// контроллер назначает seed; отказ контроллера откатывает строку.
func (s *tournamentService) Register(ctx context.Context, id int, userID *int, displayName string) (*models.Participant, error) {
	ctrl, ok := s.Controller(id)
	if !ok {
		return nil, ErrTournamentNotFound
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, ErrNameRequired
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	p := &models.Participant{
		TournamentID: id,
		UserID:       userID,
		DisplayName:  displayName,
		Status:       models.ParticipantActive,
	}
	if err := s.participantRepo.Create(ctx, tx, p); err != nil {
		return nil, err
	}

	registered, err := ctrl.Register(p.ID, displayName)
	if err != nil {
		return nil, err
	}
	p.Seed = registered.Seed

	if _, err := tx.ExecContext(ctx, `UPDATE participants SET seed = $1 WHERE id = $2`, p.Seed, p.ID); err != nil {
		return nil, fmt.Errorf("failed to persist seed: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit registration: %w", err)
	}
	return p, nil
}

func (s *tournamentService) Start(ctx context.Context, id, currentUserID int) error {
	ctrl, err := s.controllerChecked(ctx, id, currentUserID)
	if err != nil {
		return err
	}
	if err := ctrl.LockAndStart(ctx); err != nil {
		return err
	}
	if err := s.tournamentRepo.UpdateStatus(ctx, nil, id, models.TournamentInProgress, nil); err != nil {
		s.logger.Error("failed to persist in_progress status", slog.Int("tournament_id", id), slog.Any("error", err))
	}
	return nil
}

func (s *tournamentService) Cancel(ctx context.Context, id, currentUserID int) error {
	ctrl, err := s.controllerChecked(ctx, id, currentUserID)
	if err != nil {
		return err
	}
	return ctrl.Cancel(ctx)
}

// GetByID отдаёт живой снимок активного турнира либо собирает завершённый
// из БД, параллельно загружая участников и матчи.
func (s *tournamentService) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	if ctrl, ok := s.Controller(id); ok {
		t := ctrl.Snapshot()
		s.attachLogoURL(t)
		return t, nil
	}

	t, err := s.tournamentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		participants, err := s.participantRepo.ListByTournament(gCtx, id)
		if err != nil {
			return err
		}
		t.Participants = make([]models.Participant, len(participants))
		for i, p := range participants {
			t.Participants[i] = *p
		}
		return nil
	})

	g.Go(func() error {
		matches, err := s.matchRepo.ListByTournament(gCtx, id)
		if err != nil {
			return err
		}
		t.Matches = make([]models.Match, len(matches))
		for i, m := range matches {
			rounds, err := s.roundRepo.ListByMatch(gCtx, m.ID)
			if err != nil {
				return err
			}
			m.Rounds = rounds
			t.Matches[i] = *m
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to assemble tournament %d: %w", id, err)
	}
	s.attachLogoURL(t)
	return t, nil
}

func (s *tournamentService) List(ctx context.Context, filter repositories.ListTournamentsFilter) ([]*models.Tournament, error) {
	list, err := s.tournamentRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	for _, t := range list {
		// Активные турниры живут в памяти: статус в БД может отставать.
		if ctrl, ok := s.Controller(t.ID); ok {
			t.Status = ctrl.Status()
		}
		s.attachLogoURL(t)
	}
	return list, nil
}

func (s *tournamentService) BracketJSON(ctx context.Context, id int) (json.RawMessage, error) {
	ctrl, ok := s.Controller(id)
	if !ok {
		return nil, ErrTournamentNotFound
	}
	return ctrl.BracketJSON()
}

func (s *tournamentService) UploadLogo(ctx context.Context, id, currentUserID int, file io.Reader, size int64, contentType string) (*models.Tournament, error) {
	if s.uploader == nil {
		return nil, ErrValidationFailed
	}
	t, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkOrganizer(ctx, t, currentUserID); err != nil {
		return nil, err
	}

	key, err := s.uploader.Upload(ctx, storage.UploadParams{
		Prefix:      fmt.Sprintf("tournaments/%d/logo", id),
		Body:        file,
		Size:        size,
		ContentType: contentType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload logo: %w", err)
	}
	if err := s.tournamentRepo.UpdateLogoKey(ctx, id, &key); err != nil {
		return nil, err
	}
	t.LogoKey = &key
	s.attachLogoURL(t)
	return t, nil
}

func (s *tournamentService) attachLogoURL(t *models.Tournament) {
	if s.uploader == nil || t.LogoKey == nil {
		return
	}
	url := s.uploader.PublicURL(*t.LogoKey)
	t.LogoURL = &url
}
