package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Dosada05/rps-arena/engine"
	"github.com/Dosada05/rps-arena/game"
	"github.com/Dosada05/rps-arena/models"
	"github.com/Dosada05/rps-arena/repositories"
)

type CreateQuickMatchInput struct {
	DisplayName string `json:"display_name"`
	ChoiceSet   string `json:"choice_set"`
	BestOf      int    `json:"best_of"`
}

// MatchService объединяет два вида матчей: быстрые (вне турниров, по
// приглашению, как /play в оригинальном боте) и турнирные, которыми владеют
// контроллеры. Турнирные матчи сервис не хранит — только маршрутизирует.
type MatchService interface {
	CreateQuick(ctx context.Context, userID int, input CreateQuickMatchInput) (*models.Match, error)
	JoinQuick(ctx context.Context, matchID string, userID int, displayName string) (*models.Match, error)

	// SubmitMove и Forfeit действуют от имени аутентифицированного
	// пользователя. participantID обязателен только там, где участник
	// турнира не привязан к вызывающему однозначно; заявленный участник
	// всегда сверяется с владельцем (participants.user_id).
	SubmitMove(ctx context.Context, matchID string, userID, participantID int, choice game.Choice) (*engine.RoundResult, error)
	Forfeit(ctx context.Context, matchID string, userID, participantID int) (*engine.RoundResult, error)
	GetMatch(ctx context.Context, matchID string) (*models.Match, error)
	GetStats(ctx context.Context, userID int) (*models.PlayerStats, error)

	// ForfeitOverdueMoves — один проход планировщика тайм-аутов по всем
	// активным матчам. Возвращает число применённых форфейтов.
	ForfeitOverdueMoves(ctx context.Context) int
}

type matchService struct {
	tournaments     TournamentService
	matchRepo       repositories.MatchRepository
	roundRepo       repositories.RoundRepository
	statsRepo       repositories.StatsRepository
	participantRepo repositories.ParticipantRepository
	moveWindow      time.Duration
	logger          *slog.Logger

	mu    sync.RWMutex
	quick map[string]*engine.Match
}

func NewMatchService(
	tournaments TournamentService,
	matchRepo repositories.MatchRepository,
	roundRepo repositories.RoundRepository,
	statsRepo repositories.StatsRepository,
	participantRepo repositories.ParticipantRepository,
	moveWindow time.Duration,
	logger *slog.Logger,
) MatchService {
	return &matchService{
		tournaments:     tournaments,
		matchRepo:       matchRepo,
		roundRepo:       roundRepo,
		statsRepo:       statsRepo,
		participantRepo: participantRepo,
		moveWindow:      moveWindow,
		logger:          logger,
		quick:           make(map[string]*engine.Match),
	}
}

func (s *matchService) CreateQuick(ctx context.Context, userID int, input CreateQuickMatchInput) (*models.Match, error) {
	name := strings.TrimSpace(input.DisplayName)
	if name == "" {
		return nil, ErrNameRequired
	}
	if input.BestOf == 0 {
		input.BestOf = 1
	}
	rules, err := game.ByName(input.ChoiceSet)
	if err != nil {
		return nil, ErrInvalidChoiceSet
	}

	m, err := engine.New(engine.Config{
		Rules:  rules,
		BestOf: input.BestOf,
		P1:     &engine.Player{ID: userID, Name: name},
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.quick[m.ID()] = m
	s.mu.Unlock()

	snap := m.Snapshot()
	if err := s.matchRepo.Upsert(ctx, nil, &snap); err != nil {
		s.logger.Error("failed to persist quick match", slog.String("match_id", snap.ID), slog.Any("error", err))
	}
	return &snap, nil
}

func (s *matchService) JoinQuick(ctx context.Context, matchID string, userID int, displayName string) (*models.Match, error) {
	name := strings.TrimSpace(displayName)
	if name == "" {
		return nil, ErrNameRequired
	}
	m, ok := s.quickMatch(matchID)
	if !ok {
		return nil, ErrMatchNotFound
	}
	if err := m.Join(&engine.Player{ID: userID, Name: name}); err != nil {
		return nil, err
	}
	snap := m.Snapshot()
	if err := s.matchRepo.Upsert(ctx, nil, &snap); err != nil {
		s.logger.Error("failed to persist quick match", slog.String("match_id", snap.ID), slog.Any("error", err))
	}
	return &snap, nil
}

func (s *matchService) quickMatch(matchID string) (*engine.Match, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.quick[matchID]
	return m, ok
}

func (s *matchService) SubmitMove(ctx context.Context, matchID string, userID, participantID int, choice game.Choice) (*engine.RoundResult, error) {
	if m, ok := s.quickMatch(matchID); ok {
		// В быстром матче участник и есть пользователь: чужой
		// participant_id подменой хода не становится.
		if participantID > 0 && participantID != userID {
			return nil, ErrForbiddenOperation
		}
		res, err := m.SubmitMove(userID, choice)
		if err != nil {
			return nil, err
		}
		if res != nil {
			s.afterQuickRound(ctx, m, res)
		}
		return res, nil
	}

	// Турнирный матч: контроллер публикует события и двигает сетку сам.
	for _, ctrl := range s.tournaments.ActiveControllers() {
		m, err := ctrl.Match(matchID)
		if err != nil {
			continue // tournament.ErrUnknownMatch — матч в другом контроллере
		}
		actorID, err := s.tournamentActor(ctx, m, userID, participantID)
		if err != nil {
			return nil, err
		}
		return ctrl.SubmitMove(ctx, matchID, actorID, choice)
	}
	return nil, ErrMatchNotFound
}

func (s *matchService) Forfeit(ctx context.Context, matchID string, userID, participantID int) (*engine.RoundResult, error) {
	if m, ok := s.quickMatch(matchID); ok {
		if participantID > 0 && participantID != userID {
			return nil, ErrForbiddenOperation
		}
		res, err := m.ForceForfeit(userID)
		if err != nil {
			return nil, err
		}
		s.afterQuickRound(ctx, m, res)
		return res, nil
	}
	for _, ctrl := range s.tournaments.ActiveControllers() {
		m, err := ctrl.Match(matchID)
		if err != nil {
			continue
		}
		actorID, err := s.tournamentActor(ctx, m, userID, participantID)
		if err != nil {
			return nil, err
		}
		return ctrl.ForceForfeit(ctx, matchID, actorID)
	}
	return nil, ErrMatchNotFound
}

// tournamentActor проверяет, что вызывающий пользователь владеет участником,
// от имени которого идёт действие. Заявленный participant_id принимается
// только для участника этого матча, привязанного к пользователю; без
// participant_id участник вызывающего ищется среди игроков матча.
func (s *matchService) tournamentActor(ctx context.Context, m *engine.Match, userID, participantID int) (int, error) {
	p1, p2 := m.Players()

	if participantID > 0 {
		if (p1 == nil || p1.ID != participantID) && (p2 == nil || p2.ID != participantID) {
			return 0, engine.ErrInvalidParticipant
		}
		p, err := s.participantRepo.GetByID(ctx, participantID)
		if err != nil {
			if errors.Is(err, repositories.ErrParticipantNotFound) {
				return 0, ErrForbiddenOperation
			}
			return 0, err
		}
		if p.UserID == nil || *p.UserID != userID {
			return 0, ErrForbiddenOperation
		}
		return participantID, nil
	}

	for _, pl := range []*engine.Player{p1, p2} {
		if pl == nil {
			continue
		}
		p, err := s.participantRepo.GetByID(ctx, pl.ID)
		if err != nil {
			continue
		}
		if p.UserID != nil && *p.UserID == userID {
			return pl.ID, nil
		}
	}
	return 0, ErrForbiddenOperation
}

func (s *matchService) GetMatch(ctx context.Context, matchID string) (*models.Match, error) {
	if m, ok := s.quickMatch(matchID); ok {
		snap := m.Snapshot()
		return &snap, nil
	}
	for _, ctrl := range s.tournaments.ActiveControllers() {
		if m, err := ctrl.Match(matchID); err == nil {
			snap := m.Snapshot()
			return &snap, nil
		}
	}

	m, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	rounds, err := s.roundRepo.ListByMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	m.Rounds = rounds
	return m, nil
}

func (s *matchService) GetStats(ctx context.Context, userID int) (*models.PlayerStats, error) {
	return s.statsRepo.GetByUser(ctx, userID)
}

// afterQuickRound сохраняет раунд и, когда матч решён, финальный снимок и
// статистику обоих игроков. Статистика ведётся только по быстрым матчам:
// там ID участника и есть ID пользователя.
func (s *matchService) afterQuickRound(ctx context.Context, m *engine.Match, res *engine.RoundResult) {
	if res.Round.MatchID != "" {
		round := res.Round
		if err := s.roundRepo.Create(ctx, nil, &round); err != nil {
			s.logger.Error("failed to persist round", slog.String("match_id", m.ID()), slog.Any("error", err))
		}
	}
	if !res.MatchOver {
		return
	}

	snap := m.Snapshot()
	if err := s.matchRepo.Upsert(ctx, nil, &snap); err != nil {
		s.logger.Error("failed to persist quick match", slog.String("match_id", snap.ID), slog.Any("error", err))
	}
	s.recordStats(ctx, &snap)

	s.mu.Lock()
	delete(s.quick, m.ID())
	s.mu.Unlock()
}

func (s *matchService) recordStats(ctx context.Context, snap *models.Match) {
	if snap.P1ID == nil || snap.P2ID == nil || snap.WinnerID == nil {
		return
	}
	var p1Rounds, p2Rounds, tied int
	for _, r := range snap.Rounds {
		switch r.Outcome {
		case models.RoundP1Wins:
			p1Rounds++
		case models.RoundP2Wins:
			p2Rounds++
		case models.RoundTie:
			tied++
		}
	}
	winner := *snap.WinnerID
	if err := s.statsRepo.Record(ctx, *snap.P1ID, winner == *snap.P1ID, p1Rounds, p2Rounds, tied); err != nil {
		s.logger.Error("failed to record stats", slog.Int("user_id", *snap.P1ID), slog.Any("error", err))
	}
	if err := s.statsRepo.Record(ctx, *snap.P2ID, winner == *snap.P2ID, p2Rounds, p1Rounds, tied); err != nil {
		s.logger.Error("failed to record stats", slog.Int("user_id", *snap.P2ID), slog.Any("error", err))
	}
}

func (s *matchService) ForfeitOverdueMoves(ctx context.Context) int {
	now := time.Now()
	count := 0

	for _, ctrl := range s.tournaments.ActiveControllers() {
		count += ctrl.ForfeitOverdue(ctx, now, s.moveWindow)
	}

	s.mu.RLock()
	running := make([]*engine.Match, 0, len(s.quick))
	for _, m := range s.quick {
		running = append(running, m)
	}
	s.mu.RUnlock()

	for _, m := range running {
		// Быстрый матч, к которому соперник так и не присоединился,
		// истекает по тому же окну, что и ход: иначе он живёт вечно.
		if m.State() == engine.StateAwaitingPlayers {
			snap := m.Snapshot()
			if now.Sub(snap.CreatedAt) < s.moveWindow {
				continue
			}
			m.Cancel()
			expired := m.Snapshot()
			if err := s.matchRepo.Upsert(ctx, nil, &expired); err != nil {
				s.logger.Error("failed to persist expired quick match",
					slog.String("match_id", expired.ID), slog.Any("error", err))
			}
			s.mu.Lock()
			delete(s.quick, m.ID())
			s.mu.Unlock()
			s.logger.Info("unjoined quick match expired", slog.String("match_id", m.ID()))
			continue
		}

		overdue := m.Overdue(now, s.moveWindow)
		if len(overdue) == 0 {
			continue
		}
		// В быстром матче при обоюдной просрочке форфейтится создатель.
		victim := overdue[len(overdue)-1]
		if len(overdue) == 2 {
			victim = overdue[0]
		}
		res, err := m.ForceForfeit(victim)
		if err != nil {
			continue
		}
		s.afterQuickRound(ctx, m, res)
		count++
		s.logger.Info("quick match forfeited on timeout",
			slog.String("match_id", m.ID()), slog.Int("user_id", victim))
	}
	return count
}
