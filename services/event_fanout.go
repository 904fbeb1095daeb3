package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Dosada05/rps-arena/brackets"
	"github.com/Dosada05/rps-arena/models"
	"github.com/Dosada05/rps-arena/repositories"
	"github.com/Dosada05/rps-arena/tournament"
)

// eventFanout — коллаборатор уведомлений и персистентности: транслирует
// события ядра в websocket-комнату турнира и сохраняет снимки в БД.
// Контроллер публикует fire-and-forget из своей горутины, так что
// синхронные записи здесь не блокируют мутацию сетки.
type eventFanout struct {
	hub             *brackets.Hub
	tournamentRepo  repositories.TournamentRepository
	participantRepo repositories.ParticipantRepository
	matchRepo       repositories.MatchRepository
	roundRepo       repositories.RoundRepository
	logger          *slog.Logger
}

func NewEventFanout(
	hub *brackets.Hub,
	tournamentRepo repositories.TournamentRepository,
	participantRepo repositories.ParticipantRepository,
	matchRepo repositories.MatchRepository,
	roundRepo repositories.RoundRepository,
	logger *slog.Logger,
) tournament.Publisher {
	return &eventFanout{
		hub:             hub,
		tournamentRepo:  tournamentRepo,
		participantRepo: participantRepo,
		matchRepo:       matchRepo,
		roundRepo:       roundRepo,
		logger:          logger,
	}
}

func tournamentRoom(id int) string {
	return fmt.Sprintf("tournament_%d", id)
}

func (f *eventFanout) Publish(ctx context.Context, ev tournament.Event) {
	room := tournamentRoom(ev.TournamentID)
	f.hub.BroadcastToRoom(room, brackets.WebSocketMessage{
		Type:    string(ev.Type),
		Payload: ev,
		RoomID:  room,
	})

	switch ev.Type {
	case tournament.EventMatchScheduled, tournament.EventMatchCompleted:
		if ev.Match != nil {
			if err := f.matchRepo.Upsert(ctx, nil, ev.Match); err != nil {
				f.logger.Error("failed to persist match snapshot",
					slog.String("match_id", ev.Match.ID), slog.Any("error", err))
			}
		}
	case tournament.EventRoundResolved:
		if ev.Round != nil {
			round := *ev.Round
			if err := f.roundRepo.Create(ctx, nil, &round); err != nil {
				f.logger.Error("failed to persist round",
					slog.String("match_id", round.MatchID),
					slog.Int("number", round.Number), slog.Any("error", err))
			}
		}
	case tournament.EventTournamentCompleted, tournament.EventTournamentCancelled:
		if ev.Tournament != nil {
			f.persistTerminal(ctx, ev.Tournament)
		}
	}
}

func (f *eventFanout) persistTerminal(ctx context.Context, t *models.Tournament) {
	if err := f.tournamentRepo.UpdateStatus(ctx, nil, t.ID, t.Status, t.ChampionID); err != nil {
		f.logger.Error("failed to persist tournament status",
			slog.Int("tournament_id", t.ID), slog.Any("error", err))
	}
	for _, p := range t.Participants {
		if err := f.participantRepo.UpdateStatus(ctx, nil, p.ID, p.Status); err != nil {
			f.logger.Error("failed to persist participant status",
				slog.Int("participant_id", p.ID), slog.Any("error", err))
		}
	}
	for i := range t.Matches {
		if err := f.matchRepo.Upsert(ctx, nil, &t.Matches[i]); err != nil {
			f.logger.Error("failed to persist match snapshot",
				slog.String("match_id", t.Matches[i].ID), slog.Any("error", err))
		}
	}
}
