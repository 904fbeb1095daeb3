package tournament

import (
	"context"

	"github.com/Dosada05/rps-arena/models"
)

type EventType string

const (
	EventMatchScheduled      EventType = "MATCH_SCHEDULED"
	EventRoundResolved       EventType = "ROUND_RESOLVED"
	EventMatchCompleted      EventType = "MATCH_COMPLETED"
	EventTournamentCompleted EventType = "TOURNAMENT_COMPLETED"
	EventTournamentCancelled EventType = "TOURNAMENT_CANCELLED"
)

// Event — структурное уведомление коллаборатору. Все вложенные сущности —
// неизменяемые снимки: доставка и форматирование целиком на стороне
// получателя, ядро на неё не блокируется.
type Event struct {
	Type         EventType           `json:"type"`
	TournamentID int                 `json:"tournament_id"`
	Match        *models.Match       `json:"match,omitempty"`
	Round        *models.RoundOfPlay `json:"round,omitempty"`
	Tournament   *models.Tournament  `json:"tournament,omitempty"`
	ChampionID   *int                `json:"champion_id,omitempty"`
}

// Publisher — граница с коллаборатором уведомлений. Publish вызывается
// fire-and-forget: реализация не должна блокировать надолго и не должна
// возвращать ошибки в ядро.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// NopPublisher — заглушка для тестов и турниров без подписчиков.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) {}
