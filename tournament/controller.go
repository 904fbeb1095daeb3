package tournament

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Dosada05/rps-arena/brackets"
	"github.com/Dosada05/rps-arena/engine"
	"github.com/Dosada05/rps-arena/game"
	"github.com/Dosada05/rps-arena/models"
)

// Controller владеет жизненным циклом одного турнира: сеткой, слотами и
// движками матчей. Мутации сетки сериализуются mu (одна блокировка на
// турнир — независимые турниры идут полностью параллельно), ходы внутри
// матча сериализует собственный мьютекс движка. Контроллер — единственный,
// кто меняет статусы участников.
type Controller struct {
	mu sync.Mutex

	logger     *slog.Logger
	publisher  Publisher
	onTerminal func(*models.Tournament)
	rules      *game.RuleSet
	gen        brackets.Generator

	t            *models.Tournament
	participants []*models.Participant
	byID         map[int]*models.Participant

	bracket *brackets.Bracket
	engines map[string]*engine.Match // по ID матча
	bySlot  map[string]*engine.Match // по UID слота
}

type Config struct {
	Tournament *models.Tournament
	Publisher  Publisher
	Logger     *slog.Logger

	// OnTerminal вызывается один раз, когда турнир достигает конечного
	// статуса (completed/cancelled/corrupted), с финальным снимком.
	// Владелец контроллера освобождает по нему свои ссылки.
	OnTerminal func(*models.Tournament)
}

func New(cfg Config) (*Controller, error) {
	t := cfg.Tournament
	if t == nil {
		return nil, fmt.Errorf("tournament is required")
	}
	if t.BestOf < 1 || t.BestOf%2 == 0 {
		return nil, engine.ErrInvalidBestOf
	}
	gen, err := brackets.ForMode(t.Mode)
	if err != nil {
		return nil, err
	}
	rules, err := game.ByName(t.ChoiceSet)
	if err != nil {
		return nil, err
	}

	pub := cfg.Publisher
	if pub == nil {
		pub = NopPublisher{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if t.Status == "" {
		t.Status = models.TournamentCreated
	}

	return &Controller{
		logger:     logger.With(slog.Int("tournament_id", t.ID)),
		publisher:  pub,
		onTerminal: cfg.OnTerminal,
		rules:      rules,
		gen:        gen,
		t:         t,
		byID:      make(map[int]*models.Participant),
		engines:   make(map[string]*engine.Match),
		bySlot:    make(map[string]*engine.Match),
	}, nil
}

func (c *Controller) ID() int { return c.t.ID }

// Status возвращает текущий статус турнира.
func (c *Controller) Status() models.TournamentStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t.Status
}

// OpenRegistration переводит created → registration.
func (c *Controller) OpenRegistration() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.t.Status != models.TournamentCreated {
		return fmt.Errorf("%w: %s", ErrInvalidStatusChange, c.t.Status)
	}
	c.t.Status = models.TournamentRegistration
	return nil
}

// Register регистрирует участника до фиксации сетки и возвращает его seed
// (порядок регистрации, 1 — первый).
func (c *Controller) Register(participantID int, displayName string) (*models.Participant, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.t.Status != models.TournamentRegistration {
		return nil, ErrRegistrationNotOpen
	}
	if _, dup := c.byID[participantID]; dup {
		return nil, ErrDuplicateParticipant
	}
	if c.t.MaxParticipants > 0 && len(c.participants) >= c.t.MaxParticipants {
		return nil, ErrTournamentFull
	}

	p := &models.Participant{
		ID:           participantID,
		TournamentID: c.t.ID,
		DisplayName:  displayName,
		Seed:         len(c.participants) + 1,
		Status:       models.ParticipantActive,
		CreatedAt:    time.Now(),
	}
	c.participants = append(c.participants, p)
	c.byID[p.ID] = p
	return p, nil
}

// LockAndStart фиксирует состав, генерирует сетку и создаёт движок матча
// для каждого слота первого раунда с двумя реальными участниками. Баи
// разрешаются генератором без матчей.
func (c *Controller) LockAndStart(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.t.Status != models.TournamentRegistration {
		return fmt.Errorf("%w: %s", ErrInvalidStatusChange, c.t.Status)
	}
	min := c.gen.MinParticipants()
	if c.t.MinParticipants > min {
		min = c.t.MinParticipants
	}
	if len(c.participants) < min {
		return fmt.Errorf("%w: have %d, need %d", ErrBelowMinimumPlayers, len(c.participants), min)
	}

	b, err := c.gen.Generate(c.participants)
	if err != nil {
		return err
	}
	c.bracket = b
	c.t.Status = models.TournamentBracketLocked

	for _, slot := range b.PendingSlots() {
		if err := c.spawnMatch(ctx, slot); err != nil {
			return c.corrupt(ctx, err)
		}
	}
	c.t.Status = models.TournamentInProgress
	c.logger.Info("tournament started",
		slog.String("mode", string(c.t.Mode)),
		slog.Int("participants", len(c.participants)),
		slog.Int("bracket_size", b.TargetSize),
		slog.Int("scheduled_matches", len(c.engines)))
	return nil
}

// spawnMatch вызывается под mu. Слот уже прошёл CAS "оба фидера на месте",
// так что двойного создания движка для одного слота быть не может.
func (c *Controller) spawnMatch(ctx context.Context, slot *brackets.Slot) error {
	p1, ok1 := c.byID[*slot.P1]
	p2, ok2 := c.byID[*slot.P2]
	if !ok1 || !ok2 {
		return fmt.Errorf("%w: slot %s references unknown participant", brackets.ErrSlotConflict, slot.UID)
	}

	uid := slot.UID
	m, err := engine.New(engine.Config{
		TournamentID: &c.t.ID,
		SlotUID:      &uid,
		Rules:        c.rules,
		BestOf:       c.t.BestOf,
		P1:           &engine.Player{ID: p1.ID, Name: p1.DisplayName},
		P2:           &engine.Player{ID: p2.ID, Name: p2.DisplayName},
	})
	if err != nil {
		return err
	}
	c.engines[m.ID()] = m
	c.bySlot[slot.UID] = m

	snap := m.Snapshot()
	c.publish(ctx, Event{
		Type:         EventMatchScheduled,
		TournamentID: c.t.ID,
		Match:        &snap,
	})
	return nil
}

// Match возвращает движок отслеживаемого матча.
func (c *Controller) Match(matchID string) (*engine.Match, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.engines[matchID]
	if !ok {
		return nil, ErrUnknownMatch
	}
	return m, nil
}

// SubmitMove передаёт ход движку матча. Мутация сетки (если матч этим ходом
// решился) выполняется после разрешения раунда; движок гарантирует, что
// MatchOver увидит ровно один вызывающий.
func (c *Controller) SubmitMove(ctx context.Context, matchID string, participantID int, choice game.Choice) (*engine.RoundResult, error) {
	m, err := c.Match(matchID)
	if err != nil {
		return nil, err
	}

	res, err := m.SubmitMove(participantID, choice)
	if err != nil {
		return nil, err
	}
	if res != nil {
		c.afterRound(ctx, m, res)
	}
	return res, nil
}

// ForceForfeit — крюк для внешнего планировщика тайм-аутов: немедленно
// завершает матч в пользу соперника не уложившегося в окно участника.
func (c *Controller) ForceForfeit(ctx context.Context, matchID string, participantID int) (*engine.RoundResult, error) {
	m, err := c.Match(matchID)
	if err != nil {
		return nil, err
	}
	res, err := m.ForceForfeit(participantID)
	if err != nil {
		return nil, err
	}
	c.afterRound(ctx, m, res)
	return res, nil
}

func (c *Controller) afterRound(ctx context.Context, m *engine.Match, res *engine.RoundResult) {
	if res.Round.MatchID != "" {
		round := res.Round
		c.publish(ctx, Event{
			Type:         EventRoundResolved,
			TournamentID: c.t.ID,
			Round:        &round,
		})
	}
	if res.MatchOver {
		snap := m.Snapshot()
		c.publish(ctx, Event{
			Type:         EventMatchCompleted,
			TournamentID: c.t.ID,
			Match:        &snap,
		})
		c.onMatchResolved(ctx, m, *res.WinnerID)
	}
}

// onMatchResolved записывает победителя в слот, продвигает сетку и создаёт
// движки для открывшихся слотов. Разрешения матчей-соседей, питающих один
// и тот же слот ниже по сетке, не могут создать два движка: заполнение
// слота атомарно, а вся мутация идёт под mu турнира.
func (c *Controller) onMatchResolved(ctx context.Context, m *engine.Match, winnerID int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.t.Terminal() {
		return
	}

	snap := m.Snapshot()
	if snap.SlotUID == nil {
		c.logger.Error("resolved match has no slot", slog.String("match_id", m.ID()))
		return
	}
	slot, ok := c.bracket.Slot(*snap.SlotUID)
	if !ok {
		_ = c.corrupt(ctx, fmt.Errorf("%w: %s", brackets.ErrUnknownSlot, *snap.SlotUID))
		return
	}

	adv, err := c.gen.Advance(c.bracket, slot, winnerID)
	if err != nil {
		_ = c.corrupt(ctx, err)
		return
	}

	for _, pid := range adv.Eliminated {
		if p, ok := c.byID[pid]; ok {
			p.Status = models.ParticipantEliminated
		}
	}
	for _, ready := range adv.Ready {
		if err := c.spawnMatch(ctx, ready); err != nil {
			_ = c.corrupt(ctx, err)
			return
		}
	}

	if adv.Complete {
		c.t.Status = models.TournamentCompleted
		c.t.ChampionID = adv.ChampionID
		if champ, ok := c.byID[*adv.ChampionID]; ok {
			champ.Status = models.ParticipantChampion
		}
		snapT := c.snapshotLocked()
		c.publish(ctx, Event{
			Type:         EventTournamentCompleted,
			TournamentID: c.t.ID,
			Tournament:   snapT,
			ChampionID:   adv.ChampionID,
		})
		c.notifyTerminal(snapT)
		c.logger.Info("tournament completed", slog.Int("champion_id", *adv.ChampionID))
	}
}

// Cancel переводит турнир из любого нетерминального статуса в cancelled и
// рассылает отмену всем незавершённым матчам. Решённые матчи сохраняют
// результаты для аудита.
func (c *Controller) Cancel(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.t.Terminal() {
		return ErrTournamentTerminal
	}
	c.t.Status = models.TournamentCancelled
	for _, m := range c.engines {
		m.Cancel()
	}
	snapT := c.snapshotLocked()
	c.publish(ctx, Event{
		Type:         EventTournamentCancelled,
		TournamentID: c.t.ID,
		Tournament:   snapT,
	})
	c.notifyTerminal(snapT)
	c.logger.Info("tournament cancelled")
	return nil
}

// corrupt вызывается под mu при нарушении инварианта: турнир помечается
// corrupted и больше не продвигается — условие всплывает вызывающему.
func (c *Controller) corrupt(ctx context.Context, cause error) error {
	c.t.Status = models.TournamentCorrupted
	for _, m := range c.engines {
		m.Cancel()
	}
	c.notifyTerminal(c.snapshotLocked())
	c.logger.Error("bracket invariant violated", slog.Any("error", cause))
	return fmt.Errorf("%w: %v", ErrBracketCorrupted, cause)
}

// notifyTerminal вызывается под mu; колбэк уходит в отдельной горутине,
// чтобы владелец мог безопасно трогать контроллер из него.
func (c *Controller) notifyTerminal(snap *models.Tournament) {
	if c.onTerminal == nil {
		return
	}
	go c.onTerminal(snap)
}

// ForfeitOverdue применяет форфейт к матчам, где участник не отправил ход в
// отведённое окно. Если просрочили оба, дальше проходит участник с лучшим
// посевом. Возвращает число форфейтов.
func (c *Controller) ForfeitOverdue(ctx context.Context, now time.Time, window time.Duration) int {
	c.mu.Lock()
	if c.t.Status != models.TournamentInProgress {
		c.mu.Unlock()
		return 0
	}
	running := make([]*engine.Match, 0, len(c.engines))
	for _, m := range c.engines {
		running = append(running, m)
	}
	c.mu.Unlock()

	count := 0
	for _, m := range running {
		overdue := m.Overdue(now, window)
		if len(overdue) == 0 {
			continue
		}
		victim := overdue[0]
		if len(overdue) == 2 {
			c.mu.Lock()
			s0, s1 := c.byID[overdue[0]].Seed, c.byID[overdue[1]].Seed
			c.mu.Unlock()
			if s0 < s1 {
				victim = overdue[1]
			}
		}
		if _, err := c.ForceForfeit(ctx, m.ID(), victim); err == nil {
			count++
			c.logger.Info("match forfeited on timeout",
				slog.String("match_id", m.ID()),
				slog.Int("participant_id", victim))
		}
	}
	return count
}

// Snapshot возвращает плоскую копию турнира с участниками и снимками всех
// матчей — форму для персистентности и HTTP-ответов.
func (c *Controller) Snapshot() *models.Tournament {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() *models.Tournament {
	t := *c.t
	t.Participants = make([]models.Participant, len(c.participants))
	for i, p := range c.participants {
		t.Participants[i] = *p
	}
	t.Matches = make([]models.Match, 0, len(c.engines))
	for _, m := range c.engines {
		t.Matches = append(t.Matches, m.Snapshot())
	}
	return &t
}

// BracketJSON сериализует текущее состояние сетки под блокировкой турнира.
func (c *Controller) BracketJSON() (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bracket == nil {
		return nil, ErrTournamentNotRunning
	}
	return json.Marshal(c.bracket)
}

// FinalStage — состояние гранд-финала (double elimination), FinalStageNone
// для остальных режимов.
func (c *Controller) FinalStage() brackets.FinalStage {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bracket == nil {
		return brackets.FinalStageNone
	}
	return c.bracket.FinalStage
}

// publish не должен блокировать мутацию сетки: уведомления уходят в
// отдельной горутине.
func (c *Controller) publish(ctx context.Context, ev Event) {
	go c.publisher.Publish(context.WithoutCancel(ctx), ev)
}
