package engine

import (
	"sync"
	"time"

	"github.com/Dosada05/rps-arena/game"
	"github.com/Dosada05/rps-arena/models"
	"github.com/google/uuid"
)

// State — состояние конечного автомата матча.
type State string

const (
	StateAwaitingPlayers State = "awaiting_players"
	StateAwaitingMoves   State = "awaiting_moves"
	StateComplete        State = "complete"
	StateCancelled       State = "cancelled"
)

// Player — снимок участника с точки зрения матча (только чтение,
// статусы участников меняет контроллер турнира).
type Player struct {
	ID   int
	Name string
}

// RoundResult возвращается из SubmitMove, когда оба хода получены и раунд
// разрешён. Для ничьей Round.Outcome == RoundTie и счёт не меняется.
type RoundResult struct {
	Round        models.RoundOfPlay
	P1Wins       int
	P2Wins       int
	MatchOver    bool
	WinnerID     *int
	WonByForfeit bool
}

// Match — движок одного матча best-of-N. Все публичные методы безопасны
// для конкурентных вызовов: два участника могут отправить ходы почти
// одновременно, раунд при этом разрешится ровно один раз под mu.
// Матч не выполняет никакого I/O; persist/notify — забота вызывающего.
type Match struct {
	mu sync.Mutex

	id           string
	tournamentID *int
	slotUID      *string
	rules        *game.RuleSet
	bestOf       int

	p1 *Player
	p2 *Player

	pending map[int]game.Choice
	history []models.RoundOfPlay
	wins    map[int]int

	state        State
	winnerID     *int
	wonByForfeit bool

	createdAt   time.Time
	roundOpened time.Time
}

// Config описывает создаваемый матч. P2 может быть nil: матч остаётся в
// awaiting_players, пока второй игрок не присоединится (быстрые матчи).
type Config struct {
	TournamentID *int
	SlotUID      *string
	Rules        *game.RuleSet
	BestOf       int
	P1           *Player
	P2           *Player
}

func New(cfg Config) (*Match, error) {
	if cfg.BestOf < 1 || cfg.BestOf%2 == 0 {
		return nil, ErrInvalidBestOf
	}
	if cfg.Rules == nil || cfg.P1 == nil {
		return nil, ErrMatchNotReady
	}

	now := time.Now()
	m := &Match{
		id:           uuid.NewString(),
		tournamentID: cfg.TournamentID,
		slotUID:      cfg.SlotUID,
		rules:        cfg.Rules,
		bestOf:       cfg.BestOf,
		p1:           cfg.P1,
		p2:           cfg.P2,
		pending:      make(map[int]game.Choice, 2),
		wins:         make(map[int]int, 2),
		state:        StateAwaitingPlayers,
		createdAt:    now,
	}
	if m.p2 != nil {
		m.state = StateAwaitingMoves
		m.roundOpened = now
	}
	return m, nil
}

func (m *Match) ID() string { return m.id }

// NeededWins — число выигранных раундов для победы в матче: ceil(bestOf/2).
func (m *Match) NeededWins() int { return m.bestOf/2 + 1 }

// Join добавляет второго игрока в матч, ожидающий соперника.
func (m *Match) Join(p *Player) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateComplete:
		return ErrMatchAlreadyComplete
	case StateCancelled:
		return ErrMatchCancelled
	}
	if m.p2 != nil {
		return ErrMatchFull
	}
	if p.ID == m.p1.ID {
		return ErrInvalidParticipant
	}
	m.p2 = p
	m.state = StateAwaitingMoves
	m.roundOpened = time.Now()
	return nil
}

// SubmitMove регистрирует ход участника в текущем раунде. Если после этого
// оба хода получены, раунд разрешается синхронно: счёт обновляется (ничья не
// считается никому), запись добавляется в историю и либо открывается
// следующий раунд, либо матч завершается. Возвращает nil, nil, когда ход
// принят, но раунд ещё не разрешён.
func (m *Match) SubmitMove(participantID int, choice game.Choice) (*RoundResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateComplete:
		return nil, ErrMatchAlreadyComplete
	case StateCancelled:
		return nil, ErrMatchCancelled
	case StateAwaitingPlayers:
		return nil, ErrMatchNotReady
	}
	if participantID != m.p1.ID && participantID != m.p2.ID {
		return nil, ErrInvalidParticipant
	}
	if !m.rules.Valid(choice) {
		return nil, ErrUnknownChoice
	}
	if _, dup := m.pending[participantID]; dup {
		return nil, ErrDuplicateSubmission
	}

	m.pending[participantID] = choice
	if len(m.pending) < 2 {
		return nil, nil
	}
	return m.resolveRound(), nil
}

// resolveRound вызывается под mu, когда оба хода получены.
func (m *Match) resolveRound() *RoundResult {
	c1 := m.pending[m.p1.ID]
	c2 := m.pending[m.p2.ID]
	m.pending = make(map[int]game.Choice, 2)

	outcome := m.rules.Resolve(c1, c2)
	round := models.RoundOfPlay{
		MatchID:  m.id,
		Number:   len(m.history) + 1,
		P1Choice: string(c1),
		P2Choice: string(c2),
		Outcome:  models.RoundOutcome(outcome.String()),
		PlayedAt: time.Now(),
	}
	m.history = append(m.history, round)

	switch outcome {
	case game.OutcomeP1Wins:
		m.wins[m.p1.ID]++
	case game.OutcomeP2Wins:
		m.wins[m.p2.ID]++
	}
	// Ничья: счёт не трогаем, раунд переигрывается свежей записью.

	res := &RoundResult{
		Round:  round,
		P1Wins: m.wins[m.p1.ID],
		P2Wins: m.wins[m.p2.ID],
	}

	switch {
	case m.wins[m.p1.ID] >= m.NeededWins():
		m.complete(m.p1.ID, false)
	case m.wins[m.p2.ID] >= m.NeededWins():
		m.complete(m.p2.ID, false)
	default:
		// Тайм-аут на ход отсчитывается от открытия раунда: ничья открывает
		// новый раунд и, соответственно, новое окно на решение.
		m.roundOpened = time.Now()
	}

	if m.state == StateComplete {
		res.MatchOver = true
		winner := *m.winnerID
		res.WinnerID = &winner
	}
	return res
}

func (m *Match) complete(winnerID int, forfeit bool) {
	m.state = StateComplete
	m.winnerID = &winnerID
	m.wonByForfeit = forfeit
	m.pending = make(map[int]game.Choice, 2)
}

// Decided сообщает, набрал ли кто-то из участников нужное число раундов.
func (m *Match) Decided() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateComplete
}

// ForceForfeit немедленно завершает матч в пользу соперника участника,
// не уложившегося в окно на ход. Вызывается внешним планировщиком; сам
// движок тайм-аутов не применяет. Уже решённый матч сохраняет результат.
func (m *Match) ForceForfeit(participantID int) (*RoundResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateComplete:
		return nil, ErrMatchAlreadyComplete
	case StateCancelled:
		return nil, ErrMatchCancelled
	case StateAwaitingPlayers:
		return nil, ErrMatchNotReady
	}

	var winnerID int
	switch participantID {
	case m.p1.ID:
		winnerID = m.p2.ID
	case m.p2.ID:
		winnerID = m.p1.ID
	default:
		return nil, ErrInvalidParticipant
	}

	m.complete(winnerID, true)
	winner := winnerID
	return &RoundResult{
		P1Wins:       m.wins[m.p1.ID],
		P2Wins:       m.wins[m.p2.ID],
		MatchOver:    true,
		WinnerID:     &winner,
		WonByForfeit: true,
	}, nil
}

// Cancel переводит незавершённый матч в cancelled без победителя.
// Решённые матчи сохраняют результат для аудита.
func (m *Match) Cancel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateComplete || m.state == StateCancelled {
		return
	}
	m.state = StateCancelled
	m.pending = make(map[int]game.Choice, 2)
}

// Overdue возвращает участников, не отправивших ход в текущем раунде, если
// раунд открыт дольше window. Порядок: сначала P1, затем P2.
func (m *Match) Overdue(now time.Time, window time.Duration) []int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateAwaitingMoves {
		return nil
	}
	if now.Sub(m.roundOpened) < window {
		return nil
	}
	var out []int
	if _, ok := m.pending[m.p1.ID]; !ok {
		out = append(out, m.p1.ID)
	}
	if _, ok := m.pending[m.p2.ID]; !ok {
		out = append(out, m.p2.ID)
	}
	return out
}

// State возвращает текущее состояние автомата.
func (m *Match) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Snapshot возвращает плоскую сериализуемую копию матча вместе с историей
// раундов — форма, которую сохраняет внешний слой персистентности.
func (m *Match) Snapshot() models.Match {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := models.Match{
		ID:           m.id,
		TournamentID: m.tournamentID,
		SlotUID:      m.slotUID,
		BestOf:       m.bestOf,
		P1Name:       m.p1.Name,
		WonByForfeit: m.wonByForfeit,
		CreatedAt:    m.createdAt,
		Rounds:       append([]models.RoundOfPlay(nil), m.history...),
	}
	p1 := m.p1.ID
	snap.P1ID = &p1
	snap.P1Wins = m.wins[m.p1.ID]
	if m.p2 != nil {
		p2 := m.p2.ID
		snap.P2ID = &p2
		snap.P2Name = m.p2.Name
		snap.P2Wins = m.wins[m.p2.ID]
	}
	if m.winnerID != nil {
		w := *m.winnerID
		snap.WinnerID = &w
	}

	switch m.state {
	case StateAwaitingPlayers:
		snap.Status = models.MatchScheduled
	case StateAwaitingMoves:
		snap.Status = models.MatchAwaitingMoves
	case StateComplete:
		snap.Status = models.MatchResolved
	case StateCancelled:
		snap.Status = models.MatchCancelled
	}
	return snap
}

// Players возвращает пары участников матча (p2 может быть nil).
func (m *Match) Players() (*Player, *Player) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.p1, m.p2
}
