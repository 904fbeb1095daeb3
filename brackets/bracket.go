package brackets

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/Dosada05/rps-arena/models"
)

var (
	ErrInsufficientParticipants = errors.New("not enough participants to generate a bracket (minimum 2)")
	ErrUnsupportedMode          = errors.New("unsupported bracket mode")
	ErrUnknownSlot              = errors.New("slot does not belong to this bracket")
	ErrSlotAlreadyResolved      = errors.New("slot already has a winner")
	ErrWinnerNotInSlot          = errors.New("winner is not a participant of this slot")
	// ErrSlotConflict — нарушение инварианта: в позицию слота попадает второй
	// участник. При корректном использовании не возникает; контроллер
	// переводит турнир в corrupted.
	ErrSlotConflict = errors.New("slot position is already occupied")
)

// Side — половина сетки, к которой относится слот.
type Side string

const (
	SideWinners    Side = "winners"
	SideLosers     Side = "losers"
	SideGrandFinal Side = "grand_final"
)

// FinalStage — явное тегированное состояние гранд-финала double elimination.
// Отдельные варианты вместо булевых флагов, чтобы ветвление single/double
// было исчерпывающим.
type FinalStage string

const (
	FinalStageNone          FinalStage = "none"
	FinalStagePending       FinalStage = "pending"
	FinalStageResetRequired FinalStage = "reset_required"
	FinalStageDecided       FinalStage = "decided"
)

// Slot — позиция в раунде сетки: до двух участников и победитель после
// разрешения. Слот с одним участником и пустой второй позицией, которая
// гарантированно не заполнится — бай: разрешается сразу, матч не создаётся.
type Slot struct {
	UID    string `json:"uid"`
	Side   Side   `json:"side"`
	Round  int    `json:"round"` // с 1
	Index  int    `json:"index"` // с 0 внутри раунда
	P1     *int   `json:"p1,omitempty"`
	P2     *int   `json:"p2,omitempty"`
	Winner *int   `json:"winner,omitempty"`
	Bye    bool   `json:"bye,omitempty"`

	// Позиция, которую бай в фидере никогда не заполнит.
	voidP1 bool
	voidP2 bool
	// Счётчик заполненных позиций. Атомарный CAS-переход "оба фидера на
	// месте" случается ровно один раз, даже если соседние матчи
	// разрешаются конкурентно.
	fills int32
}

func (s *Slot) voidCount() int32 {
	var n int32
	if s.voidP1 {
		n++
	}
	if s.voidP2 {
		n++
	}
	return n
}

// Has сообщает, занимает ли участник одну из позиций слота.
func (s *Slot) Has(pid int) bool {
	return (s.P1 != nil && *s.P1 == pid) || (s.P2 != nil && *s.P2 == pid)
}

// Opponent возвращает соперника участника в слоте, если оба на месте.
func (s *Slot) Opponent(pid int) *int {
	switch {
	case s.P1 != nil && *s.P1 == pid:
		return s.P2
	case s.P2 != nil && *s.P2 == pid:
		return s.P1
	}
	return nil
}

type placeEvent int

const (
	placeNone placeEvent = iota
	// placeReady: обе позиции заняты, слоту нужен матч.
	placeReady
	// placeAuto: единственная достижимая позиция занята, участник проходит
	// дальше без матча (бай на стороне проигравших).
	placeAuto
)

// place занимает позицию слота и сообщает переход состояния заполнения.
func (s *Slot) place(pos int, pid int) (placeEvent, error) {
	switch pos {
	case 0:
		if s.voidP1 {
			return placeNone, fmt.Errorf("%w: %s position 1 is void", ErrSlotConflict, s.UID)
		}
		if s.P1 != nil {
			return placeNone, fmt.Errorf("%w: %s position 1", ErrSlotConflict, s.UID)
		}
		s.P1 = &pid
	case 1:
		if s.voidP2 {
			return placeNone, fmt.Errorf("%w: %s position 2 is void", ErrSlotConflict, s.UID)
		}
		if s.P2 != nil {
			return placeNone, fmt.Errorf("%w: %s position 2", ErrSlotConflict, s.UID)
		}
		s.P2 = &pid
	default:
		return placeNone, fmt.Errorf("%w: %s position %d", ErrSlotConflict, s.UID, pos)
	}

	need := 2 - s.voidCount()
	if atomic.AddInt32(&s.fills, 1) != need {
		return placeNone, nil
	}
	if s.voidCount() > 0 {
		return placeAuto, nil
	}
	return placeReady, nil
}

// lone возвращает единственного участника слота (для placeAuto).
func (s *Slot) lone() int {
	if s.P1 != nil {
		return *s.P1
	}
	return *s.P2
}

// Bracket — структура сетки: упорядоченные раунды слотов по сторонам.
// Структура неизменна после генерации, слоты заполняются по мере
// разрешения матчей. Для single elimination Losers и GrandFinal пусты.
type Bracket struct {
	Mode       models.BracketMode `json:"mode"`
	TargetSize int                `json:"target_size"`
	Winners    [][]*Slot          `json:"winners"`
	Losers     [][]*Slot          `json:"losers,omitempty"`
	GrandFinal []*Slot            `json:"grand_final,omitempty"`
	FinalStage FinalStage         `json:"final_stage,omitempty"`

	slots map[string]*Slot
	// seed по участнику, нужен round robin для тай-брейка.
	seeds map[int]int
	// счёт побед для round robin.
	rrWins map[int]int
}

func newBracket(mode models.BracketMode, targetSize int) *Bracket {
	return &Bracket{
		Mode:       mode,
		TargetSize: targetSize,
		FinalStage: FinalStageNone,
		slots:      make(map[string]*Slot),
		seeds:      make(map[int]int),
		rrWins:     make(map[int]int),
	}
}

func (b *Bracket) register(s *Slot) *Slot {
	b.slots[s.UID] = s
	return s
}

// Slot возвращает слот по UID.
func (b *Bracket) Slot(uid string) (*Slot, bool) {
	s, ok := b.slots[uid]
	return s, ok
}

// AllSlots возвращает слоты в порядке: winners по раундам, losers, гранд-финал.
func (b *Bracket) AllSlots() []*Slot {
	out := make([]*Slot, 0, len(b.slots))
	for _, round := range b.Winners {
		out = append(out, round...)
	}
	for _, round := range b.Losers {
		out = append(out, round...)
	}
	out = append(out, b.GrandFinal...)
	return out
}

// PendingSlots — слоты с двумя участниками и без победителя: для каждого
// контроллер должен держать матч.
func (b *Bracket) PendingSlots() []*Slot {
	var out []*Slot
	for _, s := range b.AllSlots() {
		if s.P1 != nil && s.P2 != nil && s.Winner == nil {
			out = append(out, s)
		}
	}
	return out
}

// AdvanceResult — эффект записи победителя в слот.
type AdvanceResult struct {
	// Слоты, которые только что получили обоих участников: по каждому нужно
	// создать движок матча. Гонка соседних разрешений исключена CAS-ом слота.
	Ready []*Slot
	// Участники, выбывшие этим результатом.
	Eliminated []int
	// Турнир завершён, ChampionID определён.
	Complete   bool
	ChampionID *int
	// Double elimination: представитель нижней сетки взял первый гранд-финал,
	// назначен решающий матч (bracket reset).
	BracketReset bool
}

// Generator — интерфейс возможностей режима сетки: генерация структуры и
// специфичное для режима продвижение победителей. Выбирается один раз при
// создании турнира.
type Generator interface {
	Mode() models.BracketMode
	MinParticipants() int
	// Generate строит стартовую структуру из списка, упорядоченного по seed.
	Generate(participants []*models.Participant) (*Bracket, error)
	// Advance записывает победителя слота и продвигает сетку.
	Advance(b *Bracket, slot *Slot, winnerID int) (*AdvanceResult, error)
}

// ForMode возвращает генератор режима.
func ForMode(mode models.BracketMode) (Generator, error) {
	switch mode {
	case models.ModeSingleElimination:
		return NewSingleEliminationGenerator(), nil
	case models.ModeDoubleElimination:
		return NewDoubleEliminationGenerator(), nil
	case models.ModeRoundRobin:
		return NewRoundRobinGenerator(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMode, mode)
	}
}

// nextPowerOfTwo возвращает ближайшую степень двойки >= n.
func nextPowerOfTwo(n int) int {
	size := 1
	for size < n {
		size <<= 1
	}
	return size
}

// numRounds — log2(targetSize).
func numRounds(targetSize int) int {
	r := 0
	for s := targetSize; s > 1; s >>= 1 {
		r++
	}
	return r
}

// seedOrder раскладывает номера посева 1..size по позициям первого раунда
// стандартным турнирным посевом: соседние пары дают 1 против size,
// 2 против size-1 и т.д., а фавориты встречаются не раньше поздних раундов.
// Для size=8: [1 8 4 5 2 7 3 6].
func seedOrder(size int) []int {
	order := []int{1}
	for len(order) < size {
		next := make([]int, 0, len(order)*2)
		m := len(order)*2 + 1
		for _, s := range order {
			next = append(next, s, m-s)
		}
		order = next
	}
	return order
}

func slotUID(side Side, round, index int) string {
	switch side {
	case SideWinners:
		return fmt.Sprintf("W-R%d-S%d", round, index)
	case SideLosers:
		return fmt.Sprintf("L-R%d-S%d", round, index)
	default:
		return fmt.Sprintf("GF-%d", round)
	}
}

// validateForGeneration проверяет вход генератора и возвращает участников,
// отсортированных по seed (1 — сильнейший).
func validateForGeneration(participants []*models.Participant, min int) ([]*models.Participant, error) {
	if len(participants) < min {
		return nil, fmt.Errorf("%w: got %d", ErrInsufficientParticipants, len(participants))
	}
	sorted := make([]*models.Participant, len(participants))
	copy(sorted, participants)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1].Seed > sorted[j].Seed; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	return sorted, nil
}
