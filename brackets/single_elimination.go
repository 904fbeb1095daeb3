package brackets

import (
	"fmt"

	"github.com/Dosada05/rps-arena/models"
)

type SingleEliminationGenerator struct{}

func NewSingleEliminationGenerator() *SingleEliminationGenerator {
	return &SingleEliminationGenerator{}
}

func (g *SingleEliminationGenerator) Mode() models.BracketMode {
	return models.ModeSingleElimination
}

func (g *SingleEliminationGenerator) MinParticipants() int { return 2 }

// Generate строит сетку single elimination: размер — ближайшая степень
// двойки, баи достаются верхним номерам посева и разрешаются без матча,
// раунды 2..log2(size) создаются пустыми и заполняются по мере результатов.
func (g *SingleEliminationGenerator) Generate(participants []*models.Participant) (*Bracket, error) {
	sorted, err := validateForGeneration(participants, g.MinParticipants())
	if err != nil {
		return nil, err
	}

	targetSize := nextPowerOfTwo(len(sorted))
	b := newBracket(models.ModeSingleElimination, targetSize)
	if _, err := buildWinnersRounds(b, sorted, targetSize); err != nil {
		return nil, err
	}
	return b, nil
}

// buildWinnersRounds наполняет b.Winners посевом первого раунда и пустыми
// поздними раундами; баи продвигаются сразу. Общая часть single и double
// elimination. Возвращает индексы слотов первого раунда, оказавшихся баями.
func buildWinnersRounds(b *Bracket, sorted []*models.Participant, targetSize int) ([]int, error) {
	n := len(sorted)
	rounds := numRounds(targetSize)

	b.Winners = make([][]*Slot, rounds)
	for r := 1; r <= rounds; r++ {
		count := targetSize >> r
		b.Winners[r-1] = make([]*Slot, count)
		for i := 0; i < count; i++ {
			b.Winners[r-1][i] = b.register(&Slot{
				UID:   slotUID(SideWinners, r, i),
				Side:  SideWinners,
				Round: r,
				Index: i,
			})
		}
	}

	for _, p := range sorted {
		b.seeds[p.ID] = p.Seed
	}

	// Номера посева по позициям: соседние пары — матчи первого раунда.
	// Номер больше n — бай; баи достаются сильнейшим, потому что в паре
	// стандартного посева сумма номеров равна targetSize+1.
	order := seedOrder(targetSize)
	var byeSlots []int

	for i := 0; i < targetSize/2; i++ {
		slot := b.Winners[0][i]
		sa, sb := order[2*i], order[2*i+1]

		switch {
		case sa <= n && sb <= n:
			pa, pb := sorted[sa-1].ID, sorted[sb-1].ID
			slot.P1 = &pa
			slot.P2 = &pb
			slot.fills = 2
		case sa <= n:
			pid := sorted[sa-1].ID
			slot.P1 = &pid
			slot.voidP2 = true
			slot.fills = 1
			slot.Bye = true
			slot.Winner = &pid
			byeSlots = append(byeSlots, i)
		case sb <= n:
			pid := sorted[sb-1].ID
			slot.P1 = &pid
			slot.voidP2 = true
			slot.fills = 1
			slot.Bye = true
			slot.Winner = &pid
			byeSlots = append(byeSlots, i)
		default:
			// Два бая в одной паре невозможны: сумма номеров пары равна
			// targetSize+1, а targetSize < 2n.
			return nil, fmt.Errorf("%w: %s paired two byes", ErrSlotConflict, slot.UID)
		}
	}

	// Продвигаем баи во второй раунд.
	if rounds > 1 {
		for _, i := range byeSlots {
			slot := b.Winners[0][i]
			parent := b.Winners[1][i/2]
			if _, err := parent.place(i%2, *slot.Winner); err != nil {
				return nil, err
			}
		}
	}
	return byeSlots, nil
}

// Advance записывает победителя и продвигает его в родительский слот
// (index/2). Возвращает слоты, получившие обоих участников, и факт
// завершения турнира.
func (g *SingleEliminationGenerator) Advance(b *Bracket, slot *Slot, winnerID int) (*AdvanceResult, error) {
	if err := checkAdvance(b, slot, winnerID); err != nil {
		return nil, err
	}

	res := &AdvanceResult{}
	slot.Winner = &winnerID
	if opp := slot.Opponent(winnerID); opp != nil {
		res.Eliminated = append(res.Eliminated, *opp)
	}

	finalRound := len(b.Winners)
	if slot.Round == finalRound {
		res.Complete = true
		res.ChampionID = &winnerID
		return res, nil
	}

	parent := b.Winners[slot.Round][slot.Index/2]
	ev, err := parent.place(slot.Index%2, winnerID)
	if err != nil {
		return nil, err
	}
	switch ev {
	case placeReady:
		res.Ready = append(res.Ready, parent)
	case placeAuto:
		sub, err := g.Advance(b, parent, parent.lone())
		if err != nil {
			return nil, err
		}
		res.merge(sub)
	}
	return res, nil
}

// checkAdvance — общая валидация записи победителя в слот.
func checkAdvance(b *Bracket, slot *Slot, winnerID int) error {
	registered, ok := b.Slot(slot.UID)
	if !ok || registered != slot {
		return ErrUnknownSlot
	}
	if slot.Winner != nil {
		return fmt.Errorf("%w: %s", ErrSlotAlreadyResolved, slot.UID)
	}
	if !slot.Has(winnerID) {
		return fmt.Errorf("%w: participant %d in %s", ErrWinnerNotInSlot, winnerID, slot.UID)
	}
	return nil
}

func (r *AdvanceResult) merge(other *AdvanceResult) {
	r.Ready = append(r.Ready, other.Ready...)
	r.Eliminated = append(r.Eliminated, other.Eliminated...)
	if other.Complete {
		r.Complete = true
		r.ChampionID = other.ChampionID
	}
	if other.BracketReset {
		r.BracketReset = true
	}
}
