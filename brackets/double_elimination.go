package brackets

import (
	"fmt"

	"github.com/Dosada05/rps-arena/models"
)

// DoubleEliminationGenerator строит зеркальную нижнюю сетку: каждый
// проигравший верхней сетки (кроме выбывающих из самой нижней) получает
// вторую жизнь, победители сеток сходятся в гранд-финале, а победа
// представителя нижней сетки в первом финале назначает решающий матч
// (bracket reset).
//
// Структура нижней сетки для размера 2^k — 2(k-1) раундов, которые
// чередуются: нечётный раунд сводит выживших нижней сетки, чётный
// принимает проигравших очередного раунда верхней.
type DoubleEliminationGenerator struct{}

func NewDoubleEliminationGenerator() *DoubleEliminationGenerator {
	return &DoubleEliminationGenerator{}
}

func (g *DoubleEliminationGenerator) Mode() models.BracketMode {
	return models.ModeDoubleElimination
}

func (g *DoubleEliminationGenerator) MinParticipants() int { return 2 }

func (g *DoubleEliminationGenerator) Generate(participants []*models.Participant) (*Bracket, error) {
	sorted, err := validateForGeneration(participants, g.MinParticipants())
	if err != nil {
		return nil, err
	}

	targetSize := nextPowerOfTwo(len(sorted))
	b := newBracket(models.ModeDoubleElimination, targetSize)

	byeSlots, err := buildWinnersRounds(b, sorted, targetSize)
	if err != nil {
		return nil, err
	}

	k := numRounds(targetSize)
	if k >= 2 {
		b.Losers = make([][]*Slot, 2*(k-1))
		for m := 1; m <= k-1; m++ {
			count := targetSize >> (m + 1)
			for _, l := range []int{2*m - 1, 2 * m} {
				b.Losers[l-1] = make([]*Slot, count)
				for i := 0; i < count; i++ {
					b.Losers[l-1][i] = b.register(&Slot{
						UID:   slotUID(SideLosers, l, i),
						Side:  SideLosers,
						Round: l,
						Index: i,
					})
				}
			}
		}

		// Бай первого раунда верхней сетки не порождает проигравшего:
		// соответствующая позиция LR1 не заполнится никогда.
		for _, i := range byeSlots {
			ls := b.Losers[0][i/2]
			if i%2 == 0 {
				ls.voidP1 = true
			} else {
				ls.voidP2 = true
			}
		}
		// Полностью пустой слот LR1 не произведёт победителя: проигравший
		// второго раунда верхней сетки пройдёт LR2 без матча.
		for j, ls := range b.Losers[0] {
			if ls.voidP1 && ls.voidP2 {
				b.Losers[1][j].voidP1 = true
			}
		}
	}

	gf1 := b.register(&Slot{UID: slotUID(SideGrandFinal, 1, 0), Side: SideGrandFinal, Round: 1})
	gf2 := b.register(&Slot{UID: slotUID(SideGrandFinal, 2, 0), Side: SideGrandFinal, Round: 2})
	b.GrandFinal = []*Slot{gf1, gf2}
	b.FinalStage = FinalStageNone

	return b, nil
}

func (g *DoubleEliminationGenerator) Advance(b *Bracket, slot *Slot, winnerID int) (*AdvanceResult, error) {
	if err := checkAdvance(b, slot, winnerID); err != nil {
		return nil, err
	}

	res := &AdvanceResult{}
	slot.Winner = &winnerID
	loser := slot.Opponent(winnerID)

	switch slot.Side {
	case SideWinners:
		if err := g.routeWinnersSide(b, slot, winnerID, loser, res); err != nil {
			return nil, err
		}
	case SideLosers:
		if loser != nil {
			res.Eliminated = append(res.Eliminated, *loser)
		}
		if err := g.routeLosersSide(b, slot, winnerID, res); err != nil {
			return nil, err
		}
	case SideGrandFinal:
		g.resolveGrandFinal(b, slot, winnerID, loser, res)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownSlot, slot.UID)
	}
	return res, nil
}

// routeWinnersSide продвигает победителя вверх по верхней сетке (или в
// гранд-финал из её финала) и роняет проигравшего в нижнюю. Проигравший
// верхней сетки не выбывает — он продолжает в нижней.
func (g *DoubleEliminationGenerator) routeWinnersSide(b *Bracket, slot *Slot, winnerID int, loser *int, res *AdvanceResult) error {
	k := len(b.Winners)

	if slot.Round == k {
		if err := g.place(b, b.GrandFinal[0], 0, winnerID, res); err != nil {
			return err
		}
	} else {
		parent := b.Winners[slot.Round][slot.Index/2]
		if err := g.place(b, parent, slot.Index%2, winnerID, res); err != nil {
			return err
		}
	}

	if loser == nil {
		return nil
	}

	if k == 1 {
		// Сетка из двух участников: проигравший финала идёт сразу во второй
		// слот гранд-финала.
		return g.place(b, b.GrandFinal[0], 1, *loser, res)
	}

	if slot.Round == 1 {
		return g.place(b, b.Losers[0][slot.Index/2], slot.Index%2, *loser, res)
	}

	// Проигравшие раунда r>=2 входят в чётный раунд нижней сетки 2(r-1).
	// Для нечётных r порядок зеркалится, чтобы отодвинуть повторные встречи.
	target := b.Losers[2*(slot.Round-1)-1]
	idx := slot.Index
	if slot.Round%2 == 1 {
		idx = len(target) - 1 - idx
	}
	return g.place(b, target[idx], 1, *loser, res)
}

// routeLosersSide продвигает победителя нижней сетки до её финала и далее
// во второй слот гранд-финала.
func (g *DoubleEliminationGenerator) routeLosersSide(b *Bracket, slot *Slot, winnerID int, res *AdvanceResult) error {
	last := len(b.Losers)
	if slot.Round == last {
		return g.place(b, b.GrandFinal[0], 1, winnerID, res)
	}
	if slot.Round%2 == 1 {
		// Нечётный (внутренний) раунд: победитель встречает проигравшего
		// верхней сетки в следующем чётном раунде.
		return g.place(b, b.Losers[slot.Round][slot.Index], 0, winnerID, res)
	}
	next := b.Losers[slot.Round][slot.Index/2]
	return g.place(b, next, slot.Index%2, winnerID, res)
}

// resolveGrandFinal — терминальные варианты гранд-финала. Победа
// представителя верхней сетки в первом матче решает турнир; победа
// представителя нижней назначает bracket reset, и только второй матч
// терминален.
func (g *DoubleEliminationGenerator) resolveGrandFinal(b *Bracket, slot *Slot, winnerID int, loser *int, res *AdvanceResult) {
	gf2 := b.GrandFinal[1]

	if slot.Round == 1 && slot.P1 != nil && winnerID != *slot.P1 {
		// Представитель нижней сетки взял первый финал: у обоих по одному
		// поражению, нужен решающий матч.
		b.FinalStage = FinalStageResetRequired
		gf2.P1 = slot.P1
		gf2.P2 = slot.P2
		gf2.fills = 2
		res.BracketReset = true
		res.Ready = append(res.Ready, gf2)
		return
	}

	b.FinalStage = FinalStageDecided
	res.Complete = true
	res.ChampionID = &winnerID
	if loser != nil {
		res.Eliminated = append(res.Eliminated, *loser)
	}
}

// place — заполнение позиции с обработкой переходов: готовый слот уходит в
// Ready, бай нижней сетки продвигается рекурсивно без матча.
func (g *DoubleEliminationGenerator) place(b *Bracket, slot *Slot, pos, pid int, res *AdvanceResult) error {
	ev, err := slot.place(pos, pid)
	if err != nil {
		return err
	}
	switch ev {
	case placeReady:
		if slot.Side == SideGrandFinal && slot.Round == 1 {
			b.FinalStage = FinalStagePending
		}
		res.Ready = append(res.Ready, slot)
	case placeAuto:
		sub, err := g.Advance(b, slot, slot.lone())
		if err != nil {
			return err
		}
		res.merge(sub)
	}
	return nil
}
