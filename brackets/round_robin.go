package brackets

import (
	"github.com/Dosada05/rps-arena/models"
)

// RoundRobinGenerator creates matches for a round-robin tournament: each
// participant plays every other participant once. All pairings are known up
// front, so every slot is schedulable immediately.
type RoundRobinGenerator struct{}

func NewRoundRobinGenerator() *RoundRobinGenerator {
	return &RoundRobinGenerator{}
}

func (g *RoundRobinGenerator) Mode() models.BracketMode {
	return models.ModeRoundRobin
}

func (g *RoundRobinGenerator) MinParticipants() int { return 2 }

func (g *RoundRobinGenerator) Generate(participants []*models.Participant) (*Bracket, error) {
	sorted, err := validateForGeneration(participants, g.MinParticipants())
	if err != nil {
		return nil, err
	}

	n := len(sorted)
	b := newBracket(models.ModeRoundRobin, n)
	for _, p := range sorted {
		b.seeds[p.ID] = p.Seed
	}

	slots := make([]*Slot, 0, n*(n-1)/2)
	idx := 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			p1, p2 := sorted[i].ID, sorted[j].ID
			s := b.register(&Slot{
				UID:   slotUID(SideWinners, 1, idx),
				Side:  SideWinners,
				Round: 1,
				Index: idx,
				P1:    &p1,
				P2:    &p2,
				fills: 2,
			})
			slots = append(slots, s)
			idx++
		}
	}
	b.Winners = [][]*Slot{slots}
	return b, nil
}

// Advance записывает результат пары. Завершение — когда сыграны все пары;
// чемпион — лидер по числу побед, при равенстве — лучший посев. Выбывание
// в круговом формате наступает только по завершении всего расписания.
func (g *RoundRobinGenerator) Advance(b *Bracket, slot *Slot, winnerID int) (*AdvanceResult, error) {
	if err := checkAdvance(b, slot, winnerID); err != nil {
		return nil, err
	}

	res := &AdvanceResult{}
	slot.Winner = &winnerID
	b.rrWins[winnerID]++

	for _, s := range b.Winners[0] {
		if s.Winner == nil {
			return res, nil
		}
	}

	champion := 0
	for pid, seed := range b.seeds {
		if champion == 0 {
			champion = pid
			continue
		}
		cw, pw := b.rrWins[champion], b.rrWins[pid]
		if pw > cw || (pw == cw && seed < b.seeds[champion]) {
			champion = pid
		}
	}

	res.Complete = true
	res.ChampionID = &champion
	for pid := range b.seeds {
		if pid != champion {
			res.Eliminated = append(res.Eliminated, pid)
		}
	}
	return res, nil
}

// Standings возвращает таблицу круговой сетки: участник и число побед,
// отсортировано по победам, затем по посеву.
func (b *Bracket) Standings() []Standing {
	if b.Mode != models.ModeRoundRobin {
		return nil
	}
	out := make([]Standing, 0, len(b.seeds))
	for pid, seed := range b.seeds {
		out = append(out, Standing{ParticipantID: pid, Seed: seed, Wins: b.rrWins[pid]})
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0; j-- {
			a, c := out[j-1], out[j]
			if c.Wins > a.Wins || (c.Wins == a.Wins && c.Seed < a.Seed) {
				out[j-1], out[j] = c, a
			} else {
				break
			}
		}
	}
	return out
}

type Standing struct {
	ParticipantID int `json:"participant_id"`
	Seed          int `json:"seed"`
	Wins          int `json:"wins"`
}
