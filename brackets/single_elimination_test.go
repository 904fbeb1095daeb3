package brackets

import (
	"testing"

	"github.com/Dosada05/rps-arena/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeParticipants строит участников с ID 100+seed, seed 1..n.
func makeParticipants(n int) []*models.Participant {
	out := make([]*models.Participant, n)
	for i := 0; i < n; i++ {
		out[i] = &models.Participant{ID: 100 + i + 1, Seed: i + 1}
	}
	return out
}

// playOut разыгрывает сетку до конца: победителя каждого готового слота
// выбирает pick. Возвращает итоговый результат и множество выбывших.
func playOut(t *testing.T, gen Generator, b *Bracket, pick func(s *Slot) int) (*AdvanceResult, map[int]bool) {
	t.Helper()

	eliminated := make(map[int]bool)
	queue := b.PendingSlots()
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		if s.Winner != nil {
			continue
		}
		res, err := gen.Advance(b, s, pick(s))
		require.NoError(t, err)
		for _, pid := range res.Eliminated {
			require.False(t, eliminated[pid], "participant %d eliminated twice", pid)
			eliminated[pid] = true
		}
		if res.Complete {
			return res, eliminated
		}
		queue = append(queue, res.Ready...)
	}
	t.Fatal("bracket never completed")
	return nil, nil
}

// favoriteWins выбирает участника с лучшим посевом.
func favoriteWins(b *Bracket) func(s *Slot) int {
	return func(s *Slot) int {
		if b.seeds[*s.P1] < b.seeds[*s.P2] {
			return *s.P1
		}
		return *s.P2
	}
}

func TestSingleEliminationGenerate(t *testing.T) {
	gen := NewSingleEliminationGenerator()

	for n := 2; n <= 16; n++ {
		participants := makeParticipants(n)
		b, err := gen.Generate(participants)
		require.NoError(t, err, "n=%d", n)

		target := nextPowerOfTwo(n)
		assert.Equal(t, target, b.TargetSize, "n=%d", n)
		assert.Len(t, b.Winners, numRounds(target), "n=%d", n)
		assert.Empty(t, b.Losers)
		assert.Empty(t, b.GrandFinal)

		byes := 0
		byeSeeds := make(map[int]bool)
		for _, s := range b.Winners[0] {
			if s.Bye {
				byes++
				require.NotNil(t, s.Winner)
				byeSeeds[b.seeds[*s.Winner]] = true
			}
		}
		assert.Equal(t, target-n, byes, "n=%d: bye count", n)

		// Баи достаются сильнейшим номерам посева.
		for seed := 1; seed <= target-n; seed++ {
			assert.True(t, byeSeeds[seed], "n=%d: seed %d must receive a bye", n, seed)
		}
	}
}

func TestSingleEliminationSixParticipants(t *testing.T) {
	gen := NewSingleEliminationGenerator()
	b, err := gen.Generate(makeParticipants(6))
	require.NoError(t, err)

	require.Equal(t, 8, b.TargetSize)
	require.Len(t, b.Winners, 3)

	// seedOrder(8) = [1 8 4 5 2 7 3 6]: баи в парах (1,8) и (2,7),
	// реальные матчи — 4v5 и 3v6.
	r1 := b.Winners[0]
	assert.True(t, r1[0].Bye)
	assert.Equal(t, 1, b.seeds[*r1[0].Winner])
	assert.True(t, r1[2].Bye)
	assert.Equal(t, 2, b.seeds[*r1[2].Winner])

	assert.Equal(t, 4, b.seeds[*r1[1].P1])
	assert.Equal(t, 5, b.seeds[*r1[1].P2])
	assert.Equal(t, 3, b.seeds[*r1[3].P1])
	assert.Equal(t, 6, b.seeds[*r1[3].P2])

	// Баи уже продвинуты во второй раунд.
	assert.NotNil(t, b.Winners[1][0].P1)
	assert.NotNil(t, b.Winners[1][1].P1)

	// Играются только два матча первого раунда.
	assert.Len(t, b.PendingSlots(), 2)
}

func TestSingleEliminationFavoriteRun(t *testing.T) {
	gen := NewSingleEliminationGenerator()

	for _, n := range []int{2, 3, 4, 6, 8, 11, 16} {
		b, err := gen.Generate(makeParticipants(n))
		require.NoError(t, err)

		res, eliminated := playOut(t, gen, b, favoriteWins(b))
		require.True(t, res.Complete)
		require.NotNil(t, res.ChampionID)
		assert.Equal(t, 1, b.seeds[*res.ChampionID], "n=%d: top seed must win when favorites always win", n)
		assert.Len(t, eliminated, n-1, "n=%d: everyone but the champion is eliminated", n)
		assert.False(t, eliminated[*res.ChampionID])
	}
}

// Первый и второй номера посева не встречаются раньше финала.
func TestTopSeedsMeetInFinalOnly(t *testing.T) {
	gen := NewSingleEliminationGenerator()

	for _, n := range []int{4, 6, 8, 12, 16} {
		b, err := gen.Generate(makeParticipants(n))
		require.NoError(t, err)

		finalRound := len(b.Winners)
		queue := b.PendingSlots()
		for len(queue) > 0 {
			s := queue[0]
			queue = queue[1:]
			if s.Winner != nil {
				continue
			}
			if b.seeds[*s.P1]+b.seeds[*s.P2] == 3 {
				assert.Equal(t, finalRound, s.Round, "n=%d: seeds 1 and 2 met in round %d", n, s.Round)
			}
			res, err := gen.Advance(b, s, *favoriteTop(b, s))
			require.NoError(t, err)
			if res.Complete {
				break
			}
			queue = append(queue, res.Ready...)
		}
	}
}

func favoriteTop(b *Bracket, s *Slot) *int {
	if b.seeds[*s.P1] < b.seeds[*s.P2] {
		return s.P1
	}
	return s.P2
}

func TestSingleEliminationAdvanceErrors(t *testing.T) {
	gen := NewSingleEliminationGenerator()
	b, err := gen.Generate(makeParticipants(4))
	require.NoError(t, err)

	slot := b.Winners[0][0]

	_, err = gen.Advance(b, slot, 999)
	assert.ErrorIs(t, err, ErrWinnerNotInSlot)

	_, err = gen.Advance(b, slot, *slot.P1)
	require.NoError(t, err)
	_, err = gen.Advance(b, slot, *slot.P2)
	assert.ErrorIs(t, err, ErrSlotAlreadyResolved)

	foreign := &Slot{UID: "W-R9-S9", Side: SideWinners, Round: 9}
	_, err = gen.Advance(b, foreign, 1)
	assert.ErrorIs(t, err, ErrUnknownSlot)
}

func TestGenerateInsufficientParticipants(t *testing.T) {
	for _, gen := range []Generator{
		NewSingleEliminationGenerator(),
		NewDoubleEliminationGenerator(),
		NewRoundRobinGenerator(),
	} {
		_, err := gen.Generate(makeParticipants(1))
		assert.ErrorIs(t, err, ErrInsufficientParticipants, "mode %s", gen.Mode())
	}
}

func TestSeedOrder(t *testing.T) {
	assert.Equal(t, []int{1, 2}, seedOrder(2))
	assert.Equal(t, []int{1, 4, 2, 3}, seedOrder(4))
	assert.Equal(t, []int{1, 8, 4, 5, 2, 7, 3, 6}, seedOrder(8))

	// Сумма номеров каждой пары первого раунда равна size+1.
	for _, size := range []int{2, 4, 8, 16, 32} {
		order := seedOrder(size)
		require.Len(t, order, size)
		for i := 0; i < size/2; i++ {
			assert.Equal(t, size+1, order[2*i]+order[2*i+1], "size=%d pair %d", size, i)
		}
	}
}
