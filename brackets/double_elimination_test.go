package brackets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoubleEliminationStructure(t *testing.T) {
	gen := NewDoubleEliminationGenerator()
	b, err := gen.Generate(makeParticipants(8))
	require.NoError(t, err)

	assert.Equal(t, 8, b.TargetSize)
	require.Len(t, b.Winners, 3)

	// Нижняя сетка для 2^3: раунды из 2, 2, 1, 1 слотов.
	require.Len(t, b.Losers, 4)
	assert.Len(t, b.Losers[0], 2)
	assert.Len(t, b.Losers[1], 2)
	assert.Len(t, b.Losers[2], 1)
	assert.Len(t, b.Losers[3], 1)

	require.Len(t, b.GrandFinal, 2)
	assert.Equal(t, FinalStageNone, b.FinalStage)
}

func TestDoubleEliminationTwoParticipants(t *testing.T) {
	gen := NewDoubleEliminationGenerator()
	b, err := gen.Generate(makeParticipants(2))
	require.NoError(t, err)

	require.Len(t, b.Winners, 1)
	assert.Empty(t, b.Losers)

	final := b.Winners[0][0]
	res, err := gen.Advance(b, final, *final.P1)
	require.NoError(t, err)
	require.False(t, res.Complete, "loser gets a second life in the grand final")
	require.Len(t, res.Ready, 1)

	gf1 := res.Ready[0]
	assert.Equal(t, b.GrandFinal[0], gf1)
	assert.Equal(t, FinalStagePending, b.FinalStage)

	// Представитель верхней сетки берёт гранд-финал — турнир решён.
	res, err = gen.Advance(b, gf1, *gf1.P1)
	require.NoError(t, err)
	assert.True(t, res.Complete)
	assert.Equal(t, FinalStageDecided, b.FinalStage)
}

// Фавориты побеждают всегда: первый номер проходит без поражений, решающего
// матча не нужно, каждый выбывает ровно один раз.
func TestDoubleEliminationFavoriteRun(t *testing.T) {
	gen := NewDoubleEliminationGenerator()

	for _, n := range []int{2, 3, 4, 6, 8, 16} {
		b, err := gen.Generate(makeParticipants(n))
		require.NoError(t, err)

		res, eliminated := playOut(t, gen, b, favoriteWins(b))
		require.True(t, res.Complete, "n=%d", n)
		assert.Equal(t, 1, b.seeds[*res.ChampionID], "n=%d", n)
		assert.False(t, res.BracketReset)
		assert.Equal(t, FinalStageDecided, b.FinalStage)
		assert.Len(t, eliminated, n-1, "n=%d", n)
	}
}

// Представитель нижней сетки берёт первый гранд-финал: назначается решающий
// матч, и только его исход терминален.
func TestDoubleEliminationBracketReset(t *testing.T) {
	gen := NewDoubleEliminationGenerator()
	b, err := gen.Generate(makeParticipants(4))
	require.NoError(t, err)

	var sawReset bool
	queue := b.PendingSlots()
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		if s.Winner != nil {
			continue
		}

		winner := *favoriteTop(b, s)
		if s.Side == SideGrandFinal && s.Round == 1 {
			// В первом гранд-финале побеждает представитель нижней сетки.
			winner = *s.P2
		}

		res, err := gen.Advance(b, s, winner)
		require.NoError(t, err)

		if res.BracketReset {
			sawReset = true
			assert.Equal(t, FinalStageResetRequired, b.FinalStage)
			require.Len(t, res.Ready, 1)
			gf2 := res.Ready[0]
			assert.Equal(t, b.GrandFinal[1], gf2)
			// Оба финалиста переходят в решающий матч.
			assert.Equal(t, b.GrandFinal[0].P1, gf2.P1)
			assert.Equal(t, b.GrandFinal[0].P2, gf2.P2)
		}
		if res.Complete {
			assert.True(t, sawReset, "completion must come from the deciding match")
			assert.Equal(t, FinalStageDecided, b.FinalStage)
			require.NotNil(t, res.ChampionID)
			return
		}
		queue = append(queue, res.Ready...)
	}
	t.Fatal("bracket never completed")
}

// Каждый участник может проиграть не более двух раз; проигравший верхней
// сетки продолжает в нижней, а не выбывает.
func TestDoubleEliminationLossAccounting(t *testing.T) {
	gen := NewDoubleEliminationGenerator()
	b, err := gen.Generate(makeParticipants(8))
	require.NoError(t, err)

	losses := make(map[int]int)
	queue := b.PendingSlots()
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		if s.Winner != nil {
			continue
		}
		winner := *favoriteTop(b, s)
		loser := s.Opponent(winner)
		if loser != nil {
			losses[*loser]++
		}

		res, err := gen.Advance(b, s, winner)
		require.NoError(t, err)

		for _, pid := range res.Eliminated {
			assert.LessOrEqual(t, losses[pid], 2, "participant %d eliminated with too many losses", pid)
			assert.GreaterOrEqual(t, losses[pid], 1)
		}
		if res.Complete {
			assert.Zero(t, losses[*res.ChampionID], "favorite champion never loses")
			return
		}
		queue = append(queue, res.Ready...)
	}
	t.Fatal("bracket never completed")
}

// Баи верхней сетки не рождают фантомных проигравших в нижней: позиции LR1
// помечены недостижимыми, и сетка всё равно доигрывается до конца.
func TestDoubleEliminationWithByes(t *testing.T) {
	gen := NewDoubleEliminationGenerator()

	for _, n := range []int{3, 5, 6, 7} {
		b, err := gen.Generate(makeParticipants(n))
		require.NoError(t, err)

		res, eliminated := playOut(t, gen, b, favoriteWins(b))
		require.True(t, res.Complete, "n=%d", n)
		assert.Equal(t, 1, b.seeds[*res.ChampionID], "n=%d", n)
		assert.Len(t, eliminated, n-1, "n=%d", n)
	}
}
