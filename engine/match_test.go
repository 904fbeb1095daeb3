package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/Dosada05/rps-arena/game"
	"github.com/Dosada05/rps-arena/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMatch(t *testing.T, bestOf int) *Match {
	t.Helper()
	m, err := New(Config{
		Rules:  game.Classic(),
		BestOf: bestOf,
		P1:     &Player{ID: 1, Name: "alice"},
		P2:     &Player{ID: 2, Name: "bob"},
	})
	require.NoError(t, err)
	return m
}

func TestNewValidation(t *testing.T) {
	_, err := New(Config{Rules: game.Classic(), BestOf: 2, P1: &Player{ID: 1}})
	assert.ErrorIs(t, err, ErrInvalidBestOf)

	_, err = New(Config{Rules: game.Classic(), BestOf: 0, P1: &Player{ID: 1}})
	assert.ErrorIs(t, err, ErrInvalidBestOf)

	_, err = New(Config{BestOf: 3, P1: &Player{ID: 1}})
	assert.ErrorIs(t, err, ErrMatchNotReady)
}

// Best-of-3 с ничьей: rock/rock — переигровка, счёт 0:0.
func TestBestOfThreeWithTie(t *testing.T) {
	m := newTestMatch(t, 3)
	require.Equal(t, 2, m.NeededWins())

	// Раунд 1: alice берёт верх.
	res, err := m.SubmitMove(1, game.Rock)
	require.NoError(t, err)
	assert.Nil(t, res, "first move must not resolve the round")

	res, err = m.SubmitMove(2, game.Scissors)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, models.RoundP1Wins, res.Round.Outcome)
	assert.Equal(t, 1, res.P1Wins)
	assert.False(t, res.MatchOver)

	// Раунд 2: ничья, записывается и переигрывается.
	_, err = m.SubmitMove(1, game.Paper)
	require.NoError(t, err)
	res, err = m.SubmitMove(2, game.Paper)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, models.RoundTie, res.Round.Outcome)
	assert.Equal(t, 1, res.P1Wins)
	assert.Equal(t, 0, res.P2Wins)
	assert.False(t, res.MatchOver)

	// Раунд 3: alice закрывает матч.
	_, err = m.SubmitMove(2, game.Rock)
	require.NoError(t, err)
	res, err = m.SubmitMove(1, game.Paper)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.True(t, res.MatchOver)
	require.NotNil(t, res.WinnerID)
	assert.Equal(t, 1, *res.WinnerID)
	assert.False(t, res.WonByForfeit)

	snap := m.Snapshot()
	assert.Equal(t, models.MatchResolved, snap.Status)
	assert.Len(t, snap.Rounds, 3)
	assert.Equal(t, 2, snap.P1Wins)

	// Ходы после завершения отклоняются.
	_, err = m.SubmitMove(2, game.Rock)
	assert.ErrorIs(t, err, ErrMatchAlreadyComplete)
}

// Сколько бы раундов подряд ни заканчивалось вничью, матч не решается.
func TestTieOnlySequenceNeverCompletes(t *testing.T) {
	m := newTestMatch(t, 1)

	for i := 0; i < 10; i++ {
		_, err := m.SubmitMove(1, game.Rock)
		require.NoError(t, err)
		res, err := m.SubmitMove(2, game.Rock)
		require.NoError(t, err)
		require.NotNil(t, res)
		assert.Equal(t, models.RoundTie, res.Round.Outcome)
		assert.False(t, res.MatchOver)
	}

	assert.False(t, m.Decided())
	snap := m.Snapshot()
	assert.Len(t, snap.Rounds, 10, "every tie is recorded")
	assert.Zero(t, snap.P1Wins)
	assert.Zero(t, snap.P2Wins)
}

func TestSubmitMoveErrors(t *testing.T) {
	m := newTestMatch(t, 3)

	_, err := m.SubmitMove(99, game.Rock)
	assert.ErrorIs(t, err, ErrInvalidParticipant)

	_, err = m.SubmitMove(1, game.Choice("dynamite"))
	assert.ErrorIs(t, err, ErrUnknownChoice)

	_, err = m.SubmitMove(1, game.Rock)
	require.NoError(t, err)
	_, err = m.SubmitMove(1, game.Paper)
	assert.ErrorIs(t, err, ErrDuplicateSubmission)
}

// Конкурентные ходы двух участников: раунд разрешается ровно один раз.
func TestConcurrentSubmit(t *testing.T) {
	for i := 0; i < 50; i++ {
		m := newTestMatch(t, 1)

		var wg sync.WaitGroup
		results := make([]*RoundResult, 2)
		wg.Add(2)
		go func() {
			defer wg.Done()
			res, err := m.SubmitMove(1, game.Rock)
			require.NoError(t, err)
			results[0] = res
		}()
		go func() {
			defer wg.Done()
			res, err := m.SubmitMove(2, game.Scissors)
			require.NoError(t, err)
			results[1] = res
		}()
		wg.Wait()

		resolved := 0
		for _, res := range results {
			if res != nil {
				resolved++
			}
		}
		assert.Equal(t, 1, resolved, "exactly one caller must observe the resolution")

		snap := m.Snapshot()
		assert.Len(t, snap.Rounds, 1)
		require.NotNil(t, snap.WinnerID)
		assert.Equal(t, 1, *snap.WinnerID)
	}
}

func TestJoinFlow(t *testing.T) {
	m, err := New(Config{
		Rules:  game.Classic(),
		BestOf: 1,
		P1:     &Player{ID: 10, Name: "alice"},
	})
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingPlayers, m.State())

	_, err = m.SubmitMove(10, game.Rock)
	assert.ErrorIs(t, err, ErrMatchNotReady)

	err = m.Join(&Player{ID: 10, Name: "alice again"})
	assert.ErrorIs(t, err, ErrInvalidParticipant)

	require.NoError(t, m.Join(&Player{ID: 20, Name: "bob"}))
	assert.Equal(t, StateAwaitingMoves, m.State())

	err = m.Join(&Player{ID: 30, Name: "carol"})
	assert.ErrorIs(t, err, ErrMatchFull)
}

func TestForceForfeit(t *testing.T) {
	m := newTestMatch(t, 3)

	// Счёт до форфейта сохраняется.
	_, err := m.SubmitMove(1, game.Rock)
	require.NoError(t, err)
	_, err = m.SubmitMove(2, game.Scissors)
	require.NoError(t, err)

	res, err := m.ForceForfeit(1)
	require.NoError(t, err)
	assert.True(t, res.MatchOver)
	assert.True(t, res.WonByForfeit)
	require.NotNil(t, res.WinnerID)
	assert.Equal(t, 2, *res.WinnerID)
	assert.Equal(t, 1, res.P1Wins)

	_, err = m.ForceForfeit(2)
	assert.ErrorIs(t, err, ErrMatchAlreadyComplete)

	snap := m.Snapshot()
	assert.True(t, snap.WonByForfeit)
	assert.Equal(t, models.MatchResolved, snap.Status)
}

func TestCancelKeepsDecidedResult(t *testing.T) {
	m := newTestMatch(t, 1)
	_, err := m.SubmitMove(1, game.Paper)
	require.NoError(t, err)
	res, err := m.SubmitMove(2, game.Rock)
	require.NoError(t, err)
	require.True(t, res.MatchOver)

	m.Cancel()
	snap := m.Snapshot()
	assert.Equal(t, models.MatchResolved, snap.Status, "cancel must not erase a decided result")

	m2 := newTestMatch(t, 1)
	m2.Cancel()
	assert.Equal(t, StateCancelled, m2.State())
	_, err = m2.SubmitMove(1, game.Rock)
	assert.ErrorIs(t, err, ErrMatchCancelled)
}

func TestOverdue(t *testing.T) {
	m := newTestMatch(t, 3)
	now := time.Now()

	assert.Nil(t, m.Overdue(now, time.Minute), "window has not elapsed yet")

	_, err := m.SubmitMove(1, game.Rock)
	require.NoError(t, err)

	overdue := m.Overdue(now.Add(2*time.Minute), time.Minute)
	assert.Equal(t, []int{2}, overdue, "only the silent participant is overdue")

	// Ничья открывает новое окно на ход.
	res, err := m.SubmitMove(2, game.Rock)
	require.NoError(t, err)
	assert.Equal(t, models.RoundTie, res.Round.Outcome)
	assert.Nil(t, m.Overdue(now.Add(30*time.Second), time.Minute))
}
