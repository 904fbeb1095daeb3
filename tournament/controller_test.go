package tournament

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Dosada05/rps-arena/brackets"
	"github.com/Dosada05/rps-arena/game"
	"github.com/Dosada05/rps-arena/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingPublisher собирает события под мьютексом: контроллер публикует
// их из отдельной горутины.
type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) count(t EventType) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, ev := range p.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

func newTestController(t *testing.T, mode models.BracketMode, bestOf int, pub Publisher) *Controller {
	t.Helper()
	ctrl, err := New(Config{
		Tournament: &models.Tournament{
			ID:        7,
			Name:      "test",
			Mode:      mode,
			ChoiceSet: "classic",
			BestOf:    bestOf,
		},
		Publisher: pub,
	})
	require.NoError(t, err)
	return ctrl
}

func registerN(t *testing.T, ctrl *Controller, n int) {
	t.Helper()
	require.NoError(t, ctrl.OpenRegistration())
	for i := 1; i <= n; i++ {
		_, err := ctrl.Register(i, "player")
		require.NoError(t, err)
	}
}

// openMatches возвращает матчи, ожидающие ходов.
func openMatches(ctrl *Controller) []models.Match {
	var out []models.Match
	for _, m := range ctrl.Snapshot().Matches {
		if m.Status == models.MatchAwaitingMoves {
			out = append(out, m)
		}
	}
	return out
}

// playMatch разыгрывает матч до решения: победителю — бумага, сопернику —
// камень.
func playMatch(t *testing.T, ctrl *Controller, m models.Match, winnerID int) {
	t.Helper()
	for {
		loser := *m.P1ID
		if loser == winnerID {
			loser = *m.P2ID
		}
		_, err := ctrl.SubmitMove(context.Background(), m.ID, winnerID, game.Paper)
		require.NoError(t, err)
		res, err := ctrl.SubmitMove(context.Background(), m.ID, loser, game.Rock)
		require.NoError(t, err)
		require.NotNil(t, res)
		if res.MatchOver {
			require.Equal(t, winnerID, *res.WinnerID)
			return
		}
	}
}

func TestNewValidation(t *testing.T) {
	_, err := New(Config{Tournament: &models.Tournament{Mode: models.ModeSingleElimination, BestOf: 2}})
	assert.Error(t, err)

	_, err = New(Config{Tournament: &models.Tournament{Mode: "ladder", BestOf: 1}})
	assert.Error(t, err)

	_, err = New(Config{Tournament: &models.Tournament{Mode: models.ModeSingleElimination, ChoiceSet: "coin", BestOf: 1}})
	assert.Error(t, err)
}

func TestRegistrationRules(t *testing.T) {
	ctrl := newTestController(t, models.ModeSingleElimination, 1, nil)

	_, err := ctrl.Register(1, "early")
	assert.ErrorIs(t, err, ErrRegistrationNotOpen)

	require.NoError(t, ctrl.OpenRegistration())
	assert.ErrorIs(t, ctrl.OpenRegistration(), ErrInvalidStatusChange)

	p, err := ctrl.Register(1, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Seed)

	_, err = ctrl.Register(1, "alice again")
	assert.ErrorIs(t, err, ErrDuplicateParticipant)

	p2, err := ctrl.Register(2, "bob")
	require.NoError(t, err)
	assert.Equal(t, 2, p2.Seed, "seed follows registration order")
}

func TestLockAndStartBelowMinimum(t *testing.T) {
	ctrl := newTestController(t, models.ModeSingleElimination, 1, nil)
	require.NoError(t, ctrl.OpenRegistration())
	_, err := ctrl.Register(1, "alone")
	require.NoError(t, err)

	err = ctrl.LockAndStart(context.Background())
	assert.ErrorIs(t, err, ErrBelowMinimumPlayers)
}

func TestFullSingleEliminationRun(t *testing.T) {
	pub := &recordingPublisher{}
	ctrl := newTestController(t, models.ModeSingleElimination, 1, pub)
	registerN(t, ctrl, 4)

	require.NoError(t, ctrl.LockAndStart(context.Background()))
	assert.Equal(t, models.TournamentInProgress, ctrl.Status())

	for {
		open := openMatches(ctrl)
		if len(open) == 0 {
			break
		}
		// Побеждает участник с меньшим ID (он же лучший посев).
		for _, m := range open {
			winner := *m.P1ID
			if *m.P2ID < winner {
				winner = *m.P2ID
			}
			playMatch(t, ctrl, m, winner)
		}
	}

	snap := ctrl.Snapshot()
	assert.Equal(t, models.TournamentCompleted, snap.Status)
	require.NotNil(t, snap.ChampionID)
	assert.Equal(t, 1, *snap.ChampionID)

	statuses := make(map[int]models.ParticipantStatus)
	for _, p := range snap.Participants {
		statuses[p.ID] = p.Status
	}
	assert.Equal(t, models.ParticipantChampion, statuses[1])
	for pid := 2; pid <= 4; pid++ {
		assert.Equal(t, models.ParticipantEliminated, statuses[pid], "participant %d", pid)
	}

	// 4 участника в single elimination — ровно 3 матча.
	assert.Len(t, snap.Matches, 3)

	// События публикуются асинхронно.
	require.Eventually(t, func() bool {
		return pub.count(EventTournamentCompleted) == 1 &&
			pub.count(EventMatchScheduled) == 3 &&
			pub.count(EventMatchCompleted) == 3
	}, time.Second, 10*time.Millisecond)
}

// Конкурентные разрешения матчей-соседей создают движок общего слота ровно
// один раз.
func TestConcurrentSiblingResolutions(t *testing.T) {
	for i := 0; i < 25; i++ {
		ctrl := newTestController(t, models.ModeSingleElimination, 1, nil)
		registerN(t, ctrl, 4)
		require.NoError(t, ctrl.LockAndStart(context.Background()))

		open := openMatches(ctrl)
		require.Len(t, open, 2)

		var wg sync.WaitGroup
		for _, m := range open {
			wg.Add(1)
			go func(m models.Match) {
				defer wg.Done()
				playMatch(t, ctrl, m, *m.P1ID)
			}(m)
		}
		wg.Wait()

		assert.Len(t, ctrl.Snapshot().Matches, 3, "final gets exactly one engine")
	}
}

func TestCancelPreservesDecidedResults(t *testing.T) {
	pub := &recordingPublisher{}
	ctrl := newTestController(t, models.ModeSingleElimination, 1, pub)
	registerN(t, ctrl, 4)
	require.NoError(t, ctrl.LockAndStart(context.Background()))

	open := openMatches(ctrl)
	require.Len(t, open, 2)
	playMatch(t, ctrl, open[0], *open[0].P1ID)

	require.NoError(t, ctrl.Cancel(context.Background()))
	assert.Equal(t, models.TournamentCancelled, ctrl.Status())
	assert.ErrorIs(t, ctrl.Cancel(context.Background()), ErrTournamentTerminal)

	resolved, cancelled := 0, 0
	for _, m := range ctrl.Snapshot().Matches {
		switch m.Status {
		case models.MatchResolved:
			resolved++
		case models.MatchCancelled:
			cancelled++
		}
	}
	assert.Equal(t, 1, resolved, "decided match keeps its result")
	assert.Equal(t, 1, cancelled)

	require.Eventually(t, func() bool {
		return pub.count(EventTournamentCancelled) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestSubmitMoveUnknownMatch(t *testing.T) {
	ctrl := newTestController(t, models.ModeSingleElimination, 1, nil)
	registerN(t, ctrl, 2)
	require.NoError(t, ctrl.LockAndStart(context.Background()))

	_, err := ctrl.SubmitMove(context.Background(), "no-such-match", 1, game.Rock)
	assert.ErrorIs(t, err, ErrUnknownMatch)
}

// Оба участника просрочили ход: дальше проходит лучший посев.
func TestForfeitOverdueBothSilent(t *testing.T) {
	ctrl := newTestController(t, models.ModeSingleElimination, 1, nil)
	registerN(t, ctrl, 2)
	require.NoError(t, ctrl.LockAndStart(context.Background()))

	count := ctrl.ForfeitOverdue(context.Background(), time.Now().Add(time.Hour), time.Minute)
	assert.Equal(t, 1, count)

	snap := ctrl.Snapshot()
	assert.Equal(t, models.TournamentCompleted, snap.Status)
	require.NotNil(t, snap.ChampionID)
	assert.Equal(t, 1, *snap.ChampionID, "better seed advances when both are overdue")
	require.Len(t, snap.Matches, 1)
	assert.True(t, snap.Matches[0].WonByForfeit)
}

func TestForfeitOverdueRespectsWindow(t *testing.T) {
	ctrl := newTestController(t, models.ModeSingleElimination, 1, nil)
	registerN(t, ctrl, 2)
	require.NoError(t, ctrl.LockAndStart(context.Background()))

	count := ctrl.ForfeitOverdue(context.Background(), time.Now(), time.Hour)
	assert.Zero(t, count)
	assert.Equal(t, models.TournamentInProgress, ctrl.Status())
}

func TestDoubleEliminationFinalStage(t *testing.T) {
	ctrl := newTestController(t, models.ModeDoubleElimination, 1, nil)
	registerN(t, ctrl, 2)

	assert.Equal(t, brackets.FinalStageNone, ctrl.FinalStage())

	require.NoError(t, ctrl.LockAndStart(context.Background()))

	open := openMatches(ctrl)
	require.Len(t, open, 1)
	// Победа в верхней сетке ведёт в гранд-финал, а не завершает турнир.
	playMatch(t, ctrl, open[0], 1)
	assert.Equal(t, models.TournamentInProgress, ctrl.Status())

	open = openMatches(ctrl)
	require.Len(t, open, 1)
	playMatch(t, ctrl, open[0], 1)

	snap := ctrl.Snapshot()
	assert.Equal(t, models.TournamentCompleted, snap.Status)
	assert.Equal(t, 1, *snap.ChampionID)
}

// Владелец контроллера получает финальный снимок ровно один раз, когда
// турнир достигает терминального статуса.
func TestTerminalCallback(t *testing.T) {
	newWithCallback := func(t *testing.T) (*Controller, chan *models.Tournament) {
		t.Helper()
		terminal := make(chan *models.Tournament, 1)
		ctrl, err := New(Config{
			Tournament: &models.Tournament{
				ID:        7,
				Mode:      models.ModeSingleElimination,
				ChoiceSet: "classic",
				BestOf:    1,
			},
			OnTerminal: func(snap *models.Tournament) { terminal <- snap },
		})
		require.NoError(t, err)
		return ctrl, terminal
	}

	awaitTerminal := func(t *testing.T, ch chan *models.Tournament) *models.Tournament {
		t.Helper()
		select {
		case snap := <-ch:
			return snap
		case <-time.After(time.Second):
			t.Fatal("terminal callback was not invoked")
			return nil
		}
	}

	t.Run("completed", func(t *testing.T) {
		ctrl, terminal := newWithCallback(t)
		registerN(t, ctrl, 2)
		require.NoError(t, ctrl.LockAndStart(context.Background()))

		open := openMatches(ctrl)
		require.Len(t, open, 1)
		playMatch(t, ctrl, open[0], 1)

		snap := awaitTerminal(t, terminal)
		assert.Equal(t, models.TournamentCompleted, snap.Status)
		require.NotNil(t, snap.ChampionID)
		assert.Equal(t, 1, *snap.ChampionID)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctrl, terminal := newWithCallback(t)
		registerN(t, ctrl, 2)
		require.NoError(t, ctrl.Cancel(context.Background()))

		snap := awaitTerminal(t, terminal)
		assert.Equal(t, models.TournamentCancelled, snap.Status)
	})
}

func TestBracketJSON(t *testing.T) {
	ctrl := newTestController(t, models.ModeSingleElimination, 1, nil)
	registerN(t, ctrl, 2)

	_, err := ctrl.BracketJSON()
	assert.ErrorIs(t, err, ErrTournamentNotRunning)

	require.NoError(t, ctrl.LockAndStart(context.Background()))
	raw, err := ctrl.BracketJSON()
	require.NoError(t, err)
	assert.NotEmpty(t, raw)
}
