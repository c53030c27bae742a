package voting_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wricardo/wsprobe/voting"
)

// recorder implements voting.Broadcaster for testing
type recorder struct {
	mu     sync.Mutex
	phases []voting.Phase
	moves  []voting.Move
	idle   chan struct{}
}

func newRecorder() *recorder {
	return &recorder{idle: make(chan struct{}, 8)}
}

func (r *recorder) BroadcastPhase(p voting.Phase) {
	r.mu.Lock()
	r.phases = append(r.phases, p)
	r.mu.Unlock()
	if p.CurrentPhase == voting.PhaseIdle {
		r.idle <- struct{}{}
	}
}

func (r *recorder) BroadcastMove(m voting.Move) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.moves = append(r.moves, m)
}

func (r *recorder) snapshot() ([]voting.Phase, []voting.Move) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]voting.Phase(nil), r.phases...), append([]voting.Move(nil), r.moves...)
}

func TestStartVotingTwice(t *testing.T) {
	rec := newRecorder()
	svc := voting.NewService(rec, voting.WithDuration(100), voting.WithTick(time.Hour))
	defer svc.Close()

	require.NoError(t, svc.StartVoting())
	assert.ErrorIs(t, svc.StartVoting(), voting.ErrVotingActive)

	phases, _ := rec.snapshot()
	require.Len(t, phases, 1)
	assert.Equal(t, voting.Phase{CurrentPhase: voting.PhaseVoting, Timer: 100}, phases[0])
}

func TestSubmitMoveOutsideVote(t *testing.T) {
	svc := voting.NewService(newRecorder())

	err := svc.SubmitMove(voting.Move{From: "e2", To: "e4"})
	assert.ErrorIs(t, err, voting.ErrVotingInactive)
}

func TestSubmitMoveRejectsEmptySquares(t *testing.T) {
	svc := voting.NewService(newRecorder(), voting.WithTick(time.Hour))
	defer svc.Close()
	require.NoError(t, svc.StartVoting())

	err := svc.SubmitMove(voting.Move{From: "e2"})
	assert.ErrorIs(t, err, voting.ErrInvalidMove)
}

func TestEndVotingAnnouncesWinner(t *testing.T) {
	rec := newRecorder()
	svc := voting.NewService(rec, voting.WithTick(time.Hour))

	require.NoError(t, svc.StartVoting())
	require.NoError(t, svc.SubmitMove(voting.Move{From: "d2", To: "d4"}))
	require.NoError(t, svc.SubmitMove(voting.Move{From: "e2", To: "e4"}))
	require.NoError(t, svc.SubmitMove(voting.Move{From: "e2", To: "e4"}))

	assert.Equal(t, 3, svc.Status().Ballots)

	winner, ok, err := svc.EndVoting()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, voting.Move{From: "e2", To: "e4"}, winner)

	phases, moves := rec.snapshot()
	assert.Equal(t, voting.PhaseIdle, phases[len(phases)-1].CurrentPhase)
	assert.Equal(t, []voting.Move{winner}, moves)

	st := svc.Status()
	assert.Equal(t, voting.PhaseIdle, st.Phase)
	require.NotNil(t, st.LastWinner)
	assert.Equal(t, winner, *st.LastWinner)

	_, _, err = svc.EndVoting()
	assert.ErrorIs(t, err, voting.ErrVotingInactive)
}

func TestEndVotingWithoutBallots(t *testing.T) {
	rec := newRecorder()
	svc := voting.NewService(rec, voting.WithTick(time.Hour))

	require.NoError(t, svc.StartVoting())
	_, ok, err := svc.EndVoting()
	require.NoError(t, err)
	assert.False(t, ok)

	_, moves := rec.snapshot()
	assert.Empty(t, moves)
}

func TestCountdownEndsVote(t *testing.T) {
	rec := newRecorder()
	svc := voting.NewService(rec, voting.WithDuration(3), voting.WithTick(5*time.Millisecond))

	require.NoError(t, svc.StartVoting())
	require.NoError(t, svc.SubmitMove(voting.Move{From: "g1", To: "f3"}))

	select {
	case <-rec.idle:
	case <-time.After(2 * time.Second):
		t.Fatal("countdown did not end the voting phase")
	}

	phases, moves := rec.snapshot()
	require.Equal(t, []voting.Phase{
		{CurrentPhase: voting.PhaseVoting, Timer: 3},
		{CurrentPhase: voting.PhaseVoting, Timer: 2},
		{CurrentPhase: voting.PhaseVoting, Timer: 1},
		{CurrentPhase: voting.PhaseIdle},
	}, phases)
	assert.Equal(t, []voting.Move{{From: "g1", To: "f3"}}, moves)

	// A new phase can start once the old one has closed.
	require.NoError(t, svc.StartVoting())
	svc.Close()
}

func TestApplyClientMove(t *testing.T) {
	svc := voting.NewService(newRecorder())

	require.NoError(t, svc.ApplyClientMove(voting.Move{From: "a7", To: "a5"}))
	st := svc.Status()
	require.NotNil(t, st.LastApplied)
	assert.Equal(t, "a7a5", st.LastApplied.String())

	assert.ErrorIs(t, svc.ApplyClientMove(voting.Move{}), voting.ErrInvalidMove)
}

func TestTally(t *testing.T) {
	e4 := voting.Move{From: "e2", To: "e4"}
	d4 := voting.Move{From: "d2", To: "d4"}
	c4 := voting.Move{From: "c2", To: "c4"}

	tests := []struct {
		name   string
		moves  []voting.Move
		winner voting.Move
		ok     bool
	}{
		{"empty", nil, voting.Move{}, false},
		{"single", []voting.Move{c4}, c4, true},
		{"majority", []voting.Move{d4, e4, e4}, e4, true},
		{"tie goes to first to reach count", []voting.Move{d4, e4, e4, d4}, e4, true},
		{"tie on singles goes to first", []voting.Move{c4, d4, e4}, c4, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			winner, ok := voting.Tally(tt.moves)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.winner, winner)
		})
	}
}

func TestParseMove(t *testing.T) {
	m, err := voting.ParseMove("e4e5")
	require.NoError(t, err)
	assert.Equal(t, voting.Move{From: "e4", To: "e5"}, m)

	m, err = voting.ParseMove("e7e8q")
	require.NoError(t, err)
	assert.Equal(t, voting.Move{From: "e7", To: "e8q"}, m)

	_, err = voting.ParseMove("e4")
	assert.ErrorIs(t, err, voting.ErrInvalidMove)
}

// phaseLog records phase and move broadcasts in arrival order.
type phaseLog struct {
	mu     sync.Mutex
	events []voting.Phase
}

func (l *phaseLog) BroadcastPhase(p voting.Phase) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, p)
}

func (l *phaseLog) BroadcastMove(m voting.Move) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, voting.Phase{CurrentPhase: "move"})
}

func TestPhasesBroadcastInOrder(t *testing.T) {
	const duration = 2
	log := &phaseLog{}
	svc := voting.NewService(log, voting.WithDuration(duration), voting.WithTick(time.Millisecond))
	defer svc.Close()

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			svc.StartVoting()
		}()
		go func() {
			defer wg.Done()
			svc.SubmitMove(voting.Move{From: "e2", To: "e4"})
		}()
		go func() {
			defer wg.Done()
			svc.EndVoting()
		}()
	}
	wg.Wait()
	svc.EndVoting()

	log.mu.Lock()
	events := append([]voting.Phase(nil), log.events...)
	log.mu.Unlock()
	require.NotEmpty(t, events)

	current := voting.PhaseIdle
	for i, e := range events {
		switch {
		case e.CurrentPhase == voting.PhaseVoting && current == voting.PhaseIdle:
			require.Equal(t, duration, e.Timer, "event %d: a phase must open with the full timer", i)
			current = voting.PhaseVoting
		case e.CurrentPhase == voting.PhaseVoting:
			require.Less(t, e.Timer, duration, "event %d: countdown after the phase opened", i)
		case e.CurrentPhase == voting.PhaseIdle:
			require.Equal(t, voting.PhaseVoting, current, "event %d: idle without a running phase", i)
			current = voting.PhaseIdle
		default:
			require.Positive(t, i)
			require.Equal(t, voting.PhaseIdle, events[i-1].CurrentPhase, "event %d: winner must follow idle", i)
		}
	}
	assert.Equal(t, voting.PhaseIdle, current)
}
