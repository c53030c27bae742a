package voting

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Service runs voting phases: it collects ballots during a timed window and
// announces the winning move when the window closes.
type Service struct {
	out      Broadcaster
	duration int
	tick     time.Duration
	log      zerolog.Logger

	// emitMu is taken before mu and held from a state change until its
	// broadcasts are out, so clients see phases in the order they happened.
	emitMu sync.Mutex

	mu          sync.Mutex
	active      bool
	remaining   int
	moves       []Move
	round       uint64
	stopTimer   context.CancelFunc
	lastApplied *Move
	lastWinner  *Move
}

// Option configures a Service.
type Option func(*Service)

// WithDuration sets the length of a voting phase in ticks.
func WithDuration(ticks int) Option {
	return func(s *Service) {
		if ticks > 0 {
			s.duration = ticks
		}
	}
}

// WithTick sets the countdown step.
func WithTick(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.tick = d
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Service) {
		s.log = log
	}
}

// NewService creates a voting service that reports to out.
func NewService(out Broadcaster, opts ...Option) *Service {
	s := &Service{
		out:      out,
		duration: 15,
		tick:     time.Second,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartVoting opens a new voting phase and starts its countdown.
func (s *Service) StartVoting() error {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return ErrVotingActive
	}

	s.active = true
	s.remaining = s.duration
	s.moves = nil
	s.round++
	round := s.round

	ctx, cancel := context.WithCancel(context.Background())
	s.stopTimer = cancel
	s.mu.Unlock()

	s.log.Info().Int("duration", s.duration).Msg("voting phase started")
	s.out.BroadcastPhase(Phase{CurrentPhase: PhaseVoting, Timer: s.duration})

	go s.countdown(ctx, round)
	return nil
}

// countdown broadcasts the remaining time every tick and closes the phase
// when it reaches zero. A stale round never touches a newer phase.
func (s *Service) countdown(ctx context.Context, round uint64) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if !s.tickDown(round) {
			return
		}
	}
}

// tickDown advances the countdown of round by one step. It reports whether
// the round is still running.
func (s *Service) tickDown(round uint64) bool {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if !s.active || s.round != round {
		s.mu.Unlock()
		return false
	}
	s.remaining--
	remaining := s.remaining
	s.mu.Unlock()

	if remaining <= 0 {
		s.finishLocked(round)
		return false
	}
	s.out.BroadcastPhase(Phase{CurrentPhase: PhaseVoting, Timer: remaining})
	return true
}

// SubmitMove records a ballot for the running phase.
func (s *Service) SubmitMove(m Move) error {
	if err := m.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return ErrVotingInactive
	}
	s.moves = append(s.moves, m)
	s.log.Debug().Str("move", m.String()).Int("ballots", len(s.moves)).Msg("ballot received")
	return nil
}

// EndVoting closes the running phase early and announces its result.
func (s *Service) EndVoting() (Move, bool, error) {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return Move{}, false, ErrVotingInactive
	}
	round := s.round
	s.mu.Unlock()

	winner, ok := s.finish(round)
	return winner, ok, nil
}

// finish closes the given round, if it is still the running one, and
// broadcasts the idle phase followed by the winner.
func (s *Service) finish(round uint64) (Move, bool) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	return s.finishLocked(round)
}

// finishLocked is finish for callers already holding emitMu.
func (s *Service) finishLocked(round uint64) (Move, bool) {
	s.mu.Lock()
	if !s.active || s.round != round {
		s.mu.Unlock()
		return Move{}, false
	}
	s.active = false
	s.remaining = 0
	if s.stopTimer != nil {
		s.stopTimer()
		s.stopTimer = nil
	}
	moves := s.moves
	s.moves = nil
	winner, ok := Tally(moves)
	if ok {
		s.lastWinner = &winner
	}
	s.mu.Unlock()

	s.out.BroadcastPhase(Phase{CurrentPhase: PhaseIdle})
	if !ok {
		s.log.Info().Msg("voting phase ended without ballots")
		return Move{}, false
	}

	s.log.Info().Str("move", winner.String()).Int("ballots", len(moves)).Msg("voting phase ended")
	s.out.BroadcastMove(winner)
	return winner, true
}

// ApplyClientMove records a move applied directly by a client.
func (s *Service) ApplyClientMove(m Move) error {
	if err := m.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	s.lastApplied = &m
	s.mu.Unlock()

	s.log.Info().Str("move", m.String()).Msg("move applied")
	return nil
}

// Status returns a snapshot of the current phase.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Phase:       PhaseIdle,
		Ballots:     len(s.moves),
		LastApplied: s.lastApplied,
		LastWinner:  s.lastWinner,
	}
	if s.active {
		st.Phase = PhaseVoting
		st.Remaining = s.remaining
	}
	return st
}

// Close stops any running countdown without announcing a result.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopTimer != nil {
		s.stopTimer()
		s.stopTimer = nil
	}
	s.active = false
}
