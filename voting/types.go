package voting

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrVotingActive is returned when a vote is started while one is running.
	ErrVotingActive = errors.New("voting phase already started")

	// ErrVotingInactive is returned for ballots or end requests outside a vote.
	ErrVotingInactive = errors.New("voting phase not started")

	// ErrInvalidMove is returned for a move with a missing square.
	ErrInvalidMove = errors.New("invalid move")
)

// Phase names broadcast to clients
const (
	PhaseVoting = "voting"
	PhaseIdle   = "idle"
)

// Move is a single move from one square to another.
type Move struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (m Move) String() string {
	return m.From + m.To
}

// Validate checks that both squares are present.
func (m Move) Validate() error {
	if strings.TrimSpace(m.From) == "" || strings.TrimSpace(m.To) == "" {
		return fmt.Errorf("%w: from=%q to=%q", ErrInvalidMove, m.From, m.To)
	}
	return nil
}

// ParseMove splits a move in coordinate notation ("e2e4") into its squares:
// the first two characters are the origin, the rest is the destination.
func ParseMove(s string) (Move, error) {
	s = strings.TrimSpace(s)
	if len(s) < 3 {
		return Move{}, fmt.Errorf("%w: %q is too short", ErrInvalidMove, s)
	}
	return Move{From: s[:2], To: s[2:]}, nil
}

// Phase is the voting state pushed to WebSocket clients.
type Phase struct {
	CurrentPhase string `json:"currentPhase"`
	Timer        int    `json:"timer,omitempty"`
}

// Status is a snapshot of the service for diagnostics.
type Status struct {
	Phase       string `json:"phase"`
	Remaining   int    `json:"remaining,omitempty"`
	Ballots     int    `json:"ballots"`
	LastApplied *Move  `json:"last_applied,omitempty"`
	LastWinner  *Move  `json:"last_winner,omitempty"`
}

// Broadcaster receives state changes for fan-out to connected clients.
type Broadcaster interface {
	BroadcastPhase(Phase)
	BroadcastMove(Move)
}

// Tally returns the most frequent move. Ties go to the move that reached the
// winning count first in submission order.
func Tally(moves []Move) (Move, bool) {
	if len(moves) == 0 {
		return Move{}, false
	}

	counts := make(map[Move]int, len(moves))
	var winner Move
	best := 0
	for _, m := range moves {
		counts[m]++
		if counts[m] > best {
			best = counts[m]
			winner = m
		}
	}
	return winner, true
}
