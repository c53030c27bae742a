// Package voting implements the move-voting game server that wsprobe is
// usually pointed at during development.
//
// The voting package implements:
//   - Timed voting phases with a per-tick countdown
//   - Ballot collection and tallying
//   - Broadcasting phase changes and winners through a Broadcaster
//
// Phase Lifecycle:
//
//  1. StartVoting opens a phase and broadcasts {"currentPhase":"voting","timer":N}
//  2. Every tick broadcasts the remaining count
//  3. When the count reaches zero (or EndVoting is called) the phase closes,
//     {"currentPhase":"idle"} is broadcast, and the winning move follows as
//     {"from":"e2","to":"e4"} if any ballots were cast
//
// Tallying:
//
// The most frequent move wins. Ties go to the move that reached the winning
// count first, which keeps results reproducible.
//
// Usage:
//
//	hub := websocket.NewHub(log)
//	go hub.Run(ctx)
//
//	svc := voting.NewService(hub, voting.WithDuration(15))
//	if err := svc.StartVoting(); err != nil {
//		return err
//	}
//	svc.SubmitMove(voting.Move{From: "e2", To: "e4"})
package voting
