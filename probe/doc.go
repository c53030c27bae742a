// Package probe runs WebSocket probe sessions: a send session that delivers
// one message, retrying attempts that stall, and a listen session that prints
// inbound frames while a keepalive task probes the peer.
//
// Lifecycle:
//
// Every session shares a shutdown.Signal with a watchdog started by the
// Supervisor. Whichever side finishes first sets the signal and the other
// exits on its next check:
//   - Send: the message was delivered, or the peer closed the connection
//   - Listen: the peer closed the connection
//   - Watchdog: an OS interrupt arrived
//
// All waits are bounded (1s per send attempt, 2s per frame read) so loops keep
// re-checking the signal. A listen session cancels its keepalive task and
// waits for it before closing the shared connection, so no probe runs against
// a closing socket.
//
// Usage:
//
//	sig := shutdown.New(ctx)
//	client := probe.NewClient("ws://127.0.0.1:8080/ws", probe.WithLogger(log))
//	sup := &probe.Supervisor{Signal: sig, Interrupts: interrupts, Log: log}
//	err := sup.Run(func(sig *shutdown.Signal) error {
//		return client.Send(sig, "hello")
//	})
package probe
