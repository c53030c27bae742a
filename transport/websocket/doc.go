// Package websocket provides the WebSocket transport for wsprobe, on top of
// gorilla/websocket.
//
// The websocket package implements:
//   - Conn, the client connection handle driven by probe sessions
//   - Hub, the server-side fan-out used by the voting server
//
// Client Connection:
//
// Dial performs the opening handshake and starts a read pump that owns the
// read side. Every operation is a bounded wait returning a Status:
//   - Delivered: the frame was read, or the write returned
//   - TimedOut: the bound expired first; the caller decides whether to retry
//   - Closed: the peer went away; CloseReason explains why
//
// The client never pings on its own. Ping sends one control ping carrying a
// unique token and waits for the matching pong, so callers control liveness
// probing entirely.
//
// Usage:
//
//	conn, err := websocket.Dial(ctx, "ws://127.0.0.1:8080/ws", websocket.Options{})
//	if err != nil {
//		return err
//	}
//	defer conn.Close()
//
//	status, err := conn.SendWithin(ctx, "hello", time.Second)
//	frame, status := conn.ReadWithin(ctx, 2*time.Second)
//
// Hub:
//
// The hub keeps all connected clients on a single goroutine. Each client has a
// read pump (answers pings, notices disconnects) and a write pump (delivers
// queued frames, sends server pings). Broadcasts go to every client; a client
// whose queue is full is dropped.
//
//	hub := websocket.NewHub(log)
//	go hub.Run(ctx)
//	http.HandleFunc("/ws", hub.ServeWS)
package websocket
