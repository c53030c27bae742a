// Package api provides the HTTP API of the voting server that wsprobe
// targets during development.
//
// Endpoints:
//   - POST /start-voting - Open a voting phase (400 if one is running)
//   - POST /submit-move - Vote with {"from":"e2","to":"e4"} (400 outside a vote)
//   - POST /end-voting - Close the running phase and announce the winner
//   - POST /ws-client-move - Apply a move directly
//   - GET /connected-clients - {"connected_clients": n}
//   - GET /status - Current phase, ballot count and last results
//   - GET /ws - WebSocket stream of phase updates and winning moves
//
// Responses for the voting endpoints are plain text; diagnostics are JSON.
// All routes allow cross-origin requests.
//
// Usage:
//
//	hub := websocket.NewHub(log)
//	go hub.Run(ctx)
//	svc := voting.NewService(hub)
//	http.ListenAndServe(":8080", api.NewServer(svc, hub, log))
package api
