// Package mcp provides a Model Context Protocol server for wsprobe.
//
// The mcp package implements:
//   - MCP server for AI agent integration over stdio
//   - Tools that run bounded send and listen sessions
//   - Tools that proxy to the voting server REST API
//
// MCP Tools:
//   - send_message: Deliver one text frame (retries until timeout_seconds)
//   - listen: Collect inbound frames for a number of seconds
//   - start_voting: Open a voting phase
//   - submit_move: Vote for a move such as e2e4
//   - end_voting: Close the running voting phase
//   - voting_status: Current phase and ballot count
//
// Session tools never run unbounded: the request context, capped by the tool's
// time argument, sets the session's shutdown signal. Their result carries the
// frames received and the structured session log.
//
// Usage:
//
//	api := rest.NewClient("http://localhost:8080", log)
//	s := mcp.NewServer("ws://127.0.0.1:8080/ws", api, mcp.WithLogger(log))
//	if err := s.ServeStdio(); err != nil {
//		log.Fatal().Err(err).Msg("mcp server")
//	}
package mcp
