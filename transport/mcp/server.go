package mcp

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/wricardo/wsprobe/probe"
	"github.com/wricardo/wsprobe/shutdown"
	"github.com/wricardo/wsprobe/transport/rest"
)

const (
	defaultSendSeconds   = 10
	defaultListenSeconds = 5
	maxSessionSeconds    = 120
)

// Server exposes wsprobe sessions and the voting API as MCP tools
type Server struct {
	url       string
	timing    probe.Timing
	dialer    probe.Dialer
	api       *rest.Client
	log       zerolog.Logger
	mcpServer *server.MCPServer
}

// Option configures a Server
type Option func(*Server)

// WithTiming sets the bounds used by send_message and listen
func WithTiming(t probe.Timing) Option {
	return func(s *Server) { s.timing = t }
}

// WithDialer replaces the WebSocket dialer used by sessions
func WithDialer(d probe.Dialer) Option {
	return func(s *Server) { s.dialer = d }
}

// WithLogger sets the server logger
func WithLogger(log zerolog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// NewServer creates an MCP server whose sessions target url and whose voting
// tools call api.
func NewServer(url string, api *rest.Client, opts ...Option) *Server {
	s := &Server{
		url:    url,
		timing: probe.DefaultTiming(),
		api:    api,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.initMCPServer()
	return s
}

// initMCPServer initializes the MCP server with all tools
func (s *Server) initMCPServer() {
	s.mcpServer = server.NewMCPServer(
		"wsprobe",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`wsprobe - WebSocket test client

Drive short WebSocket sessions and the voting server API.

AVAILABLE TOOLS:
- send_message: Connect, deliver one text message, disconnect
- listen: Connect and collect inbound frames for a number of seconds
- start_voting: Open a voting phase
- submit_move: Vote for a move such as e2e4
- end_voting: Close the running voting phase
- voting_status: Current phase and ballot count

Session tools return the frames received and the session event log.`),
	)

	s.registerTools()
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	// WebSocket sessions
	s.mcpServer.AddTool(mcp.Tool{
		Name:        "send_message",
		Description: "Connect to the WebSocket endpoint, send one text message and disconnect",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"message": map[string]interface{}{
					"type":        "string",
					"description": "Text frame to send",
				},
				"url": map[string]interface{}{
					"type":        "string",
					"description": "WebSocket URL (optional, defaults to the configured endpoint)",
				},
				"timeout_seconds": map[string]interface{}{
					"type":        "number",
					"description": "Give up retrying after this many seconds (default 10)",
				},
			},
			Required: []string{"message"},
		},
	}, s.handleSendMessage)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "listen",
		Description: "Connect to the WebSocket endpoint and collect inbound frames",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"url": map[string]interface{}{
					"type":        "string",
					"description": "WebSocket URL (optional, defaults to the configured endpoint)",
				},
				"seconds": map[string]interface{}{
					"type":        "number",
					"description": "How long to listen (default 5, max 120)",
				},
			},
		},
	}, s.handleListen)

	// Voting API
	s.mcpServer.AddTool(mcp.Tool{
		Name:        "start_voting",
		Description: "Open a voting phase on the voting server",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, s.handleStartVoting)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "submit_move",
		Description: "Vote for a move in coordinate notation",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"move": map[string]interface{}{
					"type":        "string",
					"description": "Move such as e2e4: two characters for the origin square, the rest for the destination",
				},
			},
			Required: []string{"move"},
		},
	}, s.handleSubmitMove)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "end_voting",
		Description: "Close the running voting phase and announce the winner",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, s.handleEndVoting)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "voting_status",
		Description: "Get the current voting phase, remaining time and ballot count",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, s.handleVotingStatus)
}

// GetMCPServer returns the underlying MCP server for serving
func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio serves the tools over stdin/stdout until the client disconnects
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// Helpers

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	if args == nil {
		return map[string]interface{}{}
	}
	return args
}

func secondsArg(args map[string]interface{}, key string, def int) time.Duration {
	n := def
	if v, ok := args[key].(float64); ok && v > 0 {
		n = int(v)
	}
	if n > maxSessionSeconds {
		n = maxSessionSeconds
	}
	return time.Duration(n) * time.Second
}

// session builds a client that records frames and events for the
// tool result. The listen session logs from two goroutines, so events are
// written through a SyncWriter.
func (s *Server) session(args map[string]interface{}, frames, events *bytes.Buffer) *probe.Client {
	url := s.url
	if u, ok := args["url"].(string); ok && u != "" {
		url = u
	}

	opts := []probe.Option{
		probe.WithTiming(s.timing),
		probe.WithOutput(frames),
		probe.WithLogger(zerolog.New(zerolog.SyncWriter(events)).With().Timestamp().Logger()),
	}
	if s.dialer != nil {
		opts = append(opts, probe.WithDialer(s.dialer))
	}
	return probe.NewClient(url, opts...)
}

func sessionResult(err error, frames, events *bytes.Buffer) *mcp.CallToolResult {
	var b strings.Builder
	if frames != nil {
		fmt.Fprintf(&b, "Frames:\n%s\n", frames.String())
	}
	fmt.Fprintf(&b, "Events:\n%s", events.String())

	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("%v\n\n%s", err, b.String()))
	}
	return mcp.NewToolResultText(b.String())
}

func apiResult(resp *rest.Response, err error) *mcp.CallToolResult {
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	if !resp.OK() {
		return mcp.NewToolResultError(fmt.Sprintf("HTTP %d: %s", resp.Status, strings.TrimSpace(resp.Body)))
	}
	return mcp.NewToolResultText(resp.Body)
}

// Tool handlers

func (s *Server) handleSendMessage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	msg, ok := args["message"].(string)
	if !ok {
		return mcp.NewToolResultError("message is required"), nil
	}

	ctx, cancel := context.WithTimeout(ctx, secondsArg(args, "timeout_seconds", defaultSendSeconds))
	defer cancel()

	var events bytes.Buffer
	client := s.session(args, &bytes.Buffer{}, &events)

	s.log.Info().Str("url", client.URL()).Msg("mcp send_message")
	err := client.Send(shutdown.New(ctx), msg)
	return sessionResult(err, nil, &events), nil
}

func (s *Server) handleListen(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)

	ctx, cancel := context.WithTimeout(ctx, secondsArg(args, "seconds", defaultListenSeconds))
	defer cancel()

	var frames, events bytes.Buffer
	client := s.session(args, &frames, &events)

	s.log.Info().Str("url", client.URL()).Msg("mcp listen")
	err := client.Listen(shutdown.New(ctx))
	return sessionResult(err, &frames, &events), nil
}

func (s *Server) handleStartVoting(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return apiResult(s.api.StartVoting(ctx)), nil
}

func (s *Server) handleSubmitMove(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	move, ok := arguments(request)["move"].(string)
	if !ok {
		return mcp.NewToolResultError("move is required"), nil
	}
	return apiResult(s.api.SubmitMove(ctx, move)), nil
}

func (s *Server) handleEndVoting(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return apiResult(s.api.EndVoting(ctx)), nil
}

func (s *Server) handleVotingStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return apiResult(s.api.Status(ctx)), nil
}
