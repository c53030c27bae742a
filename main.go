// Command wsprobe is a command-line WebSocket test client.
//
// It runs one session per invocation:
//  1. --send/-s MESSAGE – connect, deliver one text message, disconnect
//  2. --listen/-l – connect and print every inbound frame until interrupted
//
// Subcommands cover the voting server used while developing against wsprobe:
// "move" votes through the REST API, "serve" runs the server itself (with an
// optional ngrok tunnel) and "mcp" exposes the same operations as MCP tools.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"
	"github.com/wricardo/wsprobe/config"
	"github.com/wricardo/wsprobe/probe"
	"github.com/wricardo/wsprobe/shutdown"
	"github.com/wricardo/wsprobe/transport/mcp"
	"github.com/wricardo/wsprobe/transport/rest"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "wsprobe"
)

// exitUsage is returned when neither session mode is selected.
const exitUsage = 2

// app carries what every command shares once the root Before hook has run.
type app struct {
	stdout     io.Writer
	stderr     io.Writer
	interrupts <-chan os.Signal

	cfg *config.Config
	log zerolog.Logger
}

// main loads .env, routes interrupts to the session supervisor and runs the
// selected command.
func main() {
	// Load .env file if it exists (ignore error if not found)
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: Error loading .env file: %v\n", err)
	}

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupts)

	a := &app{stdout: os.Stdout, stderr: os.Stderr, interrupts: interrupts}
	if err := a.command().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", AppName, err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps a command error onto the process exit status.
func exitCode(err error) int {
	var coder cli.ExitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return 1
}

// command builds the CLI tree.
func (a *app) command() *cli.Command {
	sendFlag := &cli.StringFlag{
		Name:    "send",
		Aliases: []string{"s"},
		Usage:   "send `MESSAGE` once and disconnect",
	}
	listenFlag := &cli.BoolFlag{
		Name:    "listen",
		Aliases: []string{"l"},
		Usage:   "print inbound frames until interrupted",
	}

	return &cli.Command{
		Name:    AppName,
		Usage:   "WebSocket test client",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "url",
				Usage: "WebSocket endpoint (default from config: ws://127.0.0.1:8080/ws)",
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "YAML config `FILE`",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
		},
		MutuallyExclusiveFlags: []cli.MutuallyExclusiveFlags{
			{Flags: [][]cli.Flag{{sendFlag}, {listenFlag}}},
		},
		Before:         a.setup,
		Action:         a.runSession,
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
		Commands: []*cli.Command{
			a.moveCommand(),
			a.serveCommand(),
			a.mcpCommand(),
		},
	}
}

// setup loads configuration, applies flag overrides and builds the logger.
func (a *app) setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	level := zerolog.InfoLevel
	if cmd.Bool("debug") {
		level = zerolog.DebugLevel
	}
	a.log = zerolog.New(zerolog.ConsoleWriter{Out: a.stderr}).
		Level(level).
		With().Timestamp().
		Logger()

	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return ctx, cli.Exit(err.Error(), 1)
	}
	if cmd.IsSet("url") {
		cfg.URL = cmd.String("url")
		if err := cfg.Validate(); err != nil {
			return ctx, cli.Exit(err.Error(), 1)
		}
	}
	a.cfg = cfg

	a.log.Debug().Str("url", cfg.URL).Dur("send_timeout", cfg.SendTimeout).Dur("read_timeout", cfg.ReadTimeout).Msg("configuration loaded")
	return ctx, nil
}

// runSession runs the send or listen session under a supervisor.
func (a *app) runSession(ctx context.Context, cmd *cli.Command) error {
	send, listen := cmd.IsSet("send"), cmd.Bool("listen")
	if send == listen {
		return cli.Exit("exactly one of --send or --listen is required", exitUsage)
	}

	client := probe.NewClient(a.cfg.URL,
		probe.WithTiming(a.cfg.Timing()),
		probe.WithOutput(a.stdout),
		probe.WithLogger(a.log),
	)

	task := probe.Task(client.Listen)
	if send {
		msg := cmd.String("send")
		task = func(sig *shutdown.Signal) error {
			return client.Send(sig, msg)
		}
	}

	supervisor := &probe.Supervisor{
		Signal:     shutdown.New(ctx),
		Interrupts: a.interrupts,
		Log:        a.log,
	}
	return supervisor.Run(task)
}

// interruptible returns a context that is cancelled on the first interrupt.
func (a *app) interruptible(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		select {
		case sig := <-a.interrupts:
			a.log.Warn().Str("signal", sig.String()).Msg("interrupt received, cancelling")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// moveCommand opens a voting phase and submits one move.
func (a *app) moveCommand() *cli.Command {
	return &cli.Command{
		Name:  "move",
		Usage: "start a voting phase and submit a move through the REST API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "move",
				Aliases: []string{"c"},
				Value:   "e4e5",
				Usage:   "move to vote",
			},
			&cli.StringFlag{
				Name:  "base-url",
				Usage: "voting API base URL (default from config: http://localhost:8080)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ctx, cancel := a.interruptible(ctx)
			defer cancel()

			baseURL := a.cfg.APIBaseURL
			if cmd.IsSet("base-url") {
				baseURL = cmd.String("base-url")
			}
			return a.vote(ctx, rest.NewClient(baseURL, a.log), cmd.String("move"))
		},
	}
}

// vote reports each call's outcome on stdout. Rejections by the server are
// reported, not returned.
func (a *app) vote(ctx context.Context, client *rest.Client, move string) error {
	resp, err := client.StartVoting(ctx)
	if err != nil {
		return err
	}
	if resp.OK() {
		fmt.Fprintln(a.stdout, "Voting phase started successfully")
	} else {
		fmt.Fprintln(a.stdout, "Failed to start voting phase")
	}
	fmt.Fprintf(a.stdout, "Server response: %s\n", resp.Body)

	fmt.Fprintf(a.stdout, "Sending move: %s\n", move)
	resp, err = client.SubmitMove(ctx, move)
	if err != nil {
		return err
	}
	if resp.OK() {
		fmt.Fprintf(a.stdout, "Move %s submitted successfully\n", move)
	} else {
		fmt.Fprintf(a.stdout, "Failed to submit move %s\n", move)
	}
	fmt.Fprintf(a.stdout, "Server response: %s\n", resp.Body)
	return nil
}

// mcpCommand serves the MCP tools over stdio. Logs stay on stderr.
func (a *app) mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "run an MCP stdio server exposing send, listen and voting tools",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			s := mcp.NewServer(a.cfg.URL,
				rest.NewClient(a.cfg.APIBaseURL, a.log),
				mcp.WithTiming(a.cfg.Timing()),
				mcp.WithLogger(a.log),
			)
			a.log.Info().Str("url", a.cfg.URL).Str("api", a.cfg.APIBaseURL).Msg("MCP stdio server ready")
			return s.ServeStdio()
		},
	}
}
