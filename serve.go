package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v3"
	"github.com/wricardo/wsprobe/api"
	"github.com/wricardo/wsprobe/config"
	"github.com/wricardo/wsprobe/transport/mcp"
	"github.com/wricardo/wsprobe/transport/rest"
	"github.com/wricardo/wsprobe/transport/websocket"
	"github.com/wricardo/wsprobe/voting"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"
	"golang.org/x/sync/errgroup"
)

// serveCommand runs the voting server: REST API, WebSocket broadcast and an
// /mcp HTTP endpoint, optionally exposed through ngrok.
func (a *app) serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the voting server that wsprobe sessions can target",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "listen address (default from config: :8080)",
			},
			&cli.IntFlag{
				Name:  "voting-duration",
				Usage: "voting phase length in seconds (default from config: 15)",
			},
			&cli.BoolFlag{
				Name:    "ngrok",
				Usage:   "expose the server through an ngrok tunnel",
				Sources: cli.EnvVars("NGROK_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "ngrok-auth",
				Usage:   "ngrok auth token",
				Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN"),
			},
			&cli.StringFlag{
				Name:    "ngrok-domain",
				Usage:   "custom ngrok domain (optional)",
				Sources: cli.EnvVars("NGROK_DOMAIN"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := a.cfg.Server
			if cmd.IsSet("addr") {
				cfg.Addr = cmd.String("addr")
			}
			if cmd.IsSet("voting-duration") {
				cfg.VotingDuration = int(cmd.Int("voting-duration"))
			}

			var tunnel *ngrokOptions
			if cmd.Bool("ngrok") {
				tunnel = &ngrokOptions{
					authToken: cmd.String("ngrok-auth"),
					domain:    cmd.String("ngrok-domain"),
				}
			}
			return a.serve(ctx, cfg, tunnel)
		},
	}
}

type ngrokOptions struct {
	authToken string
	domain    string
}

// localURLs returns the HTTP and WebSocket URLs a local client uses to reach
// a server listening on addr.
func localURLs(addr string) (httpURL, wsURL string) {
	host := addr
	if strings.HasPrefix(host, ":") {
		host = "127.0.0.1" + host
	}
	return "http://" + host, "ws://" + host + "/ws"
}

// mcpHandler answers single JSON-RPC MCP messages over HTTP POST.
func mcpHandler(s *mcpserver.MCPServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := s.HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	}
}

// newServerHandler wires the hub, the voting service and the HTTP routes.
func (a *app) newServerHandler(cfg config.ServerConfig) (http.Handler, *websocket.Hub, *voting.Service) {
	hub := websocket.NewHub(a.log.With().Str("component", "hub").Logger())
	svc := voting.NewService(hub,
		voting.WithDuration(cfg.VotingDuration),
		voting.WithTick(cfg.VotingTick),
		voting.WithLogger(a.log.With().Str("component", "voting").Logger()),
	)

	httpURL, wsURL := localURLs(cfg.Addr)
	tools := mcp.NewServer(wsURL,
		rest.NewClient(httpURL, a.log),
		mcp.WithTiming(a.cfg.Timing()),
		mcp.WithLogger(a.log),
	)

	router := http.NewServeMux()
	router.Handle("/", api.NewServer(svc, hub, a.log))
	router.HandleFunc("/mcp", mcpHandler(tools.GetMCPServer()))

	return router, hub, svc
}

// serve runs until interrupted, then shuts the HTTP server down gracefully.
func (a *app) serve(ctx context.Context, cfg config.ServerConfig, tunnel *ngrokOptions) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	handler, hub, svc := a.newServerHandler(cfg)
	defer svc.Close()

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	g.Go(func() error {
		httpURL, wsURL := localURLs(cfg.Addr)
		a.log.Info().
			Str("addr", cfg.Addr).
			Str("api", httpURL).
			Str("websocket", wsURL).
			Str("mcp", httpURL+"/mcp").
			Msg("HTTP server listening")

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if tunnel != nil {
		g.Go(func() error {
			a.runNgrok(gctx, handler, tunnel)
			return nil
		})
	}

	g.Go(func() error {
		select {
		case <-gctx.Done():
		case sig := <-a.interrupts:
			a.log.Info().Str("signal", sig.String()).Msg("shutting down")
		}
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			a.log.Error().Err(err).Msg("HTTP server shutdown")
		}
		return nil
	})

	err := g.Wait()
	a.log.Info().Msg("server stopped")
	return err
}

// runNgrok serves handler through an ngrok tunnel until ctx is done. Tunnel
// failures are logged; the local server keeps running.
func (a *app) runNgrok(ctx context.Context, handler http.Handler, opts *ngrokOptions) {
	log := a.log.With().Str("component", "ngrok").Logger()

	if opts.authToken == "" {
		log.Warn().Msg("ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN or NGROK_AUTH_TOKEN)")
		return
	}

	var endpoint ngrokConfig.Tunnel
	if opts.domain != "" {
		endpoint = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(opts.domain))
		log.Info().Str("domain", opts.domain).Msg("using custom ngrok domain")
	} else {
		endpoint = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, endpoint, ngrok.WithAuthtoken(opts.authToken))
	if err != nil {
		log.Error().Err(err).Msg("failed to start ngrok tunnel")
		return
	}

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			log.Debug().Err(err).Msg("close tunnel")
		}
	}()

	publicURL := tun.URL()
	log.Info().
		Str("url", publicURL).
		Str("websocket", "wss"+strings.TrimPrefix(publicURL, "https")+"/ws").
		Msg("ngrok tunnel established")

	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		log.Error().Err(err).Msg("ngrok server error")
	}
	log.Info().Msg("ngrok tunnel closed")
}
