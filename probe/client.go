package probe

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/wricardo/wsprobe/shutdown"
	"github.com/wricardo/wsprobe/transport/websocket"
)

// Conn is the connection handle a session drives. *websocket.Conn satisfies it.
type Conn interface {
	SendWithin(ctx context.Context, msg string, d time.Duration) (websocket.Status, error)
	ReadWithin(ctx context.Context, d time.Duration) (string, websocket.Status)
	Ping(ctx context.Context) error
	CloseReason() error
	Close() error
}

// Mode tells a Dialer what the connection will be used for.
type Mode int

const (
	ModeSend Mode = iota
	ModeListen
)

func (m Mode) String() string {
	if m == ModeListen {
		return "listen"
	}
	return "send"
}

// Dialer opens the connection for a session.
type Dialer func(ctx context.Context, url string, mode Mode) (Conn, error)

// WebSocketDialer returns a Dialer backed by gorilla/websocket.
func WebSocketDialer(handshakeTimeout time.Duration) Dialer {
	return func(ctx context.Context, url string, mode Mode) (Conn, error) {
		conn, err := websocket.Dial(ctx, url, websocket.Options{
			HandshakeTimeout: handshakeTimeout,
			DiscardInbound:   mode == ModeSend,
		})
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

// Timing holds the bounds a session uses to stay responsive to shutdown.
type Timing struct {
	SendTimeout      time.Duration
	RetryDelay       time.Duration
	ReadTimeout      time.Duration
	ProbeInterval    time.Duration
	ProbeRetryDelay  time.Duration
	HandshakeTimeout time.Duration
}

// DefaultTiming returns the standard bounds: 1s send attempts retried every
// 1s, 2s frame reads, back-to-back probes and a 1s pause after a probe error.
func DefaultTiming() Timing {
	return Timing{
		SendTimeout:      time.Second,
		RetryDelay:       time.Second,
		ReadTimeout:      2 * time.Second,
		ProbeInterval:    0,
		ProbeRetryDelay:  time.Second,
		HandshakeTimeout: 10 * time.Second,
	}
}

// Client runs send and listen sessions against one endpoint.
type Client struct {
	url    string
	dial   Dialer
	timing Timing
	out    io.Writer
	log    zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithDialer replaces the gorilla/websocket dialer.
func WithDialer(d Dialer) Option {
	return func(c *Client) { c.dial = d }
}

// WithTiming sets the session bounds.
func WithTiming(t Timing) Option {
	return func(c *Client) { c.timing = t }
}

// WithOutput sets where inbound frames are printed. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(c *Client) { c.out = w }
}

// WithLogger sets the event logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// NewClient creates a client for the WebSocket endpoint at url.
func NewClient(url string, opts ...Option) *Client {
	c := &Client{
		url:    url,
		timing: DefaultTiming(),
		out:    os.Stdout,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.dial == nil {
		c.dial = WebSocketDialer(c.timing.HandshakeTimeout)
	}
	return c
}

// URL returns the endpoint the client dials.
func (c *Client) URL() string {
	return c.url
}

// dialFailed ends a session whose handshake did not complete. A dial cut
// short by shutdown is an ordinary disconnect, not a failure.
func (c *Client) dialFailed(log zerolog.Logger, sig *shutdown.Signal, err error) error {
	interrupted := sig.IsSet()
	sig.Set()
	if interrupted {
		log.Info().Err(err).Msg("shutdown during handshake")
		log.Info().Msg("disconnected")
		return nil
	}
	log.Error().Err(err).Msg("handshake failed")
	log.Info().Msg("disconnected")
	return err
}

// closeEvent words a lost connection for the log.
func closeEvent(reason error) string {
	if websocket.IsPeerClose(reason) {
		return "connection closed by peer"
	}
	return "connection lost"
}
