package probe

import (
	"context"
	"fmt"

	"github.com/sourcegraph/conc"
	"github.com/wricardo/wsprobe/shutdown"
	"github.com/wricardo/wsprobe/transport/websocket"
)

// Listen prints every inbound frame until sig is set or the peer closes the
// connection, answering keepalive probes concurrently. The keepalive task is
// cancelled and awaited before the connection is closed. On return sig is
// set. Only a failed handshake is returned as an error.
func (c *Client) Listen(sig *shutdown.Signal) error {
	log := c.log.With().Str("url", c.url).Str("mode", ModeListen.String()).Logger()

	conn, err := c.dial(sig.Context(), c.url, ModeListen)
	if err != nil {
		return c.dialFailed(log, sig, err)
	}
	log.Info().Msg("connected")

	ctx, cancel := context.WithCancel(sig.Context())
	var keepalive conc.WaitGroup
	keepalive.Go(func() {
		c.keepalive(ctx, conn)
	})

	c.readLoop(sig, conn)

	cancel()
	keepalive.Wait()

	if err := conn.Close(); err != nil {
		log.Debug().Err(err).Msg("close")
	}
	sig.Set()
	log.Info().Msg("disconnected")
	return nil
}

func (c *Client) readLoop(sig *shutdown.Signal, conn Conn) {
	for !sig.IsSet() {
		frame, status := conn.ReadWithin(sig.Context(), c.timing.ReadTimeout)
		switch status {
		case websocket.Delivered:
			fmt.Fprintln(c.out, frame)
		case websocket.TimedOut:
			// nothing arrived; re-check the signal
		case websocket.Closed:
			reason := conn.CloseReason()
			c.log.Warn().Str("url", c.url).Err(reason).Msg(closeEvent(reason))
			return
		}
	}
}
