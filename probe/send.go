package probe

import (
	"github.com/wricardo/wsprobe/shutdown"
	"github.com/wricardo/wsprobe/transport/websocket"
)

// Send delivers msg once. Attempts that do not complete within SendTimeout
// are retried every RetryDelay until one succeeds, the peer closes the
// connection, or sig is set. On return the connection is closed and sig is
// set. Only a failed handshake is returned as an error.
func (c *Client) Send(sig *shutdown.Signal, msg string) error {
	log := c.log.With().Str("url", c.url).Str("mode", ModeSend.String()).Logger()

	conn, err := c.dial(sig.Context(), c.url, ModeSend)
	if err != nil {
		return c.dialFailed(log, sig, err)
	}
	log.Info().Msg("connected")

	defer func() {
		if err := conn.Close(); err != nil {
			log.Debug().Err(err).Msg("close")
		}
		sig.Set()
		log.Info().Msg("disconnected")
	}()

	for attempt := 1; !sig.IsSet(); attempt++ {
		status, err := conn.SendWithin(sig.Context(), msg, c.timing.SendTimeout)
		switch status {
		case websocket.Delivered:
			log.Info().Str("frame", msg).Int("attempt", attempt).Msg("message sent")
			return nil

		case websocket.Closed:
			log.Warn().Err(err).Msg(closeEvent(err))
			return nil

		case websocket.TimedOut:
			if sig.IsSet() {
				return nil
			}
			ev := log.Warn().Int("attempt", attempt).Dur("retry_in", c.timing.RetryDelay)
			if err != nil {
				ev = ev.Err(err)
			}
			ev.Msg("send did not complete, retrying")
			if sig.Wait(c.timing.RetryDelay) {
				return nil
			}
		}
	}
	return nil
}
