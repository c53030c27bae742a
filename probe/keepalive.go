package probe

import (
	"context"
	"time"
)

// keepalive issues one probe at a time until ctx is cancelled. A probe waits
// for its acknowledgment with no bound other than ctx; cancellation abandons
// it quietly. Other probe errors are logged and the loop carries on.
func (c *Client) keepalive(ctx context.Context, conn Conn) {
	for ctx.Err() == nil {
		start := time.Now()
		err := conn.Ping(ctx)

		switch {
		case ctx.Err() != nil:
			c.log.Debug().Msg("probe abandoned")
			return

		case err != nil:
			c.log.Warn().Err(err).Msg("probe failed")
			if !sleepCtx(ctx, c.timing.ProbeRetryDelay) {
				return
			}

		default:
			c.log.Info().Dur("rtt", time.Since(start)).Msg("probe acknowledged")
			if !sleepCtx(ctx, c.timing.ProbeInterval) {
				return
			}
		}
	}
}

// sleepCtx waits for d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
