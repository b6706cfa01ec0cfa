package bus

import (
	"context"
	"math"
	"time"
)

// RunWithReconnect connects the client, retrying failed connection
// attempts with exponential backoff (capped at 30s). Once a connection
// succeeds it blocks until ctx is done and then disconnects; a
// connection that drops after that is not detected and not
// re-established.
func (c *Client) RunWithReconnect(ctx context.Context) {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}
		if err := c.Connect(ctx); err != nil {
			c.log.Warn("bus: connect failed, retrying", "attempt", attempt, "error", err)
			c.sleep(ctx, attempt)
			attempt++
			continue
		}
		attempt = 0
		<-ctx.Done()
		_ = c.Disconnect(context.Background())
		return
	}
}

func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Min(math.Pow(2, float64(attempt)), 30)) * time.Second
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
