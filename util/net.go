package util

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

const portProbeInterval = 100 * time.Millisecond

// WaitForTcpPort blocks until something accepts TCP connections on addr, ctx is
// done or timeout elapses. The last dial error is returned on timeout.
func WaitForTcpPort(ctx context.Context, addr string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dialer := net.Dialer{Timeout: portProbeInterval * 5}
	var lastErr error
	for {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		lastErr = err

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%s not accepting connections after %s: %w", addr, timeout, lastErr)
			}
			return ctx.Err()
		case <-time.After(portProbeInterval):
		}
	}
}
