package transport

import (
	"context"
	"time"
)

// PollUntil generalizes WaitFor.{h,cpp}: it repeatedly evaluates cond at
// the given interval until cond returns true, the timeout elapses, or
// ctx is canceled. It returns true if cond became true before the
// deadline. The original pumps TcpServer::work() once per iteration
// (single-threaded cooperative I/O); Go's net package services each
// connection on its own goroutine, so no explicit pump is needed here,
// but the polling cadence (a bounded sleep between checks) is kept to
// match the cooperative, non-busy-looping style of the original.
func PollUntil(ctx context.Context, timeout, interval time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for {
		if cond() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(interval):
		}
	}
}

// WaitForClosedTCP blocks until conn reports itself closed or the
// timeout elapses, grounded on the driver's wait_for_closed_tcp contract
// (spec.md §4.5/§8).
func WaitForClosedTCP(ctx context.Context, conn *Connection, timeout time.Duration) bool {
	return PollUntil(ctx, timeout, 20*time.Millisecond, conn.IsClosed)
}
