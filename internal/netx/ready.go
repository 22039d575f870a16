// Package netx provides a bounded readiness wait over a single connection.
//
// The Go runtime multiplexes all socket reads through the netpoller
// (select/poll/epoll depending on the platform), so readiness is expressed
// here as a deadline-bounded read: the caller gets either a frame or a
// timeout signal, and can re-check its liveness flag between attempts.
package netx

import (
	"errors"
	"net"
	"time"
)

// ErrWaitTimeout reports that no data arrived within the wait window.
// It is a normal outcome for a polling receive loop, not a failure.
var ErrWaitTimeout = errors.New("readiness wait timed out")

// ReadFrame reads one transmit's worth of bytes from conn into buf, waiting
// at most timeout for data to arrive. It returns the number of bytes read,
// ErrWaitTimeout if the window elapsed with no data, or the underlying I/O
// error (io.EOF on peer close).
func ReadFrame(conn net.Conn, buf []byte, timeout time.Duration) (int, error) {
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return 0, err
	}
	n, err := conn.Read(buf)
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return 0, ErrWaitTimeout
		}
		return n, err
	}
	return n, nil
}
