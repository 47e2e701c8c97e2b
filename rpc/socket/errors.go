package socket

import (
	"context"
	"errors"
	xunix "golang.org/x/sys/unix"
	"os"
)

var (
	// ErrIllegalRole is returned when bind is called on a client or connect on a server
	ErrIllegalRole = errors.New("illegal socket role")

	// ErrAlreadyBound is returned by a second call to Bind
	ErrAlreadyBound = errors.New("socket is already bound")

	// ErrClosed is returned by operations on a closed socket
	ErrClosed = errors.New("socket is closed")
)

// ignorableErrnos are transport errors that are expected in a peer-to-peer
// topology (peers come and go) and do not indicate a broken socket
var ignorableErrnos = []error{
	xunix.ECONNREFUSED,
	xunix.ECONNRESET,
	xunix.ETIMEDOUT,
	xunix.EHOSTUNREACH,
	xunix.ENETUNREACH,
	xunix.ENETDOWN,
	xunix.EPIPE,
	xunix.ENOENT,
}

// IsIgnorable reports whether err is a transport error that only warrants an
// "ignored error" event
func IsIgnorable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	for _, errno := range ignorableErrnos {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}
