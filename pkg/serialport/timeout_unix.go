//go:build unix

package serialport

import (
	"errors"

	"golang.org/x/sys/unix"
)

func isTransientErrno(err error) bool {
	return errors.Is(err, unix.ETIMEDOUT) || errors.Is(err, unix.EAGAIN)
}

// A signal landed before any byte arrived. The read is retried.
func isInterrupted(err error) bool {
	return errors.Is(err, unix.EINTR)
}
