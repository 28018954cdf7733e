//go:build !unix

package serialport

func isTransientErrno(err error) bool {
	return false
}

func isInterrupted(err error) bool {
	return false
}
