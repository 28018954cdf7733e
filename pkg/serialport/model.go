package serialport

import (
	"errors"
	"io"
	"time"
)

const (
	DriverBugst   = "bugst"
	DriverJacobsa = "jacobsa"
	DriverTarm    = "tarm"
	DefaultDriver = DriverBugst

	DefaultBaudRate    = 9600
	DefaultReadTimeout = 1000 * time.Millisecond
)

var (
	ErrReadTimeout   = errors.New("serial read timeout")
	ErrPortClosed    = errors.New("serial port closed")
	ErrOpenFailed    = errors.New("failed to open serial port")
	ErrUnknownDriver = errors.New("unknown serial driver")
	ErrNoDevice      = errors.New("no serial device selected")
)

// Config describes how to open a device. Zero values fall back to defaults.
type Config struct {
	Device      string
	BaudRate    int
	ReadTimeout time.Duration
	Driver      string
}

// Port is an open device. Read waits at most the configured read timeout
// and reports an elapsed wait as ErrReadTimeout.
type Port interface {
	io.ReadWriteCloser
}

// PortInfo describes a port found on the system.
type PortInfo struct {
	Name         string `json:"name"`
	IsUSB        bool   `json:"is_usb"`
	VID          string `json:"vid,omitempty"`
	PID          string `json:"pid,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
	Product      string `json:"product,omitempty"`
}
