package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/NotCoffee418/humidity_monitor/pkg/port_reader"
	"github.com/NotCoffee418/humidity_monitor/pkg/serialport"
)

var (
	ErrNoPortSelected = errors.New("please select a serial port first")
	ErrNotOpen        = errors.New("please open a serial port first")
	ErrAlreadyOpen    = errors.New("serial port already open")
)

// Recorder keeps a log of session lifecycles. Failures are logged, never fatal.
type Recorder interface {
	SessionStarted(device, driver string, at time.Time) (int64, error)
	SessionEnded(id int64, at time.Time, status port_reader.ExitStatus) error
}

type OpenFunc func(cfg serialport.Config) (serialport.Port, error)

type Options struct {
	Serial   serialport.Config
	Reader   port_reader.Options
	Recorder Recorder

	// Defaults to serialport.Open
	Open OpenFunc
}

// Manager owns at most one open device session at a time.
type Manager struct {
	mu       sync.Mutex
	opts     Options
	latest   *port_reader.LatestValue
	active   *activeSession
	lastExit *port_reader.ExitStatus
}

type Status struct {
	Open     bool
	Device   string
	Driver   string
	LastExit *port_reader.ExitStatus
}

type activeSession struct {
	device    string
	port      serialport.Port
	channel   *port_reader.LockedChannel
	cancel    context.CancelFunc
	done      chan struct{}
	recordID  int64
	closeOnce sync.Once
	closeErr  error
}
