package port_reader

import (
	"fmt"
	"sync"
	"time"
)

const (
	DefaultBufferSize             = 1024
	DefaultPollInterval           = time.Second
	DefaultMaxConsecutiveTimeouts = 5
)

// ByteChannel is a duplex conduit to the device.
// Read waits a bounded time and may return zero bytes.
type ByteChannel interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
}

// LockedChannel serializes every I/O call on a ByteChannel.
// The lock covers a single call only.
type LockedChannel struct {
	mu      sync.Mutex
	channel ByteChannel
}

// LatestValue holds the most recently decoded value.
// The reader loop is the only writer, any number of goroutines may read.
type LatestValue struct {
	mu        sync.RWMutex
	value     string
	updatedAt time.Time
	sequence  uint64
}

// Snapshot is a copy of LatestValue at one point in time.
// Sequence is 0 until the first value is published.
type Snapshot struct {
	Value     string
	UpdatedAt time.Time
	Sequence  uint64
}

type Options struct {
	BufferSize             int
	PollInterval           time.Duration
	MaxConsecutiveTimeouts int

	// Decides which read errors are transient. Defaults to serialport.IsTimeout.
	IsTimeout func(error) bool

	// Called after each value is published. Runs on the reader goroutine.
	OnValue func(value string)
}

type Reader struct {
	channel *LockedChannel
	sink    *LatestValue
	opts    Options
}

type ExitReason int

const (
	// The owner asked the loop to stop.
	ExitStopped ExitReason = iota
	// Too many consecutive read timeouts, the device went quiet.
	ExitTimedOut
	// A read failed with a non-timeout error.
	ExitFailed
)

func (r ExitReason) String() string {
	switch r {
	case ExitStopped:
		return "stopped"
	case ExitTimedOut:
		return "timed_out"
	case ExitFailed:
		return "failed"
	default:
		return fmt.Sprintf("ExitReason(%d)", int(r))
	}
}

// ExitStatus tells the owner why a reader loop ended.
type ExitStatus struct {
	Reason   ExitReason
	Err      error
	Timeouts int
	Values   int
}

func (s ExitStatus) String() string {
	if s.Reason == ExitTimedOut {
		return fmt.Sprintf("%s after %d consecutive timeouts", s.Reason, s.Timeouts)
	}
	if s.Err != nil {
		return fmt.Sprintf("%s: %v", s.Reason, s.Err)
	}
	return s.Reason.String()
}
