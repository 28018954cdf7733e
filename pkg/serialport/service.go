package serialport

import (
	"errors"
	"fmt"
	"io"
	"time"

	jacobsa "github.com/jacobsa/go-serial/serial"
	"github.com/rs/zerolog/log"
	tarm "github.com/tarm/serial"
	bugst "go.bug.st/serial"
)

type openFunc func(cfg Config) (Port, error)

var drivers = map[string]openFunc{
	DriverBugst:   openBugst,
	DriverJacobsa: openJacobsa,
	DriverTarm:    openTarm,
}

// Open the device with the configured driver.
func Open(cfg Config) (Port, error) {
	cfg = withDefaults(cfg)
	if cfg.Device == "" {
		return nil, ErrNoDevice
	}

	open, ok := drivers[cfg.Driver]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}

	port, err := open(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrOpenFailed, cfg.Device, err)
	}

	log.Info().
		Str("device", cfg.Device).
		Str("driver", cfg.Driver).
		Int("baudrate", cfg.BaudRate).
		Dur("read_timeout", cfg.ReadTimeout).
		Msg("Connected to serial port")
	return port, nil
}

func withDefaults(cfg Config) Config {
	if cfg.BaudRate <= 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Driver == "" {
		cfg.Driver = DefaultDriver
	}
	return cfg
}

func openBugst(cfg Config) (Port, error) {
	p, err := bugst.Open(cfg.Device, &bugst.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   bugst.NoParity,
		StopBits: bugst.OneStopBit,
	})
	if err != nil {
		return nil, err
	}
	if err := p.SetReadTimeout(cfg.ReadTimeout); err != nil {
		p.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}
	return &boundedPort{rw: p, device: cfg.Device}, nil
}

func openJacobsa(cfg Config) (Port, error) {
	p, err := jacobsa.Open(jacobsa.OpenOptions{
		PortName:              cfg.Device,
		BaudRate:              uint(cfg.BaudRate),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       0,
		InterCharacterTimeout: interCharacterTimeout(cfg.ReadTimeout),
	})
	if err != nil {
		return nil, err
	}
	return &boundedPort{rw: p, device: cfg.Device, eofWait: minEOFWait(cfg.ReadTimeout)}, nil
}

func openTarm(cfg Config) (Port, error) {
	p, err := tarm.OpenPort(&tarm.Config{
		Name:        cfg.Device,
		Baud:        cfg.BaudRate,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, err
	}
	return &boundedPort{rw: p, device: cfg.Device, eofWait: minEOFWait(cfg.ReadTimeout)}, nil
}

// An empty VTIME read only returns once the wait is up. VTIME has a
// resolution of 100ms so allow for rounding.
func minEOFWait(readTimeout time.Duration) time.Duration {
	return readTimeout / 2
}

// VTIME works in tenths of a second and tops out at 25.5s.
func interCharacterTimeout(d time.Duration) uint {
	ms := d.Milliseconds()
	ms = (ms + 99) / 100 * 100
	if ms < 100 {
		ms = 100
	}
	if ms > 25500 {
		ms = 25500
	}
	return uint(ms)
}

// boundedPort turns an elapsed read wait into ErrReadTimeout so every
// driver reports timeouts the same way.
type boundedPort struct {
	rw     io.ReadWriteCloser
	device string

	// Drivers reading through os.File see an empty VTIME read as io.EOF,
	// and a hung up device as an immediate io.EOF. An EOF counts as a
	// timeout only after waiting at least eofWait. Zero means never.
	eofWait time.Duration
}

func (b *boundedPort) Read(p []byte) (int, error) {
	for {
		start := time.Now()
		n, err := b.rw.Read(p)
		if n > 0 {
			return n, nil
		}
		if err == nil {
			return 0, ErrReadTimeout
		}
		if isInterrupted(err) {
			continue
		}
		if errors.Is(err, io.EOF) {
			if b.eofWait > 0 && time.Since(start) >= b.eofWait {
				return 0, ErrReadTimeout
			}
			return 0, fmt.Errorf("%w: %s: %w", ErrPortClosed, b.device, err)
		}
		return 0, classifyError(err)
	}
}

func (b *boundedPort) Write(p []byte) (int, error) {
	n, err := b.rw.Write(p)
	if err != nil {
		return n, classifyError(err)
	}
	return n, nil
}

func (b *boundedPort) Close() error {
	err := b.rw.Close()
	log.Info().Str("device", b.device).Msg("Disconnected from serial port")
	return err
}

func classifyError(err error) error {
	var portErr *bugst.PortError
	if errors.As(err, &portErr) && portErr.Code() == bugst.PortClosed {
		return fmt.Errorf("%w: %w", ErrPortClosed, err)
	}
	return err
}
