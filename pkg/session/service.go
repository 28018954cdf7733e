package session

import (
	"context"
	"time"

	"github.com/NotCoffee418/humidity_monitor/pkg/port_reader"
	"github.com/NotCoffee418/humidity_monitor/pkg/serialport"
	"github.com/rs/zerolog/log"
)

func NewManager(opts Options) *Manager {
	if opts.Open == nil {
		opts.Open = serialport.Open
	}
	if opts.Serial.Driver == "" {
		opts.Serial.Driver = serialport.DefaultDriver
	}
	return &Manager{
		opts:   opts,
		latest: port_reader.NewLatestValue(),
	}
}

// Open the device and start the reader loop in the background.
// An empty device falls back to the configured one.
func (m *Manager) Open(device string) error {
	cfg := m.opts.Serial
	if device != "" {
		cfg.Device = device
	}
	if cfg.Device == "" {
		return ErrNoPortSelected
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil {
		return ErrAlreadyOpen
	}

	port, err := m.opts.Open(cfg)
	if err != nil {
		log.Error().Err(err).Str("device", cfg.Device).Msg("Failed to open port")
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &activeSession{
		device:  cfg.Device,
		port:    port,
		channel: port_reader.NewLockedChannel(port),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	if m.opts.Recorder != nil {
		id, err := m.opts.Recorder.SessionStarted(cfg.Device, cfg.Driver, time.Now())
		if err != nil {
			log.Warn().Err(err).Msg("Failed to record session start")
		}
		s.recordID = id
	}
	m.active = s

	reader := port_reader.NewReader(s.channel, m.latest, m.opts.Reader)
	go func() {
		status := reader.Run(ctx)
		m.finish(s, status)
	}()
	return nil
}

// Close stops the reader loop, releases the port and waits for the loop to exit.
// Closing when nothing is open is a no-op.
func (m *Manager) Close() error {
	m.mu.Lock()
	s := m.active
	m.mu.Unlock()
	if s == nil {
		return nil
	}

	s.cancel()
	// Unblocks a read that is still waiting on the device
	err := s.closePort()
	<-s.done
	return err
}

// SendIdentifier writes id to the device as raw bytes. No reply is awaited.
func (m *Manager) SendIdentifier(id string) error {
	m.mu.Lock()
	s := m.active
	m.mu.Unlock()
	if s == nil {
		return ErrNotOpen
	}

	if _, err := s.channel.Write([]byte(id)); err != nil {
		log.Error().Err(err).Str("device", s.device).Msg("Failed to send identifier")
		return err
	}
	log.Info().Str("device", s.device).Str("identifier", id).Msg("Sent identifier")
	return nil
}

// Latest returns the last published value. Never blocks on the reader loop.
func (m *Manager) Latest() port_reader.Snapshot {
	return m.latest.Snapshot()
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	status := Status{
		Driver:   m.opts.Serial.Driver,
		LastExit: m.lastExit,
	}
	if m.active != nil {
		status.Open = true
		status.Device = m.active.device
	}
	return status
}

// Done is closed when the current session ends.
// Returns a closed channel when no session is open.
func (m *Manager) Done() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		done := make(chan struct{})
		close(done)
		return done
	}
	return m.active.done
}

func (m *Manager) finish(s *activeSession, status port_reader.ExitStatus) {
	s.closePort()

	if m.opts.Recorder != nil && s.recordID != 0 {
		if err := m.opts.Recorder.SessionEnded(s.recordID, time.Now(), status); err != nil {
			log.Warn().Err(err).Msg("Failed to record session end")
		}
	}

	m.mu.Lock()
	m.lastExit = &status
	if m.active == s {
		m.active = nil
	}
	m.mu.Unlock()

	log.Info().Str("device", s.device).Stringer("exit", status).Msg("Session ended")
	close(s.done)
}

func (s *activeSession) closePort() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.port.Close()
	})
	return s.closeErr
}
