package port_reader

import (
	"context"
	"time"

	"github.com/NotCoffee418/humidity_monitor/pkg/decoder"
	"github.com/NotCoffee418/humidity_monitor/pkg/serialport"
	"github.com/rs/zerolog/log"
)

// Initialize a reader over channel publishing into sink.
// Zero option values fall back to the package defaults.
func NewReader(channel *LockedChannel, sink *LatestValue, opts Options) *Reader {
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.MaxConsecutiveTimeouts <= 0 {
		opts.MaxConsecutiveTimeouts = DefaultMaxConsecutiveTimeouts
	}
	if opts.IsTimeout == nil {
		opts.IsTimeout = serialport.IsTimeout
	}
	return &Reader{
		channel: channel,
		sink:    sink,
		opts:    opts,
	}
}

// Run reads and publishes values until ctx is done, the device stays quiet
// for too many consecutive reads, or a read fails.
// Blocks the calling goroutine. Never closes the channel.
func (r *Reader) Run(ctx context.Context) ExitStatus {
	dec := decoder.New()
	buf := make([]byte, r.opts.BufferSize)
	consecutiveTimeouts := 0
	published := 0

	exit := func(reason ExitReason, err error) ExitStatus {
		status := ExitStatus{
			Reason:   reason,
			Err:      err,
			Timeouts: consecutiveTimeouts,
			Values:   published,
		}
		log.Info().
			Stringer("reason", reason).
			Int("values", published).
			AnErr("error", err).
			Msg("Reader stopped")
		return status
	}

	for {
		if ctx.Err() != nil {
			return exit(ExitStopped, nil)
		}

		n, err := r.channel.Read(buf)
		if n > 0 {
			published += r.publish(dec.FeedRecords(buf[:n]))
			consecutiveTimeouts = 0
		}

		if err != nil {
			// Closing the port to stop us surfaces as a read error
			if ctx.Err() != nil {
				return exit(ExitStopped, nil)
			}

			if !r.opts.IsTimeout(err) {
				log.Warn().Err(err).Msg("Read error, stopping reader")
				return exit(ExitFailed, err)
			}

			consecutiveTimeouts++
			log.Debug().
				Err(err).
				Msgf("Read timeout (%d/%d)", consecutiveTimeouts, r.opts.MaxConsecutiveTimeouts)
			if consecutiveTimeouts >= r.opts.MaxConsecutiveTimeouts {
				return exit(ExitTimedOut, err)
			}
		}

		if !sleep(ctx, r.opts.PollInterval) {
			return exit(ExitStopped, nil)
		}
	}
}

func (r *Reader) publish(records []decoder.Record) int {
	for _, record := range records {
		if record.Malformed {
			log.Debug().Str("record", record.Label).Msg("Record without separator, publishing empty value")
		}
		r.sink.Set(record.Value)
		if r.opts.OnValue != nil {
			r.opts.OnValue(record.Value)
		}
	}
	return len(records)
}

// sleep returns false when ctx ends first.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
