package port_reader

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/NotCoffee418/humidity_monitor/pkg/serialport"
	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/require"
)

type readStep struct {
	data string
	err  error
}

// fakeChannel replays scripted reads, then returns zero bytes forever.
type fakeChannel struct {
	mu     sync.Mutex
	steps  []readStep
	reads  int
	writes []string
	onRead func()
}

func (f *fakeChannel) Read(p []byte) (int, error) {
	f.mu.Lock()
	f.reads++
	onRead := f.onRead
	var step readStep
	if len(f.steps) > 0 {
		step = f.steps[0]
		f.steps = f.steps[1:]
	}
	f.mu.Unlock()

	if onRead != nil {
		onRead()
	}
	return copy(p, step.data), step.err
}

func (f *fakeChannel) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, string(p))
	return len(p), nil
}

func (f *fakeChannel) readCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

func timeouts(n int) []readStep {
	steps := make([]readStep, n)
	for i := range steps {
		steps[i] = readStep{err: serialport.ErrReadTimeout}
	}
	return steps
}

func fastOptions() Options {
	return Options{PollInterval: time.Millisecond}
}

func runReader(t *testing.T, steps []readStep, opts Options) (ExitStatus, *fakeChannel, *LatestValue) {
	t.Helper()
	channel := &fakeChannel{steps: steps}
	sink := NewLatestValue()
	reader := NewReader(NewLockedChannel(channel), sink, opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	status := reader.Run(ctx)
	require.NotEqual(t, ExitStopped, status.Reason, "reader did not terminate on its own")
	return status, channel, sink
}

func TestRunPublishesLatestValue(t *testing.T) {
	defer leaktest.Check(t)()

	var seen []string
	opts := fastOptions()
	opts.OnValue = func(v string) { seen = append(seen, v) }

	steps := []readStep{
		{data: "Humidity:4"},
		{data: "1%Humi"},
		{data: "dity: 42 %Humidity:43%"},
		{err: errors.New("device removed")},
	}
	status, _, sink := runReader(t, steps, opts)

	require.Equal(t, ExitFailed, status.Reason)
	require.Equal(t, 3, status.Values)
	require.Equal(t, []string{"41", "42", "43"}, seen)

	snap := sink.Snapshot()
	require.Equal(t, "43", snap.Value)
	require.Equal(t, uint64(3), snap.Sequence)
	require.False(t, snap.UpdatedAt.IsZero())
}

func TestRunStopsAfterConsecutiveTimeouts(t *testing.T) {
	defer leaktest.Check(t)()

	status, channel, _ := runReader(t, timeouts(DefaultMaxConsecutiveTimeouts+3), fastOptions())

	require.Equal(t, ExitTimedOut, status.Reason)
	require.ErrorIs(t, status.Err, serialport.ErrReadTimeout)
	require.Equal(t, DefaultMaxConsecutiveTimeouts, status.Timeouts)
	require.Equal(t, DefaultMaxConsecutiveTimeouts, channel.readCount())
}

func TestRunSuccessfulReadResetsTimeouts(t *testing.T) {
	defer leaktest.Check(t)()

	var steps []readStep
	steps = append(steps, timeouts(4)...)
	steps = append(steps, readStep{data: "Humidity:50%"})
	steps = append(steps, timeouts(4)...)
	steps = append(steps, readStep{data: "Humidity:51%"})
	steps = append(steps, timeouts(5)...)

	status, channel, sink := runReader(t, steps, fastOptions())

	require.Equal(t, ExitTimedOut, status.Reason)
	require.Equal(t, 2, status.Values)
	require.Equal(t, "51", sink.Get())
	require.Equal(t, len(steps), channel.readCount())
}

func TestRunZeroByteReadIsNotAFailure(t *testing.T) {
	defer leaktest.Check(t)()

	var steps []readStep
	steps = append(steps, timeouts(4)...)
	steps = append(steps, readStep{}, readStep{}, readStep{})
	steps = append(steps, readStep{err: serialport.ErrReadTimeout})

	status, channel, sink := runReader(t, steps, fastOptions())

	// Empty reads neither reset nor add to the count
	require.Equal(t, ExitTimedOut, status.Reason)
	require.Equal(t, len(steps), channel.readCount())
	require.Equal(t, uint64(0), sink.Snapshot().Sequence)
}

func TestRunFatalErrorIgnoresTimeoutCount(t *testing.T) {
	defer leaktest.Check(t)()

	fatal := errors.New("input/output error")
	steps := append(timeouts(4), readStep{err: fatal})

	status, channel, _ := runReader(t, steps, fastOptions())

	require.Equal(t, ExitFailed, status.Reason)
	require.ErrorIs(t, status.Err, fatal)
	require.Equal(t, 5, channel.readCount())
}

func TestRunFatalErrorOnFirstRead(t *testing.T) {
	defer leaktest.Check(t)()

	status, channel, _ := runReader(t, []readStep{{err: serialport.ErrPortClosed}}, fastOptions())
	require.Equal(t, ExitFailed, status.Reason)
	require.Equal(t, 1, channel.readCount())
}

func TestRunDataWithErrorPublishesFirst(t *testing.T) {
	defer leaktest.Check(t)()

	steps := []readStep{{data: "Humidity:60%", err: errors.New("unplugged")}}
	status, _, sink := runReader(t, steps, fastOptions())

	require.Equal(t, ExitFailed, status.Reason)
	require.Equal(t, "60", sink.Get())
}

func TestRunMalformedRecordPublishesEmpty(t *testing.T) {
	defer leaktest.Check(t)()

	steps := []readStep{{data: "Humidity:70%"}, {data: "noop%"}, {err: errors.New("gone")}}
	_, _, sink := runReader(t, steps, fastOptions())

	snap := sink.Snapshot()
	require.Equal(t, "", snap.Value)
	require.Equal(t, uint64(2), snap.Sequence)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	defer leaktest.Check(t)()

	channel := &fakeChannel{}
	reader := NewReader(NewLockedChannel(channel), NewLatestValue(), Options{PollInterval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan ExitStatus, 1)
	go func() { done <- reader.Run(ctx) }()

	require.Eventually(t, func() bool { return channel.readCount() == 1 }, time.Second, time.Millisecond)
	cancel()

	select {
	case status := <-done:
		require.Equal(t, ExitStopped, status.Reason)
		require.NoError(t, status.Err)
	case <-time.After(time.Second):
		t.Fatal("reader did not stop after cancel")
	}
}

func TestRunErrorAfterCancelIsStop(t *testing.T) {
	defer leaktest.Check(t)()

	ctx, cancel := context.WithCancel(context.Background())
	channel := &fakeChannel{steps: []readStep{{err: serialport.ErrPortClosed}}}
	channel.onRead = cancel

	status := NewReader(NewLockedChannel(channel), NewLatestValue(), fastOptions()).Run(ctx)
	require.Equal(t, ExitStopped, status.Reason)
}

func TestRunDoesNotHoldChannelWhileSleeping(t *testing.T) {
	defer leaktest.Check(t)()

	channel := &fakeChannel{}
	locked := NewLockedChannel(channel)
	reader := NewReader(locked, NewLatestValue(), Options{PollInterval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		reader.Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	require.Eventually(t, func() bool { return channel.readCount() == 1 }, time.Second, time.Millisecond)

	written := make(chan struct{})
	go func() {
		locked.Write([]byte("20231234"))
		close(written)
	}()
	select {
	case <-written:
	case <-time.After(time.Second):
		t.Fatal("write blocked while reader was sleeping")
	}
}

func TestNewReaderDefaults(t *testing.T) {
	r := NewReader(NewLockedChannel(&fakeChannel{}), NewLatestValue(), Options{})
	require.Equal(t, DefaultBufferSize, r.opts.BufferSize)
	require.Equal(t, DefaultPollInterval, r.opts.PollInterval)
	require.Equal(t, DefaultMaxConsecutiveTimeouts, r.opts.MaxConsecutiveTimeouts)
	require.True(t, r.opts.IsTimeout(serialport.ErrReadTimeout))
}

func TestExitStatusString(t *testing.T) {
	require.Equal(t, "stopped", ExitStatus{Reason: ExitStopped}.String())
	require.Equal(t, "failed: boom", ExitStatus{Reason: ExitFailed, Err: errors.New("boom")}.String())
	require.Equal(t, "timed_out after 5 consecutive timeouts", ExitStatus{
		Reason:   ExitTimedOut,
		Err:      errors.New("serial read timeout"),
		Timeouts: 5,
	}.String())
	require.Equal(t, "ExitReason(9)", ExitReason(9).String())
}
