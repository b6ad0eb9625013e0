package reports

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// DefaultCapacity is the buffer size of a report channel.
const DefaultCapacity = 100

var (
	// ErrClosed is returned by Send after Close and by Recv once the
	// channel is closed and drained.
	ErrClosed = errors.New("reports: channel closed")
	// ErrNoChannel is returned by Send on a nil *Sender so a report is
	// never lost without the caller knowing.
	ErrNoChannel = errors.New("reports: no channel")
)

// NewChannel creates a bounded report channel. Any number of goroutines
// may send through the Sender; the SharedReceiver hands out messages one
// exclusive hold at a time.
func NewChannel(capacity int) (*Sender, *SharedReceiver) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	state := &channelState{
		ch:     make(chan string, capacity),
		closed: make(chan struct{}),
	}
	return &Sender{state: state}, &SharedReceiver{state: state, hold: semaphore.NewWeighted(1)}
}

// NewChannelFromConfig creates a channel sized by cfg.
func NewChannelFromConfig(cfg Config) (*Sender, *SharedReceiver) {
	cfg.ApplyDefaults()
	return NewChannel(cfg.Capacity)
}

type channelState struct {
	ch        chan string
	closeOnce sync.Once
	closed    chan struct{}
}

// Sender is the cloneable producer side. Its zero value is not usable;
// Send on a nil *Sender fails with ErrNoChannel.
type Sender struct {
	state *channelState
}

// Send enqueues msg, blocking while the buffer is full. It fails when ctx
// ends first or the channel was closed; a nil Sender always fails.
func (s *Sender) Send(ctx context.Context, msg string) error {
	if s == nil {
		return ErrNoChannel
	}
	select {
	case <-s.state.closed:
		return ErrClosed
	default:
	}
	select {
	case s.state.ch <- msg:
		return nil
	case <-s.state.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reportf formats and sends a report.
func (s *Sender) Reportf(ctx context.Context, format string, args ...any) error {
	return s.Send(ctx, fmt.Sprintf(format, args...))
}

// Close stops further sends. Buffered reports remain receivable.
func (s *Sender) Close() {
	if s == nil {
		return
	}
	s.state.closeOnce.Do(func() { close(s.state.closed) })
}

// Len returns the number of buffered reports.
func (s *Sender) Len() int {
	if s == nil {
		return 0
	}
	return len(s.state.ch)
}

// SharedReceiver is the single consumer side. It may be shared between
// goroutines, but only one holds it at a time.
type SharedReceiver struct {
	state *channelState
	hold  *semaphore.Weighted
}

// Recv acquires the receiver, takes one report, and releases it. It blocks
// until a report arrives, the channel is closed and drained, or ctx ends.
func (r *SharedReceiver) Recv(ctx context.Context) (string, error) {
	if err := r.hold.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer r.hold.Release(1)

	select {
	case msg := <-r.state.ch:
		return msg, nil
	case <-ctx.Done():
		return "", ctx.Err()
	case <-r.state.closed:
	}

	// Closed: drain anything still buffered before reporting ErrClosed.
	select {
	case msg := <-r.state.ch:
		return msg, nil
	default:
		return "", ErrClosed
	}
}

// TryRecv returns a buffered report without blocking. ok is false when
// nothing is buffered or another goroutine holds the receiver.
func (r *SharedReceiver) TryRecv() (msg string, ok bool) {
	if !r.hold.TryAcquire(1) {
		return "", false
	}
	defer r.hold.Release(1)
	select {
	case msg = <-r.state.ch:
		return msg, true
	default:
		return "", false
	}
}
