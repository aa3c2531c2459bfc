package command

import (
	"errors"
	"io"
	"sync"

	"github.com/soulframe/soulframe/internal/log"
)

// ErrSinkClosed is returned by Send after the sink has been closed.
var ErrSinkClosed = errors.New("command sink closed")

// Sink delivers commands to a display or audio child.
type Sink interface {
	// Send enqueues a command. It never blocks the coordinator tick:
	// implementations buffer, drop, or write asynchronously.
	Send(cmd *Command) error

	// Name returns the sink's name for logging ("display", "audio", "mock").
	Name() string

	// Close releases the sink. Commands sent after Close are rejected.
	io.Closer
}

// ChannelSink buffers commands in a channel for an asynchronous consumer.
//
// Under backpressure the policy favors lifecycle commands: a continuous
// update arriving at a full buffer is dropped outright, while a lifecycle
// command evicts the oldest buffered continuous update to make room. A
// lifecycle command is only lost if the buffer holds nothing droppable,
// which is logged as an error.
type ChannelSink struct {
	name string
	ch   chan *Command

	mu     sync.Mutex
	closed bool
}

// NewChannelSink creates a sink buffering up to capacity commands.
func NewChannelSink(name string, capacity int) *ChannelSink {
	if capacity < 1 {
		capacity = 1
	}
	return &ChannelSink{
		name: name,
		ch:   make(chan *Command, capacity),
	}
}

// C returns the receive side for the consumer goroutine. The channel is
// closed by Close.
func (s *ChannelSink) C() <-chan *Command {
	return s.ch
}

// Send enqueues a command, applying the backpressure policy when full.
func (s *ChannelSink) Send(cmd *Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}

	select {
	case s.ch <- cmd:
		return nil
	default:
	}

	// Buffer full. Continuous updates are re-derived next tick; drop the
	// newcomer and move on.
	if cmd.Type.Continuous() {
		log.Debug("command sink full, dropping continuous update",
			"sink", s.name, "type", string(cmd.Type))
		return nil
	}

	// A lifecycle command must get through. Churn the buffer looking for a
	// continuous update to evict; requeue everything else in order.
	evicted := false
	for i := 0; i < cap(s.ch); i++ {
		select {
		case old := <-s.ch:
			if !evicted && old.Type.Continuous() {
				evicted = true
				continue
			}
			s.ch <- old
		default:
		}
	}
	select {
	case s.ch <- cmd:
		if evicted {
			log.Warn("command sink full, evicted continuous update",
				"sink", s.name, "type", string(cmd.Type))
		}
		return nil
	default:
		log.Error("command sink full of lifecycle commands, dropping",
			"sink", s.name, "type", string(cmd.Type))
		return nil
	}
}

// Name returns the sink's name.
func (s *ChannelSink) Name() string {
	return s.name
}

// Close closes the channel. Pending commands remain readable by the
// consumer until drained.
func (s *ChannelSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.ch)
	return nil
}
