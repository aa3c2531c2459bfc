package command

import "sync"

// RecordingSink is a Sink for tests. It records every command sent.
type RecordingSink struct {
	name string

	mu       sync.Mutex
	commands []*Command
	closed   bool
}

// NewRecordingSink creates an empty recording sink.
func NewRecordingSink(name string) *RecordingSink {
	return &RecordingSink{name: name}
}

// Send records the command.
func (s *RecordingSink) Send(cmd *Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	s.commands = append(s.commands, cmd)
	return nil
}

// Name returns the sink's name.
func (s *RecordingSink) Name() string {
	return s.name
}

// Close marks the sink closed.
func (s *RecordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Commands returns a snapshot of everything recorded so far.
func (s *RecordingSink) Commands() []*Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Command, len(s.commands))
	copy(out, s.commands)
	return out
}

// Types returns the recorded command types in order.
func (s *RecordingSink) Types() []Type {
	s.mu.Lock()
	defer s.mu.Unlock()
	types := make([]Type, len(s.commands))
	for i, cmd := range s.commands {
		types[i] = cmd.Type
	}
	return types
}

// CountOf returns how many commands of the given type were recorded.
func (s *RecordingSink) CountOf(t Type) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, cmd := range s.commands {
		if cmd.Type == t {
			n++
		}
	}
	return n
}

// Last returns the most recent command of the given type, or nil.
func (s *RecordingSink) Last(t Type) *Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.commands) - 1; i >= 0; i-- {
		if s.commands[i].Type == t {
			return s.commands[i]
		}
	}
	return nil
}

// Reset discards all recorded commands.
func (s *RecordingSink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands = nil
}
