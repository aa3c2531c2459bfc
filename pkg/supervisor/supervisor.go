// Package supervisor launches and monitors the display and audio child
// processes. Commands reach a child as JSON lines on its stdin; a child
// that exits for any reason is reported dead so the coordinator can shut
// the installation down rather than run half-blind.
package supervisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/soulframe/soulframe/internal/log"
	"github.com/soulframe/soulframe/pkg/command"
)

// ErrNotStarted is returned by operations that need a running process.
var ErrNotStarted = errors.New("process not started")

// Child is a supervised subsystem.
type Child interface {
	// ID names the child ("display", "audio").
	ID() string

	// Alive reports whether the child is still running.
	Alive() bool
}

// Process runs one child subsystem as an OS process.
type Process struct {
	id   string
	path string
	args []string
	sink *command.ChannelSink

	mu      sync.Mutex
	cmd     *exec.Cmd
	started bool
	done    chan struct{}
	exitErr error
}

// sinkBuffer bounds how many commands can queue for a slow child before
// the backpressure policy starts dropping continuous updates.
const sinkBuffer = 64

// NewProcess creates a process wrapper. Nothing runs until Start.
func NewProcess(id, path string, args ...string) *Process {
	return &Process{
		id:   id,
		path: path,
		args: args,
		sink: command.NewChannelSink(id, sinkBuffer),
	}
}

// ID returns the child's name.
func (p *Process) ID() string {
	return p.id
}

// Sink returns the command sink feeding this child's stdin.
func (p *Process) Sink() command.Sink {
	return p.sink
}

// Start launches the child and begins streaming commands to it.
func (p *Process) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return fmt.Errorf("child %s already started", p.id)
	}

	cmd := exec.CommandContext(ctx, p.path, p.args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe for %s: %w", p.id, err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", p.id, err)
	}

	p.cmd = cmd
	p.started = true
	p.done = make(chan struct{})
	log.Info("child started", "id", p.id, "pid", cmd.Process.Pid, "path", p.path)

	go func() {
		streamCommands(stdin, p.sink.C(), p.id)
		stdin.Close()
	}()
	go func() {
		err := cmd.Wait()
		p.mu.Lock()
		p.exitErr = err
		p.mu.Unlock()
		close(p.done)
		if err != nil {
			log.Warn("child exited", "id", p.id, "error", err)
		} else {
			log.Info("child exited", "id", p.id)
		}
	}()
	return nil
}

// Alive reports whether the child process is still running.
func (p *Process) Alive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return false
	}
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// Stop shuts the child down: a shutdown command, then stdin EOF, then a
// bounded wait before killing. Returns the child's exit error, if any.
func (p *Process) Stop(timeout time.Duration) error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return ErrNotStarted
	}
	done := p.done
	cmd := p.cmd
	p.mu.Unlock()

	p.sink.Send(command.MustNew(command.TypeShutdown, nil))
	p.sink.Close()

	select {
	case <-done:
	case <-time.After(timeout):
		log.Warn("child did not exit in time, killing", "id", p.id, "timeout", timeout)
		cmd.Process.Kill()
		<-done
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitErr
}

// streamCommands writes each command as one JSON line until the channel
// closes. Encode failures on a single command are logged and skipped; a
// broken pipe ends the stream.
func streamCommands(w io.Writer, ch <-chan *command.Command, id string) {
	enc := json.NewEncoder(w)
	for cmd := range ch {
		if err := enc.Encode(cmd); err != nil {
			log.Error("command write failed", "child", id, "type", string(cmd.Type), "error", err)
			if errors.Is(err, io.ErrClosedPipe) || errors.Is(err, os.ErrClosed) {
				return
			}
		}
	}
}

// Group is a set of supervised children checked together.
type Group struct {
	children []Child
}

// NewGroup creates a group over the given children.
func NewGroup(children ...Child) *Group {
	return &Group{children: children}
}

// DeadChild returns the ID of the first dead child, if any.
func (g *Group) DeadChild() (string, bool) {
	for _, c := range g.children {
		if !c.Alive() {
			return c.ID(), true
		}
	}
	return "", false
}
