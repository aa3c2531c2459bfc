package supervisor

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/soulframe/soulframe/pkg/command"
)

func TestStreamCommands_OneJSONLinePerCommand(t *testing.T) {
	ch := make(chan *command.Command, 4)
	ch <- command.MustNew(command.TypeSetImage, command.SetImageData{Path: "/gallery/a/image.jpg"})
	ch <- command.MustNew(command.TypeSetVolume, command.SetVolumeData{Stream: "ambient", Volume: 0.5})
	ch <- command.MustNew(command.TypeShutdown, nil)
	close(ch)

	var buf bytes.Buffer
	streamCommands(&buf, ch, "display")

	var types []command.Type
	scanner := bufio.NewScanner(&buf)
	for scanner.Scan() {
		cmd, err := command.Parse(scanner.Bytes())
		if err != nil {
			t.Fatalf("line not a valid command: %v", err)
		}
		types = append(types, cmd.Type)
	}
	want := []command.Type{command.TypeSetImage, command.TypeSetVolume, command.TypeShutdown}
	if len(types) != len(want) {
		t.Fatalf("got %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("line %d: got %q, want %q", i, types[i], want[i])
		}
	}
}

type fakeChild struct {
	id    string
	alive bool
}

func (f *fakeChild) ID() string  { return f.id }
func (f *fakeChild) Alive() bool { return f.alive }

func TestGroup_DeadChild(t *testing.T) {
	display := &fakeChild{id: "display", alive: true}
	audio := &fakeChild{id: "audio", alive: true}
	g := NewGroup(display, audio)

	if id, dead := g.DeadChild(); dead {
		t.Fatalf("all alive, got dead child %q", id)
	}

	audio.alive = false
	id, dead := g.DeadChild()
	if !dead || id != "audio" {
		t.Errorf("got (%q, %v), want (audio, true)", id, dead)
	}
}

func TestProcess_NotStarted(t *testing.T) {
	p := NewProcess("display", "/nonexistent/bin")
	if p.Alive() {
		t.Error("unstarted process reported alive")
	}
	if err := p.Stop(0); err != ErrNotStarted {
		t.Errorf("got %v, want ErrNotStarted", err)
	}
}
