package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/soulframe/soulframe/internal/config"
	"github.com/soulframe/soulframe/internal/log"
	"github.com/soulframe/soulframe/pkg/command"
	"github.com/soulframe/soulframe/pkg/coordinator"
	"github.com/soulframe/soulframe/pkg/gallery"
	"github.com/soulframe/soulframe/pkg/journal"
	"github.com/soulframe/soulframe/pkg/supervisor"
	"github.com/soulframe/soulframe/pkg/vision"
	"github.com/soulframe/soulframe/pkg/web"
)

const (
	shmConnectTimeout = 10 * time.Second
	childStopTimeout  = 5 * time.Second
)

type runOptions struct {
	GalleryDir  string
	ShmName     string
	JournalPath string
	WebPort     string
	TickRate    int
	DisplayCmd  string
	AudioCmd    string
}

func newRunCommand() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the installation coordinator",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCoordinator(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.GalleryDir, "gallery", config.GalleryDir(), "gallery content directory")
	cmd.Flags().StringVar(&opts.ShmName, "shm", config.ShmName(), "vision shared memory segment name")
	cmd.Flags().StringVar(&opts.JournalPath, "journal", config.JournalPath(), "sqlite journal path (empty to disable)")
	cmd.Flags().StringVar(&opts.WebPort, "web-port", config.WebPort(), "dashboard port (empty to disable)")
	cmd.Flags().IntVar(&opts.TickRate, "tick-rate", config.DefaultTickRate, "coordinator loop rate in Hz")
	cmd.Flags().StringVar(&opts.DisplayCmd, "display-cmd", "", "display child command (empty: log only)")
	cmd.Flags().StringVar(&opts.AudioCmd, "audio-cmd", "", "audio child command (empty: log only)")

	return cmd
}

func runCoordinator(parent context.Context, opts *runOptions) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Vision shared memory. The vision process creates the segment, so
	// wait for it rather than racing startup order.
	segment, err := waitForSegment(ctx, opts.ShmName)
	if err != nil {
		return err
	}
	reader, err := vision.NewReader(segment)
	if err != nil {
		return err
	}
	defer reader.Close()
	log.Info("attached to vision shared memory", "name", opts.ShmName)

	// Gallery.
	mgr := gallery.NewManager(opts.GalleryDir)
	count, err := mgr.Scan()
	if err != nil {
		return fmt.Errorf("gallery scan: %w", err)
	}
	log.Info("gallery loaded", "images", count, "dir", opts.GalleryDir)

	watcher, err := gallery.NewWatcher(mgr)
	if err != nil {
		log.Warn("gallery watcher unavailable", "error", err)
	} else {
		go watcher.Run(ctx)
	}

	// Children.
	display, displayProc, err := childSink(ctx, "display", opts.DisplayCmd)
	if err != nil {
		return err
	}
	audio, audioProc, err := childSink(ctx, "audio", opts.AudioCmd)
	if err != nil {
		return err
	}

	// Coordinator.
	cfg := coordinator.DefaultConfig()
	cfg.TickRate = opts.TickRate
	coord := coordinator.New(cfg, reader, mgr, display, audio)

	var children []supervisor.Child
	for _, p := range []*supervisor.Process{displayProc, audioProc} {
		if p != nil {
			children = append(children, p)
		}
	}
	if len(children) > 0 {
		coord.SetGroup(supervisor.NewGroup(children...))
	}

	var j *journal.Journal
	if opts.JournalPath != "" {
		j, err = journal.Open(opts.JournalPath)
		if err != nil {
			return fmt.Errorf("journal: %w", err)
		}
		defer j.Close()
		coord.SetJournal(j)
	}

	// Dashboard.
	if opts.WebPort != "" {
		server := web.NewServer(opts.WebPort, mgr, j)
		coord.OnStatus = server.StatusFunc()
		server.StartAsync()
		defer server.Shutdown()
	}

	runErr := coord.Run(ctx)

	for _, p := range []*supervisor.Process{displayProc, audioProc} {
		if p == nil {
			continue
		}
		if err := p.Stop(childStopTimeout); err != nil {
			log.Warn("child stop", "id", p.ID(), "error", err)
		}
	}
	return runErr
}

// waitForSegment polls for the vision segment until it appears or the
// context ends.
func waitForSegment(ctx context.Context, name string) (vision.Segment, error) {
	deadline := time.Now().Add(shmConnectTimeout)
	for {
		segment, err := vision.OpenSegment(name)
		if err == nil {
			return segment, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("vision shared memory %q not available after %s: %w",
				name, shmConnectTimeout, err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
}

// childSink builds the command sink for one child. With a command line it
// launches a supervised process; without one commands are drained to the
// debug log, which keeps the coordinator runnable during development.
func childSink(ctx context.Context, id, cmdline string) (command.Sink, *supervisor.Process, error) {
	if cmdline == "" {
		sink := command.NewChannelSink(id, 64)
		go func() {
			for cmd := range sink.C() {
				log.Debug("command (no child attached)", "sink", id, "type", string(cmd.Type))
			}
		}()
		return sink, nil, nil
	}

	parts := strings.Fields(cmdline)
	proc := supervisor.NewProcess(id, parts[0], parts[1:]...)
	if err := proc.Start(ctx); err != nil {
		return nil, nil, err
	}
	return proc.Sink(), proc, nil
}
