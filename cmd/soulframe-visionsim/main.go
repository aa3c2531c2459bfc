// soulframe-visionsim stands in for the real vision process during
// development: it creates the shared memory segment and writes a synthetic
// viewer who walks up, looks at the center of the frame, leans in, and
// leaves, on a loop.
package main

import (
	"context"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/soulframe/soulframe/internal/config"
	"github.com/soulframe/soulframe/internal/log"
	"github.com/soulframe/soulframe/pkg/vision"
)

type options struct {
	ShmName string
	RateHz  int
	CycleS  int
}

func main() {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "soulframe-visionsim",
		Short: "Write synthetic face samples to the vision shared memory segment",
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Init("info")
			return run(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.ShmName, "shm", config.ShmName(), "shared memory segment name")
	cmd.Flags().IntVar(&opts.RateHz, "rate", 15, "sample rate in Hz")
	cmd.Flags().IntVar(&opts.CycleS, "cycle", 40, "seconds per simulated visit")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(parent context.Context, opts *options) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	segment, err := vision.CreateSegment(opts.ShmName)
	if err != nil {
		return err
	}
	writer, err := vision.NewWriter(segment)
	if err != nil {
		segment.Close()
		return err
	}
	defer func() {
		writer.Close()
		vision.Unlink(opts.ShmName)
	}()
	log.Info("vision simulator started", "shm", opts.ShmName, "rate_hz", opts.RateHz)

	ticker := time.NewTicker(time.Second / time.Duration(opts.RateHz))
	defer ticker.Stop()

	var frame uint32
	start := time.Now()
	cycle := float64(opts.CycleS)

	for {
		select {
		case <-ctx.Done():
			log.Info("vision simulator stopping")
			return nil
		case now := <-ticker.C:
			frame++
			writer.Write(simulate(frame, now.Sub(start).Seconds(), cycle))
		}
	}
}

// simulate produces one visit per cycle: absent, then approaching from 4m
// down to 60cm while gazing near the frame center, then gone again.
func simulate(frame uint32, t, cycle float64) vision.FaceSample {
	phase := math.Mod(t, cycle) / cycle

	sample := vision.FaceSample{
		FrameCounter: frame,
		TimestampNS:  uint64(time.Now().UnixNano()),
	}
	// First and last tenth of the cycle nobody is there.
	if phase < 0.1 || phase > 0.9 {
		return sample
	}

	// Distance sweeps in and back out across the visit.
	p := (phase - 0.1) / 0.8
	closeness := math.Sin(p * math.Pi) // 0 -> 1 -> 0
	sample.NumFaces = 1
	sample.DistanceCM = float32(400 - 340*closeness)
	sample.Confidence = float32(0.55 + 0.35*closeness)

	// Gaze drifts gently around the center.
	sample.GazeX = float32(0.5 + 0.08*math.Sin(t*0.7))
	sample.GazeY = float32(0.5 + 0.06*math.Cos(t*0.9))
	sample.HeadYaw = float32(10 * math.Sin(t*0.5))
	sample.HeadPitch = float32(4 * math.Cos(t*0.3))
	return sample
}
