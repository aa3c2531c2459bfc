package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/soulframe/soulframe/pkg/curves"
)

type curvesOptions struct {
	MinDist float64
	MaxDist float64
	Steps   int
}

// newCurvesCommand prints a falloff table for every registered curve, for
// tuning distance thresholds in metadata without standing in front of the
// camera all afternoon.
func newCurvesCommand() *cobra.Command {
	opts := &curvesOptions{}

	cmd := &cobra.Command{
		Use:   "curves",
		Short: "Print the distance-to-intensity falloff of every curve",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printCurves(cmd, opts)
		},
	}

	cmd.Flags().Float64Var(&opts.MinDist, "min", 30, "full-intensity distance in cm")
	cmd.Flags().Float64Var(&opts.MaxDist, "max", 150, "zero-intensity distance in cm")
	cmd.Flags().IntVar(&opts.Steps, "steps", 10, "table rows between min and max")

	return cmd
}

func printCurves(cmd *cobra.Command, opts *curvesOptions) error {
	if opts.Steps < 1 {
		return fmt.Errorf("steps must be at least 1")
	}

	names := curves.Names()
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)

	fmt.Fprint(w, "distance_cm")
	for _, name := range names {
		fmt.Fprintf(w, "\t%s", name)
	}
	fmt.Fprintln(w)

	span := opts.MaxDist - opts.MinDist
	for i := 0; i <= opts.Steps; i++ {
		d := opts.MinDist + span*float64(i)/float64(opts.Steps)
		fmt.Fprintf(w, "%.0f", d)
		for _, name := range names {
			curve, err := curves.Get(name)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "\t%.3f", curve(d, opts.MinDist, opts.MaxDist))
		}
		fmt.Fprintln(w)
	}
	return w.Flush()
}
