package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/soulframe/soulframe/pkg/gallery"
)

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <gallery-dir>",
		Short: "Validate every image package in a gallery directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateGallery(cmd, args[0])
		},
	}
}

func validateGallery(cmd *cobra.Command, root string) error {
	entries, err := os.ReadDir(root)
	if err != nil {
		return err
	}

	var dirs []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(root, e.Name())
		if _, err := os.Stat(filepath.Join(dir, "metadata.json")); err == nil {
			dirs = append(dirs, dir)
		}
	}
	sort.Strings(dirs)

	if len(dirs) == 0 {
		return fmt.Errorf("no image packages found in %s", root)
	}

	broken := 0
	for _, dir := range dirs {
		meta, err := gallery.LoadPackage(dir)
		if err != nil {
			broken++
			fmt.Fprintf(cmd.OutOrStdout(), "FAIL  %s: %v\n", filepath.Base(dir), err)
			continue
		}
		heartbeats := 0
		for _, r := range meta.Regions {
			if r.Heartbeat != nil {
				heartbeats++
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "ok    %s: %q, %d region(s), %d heartbeat(s), ambient=%v\n",
			filepath.Base(dir), meta.Title, len(meta.Regions), heartbeats, meta.HasAmbient())

		// Referenced audio must exist on disk.
		if meta.HasAmbient() {
			checkAsset(cmd, dir, meta.Audio.Ambient.File)
		}
		for _, r := range meta.Regions {
			if r.Heartbeat != nil && r.Heartbeat.File != "" {
				checkAsset(cmd, dir, r.Heartbeat.File)
			}
		}
	}

	if broken > 0 {
		return fmt.Errorf("%d of %d package(s) failed validation", broken, len(dirs))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "all %d package(s) valid\n", len(dirs))
	return nil
}

func checkAsset(cmd *cobra.Command, dir, relative string) {
	if _, err := os.Stat(filepath.Join(dir, relative)); err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "warn  %s: missing audio asset %s (will play silence)\n",
			filepath.Base(dir), relative)
	}
}
