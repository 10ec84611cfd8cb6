// /cmd/pixcache/load.go: Load images through the cache and report reuse
//
// Copyright (c) 2025 AGILira
// Series: an AGLIra fragment
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/agilira/pixcache"
)

func newLoadCmd(opts *options) *cobra.Command {
	var (
		capacity int
		root     string
		dir      string
		release  bool
	)
	cmd := &cobra.Command{
		Use:   "load [name...]",
		Short: "Load images in order and show hits, misses and recycled memory",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config, _, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("root") {
				config.AssetRoot = root
			}
			if cmd.Flags().Changed("dir") {
				config.ImageDir = dir
			}
			if !cmd.Flags().Changed("capacity") {
				capacity = config.Capacity
			}
			config.Logger = opts.libraryLogger()

			loader, err := pixcache.NewWithConfig(config, nil, nil)
			if err != nil {
				return err
			}
			defer loader.Close()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tRESULT\tSIZE\tBYTES")
			failed := 0
			for _, name := range args {
				before := loader.Stats().Cache
				buf, err := loader.LoadImage(cmd.Context(), capacity, name)
				after := loader.Stats().Cache
				if err != nil {
					failed++
					opts.logger.Error().Err(err).Str("name", name).Msg("load failed")
					fmt.Fprintf(tw, "%s\terror\t-\t-\n", name)
					continue
				}
				b := buf.Bounds()
				fmt.Fprintf(tw, "%s\t%s\t%dx%d\t%d\n", name, outcome(before, after), b.Dx(), b.Dy(), buf.Bytes())
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), loader.Stats())
			if release {
				loader.ReleaseCache()
				opts.logger.Info().Msg("cache released")
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d loads failed", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&capacity, "capacity", "c", pixcache.DefaultCapacity, "images in use at once")
	cmd.Flags().StringVar(&root, "root", ".", "asset root directory")
	cmd.Flags().StringVar(&dir, "dir", pixcache.DefaultImageDir, "image directory under the root")
	cmd.Flags().BoolVar(&release, "release", false, "release the cache after loading")
	return cmd
}

// outcome classifies a load from the counters before and after it
func outcome(before, after pixcache.CacheStats) string {
	switch {
	case after.Hits > before.Hits && after.Fills == before.Fills:
		return "hit"
	case after.Recycles > before.Recycles:
		return "recycled"
	case after.Hits > before.Hits:
		return "reloaded"
	default:
		return "miss"
	}
}
