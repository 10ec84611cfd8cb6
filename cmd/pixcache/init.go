// /cmd/pixcache/init.go: Interactive configuration generator
//
// Copyright (c) 2025 AGILira
// Series: an AGLIra fragment
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"

	"github.com/agilira/pixcache"
)

// fileConfig is the on-disk shape written by init
type fileConfig struct {
	AssetRoot      string `json:"asset_root,omitempty"`
	ImageDir       string `json:"image_dir,omitempty"`
	Capacity       int    `json:"capacity"`
	EvictionPolicy string `json:"eviction_policy,omitempty"`
	Workers        int    `json:"workers,omitempty"`
	ProbeCacheSize int    `json:"probe_cache_size,omitempty"`
	MaxImagePixels int    `json:"max_image_pixels,omitempty"`
	MaxAssetBytes  int64  `json:"max_asset_bytes,omitempty"`
	LoadTimeout    string `json:"load_timeout,omitempty"`
}

func toFileConfig(c pixcache.CacheConfig) fileConfig {
	fc := fileConfig{
		AssetRoot:      c.AssetRoot,
		ImageDir:       c.ImageDir,
		Capacity:       c.Capacity,
		EvictionPolicy: c.EvictionPolicy,
		Workers:        c.Workers,
		ProbeCacheSize: c.ProbeCacheSize,
		MaxImagePixels: c.MaxImagePixels,
		MaxAssetBytes:  c.MaxAssetBytes,
	}
	if c.LoadTimeout > 0 {
		fc.LoadTimeout = c.LoadTimeout.String()
	}
	return fc
}

var errAborted = errors.New("aborted")

func newInitCmd(opts *options) *cobra.Command {
	var (
		output string
		force  bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Generate a pixcache.json interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				if _, err := os.Stat(output); err == nil {
					return fmt.Errorf("%s already exists (use --force to overwrite)", output)
				}
			}

			out := cmd.OutOrStdout()
			config, err := askConfig(bufio.NewReader(cmd.InOrStdin()), out)
			if errors.Is(err, errAborted) {
				fmt.Fprintln(out, "Goodbye!")
				return nil
			}
			if err != nil {
				return err
			}

			if result := pixcache.ValidateConfig(config); !result.IsValid {
				return fmt.Errorf("invalid configuration: %s", strings.Join(result.Warnings, "; "))
			}

			data, err := json.MarshalIndent(toFileConfig(config), "", "  ")
			if err != nil {
				return fmt.Errorf("generating config: %w", err)
			}
			data = append(data, '\n')
			if err := atomic.WriteFile(output, bytes.NewReader(data)); err != nil {
				return fmt.Errorf("writing %s: %w", output, err)
			}

			opts.logger.Info().Str("path", output).Msg("configuration written")
			fmt.Fprintf(out, "\nGenerated %s:\n%s", output, data)
			fmt.Fprintln(out, "You can now use pixcache.New() in your code.")
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", pixcache.ConfigName+".json", "file to write")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	return cmd
}

func askConfig(reader *bufio.Reader, out io.Writer) (pixcache.CacheConfig, error) {
	fmt.Fprintln(out, "pixcache Configuration Generator")
	fmt.Fprintln(out, "================================")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "What's your primary use case?")
	fmt.Fprintln(out, "1. Lesson screens (a few pictures at a time)")
	fmt.Fprintln(out, "2. Gallery (many thumbnails, revisited often)")
	fmt.Fprintln(out, "3. Low memory device")
	fmt.Fprintln(out, "4. Development")
	fmt.Fprintln(out, "5. Custom configuration")
	fmt.Fprintln(out, "6. Exit")
	fmt.Fprint(out, "Choose (1-6): ")

	switch readLine(reader) {
	case "1":
		return pixcache.GetConfigRecommendation("lesson"), nil
	case "2":
		return pixcache.GetConfigRecommendation("gallery"), nil
	case "3":
		return pixcache.GetConfigRecommendation("low-memory"), nil
	case "4":
		return pixcache.GetConfigRecommendation("development"), nil
	case "5":
		return customConfig(reader, out), nil
	case "6":
		return pixcache.CacheConfig{}, errAborted
	default:
		fmt.Fprintln(out, "Invalid choice, using lesson defaults")
		return pixcache.GetConfigRecommendation("lesson"), nil
	}
}

func customConfig(reader *bufio.Reader, out io.Writer) pixcache.CacheConfig {
	config := pixcache.GetConfigRecommendation("")

	fmt.Fprint(out, "Capacity (images in use at once): ")
	if n, err := strconv.Atoi(readLine(reader)); err == nil {
		config.Capacity = n
	}

	fmt.Fprint(out, "Eviction policy (fifo/lru): ")
	if p := readLine(reader); p != "" {
		config.EvictionPolicy = strings.ToLower(p)
	}

	fmt.Fprint(out, "Background workers: ")
	if n, err := strconv.Atoi(readLine(reader)); err == nil {
		config.Workers = n
	}

	fmt.Fprint(out, "Image directory (relative to the asset root): ")
	if dir := readLine(reader); dir != "" {
		config.ImageDir = dir
	}
	return config
}

func readLine(reader *bufio.Reader) string {
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}
