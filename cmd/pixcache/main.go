// /cmd/pixcache/main.go: Command line tool for pixcache configuration and inspection
//
// Copyright (c) 2025 AGILira
// Series: an AGLIra fragment
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/agilira/pixcache"
)

// VERSION is the current version of the pixcache CLI tool
const VERSION = "1.0.0"

// options are shared by all subcommands
type options struct {
	configFile string
	verbose    bool
	logger     zerolog.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{logger: zerolog.Nop()}

	root := &cobra.Command{
		Use:   "pixcache",
		Short: "Configure and inspect the pixcache decode-buffer cache",
		Long: `pixcache keeps a bounded set of decoded images and reuses their memory
when the working set moves on.

Examples:
  pixcache init
  pixcache inspect --json
  pixcache load --capacity 2 cat.png dog.png cat.png
  pixcache probe Images/cat.png`,
		Version:       VERSION,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := zerolog.InfoLevel
			if opts.verbose {
				level = zerolog.DebugLevel
			}
			opts.logger = zerolog.New(zerolog.ConsoleWriter{
				Out:        cmd.ErrOrStderr(),
				NoColor:    true,
				TimeFormat: time.Kitchen,
			}).Level(level).With().Timestamp().Logger()
		},
	}

	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default: search pixcache.{json,yaml,yml,toml})")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")

	root.AddCommand(
		newInitCmd(opts),
		newInspectCmd(opts),
		newLoadCmd(opts),
		newProbeCmd(opts),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "pixcache version %s, Go version: %s\n", VERSION, runtime.Version())
		},
	}
}

// loadConfig returns the configuration named by --config, or the one the
// library would pick on its own, together with a description of its source.
func (o *options) loadConfig() (pixcache.CacheConfig, string, error) {
	if o.configFile != "" {
		config, err := pixcache.LoadConfigFile(o.configFile)
		if err != nil {
			return pixcache.CacheConfig{}, "", err
		}
		return config, fmt.Sprintf("File configuration (%s)", filepath.Base(o.configFile)), nil
	}
	return pixcache.LoadConfig(), pixcache.GetConfigSource(), nil
}

// libraryLogger returns a pixcache Logger when verbose output is on
func (o *options) libraryLogger() pixcache.Logger {
	if !o.verbose {
		return nil
	}
	return pixcache.NewZerologLogger(o.logger)
}
