// /cmd/pixcache/probe.go: Print image headers without decoding pixels
//
// Copyright (c) 2025 AGILira
// Series: an AGLIra fragment
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/agilira/pixcache/imaging"
)

type probeResult struct {
	File  string        `json:"file"`
	Info  *imaging.Info `json:"info,omitempty"`
	Bytes int           `json:"decoded_bytes,omitempty"`
	Error string        `json:"error,omitempty"`
}

func newProbeCmd(opts *options) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "probe file...",
		Short: "Show format, size and orientation of image files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			decoder := imaging.NewDecoder()
			results := make([]probeResult, 0, len(args))
			failed := 0
			for _, file := range args {
				r := probeResult{File: file}
				data, err := os.ReadFile(file) // #nosec G304 -- user supplied path
				if err == nil {
					var info imaging.Info
					if info, err = decoder.Probe(data); err == nil {
						r.Info = &info
						r.Bytes = info.Bytes()
					}
				}
				if err != nil {
					failed++
					r.Error = err.Error()
					opts.logger.Debug().Err(err).Str("file", file).Msg("probe failed")
				}
				results = append(results, r)
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(results); err != nil {
					return err
				}
			} else {
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "FILE\tFORMAT\tSIZE\tORIENTATION\tDECODED")
				for _, r := range results {
					if r.Info == nil {
						fmt.Fprintf(tw, "%s\t%s\t\t\t\n", r.File, r.Error)
						continue
					}
					fmt.Fprintf(tw, "%s\t%s\t%dx%d\t%d\t%d\n", r.File, r.Info.Format,
						r.Info.Width, r.Info.Height, r.Info.Orientation, r.Bytes)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files could not be probed", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	return cmd
}
