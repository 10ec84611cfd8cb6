// /cmd/pixcache/inspect.go: Configuration and runtime inspection
//
// Copyright (c) 2025 AGILira
// Series: an AGLIra fragment
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/agilira/pixcache"
)

func newInspectCmd(opts *options) *cobra.Command {
	var (
		jsonOutput bool
		realData   bool
		rounds     int
	)
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show configuration, validation results and runtime statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, source, err := opts.loadConfig()
			if err != nil {
				return err
			}
			validation := pixcache.ValidateConfig(config)

			var metrics *RealMetrics
			if realData {
				m, err := measureRealPerformance(config, rounds)
				if err != nil {
					return fmt.Errorf("measuring: %w", err)
				}
				metrics = &m
			}

			var mem runtime.MemStats
			runtime.ReadMemStats(&mem)

			if jsonOutput {
				return writeInspectJSON(cmd.OutOrStdout(), config, source, validation, metrics, &mem)
			}
			writeInspectText(cmd.OutOrStdout(), config, source, validation, metrics, &mem)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	cmd.Flags().BoolVar(&realData, "real", false, "run a synthetic workload and report real measurements")
	cmd.Flags().IntVar(&rounds, "rounds", 20, "workload rounds for --real")
	return cmd
}

func writeInspectJSON(w io.Writer, config pixcache.CacheConfig, source string,
	validation pixcache.ConfigValidationResult, metrics *RealMetrics, mem *runtime.MemStats) error {
	report := map[string]interface{}{
		"source":     source,
		"config":     toFileConfig(config),
		"validation": validation,
		"memory": map[string]interface{}{
			"alloc_mb":    float64(mem.Alloc) / 1024 / 1024,
			"total_alloc": mem.TotalAlloc,
			"num_gc":      mem.NumGC,
		},
		"runtime": map[string]interface{}{
			"go_version": runtime.Version(),
			"arch":       runtime.GOARCH,
			"os":         runtime.GOOS,
			"num_cpu":    runtime.NumCPU(),
		},
		"timestamp": time.Now().Format(time.RFC3339),
	}
	if metrics != nil {
		report["workload"] = metrics
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func writeInspectText(w io.Writer, config pixcache.CacheConfig, source string,
	validation pixcache.ConfigValidationResult, metrics *RealMetrics, mem *runtime.MemStats) {
	status := "PASSED"
	if !validation.IsValid {
		status = "FAILED"
	}
	fmt.Fprintf(w, "=== pixcache Inspection ===\n")
	fmt.Fprintf(w, "Validation: %s\n\n", status)

	fmt.Fprintf(w, "Configuration Source: %s\n", source)
	fmt.Fprintf(w, "- Asset Root: %s\n", config.AssetRoot)
	fmt.Fprintf(w, "- Image Dir: %s\n", config.ImageDir)
	fmt.Fprintf(w, "- Capacity: %d\n", config.Capacity)
	fmt.Fprintf(w, "- Eviction Policy: %s\n", config.EvictionPolicy)
	fmt.Fprintf(w, "- Workers: %d\n", config.Workers)
	fmt.Fprintf(w, "- Max Image Pixels: %d\n", config.MaxImagePixels)
	fmt.Fprintf(w, "- Load Timeout: %v\n\n", config.LoadTimeout)

	for _, warning := range validation.Warnings {
		fmt.Fprintf(w, "Warning: %s\n", warning)
	}
	for _, suggestion := range validation.Suggestions {
		fmt.Fprintf(w, "Suggestion: %s\n", suggestion)
	}
	if len(validation.Warnings)+len(validation.Suggestions) > 0 {
		fmt.Fprintln(w)
	}

	if metrics != nil {
		fmt.Fprintf(w, "Real Workload Measurements:\n")
		fmt.Fprintf(w, "- Loads: %d\n", metrics.Loads)
		fmt.Fprintf(w, "- Load Latency: %d ns\n", metrics.LoadLatencyNs)
		fmt.Fprintf(w, "- Loads/sec: %.0f\n", metrics.LoadsPerSec)
		fmt.Fprintf(w, "- Hit Rate: %.1f%%\n", metrics.HitRate)
		fmt.Fprintf(w, "- Recycles: %d\n", metrics.Recycles)
		fmt.Fprintf(w, "- Resident: %d slots, %d bytes\n\n", metrics.Slots, metrics.ResidentBytes)
	}

	fmt.Fprintf(w, "Runtime Information:\n")
	fmt.Fprintf(w, "- Go Version: %s\n", runtime.Version())
	fmt.Fprintf(w, "- CPUs: %d\n", runtime.NumCPU())
	fmt.Fprintf(w, "- Allocated Memory: %.1f MB\n", float64(mem.Alloc)/1024/1024)
	fmt.Fprintf(w, "- Garbage Collections: %d\n", mem.NumGC)
}
