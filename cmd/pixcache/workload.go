// /cmd/pixcache/workload.go: Synthetic load workload for real measurements
//
// Copyright (c) 2025 AGILira
// Series: an AGLIra fragment
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"time"

	"github.com/agilira/pixcache"
	"github.com/agilira/pixcache/assets"
)

// RealMetrics holds measurements of a synthetic workload
type RealMetrics struct {
	Loads         int     `json:"loads"`
	LoadLatencyNs int64   `json:"load_latency_ns"`
	LoadsPerSec   float64 `json:"loads_per_sec"`
	HitRate       float64 `json:"hit_rate_percent"`
	Recycles      int64   `json:"recycles"`
	ResidentBytes int64   `json:"resident_bytes"`
	Slots         int     `json:"slots"`
}

// syntheticAssets returns n distinct PNGs of w x h pixels keyed "<i>.png"
func syntheticAssets(n, w, h int) (*assets.Memory, []string, error) {
	src := assets.NewMemory()
	names := make([]string, n)
	for i := 0; i < n; i++ {
		img := image.NewNRGBA(image.Rect(0, 0, w, h))
		c := color.NRGBA{R: uint8(i * 37), G: uint8(i * 91), B: uint8(255 - i*13), A: 255}
		for p := 0; p < len(img.Pix); p += 4 {
			img.Pix[p], img.Pix[p+1], img.Pix[p+2], img.Pix[p+3] = c.R, c.G, c.B, c.A
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, nil, err
		}
		names[i] = fmt.Sprintf("%d.png", i)
		src.Put(names[i], buf.Bytes())
	}
	return src, names, nil
}

// measureRealPerformance cycles through a working set slightly larger than
// capacity so both hits and recycles happen.
func measureRealPerformance(config pixcache.CacheConfig, rounds int) (RealMetrics, error) {
	capacity := config.Capacity
	if capacity <= 0 {
		capacity = pixcache.DefaultCapacity
	}
	src, names, err := syntheticAssets(capacity+capacity/2+1, 64, 64)
	if err != nil {
		return RealMetrics{}, err
	}

	config.ImageDir = ""
	config.Logger = nil
	loader, err := pixcache.NewWithConfig(config, src, nil)
	if err != nil {
		return RealMetrics{}, err
	}
	defer loader.Close()

	ctx := context.Background()
	loads := 0
	start := time.Now()
	for r := 0; r < rounds; r++ {
		// Revisit the first half of the set before moving on.
		for i, name := range names {
			if _, err := loader.LoadImage(ctx, capacity, name); err != nil {
				return RealMetrics{}, err
			}
			loads++
			if i%2 == 1 {
				if _, err := loader.LoadImage(ctx, capacity, names[i/2]); err != nil {
					return RealMetrics{}, err
				}
				loads++
			}
		}
	}
	elapsed := time.Since(start)

	stats := loader.Stats()
	m := RealMetrics{
		Loads:         loads,
		HitRate:       stats.HitRate,
		Recycles:      stats.Cache.Recycles,
		ResidentBytes: stats.Cache.ResidentBytes,
		Slots:         stats.Cache.Slots,
	}
	if loads > 0 {
		m.LoadLatencyNs = elapsed.Nanoseconds() / int64(loads)
		m.LoadsPerSec = float64(loads) / elapsed.Seconds()
	}
	return m, nil
}
