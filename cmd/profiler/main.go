// main.go: Profiler for the pixcache decode-buffer reuse library
//
// Copyright (c) 2025 AGILira
// Series: an AGLIra fragment
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"math/rand"
	"os"
	"runtime"
	"runtime/pprof"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agilira/pixcache"
	"github.com/agilira/pixcache/assets"
)

// Configuration constants for the profiler
const (
	duration     = 5 * time.Second
	workers      = 8
	keySpaceSize = 64
	capacity     = 16
	imageSide    = 128
	workload     = "balanced" // Type of workload: revisit-heavy, balanced, scan
)

// profileConfig describes one profiling run
type profileConfig struct {
	Duration     time.Duration
	Workers      int
	KeySpaceSize int
	Capacity     int
	ImageSide    int
	Workload     string
	Policy       string
}

// profileResult is what a run measured
type profileResult struct {
	TotalOps int64
	Load     *opStat
	Stats    pixcache.Stats
	Mem      runtime.MemStats
	Elapsed  time.Duration
}

func main() {
	runtime.GOMAXPROCS(runtime.NumCPU())

	cpuFile, err := os.Create("cpu.prof")
	if err == nil {
		_ = pprof.StartCPUProfile(cpuFile)
		defer func() {
			pprof.StopCPUProfile()
			// Ignore close error for profiling tool
			_ = cpuFile.Close()
		}()
	}

	result, err := runProfile(profileConfig{
		Duration:     duration,
		Workers:      workers,
		KeySpaceSize: keySpaceSize,
		Capacity:     capacity,
		ImageSide:    imageSide,
		Workload:     workload,
		Policy:       "fifo",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "profiler: %v\n", err)
		return
	}

	fmt.Println("--- Results ---")
	fmt.Printf("Total loads: %d\n", result.TotalOps)
	fmt.Printf("Load: avg=%v min=%v max=%v\n", result.Load.Avg(), result.Load.Min, result.Load.Max)
	fmt.Printf("Loads/sec: %.2f\n", float64(result.TotalOps)/result.Elapsed.Seconds())
	fmt.Println(result.Stats)
	fmt.Printf("Heap alloc: %d MB, GCs: %d, GC fraction: %.2f%%\n",
		result.Mem.HeapAlloc/1024/1024, result.Mem.NumGC, result.Mem.GCCPUFraction*100)

	if f, err := os.Create("pixcache_results.csv"); err == nil {
		_ = writeCSV(f, result)
		_ = f.Close()
	}
	if f, err := os.Create("pixcache_results.json"); err == nil {
		_ = writeJSON(f, result)
		_ = f.Close()
	}
}

// runProfile loads synthetic images from several workers against one loader
func runProfile(cfg profileConfig) (profileResult, error) {
	src := assets.NewMemory()
	fmt.Println("[WARMUP] Encoding synthetic images...")
	for i := 0; i < cfg.KeySpaceSize; i++ {
		data, err := syntheticPNG(cfg.ImageSide, cfg.ImageSide, i)
		if err != nil {
			return profileResult{}, err
		}
		src.Put(fmt.Sprintf("%d.png", i), data)
	}

	loader, err := pixcache.NewWithConfig(pixcache.CacheConfig{
		EvictionPolicy: cfg.Policy,
		Workers:        cfg.Workers,
	}, src, nil)
	if err != nil {
		return profileResult{}, err
	}
	defer loader.Close()

	loadStat := &opStat{}
	var totalOps int64
	var wg sync.WaitGroup
	stop := make(chan struct{})
	ctx := context.Background()

	fmt.Printf("[BENCHMARK] Starting %d workers for %v\n", cfg.Workers, cfg.Duration)
	start := time.Now()
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			// nosec G404 - This is a performance profiler, not a security-critical application
			localRand := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id)))
			scan := id
			for {
				select {
				case <-stop:
					return
				default:
					name := fmt.Sprintf("%d.png", pickKey(cfg, localRand, &scan))
					opStart := time.Now()
					if _, err := loader.LoadImage(ctx, cfg.Capacity, name); err == nil {
						loadStat.Record(time.Since(opStart))
					}
					atomic.AddInt64(&totalOps, 1)
				}
			}
		}(i)
	}

	time.Sleep(cfg.Duration)
	close(stop)
	wg.Wait()
	elapsed := time.Since(start)

	result := profileResult{
		TotalOps: atomic.LoadInt64(&totalOps),
		Load:     loadStat,
		Stats:    loader.Stats(),
		Elapsed:  elapsed,
	}
	runtime.ReadMemStats(&result.Mem)
	return result, nil
}

// pickKey chooses the next image index for the configured workload
func pickKey(cfg profileConfig, r *rand.Rand, scan *int) int {
	switch cfg.Workload {
	case "revisit-heavy":
		// 90% of loads stay within the working set.
		if r.Intn(100) < 90 {
			return r.Intn(minInt(cfg.Capacity, cfg.KeySpaceSize))
		}
		return r.Intn(cfg.KeySpaceSize)
	case "scan":
		*scan = (*scan + 1) % cfg.KeySpaceSize
		return *scan
	default:
		if r.Intn(100) < 50 {
			return r.Intn(minInt(cfg.Capacity, cfg.KeySpaceSize))
		}
		return r.Intn(cfg.KeySpaceSize)
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func syntheticPNG(w, h, seed int) ([]byte, error) {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for p := 0; p < len(img.Pix); p += 4 {
		img.Pix[p] = uint8(seed)
		img.Pix[p+1] = uint8(p / 4 % 251)
		img.Pix[p+2] = uint8(seed * 7)
		img.Pix[p+3] = 255
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCSV(f *os.File, r profileResult) error {
	writer := csv.NewWriter(f)
	rows := [][]string{
		{"metric", "value"},
		{"total_loads", fmt.Sprintf("%d", r.TotalOps)},
		{"load_avg_ns", fmt.Sprintf("%d", r.Load.Avg().Nanoseconds())},
		{"loads_per_sec", fmt.Sprintf("%.2f", float64(r.TotalOps)/r.Elapsed.Seconds())},
		{"hit_rate", fmt.Sprintf("%.2f", r.Stats.HitRate)},
		{"recycles", fmt.Sprintf("%d", r.Stats.Cache.Recycles)},
		{"resident_bytes", fmt.Sprintf("%d", r.Stats.Cache.ResidentBytes)},
		{"heap_alloc_mb", fmt.Sprintf("%d", r.Mem.HeapAlloc/1024/1024)},
		{"gc_count", fmt.Sprintf("%d", r.Mem.NumGC)},
	}
	if err := writer.WriteAll(rows); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}

func writeJSON(f *os.File, r profileResult) error {
	data := map[string]interface{}{
		"total_loads":   r.TotalOps,
		"load_avg_ns":   r.Load.Avg().Nanoseconds(),
		"load_min_ns":   r.Load.Min.Nanoseconds(),
		"load_max_ns":   r.Load.Max.Nanoseconds(),
		"loads_per_sec": float64(r.TotalOps) / r.Elapsed.Seconds(),
		"cache":         r.Stats,
		"heap_alloc_mb": r.Mem.HeapAlloc / 1024 / 1024,
		"gc_count":      r.Mem.NumGC,
		"gc_fraction":   r.Mem.GCCPUFraction * 100,
	}
	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// opStat keeps track of latency metrics for an operation type
type opStat struct {
	mu    sync.Mutex
	Min   time.Duration
	Max   time.Duration
	Total time.Duration
	Count int64
}

// Record registers a single operation latency into the statistics
func (s *opStat) Record(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Count == 0 || d < s.Min {
		s.Min = d
	}
	if d > s.Max {
		s.Max = d
	}
	s.Total += d
	s.Count++
}

// Avg returns the average latency for the recorded operations
func (s *opStat) Avg() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Count == 0 {
		return 0
	}
	return time.Duration(int64(s.Total) / s.Count)
}
