// types.go: Core types for the pixcache decode-buffer reuse library
//
// Copyright (c) 2025 AGILira
// Series: an AGLIra fragment
// SPDX-License-Identifier: MPL-2.0

package pixcache

import (
	"context"
	"image"
	"io"
	"time"

	"github.com/agilira/pixcache/imaging"
)

// Logger interface for optional debug and monitoring logging
type Logger interface {
	// Debug logs debug-level messages (cache hits, misses, recycles)
	Debug(msg string, fields ...interface{})
	// Info logs informational messages (releases, config changes)
	Info(msg string, fields ...interface{})
	// Warn logs warning messages (late fills, dropped deliveries)
	Warn(msg string, fields ...interface{})
	// Error logs error messages (failed decodes, watcher failures)
	Error(msg string, fields ...interface{})
}

// Decoder turns encoded image bytes into pixels. DecodeInfo receives the
// result of Probe for the same data and should write into dst when dst is
// non-nil and large enough, and allocate otherwise.
type Decoder interface {
	Probe(data []byte) (imaging.Info, error)
	DecodeInfo(data []byte, info imaging.Info, dst *image.NRGBA) (*image.NRGBA, error)
}

// Source resolves a cache key (a slash separated path relative to the asset
// root) to its encoded bytes. The cache never performs I/O itself.
type Source interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// CacheConfig defines the configuration for a Loader
type CacheConfig struct {
	// AssetRoot is the directory the default Source reads from.
	AssetRoot string `json:"asset_root" mapstructure:"asset_root"`
	// ImageDir is joined in front of every name passed to the loader. The default
	// "Images" applies to file and default configs only; an empty ImageDir set in
	// Go means no prefix.
	ImageDir string `json:"image_dir" mapstructure:"image_dir"`
	// Capacity is the working-set size used by tools that do not pass one explicitly.
	Capacity int `json:"capacity" mapstructure:"capacity"`
	// EvictionPolicy is "fifo" (default) or "lru".
	EvictionPolicy string `json:"eviction_policy" mapstructure:"eviction_policy"`
	// Workers bounds concurrent background loads. Default: 1.
	Workers int `json:"workers" mapstructure:"workers"`
	// ProbeCacheSize bounds the number of remembered image headers.
	ProbeCacheSize int `json:"probe_cache_size" mapstructure:"probe_cache_size"`
	// MaxImagePixels rejects images larger than width*height before decoding. 0 disables the check.
	MaxImagePixels int `json:"max_image_pixels" mapstructure:"max_image_pixels"`
	// MaxAssetBytes rejects encoded assets larger than this. 0 disables the check.
	MaxAssetBytes int64 `json:"max_asset_bytes" mapstructure:"max_asset_bytes"`
	// LoadTimeout bounds each background load. 0 means no timeout.
	LoadTimeout time.Duration `json:"load_timeout" mapstructure:"load_timeout"`
	// Logger for debug and monitoring (optional, can be nil)
	Logger Logger `json:"-" mapstructure:"-"`
}

// CacheStats contains statistics about slot table activity
type CacheStats struct {
	Slots         int   `json:"slots"`
	Hits          int64 `json:"hits"`
	Misses        int64 `json:"misses"`
	Recycles      int64 `json:"recycles"`
	Fills         int64 `json:"fills"`
	Aborts        int64 `json:"aborts"`
	Releases      int64 `json:"releases"`
	ResidentBytes int64 `json:"resident_bytes"`
}

// Result is handed to the delivery callback of an asynchronous load
type Result struct {
	ID     string
	Key    string
	Buffer *Buffer
	Err    error
}
