// api.go: Loader API for the pixcache decode-buffer reuse library
//
// Copyright (c) 2025 AGILira
// Series: an AGLIra fragment
// SPDX-License-Identifier: MPL-2.0

package pixcache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/maypok86/otter"
	"github.com/sourcegraph/conc"
	"golang.org/x/sync/singleflight"

	"github.com/agilira/pixcache/assets"
	"github.com/agilira/pixcache/imaging"
)

// Loader loads images through a ReuseCache. Construct one per application
// and pass it to whatever needs images.
type Loader struct {
	config  CacheConfig
	cache   *ReuseCache
	source  Source
	decoder Decoder
	logger  Logger
	probes  otter.Cache[string, probeEntry]
	group   singleflight.Group
	workers conc.WaitGroup
	sem     chan struct{}

	closedMu sync.RWMutex
	closed   bool

	delivered atomic.Int64
	stale     atomic.Int64
}

// Stats provides loader statistics
type Stats struct {
	Cache           CacheStats `json:"cache"`
	HitRate         float64    `json:"hit_rate"`
	ProbeHits       int64      `json:"probe_hits"`
	ProbeMisses     int64      `json:"probe_misses"`
	Delivered       int64      `json:"delivered"`
	StaleDeliveries int64      `json:"stale_deliveries"`
}

// New creates a Loader with automatic configuration loading, reading assets
// from the configured AssetRoot.
// Priority: Go config > config file > defaults
func New() (*Loader, error) {
	return NewWithConfig(loadConfig(), nil, nil)
}

// NewWithConfig creates a Loader. A nil source reads from config.AssetRoot;
// a nil decoder uses imaging.NewDecoder.
func NewWithConfig(config CacheConfig, source Source, decoder Decoder) (*Loader, error) {
	config = normalizeConfig(config)

	if source == nil {
		dir, err := assets.NewDir(config.AssetRoot)
		if err != nil {
			return nil, err
		}
		source = dir
	}
	if decoder == nil {
		decoder = imaging.NewDecoder()
	}

	probes, err := otter.MustBuilder[string, probeEntry](config.ProbeCacheSize).
		CollectStats().
		Build()
	if err != nil {
		return nil, fmt.Errorf("pixcache: probe cache: %w", err)
	}

	return &Loader{
		config:  config,
		cache:   NewReuseCache(config),
		source:  source,
		decoder: decoder,
		logger:  config.Logger,
		probes:  probes,
		sem:     make(chan struct{}, config.Workers),
	}, nil
}

// Config returns the effective configuration
func (l *Loader) Config() CacheConfig {
	return l.config
}

// Cache exposes the underlying slot table
func (l *Loader) Cache() *ReuseCache {
	return l.cache
}

// Key returns the cache key used for name
func (l *Loader) Key(name string) string {
	return joinKey(l.config.ImageDir, name)
}

// LoadImage loads name synchronously. capacity is the maximum number of
// images in use at once; once it is reached the oldest slot's memory is
// reused for the new image. Concurrent loads of the same name share one
// decode.
func (l *Loader) LoadImage(ctx context.Context, capacity int, name string) (*Buffer, error) {
	if l.isClosed() {
		return nil, ErrClosed
	}
	return l.load(ctx, capacity, l.Key(name))
}

func (l *Loader) load(ctx context.Context, capacity int, key string) (*Buffer, error) {
	v, err, _ := l.group.Do(key, func() (interface{}, error) {
		return l.decodeBitmap(ctx, capacity, key)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Buffer), nil
}

// LoadAsync loads name on a background worker and calls deliver with the
// result, unless ctx was cancelled or target was rebound or detached in the
// meantime. A nil target always receives the result. deliver runs on the
// worker goroutine. At most config.Workers loads run at once; LoadAsync
// itself never blocks on them.
func (l *Loader) LoadAsync(ctx context.Context, capacity int, name string, target *Target, deliver func(Result)) error {
	if capacity <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidCapacity, capacity)
	}

	l.closedMu.RLock()
	defer l.closedMu.RUnlock()
	if l.closed {
		return ErrClosed
	}

	token := target.Bind()
	id := uuid.NewString()
	key := l.Key(name)

	l.workers.Go(func() {
		l.sem <- struct{}{}
		defer func() { <-l.sem }()

		loadCtx, cancel := ctx, context.CancelFunc(func() {})
		if l.config.LoadTimeout > 0 {
			loadCtx, cancel = context.WithTimeout(ctx, l.config.LoadTimeout)
		}
		defer cancel()

		buf, err := l.load(loadCtx, capacity, key)
		if ctx.Err() != nil || !target.Valid(token) {
			l.stale.Add(1)
			l.logger.Debug("stale delivery dropped", "id", id, "key", key)
			return
		}
		l.delivered.Add(1)
		if deliver != nil {
			deliver(Result{ID: id, Key: key, Buffer: buf, Err: err})
		}
	})
	return nil
}

// Forget marks name as changed: its header info is dropped and the next load
// decodes it again into the same memory.
func (l *Loader) Forget(name string) {
	l.forgetKey(l.Key(name))
}

func (l *Loader) forgetKey(key string) {
	l.probes.Delete(key)
	if l.cache.Forget(key) {
		l.logger.Debug("asset changed", "key", key)
	}
}

// Watch forgets keys whose files change under the configured AssetRoot. It
// blocks until ctx is done.
func (l *Loader) Watch(ctx context.Context) error {
	if l.isClosed() {
		return ErrClosed
	}
	dir, ok := l.source.(*assets.Dir)
	if !ok {
		var err error
		if dir, err = assets.NewDir(l.config.AssetRoot); err != nil {
			return err
		}
	}
	w, err := assets.NewWatcher(dir, l.forgetKey, func(err error) {
		l.logger.Error("asset watcher", "error", err)
	})
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()
	return w.Run(ctx)
}

// ReleaseCache releases all decoded memory. Call it between lessons when the
// next one uses fewer images than the previous.
func (l *Loader) ReleaseCache() {
	l.cache.ReleaseAll()
	l.probes.Clear()
}

// Stats returns loader statistics
func (l *Loader) Stats() Stats {
	cs := l.cache.Stats()
	total := cs.Hits + cs.Misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(cs.Hits) / float64(total) * 100.0
	}
	ps := l.probes.Stats()
	return Stats{
		Cache:           cs,
		HitRate:         hitRate,
		ProbeHits:       ps.Hits(),
		ProbeMisses:     ps.Misses(),
		Delivered:       l.delivered.Load(),
		StaleDeliveries: l.stale.Load(),
	}
}

// Close waits for background loads and releases all memory
func (l *Loader) Close() error {
	l.closedMu.Lock()
	if l.closed {
		l.closedMu.Unlock()
		return nil
	}
	l.closed = true
	l.closedMu.Unlock()

	var err error
	if r := l.workers.WaitAndRecover(); r != nil {
		err = fmt.Errorf("pixcache: background load panicked: %w", r.AsError())
	}
	l.cache.ReleaseAll()
	l.probes.Close()
	l.logger.Info("loader closed")
	return err
}

func (l *Loader) isClosed() bool {
	l.closedMu.RLock()
	defer l.closedMu.RUnlock()
	return l.closed
}

// String returns a human-readable representation of loader stats
func (s Stats) String() string {
	return fmt.Sprintf("Loader Stats: %d slots (%s), %d hits, %d misses, %d recycles, %.1f%% hit rate, %d stale deliveries",
		s.Cache.Slots, formatBytes(s.Cache.ResidentBytes), s.Cache.Hits, s.Cache.Misses,
		s.Cache.Recycles, s.HitRate, s.StaleDeliveries)
}
