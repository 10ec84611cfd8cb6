// loader_test.go: Tests for synchronous and asynchronous loading
//
// Copyright (c) 2025 AGILira
// Series: an AGLIra fragment
// SPDX-License-Identifier: MPL-2.0

package pixcache

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/agilira/pixcache/imaging"
)

func TestLoader_LoadImageHit(t *testing.T) {
	l, src, dec := newTestLoader(t, CacheConfig{})
	src.put("Images/a.png", pngBytes(t, 4, 4, red))

	first, err := l.LoadImage(context.Background(), 2, "a.png")
	if err != nil {
		t.Fatalf("LoadImage: %v", err)
	}
	if first.Key() != "Images/a.png" || !first.Ready() {
		t.Errorf("Unexpected buffer key=%s ready=%v", first.Key(), first.Ready())
	}
	if got := pixelAt(t, first, 1, 1); got != red {
		t.Errorf("Expected red pixel, got %v", got)
	}

	second, err := l.LoadImage(context.Background(), 2, "a.png")
	if err != nil {
		t.Fatalf("LoadImage: %v", err)
	}
	if second != first {
		t.Error("A hit should return the resident buffer")
	}
	if n := dec.decodes.Load(); n != 1 {
		t.Errorf("Expected 1 decode, got %d", n)
	}

	stats := l.Stats()
	if stats.Cache.Hits != 1 || stats.Cache.Misses != 1 {
		t.Errorf("Expected 1 hit and 1 miss, got %+v", stats.Cache)
	}
	if stats.HitRate != 50 {
		t.Errorf("Expected 50%% hit rate, got %.1f", stats.HitRate)
	}
	if !strings.Contains(stats.String(), "1 hits") {
		t.Errorf("Unexpected stats string: %s", stats)
	}
}

func TestLoader_RecycleDecodesInPlace(t *testing.T) {
	l, src, _ := newTestLoader(t, CacheConfig{})
	src.put("Images/a.png", pngBytes(t, 4, 4, red))
	src.put("Images/b.png", pngBytes(t, 2, 3, blue))
	ctx := context.Background()

	a, err := l.LoadImage(ctx, 1, "a.png")
	if err != nil {
		t.Fatalf("LoadImage a: %v", err)
	}
	mem, _ := a.Image()

	b, err := l.LoadImage(ctx, 1, "b.png")
	if err != nil {
		t.Fatalf("LoadImage b: %v", err)
	}
	got, _ := b.Image()
	if got != mem {
		t.Error("b should be decoded into a's memory")
	}
	if got.Rect.Dx() != 2 || got.Rect.Dy() != 3 {
		t.Errorf("Expected 2x3 image, got %v", got.Rect)
	}
	if c := pixelAt(t, b, 1, 2); c != blue {
		t.Errorf("Expected blue pixel, got %v", c)
	}
	if !a.Released() {
		t.Error("a's handle should be released after its memory moved to b")
	}
	if keys := l.Cache().Keys(); len(keys) != 1 || keys[0] != "Images/b.png" {
		t.Errorf("Expected only b resident, got %v", keys)
	}
}

func TestLoader_RecycleTooSmallAllocates(t *testing.T) {
	l, src, _ := newTestLoader(t, CacheConfig{})
	src.put("Images/small.png", pngBytes(t, 2, 2, red))
	src.put("Images/big.png", pngBytes(t, 8, 8, blue))
	ctx := context.Background()

	small, err := l.LoadImage(ctx, 1, "small.png")
	if err != nil {
		t.Fatal(err)
	}
	mem, _ := small.Image()

	big, err := l.LoadImage(ctx, 1, "big.png")
	if err != nil {
		t.Fatal(err)
	}
	got, _ := big.Image()
	if got == mem {
		t.Error("An image larger than the recycled memory needs a new allocation")
	}
	if big.Bytes() != 8*8*4 {
		t.Errorf("Expected %d bytes, got %d", 8*8*4, big.Bytes())
	}
	if l.Stats().Cache.Slots != 1 {
		t.Error("Capacity 1 must keep a single slot")
	}
}

func TestLoader_Failures(t *testing.T) {
	l, src, _ := newTestLoader(t, CacheConfig{})
	src.put("Images/bad.png", []byte("definitely not an image"))
	ctx := context.Background()

	_, err := l.LoadImage(ctx, 2, "bad.png")
	var le *LoadError
	if !errors.As(err, &le) || le.Op != "probe" {
		t.Fatalf("Expected probe LoadError, got %v", err)
	}
	if !errors.Is(err, imaging.ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
	}
	if !l.Cache().Contains("Images/bad.png") {
		t.Error("A failed decode keeps its slot")
	}
	if l.Stats().Cache.Aborts != 1 {
		t.Errorf("Expected 1 abort, got %d", l.Stats().Cache.Aborts)
	}

	_, err = l.LoadImage(ctx, 2, "missing.png")
	if !errors.As(err, &le) || le.Op != "open" || !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Expected open LoadError wrapping fs.ErrNotExist, got %v", err)
	}

	if _, err := l.LoadImage(ctx, 0, "bad.png"); !errors.Is(err, ErrInvalidCapacity) {
		t.Errorf("Expected ErrInvalidCapacity, got %v", err)
	}
}

func TestLoader_Limits(t *testing.T) {
	t.Run("pixels", func(t *testing.T) {
		l, src, dec := newTestLoader(t, CacheConfig{MaxImagePixels: 10})
		src.put("Images/a.png", pngBytes(t, 4, 4, red))
		_, err := l.LoadImage(context.Background(), 1, "a.png")
		if !errors.Is(err, ErrImageTooLarge) {
			t.Errorf("Expected ErrImageTooLarge, got %v", err)
		}
		if dec.decodes.Load() != 0 {
			t.Error("Oversized images must be rejected before decoding")
		}
	})

	t.Run("bytes", func(t *testing.T) {
		l, src, _ := newTestLoader(t, CacheConfig{MaxAssetBytes: 16})
		src.put("Images/a.png", pngBytes(t, 4, 4, red))
		_, err := l.LoadImage(context.Background(), 1, "a.png")
		var le *LoadError
		if !errors.As(err, &le) || le.Op != "read" || !errors.Is(err, ErrImageTooLarge) {
			t.Errorf("Expected read LoadError with ErrImageTooLarge, got %v", err)
		}
	})
}

func TestLoader_ForgetDecodesAgain(t *testing.T) {
	l, src, dec := newTestLoader(t, CacheConfig{})
	src.put("Images/a.png", pngBytes(t, 4, 4, red))
	ctx := context.Background()

	first, err := l.LoadImage(ctx, 2, "a.png")
	if err != nil {
		t.Fatal(err)
	}
	mem, _ := first.Image()

	src.put("Images/a.png", pngBytes(t, 4, 4, blue))
	l.Forget("a.png")
	if !first.Released() {
		t.Error("Forget should invalidate the old handle")
	}

	second, err := l.LoadImage(ctx, 2, "a.png")
	if err != nil {
		t.Fatal(err)
	}
	got, _ := second.Image()
	if got != mem {
		t.Error("A forgotten key should decode into its own memory")
	}
	if c := pixelAt(t, second, 0, 0); c != blue {
		t.Errorf("Expected new content, got %v", c)
	}
	if dec.decodes.Load() != 2 {
		t.Errorf("Expected 2 decodes, got %d", dec.decodes.Load())
	}
}

func TestLoader_SharedDecode(t *testing.T) {
	l, src, dec := newTestLoader(t, CacheConfig{})
	src.put("Images/a.png", pngBytes(t, 4, 4, red))
	src.gate = make(chan struct{})

	type out struct {
		buf *Buffer
		err error
	}
	results := make(chan out, 2)
	load := func() {
		buf, err := l.LoadImage(context.Background(), 2, "a.png")
		results <- out{buf, err}
	}
	go load()
	<-src.opened
	go load()
	time.Sleep(20 * time.Millisecond)
	close(src.gate)

	r1, r2 := <-results, <-results
	if r1.err != nil || r2.err != nil {
		t.Fatalf("Unexpected errors: %v, %v", r1.err, r2.err)
	}
	if r1.buf != r2.buf {
		t.Error("Concurrent loads of one key should share a buffer")
	}
	if dec.decodes.Load() != 1 {
		t.Errorf("Expected a single decode, got %d", dec.decodes.Load())
	}
}

func TestLoader_ReleaseDuringDecode(t *testing.T) {
	l, src, _ := newTestLoader(t, CacheConfig{})
	src.put("Images/a.png", pngBytes(t, 4, 4, red))
	src.gate = make(chan struct{})

	done := make(chan *Buffer, 1)
	go func() {
		buf, err := l.LoadImage(context.Background(), 2, "a.png")
		if err != nil {
			t.Errorf("LoadImage: %v", err)
		}
		done <- buf
	}()

	<-src.opened
	l.ReleaseCache()
	close(src.gate)

	buf := <-done
	if buf == nil {
		t.Fatal("Expected a buffer")
	}
	if !buf.Detached() || !buf.Ready() {
		t.Error("A decode finishing after release should come back detached")
	}
	if l.Cache().Len() != 0 {
		t.Errorf("Released cache should stay empty, got %d slots", l.Cache().Len())
	}
}

func TestLoader_LoadAsync(t *testing.T) {
	l, src, _ := newTestLoader(t, CacheConfig{Workers: 2})
	src.put("Images/a.png", pngBytes(t, 4, 4, red))

	results := make(chan Result, 1)
	target := NewTarget()
	if err := l.LoadAsync(context.Background(), 2, "a.png", target, func(r Result) { results <- r }); err != nil {
		t.Fatalf("LoadAsync: %v", err)
	}

	select {
	case r := <-results:
		if r.Err != nil {
			t.Fatalf("Async load failed: %v", r.Err)
		}
		if r.ID == "" || r.Key != "Images/a.png" || !r.Buffer.Ready() {
			t.Errorf("Unexpected result %+v", r)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for delivery")
	}

	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if l.Stats().Delivered != 1 {
		t.Errorf("Expected 1 delivery, got %d", l.Stats().Delivered)
	}
}

func TestLoader_StaleDeliveries(t *testing.T) {
	testCases := []struct {
		name  string
		after func(target *Target, cancel context.CancelFunc)
	}{
		{"rebind", func(target *Target, _ context.CancelFunc) { target.Bind() }},
		{"detach", func(target *Target, _ context.CancelFunc) { target.Detach() }},
		{"cancel", func(_ *Target, cancel context.CancelFunc) { cancel() }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			l, src, _ := newTestLoader(t, CacheConfig{})
			src.put("Images/a.png", pngBytes(t, 4, 4, red))
			src.gate = make(chan struct{})

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			target := NewTarget()
			called := false
			if err := l.LoadAsync(ctx, 2, "a.png", target, func(Result) { called = true }); err != nil {
				t.Fatalf("LoadAsync: %v", err)
			}

			<-src.opened
			tc.after(target, cancel)
			close(src.gate)

			if err := l.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}
			if called {
				t.Error("A stale result must not be delivered")
			}
			if l.Stats().StaleDeliveries != 1 {
				t.Errorf("Expected 1 stale delivery, got %d", l.Stats().StaleDeliveries)
			}
		})
	}
}

func TestLoader_LoadTimeout(t *testing.T) {
	l, src, _ := newTestLoader(t, CacheConfig{LoadTimeout: 20 * time.Millisecond})
	src.put("Images/a.png", pngBytes(t, 4, 4, red))
	src.gate = make(chan struct{})
	defer close(src.gate)

	results := make(chan Result, 1)
	if err := l.LoadAsync(context.Background(), 1, "a.png", nil, func(r Result) { results <- r }); err != nil {
		t.Fatal(err)
	}
	select {
	case r := <-results:
		if !errors.Is(r.Err, context.DeadlineExceeded) {
			t.Errorf("Expected deadline error, got %v", r.Err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for delivery")
	}
}

func TestLoader_Close(t *testing.T) {
	l, src, _ := newTestLoader(t, CacheConfig{})
	src.put("Images/a.png", pngBytes(t, 4, 4, red))

	buf, err := l.LoadImage(context.Background(), 1, "a.png")
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("Second Close should be a no-op, got %v", err)
	}
	if !buf.Released() {
		t.Error("Close should release resident buffers")
	}
	if _, err := l.LoadImage(context.Background(), 1, "a.png"); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
	if err := l.LoadAsync(context.Background(), 1, "a.png", nil, nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
	if err := l.LoadAsync(context.Background(), 0, "a.png", nil, nil); !errors.Is(err, ErrInvalidCapacity) {
		t.Errorf("Expected ErrInvalidCapacity, got %v", err)
	}
}

func TestLoader_ProbeCache(t *testing.T) {
	l, src, dec := newTestLoader(t, CacheConfig{})
	src.put("Images/a.png", pngBytes(t, 4, 4, red))
	src.put("Images/b.png", pngBytes(t, 4, 4, blue))
	ctx := context.Background()

	for _, name := range []string{"a.png", "b.png", "a.png"} {
		if _, err := l.LoadImage(ctx, 1, name); err != nil {
			t.Fatal(err)
		}
	}
	stats := l.Stats()
	if stats.ProbeMisses != 2 || stats.ProbeHits != 1 {
		t.Errorf("Expected 2 probe misses and 1 hit, got %d/%d", stats.ProbeMisses, stats.ProbeHits)
	}
	if src.openCount("Images/a.png") != 2 {
		t.Errorf("Expected a.png to be read twice, got %d", src.openCount("Images/a.png"))
	}
	if dec.probes.Load() != 2 {
		t.Errorf("Expected 2 full probes, got %d", dec.probes.Load())
	}
}

func TestLoader_ReplacedAssetIsProbedAgain(t *testing.T) {
	t.Run("limit", func(t *testing.T) {
		l, src, dec := newTestLoader(t, CacheConfig{MaxImagePixels: 20})
		src.put("Images/a.png", pngBytes(t, 4, 4, red))
		src.put("Images/b.png", pngBytes(t, 4, 4, blue))
		ctx := context.Background()

		if _, err := l.LoadImage(ctx, 1, "a.png"); err != nil {
			t.Fatal(err)
		}
		// b recycles a's slot, so the next load of a reads the asset again.
		if _, err := l.LoadImage(ctx, 1, "b.png"); err != nil {
			t.Fatal(err)
		}
		src.put("Images/a.png", pngBytes(t, 8, 8, red))

		_, err := l.LoadImage(ctx, 1, "a.png")
		if !errors.Is(err, ErrImageTooLarge) {
			t.Fatalf("Expected ErrImageTooLarge for the replaced asset, got %v", err)
		}
		if dec.decodes.Load() != 2 {
			t.Errorf("Replaced asset must be rejected before decoding, got %d decodes", dec.decodes.Load())
		}
	})

	t.Run("size", func(t *testing.T) {
		l, src, dec := newTestLoader(t, CacheConfig{})
		src.put("Images/a.png", pngBytes(t, 4, 4, red))
		src.put("Images/b.png", pngBytes(t, 4, 4, blue))
		ctx := context.Background()

		for _, name := range []string{"a.png", "b.png"} {
			if _, err := l.LoadImage(ctx, 1, name); err != nil {
				t.Fatal(err)
			}
		}
		src.put("Images/a.png", pngBytes(t, 2, 3, blue))

		buf, err := l.LoadImage(ctx, 1, "a.png")
		if err != nil {
			t.Fatal(err)
		}
		if got := buf.Bounds(); got.Dx() != 2 || got.Dy() != 3 {
			t.Errorf("Expected 2x3 after replacement, got %v", got)
		}
		if dec.probes.Load() != 3 {
			t.Errorf("Expected the replaced asset to be probed again, got %d probes", dec.probes.Load())
		}
	})
}

func TestLoader_ZerologLogger(t *testing.T) {
	var out bytes.Buffer
	logger := NewZerologLogger(zerolog.New(&out).Level(zerolog.DebugLevel))
	l, src, _ := newTestLoader(t, CacheConfig{Logger: logger})
	src.put("Images/a.png", pngBytes(t, 4, 4, red))

	if _, err := l.LoadImage(context.Background(), 1, "a.png"); err != nil {
		t.Fatal(err)
	}
	if _, err := l.LoadImage(context.Background(), 1, "a.png"); err != nil {
		t.Fatal(err)
	}

	logs := out.String()
	for _, want := range []string{`"message":"decoded"`, `"message":"cache hit"`, `"key":"Images/a.png"`} {
		if !strings.Contains(logs, want) {
			t.Errorf("Expected %s in logs:\n%s", want, logs)
		}
	}
}

func TestLoader_DirSourceAndWatch(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "Images", "a.png")
	writeFile(t, path, string(pngBytes(t, 4, 4, red)))

	l, err := NewWithConfig(CacheConfig{AssetRoot: root, ImageDir: "Images"}, nil, nil)
	if err != nil {
		t.Fatalf("NewWithConfig: %v", err)
	}
	defer l.Close()

	buf, err := l.LoadImage(context.Background(), 2, "a.png")
	if err != nil {
		t.Fatalf("LoadImage: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	watchDone := make(chan error, 1)
	go func() { watchDone <- l.Watch(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for !buf.Released() && time.Now().Before(deadline) {
		if err := os.WriteFile(path, pngBytes(t, 4, 4, blue), 0o600); err != nil {
			t.Fatal(err)
		}
		time.Sleep(50 * time.Millisecond)
	}
	if !buf.Released() {
		t.Fatal("Changing the file should forget the cached decode")
	}
	// Let trailing events for the last write drain.
	time.Sleep(200 * time.Millisecond)

	fresh, err := l.LoadImage(context.Background(), 2, "a.png")
	if err != nil {
		t.Fatal(err)
	}
	if c := pixelAt(t, fresh, 0, 0); c != blue {
		t.Errorf("Expected reloaded content, got %v", c)
	}

	cancel()
	if err := <-watchDone; err != nil {
		t.Errorf("Watch: %v", err)
	}
}

func TestNew_UsesGlobalConfig(t *testing.T) {
	root := t.TempDir()
	SetGlobalConfig(CacheConfig{AssetRoot: root, Capacity: 3})
	defer ClearGlobalConfig()

	l, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer l.Close()
	if l.Config().Capacity != 3 || l.Config().AssetRoot != root {
		t.Errorf("Global config not applied: %+v", l.Config())
	}
	if l.Key("x.png") != "x.png" {
		t.Errorf("Empty image dir should not prefix keys, got %s", l.Key("x.png"))
	}

	SetGlobalConfig(CacheConfig{AssetRoot: filepath.Join(root, "missing")})
	if _, err := New(); err == nil {
		t.Error("A missing asset root should fail")
	}
}
