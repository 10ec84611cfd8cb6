// helpers_test.go: Shared fixtures for pixcache tests
//
// Copyright (c) 2025 AGILira
// Series: an AGLIra fragment
// SPDX-License-Identifier: MPL-2.0

package pixcache

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"io/fs"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/agilira/pixcache/imaging"
)

// pngBytes encodes a solid w x h PNG
func pngBytes(t testing.TB, w, h int, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

var (
	red  = color.NRGBA{R: 255, A: 255}
	blue = color.NRGBA{B: 255, A: 255}
)

// memSource serves assets from memory. When gate is set, Open blocks until
// the gate is closed or ctx is done; every Open is announced on opened.
type memSource struct {
	mu     sync.Mutex
	files  map[string][]byte
	opens  map[string]int
	gate   chan struct{}
	opened chan string
}

func newMemSource() *memSource {
	return &memSource{
		files:  make(map[string][]byte),
		opens:  make(map[string]int),
		opened: make(chan string, 64),
	}
}

func (m *memSource) put(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[key] = data
}

func (m *memSource) openCount(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens[key]
}

func (m *memSource) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	m.opens[key]++
	data, ok := m.files[key]
	gate := m.gate
	m.mu.Unlock()

	select {
	case m.opened <- key:
	default:
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if !ok {
		return nil, fmt.Errorf("mem %s: %w", key, fs.ErrNotExist)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// countingDecoder counts probes and full decodes
type countingDecoder struct {
	*imaging.Decoder
	probes  atomic.Int64
	decodes atomic.Int64
}

func newCountingDecoder() *countingDecoder {
	return &countingDecoder{Decoder: imaging.NewDecoder()}
}

func (d *countingDecoder) Probe(data []byte) (imaging.Info, error) {
	d.probes.Add(1)
	return d.Decoder.Probe(data)
}

func (d *countingDecoder) DecodeInfo(data []byte, info imaging.Info, dst *image.NRGBA) (*image.NRGBA, error) {
	d.decodes.Add(1)
	return d.Decoder.DecodeInfo(data, info, dst)
}

// newTestLoader builds a loader over a memSource with the Images prefix
func newTestLoader(t *testing.T, config CacheConfig) (*Loader, *memSource, *countingDecoder) {
	t.Helper()
	if config.ImageDir == "" {
		config.ImageDir = "Images"
	}
	src := newMemSource()
	dec := newCountingDecoder()
	l, err := NewWithConfig(config, src, dec)
	if err != nil {
		t.Fatalf("NewWithConfig: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l, src, dec
}

// pixelAt returns the color at (x, y) of buf
func pixelAt(t *testing.T, buf *Buffer, x, y int) color.NRGBA {
	t.Helper()
	img, err := buf.Image()
	if err != nil {
		t.Fatalf("Image: %v", err)
	}
	return img.NRGBAAt(x, y)
}
