// loader.go: Decode path for the pixcache Loader
//
// Copyright (c) 2025 AGILira
// Series: an AGLIra fragment
// SPDX-License-Identifier: MPL-2.0

package pixcache

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/agilira/pixcache/imaging"
)

// decodeBitmap returns a ready buffer for key, decoding into recycled memory
// whenever the cache offers some.
func (l *Loader) decodeBitmap(ctx context.Context, capacity int, key string) (*Buffer, error) {
	buf, hit, err := l.cache.Acquire(capacity, key)
	if err != nil {
		return nil, &LoadError{Key: key, Op: "acquire", Err: err}
	}
	if hit && buf != nil && buf.Ready() {
		l.logger.Debug("cache hit", "key", key)
		return buf, nil
	}

	var dst *image.NRGBA
	if buf != nil {
		dst = buf.memory()
	}

	started := time.Now()
	img, err := l.decode(ctx, key, dst)
	if err != nil {
		l.cache.Abort(key)
		l.logger.Error("decode failed", "key", key, "error", err)
		return nil, err
	}

	filled, err := l.cache.Fill(key, img)
	if errors.Is(err, ErrNotResident) {
		// The slot was recycled or released while decoding.
		l.logger.Warn("slot gone before fill", "key", key)
		return newDetachedBuffer(key, img), nil
	}
	if err != nil {
		return nil, &LoadError{Key: key, Op: "fill", Err: err}
	}

	l.logger.Debug("decoded",
		"key", key,
		"hit", hit,
		"reused", dst != nil && img == dst,
		"bytes", filled.Bytes(),
		"elapsed", time.Since(started).String())
	return filled, nil
}

// decode reads the asset for key and decodes it into dst when it fits
func (l *Loader) decode(ctx context.Context, key string, dst *image.NRGBA) (*image.NRGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, &LoadError{Key: key, Op: "read", Err: err}
	}

	rc, err := l.source.Open(ctx, key)
	if err != nil {
		return nil, &LoadError{Key: key, Op: "open", Err: err}
	}
	raw := getBuffer()
	defer putBuffer(raw)
	err = readLimited(raw, rc, l.config.MaxAssetBytes)
	if cerr := rc.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		return nil, &LoadError{Key: key, Op: "read", Err: err}
	}
	data := raw.Bytes()

	info, err := l.probe(key, data)
	if err != nil {
		return nil, &LoadError{Key: key, Op: "probe", Err: err}
	}
	if l.config.MaxImagePixels > 0 && info.Pixels() > l.config.MaxImagePixels {
		return nil, &LoadError{Key: key, Op: "probe",
			Err: fmt.Errorf("%w: %dx%d", ErrImageTooLarge, info.Width, info.Height)}
	}

	// Recycled memory is only reused when the new image fits into it.
	w, h := info.OrientedSize()
	if dst != nil && !fits(dst, w, h) {
		dst = nil
	}

	img, err := l.decoder.DecodeInfo(data, info, dst)
	if err != nil {
		return nil, &LoadError{Key: key, Op: "decode", Err: err}
	}
	return img, nil
}

// probeEntry is a remembered probe together with what identifies the bytes
// it was taken from
type probeEntry struct {
	info imaging.Info
	size int
}

// probe returns the header info for key. A remembered probe is used only when
// the current header still has the same dimensions and the asset the same
// size, so limits are never checked against a replaced file.
func (l *Loader) probe(key string, data []byte) (imaging.Info, error) {
	if w, h, err := imaging.Dimensions(data); err == nil {
		if e, ok := l.probes.Get(key); ok {
			if e.size == len(data) && e.info.Width == w && e.info.Height == h {
				return e.info, nil
			}
			l.logger.Debug("probe outdated", "key", key, "width", w, "height", h)
		}
	}
	info, err := l.decoder.Probe(data)
	if err != nil {
		return imaging.Info{}, err
	}
	l.probes.Set(key, probeEntry{info: info, size: len(data)})
	return info, nil
}
