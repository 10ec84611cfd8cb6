// buffer.go: Owned decode-target handles for the pixcache reuse cache
//
// Copyright (c) 2025 AGILira
// Series: an AGLIra fragment
// SPDX-License-Identifier: MPL-2.0

package pixcache

import (
	"image"
	"sync"
)

// Buffer is a handle to decode-target memory owned by a ReuseCache slot.
//
// A handle stays valid until the cache is released or its slot is recycled
// for another key; after that Image returns ErrBufferReleased. Memory that
// moves to a new key is always wrapped in a new handle.
type Buffer struct {
	mu       sync.RWMutex
	key      string
	img      *image.NRGBA
	ready    bool
	released bool
	detached bool
}

func newBuffer(key string, img *image.NRGBA, ready bool) *Buffer {
	return &Buffer{key: key, img: img, ready: ready}
}

// newDetachedBuffer wraps memory that no slot owns, e.g. a decode that
// finished after its slot was recycled.
func newDetachedBuffer(key string, img *image.NRGBA) *Buffer {
	return &Buffer{key: key, img: img, ready: true, detached: true}
}

// Image returns the decode target. The pixels are only meaningful for Key when
// Ready reports true; otherwise the memory is offered for in-place decoding.
func (b *Buffer) Image() (*image.NRGBA, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.released {
		return nil, ErrBufferReleased
	}
	return b.img, nil
}

// Key returns the resource key this handle was issued for
func (b *Buffer) Key() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.key
}

// Ready reports whether the pixels hold a successful decode of Key
func (b *Buffer) Ready() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ready && !b.released
}

// Released reports whether the handle has been invalidated
func (b *Buffer) Released() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.released
}

// Detached reports whether the memory is outside the cache's ownership
func (b *Buffer) Detached() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.detached
}

// Bytes returns the allocated pixel capacity, which bounds the size of images
// that can be decoded into this buffer.
func (b *Buffer) Bytes() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.released || b.img == nil {
		return 0
	}
	return cap(b.img.Pix)
}

// Bounds returns the bounds of the current image, or an empty rectangle
func (b *Buffer) Bounds() image.Rectangle {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.released || b.img == nil {
		return image.Rectangle{}
	}
	return b.img.Rect
}

// memory returns the pixel memory without the released check. Callers hold
// the cache lock or own the handle exclusively.
func (b *Buffer) memory() *image.NRGBA {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.img
}

func (b *Buffer) holds(img *image.NRGBA) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return !b.released && b.img == img
}

func (b *Buffer) markReady() {
	b.mu.Lock()
	b.ready = true
	b.mu.Unlock()
}

// release invalidates the handle and drops its reference to the memory
func (b *Buffer) release() {
	b.mu.Lock()
	b.released = true
	b.ready = false
	b.img = nil
	b.mu.Unlock()
}

// handOff moves the memory to a new, not-ready handle for key and
// invalidates b.
func (b *Buffer) handOff(key string) *Buffer {
	b.mu.Lock()
	img := b.img
	b.released = true
	b.ready = false
	b.img = nil
	b.mu.Unlock()

	if img == nil {
		return nil
	}
	return newBuffer(key, img, false)
}
