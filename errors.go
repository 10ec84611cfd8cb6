// errors.go: Error values for the pixcache decode-buffer reuse library
//
// Copyright (c) 2025 AGILira
// Series: an AGLIra fragment
// SPDX-License-Identifier: MPL-2.0

package pixcache

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCapacity is returned when a capacity <= 0 is passed to Acquire or a load.
	ErrInvalidCapacity = errors.New("pixcache: capacity must be greater than 0")
	// ErrBufferReleased is returned when a released or recycled buffer handle is used.
	ErrBufferReleased = errors.New("pixcache: buffer released")
	// ErrNotResident is returned by Fill when the key no longer owns a slot.
	ErrNotResident = errors.New("pixcache: key not resident")
	// ErrImageTooLarge is returned when an image exceeds MaxImagePixels or MaxAssetBytes.
	ErrImageTooLarge = errors.New("pixcache: image too large")
	// ErrClosed is returned by a Loader after Close.
	ErrClosed = errors.New("pixcache: loader closed")
)

// LoadError records the key and stage of a failed load.
type LoadError struct {
	Key string
	Op  string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("pixcache: %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
