// utils.go: Utility functions for pixcache
//
// Copyright (c) 2025 AGILira
// Series: an AGLIra fragment
// SPDX-License-Identifier: MPL-2.0

package pixcache

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"path"
	"strings"
)

// joinKey builds the cache key for name under dir, always slash separated
func joinKey(dir, name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	if dir == "" || path.IsAbs(name) {
		return path.Clean(name)
	}
	return path.Join(strings.ReplaceAll(dir, "\\", "/"), name)
}

// pixelBytes returns the NRGBA byte size of a w x h image
func pixelBytes(w, h int) int {
	if w <= 0 || h <= 0 {
		return 0
	}
	return 4 * w * h
}

// fits reports whether dst has enough pixel memory for a w x h NRGBA image
func fits(dst *image.NRGBA, w, h int) bool {
	return dst != nil && cap(dst.Pix) >= pixelBytes(w, h)
}

// readLimited copies r into buf, failing with ErrImageTooLarge when more than
// limit bytes are available. A limit <= 0 disables the check.
func readLimited(buf *bytes.Buffer, r io.Reader, limit int64) error {
	if limit <= 0 {
		_, err := buf.ReadFrom(r)
		return err
	}
	n, err := buf.ReadFrom(io.LimitReader(r, limit+1))
	if err != nil {
		return err
	}
	if n > limit {
		return fmt.Errorf("%w: more than %d bytes", ErrImageTooLarge, limit)
	}
	return nil
}

// formatBytes renders a byte count for humans
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
