// dir.go: Directory-backed asset source for pixcache
//
// Copyright (c) 2025 AGILira
// Series: an AGLIra fragment
// SPDX-License-Identifier: MPL-2.0

// Package assets resolves pixcache keys to encoded bytes on disk.
//
// Keys are slash separated paths relative to a root directory. A key whose
// plain file is missing is also looked up with a ".zst" suffix and
// decompressed on the fly.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// CompressedExt is the suffix of zstd compressed assets
const CompressedExt = ".zst"

var (
	// ErrNotFound is returned when neither the plain nor the compressed asset exists.
	ErrNotFound = fmt.Errorf("assets: %w", fs.ErrNotExist)
	// ErrInvalidKey is returned for absolute keys or keys escaping the root.
	ErrInvalidKey = errors.New("assets: invalid key")
)

// Dir serves assets from a directory tree
type Dir struct {
	root string
}

// NewDir creates a source rooted at root, which must be an existing directory
func NewDir(root string) (*Dir, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("assets: resolve root %s: %w", root, err)
	}
	st, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("assets: stat root: %w", err)
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("assets: root %s is not a directory", abs)
	}
	return &Dir{root: abs}, nil
}

// Root returns the absolute root directory
func (d *Dir) Root() string {
	return d.root
}

// Resolve maps key to a file path under the root
func (d *Dir) Resolve(key string) (string, error) {
	rel := filepath.FromSlash(key)
	if key == "" || !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(d.root, rel), nil
}

// Open returns a reader for key. The caller closes it.
func (d *Dir) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := d.Resolve(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(p) // #nosec G304 -- p is confined to the root by Resolve
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("assets: open %s: %w", key, err)
	}

	zf, err := os.Open(p + CompressedExt) // #nosec G304
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("assets: open %s%s: %w", key, CompressedExt, err)
	}
	dec, err := zstd.NewReader(zf)
	if err != nil {
		_ = zf.Close()
		return nil, fmt.Errorf("assets: zstd %s: %w", key, err)
	}
	return &zstdFile{dec: dec, file: zf}, nil
}

// KeyFor converts an absolute path under the root back to a key. The
// compressed suffix is stripped so both forms map to the same key.
func (d *Dir) KeyFor(p string) (string, bool) {
	rel, err := filepath.Rel(d.root, p)
	if err != nil || !filepath.IsLocal(rel) {
		return "", false
	}
	return strings.TrimSuffix(filepath.ToSlash(rel), CompressedExt), true
}

// zstdFile closes both the decoder and the underlying file
type zstdFile struct {
	dec  *zstd.Decoder
	file *os.File
}

func (z *zstdFile) Read(p []byte) (int, error) {
	return z.dec.Read(p)
}

func (z *zstdFile) Close() error {
	z.dec.Close()
	return z.file.Close()
}
