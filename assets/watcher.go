// watcher.go: Asset change notifications for pixcache
//
// Copyright (c) 2025 AGILira
// Series: an AGLIra fragment
// SPDX-License-Identifier: MPL-2.0

package assets

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher reports keys whose files changed under a Dir
type Watcher struct {
	dir      *Dir
	fsw      *fsnotify.Watcher
	onChange func(key string)
	onError  func(error)
}

// NewWatcher watches every directory under dir. onChange receives keys;
// onError may be nil.
func NewWatcher(dir *Dir, onChange func(key string), onError func(error)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("assets: watcher: %w", err)
	}
	w := &Watcher{dir: dir, fsw: fsw, onChange: onChange, onError: onError}
	if err := w.addTree(dir.Root()); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// Run delivers change notifications until ctx is done or the watcher is closed
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			if w.onError != nil {
				w.onError(err)
			}
		}
	}
}

// Close stops watching
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if ev.Has(fsnotify.Create) {
		if st, err := os.Stat(ev.Name); err == nil && st.IsDir() {
			if err := w.addTree(ev.Name); err != nil && w.onError != nil {
				w.onError(err)
			}
			return
		}
	}
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) &&
		!ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return
	}
	if key, ok := w.dir.KeyFor(ev.Name); ok && w.onChange != nil {
		w.onChange(key)
	}
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsw.Add(p); err != nil {
			return fmt.Errorf("assets: watch %s: %w", p, err)
		}
		return nil
	})
}
