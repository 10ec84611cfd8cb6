// target.go: Generation-token delivery targets for asynchronous loads
//
// Copyright (c) 2025 AGILira
// Series: an AGLIra fragment
// SPDX-License-Identifier: MPL-2.0

package pixcache

import "sync/atomic"

// Token identifies one binding of a Target
type Token uint64

// Target stands in for whatever consumes an asynchronous load (a view, a
// sprite). Every Bind issues a new generation; results carrying an older
// token, or arriving after Detach, are dropped.
type Target struct {
	gen      atomic.Uint64
	detached atomic.Bool
}

// NewTarget creates a live target
func NewTarget() *Target {
	return &Target{}
}

// Bind starts a new generation and returns its token.
// Earlier tokens become stale.
func (t *Target) Bind() Token {
	if t == nil {
		return 0
	}
	return Token(t.gen.Add(1))
}

// Detach marks the target as gone. All tokens become stale.
func (t *Target) Detach() {
	if t != nil {
		t.detached.Store(true)
	}
}

// Valid reports whether tok is still the current generation of a live target.
// A nil target accepts every token.
func (t *Target) Valid(tok Token) bool {
	if t == nil {
		return true
	}
	return !t.detached.Load() && Token(t.gen.Load()) == tok
}
