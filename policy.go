// policy.go: Slot eviction policies for the pixcache reuse cache
//
// Copyright (c) 2025 AGILira
// Series: an AGLIra fragment
// SPDX-License-Identifier: MPL-2.0

package pixcache

import "strings"

// EvictionPolicy decides how a hit affects the recycle order.
// The oldest slot in the queue is always the one recycled.
type EvictionPolicy interface {
	Name() string
	PromoteOnHit() bool
}

// FIFOPolicy recycles slots in insertion order; hits do not reorder
type FIFOPolicy struct{}

// Name returns "fifo"
func (p *FIFOPolicy) Name() string { return "fifo" }

// PromoteOnHit always returns false
func (p *FIFOPolicy) PromoteOnHit() bool { return false }

// LRUPolicy moves a hit slot to the back of the queue
type LRUPolicy struct{}

// Name returns "lru"
func (p *LRUPolicy) Name() string { return "lru" }

// PromoteOnHit always returns true
func (p *LRUPolicy) PromoteOnHit() bool { return true }

// policyFor maps a configured name to a policy, defaulting to FIFO
func policyFor(name string) EvictionPolicy {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "lru":
		return &LRUPolicy{}
	default:
		return &FIFOPolicy{}
	}
}

func isKnownPolicy(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "fifo", "lru":
		return true
	}
	return false
}
