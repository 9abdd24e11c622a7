// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package ringbuffer provides a fixed-capacity keep-last-N buffer used for
// diagnostic history (most recently resolved deadlocks, recent samples).
// Once full, each Push overwrites the oldest entry.
//
// Not thread-safe: the owning subsystem serializes access under its own
// lock (see the deadlock engine's history field).
package ringbuffer

import "fmt"

// RingBuffer retains the last cap(entries) pushed values.
type RingBuffer[T any] struct {
	entries []T
	written uint64 // total Push calls; entries[written % cap] is the next slot
}

// New creates a buffer retaining the most recent capacity entries.
func New[T any](capacity int) (*RingBuffer[T], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("capacity must be greater than 0, got %d", capacity)
	}
	return &RingBuffer[T]{
		entries: make([]T, capacity),
	}, nil
}

// Push records item, evicting the oldest entry if the buffer is full.
func (r *RingBuffer[T]) Push(item T) {
	r.entries[r.written%uint64(cap(r.entries))] = item
	r.written++
}

// Snapshot returns the retained entries in chronological order, oldest
// first. The returned slice is a copy.
func (r *RingBuffer[T]) Snapshot() []T {
	n := r.Len()
	out := make([]T, 0, n)
	start := r.written - uint64(n)
	for i := start; i < r.written; i++ {
		out = append(out, r.entries[i%uint64(cap(r.entries))])
	}
	return out
}

// Last returns the most recently pushed entry, or the zero value and false
// if nothing has been pushed yet.
func (r *RingBuffer[T]) Last() (T, bool) {
	if r.written == 0 {
		var zero T
		return zero, false
	}
	return r.entries[(r.written-1)%uint64(cap(r.entries))], true
}

// Len returns the number of retained entries.
func (r *RingBuffer[T]) Len() int {
	if r.written < uint64(cap(r.entries)) {
		return int(r.written)
	}
	return cap(r.entries)
}

// Cap returns the retention capacity.
func (r *RingBuffer[T]) Cap() int {
	return cap(r.entries)
}

// Clear drops every retained entry.
func (r *RingBuffer[T]) Clear() {
	clear(r.entries)
	r.written = 0
}
