// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package reslock implements ResourceLock: a scoped acquire/release over a
// deadlock.Engine. Go has no destructors, so scoped acquisition is an
// explicit constructor plus a caller-deferred Release, the same
// defer-paired acquire/release idiom used for a plain mutex
// (mu.Lock(); defer mu.Unlock()) applied to a deadlock-engine-backed
// resource scope.
package reslock

import (
	"sync"
	"time"

	"github.com/coreward/halcore/pkg/deadlock"
	"github.com/coreward/halcore/pkg/registry"
)

// Lock is a scoped acquisition of a resource via deadlock.Engine. The
// embedded noCopy field makes `go vet`'s copylocks check flag any
// accidental copy of a live Lock.
type Lock struct {
	noCopy noCopy

	engine      *deadlock.Engine
	requesterID string
	handle      registry.Handle

	mu       sync.Mutex
	isLocked bool
	err      error
}

type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Acquire constructs a Lock and immediately attempts to acquire handle on
// behalf of requesterID through engine. IsLocked reports whether
// acquisition succeeded; on failure the returned error (ordering violation,
// or contention, including a wait that closes a cycle) is also stored and
// returned.
func Acquire(engine *deadlock.Engine, requesterID string, handle registry.Handle, priority registry.Priority, timeout time.Duration, exclusive bool) (*Lock, error) {
	l := &Lock{
		engine:      engine,
		requesterID: requesterID,
		handle:      handle,
	}

	err := engine.RequestResourceAcquisition(deadlock.ResourceRequest{
		RequesterID: requesterID,
		Handle:      handle,
		Priority:    priority,
		RequestTime: time.Now(),
		Timeout:     timeout,
		Exclusive:   exclusive,
	})
	l.err = err
	l.isLocked = err == nil
	return l, err
}

// IsLocked reports whether the resource is currently held by this Lock.
func (l *Lock) IsLocked() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.isLocked
}

// Release ends the scope early. Idempotent: a second call is a no-op. Safe
// to call via defer even when Acquire failed.
func (l *Lock) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.isLocked {
		return
	}
	_ = l.engine.ReleaseResource(l.requesterID, l.handle)
	l.isLocked = false
}
