// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package deadlock

import (
	"time"

	halerrors "github.com/coreward/halcore/pkg/errors"
	"github.com/coreward/halcore/pkg/registry"
)

// priorityScore rates one held resource for victim selection:
// priority*1000 plus bonuses for Exclusive/Synchronized/DMACapable flags.
func priorityScore(priority registry.Priority, flags registry.Flags) int {
	score := int(priority) * 1000
	if flags.Has(registry.Exclusive) {
		score += 500
	}
	if flags.Has(registry.Synchronized) {
		score += 200
	}
	if flags.Has(registry.DMACapable) {
		score += 100
	}
	return score
}

// aggregateScoreLocked sums priorityScore across every resource requester
// owns, reduced by hold time so a long-held resource on a low-priority
// requester is preferred as the victim. The priority scored is the one the
// acquiring request carried; flag bonuses come from the resource metadata.
func (e *Engine) aggregateScoreLocked(requester string) int {
	total := 0
	for _, owned := range e.ownedResources[requester] {
		var flags registry.Flags
		if md, err := e.reg.GetMetadata(owned.handle); err == nil {
			flags = md.Flags
		}
		score := priorityScore(owned.priority, flags)
		heldFor := time.Since(owned.acquiredAt)
		score -= int(heldFor.Seconds())
		total += score
	}
	return total
}

// ResolveDeadlock picks the cycle participant with the lowest aggregate
// preemption score as the victim, releases every resource it owns (which
// in turn re-submits the freed resources' waiters), and records the
// outcome in the diagnostic history. The preempted requester observes its
// resources returning to idle and must retry; resolution is never
// surfaced as an error to it.
func (e *Engine) ResolveDeadlock(info DeadlockInfo) (string, error) {
	if !info.Detected || len(info.CycleParticipants) == 0 {
		return "", halerrors.InternalError()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	victim := info.CycleParticipants[0]
	best := e.aggregateScoreLocked(victim)
	for _, p := range info.CycleParticipants[1:] {
		if s := e.aggregateScoreLocked(p); s < best {
			best = s
			victim = p
		}
	}

	owned := append([]ownedEntry{}, e.ownedResources[victim]...)
	for _, ent := range owned {
		_ = e.releaseLocked(victim, ent.handle)
		e.preemptionsPerformed++
	}
	e.deadlocksResolved++
	e.history.Push(info)
	return victim, nil
}
