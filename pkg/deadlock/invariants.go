// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package deadlock

import "fmt"

// CheckInvariants verifies the engine's structural invariants: ownership
// maps agree with each other, every requester's acquisitions respect the
// static ordering, every owned resource is registered, and the dependency
// graph holds no unresolved cycle. Read-only; tests call it after each
// operation sequence, production code never calls it on a hot path.
func (e *Engine) CheckInvariants() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	// Ownership maps must mirror each other: an id in resourceOwners must
	// appear in its owner's owned set.
	for handleID, requester := range e.resourceOwners {
		found := false
		for _, ent := range e.ownedResources[requester] {
			if ent.handle.ID == handleID {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("ownership maps out of sync: resource %d owned by %s but not in its owned set", handleID, requester)
		}
	}

	// Each requester's owned resources, in acquisition order, must carry
	// non-decreasing static orders. Grant-time refusal enforces this; the
	// check catches a regression in that path.
	for requester, entries := range e.ownedResources {
		prev := -1
		for _, ent := range entries {
			order, err := e.orderOf(ent.handle, 0)
			if err != nil {
				continue
			}
			if order < prev {
				return fmt.Errorf("acquisition order violated: %s acquired resource %d out of order", requester, ent.handle.ID)
			}
			prev = order
		}
	}

	// Every owned resource id must still be registered in the registry.
	for handleID := range e.resourceOwners {
		found := false
		for _, entries := range e.ownedResources {
			for _, ent := range entries {
				if ent.handle.ID == handleID {
					if _, err := e.reg.GetMetadata(ent.handle); err == nil {
						found = true
					}
					break
				}
			}
		}
		if !found {
			return fmt.Errorf("resource %d not registered in ResourceRegistry", handleID)
		}
	}

	// The dependency graph must be acyclic once any detected deadlock has
	// been resolved; callers run this between complete operation
	// sequences, not in the window between detection and resolution.
	if hasCycle(e.buildGraphLocked()) {
		return fmt.Errorf("dependency graph contains an unresolved cycle")
	}

	return nil
}
