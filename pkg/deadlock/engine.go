// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package deadlock implements the DeadlockEngine: static resource ordering
// refused at request time, a dynamic waiter->owner wait-for graph, DFS
// cycle detection, and priority-based preemption of a victim to break a
// detected cycle. This is the coordination substrate every ResourceLock
// acquisition goes through.
package deadlock

import (
	"sync"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/client-go/util/workqueue"

	halerrors "github.com/coreward/halcore/pkg/errors"
	"github.com/coreward/halcore/pkg/registry"
	"github.com/coreward/halcore/pkg/ringbuffer"
)

// historySize bounds the diagnostic ring of resolved deadlocks.
const historySize = 32

// dependencyMaxAge is the fixed age after which a dependency edge is
// dropped by CleanupExpiredItems even if never explicitly released.
const dependencyMaxAge = 30 * time.Second

// defaultBaseOrder is the static resource ordering: lower acquires first.
// A requester may never acquire a resource whose order is lower than one
// it already holds.
var defaultBaseOrder = map[registry.ResourceType]int{
	registry.TypeMemory:        100,
	registry.TypeHardware:      200,
	registry.TypePerformance:   300,
	registry.TypeCommunication: 400,
	registry.TypePlatform:      500,
	registry.TypeCustom:        1000,
}

// ResourceRequest describes one requester's attempt to acquire handle.
// Instance extends the ordering key of the requested resource for two
// resources of the same Type. Only the request's own Instance is used:
// resources a requester already holds are always ranked at Instance 0, so
// a same-Type request is refused only when its Instance-extended order is
// below that Instance-0 rank.
type ResourceRequest struct {
	RequesterID string
	Handle      registry.Handle
	Priority    registry.Priority
	RequestTime time.Time
	Timeout     time.Duration
	Exclusive   bool
	Instance    uint8
}

// DependencyEdge is a directed "waiter waits on owner, via handle" relation.
// Edge direction is waiter -> owner ("I wait on you"): DFS walks outgoing
// edges from each waiter and a back-edge to a node already on the
// recursion stack is the cycle.
type DependencyEdge struct {
	Waiter    string
	Owner     string
	Handle    registry.Handle
	CreatedAt time.Time
}

// DeadlockInfo is the result of DetectDeadlock.
type DeadlockInfo struct {
	Detected          bool
	CycleParticipants []string
	InvolvedResources []registry.Handle
	DetectedAt        time.Time
}

// Stats is a snapshot of the engine's counters.
type Stats struct {
	RequestsDenied       uint64
	DeadlocksDetected    uint64
	DeadlocksResolved    uint64
	PreemptionsPerformed uint64
}

type ownedEntry struct {
	handle     registry.Handle
	priority   registry.Priority // the acquiring request's priority, scored at preemption time
	acquiredAt time.Time
}

// Engine is the DeadlockEngine. Construct one per running HAL instance
// (see pkg/hal) after the ResourceRegistry, per the facade's init order.
type Engine struct {
	mu sync.Mutex

	reg *registry.Registry
	log logr.Logger

	ownedResources map[string][]ownedEntry   // requester -> owned handles
	resourceOwners map[uint64]string         // handle id -> requester
	dependencies   []DependencyEdge          // authoritative edge list
	waiting        workqueue.TypedRateLimitingInterface[*ResourceRequest]

	history *ringbuffer.RingBuffer[DeadlockInfo]

	requestsDenied       uint64
	deadlocksDetected    uint64
	deadlocksResolved    uint64
	preemptionsPerformed uint64
}

// New constructs an empty Engine bound to reg, used to resolve a handle's
// Type (for ordering) and Priority/Flags (for preemption scoring).
func New(reg *registry.Registry, log logr.Logger) *Engine {
	hist, _ := ringbuffer.New[DeadlockInfo](historySize)
	rl := workqueue.DefaultTypedControllerRateLimiter[*ResourceRequest]()
	return &Engine{
		reg:            reg,
		log:            log.WithName("deadlock"),
		ownedResources: make(map[string][]ownedEntry),
		resourceOwners: make(map[uint64]string),
		waiting: workqueue.NewTypedRateLimitingQueueWithConfig(rl,
			workqueue.TypedRateLimitingQueueConfig[*ResourceRequest]{Name: "deadlock-waiting"}),
		history: hist,
	}
}

func (e *Engine) orderOf(h registry.Handle, instance uint8) (int, error) {
	md, err := e.reg.GetMetadata(h)
	if err != nil {
		return 0, halerrors.WrapContext(halerrors.InvalidParameter(), "deadlock: resource not registered")
	}
	base, ok := defaultBaseOrder[md.Type]
	if !ok {
		base = defaultBaseOrder[registry.TypeCustom]
	}
	return base*1000 + int(instance), nil
}

// IsAcquisitionSafe reports whether request can be granted (or queued)
// without violating static ordering or creating a wait-for cycle. True
// when the requester already owns the resource; false on an ordering
// violation; otherwise the simulated wait edge is checked for a cycle.
func (e *Engine) IsAcquisitionSafe(request ResourceRequest) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.isAcquisitionSafeLocked(request)
}

func (e *Engine) isAcquisitionSafeLocked(request ResourceRequest) (bool, error) {
	if owner, ok := e.resourceOwners[request.Handle.ID]; ok && owner == request.RequesterID {
		return true, nil
	}

	violation, err := e.orderingViolationLocked(request)
	if err != nil {
		return false, err
	}
	if violation {
		return false, nil
	}

	owner, owned := e.resourceOwners[request.Handle.ID]
	if !owned {
		return true, nil
	}

	// Simulate the wait edge request.RequesterID -> owner and look for a
	// cycle in the resulting graph without mutating engine state.
	graph := e.buildGraphLocked()
	graph[request.RequesterID] = append(append([]string{}, graph[request.RequesterID]...), owner)
	return !hasCycle(graph), nil
}

func (e *Engine) orderingViolationLocked(request ResourceRequest) (bool, error) {
	newOrder, err := e.orderOf(request.Handle, request.Instance)
	if err != nil {
		return false, err
	}
	for _, owned := range e.ownedResources[request.RequesterID] {
		heldOrder, err := e.orderOf(owned.handle, 0)
		if err != nil {
			continue
		}
		if newOrder < heldOrder {
			return true, nil
		}
	}
	return false, nil
}

// RequestResourceAcquisition attempts to grant request. If the resource is
// free, ownership is recorded and nil is returned. If owned by another
// requester, the request is queued with a wait edge and a Resource
// resource_locked error is returned so the caller can wait or retry. An
// ordering violation is denied outright (RequestsDenied increments) and
// never queued.
func (e *Engine) RequestResourceAcquisition(request ResourceRequest) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.requestLocked(request)
}

func (e *Engine) requestLocked(request ResourceRequest) error {
	if owner, ok := e.resourceOwners[request.Handle.ID]; ok && owner == request.RequesterID {
		return nil
	}

	violation, err := e.orderingViolationLocked(request)
	if err != nil {
		return err
	}
	if violation {
		e.requestsDenied++
		return halerrors.WrapContext(halerrors.ResourceLocked(), "deadlock: ordering violation")
	}

	owner, owned := e.resourceOwners[request.Handle.ID]
	if !owned {
		e.grantLocked(request)
		return nil
	}

	// The request may close a wait-for cycle. The edge is still recorded:
	// cycle detection and victim preemption, not request-time refusal, are
	// how a formed cycle is broken, so DetectDeadlock must be able to see
	// it. Callers who want the refusal behavior probe IsAcquisitionSafe
	// before committing.

	if request.RequestTime.IsZero() {
		request.RequestTime = time.Now()
	}
	req := request
	e.waiting.Add(&req)
	e.dependencies = append(e.dependencies, DependencyEdge{
		Waiter:    request.RequesterID,
		Owner:     owner,
		Handle:    request.Handle,
		CreatedAt: time.Now(),
	})
	return halerrors.ResourceLocked()
}

func (e *Engine) grantLocked(request ResourceRequest) {
	e.resourceOwners[request.Handle.ID] = request.RequesterID
	entries := e.ownedResources[request.RequesterID]
	for _, ent := range entries {
		if ent.handle.ID == request.Handle.ID {
			return
		}
	}
	e.ownedResources[request.RequesterID] = append(entries, ownedEntry{
		handle:     request.Handle,
		priority:   request.Priority,
		acquiredAt: time.Now(),
	})
}

// ReleaseResource verifies requesterID currently owns handle (otherwise a
// Configuration error), drops its ownership plus every dependency edge
// for that handle, then re-submits any waiting request for handle through
// the normal acquisition path.
func (e *Engine) ReleaseResource(requesterID string, handle registry.Handle) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.releaseLocked(requesterID, handle)
}

func (e *Engine) releaseLocked(requesterID string, handle registry.Handle) error {
	owner, ok := e.resourceOwners[handle.ID]
	if !ok || owner != requesterID {
		return halerrors.WrapContext(halerrors.InvalidParameter(), "deadlock: requester does not own resource")
	}

	delete(e.resourceOwners, handle.ID)
	entries := e.ownedResources[requesterID]
	for i, ent := range entries {
		if ent.handle.ID == handle.ID {
			e.ownedResources[requesterID] = append(entries[:i], entries[i+1:]...)
			break
		}
	}

	e.removeEdgesForHandleLocked(handle.ID)
	e.resubmitWaitingLocked(handle.ID)
	return nil
}

func (e *Engine) removeEdgesForHandleLocked(handleID uint64) {
	kept := e.dependencies[:0]
	for _, d := range e.dependencies {
		if d.Handle.ID != handleID {
			kept = append(kept, d)
		}
	}
	e.dependencies = kept
}

// resubmitWaitingLocked drains the queue, re-submits every request for
// handleID through the normal acquisition path, and requeues the rest
// unchanged. The drain is bounded by Len() and the requeue uses immediate
// Add: a delayed re-add would make the next bounded drain's Get block on
// an item that is not in the queue yet.
func (e *Engine) resubmitWaitingLocked(handleID uint64) {
	n := e.waiting.Len()
	matched := make([]*ResourceRequest, 0, n)
	remaining := make([]*ResourceRequest, 0, n)
	for i := 0; i < n; i++ {
		item, shutdown := e.waiting.Get()
		if shutdown {
			break
		}
		e.waiting.Done(item)
		if item.Handle.ID == handleID {
			e.waiting.Forget(item)
			matched = append(matched, item)
			continue
		}
		remaining = append(remaining, item)
	}
	for _, item := range remaining {
		e.waiting.Add(item)
	}

	// Re-submission happens after the requeue: a matched request that is
	// still contended re-queues itself through requestLocked.
	for _, item := range matched {
		if err := e.requestLocked(*item); err != nil {
			e.log.V(1).Info("waiter still blocked after release", "requester", item.RequesterID, "error", err)
		}
	}
}

// CleanupExpiredItems drops queued requests whose timeout has elapsed and
// dependency edges older than dependencyMaxAge.
func (e *Engine) CleanupExpiredItems() {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now()

	n := e.waiting.Len()
	remaining := make([]*ResourceRequest, 0, n)
	for i := 0; i < n; i++ {
		item, shutdown := e.waiting.Get()
		if shutdown {
			break
		}
		e.waiting.Done(item)
		if item.Timeout > 0 && now.After(item.RequestTime.Add(item.Timeout)) {
			e.waiting.Forget(item)
			continue
		}
		remaining = append(remaining, item)
	}
	for _, item := range remaining {
		e.waiting.Add(item)
	}

	kept := e.dependencies[:0]
	for _, d := range e.dependencies {
		if now.Sub(d.CreatedAt) <= dependencyMaxAge {
			kept = append(kept, d)
		}
	}
	e.dependencies = kept
}

// Stats returns a snapshot of the engine's counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Stats{
		RequestsDenied:       e.requestsDenied,
		DeadlocksDetected:    e.deadlocksDetected,
		DeadlocksResolved:    e.deadlocksResolved,
		PreemptionsPerformed: e.preemptionsPerformed,
	}
}

// History returns the most recently resolved deadlocks, oldest first.
func (e *Engine) History() []DeadlockInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.Snapshot()
}
