// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package deadlock_test

import (
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreward/halcore/pkg/deadlock"
	"github.com/coreward/halcore/pkg/registry"
)

func newEngine(t *testing.T) (*deadlock.Engine, *registry.Registry) {
	t.Helper()
	reg, err := registry.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })
	return deadlock.New(reg, logr.Discard()), reg
}

func TestOrderingViolationDenied(t *testing.T) {
	engine, reg := newEngine(t)

	a, err := reg.RegisterResource("A", registry.Metadata{Type: registry.TypeHardware, Priority: registry.Normal})
	require.NoError(t, err)
	b, err := reg.RegisterResource("B", registry.Metadata{Type: registry.TypeMemory, Priority: registry.Normal})
	require.NoError(t, err)

	require.NoError(t, engine.RequestResourceAcquisition(deadlock.ResourceRequest{
		RequesterID: "X", Handle: a, RequestTime: time.Now(),
	}))

	err = engine.RequestResourceAcquisition(deadlock.ResourceRequest{
		RequesterID: "X", Handle: b, RequestTime: time.Now(),
	})
	assert.Error(t, err)
	assert.Equal(t, uint64(1), engine.Stats().RequestsDenied)
	require.NoError(t, engine.CheckInvariants())
}

func TestOrderingNonDecreasingSucceeds(t *testing.T) {
	engine, reg := newEngine(t)

	a, err := reg.RegisterResource("A2", registry.Metadata{Type: registry.TypeHardware})
	require.NoError(t, err)
	b, err := reg.RegisterResource("B2", registry.Metadata{Type: registry.TypeMemory})
	require.NoError(t, err)

	require.NoError(t, engine.RequestResourceAcquisition(deadlock.ResourceRequest{RequesterID: "X", Handle: b, RequestTime: time.Now()}))
	require.NoError(t, engine.RequestResourceAcquisition(deadlock.ResourceRequest{RequesterID: "X", Handle: a, RequestTime: time.Now()}))
	require.NoError(t, engine.CheckInvariants())
}

func TestDeadlockDetectionAndResolution(t *testing.T) {
	engine, reg := newEngine(t)

	a, err := reg.RegisterResource("A3", registry.Metadata{Type: registry.TypeHardware, Priority: registry.Normal})
	require.NoError(t, err)
	b, err := reg.RegisterResource("B3", registry.Metadata{Type: registry.TypeHardware, Priority: registry.Normal})
	require.NoError(t, err)

	require.NoError(t, engine.RequestResourceAcquisition(deadlock.ResourceRequest{
		RequesterID: "X", Handle: a, Priority: registry.Normal, RequestTime: time.Now(),
	}))
	require.NoError(t, engine.RequestResourceAcquisition(deadlock.ResourceRequest{
		RequesterID: "Y", Handle: b, Priority: registry.Low, RequestTime: time.Now(),
	}))

	// X waits on B (owned by Y): edge X -> Y.
	err = engine.RequestResourceAcquisition(deadlock.ResourceRequest{
		RequesterID: "X", Handle: b, Priority: registry.Normal, RequestTime: time.Now(),
	})
	assert.Error(t, err)

	// Y waits on A (owned by X): edge Y -> X, closing the cycle.
	err = engine.RequestResourceAcquisition(deadlock.ResourceRequest{
		RequesterID: "Y", Handle: a, Priority: registry.Low, RequestTime: time.Now(),
	})
	assert.Error(t, err)

	info := engine.DetectDeadlock()
	require.True(t, info.Detected)
	assert.ElementsMatch(t, []string{"X", "Y"}, info.CycleParticipants)

	victim, err := engine.ResolveDeadlock(info)
	require.NoError(t, err)
	assert.Equal(t, "Y", victim, "lower aggregate priority score should be preempted")

	stats := engine.Stats()
	assert.Equal(t, uint64(1), stats.DeadlocksDetected)
	assert.Equal(t, uint64(1), stats.DeadlocksResolved)
	assert.Equal(t, uint64(1), stats.PreemptionsPerformed)
	require.NoError(t, engine.CheckInvariants())
}

func TestReleaseResubmitsOnlyMatchingWaiters(t *testing.T) {
	engine, reg := newEngine(t)

	a, err := reg.RegisterResource("bus0", registry.Metadata{Type: registry.TypeCommunication})
	require.NoError(t, err)
	b, err := reg.RegisterResource("pool0", registry.Metadata{Type: registry.TypeMemory})
	require.NoError(t, err)

	require.NoError(t, engine.RequestResourceAcquisition(deadlock.ResourceRequest{RequesterID: "X", Handle: a, RequestTime: time.Now()}))
	require.NoError(t, engine.RequestResourceAcquisition(deadlock.ResourceRequest{RequesterID: "W", Handle: b, RequestTime: time.Now()}))

	// Y queues behind X on a; Z queues behind W on b.
	assert.Error(t, engine.RequestResourceAcquisition(deadlock.ResourceRequest{RequesterID: "Y", Handle: a, RequestTime: time.Now(), Timeout: time.Minute}))
	assert.Error(t, engine.RequestResourceAcquisition(deadlock.ResourceRequest{RequesterID: "Z", Handle: b, RequestTime: time.Now(), Timeout: time.Minute}))

	// Releasing a grants Y but must leave Z queued behind W.
	require.NoError(t, engine.ReleaseResource("X", a))
	require.NoError(t, engine.ReleaseResource("Y", a), "Y should own a after the release-driven resubmit")

	err = engine.ReleaseResource("Z", b)
	assert.Error(t, err, "Z must still be waiting, not owning")

	require.NoError(t, engine.ReleaseResource("W", b))
	require.NoError(t, engine.ReleaseResource("Z", b), "Z should own b once W releases it")
	require.NoError(t, engine.CheckInvariants())
}

func TestCleanupExpiredDropsTimedOutWaiters(t *testing.T) {
	engine, reg := newEngine(t)

	h, err := reg.RegisterResource("scarce", registry.Metadata{Type: registry.TypeMemory})
	require.NoError(t, err)

	require.NoError(t, engine.RequestResourceAcquisition(deadlock.ResourceRequest{RequesterID: "X", Handle: h, RequestTime: time.Now()}))

	// Y's wait expired before cleanup runs.
	assert.Error(t, engine.RequestResourceAcquisition(deadlock.ResourceRequest{
		RequesterID: "Y", Handle: h,
		RequestTime: time.Now().Add(-time.Second), Timeout: time.Millisecond,
	}))

	engine.CleanupExpiredItems()

	// The expired waiter is gone: releasing h leaves it unowned.
	require.NoError(t, engine.ReleaseResource("X", h))
	err = engine.ReleaseResource("Y", h)
	assert.Error(t, err, "expired waiter must not be granted on release")
	require.NoError(t, engine.CheckInvariants())
}

func TestReleaseUnownedResourceFails(t *testing.T) {
	engine, reg := newEngine(t)
	h, err := reg.RegisterResource("C", registry.Metadata{Type: registry.TypeMemory})
	require.NoError(t, err)

	err = engine.ReleaseResource("nobody", h)
	assert.Error(t, err)
}

func TestReleaseThenReacquireGrantsWaiter(t *testing.T) {
	engine, reg := newEngine(t)
	h, err := reg.RegisterResource("D", registry.Metadata{Type: registry.TypeMemory})
	require.NoError(t, err)

	require.NoError(t, engine.RequestResourceAcquisition(deadlock.ResourceRequest{RequesterID: "X", Handle: h, RequestTime: time.Now()}))

	err = engine.RequestResourceAcquisition(deadlock.ResourceRequest{RequesterID: "Y", Handle: h, RequestTime: time.Now(), Timeout: time.Minute})
	assert.Error(t, err)

	require.NoError(t, engine.ReleaseResource("X", h))

	safe, err := engine.IsAcquisitionSafe(deadlock.ResourceRequest{RequesterID: "Y", Handle: h})
	require.NoError(t, err)
	assert.True(t, safe)
}
