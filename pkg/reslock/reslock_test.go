// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package reslock_test

import (
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreward/halcore/pkg/deadlock"
	"github.com/coreward/halcore/pkg/registry"
	"github.com/coreward/halcore/pkg/reslock"
)

func TestAcquireReleaseRoundTrip(t *testing.T) {
	reg, err := registry.New()
	require.NoError(t, err)
	defer reg.Close()

	engine := deadlock.New(reg, logr.Discard())
	h, err := reg.RegisterResource("lockable", registry.Metadata{Type: registry.TypeMemory})
	require.NoError(t, err)

	lock, err := reslock.Acquire(engine, "X", h, registry.Normal, time.Second, true)
	require.NoError(t, err)
	assert.True(t, lock.IsLocked())

	lock.Release()
	assert.False(t, lock.IsLocked())

	// Idempotent.
	lock.Release()
	assert.False(t, lock.IsLocked())

	// Another requester can now acquire it.
	lock2, err := reslock.Acquire(engine, "Y", h, registry.Normal, time.Second, true)
	require.NoError(t, err)
	assert.True(t, lock2.IsLocked())
	lock2.Release()
}

func TestAcquireContentionReturnsError(t *testing.T) {
	reg, err := registry.New()
	require.NoError(t, err)
	defer reg.Close()

	engine := deadlock.New(reg, logr.Discard())
	h, err := reg.RegisterResource("contended", registry.Metadata{Type: registry.TypeMemory})
	require.NoError(t, err)

	lock, err := reslock.Acquire(engine, "X", h, registry.Normal, time.Second, true)
	require.NoError(t, err)
	defer lock.Release()

	_, err = reslock.Acquire(engine, "Y", h, registry.Normal, time.Second, true)
	assert.Error(t, err)
}
