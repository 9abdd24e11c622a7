// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package hal_test

import (
	"context"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreward/halcore/pkg/hal"
	"github.com/coreward/halcore/pkg/platform"
)

func TestNewWiresEverySubsystem(t *testing.T) {
	h, err := hal.New(platform.TargetDesktop, logr.Discard())
	require.NoError(t, err)
	defer h.Shutdown(context.Background())

	assert.True(t, h.IsActive())
	assert.True(t, h.Capability.Supports(platform.Hardware3D))
	assert.NotNil(t, h.Registry)
	assert.NotNil(t, h.Deadlock)
	assert.NotNil(t, h.Bus)
	assert.NotNil(t, h.Memory)
	assert.NotNil(t, h.Drivers)

	ref, err := h.Memory.PoolAlloc("small_objects", 32)
	require.NoError(t, err)
	require.NoError(t, h.Memory.PoolFree("small_objects", ref))
}

func TestShutdownIsIdempotentAndDeactivates(t *testing.T) {
	h, err := hal.New(platform.TargetPSP, logr.Discard())
	require.NoError(t, err)

	require.NoError(t, h.Shutdown(context.Background()))
	assert.False(t, h.IsActive())
	require.NoError(t, h.Shutdown(context.Background()))
}

func TestNewHonorsPerTargetCapabilityPreset(t *testing.T) {
	h, err := hal.New(platform.TargetDreamcast, logr.Discard())
	require.NoError(t, err)
	defer h.Shutdown(context.Background())

	assert.False(t, h.Capability.Supports(platform.Networking))
	assert.True(t, h.Capability.Supports(platform.Hardware3D))
}
