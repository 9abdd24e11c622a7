// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package platform_test

import (
	"testing"

	"github.com/coreward/halcore/pkg/platform"
	"github.com/stretchr/testify/assert"
)

func TestProbeFillsKnownMemoryPerTarget(t *testing.T) {
	cases := map[platform.Target]uint64{
		platform.TargetDreamcast: 16 * 1024 * 1024,
		platform.TargetPSP:       32 * 1024 * 1024,
		platform.TargetVita:      512 * 1024 * 1024,
		platform.TargetWeb:       256 * 1024 * 1024,
		platform.TargetDesktop:   1024 * 1024 * 1024,
	}
	for target, want := range cases {
		info := platform.Probe(target)
		assert.Equal(t, want, info.TotalMemoryBytes, target.String())
		assert.Equal(t, target.String(), info.Name)
		assert.Greater(t, info.CPUCoreCount, 0)
	}
}

func TestCapabilityProviderDreamcast(t *testing.T) {
	p := platform.NewCapabilityProvider(platform.TargetDreamcast)

	assert.False(t, p.Supports(platform.Threading))
	assert.True(t, p.Supports(platform.Hardware3D))
	assert.False(t, p.Supports(platform.Networking))
	assert.Equal(t, platform.TierMinimal, p.Tier())

	assert.True(t, p.HasFallback(platform.FragmentShaders))
	assert.False(t, p.HasFallback(platform.Networking))
	// Hardware3D is enabled, so "fallback" is meaningless for it.
	assert.False(t, p.HasFallback(platform.Hardware3D))
}

func TestCapabilityProviderPSP(t *testing.T) {
	p := platform.NewCapabilityProvider(platform.TargetPSP)
	assert.True(t, p.Supports(platform.Threading))
	assert.True(t, p.Supports(platform.Hardware3D))
	assert.True(t, p.Supports(platform.WiFi))
	assert.Equal(t, platform.TierLimited, p.Tier())
}

func TestCapabilityProviderWeb(t *testing.T) {
	p := platform.NewCapabilityProvider(platform.TargetWeb)
	assert.True(t, p.Supports(platform.Threading))
	assert.True(t, p.Supports(platform.Hardware3D))
	assert.True(t, p.Supports(platform.HardwareAudio))
	assert.False(t, p.Supports(platform.WiFi))
	assert.True(t, p.HasFallback(platform.ComputeShaders))
}

func TestCapabilityProviderDesktopHasEverything(t *testing.T) {
	p := platform.NewCapabilityProvider(platform.TargetDesktop)
	for cap := platform.Threading; cap <= platform.Gamepad; cap++ {
		assert.True(t, p.Supports(cap), cap.String())
	}
	assert.Equal(t, platform.TierHigh, p.Tier())
}

func TestOverridesDisableHardware3DWithFallback(t *testing.T) {
	p := platform.NewCapabilityProviderWithOverrides(platform.TargetDesktop, map[platform.Capability]platform.Support{
		platform.Hardware3D: {Enabled: false, HasFallback: true},
	})

	assert.False(t, p.Supports(platform.Hardware3D))
	assert.True(t, p.HasFallback(platform.Hardware3D))

	// The rest of the preset is untouched.
	assert.True(t, p.Supports(platform.Threading))
	assert.True(t, p.Supports(platform.HardwareAudio))
}

func TestCapabilitiesListMatchesMask(t *testing.T) {
	p := platform.NewCapabilityProvider(platform.TargetVita)
	caps := p.Capabilities()
	for _, c := range caps {
		assert.True(t, p.Supports(c))
	}
	assert.NotEmpty(t, caps)
	assert.NotZero(t, p.Mask())
}
