// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package platform

// Capability names one HAL feature a driver may or may not have hardware
// (or software-fallback) support for.
type Capability int

const (
	Threading Capability = iota
	AtomicOps
	Hardware3D
	VertexShaders
	FragmentShaders
	ComputeShaders
	HardwareAudio
	AudioEffects
	Networking
	WiFi
	MultiTouch
	Gamepad
	capabilityCount
)

func (c Capability) String() string {
	switch c {
	case Threading:
		return "threading"
	case AtomicOps:
		return "atomic_ops"
	case Hardware3D:
		return "hardware_3d"
	case VertexShaders:
		return "vertex_shaders"
	case FragmentShaders:
		return "fragment_shaders"
	case ComputeShaders:
		return "compute_shaders"
	case HardwareAudio:
		return "hardware_audio"
	case AudioEffects:
		return "audio_effects"
	case Networking:
		return "networking"
	case WiFi:
		return "wifi"
	case MultiTouch:
		return "multi_touch"
	case Gamepad:
		return "gamepad"
	default:
		return "unknown"
	}
}

// CapabilityMask is a 32-bit set of Capability bits.
type CapabilityMask uint32

func (m CapabilityMask) has(c Capability) bool {
	return m&(1<<uint(c)) != 0
}

func maskOf(caps ...Capability) CapabilityMask {
	var m CapabilityMask
	for _, c := range caps {
		m |= 1 << uint(c)
	}
	return m
}

// Support records whether one capability is enabled and, when disabled,
// whether a software fallback path exists for it.
type Support struct {
	Enabled     bool
	HasFallback bool
}

// preset is the fixed, per-target table of which capabilities are enabled
// and which disabled capabilities have a documented software fallback
// (hardware 3D -> software rasterizer, hardware audio -> software mixer).
type preset map[Capability]Support

// Illustrative capability sets transcribed from the external-interfaces
// table: Dreamcast has no threading or shaders but real hardware 3D and no
// networking; PSP has cooperative threads, hardware 3D, and WiFi; Web has
// worker threads and WebGL with or without compute, plus Web Audio; Desktop
// enables everything a modern machine supports.
var (
	presetDesktop = preset{
		Threading:        {Enabled: true},
		AtomicOps:        {Enabled: true},
		Hardware3D:       {Enabled: true},
		VertexShaders:    {Enabled: true},
		FragmentShaders:  {Enabled: true},
		ComputeShaders:   {Enabled: true},
		HardwareAudio:    {Enabled: true},
		AudioEffects:     {Enabled: true},
		Networking:       {Enabled: true},
		WiFi:             {Enabled: true},
		MultiTouch:       {Enabled: true, HasFallback: true},
		Gamepad:          {Enabled: true},
	}

	presetVita = preset{
		Threading:       {Enabled: true},
		AtomicOps:       {Enabled: true},
		Hardware3D:      {Enabled: true},
		VertexShaders:   {Enabled: true},
		FragmentShaders: {Enabled: true},
		ComputeShaders:  {Enabled: false, HasFallback: false},
		HardwareAudio:   {Enabled: true},
		AudioEffects:    {Enabled: true},
		Networking:      {Enabled: true},
		WiFi:            {Enabled: true},
		MultiTouch:      {Enabled: true},
		Gamepad:         {Enabled: true},
	}

	presetPSP = preset{
		Threading:       {Enabled: true}, // cooperative, not preemptive; the mask does not distinguish the two
		AtomicOps:       {Enabled: true},
		Hardware3D:      {Enabled: true},
		VertexShaders:   {Enabled: false, HasFallback: true},
		FragmentShaders: {Enabled: false, HasFallback: true},
		ComputeShaders:  {Enabled: false},
		HardwareAudio:   {Enabled: true},
		AudioEffects:    {Enabled: false, HasFallback: true},
		Networking:      {Enabled: true},
		WiFi:            {Enabled: true},
		MultiTouch:      {Enabled: false},
		Gamepad:         {Enabled: true},
	}

	presetDreamcast = preset{
		Threading:       {Enabled: false, HasFallback: false},
		AtomicOps:       {Enabled: false, HasFallback: false},
		Hardware3D:      {Enabled: true},
		VertexShaders:   {Enabled: false, HasFallback: true},
		FragmentShaders: {Enabled: false, HasFallback: true},
		ComputeShaders:  {Enabled: false},
		HardwareAudio:   {Enabled: true},
		AudioEffects:    {Enabled: false, HasFallback: true},
		Networking:      {Enabled: false, HasFallback: false},
		WiFi:            {Enabled: false},
		MultiTouch:      {Enabled: false},
		Gamepad:         {Enabled: true},
	}

	presetWeb = preset{
		Threading:       {Enabled: true}, // worker threads
		AtomicOps:       {Enabled: true}, // SharedArrayBuffer + Atomics
		Hardware3D:      {Enabled: true}, // WebGL
		VertexShaders:   {Enabled: true},
		FragmentShaders: {Enabled: true},
		ComputeShaders:  {Enabled: false, HasFallback: true}, // WebGL without compute on many browsers
		HardwareAudio:   {Enabled: true},                     // Web Audio
		AudioEffects:    {Enabled: true},
		Networking:      {Enabled: true},
		WiFi:            {Enabled: false, HasFallback: false}, // no link-layer visibility in a sandbox
		MultiTouch:      {Enabled: true},
		Gamepad:         {Enabled: true},
	}
)

func presetFor(t Target) preset {
	switch t {
	case TargetVita:
		return presetVita
	case TargetPSP:
		return presetPSP
	case TargetDreamcast:
		return presetDreamcast
	case TargetWeb:
		return presetWeb
	default:
		return presetDesktop
	}
}

// CapabilityProvider answers capability, tier, and fallback questions for
// one platform target. Constructed once at HAL init and treated as
// immutable thereafter.
type CapabilityProvider struct {
	target Target
	info   PlatformInfo
	preset preset
	mask   CapabilityMask
}

// NewCapabilityProvider builds a provider for t, probing PlatformInfo and
// loading the fixed capability preset for that target.
func NewCapabilityProvider(t Target) *CapabilityProvider {
	return NewCapabilityProviderWithOverrides(t, nil)
}

// NewCapabilityProviderWithOverrides builds a provider for t with
// per-capability overrides applied on top of the target's preset. Embedders
// use this when a runtime probe disagrees with the canned table for the
// target: a desktop machine without a discrete GPU, a browser build without
// WebGL. An override replaces the preset entry wholesale, fallback flag
// included.
func NewCapabilityProviderWithOverrides(t Target, overrides map[Capability]Support) *CapabilityProvider {
	base := presetFor(t)
	p := make(preset, len(base))
	for cap, sup := range base {
		p[cap] = sup
	}
	for cap, sup := range overrides {
		p[cap] = sup
	}

	var mask CapabilityMask
	for cap, sup := range p {
		if sup.Enabled {
			mask |= 1 << uint(cap)
		}
	}
	return &CapabilityProvider{
		target: t,
		info:   Probe(t),
		preset: p,
		mask:   mask,
	}
}

// Supports reports whether cap is enabled on this platform.
func (c *CapabilityProvider) Supports(cap Capability) bool {
	return c.mask.has(cap)
}

// Mask returns the full enabled-capability bitmask.
func (c *CapabilityProvider) Mask() CapabilityMask {
	return c.mask
}

// Capabilities returns every enabled capability, in ascending id order.
func (c *CapabilityProvider) Capabilities() []Capability {
	caps := make([]Capability, 0, capabilityCount)
	for cap := Capability(0); cap < capabilityCount; cap++ {
		if c.mask.has(cap) {
			caps = append(caps, cap)
		}
	}
	return caps
}

// Tier returns the platform's performance tier.
func (c *CapabilityProvider) Tier() PerformanceTier {
	return c.info.PerformanceTier
}

// Info returns the PlatformInfo probed at construction.
func (c *CapabilityProvider) Info() PlatformInfo {
	return c.info
}

// HasFallback reports whether a disabled capability has a documented
// software fallback path. Always false for an enabled capability — there is
// nothing to fall back from.
func (c *CapabilityProvider) HasFallback(cap Capability) bool {
	sup, ok := c.preset[cap]
	if !ok {
		return false
	}
	return !sup.Enabled && sup.HasFallback
}
