// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package driver

import (
	"time"

	"github.com/coreward/halcore/pkg/platform"
)

// CommandBuffer is the draw-submission abstraction VideoDriver produces.
// Backends define their own concrete command encoding; this module only
// fixes the submission contract.
type CommandBuffer interface {
	Submit() error
}

// TextureHandle, BufferHandle, and ShaderHandle are opaque GPU resource
// identifiers returned by VideoDriver's resource-creation calls.
type TextureHandle uint64
type BufferHandle uint64
type ShaderHandle uint64

// VideoDriver is the contract a graphics backend implements: frame
// lifecycle, GPU resource creation, and command-buffer submission. No
// concrete backend ships in this module; a software rasterizer and a
// hardware backend are both equally valid implementers, selected via
// Registry.CreateBest against the platform's capability provider.
type VideoDriver interface {
	Driver
	Init(config VideoConfig) error
	Capabilities() platform.CapabilityMask
	BeginFrame() error
	EndFrame() error
	Present() error
	CreateTexture(width, height int, format string) (TextureHandle, error)
	CreateBuffer(sizeBytes int) (BufferHandle, error)
	CreateShader(kind string, source []byte) (ShaderHandle, error)
	NewCommandBuffer() CommandBuffer
}

// VideoConfig is the minimal backend-agnostic configuration every
// VideoDriver.Init accepts.
type VideoConfig struct {
	Width, Height int
	Fullscreen    bool
	VSync         bool
}

// AudioStreamHandle identifies a created audio stream.
type AudioStreamHandle uint64

// AudioDriver is the contract an audio backend implements: stream
// lifecycle, buffered writes, mixing, and optional 3D positioning.
type AudioDriver interface {
	Driver
	CreateStream(sampleRate, channels int) (AudioStreamHandle, error)
	Play(AudioStreamHandle) error
	Pause(AudioStreamHandle) error
	Stop(AudioStreamHandle) error
	Write(AudioStreamHandle, []byte) (int, error)
	GetBuffer(AudioStreamHandle) ([]byte, error)
	Commit(AudioStreamHandle) error
	SetMasterVolume(float32) error
	SetPosition3D(h AudioStreamHandle, x, y, z float32) error
	SetLatencyMode(low bool) error
}

// InputDriver is the contract an input backend implements: polling,
// button/axis/pointer state, haptics, and device enumeration.
type InputDriver interface {
	Driver
	Poll() error
	Events() []InputEvent
	ButtonState(device int, button int) bool
	AxisState(device int, axis int) float32
	PointerState(device int) (x, y float32, pressed bool)
	Haptic(device int, intensity float32, duration time.Duration) error
	Devices() []string
}

// InputEvent is one polled input occurrence.
type InputEvent struct {
	Device    int
	Kind      string
	Code      int
	Value     float32
	Timestamp time.Time
}

// FileDriver is the contract a storage backend implements for byte-stream
// file access, optionally with mmap/lock/async extensions a backend may
// leave unimplemented by returning a Driver error.
type FileDriver interface {
	Driver
	Open(path string, flags int) (FileHandle, error)
	CloseFile(FileHandle) error
	Read(FileHandle, []byte) (int, error)
	Write(FileHandle, []byte) (int, error)
	Seek(FileHandle, int64, int) (int64, error)
	Tell(FileHandle) (int64, error)
	Info(path string) (FileInfo, error)
	ReadDir(path string) ([]FileInfo, error)
	Mmap(FileHandle) ([]byte, error)
	Lock(FileHandle) error
	Unlock(FileHandle) error
}

// FileHandle identifies an open file within a FileDriver.
type FileHandle uint64

// FileInfo is a backend-agnostic file metadata snapshot.
type FileInfo struct {
	Name    string
	Size    int64
	IsDir   bool
	ModTime time.Time
}

// ThreadHandle and MutexHandle identify native scheduling primitives a
// ThreadDriver manages on platforms where CapabilityProvider reports
// Threading support.
type ThreadHandle uint64
type MutexHandle uint64
type CondVarHandle uint64
type TLSKey uint64

// ThreadDriver is the contract a scheduling backend implements: thread
// lifecycle, priority/affinity, synchronization primitives, and
// thread-local storage where the platform supports it.
type ThreadDriver interface {
	Driver
	CreateThread(fn func(), priority int, affinity int) (ThreadHandle, error)
	Join(ThreadHandle) error
	Detach(ThreadHandle) error
	SetPriority(ThreadHandle, int) error
	SetAffinity(ThreadHandle, int) error
	Sleep(time.Duration)
	NewMutex() MutexHandle
	Lock(MutexHandle)
	Unlock(MutexHandle)
	NewCondVar() CondVarHandle
	Wait(CondVarHandle, MutexHandle)
	Signal(CondVarHandle)
	Broadcast(CondVarHandle)
	NewTLSKey() (TLSKey, error)
	GetTLS(TLSKey) any
	SetTLS(TLSKey, any)
}

// TimeDriver is the contract a timing backend implements: monotonic and
// wall-clock reads, precision sleep, and a high-resolution performance
// counter.
type TimeDriver interface {
	Driver
	Monotonic() time.Duration
	WallClock() time.Time
	Sleep(d time.Duration)
	PerformanceCounter() uint64
	PerformanceFrequency() uint64
}
