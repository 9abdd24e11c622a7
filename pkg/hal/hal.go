// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package hal is the Platform facade: it wires capability detection,
// resource registry, deadlock engine, message bus, memory manager, and
// driver registry into one bring-up/teardown unit. Nothing in this package
// adds behavior of its own beyond construction order and lifecycle —
// every operation it exposes delegates straight to the subsystem that
// owns it.
package hal

import (
	"context"
	"sync/atomic"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"github.com/coreward/halcore/pkg/bus"
	"github.com/coreward/halcore/pkg/deadlock"
	"github.com/coreward/halcore/pkg/driver"
	halerrors "github.com/coreward/halcore/pkg/errors"
	"github.com/coreward/halcore/pkg/event"
	"github.com/coreward/halcore/pkg/memory"
	"github.com/coreward/halcore/pkg/platform"
	"github.com/coreward/halcore/pkg/registry"
)

// memoryPresetForTarget maps a platform.Target to its fixed memory.Config,
// the same target switch platform.presetFor uses for capabilities.
func memoryPresetForTarget(t platform.Target) memory.Config {
	switch t {
	case platform.TargetVita:
		return memory.PresetVita
	case platform.TargetPSP:
		return memory.PresetPSP
	case platform.TargetDreamcast:
		return memory.PresetDreamcast
	case platform.TargetWeb:
		return memory.PresetWeb
	default:
		return memory.PresetDesktop
	}
}

// HAL is the assembled platform core for one target, bound together in a
// fixed bring-up order (Registry -> DeadlockEngine -> MessageBus) and torn
// down by Shutdown.
type HAL struct {
	Target     platform.Target
	Capability *platform.CapabilityProvider
	Registry   *registry.Registry
	Deadlock   *deadlock.Engine
	Bus        *bus.Bus
	Memory     *memory.Manager
	Drivers    *driver.Registry
	Events     *event.Router

	log    logr.Logger
	active atomic.Bool
}

// New builds every subsystem for target and starts the ones with a
// run loop (the message bus). The resource registry must exist before
// the deadlock engine (which reads resource metadata), which must exist
// before anything that could contend over resources starts running on
// the bus.
func New(target platform.Target, log logr.Logger) (*HAL, error) {
	cap := platform.NewCapabilityProvider(target)

	reg, err := registry.New()
	if err != nil {
		return nil, halerrors.WrapContext(err, "hal: registry init")
	}

	engine := deadlock.New(reg, log.WithName("deadlock"))

	messageBus := bus.New(log.WithName("bus"))
	messageBus.Start()

	router, err := event.NewRouter(messageBus)
	if err != nil {
		messageBus.Shutdown(context.Background())
		reg.Close()
		return nil, halerrors.WrapContext(err, "hal: event router init")
	}

	mem := memory.NewManager(log.WithName("memory"))
	if err := mem.InitPools(memoryPresetForTarget(target)); err != nil {
		router.Close()
		messageBus.Shutdown(context.Background())
		reg.Close()
		return nil, halerrors.WrapContext(err, "hal: memory init")
	}

	drivers := driver.NewRegistry(log.WithName("drivers"))

	h := &HAL{
		Target:     target,
		Capability: cap,
		Registry:   reg,
		Deadlock:   engine,
		Bus:        messageBus,
		Memory:     mem,
		Drivers:    drivers,
		Events:     router,
		log:        log,
	}
	h.active.Store(true)
	return h, nil
}

// IsActive reports whether the facade (and its message bus) is still
// running. It flips to false as soon as Shutdown is called or the bus
// reports itself inactive.
func (h *HAL) IsActive() bool {
	return h.active.Load() && h.Bus.IsActive()
}

// Shutdown closes the event router first, then shuts the message bus and
// the resource registry down concurrently through an errgroup so one slow
// subsystem does not serialize behind the other. The deadlock engine,
// memory manager and driver registry have no teardown step.
func (h *HAL) Shutdown(ctx context.Context) error {
	if !h.active.CompareAndSwap(true, false) {
		return nil
	}

	h.Events.Close()

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return h.Bus.Shutdown(gCtx)
	})
	g.Go(func() error {
		return h.Registry.Close()
	})
	return g.Wait()
}
