// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package driver

import (
	"context"
	"sort"
	"sync"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-logr/logr"

	halerrors "github.com/coreward/halcore/pkg/errors"
	"github.com/coreward/halcore/pkg/platform"
)

// Factory constructs one Driver instance for its Info's Kind.
type Factory func() (Driver, error)

// Info describes one registered driver implementation. Requires lists the
// platform capabilities the backend needs (a hardware renderer requires
// Hardware3D; a software rasterizer requires nothing) — CreateBest uses it
// to pick the degradation path the capability provider allows.
type Info struct {
	Name        string
	Description string
	Kind        Kind
	Priority    int
	Requires    []platform.Capability
	Factory     Factory
}

// Registry holds, per Kind, every registered Info sorted by Priority
// descending, so the first entry of a bucket is always the preferred
// default for that kind.
type Registry struct {
	mu  sync.RWMutex
	log logr.Logger

	byKind map[Kind][]Info
}

// NewRegistry constructs an empty driver Registry.
func NewRegistry(log logr.Logger) *Registry {
	return &Registry{
		log:    log.WithName("driver-registry"),
		byKind: make(map[Kind][]Info),
	}
}

// RegisterDriver inserts info and re-sorts its Kind's bucket by Priority
// descending so the first entry is always the preferred default.
func (r *Registry) RegisterDriver(info Info) error {
	if info.Name == "" || info.Factory == nil {
		return halerrors.WrapContext(halerrors.InvalidParameter(), "driver: name and factory are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.byKind[info.Kind] {
		if existing.Name == info.Name {
			return halerrors.WrapContext(halerrors.ConfigurationMissing(), "driver: duplicate name "+info.Name)
		}
	}

	r.byKind[info.Kind] = append(r.byKind[info.Kind], info)
	sort.SliceStable(r.byKind[info.Kind], func(i, j int) bool {
		return r.byKind[info.Kind][i].Priority > r.byKind[info.Kind][j].Priority
	})
	r.log.V(1).Info("registered driver", "kind", info.Kind, "name", info.Name, "priority", info.Priority)
	return nil
}

// GetAvailable returns every registered driver name for kind, in priority
// order (highest first).
func (r *Registry) GetAvailable(kind Kind) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.byKind[kind]))
	for _, info := range r.byKind[kind] {
		names = append(names, info.Name)
	}
	return names
}

// GetInfo returns the registered Info for (kind, name).
func (r *Registry) GetInfo(kind Kind, name string) (Info, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, info := range r.byKind[kind] {
		if info.Name == name {
			return info, nil
		}
	}
	return Info{}, halerrors.DeviceNotFound()
}

// Create constructs a driver instance by (kind, name), or nil with an
// error if no such driver is registered or its factory fails.
func (r *Registry) Create(kind Kind, name string) (Driver, error) {
	info, err := r.GetInfo(kind, name)
	if err != nil {
		return nil, err
	}
	d, err := info.Factory()
	if err != nil {
		return nil, halerrors.WrapContext(halerrors.InitializationFailed(), "driver: "+name)
	}
	return d, nil
}

// CreateDefault tries kind's factories in priority order. Each candidate
// is retried with exponential backoff before falling through to the next
// lower-priority factory. Fails with a Hardware error if every registered
// factory for kind is exhausted.
func (r *Registry) CreateDefault(ctx context.Context, kind Kind) (Driver, error) {
	r.mu.RLock()
	candidates := append([]Info{}, r.byKind[kind]...)
	r.mu.RUnlock()

	for _, info := range candidates {
		d, err := backoff.Retry(ctx, func() (Driver, error) {
			return info.Factory()
		}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(3))
		if err == nil {
			return d, nil
		}
		r.log.V(1).Info("driver candidate exhausted retries, trying next", "kind", kind, "name", info.Name, "error", err)
	}
	return nil, halerrors.WrapContext(halerrors.DeviceNotFound(), "driver: no available default for "+kind.String())
}

// CreateBest constructs the highest-priority driver of kind whose Requires
// list the capability provider fully supports. A hardware backend requiring
// a capability the platform lacks is skipped, so a requirement-free software
// fallback (registered at lower priority) is what remains on platforms where
// the provider reports the capability absent-with-fallback.
func (r *Registry) CreateBest(ctx context.Context, kind Kind, caps *platform.CapabilityProvider) (Driver, error) {
	r.mu.RLock()
	candidates := append([]Info{}, r.byKind[kind]...)
	r.mu.RUnlock()

	for _, info := range candidates {
		supported := true
		for _, req := range info.Requires {
			if !caps.Supports(req) {
				supported = false
				break
			}
		}
		if !supported {
			r.log.V(1).Info("driver candidate needs unsupported capability, trying next", "kind", kind, "name", info.Name)
			continue
		}
		d, err := backoff.Retry(ctx, func() (Driver, error) {
			return info.Factory()
		}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(3))
		if err == nil {
			return d, nil
		}
		r.log.V(1).Info("driver candidate exhausted retries, trying next", "kind", kind, "name", info.Name, "error", err)
	}
	return nil, halerrors.WrapContext(halerrors.DeviceNotFound(), "driver: no capability-compatible driver for "+kind.String())
}
