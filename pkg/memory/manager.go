// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package memory

import (
	"sync"

	"github.com/go-logr/logr"

	halerrors "github.com/coreward/halcore/pkg/errors"
	"github.com/coreward/halcore/pkg/pool"
)

// PoolName identifies one of a MemoryManager's named pools.
type PoolName string

const (
	SmallObjects    PoolName = "small_objects"
	MediumObjects   PoolName = "medium_objects"
	LargeObjects    PoolName = "large_objects"
	CanonicalMemory PoolName = "canonical_memory"
	AssetMemory     PoolName = "asset_memory"
	SystemMemory    PoolName = "system_memory"
)

// blockAlignment is the alignment every pool block in this module offers;
// pools themselves round block size up to an 8-byte multiple, so no
// allocation can honor a stricter alignment than this.
const blockAlignment = 8

// MemoryRegion is a carved, named span of the component budget owned by one
// component id. Size is heap_size+stack_size as requested; Base is an
// accounting offset, not a real address, since the CORE tracks component
// memory as a budget rather than a byte-addressable arena.
type MemoryRegion struct {
	ComponentID uint64
	Base        int
	Size        int
	Alignment   int
	Cacheable   bool
	Executable  bool
	Name        string
}

// Manager is the MemoryManager: one pool.Pool per named purpose plus
// component region bookkeeping. All pool operations are serialized behind
// a single mutex covering every pool, so the pools themselves stay
// single-writer.
type Manager struct {
	mu sync.Mutex

	pools map[PoolName]*pool.Pool

	componentBudget  int
	componentUsed    int
	componentRegions map[uint64]*MemoryRegion

	pressureHook func()

	log logr.Logger
}

// NewManager constructs an uninitialized Manager. Call InitPools before use.
func NewManager(log logr.Logger) *Manager {
	return &Manager{
		pools:            make(map[PoolName]*pool.Pool),
		componentRegions: make(map[uint64]*MemoryRegion),
		log:              log,
	}
}

// InitPools creates one PoolAllocator per named pool from cfg. Fails with
// configuration_missing if cfg looks unset, or propagates the underlying
// pool construction error (invalid_parameter) otherwise.
func (m *Manager) InitPools(cfg Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cfg.ComponentBudget <= 0 {
		return halerrors.WrapContext(halerrors.ConfigurationMissing(), "memory: component budget must be > 0")
	}

	named := map[PoolName]pool.Config{
		SmallObjects:    cfg.SmallObjects,
		MediumObjects:   cfg.MediumObjects,
		LargeObjects:    cfg.LargeObjects,
		CanonicalMemory: cfg.CanonicalMemory,
		AssetMemory:     cfg.AssetMemory,
		SystemMemory:    cfg.SystemMemory,
	}
	pools := make(map[PoolName]*pool.Pool, len(named))
	for name, pc := range named {
		p, err := pool.New(pc)
		if err != nil {
			return halerrors.WrapContext(err, "memory: init_pools "+string(name))
		}
		pools[name] = p
	}

	m.pools = pools
	m.componentBudget = cfg.ComponentBudget
	m.componentUsed = 0
	m.componentRegions = make(map[uint64]*MemoryRegion)
	m.log.V(1).Info("memory pools initialized", "componentBudget", cfg.ComponentBudget)
	return nil
}

func (m *Manager) poolLocked(name PoolName) (*pool.Pool, error) {
	p, ok := m.pools[name]
	if !ok {
		return nil, halerrors.WrapContext(halerrors.InvalidParameter(), "memory: unknown pool "+string(name))
	}
	return p, nil
}

// PoolAlloc allocates one block from the named pool. size must be <= the
// pool's block size; otherwise invalid_parameter.
func (m *Manager) PoolAlloc(name PoolName, size int) (pool.BlockRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.poolLocked(name)
	if err != nil {
		return pool.BlockRef{}, err
	}
	if size > p.BlockSize() {
		return pool.BlockRef{}, halerrors.WrapContext(halerrors.InvalidParameter(), "memory: size exceeds block size")
	}
	return p.Alloc()
}

// PoolAllocAligned is PoolAlloc with an additional alignment check.
// alignment must be <= blockAlignment; no pool in this module offers a
// stricter guarantee than 8-byte alignment.
func (m *Manager) PoolAllocAligned(name PoolName, size, alignment int) (pool.BlockRef, error) {
	if alignment > blockAlignment {
		return pool.BlockRef{}, halerrors.WrapContext(halerrors.InvalidParameter(), "memory: alignment exceeds pool block alignment")
	}
	return m.PoolAlloc(name, size)
}

// At returns the user-writable bytes behind a ref previously returned by
// PoolAlloc on the same named pool. This is the only dereference path for
// pool handles; a stale or foreign ref fails the pool's magic check.
func (m *Manager) At(name PoolName, ref pool.BlockRef) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.poolLocked(name)
	if err != nil {
		return nil, err
	}
	return p.At(ref)
}

// PoolFree releases ref back to the named pool.
func (m *Manager) PoolFree(name PoolName, ref pool.BlockRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.poolLocked(name)
	if err != nil {
		return err
	}
	p.Dealloc(ref)
	return nil
}

// AllocateComponentRegion carves heap_size+stack_size bytes from the
// component budget for componentID. Idempotent: a second call for the same
// id returns the region created by the first call, unchanged. Fails with
// out_of_memory if the budget cannot satisfy the request.
func (m *Manager) AllocateComponentRegion(componentID uint64, heapSize, stackSize int) (*MemoryRegion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.componentRegions[componentID]; ok {
		return existing, nil
	}

	size := heapSize + stackSize
	if m.componentUsed+size > m.componentBudget {
		return nil, halerrors.OutOfMemory()
	}

	region := &MemoryRegion{
		ComponentID: componentID,
		Base:        m.componentUsed,
		Size:        size,
		Alignment:   blockAlignment,
		Cacheable:   true,
		Executable:  false,
	}
	m.componentUsed += size
	m.componentRegions[componentID] = region
	return region, nil
}

// FreeComponentRegion releases componentID's region, if any, returning its
// bytes to the component budget.
func (m *Manager) FreeComponentRegion(componentID uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	region, ok := m.componentRegions[componentID]
	if !ok {
		return
	}
	m.componentUsed -= region.Size
	delete(m.componentRegions, componentID)
}

// GetTotal returns the byte total across every pool and the component
// budget.
func (m *Manager) GetTotal() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := m.componentBudget
	for _, p := range m.pools {
		total += p.Stats().TotalSize
	}
	return total
}

// GetUsed returns bytes currently in use across every pool and carved
// component regions.
func (m *Manager) GetUsed() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	used := m.componentUsed
	for _, p := range m.pools {
		used += p.Stats().UsedSize
	}
	return used
}

// GetFree returns GetTotal() - GetUsed().
func (m *Manager) GetFree() int {
	return m.GetTotal() - m.GetUsed()
}

// SetPressureHook installs the callback OnMemoryPressure invokes. There is
// no default eviction policy: the manager evicts nothing by itself.
func (m *Manager) SetPressureHook(hook func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pressureHook = hook
}

// OnMemoryPressure is invoked by the platform integration when the host
// signals low memory. It calls the user-supplied hook, if any, and does
// nothing else.
func (m *Manager) OnMemoryPressure() {
	m.mu.Lock()
	hook := m.pressureHook
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
}

// PoolStats returns a snapshot of one named pool's statistics.
func (m *Manager) PoolStats(name PoolName) (pool.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.poolLocked(name)
	if err != nil {
		return pool.Stats{}, err
	}
	return p.Stats(), nil
}
