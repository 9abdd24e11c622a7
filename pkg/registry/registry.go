// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package registry implements the ResourceRegistry: a process-singleton
// name/id/type index over ResourceHandles, with the encoded metadata blobs
// kept in an in-memory badger database (see encode.go). Nothing ever
// touches disk.
package registry

import (
	"encoding/binary"
	"sync"
	"sync/atomic"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	halerrors "github.com/coreward/halcore/pkg/errors"
)

// ResourceType classifies what a registered resource represents.
type ResourceType int

const (
	TypeMemory ResourceType = iota
	TypeHardware
	TypePerformance
	TypeCommunication
	TypePlatform
	TypeCustom
)

// AccessPattern describes how a resource is expected to be accessed.
type AccessPattern int

const (
	ReadOnly AccessPattern = iota
	WriteOnly
	ReadWrite
	Streaming
	Random
)

// Priority is the scheduling/preemption priority of a resource.
type Priority int

const (
	Low Priority = iota
	Normal
	High
	Critical
)

// Flags is a bitset of resource attributes.
type Flags uint32

const (
	Shareable Flags = 1 << iota
	Exclusive
	Persistent
	Cacheable
	GPUAccessible
	DMACapable
	MemoryMapped
	Synchronized
)

func (f Flags) Has(flag Flags) bool { return f&flag != 0 }

// Metadata is the full descriptor attached to a ResourceHandle.
type Metadata struct {
	Type          ResourceType
	AccessPattern AccessPattern
	Priority      Priority
	Flags         Flags
	SizeBytes     uint64
	Alignment     uint32
	Timeout       time.Duration
}

// Handle identifies one registered resource. Equality is by ID; ID is never
// reused across the registry's lifetime and 0 is reserved for "invalid".
type Handle struct {
	ID      uint64
	Version uint32
	Name    string
}

// Valid reports whether h was produced by a successful RegisterResource.
func (h Handle) Valid() bool { return h.ID != 0 }

// Registry is the process-singleton ResourceRegistry. Construct one per
// running HAL instance (see pkg/hal), not one per call site.
type Registry struct {
	mu sync.RWMutex

	db      *badger.DB
	opGauge atomic.Int32
	nextID  atomic.Uint64

	byName map[string]uint64
	byID   map[uint64]Handle
	byType map[ResourceType][]uint64
}

// New opens an in-memory badger database for metadata storage, mirroring
// badger.Open(badger.DefaultOptions("").WithInMemory(true)) used throughout
// the rest of this codebase's lineage, and constructs an empty Registry.
func New() (*Registry, error) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR))
	if err != nil {
		return nil, halerrors.WrapContext(halerrors.InitializationFailed(), "registry: badger.Open")
	}
	r := &Registry{
		db:     db,
		byName: make(map[string]uint64),
		byID:   make(map[uint64]Handle),
		byType: make(map[ResourceType][]uint64),
	}
	r.nextID.Store(1)
	return r, nil
}

// Close releases the backing badger database. Outstanding Handles remain
// valid to read in memory but can no longer be looked up by metadata.
func (r *Registry) Close() error {
	return r.db.Close()
}

func idKey(id uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, id)
	return b
}

// RegisterResource allocates a new Handle for name and persists md. Fails
// with invalid_parameter if name is empty, or resource_exhausted if name is
// already registered.
func (r *Registry) RegisterResource(name string, md Metadata) (Handle, error) {
	if name == "" {
		return Handle{}, halerrors.WrapContext(halerrors.InvalidParameter(), "registry: name must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.opGauge.Add(1)
	defer r.opGauge.Add(-1)

	if _, exists := r.byName[name]; exists {
		return Handle{}, halerrors.WrapContext(halerrors.ResourceExhausted(), "registry: name already registered")
	}

	id := r.nextID.Add(1) - 1

	if err := r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(idKey(id), encodeMetadata(md))
	}); err != nil {
		return Handle{}, halerrors.WrapContext(halerrors.InternalError(), "registry: badger write failed")
	}

	h := Handle{ID: id, Version: 1, Name: name}
	r.byName[name] = id
	r.byID[id] = h
	r.byType[md.Type] = append(r.byType[md.Type], id)
	return h, nil
}

// UnregisterResource silently removes h. Any outstanding ResourceLock on
// this handle remains valid until released; the registry's bookkeeping is
// independent of DeadlockEngine ownership state.
func (r *Registry) UnregisterResource(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.byID[h.ID]
	if !ok || cur.ID != h.ID {
		return
	}

	delete(r.byID, h.ID)
	delete(r.byName, cur.Name)

	_ = r.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(idKey(h.ID))
	})

	for t, ids := range r.byType {
		for i, id := range ids {
			if id == h.ID {
				r.byType[t] = append(ids[:i], ids[i+1:]...)
				break
			}
		}
	}
}

// FindResource looks up a handle by name.
func (r *Registry) FindResource(name string) (Handle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byName[name]
	if !ok {
		return Handle{}, halerrors.WrapContext(halerrors.DeviceNotFound(), "registry: "+name)
	}
	return r.byID[id], nil
}

// ResourcesByType returns every currently registered handle of type t.
func (r *Registry) ResourcesByType(t ResourceType) []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.byType[t]
	out := make([]Handle, 0, len(ids))
	for _, id := range ids {
		if h, ok := r.byID[id]; ok {
			out = append(out, h)
		}
	}
	return out
}

// GetMetadata returns the stored Metadata for h.
func (r *Registry) GetMetadata(h Handle) (Metadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.byID[h.ID]; !ok {
		return Metadata{}, halerrors.DeviceNotFound()
	}

	var md Metadata
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(idKey(h.ID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return decodeMetadata(val, &md)
		})
	})
	if err != nil {
		return Metadata{}, halerrors.WrapContext(halerrors.InternalError(), "registry: badger read failed")
	}
	return md, nil
}

// UpdateMetadata rewrites h's metadata, bumping Version. If md.Type differs
// from the previously stored type, the type-indexed bucket is rewritten.
// Returns the updated Handle.
func (r *Registry) UpdateMetadata(h Handle, md Metadata) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.byID[h.ID]
	if !ok {
		return Handle{}, halerrors.DeviceNotFound()
	}

	var oldMD Metadata
	if err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(idKey(h.ID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error { return decodeMetadata(val, &oldMD) })
	}); err != nil {
		return Handle{}, halerrors.WrapContext(halerrors.InternalError(), "registry: badger read failed")
	}

	if err := r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(idKey(h.ID), encodeMetadata(md))
	}); err != nil {
		return Handle{}, halerrors.WrapContext(halerrors.InternalError(), "registry: badger write failed")
	}

	cur.Version++
	r.byID[h.ID] = cur

	if oldMD.Type != md.Type {
		ids := r.byType[oldMD.Type]
		for i, id := range ids {
			if id == h.ID {
				r.byType[oldMD.Type] = append(ids[:i], ids[i+1:]...)
				break
			}
		}
		r.byType[md.Type] = append(r.byType[md.Type], h.ID)
	}

	return cur, nil
}
