// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package pool implements a fixed-capacity, free-list block allocator. No
// pool ever grows; if its free list is empty, allocation fails rather than
// falling through to a general-purpose heap. This mirrors a tcmalloc-style
// fixed size-class free list (see runtime's own small-object allocator)
// rather than a Go map or slice-backed store, since the whole point of a
// pool here is bounded, predictable memory with no GC-visible churn per
// allocation.
package pool

import (
	"sync"

	halerrors "github.com/coreward/halcore/pkg/errors"
)

const (
	headerSize = 8 // bytes: free-list index (uint32) plus magic (uint32)

	freeMagic uint32 = 0xF4EEF4EE
	usedMagic uint32 = 0x05EDC5ED
)

// blockHeader is the first headerSize bytes of every block. A free block's
// nextFree is the index of the next free block (or noNext); an allocated
// block's nextFree field is unused scratch space once magic flips to
// usedMagic.
type blockHeader struct {
	nextFree uint32
	magic    uint32
}

const noNext uint32 = 0xFFFFFFFF

// Config describes one pool's fixed layout. BlockSize is rounded up to an
// 8-byte multiple at Init time; the invariant BlockSize*BlockCount <=
// TotalSize must hold after rounding.
type Config struct {
	TotalSize  int
	BlockSize  int
	BlockCount int
}

// BlockRef is an opaque handle to an allocated block, returned by Alloc and
// required by Dealloc/At. An index into the pool's owned backing buffer
// stands in for a raw block pointer, so the pool never needs
// unsafe.Pointer and a foreign/stale ref is rejected the same way an
// invalid pointer would be: by bounds and magic checks.
type BlockRef struct {
	index int
	valid bool
}

// Valid reports whether r was produced by a successful Alloc (the zero
// BlockRef is not valid). Dealloc takes the ref by value, so Valid stays
// true after the block is freed; a stale ref or a double-free is caught by
// the magic check in Dealloc and At instead.
func (r BlockRef) Valid() bool { return r.valid }

// Stats is a snapshot of one pool's counters.
type Stats struct {
	TotalSize      int
	UsedSize       int
	FreeSize       int
	BlockSize      int
	TotalBlocks    int
	UsedBlocks     int
	FreeBlocks     int
	PeakUsedBlocks int
	AllocCount     uint64
	DeallocCount   uint64
}

// Pool is a single fixed-block free-list allocator over an owned byte
// buffer. Every method takes the pool's own mutex; pkg/memory additionally
// serializes access across all of a MemoryManager's pools with one mutex.
type Pool struct {
	mu sync.Mutex

	data       []byte
	blockSize  int
	blockCount int

	freeHead uint32 // noNext when empty

	usedBlocks   int
	peakUsed     int
	allocCount   uint64
	deallocCount uint64

	invalid bool // set on detected corruption; pool refuses further use
}

func roundUp8(n int) int {
	return (n + 7) &^ 7
}

// New constructs and initializes a pool from cfg. Block size must be at
// least headerSize and is then rounded up to an 8-byte multiple; block count
// is total size over block size, capped at cfg.BlockCount when that is
// positive and smaller; every block's magic is set to freeMagic before any
// allocation is served.
func New(cfg Config) (*Pool, error) {
	if cfg.TotalSize <= 0 {
		return nil, halerrors.WrapContext(halerrors.InvalidParameter(), "pool: total_size must be > 0")
	}
	if cfg.BlockSize < headerSize {
		return nil, halerrors.WrapContext(halerrors.InvalidParameter(), "pool: block_size must be >= header size")
	}
	blockSize := roundUp8(cfg.BlockSize)
	blockCount := cfg.TotalSize / blockSize
	if blockCount <= 0 {
		return nil, halerrors.WrapContext(halerrors.InvalidParameter(), "pool: total_size too small for one block")
	}
	if cfg.BlockCount > 0 && cfg.BlockCount < blockCount {
		blockCount = cfg.BlockCount
	}

	p := &Pool{
		data:       make([]byte, blockSize*blockCount),
		blockSize:  blockSize,
		blockCount: blockCount,
	}
	p.resetFreeList()
	return p, nil
}

// resetFreeList threads every block into the free list in index order and
// stamps freeMagic on each header.
func (p *Pool) resetFreeList() {
	for i := 0; i < p.blockCount; i++ {
		h := p.headerAt(i)
		if i == p.blockCount-1 {
			h.nextFree = noNext
		} else {
			h.nextFree = uint32(i + 1)
		}
		h.magic = freeMagic
		p.writeHeader(i, h)
	}
	p.freeHead = 0
	p.usedBlocks = 0
}

func (p *Pool) blockOffset(i int) int { return i * p.blockSize }

func (p *Pool) headerAt(i int) blockHeader {
	off := p.blockOffset(i)
	return blockHeader{
		nextFree: leUint32(p.data[off : off+4]),
		magic:    leUint32(p.data[off+4 : off+8]),
	}
}

func (p *Pool) writeHeader(i int, h blockHeader) {
	off := p.blockOffset(i)
	putLEUint32(p.data[off:off+4], h.nextFree)
	putLEUint32(p.data[off+4:off+8], h.magic)
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func putLEUint32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

// Alloc pops the head of the free list, verifies freeMagic (corruption
// otherwise marks the pool invalid and returns an Internal error), flips
// the header to usedMagic, and returns a BlockRef. Returns a retryable
// Resource resource_exhausted error when the free list is empty, since
// another caller's Dealloc can free a block.
func (p *Pool) Alloc() (BlockRef, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.invalid {
		return BlockRef{}, halerrors.InternalError()
	}
	if p.freeHead == noNext {
		return BlockRef{}, halerrors.ResourceExhausted()
	}

	idx := int(p.freeHead)
	h := p.headerAt(idx)
	if h.magic != freeMagic {
		p.invalid = true
		return BlockRef{}, halerrors.WrapContext(halerrors.InternalError(), "pool: free list corruption")
	}

	p.freeHead = h.nextFree
	h.magic = usedMagic
	p.writeHeader(idx, h)

	p.usedBlocks++
	if p.usedBlocks > p.peakUsed {
		p.peakUsed = p.usedBlocks
	}
	p.allocCount++

	return BlockRef{index: idx, valid: true}, nil
}

// Dealloc returns a block to the free list. A ref that was not produced by
// Alloc (invalid, out of range, or not carrying usedMagic) is a silent
// no-op: a safe rejection of double-free or a foreign handle that leaves
// every counter unchanged.
func (p *Pool) Dealloc(ref BlockRef) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !ref.valid || ref.index < 0 || ref.index >= p.blockCount {
		return
	}
	h := p.headerAt(ref.index)
	if h.magic != usedMagic {
		return
	}

	h.nextFree = p.freeHead
	h.magic = freeMagic
	p.writeHeader(ref.index, h)
	p.freeHead = uint32(ref.index)

	p.usedBlocks--
	p.deallocCount++
}

// At returns the user-writable bytes of an allocated block (everything
// after the header). Callers must not hold onto the slice past the next
// Dealloc of the same ref.
func (p *Pool) At(ref BlockRef) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !ref.valid || ref.index < 0 || ref.index >= p.blockCount {
		return nil, halerrors.InvalidParameter()
	}
	h := p.headerAt(ref.index)
	if h.magic != usedMagic {
		return nil, halerrors.InvalidParameter()
	}
	off := p.blockOffset(ref.index)
	return p.data[off+headerSize : off+p.blockSize], nil
}

// Stats returns a snapshot of the pool's current counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Stats{
		TotalSize:      len(p.data),
		UsedSize:       p.usedBlocks * p.blockSize,
		FreeSize:       (p.blockCount - p.usedBlocks) * p.blockSize,
		BlockSize:      p.blockSize,
		TotalBlocks:    p.blockCount,
		UsedBlocks:     p.usedBlocks,
		FreeBlocks:     p.blockCount - p.usedBlocks,
		PeakUsedBlocks: p.peakUsed,
		AllocCount:     p.allocCount,
		DeallocCount:   p.deallocCount,
	}
}

// Validate walks the free list, requiring every visited block to carry
// freeMagic, and that the count of visited blocks plus usedBlocks equals
// blockCount. Used for diagnostics only; never mutates state.
func (p *Pool) Validate() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.invalid {
		return false
	}

	seen := 0
	idx := p.freeHead
	visited := make(map[uint32]bool, p.blockCount)
	for idx != noNext {
		if visited[idx] {
			return false // cycle in free list
		}
		visited[idx] = true

		if int(idx) >= p.blockCount {
			return false
		}
		h := p.headerAt(int(idx))
		if h.magic != freeMagic {
			return false
		}
		seen++
		idx = h.nextFree
	}
	return seen+p.usedBlocks == p.blockCount
}

// BlockSize returns the pool's rounded block size.
func (p *Pool) BlockSize() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.blockSize
}
