// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package memory implements the MemoryManager: a fixed set of named pools
// built from a platform preset, plus idempotent per-component region
// carving and a user-hookable low-memory callback. No general-purpose heap
// is consulted anywhere in this package — every allocation is served from a
// pre-sized pool.Pool or fails.
package memory

import "github.com/coreward/halcore/pkg/pool"

// Config is the set of named pool configs plus the component budget, built
// once per platform. The five platform presets below are the fixed
// constants this module ships; nothing computes these at runtime.
type Config struct {
	SmallObjects    pool.Config
	MediumObjects   pool.Config
	LargeObjects    pool.Config
	CanonicalMemory pool.Config
	AssetMemory     pool.Config
	SystemMemory    pool.Config

	// ComponentBudget is the total byte budget available to
	// AllocateComponentRegion across all components, corresponding to the
	// preset table's "component" column.
	ComponentBudget int
}

// PresetDesktop is the fixed Desktop platform memory configuration: 1 GiB
// total, 512 MiB component budget, 256 MiB runtime, 256 MiB asset, no
// system reservation.
var PresetDesktop = Config{
	SmallObjects:    pool.Config{TotalSize: 64 * 65536, BlockSize: 64, BlockCount: 65536},
	MediumObjects:   pool.Config{TotalSize: 512 * 32768, BlockSize: 512, BlockCount: 32768},
	LargeObjects:    pool.Config{TotalSize: 4096 * 16384, BlockSize: 4096, BlockCount: 16384},
	CanonicalMemory: pool.Config{TotalSize: 256 * 32768, BlockSize: 256, BlockCount: 32768},
	AssetMemory:     pool.Config{TotalSize: 256 * 1024 * 1024, BlockSize: 4096, BlockCount: (256 * 1024 * 1024) / 4096},
	SystemMemory:    pool.Config{TotalSize: 64, BlockSize: 64, BlockCount: 1},
	ComponentBudget: 512 * 1024 * 1024,
}

// PresetVita is the fixed PlayStation Vita memory configuration: 512 MiB
// total, 256 MiB component, 128 MiB runtime, 96 MiB asset, 32 MiB reserved.
var PresetVita = Config{
	SmallObjects:    pool.Config{TotalSize: 64 * 32768, BlockSize: 64, BlockCount: 32768},
	MediumObjects:   pool.Config{TotalSize: 512 * 16384, BlockSize: 512, BlockCount: 16384},
	LargeObjects:    pool.Config{TotalSize: 4096 * 8192, BlockSize: 4096, BlockCount: 8192},
	CanonicalMemory: pool.Config{TotalSize: 256 * 16384, BlockSize: 256, BlockCount: 16384},
	AssetMemory:     pool.Config{TotalSize: 96 * 1024 * 1024, BlockSize: 4096, BlockCount: (96 * 1024 * 1024) / 4096},
	SystemMemory:    pool.Config{TotalSize: 32 * 1024 * 1024, BlockSize: 64, BlockCount: (32 * 1024 * 1024) / 64},
	ComponentBudget: 256 * 1024 * 1024,
}

// PresetPSP is the fixed PlayStation Portable memory configuration: 32 MiB
// total, 12 MiB component, 10 MiB runtime, 8 MiB asset, 2 MiB reserved.
var PresetPSP = Config{
	SmallObjects:    pool.Config{TotalSize: 64 * 8192, BlockSize: 64, BlockCount: 8192},
	MediumObjects:   pool.Config{TotalSize: 512 * 4096, BlockSize: 512, BlockCount: 4096},
	LargeObjects:    pool.Config{TotalSize: 4096 * 1024, BlockSize: 4096, BlockCount: 1024},
	CanonicalMemory: pool.Config{TotalSize: 256 * 4096, BlockSize: 256, BlockCount: 4096},
	AssetMemory:     pool.Config{TotalSize: 8 * 1024 * 1024, BlockSize: 4096, BlockCount: (8 * 1024 * 1024) / 4096},
	SystemMemory:    pool.Config{TotalSize: 2 * 1024 * 1024, BlockSize: 64, BlockCount: (2 * 1024 * 1024) / 64},
	ComponentBudget: 12 * 1024 * 1024,
}

// PresetDreamcast is the fixed Sega Dreamcast memory configuration: 16 MiB
// total, 4 MiB component, 6 MiB runtime, 4 MiB asset, 2 MiB reserved. The
// tightest preset this module ships.
var PresetDreamcast = Config{
	SmallObjects:    pool.Config{TotalSize: 64 * 4096, BlockSize: 64, BlockCount: 4096},
	MediumObjects:   pool.Config{TotalSize: 512 * 2048, BlockSize: 512, BlockCount: 2048},
	LargeObjects:    pool.Config{TotalSize: 4096 * 512, BlockSize: 4096, BlockCount: 512},
	CanonicalMemory: pool.Config{TotalSize: 256 * 2048, BlockSize: 256, BlockCount: 2048},
	AssetMemory:     pool.Config{TotalSize: 4 * 1024 * 1024, BlockSize: 4096, BlockCount: (4 * 1024 * 1024) / 4096},
	SystemMemory:    pool.Config{TotalSize: 2 * 1024 * 1024, BlockSize: 64, BlockCount: (2 * 1024 * 1024) / 64},
	ComponentBudget: 4 * 1024 * 1024,
}

// PresetWeb is the fixed WebAssembly sandbox memory configuration: 256 MiB
// total, 128 MiB component, 64 MiB runtime, 48 MiB asset, 16 MiB reserved.
var PresetWeb = Config{
	SmallObjects:    pool.Config{TotalSize: 64 * 16384, BlockSize: 64, BlockCount: 16384},
	MediumObjects:   pool.Config{TotalSize: 512 * 8192, BlockSize: 512, BlockCount: 8192},
	LargeObjects:    pool.Config{TotalSize: 4096 * 4096, BlockSize: 4096, BlockCount: 4096},
	CanonicalMemory: pool.Config{TotalSize: 256 * 8192, BlockSize: 256, BlockCount: 8192},
	AssetMemory:     pool.Config{TotalSize: 48 * 1024 * 1024, BlockSize: 4096, BlockCount: (48 * 1024 * 1024) / 4096},
	SystemMemory:    pool.Config{TotalSize: 16 * 1024 * 1024, BlockSize: 64, BlockCount: (16 * 1024 * 1024) / 64},
	ComponentBudget: 128 * 1024 * 1024,
}
