// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"

	"github.com/coreward/halcore/pkg/hal"
	"github.com/coreward/halcore/pkg/memory"
	"github.com/coreward/halcore/pkg/platform"
)

var targetFlag string
var verbose bool

func init() {
	flag.StringVar(&targetFlag, "target", "desktop",
		"Platform target to bring up: desktop, vita, psp, dreamcast, web")
	flag.BoolVar(&verbose, "verbose", false, "Enable debug-level logging")
}

func parseTarget(name string) (platform.Target, error) {
	switch name {
	case "desktop":
		return platform.TargetDesktop, nil
	case "vita":
		return platform.TargetVita, nil
	case "psp":
		return platform.TargetPSP, nil
	case "dreamcast":
		return platform.TargetDreamcast, nil
	case "web":
		return platform.TargetWeb, nil
	default:
		return 0, fmt.Errorf("unknown target %q", name)
	}
}

func main() {
	flag.Parse()

	var log logr.Logger
	if verbose {
		zapLog, _ := zap.NewDevelopment()
		log = zapr.NewLogger(zapLog)
	} else {
		log = logr.Discard()
	}

	target, err := parseTarget(targetFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	h, err := hal.New(target, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hal init failed: %v\n", err)
		os.Exit(1)
	}
	defer h.Shutdown(context.Background())

	info := h.Capability.Info()
	fmt.Printf("platform:     %s (%s)\n", info.Name, info.Architecture)
	fmt.Printf("tier:         %s\n", info.PerformanceTier)
	fmt.Printf("memory:       %d bytes\n", info.TotalMemoryBytes)
	fmt.Printf("cores:        %d\n", info.CPUCoreCount)
	fmt.Printf("endianness:   %s\n", info.Endianness)
	fmt.Printf("fpu/simd:     %v / %v\n", info.HasFPU, info.HasSIMD)

	fmt.Println("\ncapabilities:")
	for _, c := range h.Capability.Capabilities() {
		fmt.Printf("  %-16s enabled\n", c)
	}
	fmt.Printf("capability mask: %#08x\n", h.Capability.Mask())

	fmt.Println("\nmemory pools:")
	pools := []memory.PoolName{
		memory.SmallObjects, memory.MediumObjects, memory.LargeObjects,
		memory.CanonicalMemory, memory.AssetMemory, memory.SystemMemory,
	}
	for _, name := range pools {
		stats, err := h.Memory.PoolStats(name)
		if err != nil {
			continue
		}
		fmt.Printf("  %-18s total=%d used=%d blocks=%d/%d\n",
			name, stats.TotalSize, stats.UsedSize, stats.UsedBlocks, stats.TotalBlocks)
	}
}
