// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package driver declares the nine driver-kind contracts the HAL exposes
// to the higher component-runtime layer (Video/Audio/Input/File/Thread/
// Time/Memory/Network/Storage) and a priority-sorted DriverRegistry over
// per-kind factories. Concrete backends live with the platform
// integrations, not in this module; these are interfaces only.
package driver

// Kind identifies which of the nine driver contracts an Info describes.
type Kind int

const (
	Video Kind = iota
	Audio
	Input
	File
	Thread
	Time
	Memory
	Network
	Storage
)

func (k Kind) String() string {
	switch k {
	case Video:
		return "video"
	case Audio:
		return "audio"
	case Input:
		return "input"
	case File:
		return "file"
	case Thread:
		return "thread"
	case Time:
		return "time"
	case Memory:
		return "memory"
	case Network:
		return "network"
	case Storage:
		return "storage"
	default:
		return "unknown"
	}
}

// Driver is the marker every concrete backend implements, so a generic
// DriverRegistry can hold Video/Audio/etc. backends behind one type
// without the CORE knowing anything about their kind-specific methods.
type Driver interface {
	Kind() Kind
	Close() error
}
