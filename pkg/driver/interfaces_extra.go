// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package driver

// MemoryDriver, NetworkDriver, and StorageDriver round out the nine driver
// kinds. Unlike Video/Audio/Input/File/Thread/Time, most of their surface
// already lives elsewhere in the core (pkg/memory's MemoryManager for
// Memory, the Networking capability flag for Network), so a backend here
// is expected to be a thin platform-integration shim rather than a
// parallel API surface.
type MemoryDriver interface {
	Driver
	TotalBytes() uint64
	AvailableBytes() uint64
}

// NetworkDriver is the contract a networking backend implements on
// platforms where CapabilityProvider reports Networking support.
type NetworkDriver interface {
	Driver
	Connect(address string) (NetworkHandle, error)
	Disconnect(NetworkHandle) error
	Send(NetworkHandle, []byte) (int, error)
	Receive(NetworkHandle, []byte) (int, error)
}

// NetworkHandle identifies an open connection within a NetworkDriver.
type NetworkHandle uint64

// StorageDriver is the contract a persistent-storage backend implements,
// distinct from FileDriver's byte-stream access (e.g. a save-data or
// key-value storage API on consoles with no general filesystem).
type StorageDriver interface {
	Driver
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
	Keys(prefix string) ([]string, error)
}
