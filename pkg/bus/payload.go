// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package bus

import (
	"bytes"
	"encoding/gob"
	"time"
)

// The closed set of payload types the CORE itself knows how to construct.
// Anything else crossing the bus round-trips as an OpaquePayload: the bus
// never needs to understand a payload to route it.
const (
	ResourcePayloadTag    = "hal.resource"
	PerformancePayloadTag = "hal.performance"
)

// ResourcePayload is the built-in body for KindResource messages: one
// resource-coordination fact (acquired, released, preempted) another driver
// may react to.
type ResourcePayload struct {
	ResourceID   uint64
	ResourceName string
	Operation    string
	RequesterID  string
	SizeBytes    uint64
}

func (p *ResourcePayload) TypeTag() string { return ResourcePayloadTag }

func (p *ResourcePayload) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (p *ResourcePayload) Deserialize(data []byte) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(p)
}

func (p *ResourcePayload) Clone() Payload {
	cp := *p
	return &cp
}

// PerformancePayload is the built-in body for KindPerformance messages: a
// single named sample from whichever subsystem produced it.
type PerformancePayload struct {
	Metric    string
	Value     float64
	Unit      string
	SampledAt time.Time
}

func (p *PerformancePayload) TypeTag() string { return PerformancePayloadTag }

func (p *PerformancePayload) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (p *PerformancePayload) Deserialize(data []byte) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(p)
}

func (p *PerformancePayload) Clone() Payload {
	cp := *p
	return &cp
}

// OpaquePayload carries a payload the CORE has no type for. The bytes are
// passed through untouched, so an unknown payload survives a send/receive
// round trip byte-for-byte.
type OpaquePayload struct {
	Tag  string
	Data []byte
}

func (p *OpaquePayload) TypeTag() string { return p.Tag }

func (p *OpaquePayload) Serialize() ([]byte, error) {
	out := make([]byte, len(p.Data))
	copy(out, p.Data)
	return out, nil
}

func (p *OpaquePayload) Deserialize(data []byte) error {
	p.Data = make([]byte, len(data))
	copy(p.Data, data)
	return nil
}

func (p *OpaquePayload) Clone() Payload {
	cp := &OpaquePayload{Tag: p.Tag}
	cp.Data = make([]byte, len(p.Data))
	copy(cp.Data, p.Data)
	return cp
}
