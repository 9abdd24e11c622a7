// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package bus_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreward/halcore/pkg/bus"
)

func TestResourcePayloadRoundTrip(t *testing.T) {
	in := &bus.ResourcePayload{
		ResourceID:   42,
		ResourceName: "gpu.framebuffer",
		Operation:    "acquired",
		RequesterID:  "video",
		SizeBytes:    1 << 20,
	}

	data, err := in.Serialize()
	require.NoError(t, err)

	var out bus.ResourcePayload
	require.NoError(t, out.Deserialize(data))
	assert.Equal(t, *in, out)
}

func TestPerformancePayloadRoundTrip(t *testing.T) {
	in := &bus.PerformancePayload{
		Metric:    "frame_time",
		Value:     16.6,
		Unit:      "ms",
		SampledAt: time.Unix(1700000000, 0).UTC(),
	}

	data, err := in.Serialize()
	require.NoError(t, err)

	var out bus.PerformancePayload
	require.NoError(t, out.Deserialize(data))
	assert.Equal(t, *in, out)
}

func TestOpaquePayloadPreservesBytes(t *testing.T) {
	raw := []byte{0x00, 0xFF, 0x13, 0x37}
	in := &bus.OpaquePayload{Tag: "vendor.blob", Data: raw}

	data, err := in.Serialize()
	require.NoError(t, err)
	assert.Equal(t, raw, data)

	var out bus.OpaquePayload
	require.NoError(t, out.Deserialize(data))
	assert.Equal(t, raw, out.Data)

	// Serialize must hand out a copy, not the backing array.
	data[0] = 0xAA
	assert.Equal(t, byte(0x00), in.Data[0])
}

func TestCloneIsDeep(t *testing.T) {
	in := &bus.OpaquePayload{Tag: "vendor.blob", Data: []byte{1, 2, 3}}
	cp := in.Clone().(*bus.OpaquePayload)
	cp.Data[0] = 9
	assert.Equal(t, byte(1), in.Data[0])

	rp := &bus.ResourcePayload{ResourceID: 7}
	rcp := rp.Clone().(*bus.ResourcePayload)
	rcp.ResourceID = 8
	assert.Equal(t, uint64(7), rp.ResourceID)
}
