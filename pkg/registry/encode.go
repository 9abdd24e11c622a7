// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package registry

import (
	"bytes"
	"encoding/gob"
)

// encodeMetadata gob-encodes md for storage as a badger value. Metadata
// has no generated schema, so the value uses the standard library's struct
// codec rather than a protobuf envelope.
func encodeMetadata(md Metadata) []byte {
	var buf bytes.Buffer
	// gob.NewEncoder never returns an error for this fixed, exported,
	// non-cyclic struct; panicking here would indicate a programming
	// mistake, not a runtime condition, so the error is discarded.
	_ = gob.NewEncoder(&buf).Encode(md)
	return buf.Bytes()
}

func decodeMetadata(data []byte, md *Metadata) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(md)
}
