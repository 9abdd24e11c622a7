// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package bus implements CrossDriverMessenger: a lock-free SPSC ring fed by
// an internally serialized producer side, a single processing goroutine,
// request/response correlation via one-shot waiters, and broadcast/direct
// routing to registered handlers.
package bus

import (
	"time"

	"github.com/google/uuid"
)

// Kind is the message's routing/semantic category.
type Kind int

const (
	KindRequest Kind = iota
	KindResponse
	KindNotification
	KindEvent
	KindPerformance
	KindResource
)

func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindResponse:
		return "response"
	case KindNotification:
		return "notification"
	case KindEvent:
		return "event"
	case KindPerformance:
		return "performance"
	case KindResource:
		return "resource"
	default:
		return "unknown"
	}
}

// BroadcastRecipient is the sentinel RecipientID meaning "every handler
// whose CanHandle(kind) returns true."
const BroadcastRecipient = "*"

// Header carries routing and correlation metadata, separate from the
// payload so the bus can rewrite it (e.g. turning a handler's reply into a
// Response message) without touching payload bytes.
type Header struct {
	ID            uint64
	CorrelationID uint64
	Kind          Kind
	Priority      int
	SenderID      string
	RecipientID   string
	Timestamp     time.Time
	Timeout       time.Duration
	PayloadSize   int

	// TraceID is an opaque, cross-process correlation id independent of
	// the bus-local ID sequence — useful once a message's handling spans
	// a driver call that logs under its own request id. Generated by
	// SendMessage when left empty.
	TraceID string
}

// newTraceID produces a fresh trace identifier for a message that doesn't
// already carry one.
func newTraceID() string {
	return uuid.NewString()
}

// expired reports whether the header's timeout has elapsed as of now.
func (h Header) expired(now time.Time) bool {
	if h.Timeout <= 0 {
		return false
	}
	return !now.Before(h.Timestamp.Add(h.Timeout))
}

// Payload is an application-defined message body. Implementations must be
// safe to retain after Serialize is called (Clone should deep-copy any
// mutable state).
type Payload interface {
	TypeTag() string
	Serialize() ([]byte, error)
	Deserialize([]byte) error
	Clone() Payload
}

// Message is a Header plus an optional Payload.
type Message struct {
	Header  Header
	Payload Payload
}
