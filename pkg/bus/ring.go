// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package bus

import (
	"sync/atomic"
)

// ringCapacity is the bus's fixed ring capacity.
const ringCapacity = 1024

// cacheLinePad is sized to push consecutive slots onto separate cache
// lines, avoiding false sharing between the producer writing slot N and the
// consumer reading slot N-1.
type cacheLinePad [64]byte

// ringSlot holds one queued message plus a valid-bit flag. Enqueue writes
// the message fields then the flag; dequeue reads the flag then the
// message fields, so a torn read is impossible even without a mutex on
// the consumer side.
type ringSlot struct {
	valid atomic.Bool
	_     cacheLinePad
	msg   Message
}

// ring is the SPSC lock-free queue backing the bus. There is exactly one
// logical consumer (the bus's processing goroutine, which owns tail and
// never needs a lock). The producer side is serialized by enqueueMu so
// that any number of external callers to SendMessage collapse into the
// single logical producer the ring's ordering guarantees assume.
type ring struct {
	slots [ringCapacity]ringSlot

	enqueueMu enqueueLock
	head      int // producer-owned, guarded by enqueueMu

	tail int // consumer-owned, touched only by the processing goroutine
}

// enqueueLock is a one-token channel used as a mutex. Its zero value is not
// usable: newRing creates the channel and seeds the token.
type enqueueLock struct{ mu chan struct{} }

func newRing() *ring {
	r := &ring{}
	r.enqueueMu.mu = make(chan struct{}, 1)
	r.enqueueMu.mu <- struct{}{}
	return r
}

func (l *enqueueLock) Lock()   { <-l.mu }
func (l *enqueueLock) Unlock() { l.mu <- struct{}{} }

// push enqueues msg. Returns false (ring full) without blocking if the
// next slot is still marked valid — i.e. the consumer has not yet drained
// it. The ring never blocks a caller.
func (r *ring) push(msg Message) bool {
	r.enqueueMu.Lock()
	defer r.enqueueMu.Unlock()

	slot := &r.slots[r.head]
	if slot.valid.Load() {
		return false
	}
	slot.msg = msg
	slot.valid.Store(true) // release: publish msg before the flag
	r.head = (r.head + 1) % ringCapacity
	return true
}

// pop dequeues the oldest message, if any. Only the processing goroutine
// may call this.
func (r *ring) pop() (Message, bool) {
	slot := &r.slots[r.tail]
	if !slot.valid.Load() { // acquire: flag before msg
		return Message{}, false
	}
	msg := slot.msg
	slot.msg = Message{}
	slot.valid.Store(false)
	r.tail = (r.tail + 1) % ringCapacity
	return msg, true
}
