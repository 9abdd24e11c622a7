// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package event implements filtered pub/sub layered on pkg/bus. It adds no
// new coordination primitive: event fan-out is one bus handler
// registration fanning matching messages out to per-subscriber channels,
// with a filter check per subscriber and close-on-shutdown semantics.
package event

import (
	"sync"

	"github.com/coreward/halcore/pkg/bus"
)

// routerRecipientID is the fixed bus recipient id the Router registers
// itself under. It receives every broadcast Notification/Event message and
// any message addressed directly to this id; messages addressed to another
// recipient do not reach it.
const routerRecipientID = "hal.event-router"

// Filter reports whether msg should be delivered to a given subscriber.
type Filter func(bus.Message) bool

type subscriber struct {
	id     uint64
	filter Filter
	ch     chan bus.Message
}

// Router fans bus Notification/Event messages out to filtered
// subscriber channels.
type Router struct {
	b *bus.Bus

	mu          sync.Mutex
	subscribers map[uint64]*subscriber
	nextID      uint64
	closed      bool
}

// NewRouter constructs a Router and registers it as a handler on b. Start
// b's processing goroutine (bus.Bus.Start) before or after this call;
// registration alone does not require the bus to already be running.
func NewRouter(b *bus.Bus) (*Router, error) {
	r := &Router{
		b:           b,
		subscribers: make(map[uint64]*subscriber),
	}
	if err := b.RegisterHandler(routerRecipientID, r); err != nil {
		return nil, err
	}
	return r, nil
}

// CanHandle reports interest in Notification and Event kind messages —
// the two kinds this router's Subscribe/Publish pair is ever sent.
func (r *Router) CanHandle(kind bus.Kind) bool {
	return kind == bus.KindNotification || kind == bus.KindEvent
}

// Handle forwards msg to every subscriber whose filter matches. Never
// returns a reply: event fan-out is fire-and-forget.
func (r *Router) Handle(msg bus.Message) (*bus.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, sub := range r.subscribers {
		if sub.filter != nil && !sub.filter(msg) {
			continue
		}
		select {
		case sub.ch <- msg:
		default:
			// A slow subscriber must not block event delivery to others.
		}
	}
	return nil, nil
}

// Subscribe returns a channel receiving every routed message for which
// filter returns true (filter == nil matches everything). The channel is
// closed by Unsubscribe or Close.
func (r *Router) Subscribe(filter Filter) (<-chan bus.Message, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++
	sub := &subscriber{id: id, filter: filter, ch: make(chan bus.Message, 16)}
	r.subscribers[id] = sub

	unsubscribe := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if _, ok := r.subscribers[id]; ok {
			delete(r.subscribers, id)
			close(sub.ch)
		}
	}
	return sub.ch, unsubscribe
}

// Publish broadcasts msg as a KindEvent message on the underlying bus.
func (r *Router) Publish(msg bus.Message) error {
	return r.b.BroadcastEvent(msg)
}

// Close unregisters the router from the bus and closes every subscriber
// channel.
func (r *Router) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	r.b.UnregisterHandler(routerRecipientID)
	for id, sub := range r.subscribers {
		close(sub.ch)
		delete(r.subscribers, id)
	}
}
