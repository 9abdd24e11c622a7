// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package bus

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"

	halerrors "github.com/coreward/halcore/pkg/errors"
)

// Handler binds a recipient id to message processing logic. Handle may
// return a response Message (the bus rewrites its header and re-sends it
// as a Response) or nil if the message needs no reply. A panicking Handle
// is recovered by the processing loop; one handler's failure must not halt
// the bus.
type Handler interface {
	Handle(msg Message) (*Message, error)
	CanHandle(kind Kind) bool
}

// Stats is a snapshot of the messenger's counters.
type Stats struct {
	MessagesSent          uint64
	MessagesReceived      uint64
	MessagesDropped       uint64
	MessagesExpired       uint64
	RequestsSent          uint64
	RequestsTimeout       uint64
	AverageResponseTimeMs float64
}

type waiter struct {
	ch chan Message
}

// Bus is CrossDriverMessenger: a bounded SPSC ring fed by a serialized
// producer side, drained by a single processing goroutine that fulfils
// send_request waiters by correlation id and routes everything else to
// registered handlers by recipient id, or to every CanHandle match for a
// "*" broadcast.
type Bus struct {
	log logr.Logger

	ring   *ring
	notify chan struct{}

	handlersMu sync.RWMutex
	handlers   map[string]Handler

	pendingMu sync.Mutex
	pending   map[uint64]*waiter

	nextID atomic.Uint64

	sent         atomic.Uint64
	received     atomic.Uint64
	dropped      atomic.Uint64
	expired      atomic.Uint64
	requestsSent atomic.Uint64
	reqTimeout   atomic.Uint64
	respTotalNS  atomic.Int64
	respCount    atomic.Uint64

	stopCh chan struct{}
	wg     sync.WaitGroup
	active atomic.Bool
}

// New constructs an unstarted Bus. Call Start before sending any message.
func New(log logr.Logger) *Bus {
	b := &Bus{
		log:      log.WithName("bus"),
		ring:     newRing(),
		notify:   make(chan struct{}, 1),
		handlers: make(map[string]Handler),
		pending:  make(map[uint64]*waiter),
		stopCh:   make(chan struct{}),
	}
	b.nextID.Store(1)
	return b
}

// Start launches the single processing goroutine that drains the ring.
// The goroutine sleeps on notify (a buffered signal channel) between
// bursts of work rather than polling on a fixed interval; a channel wait
// costs nothing while idle and wakes on the next enqueue.
func (b *Bus) Start() {
	b.active.Store(true)
	b.wg.Add(1)
	go b.processLoop()
}

// Shutdown stops the processing goroutine and clears pending requests.
// Callers already blocked in SendRequest unblock on their own timeout;
// Shutdown does not force an early wakeup for them.
func (b *Bus) Shutdown(ctx context.Context) error {
	close(b.stopCh)
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	b.pendingMu.Lock()
	b.pending = make(map[uint64]*waiter)
	b.pendingMu.Unlock()

	b.active.Store(false)
	return nil
}

// IsActive reports whether the processing goroutine is running.
func (b *Bus) IsActive() bool { return b.active.Load() }

// RegisterHandler binds id to h. Fails with a configuration error if id is
// already bound.
func (b *Bus) RegisterHandler(id string, h Handler) error {
	b.handlersMu.Lock()
	defer b.handlersMu.Unlock()

	if _, exists := b.handlers[id]; exists {
		return halerrors.WrapContext(halerrors.ConfigurationMissing(), "bus: handler already registered for "+id)
	}
	b.handlers[id] = h
	return nil
}

// UnregisterHandler removes the handler bound to id, if any.
func (b *Bus) UnregisterHandler(id string) {
	b.handlersMu.Lock()
	defer b.handlersMu.Unlock()
	delete(b.handlers, id)
}

func (b *Bus) allocID() uint64 {
	return b.nextID.Add(1) - 1
}

// SendMessage assigns msg an id if it has none, then enqueues it. Returns
// a Resource resource_exhausted error (and increments MessagesDropped)
// when the ring is full; the ring never blocks a caller.
func (b *Bus) SendMessage(msg Message) error {
	if msg.Header.ID == 0 {
		msg.Header.ID = b.allocID()
	}
	if msg.Header.TraceID == "" {
		msg.Header.TraceID = newTraceID()
	}
	if msg.Header.Timestamp.IsZero() {
		msg.Header.Timestamp = time.Now()
	}
	return b.enqueue(msg)
}

// enqueue submits msg to the ring, counting the attempt. Every submission
// is accounted for exactly once downstream as received, dropped, expired,
// or still in the ring, so MessagesSent always equals the sum of those.
func (b *Bus) enqueue(msg Message) error {
	b.sent.Add(1)
	if !b.ring.push(msg) {
		b.dropped.Add(1)
		return halerrors.ResourceExhausted()
	}
	select {
	case b.notify <- struct{}{}:
	default:
	}
	return nil
}

// SendNotification is a convenience wrapper sending msg as KindNotification.
func (b *Bus) SendNotification(msg Message) error {
	msg.Header.Kind = KindNotification
	return b.SendMessage(msg)
}

// BroadcastEvent is a convenience wrapper sending msg as KindEvent to every
// handler whose CanHandle(KindEvent) is true.
func (b *Bus) BroadcastEvent(msg Message) error {
	msg.Header.Kind = KindEvent
	msg.Header.RecipientID = BroadcastRecipient
	return b.SendMessage(msg)
}

// SendRequest sends msg as a Request, installs a one-shot waiter keyed by
// its id, and blocks up to timeout for a matching Response. On timeout the
// waiter is removed, RequestsTimeout increments, and a Network
// network_timeout error is returned.
func (b *Bus) SendRequest(msg Message, timeout time.Duration) (Message, error) {
	id := b.allocID()
	msg.Header.ID = id
	msg.Header.CorrelationID = id
	msg.Header.Kind = KindRequest
	msg.Header.Timeout = timeout
	msg.Header.Timestamp = time.Now()
	if msg.Header.TraceID == "" {
		msg.Header.TraceID = newTraceID()
	}

	w := &waiter{ch: make(chan Message, 1)}
	b.pendingMu.Lock()
	b.pending[id] = w
	b.pendingMu.Unlock()

	if err := b.enqueue(msg); err != nil {
		b.pendingMu.Lock()
		delete(b.pending, id)
		b.pendingMu.Unlock()
		return Message{}, err
	}
	b.requestsSent.Add(1)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-w.ch:
		b.respTotalNS.Add(int64(time.Since(msg.Header.Timestamp)))
		b.respCount.Add(1)
		return resp, nil
	case <-timer.C:
		b.pendingMu.Lock()
		delete(b.pending, id)
		b.pendingMu.Unlock()
		b.reqTimeout.Add(1)
		return Message{}, halerrors.NetworkTimeout()
	}
}

func (b *Bus) processLoop() {
	defer b.wg.Done()
	for {
		select {
		case <-b.stopCh:
			return
		case <-b.notify:
			b.drain()
		}
	}
}

func (b *Bus) drain() {
	for {
		msg, ok := b.ring.pop()
		if !ok {
			return
		}
		b.handleOne(msg)
	}
}

func (b *Bus) handleOne(msg Message) {
	now := time.Now()
	if msg.Header.expired(now) {
		b.expired.Add(1)
		return
	}

	b.received.Add(1)

	if msg.Header.Kind == KindResponse {
		b.fulfil(msg)
		return
	}

	if msg.Header.RecipientID == BroadcastRecipient {
		b.handlersMu.RLock()
		targets := make([]Handler, 0, len(b.handlers))
		for _, h := range b.handlers {
			if h.CanHandle(msg.Header.Kind) {
				targets = append(targets, h)
			}
		}
		b.handlersMu.RUnlock()
		for _, h := range targets {
			b.invoke(h, msg)
		}
		return
	}

	b.handlersMu.RLock()
	h, ok := b.handlers[msg.Header.RecipientID]
	b.handlersMu.RUnlock()
	if !ok {
		return
	}
	b.invoke(h, msg)
}

// invoke calls h.Handle with a panic recovery guard and, if it returns a
// reply, rewrites the header into a Response addressed back to the
// original sender and re-sends it.
func (b *Bus) invoke(h Handler, msg Message) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Info("handler panicked, recovered", "recipient", msg.Header.RecipientID, "panic", r)
		}
	}()

	reply, err := h.Handle(msg)
	if err != nil {
		b.log.V(1).Info("handler returned error", "recipient", msg.Header.RecipientID, "error", err)
	}
	if reply == nil {
		return
	}

	reply.Header.ID = b.allocID()
	reply.Header.Kind = KindResponse
	reply.Header.CorrelationID = msg.Header.ID
	reply.Header.SenderID = msg.Header.RecipientID
	reply.Header.RecipientID = msg.Header.SenderID
	reply.Header.TraceID = msg.Header.TraceID
	reply.Header.Timestamp = time.Now()

	_ = b.enqueue(*reply)
}

func (b *Bus) fulfil(msg Message) {
	b.pendingMu.Lock()
	w, ok := b.pending[msg.Header.CorrelationID]
	if ok {
		delete(b.pending, msg.Header.CorrelationID)
	}
	b.pendingMu.Unlock()

	if !ok {
		return // late response after timeout: dropped
	}
	w.ch <- msg
}

// Stats returns a snapshot of the bus's counters.
func (b *Bus) Stats() Stats {
	var avg float64
	if n := b.respCount.Load(); n > 0 {
		avg = float64(b.respTotalNS.Load()) / float64(n) / float64(time.Millisecond)
	}
	return Stats{
		MessagesSent:          b.sent.Load(),
		MessagesReceived:      b.received.Load(),
		MessagesDropped:       b.dropped.Load(),
		MessagesExpired:       b.expired.Load(),
		RequestsSent:          b.requestsSent.Load(),
		RequestsTimeout:       b.reqTimeout.Load(),
		AverageResponseTimeMs: avg,
	}
}
