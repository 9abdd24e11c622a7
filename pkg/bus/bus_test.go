// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package bus_test

import (
	"context"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreward/halcore/pkg/bus"
)

type echoHandler struct {
	kind bus.Kind
}

func (h echoHandler) CanHandle(k bus.Kind) bool { return k == h.kind }

func (h echoHandler) Handle(msg bus.Message) (*bus.Message, error) {
	return &bus.Message{Header: bus.Header{}}, nil
}

type silentHandler struct{ kind bus.Kind }

func (h silentHandler) CanHandle(k bus.Kind) bool             { return k == h.kind }
func (h silentHandler) Handle(bus.Message) (*bus.Message, error) { return nil, nil }

func TestSendRequestCorrelatesResponse(t *testing.T) {
	b := bus.New(logr.Discard())
	b.Start()
	defer b.Shutdown(context.Background())

	require.NoError(t, b.RegisterHandler("gpu", echoHandler{kind: bus.KindRequest}))

	resp, err := b.SendRequest(bus.Message{Header: bus.Header{RecipientID: "gpu"}}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, bus.KindResponse, resp.Header.Kind)

	stats := b.Stats()
	assert.Equal(t, uint64(1), stats.RequestsSent)
	assert.Equal(t, uint64(2), stats.MessagesSent)     // request + response
	assert.Equal(t, uint64(2), stats.MessagesReceived) // request + response
}

func TestSendRequestTimesOut(t *testing.T) {
	b := bus.New(logr.Discard())
	b.Start()
	defer b.Shutdown(context.Background())

	require.NoError(t, b.RegisterHandler("slow", silentHandler{kind: bus.KindRequest}))

	start := time.Now()
	_, err := b.SendRequest(bus.Message{Header: bus.Header{RecipientID: "slow"}}, 50*time.Millisecond)
	elapsed := time.Since(start)

	assert.Error(t, err)
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	assert.Less(t, elapsed, 200*time.Millisecond)
	assert.Equal(t, uint64(1), b.Stats().RequestsTimeout)
}

func TestRequestTraceIDFlowsIntoResponse(t *testing.T) {
	b := bus.New(logr.Discard())
	b.Start()
	defer b.Shutdown(context.Background())

	require.NoError(t, b.RegisterHandler("gpu", echoHandler{kind: bus.KindRequest}))

	resp, err := b.SendRequest(bus.Message{Header: bus.Header{RecipientID: "gpu", TraceID: "trace-1"}}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "trace-1", resp.Header.TraceID)

	// A request without a trace id gets one assigned, and the response
	// carries the same one.
	resp, err = b.SendRequest(bus.Message{Header: bus.Header{RecipientID: "gpu"}}, time.Second)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Header.TraceID)
}

func TestRegisterHandlerRejectsDuplicate(t *testing.T) {
	b := bus.New(logr.Discard())
	require.NoError(t, b.RegisterHandler("a", echoHandler{}))
	assert.Error(t, b.RegisterHandler("a", echoHandler{}))
}

func TestRingCapacityRejectsOverflow(t *testing.T) {
	b := bus.New(logr.Discard()) // not started: nothing drains the ring

	for i := 0; i < 1024; i++ {
		require.NoError(t, b.SendMessage(bus.Message{Header: bus.Header{RecipientID: "x"}}))
	}
	err := b.SendMessage(bus.Message{Header: bus.Header{RecipientID: "x"}})
	assert.Error(t, err)
	assert.Equal(t, uint64(1), b.Stats().MessagesDropped)
}

func TestBroadcastDeliversToEveryMatchingHandler(t *testing.T) {
	b := bus.New(logr.Discard())
	b.Start()
	defer b.Shutdown(context.Background())

	hits := make(chan string, 2)
	h1 := recordingHandler{kind: bus.KindEvent, out: hits, name: "h1"}
	h2 := recordingHandler{kind: bus.KindEvent, out: hits, name: "h2"}
	require.NoError(t, b.RegisterHandler("h1", h1))
	require.NoError(t, b.RegisterHandler("h2", h2))

	require.NoError(t, b.BroadcastEvent(bus.Message{Header: bus.Header{SenderID: "origin"}}))

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case name := <-hits:
			seen[name] = true
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for broadcast delivery")
		}
	}
	assert.True(t, seen["h1"])
	assert.True(t, seen["h2"])
}

type recordingHandler struct {
	kind bus.Kind
	out  chan string
	name string
}

func (h recordingHandler) CanHandle(k bus.Kind) bool { return k == h.kind }
func (h recordingHandler) Handle(bus.Message) (*bus.Message, error) {
	h.out <- h.name
	return nil, nil
}

type orderingHandler struct {
	out chan uint64
}

func (orderingHandler) CanHandle(k bus.Kind) bool { return k == bus.KindNotification }
func (h orderingHandler) Handle(msg bus.Message) (*bus.Message, error) {
	h.out <- msg.Header.ID
	return nil, nil
}

func TestPerRecipientFIFOOrdering(t *testing.T) {
	b := bus.New(logr.Discard())
	b.Start()
	defer b.Shutdown(context.Background())

	got := make(chan uint64, 64)
	require.NoError(t, b.RegisterHandler("sink", orderingHandler{out: got}))

	var sent []uint64
	for i := 0; i < 32; i++ {
		msg := bus.Message{Header: bus.Header{ID: uint64(1000 + i), SenderID: "src", RecipientID: "sink"}}
		require.NoError(t, b.SendNotification(msg))
		sent = append(sent, msg.Header.ID)
	}

	for _, want := range sent {
		select {
		case id := <-got:
			assert.Equal(t, want, id, "same-recipient messages must arrive in enqueue order")
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for delivery")
		}
	}
}

func TestHandlerPanicIsRecovered(t *testing.T) {
	b := bus.New(logr.Discard())
	b.Start()
	defer b.Shutdown(context.Background())

	require.NoError(t, b.RegisterHandler("boom", panicHandler{}))
	require.NoError(t, b.SendMessage(bus.Message{Header: bus.Header{RecipientID: "boom", Kind: bus.KindNotification}}))

	// The processing goroutine must survive the panic and keep serving.
	require.NoError(t, b.RegisterHandler("gpu", echoHandler{kind: bus.KindRequest}))
	_, err := b.SendRequest(bus.Message{Header: bus.Header{RecipientID: "gpu"}}, time.Second)
	assert.NoError(t, err)
}

type panicHandler struct{}

func (panicHandler) CanHandle(bus.Kind) bool { return true }
func (panicHandler) Handle(bus.Message) (*bus.Message, error) {
	panic("boom")
}
