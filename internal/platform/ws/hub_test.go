package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeConn is an in-memory Conn for tests. Reads block on the inbound
// channel; writes land on the outbound channel.
type fakeConn struct {
	inbound  chan []byte
	outbound chan []byte
	closed   chan struct{}
	once     sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound:  make(chan []byte, 16),
		outbound: make(chan []byte, 16),
		closed:   make(chan struct{}),
	}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data, ok := <-f.inbound:
		if !ok {
			return 0, nil, errors.New("connection closed")
		}
		return 1, data, nil
	case <-f.closed:
		return 0, nil, errors.New("connection closed")
	}
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	select {
	case <-f.closed:
		return errors.New("connection closed")
	case f.outbound <- data:
		return nil
	default:
		return errors.New("outbound full")
	}
}

func (f *fakeConn) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func testClient(t *testing.T, clinicID int64, authed bool) (*Client, *fakeConn) {
	t.Helper()
	conn := newFakeConn()
	c := NewClient(clinicID, conn)
	if authed {
		c.Bind(42)
	}
	return c, conn
}

func recvMessage(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case data := <-c.Send:
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal pushed message: %v", err)
		}
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
	return Message{}
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c, _ := testClient(t, 1, true)

	hub.Register(c)
	if got := hub.ClientCount(); got != 1 {
		t.Fatalf("ClientCount = %d, want 1", got)
	}
	if got := hub.ClinicClientCount(1); got != 1 {
		t.Fatalf("ClinicClientCount(1) = %d, want 1", got)
	}
	if _, ok := hub.Get(c.ID); !ok {
		t.Fatal("Get did not find registered client")
	}

	hub.Unregister(c)
	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("ClientCount after unregister = %d, want 0", got)
	}
	if _, ok := hub.Get(c.ID); ok {
		t.Fatal("Get found client after unregister")
	}

	// Double unregister must not panic.
	hub.Unregister(c)
}

func TestHub_BroadcastScopedToClinic(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	a1, _ := testClient(t, 1, true)
	a2, _ := testClient(t, 1, true)
	b1, _ := testClient(t, 2, true)
	hub.Register(a1)
	hub.Register(a2)
	hub.Register(b1)

	msg, err := NewMessage(3, 1, map[string]string{"k": "v"})
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	hub.Broadcast(1, msg)

	for _, c := range []*Client{a1, a2} {
		got := recvMessage(t, c)
		if got.Type != 3 || got.ClinicID != 1 {
			t.Fatalf("broadcast message = %+v, want type 3 clinic 1", got)
		}
	}
	select {
	case data := <-b1.Send:
		t.Fatalf("clinic 2 client received clinic 1 broadcast: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_BroadcastSkipsUnauthenticated(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	authed, _ := testClient(t, 1, true)
	pending, _ := testClient(t, 1, false)
	hub.Register(authed)
	hub.Register(pending)

	msg, _ := NewMessage(1, 1, nil)
	hub.Broadcast(1, msg)

	recvMessage(t, authed)
	select {
	case <-pending.Send:
		t.Fatal("unauthenticated client received broadcast")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_ConcurrentRegisterUnregister(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	const workers = 20

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(clinicID int64) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				c, _ := testClient(t, clinicID, true)
				hub.Register(c)
				hub.Broadcast(clinicID, Message{Type: 1, ClinicID: clinicID})
				hub.Unregister(c)
			}
		}(int64(i % 3))
	}
	wg.Wait()

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("ClientCount after churn = %d, want 0", got)
	}
}

func TestClient_PushAfterCloseIsNoop(t *testing.T) {
	c, _ := testClient(t, 1, true)
	c.Close()
	c.Close() // double close must not panic either

	msg, _ := NewMessage(1, 1, nil)
	c.Push(msg) // must not panic on the closed queue
}

func TestClient_PushDropsWhenFull(t *testing.T) {
	c, _ := testClient(t, 1, true)
	msg, _ := NewMessage(1, 1, nil)
	for i := 0; i < sendBuffer+10; i++ {
		c.Push(msg)
	}
	if got := len(c.Send); got != sendBuffer {
		t.Fatalf("queue length = %d, want %d", got, sendBuffer)
	}
}

func TestClient_WritePumpDrainsQueue(t *testing.T) {
	c, conn := testClient(t, 1, true)
	done := make(chan struct{})
	go func() {
		c.WritePump()
		close(done)
	}()

	msg, _ := NewMessage(5, 1, map[string]int{"n": 7})
	c.Push(msg)

	select {
	case data := <-conn.outbound:
		var got Message
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal written frame: %v", err)
		}
		if got.Type != 5 {
			t.Fatalf("written message type = %d, want 5", got.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for write")
	}

	c.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WritePump did not exit after Close")
	}
}

// recordingProcessor collects processed messages and fails on demand.
type recordingProcessor struct {
	mu       sync.Mutex
	seen     []Inbound
	failWith error
}

func (p *recordingProcessor) Process(ctx context.Context, in Inbound) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = append(p.seen, in)
	return p.failWith
}

func (p *recordingProcessor) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.seen)
}

func TestDispatcher_ProcessesInOrder(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	proc := &recordingProcessor{}
	d := NewDispatcher(hub, proc, 8, 16, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	c, _ := testClient(t, 1, true)
	for i := 0; i < 5; i++ {
		data, _ := json.Marshal(map[string]int{"seq": i})
		if !d.Enqueue(Inbound{Client: c, Msg: Message{Type: 1, ClinicID: 1, Data: data}}) {
			t.Fatalf("Enqueue %d reported full queue", i)
		}
	}

	deadline := time.Now().Add(time.Second)
	for proc.count() < 5 {
		if time.Now().After(deadline) {
			t.Fatalf("processed %d messages, want 5", proc.count())
		}
		time.Sleep(5 * time.Millisecond)
	}

	proc.mu.Lock()
	defer proc.mu.Unlock()
	for i, in := range proc.seen {
		var payload map[string]int
		if err := json.Unmarshal(in.Msg.Data, &payload); err != nil {
			t.Fatalf("unmarshal payload %d: %v", i, err)
		}
		if payload["seq"] != i {
			t.Fatalf("message %d has seq %d, want %d", i, payload["seq"], i)
		}
	}
}

func TestDispatcher_ErrorBecomesTypedMessage(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	proc := &recordingProcessor{failWith: fmt.Errorf("patient not found")}
	d := NewDispatcher(hub, proc, 8, 16, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	c, _ := testClient(t, 3, true)
	d.Enqueue(Inbound{Client: c, Msg: Message{Type: 2, ClinicID: 3}})

	got := recvMessage(t, c)
	if got.Type != 8 {
		t.Fatalf("error message type = %d, want 8", got.Type)
	}
	if got.ClinicID != 3 {
		t.Fatalf("error message clinic = %d, want 3", got.ClinicID)
	}
	var payload ErrorData
	if err := json.Unmarshal(got.Data, &payload); err != nil {
		t.Fatalf("unmarshal error payload: %v", err)
	}
	if payload.Error != "patient not found" {
		t.Fatalf("error payload = %q, want %q", payload.Error, "patient not found")
	}
}

func TestDispatcher_SurvivesFramesFromDepartedClient(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	proc := &recordingProcessor{failWith: fmt.Errorf("list is empty")}
	d := NewDispatcher(hub, proc, 8, 16, zerolog.Nop())

	gone, _ := testClient(t, 1, true)
	hub.Register(gone)
	// The read loop enqueues a frame, then its deferred cleanup runs
	// before the dispatcher drains the queue.
	d.Enqueue(Inbound{Client: gone, Msg: Message{Type: 4, ClinicID: 1}})
	hub.Unregister(gone)

	stayed, _ := testClient(t, 1, true)
	hub.Register(stayed)
	d.Enqueue(Inbound{Client: stayed, Msg: Message{Type: 4, ClinicID: 1}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	// The departed client's frame must not bring the consumer down; the
	// remaining client still gets its error reply.
	got := recvMessage(t, stayed)
	if got.Type != 8 {
		t.Fatalf("reply type = %d, want 8", got.Type)
	}
	if proc.count() != 2 {
		t.Fatalf("processed %d frames, want 2", proc.count())
	}
}

func TestDispatcher_DisconnectDropsClient(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	proc := &recordingProcessor{failWith: fmt.Errorf("bad token: %w", ErrDisconnect)}
	d := NewDispatcher(hub, proc, 8, 16, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	c, _ := testClient(t, 1, false)
	hub.Register(c)
	d.Enqueue(Inbound{Client: c, Msg: Message{Type: 1, ClinicID: 1}})

	deadline := time.Now().Add(time.Second)
	for hub.ClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("client was not unregistered after disconnect error")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDispatcher_EnqueueFullQueue(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	// No consumer running, queue of 2 fills immediately.
	d := NewDispatcher(hub, &recordingProcessor{}, 8, 2, zerolog.Nop())
	c, _ := testClient(t, 1, true)

	in := Inbound{Client: c, Msg: Message{Type: 1, ClinicID: 1}}
	if !d.Enqueue(in) || !d.Enqueue(in) {
		t.Fatal("first two Enqueue calls should succeed")
	}
	if d.Enqueue(in) {
		t.Fatal("third Enqueue should report full queue")
	}
}
