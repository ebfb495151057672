package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
)

type fakeConn struct {
	mu       sync.Mutex
	written  [][]byte
	writeErr error
	closed   bool
}

func (f *fakeConn) Write(_ context.Context, _ websocket.MessageType, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	f.written = append(f.written, buf)
	return nil
}

func (f *fakeConn) Close(websocket.StatusCode, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) Read(ctx context.Context) (websocket.MessageType, []byte, error) {
	<-ctx.Done()
	return 0, nil, ctx.Err()
}

func (f *fakeConn) messages() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.written))
	copy(out, f.written)
	return out
}

func TestBroadcastReachesAllClients(t *testing.T) {
	h := NewHub()
	conns := []*fakeConn{{}, {}, {}}
	clients := make([]*Client, len(conns))
	for i, conn := range conns {
		clients[i] = h.Register(conn)
	}
	require.Equal(t, 3, h.Count())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	for _, c := range clients {
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			_ = c.WriteLoop(ctx)
		}(c)
	}

	h.Broadcast(Event{Type: "status", Payload: map[string]string{"master": "running"}})

	require.Eventually(t, func() bool {
		for _, conn := range conns {
			if len(conn.messages()) != 1 {
				return false
			}
		}
		return true
	}, time.Second, 10*time.Millisecond)

	cancel()
	wg.Wait()
}

func TestBroadcastSurvivesFailedClient(t *testing.T) {
	h := NewHub()
	good := &fakeConn{}
	bad := &fakeConn{writeErr: errors.New("gone")}

	goodClient := h.Register(good)
	badClient := h.Register(bad)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = goodClient.WriteLoop(ctx) }()
	go func() {
		if err := badClient.WriteLoop(ctx); err != nil {
			h.Remove(badClient)
		}
	}()

	h.Broadcast(Event{Type: "status"})

	require.Eventually(t, func() bool {
		return len(good.messages()) == 1 && h.Count() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestFullQueueEvictsLazily(t *testing.T) {
	h := NewHub()
	c := h.Register(&fakeConn{})

	// No write loop running: fill the queue, then one more broadcast evicts.
	for i := 0; i < 64; i++ {
		require.True(t, c.Enqueue(Event{Type: "fill"}))
	}
	h.Broadcast(Event{Type: "overflow"})

	require.Eventually(t, func() bool { return h.Count() == 0 }, time.Second, 10*time.Millisecond)
}

func TestPerClientOrderPreserved(t *testing.T) {
	h := NewHub()
	conn := &fakeConn{}
	c := h.Register(conn)

	for i := 0; i < 10; i++ {
		h.Unicast(c, Event{Type: "seq", Payload: i})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = c.WriteLoop(ctx) }()

	require.Eventually(t, func() bool { return len(conn.messages()) == 10 }, time.Second, 10*time.Millisecond)

	for i, raw := range conn.messages() {
		var ev struct {
			Payload int `json:"payload"`
		}
		require.NoError(t, json.Unmarshal(raw, &ev))
		require.Equal(t, i, ev.Payload)
	}
}

func TestUnicastAfterRemoveIsNoOp(t *testing.T) {
	h := NewHub()
	c := h.Register(&fakeConn{})
	h.Remove(c)

	require.NotPanics(t, func() {
		h.Unicast(c, Event{Type: "status"})
	})
	require.Zero(t, h.Count())
}

func TestUnicastRacesRemoveSafely(t *testing.T) {
	h := NewHub()
	for i := 0; i < 100; i++ {
		c := h.Register(&fakeConn{})

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			h.Remove(c)
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				h.Unicast(c, Event{Type: "status"})
			}
		}()
		wg.Wait()
	}
	require.Zero(t, h.Count())
}

func TestConcurrentRegistrationDuringBroadcast(t *testing.T) {
	h := NewHub()

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			c := h.Register(&fakeConn{})
			h.Remove(c)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			h.Broadcast(Event{Type: "status"})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			c := h.Register(&fakeConn{})
			h.Unicast(c, Event{Type: "status"})
			h.Remove(c)
		}
	}()
	wg.Wait()
	require.Zero(t, h.Count())
}

func TestRemoveClosesQueueAndWriteLoopExits(t *testing.T) {
	h := NewHub()
	c := h.Register(&fakeConn{})

	done := make(chan error, 1)
	go func() { done <- c.WriteLoop(context.Background()) }()

	h.Remove(c)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("write loop did not exit after Remove")
	}
}
