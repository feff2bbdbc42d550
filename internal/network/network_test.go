package network

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Faultbox/midgard-world/internal/network/packets"
)

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()
	hub := NewHub(time.Second)
	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestInboxFIFO(t *testing.T) {
	inbox := NewInbox()
	inbox.Push(&packets.EntityDespawn{NetID: 1}, &packets.EntityDespawn{NetID: 2})
	inbox.Push(&packets.EntityDespawn{NetID: 3})

	if inbox.Len() != 3 {
		t.Fatalf("expected 3 queued, got %d", inbox.Len())
	}

	msgs := inbox.Drain()
	for i, m := range msgs {
		if got := m.(*packets.EntityDespawn).NetID; got != uint32(i+1) {
			t.Errorf("message %d: expected net id %d, got %d", i, i+1, got)
		}
	}
	if inbox.Len() != 0 || len(inbox.Drain()) != 0 {
		t.Error("inbox should be empty after drain")
	}
}

func TestInboxConcurrentPushKeepsPerProducerOrder(t *testing.T) {
	inbox := NewInbox()
	const producers, perProducer = 4, 200

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		p := p
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				inbox.Push(&packets.EntityState{NetID: uint32(p), Tick: uint32(i)})
			}
		}()
	}
	wg.Wait()

	last := make(map[uint32]int)
	msgs := inbox.Drain()
	if len(msgs) != producers*perProducer {
		t.Fatalf("expected %d messages, got %d", producers*perProducer, len(msgs))
	}
	for _, m := range msgs {
		s := m.(*packets.EntityState)
		prev, seen := last[s.NetID]
		if seen && int(s.Tick) != prev+1 {
			t.Fatalf("producer %d: tick %d after %d", s.NetID, s.Tick, prev)
		}
		last[s.NetID] = int(s.Tick)
	}
}

func TestHubBroadcastReachesClient(t *testing.T) {
	hub, url := startHub(t)

	client := NewClient()
	inbox := NewInbox()
	client.Forward(inbox)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := client.Connect(ctx, url); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- client.Run(ctx) }()

	waitFor(t, "subscriber", func() bool { return hub.Len() == 1 })
	joined := hub.Joined()
	if len(joined) != 1 {
		t.Fatalf("expected 1 joined subscriber, got %d", len(joined))
	}

	spawn := &packets.EntitySpawn{NetID: 5}
	spawn.SetName("platform")
	if err := hub.SendTo(joined[0], spawn); err != nil {
		t.Fatalf("SendTo: %v", err)
	}

	state := &packets.EntityState{NetID: 5, Tick: 10}
	state.Transform.Position = [3]float32{1, 2, 3}
	if sent := hub.Broadcast(state); sent != 1 {
		t.Fatalf("expected 1 delivery, got %d", sent)
	}

	waitFor(t, "messages", func() bool { return inbox.Len() == 2 })
	msgs := inbox.Drain()
	if s, ok := msgs[0].(*packets.EntitySpawn); !ok || s.NameString() != "platform" {
		t.Errorf("expected spawn for platform first, got %#v", msgs[0])
	}
	if s, ok := msgs[1].(*packets.EntityState); !ok || *s != *state {
		t.Errorf("expected state %+v, got %#v", state, msgs[1])
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v after cancel", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestHubDropsClosedSubscriber(t *testing.T) {
	hub, url := startHub(t)

	client := NewClient()
	if err := client.Connect(context.Background(), url); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitFor(t, "subscriber", func() bool { return hub.Len() == 1 })

	client.Disconnect()
	waitFor(t, "drop", func() bool { return hub.Len() == 0 })

	if sent := hub.Broadcast(&packets.EntityDespawn{NetID: 1}); sent != 0 {
		t.Errorf("expected no deliveries, got %d", sent)
	}
}

func TestClientSendRequiresConnection(t *testing.T) {
	if err := NewClient().Send(&packets.EntityDespawn{}); err != ErrNotConnected {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
	if err := NewClient().Run(context.Background()); err != ErrNotConnected {
		t.Errorf("expected ErrNotConnected from Run, got %v", err)
	}
}
