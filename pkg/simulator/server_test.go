package simulator

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sudorandom/physio-stream/pkg/feed"
	"github.com/sudorandom/physio-stream/pkg/waveform"
)

func TestServerFollowsControl(t *testing.T) {
	srv := httptest.NewServer(NewServer(20*time.Millisecond, 5*time.Millisecond))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	ctl, _ := feed.EncodeControl(feed.Control{ActiveSignals: []string{"lungs"}, Autoregulation: false})
	if err := conn.WriteMessage(websocket.TextMessage, ctl); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("Never saw a lungs-only batch: %v", err)
		}
		in, err := feed.Decode(data)
		if err != nil {
			t.Fatalf("Server sent malformed message: %v", err)
		}
		if len(in.Signals) != 1 {
			continue
		}
		if _, ok := in.Signals["lungs"]; !ok {
			continue
		}
		if in.Autoregulation == nil || *in.Autoregulation {
			t.Error("Expected autoregulation=false to be echoed")
		}
		break
	}
}

func TestServerFeedsPlayer(t *testing.T) {
	sim := NewServer(20*time.Millisecond, 0)
	srv := httptest.NewServer(sim)
	defer srv.Close()

	player := waveform.NewPlayer(waveform.DefaultConfig())
	player.Activate("heart", time.Now())

	client := feed.NewClient("ws"+strings.TrimPrefix(srv.URL, "http"), feed.PlayerHandler{Player: player})
	client.SetControl(feed.Control{ActiveSignals: []string{"heart"}, Autoregulation: true})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- client.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for {
		d, _ := player.Diagnostics("heart")
		if d.Cycles >= 3 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Expected at least 3 cycles, got %d", d.Cycles)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if sim.Sessions() != 1 {
		t.Errorf("Expected 1 session, got %d", sim.Sessions())
	}
	if sim.Sent() < 3 {
		t.Errorf("Expected at least 3 batches sent, got %d", sim.Sent())
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Client did not stop")
	}
}
