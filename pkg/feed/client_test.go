package feed

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sudorandom/physio-stream/pkg/waveform"
)

type batch struct {
	channel string
	points  []waveform.Point
	color   string
}

type recordingHandler struct {
	batches chan batch
	autoreg chan bool
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{
		batches: make(chan batch, 16),
		autoreg: make(chan bool, 16),
	}
}

func (h *recordingHandler) OnBatch(channel string, points []waveform.Point, color string, _ time.Time) {
	h.batches <- batch{channel: channel, points: points, color: color}
}

func (h *recordingHandler) OnAutoregulation(on bool) {
	h.autoreg <- on
}

func wsURL(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func drainUntilClosed(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func TestClientHandleSkipsEmptyAndMalformed(t *testing.T) {
	h := newRecordingHandler()
	c := NewClient("ws://unused", h)
	now := time.Now()

	c.handle([]byte(`{"signals": {"lungs": {"new_data": [], "color": "#0f0"}, "heart": {"new_data": [{"x":1,"y":2}], "color": "#f00"}}}`), now)
	c.handle([]byte(`{garbage`), now)

	stats := c.Stats()
	if stats.Messages != 1 || stats.Batches != 1 || stats.Malformed != 1 {
		t.Errorf("Unexpected stats %+v", stats)
	}
	select {
	case b := <-h.batches:
		if b.channel != "heart" || b.color != "#f00" || len(b.points) != 1 {
			t.Errorf("Unexpected batch %+v", b)
		}
	default:
		t.Fatal("Expected a heart batch")
	}
	if len(h.batches) != 0 {
		t.Errorf("Expected exactly one batch, got %d more", len(h.batches))
	}
}

func TestClientRejectsBadScheme(t *testing.T) {
	c := NewClient("http://localhost:1", nil)
	if err := c.Run(context.Background()); err == nil {
		t.Error("Expected an error for a non-websocket url")
	}
}

func TestClientRoundTrip(t *testing.T) {
	controls := make(chan Control, 4)
	clientIDs := make(chan string, 4)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIDs <- r.URL.Query().Get("client")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		ctl, err := DecodeControl(data)
		if err != nil {
			return
		}
		controls <- ctl

		conn.WriteMessage(websocket.TextMessage, []byte(`{"signals": {"heart": {"new_data": [{"x":0,"y":1},{"x":0.01,"y":2}], "color": "#ff0000"}}}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`oops`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"signals": {}, "autoregulation": true}`))
		drainUntilClosed(conn)
	}))
	defer srv.Close()

	h := newRecordingHandler()
	c := NewClient(wsURL(srv), h)
	c.SetControl(Control{ActiveSignals: []string{"heart"}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	select {
	case ctl := <-controls:
		if len(ctl.ActiveSignals) != 1 || ctl.ActiveSignals[0] != "heart" {
			t.Errorf("Expected control for heart, got %+v", ctl)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for control message")
	}
	if id := <-clientIDs; id != c.ID {
		t.Errorf("Expected client id %s in query, got %q", c.ID, id)
	}

	select {
	case b := <-h.batches:
		if b.channel != "heart" || len(b.points) != 2 || b.points[1].Y != 2 {
			t.Errorf("Unexpected batch %+v", b)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for batch")
	}
	select {
	case on := <-h.autoreg:
		if !on {
			t.Error("Expected autoregulation on")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for autoregulation")
	}

	if !c.Connected() {
		t.Error("Expected client to report connected")
	}
	if err := c.SetControl(Control{ActiveSignals: []string{"heart", "lungs"}}); err != nil {
		t.Errorf("SetControl on open connection failed: %v", err)
	}

	stats := c.Stats()
	if stats.Malformed != 1 || stats.Batches != 1 || stats.Messages != 2 {
		t.Errorf("Unexpected stats %+v", stats)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if c.Connected() {
		t.Error("Expected client to report disconnected after shutdown")
	}
}

func TestClientReconnectsAndResendsControl(t *testing.T) {
	var sessions atomic.Int32
	controls := make(chan Control, 8)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if ctl, err := DecodeControl(data); err == nil {
			controls <- ctl
		}
		if sessions.Add(1) == 1 {
			// Drop the first session right away.
			return
		}
		conn.WriteMessage(websocket.TextMessage, []byte(`{"signals": {"brain": {"new_data": [{"x":0,"y":7}], "color": "#00f"}}}`))
		drainUntilClosed(conn)
	}))
	defer srv.Close()

	h := newRecordingHandler()
	c := NewClient(wsURL(srv), h)
	c.InitialBackoff = 10 * time.Millisecond
	c.MaxBackoff = 50 * time.Millisecond
	c.SetControl(Control{ActiveSignals: []string{"brain"}, Autoregulation: true})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	select {
	case b := <-h.batches:
		if b.channel != "brain" {
			t.Errorf("Expected brain batch, got %s", b.channel)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for batch after reconnect")
	}

	if len(controls) != 2 {
		t.Errorf("Expected control sent on both connections, got %d", len(controls))
	}
	for len(controls) > 0 {
		if ctl := <-controls; !ctl.Autoregulation || ctl.ActiveSignals[0] != "brain" {
			t.Errorf("Unexpected control %+v", ctl)
		}
	}
	if got := c.Stats().Reconnects; got < 1 {
		t.Errorf("Expected at least 1 reconnect, got %d", got)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestSetControlWriteTimeout(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		drainUntilClosed(conn)
	}))
	defer srv.Close()

	c := NewClient(wsURL(srv), newRecordingHandler())
	c.WriteTimeout = time.Nanosecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	deadline := time.Now().Add(5 * time.Second)
	for !c.Connected() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !c.Connected() {
		t.Fatal("Timed out waiting for connection")
	}

	err := c.SetControl(Control{ActiveSignals: []string{"heart"}})
	var ne net.Error
	if !errors.As(err, &ne) || !ne.Timeout() {
		t.Errorf("Expected a write timeout, got %v", err)
	}
}
