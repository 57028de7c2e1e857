package simulator

import (
	"log"
	"math/rand/v2"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/sudorandom/physio-stream/pkg/feed"
)

const minSendDelay = 10 * time.Millisecond

// Server streams simulated signals to websocket clients. Each connection gets
// its own Source, driven by the control messages the client sends.
type Server struct {
	// Interval between batches. Jitter spreads each delay uniformly over
	// Interval±Jitter to mimic bursty network delivery.
	Interval time.Duration
	Jitter   time.Duration

	Upgrader websocket.Upgrader

	sessions atomic.Int64
	sent     atomic.Uint64
}

func NewServer(interval, jitter time.Duration) *Server {
	return &Server{
		Interval: interval,
		Jitter:   jitter,
		Upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Sessions is the number of connected clients.
func (s *Server) Sessions() int64 {
	return s.sessions.Load()
}

// Sent is the number of batches written across all sessions.
func (s *Server) Sent() uint64 {
	return s.sent.Load()
}

func (s *Server) nextDelay() time.Duration {
	d := s.Interval
	if s.Jitter > 0 {
		d += time.Duration(rand.Int64N(int64(2*s.Jitter)+1)) - s.Jitter
	}
	return max(d, minSendDelay)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Upgrade error: %v", err)
		return
	}
	defer conn.Close()

	id := uuid.NewString()
	client := r.URL.Query().Get("client")
	s.sessions.Add(1)
	defer s.sessions.Add(-1)
	log.Printf("Session %s connected (client %q)", id, client)

	src := NewSource()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			ctl, err := feed.DecodeControl(data)
			if err != nil {
				log.Printf("Session %s: ignoring control message: %v", id, err)
				continue
			}
			src.Apply(ctl)
		}
	}()

	last := time.Now()
	timer := time.NewTimer(s.nextDelay())
	defer timer.Stop()
	for {
		select {
		case <-done:
			log.Printf("Session %s closed", id)
			return
		case <-r.Context().Done():
			return
		case now := <-timer.C:
			msg := src.Advance(now.Sub(last))
			last = now
			data, err := feed.EncodeInbound(msg)
			if err != nil {
				log.Printf("Session %s: encode error: %v", id, err)
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("Session %s: write error: %v. Dropping session", id, err)
				return
			}
			s.sent.Add(1)
			timer.Reset(s.nextDelay())
		}
	}
}
