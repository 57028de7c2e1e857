package feed

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/sudorandom/physio-stream/pkg/waveform"
)

// Handler receives decoded feed traffic. Calls come from the client's read
// goroutine, one message at a time.
type Handler interface {
	OnBatch(channel string, points []waveform.Point, color string, now time.Time)
	OnAutoregulation(on bool)
}

// PlayerHandler feeds batches straight into a Player.
type PlayerHandler struct {
	Player         *waveform.Player
	Autoregulation func(on bool)
}

func (h PlayerHandler) OnBatch(channel string, points []waveform.Point, color string, now time.Time) {
	h.Player.OnBatch(channel, points, color, now)
}

func (h PlayerHandler) OnAutoregulation(on bool) {
	if h.Autoregulation != nil {
		h.Autoregulation(on)
	}
}

type Stats struct {
	Messages   uint64
	Batches    uint64
	Malformed  uint64
	Reconnects uint64
}

const malformedLogInterval = 10 * time.Second

// Client keeps a websocket connection to a feed server open, reconnecting
// with exponential backoff, and hands every batch to its Handler.
type Client struct {
	URL     string
	ID      string
	Handler Handler
	Dialer  *websocket.Dialer

	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// WriteTimeout bounds every control write. SetControl runs on the
	// render loop, so a stalled peer must not block it.
	WriteTimeout time.Duration

	// Now stamps arriving messages. Defaults to time.Now.
	Now func() time.Time

	mu          sync.Mutex
	conn        *websocket.Conn
	control     Control
	haveControl bool
	lastWarn    time.Time

	messages   atomic.Uint64
	batches    atomic.Uint64
	malformed  atomic.Uint64
	reconnects atomic.Uint64
}

func NewClient(feedURL string, h Handler) *Client {
	return &Client{
		URL:            feedURL,
		ID:             uuid.NewString(),
		Handler:        h,
		Dialer:         websocket.DefaultDialer,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     60 * time.Second,
		WriteTimeout:   5 * time.Second,
		Now:            time.Now,
	}
}

// Run connects and reads until ctx is cancelled. Connection failures are
// retried forever; the only error returned is a bad URL.
func (c *Client) Run(ctx context.Context) error {
	target, err := c.target()
	if err != nil {
		return err
	}

	ebo := backoff.NewExponentialBackOff()
	ebo.InitialInterval = c.InitialBackoff
	ebo.MaxInterval = c.MaxBackoff
	ebo.MaxElapsedTime = 0

	attempt := 0
	op := func() error {
		if attempt > 0 {
			c.reconnects.Add(1)
		}
		attempt++

		log.Printf("Connecting to feed: %s", c.URL)
		conn, _, err := c.Dialer.DialContext(ctx, target, nil)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return fmt.Errorf("dial: %w", err)
		}
		ebo.Reset()

		err = c.serve(ctx, conn)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		log.Printf("Feed error: %v. Retrying in %v...", err, wait.Round(time.Millisecond))
	}

	err = backoff.RetryNotify(op, backoff.WithContext(ebo, ctx), notify)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (c *Client) target() (string, error) {
	u, err := url.Parse(c.URL)
	if err != nil {
		return "", fmt.Errorf("parse feed url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("parse feed url: unsupported scheme %q", u.Scheme)
	}
	if c.ID != "" {
		q := u.Query()
		if q.Get("client") == "" {
			q.Set("client", c.ID)
			u.RawQuery = q.Encode()
		}
	}
	return u.String(), nil
}

func (c *Client) serve(ctx context.Context, conn *websocket.Conn) error {
	c.mu.Lock()
	c.conn = conn
	var err error
	if c.haveControl {
		err = c.writeControlLocked(c.control)
	}
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		conn.Close()
	}()
	if err != nil {
		return err
	}
	log.Printf("Connected to feed: %s", c.URL)

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		c.handle(message, c.Now())
	}
}

func (c *Client) handle(message []byte, now time.Time) {
	in, err := Decode(message)
	if err != nil {
		c.malformed.Add(1)
		c.mu.Lock()
		warn := now.Sub(c.lastWarn) >= malformedLogInterval
		if warn {
			c.lastWarn = now
		}
		c.mu.Unlock()
		if warn {
			log.Printf("Dropping malformed feed message (%d so far): %v", c.malformed.Load(), err)
		}
		return
	}
	c.messages.Add(1)
	if c.Handler == nil {
		return
	}

	if in.Autoregulation != nil {
		c.Handler.OnAutoregulation(*in.Autoregulation)
	}
	for _, id := range in.Channels() {
		sig := in.Signals[id]
		if len(sig.NewData) == 0 {
			continue
		}
		c.batches.Add(1)
		c.Handler.OnBatch(id, sig.NewData, sig.Color, now)
	}
}

// SetControl stores ctl for every future connection and sends it now if a
// connection is open.
func (c *Client) SetControl(ctl Control) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.control = ctl
	c.haveControl = true
	if c.conn == nil {
		return nil
	}
	return c.writeControlLocked(ctl)
}

func (c *Client) writeControlLocked(ctl Control) error {
	data, err := EncodeControl(ctl)
	if err != nil {
		return err
	}
	if c.WriteTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.WriteTimeout))
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("send control: %w", err)
	}
	return nil
}

func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

func (c *Client) Stats() Stats {
	return Stats{
		Messages:   c.messages.Load(),
		Batches:    c.batches.Load(),
		Malformed:  c.malformed.Load(),
		Reconnects: c.reconnects.Load(),
	}
}
