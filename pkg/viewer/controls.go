package viewer

import (
	"log"
	"sync"
	"time"

	"github.com/sudorandom/physio-stream/pkg/config"
	"github.com/sudorandom/physio-stream/pkg/feed"
	"github.com/sudorandom/physio-stream/pkg/vitals"
	"github.com/sudorandom/physio-stream/pkg/waveform"
)

const (
	amplitudeStep = 10.0
	heartRateStep = 5
)

// PublishFunc sends a control message to the feed server.
type PublishFunc func(feed.Control) error

// Controls owns the user-facing settings: which channels are open and the
// generator parameters. Every change is mirrored into the Player and
// published to the feed.
type Controls struct {
	mu             sync.Mutex
	player         *waveform.Player
	publish        PublishFunc
	active         map[string]bool
	amplitude      float64
	heartRate      int
	autoregulation bool
}

func NewControls(player *waveform.Player, sig config.SignalsConfig, publish PublishFunc) *Controls {
	c := &Controls{
		player:         player,
		publish:        publish,
		active:         make(map[string]bool),
		amplitude:      sig.Amplitude,
		heartRate:      sig.HeartRate,
		autoregulation: sig.Autoregulation,
	}
	for _, id := range sig.Active {
		c.active[id] = true
	}
	return c
}

// Start activates the configured channels and publishes the initial control
// message.
func (c *Controls) Start(now time.Time) {
	c.mu.Lock()
	for id := range c.active {
		c.player.Activate(id, now)
	}
	c.mu.Unlock()
	c.Publish()
}

// Toggle opens or closes a channel.
func (c *Controls) Toggle(id string, now time.Time) {
	if _, ok := vitals.Lookup(id); !ok {
		return
	}
	c.mu.Lock()
	if c.active[id] {
		delete(c.active, id)
		c.player.Close(id)
	} else {
		c.active[id] = true
		c.player.Activate(id, now)
	}
	c.mu.Unlock()
	c.Publish()
}

func (c *Controls) AdjustAmplitude(delta float64) {
	c.mu.Lock()
	next := max(config.MinAmplitude, min(config.MaxAmplitude, c.amplitude+delta))
	changed := next != c.amplitude
	c.amplitude = next
	c.mu.Unlock()
	if changed {
		c.Publish()
	}
}

func (c *Controls) AdjustHeartRate(delta int) {
	c.mu.Lock()
	next := max(config.MinHeartRate, min(config.MaxHeartRate, c.heartRate+delta))
	changed := next != c.heartRate
	c.heartRate = next
	c.mu.Unlock()
	if changed {
		c.Publish()
	}
}

func (c *Controls) ToggleAutoregulation() {
	c.mu.Lock()
	c.autoregulation = !c.autoregulation
	c.mu.Unlock()
	c.Publish()
}

// SetAutoregulation applies the mode reported by the feed server. It only
// publishes when the mode actually changed.
func (c *Controls) SetAutoregulation(on bool) {
	c.mu.Lock()
	changed := c.autoregulation != on
	c.autoregulation = on
	c.mu.Unlock()
	if changed {
		c.Publish()
	}
}

// Control builds the message describing the current settings. Active
// signals are listed in catalog order.
func (c *Controls) Control() feed.Control {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctl := feed.Control{
		ActiveSignals:  []string{},
		SignalParams:   make(map[string]feed.Params),
		Autoregulation: c.autoregulation,
	}
	params := feed.Params{Amplitude: c.amplitude, Frequency: float64(c.heartRate) / 60}
	for _, id := range vitals.IDs() {
		if c.active[id] {
			ctl.ActiveSignals = append(ctl.ActiveSignals, id)
			ctl.SignalParams[id] = params
		}
	}
	return ctl
}

func (c *Controls) Publish() {
	if c.publish == nil {
		return
	}
	if err := c.publish(c.Control()); err != nil {
		log.Printf("Failed to publish control: %v", err)
	}
}

// Active returns the open channels in catalog order.
func (c *Controls) Active() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var ids []string
	for _, id := range vitals.IDs() {
		if c.active[id] {
			ids = append(ids, id)
		}
	}
	return ids
}

func (c *Controls) Amplitude() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.amplitude
}

func (c *Controls) HeartRate() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.heartRate
}

func (c *Controls) Autoregulation() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.autoregulation
}
