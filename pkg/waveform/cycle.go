package waveform

import (
	"time"

	"github.com/google/uuid"
)

// Point is one sample: X is signal time in seconds, Y the amplitude.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// QueuedPoint is a sample waiting for dispatch. It becomes eligible once the
// wall clock reaches AnimationTime.
type QueuedPoint struct {
	X, Y          float64
	Channel       string
	Color         string
	AnimationTime time.Time
}

// Cycle is one network batch for a channel. Duration is unknown (Closed is
// false) until the next batch for the same channel arrives.
type Cycle struct {
	ID         string
	Channel    string
	Points     []Point
	Color      string
	ReceivedAt time.Time
	Duration   time.Duration
	Closed     bool
}

func newCycle(channel string, points []Point, color string, now time.Time) *Cycle {
	return &Cycle{
		ID:         uuid.NewString(),
		Channel:    channel,
		Points:     append([]Point(nil), points...),
		Color:      color,
		ReceivedAt: now,
	}
}

// close fixes the cycle's duration from the arrival of its successor.
func (c *Cycle) close(now time.Time) {
	c.Duration = now.Sub(c.ReceivedAt)
	c.Closed = true
}

// CycleHistory keeps the most recent cycles across all channels for
// diagnostics. It is not safe for concurrent use; Player guards it.
type CycleHistory struct {
	capacity int
	cycles   []*Cycle
}

func NewCycleHistory(capacity int) *CycleHistory {
	if capacity < 1 {
		capacity = 1
	}
	return &CycleHistory{
		capacity: capacity,
		cycles:   make([]*Cycle, 0, capacity),
	}
}

func (h *CycleHistory) Add(c *Cycle) {
	if len(h.cycles) == h.capacity {
		copy(h.cycles, h.cycles[1:])
		h.cycles[len(h.cycles)-1] = c
		return
	}
	h.cycles = append(h.cycles, c)
}

// Recent returns up to n cycles, oldest first.
func (h *CycleHistory) Recent(n int) []Cycle {
	if n > len(h.cycles) || n < 0 {
		n = len(h.cycles)
	}
	out := make([]Cycle, 0, n)
	for _, c := range h.cycles[len(h.cycles)-n:] {
		out = append(out, *c)
	}
	return out
}

// RemoveChannel drops every cycle belonging to channel.
func (h *CycleHistory) RemoveChannel(channel string) {
	kept := h.cycles[:0]
	for _, c := range h.cycles {
		if c.Channel != channel {
			kept = append(kept, c)
		}
	}
	for i := len(kept); i < len(h.cycles); i++ {
		h.cycles[i] = nil
	}
	h.cycles = kept
}

func (h *CycleHistory) Len() int {
	return len(h.cycles)
}
