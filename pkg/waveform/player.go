package waveform

import (
	"sort"
	"sync"
	"time"
)

// CycleObserver is told about every cycle once its duration is known,
// whether or not its points were queued. It runs while the Player is locked
// and must not block or modify c.Points.
type CycleObserver func(c Cycle)

type channelStats struct {
	cycles         int
	dispatched     int
	shedPoints     int
	shedEvents     int
	rejectedCycles int
	staleDropped   int
}

type channel struct {
	id           string
	color        string
	queue        []QueuedPoint
	speed        float64
	lastDispatch time.Time
	pressure     *PressureMonitor
	open         *Cycle
	display      *DisplayBuffer
	stats        channelStats
}

// Diagnostics is a point-in-time view of one channel for observability.
type Diagnostics struct {
	Channel         string
	Color           string
	Speed           float64
	PendingPoints   int
	AveragePressure float64
	DisplayPoints   int
	Cycles          int
	Dispatched      int
	ShedPoints      int
	ShedEvents      int
	RejectedCycles  int
	StaleDropped    int
}

// Player is the channel registry. It owns every channel's queue, pressure
// history, open cycle and display buffer, plus the shared cycle history.
type Player struct {
	mu       sync.Mutex
	cfg      Config
	channels map[string]*channel
	history  *CycleHistory
	hidden   bool
	observer CycleObserver
	ignored  int
}

func NewPlayer(cfg Config) *Player {
	return &Player{
		cfg:      cfg,
		channels: make(map[string]*channel),
		history:  NewCycleHistory(cfg.HistorySize),
	}
}

func (p *Player) SetCycleObserver(fn CycleObserver) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observer = fn
}

// Activate creates the state for a channel. It reports false if the channel
// was already active.
func (p *Player) Activate(id string, now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.channels[id]; ok {
		return false
	}
	p.channels[id] = &channel{
		id:           id,
		speed:        p.cfg.InitialSpeed,
		lastDispatch: now,
		pressure:     NewPressureMonitor(p.cfg.PressureWindow),
		display:      NewDisplayBuffer(p.cfg.RetentionWindow, p.cfg.CompactThreshold),
	}
	return true
}

// Close discards everything held for a channel: queue, pressure history,
// open cycle, display buffer and its cycles in the history.
func (p *Player) Close(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.channels[id]; !ok {
		return false
	}
	delete(p.channels, id)
	p.history.RemoveChannel(id)
	return true
}

func (p *Player) IsActive(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.channels[id]
	return ok
}

// Channels returns the active channel ids in sorted order.
func (p *Player) Channels() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, len(p.channels))
	for id := range p.channels {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// OnBatch records a batch that arrived at now. The channel's previous open
// cycle is closed and its points are queued; the new batch becomes the open
// cycle. Empty batches and batches for inactive channels are ignored and
// reported as false.
func (p *Player) OnBatch(id string, points []Point, color string, now time.Time) bool {
	if len(points) == 0 {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	ch, ok := p.channels[id]
	if !ok {
		p.ignored++
		return false
	}

	if prev := ch.open; prev != nil {
		prev.close(now)
		p.enqueueCycle(ch, prev, now)
		if p.observer != nil {
			p.observer(*prev)
		}
	}

	c := newCycle(id, points, color, now)
	ch.open = c
	ch.color = color
	ch.stats.cycles++
	p.history.Add(c)
	return true
}

// SetVisible is the host's visibility hook. While hidden, Tick does nothing.
// On becoming visible each channel restarts its dispatch clock at now and
// drops queued points scheduled more than ResumeStaleAfter before now.
func (p *Player) SetVisible(visible bool, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	wasHidden := p.hidden
	p.hidden = !visible
	if !visible || !wasHidden {
		return
	}

	cutoff := now.Add(-p.cfg.ResumeStaleAfter)
	for _, ch := range p.channels {
		ch.lastDispatch = now
		kept := ch.queue[:0]
		for _, q := range ch.queue {
			if q.AnimationTime.After(cutoff) {
				kept = append(kept, q)
			}
		}
		ch.stats.staleDropped += len(ch.queue) - len(kept)
		ch.queue = kept
	}
}

func (p *Player) Visible() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.hidden
}

// DisplayBuffer returns a copy of the channel's dispatched points, ordered by
// X. It is safe to call every frame.
func (p *Player) DisplayBuffer(id string) []Point {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch, ok := p.channels[id]
	if !ok {
		return nil
	}
	return ch.display.Points()
}

func (p *Player) Diagnostics(id string) (Diagnostics, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch, ok := p.channels[id]
	if !ok {
		return Diagnostics{}, false
	}
	return Diagnostics{
		Channel:         ch.id,
		Color:           ch.color,
		Speed:           ch.speed,
		PendingPoints:   len(ch.queue),
		AveragePressure: ch.pressure.Average(),
		DisplayPoints:   ch.display.Len(),
		Cycles:          ch.stats.cycles,
		Dispatched:      ch.stats.dispatched,
		ShedPoints:      ch.stats.shedPoints,
		ShedEvents:      ch.stats.shedEvents,
		RejectedCycles:  ch.stats.rejectedCycles,
		StaleDropped:    ch.stats.staleDropped,
	}, true
}

// RecentCycles returns up to n cycles from the shared history, oldest first.
func (p *Player) RecentCycles(n int) []Cycle {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.history.Recent(n)
}

// Ignored counts batches dropped because their channel was not active.
func (p *Player) Ignored() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ignored
}
