package waveform

import "time"

// Tick is the playback dispatcher. The host calls it once per display
// refresh. For every channel it moves a bounded number of due points from
// the queue into the display buffer and returns the total moved.
func (p *Player) Tick(now time.Time) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.hidden {
		return 0
	}
	total := 0
	for _, ch := range p.channels {
		total += p.drain(ch, now)
	}
	return total
}

func (p *Player) drain(ch *channel, now time.Time) int {
	if len(ch.queue) == 0 || ch.speed <= 0 {
		return 0
	}
	interval := time.Duration(float64(time.Second) / ch.speed)
	elapsed := now.Sub(ch.lastDispatch)
	if interval <= 0 || elapsed < interval {
		return 0
	}

	ready := 0
	for i := range ch.queue {
		if !ch.queue[i].AnimationTime.After(now) {
			ready++
		}
	}
	n := min(int(elapsed/interval), ready, p.cfg.MaxPointsPerTick)
	if n <= 0 {
		return 0
	}

	out := make([]Point, 0, n)
	kept := ch.queue[:0]
	for _, q := range ch.queue {
		if len(out) < n && !q.AnimationTime.After(now) {
			out = append(out, Point{X: q.X, Y: q.Y})
			continue
		}
		kept = append(kept, q)
	}
	ch.queue = kept

	ch.display.Append(out)
	ch.lastDispatch = now
	ch.stats.dispatched += n
	return n
}
