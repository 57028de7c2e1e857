package waveform

import (
	"log"
	"time"
)

// enqueueCycle schedules the points of a closed cycle evenly across its
// measured duration, starting at now, and updates the channel's speed.
func (p *Player) enqueueCycle(ch *channel, c *Cycle, now time.Time) {
	n := len(c.Points)
	if c.Duration <= 0 {
		ch.stats.rejectedCycles++
		log.Printf("Rejected cycle for %s: non-positive duration %v (%d points)", ch.id, c.Duration, n)
		return
	}

	baseline := float64(n) / c.Duration.Seconds()
	avg := ch.pressure.Sample(len(ch.queue), now)
	speed := ComputeSpeed(baseline, avg, p.cfg.speedLimits())

	step := float64(c.Duration) / float64(n)
	for i, pt := range c.Points {
		ch.queue = append(ch.queue, QueuedPoint{
			X:             pt.X,
			Y:             pt.Y,
			Channel:       c.Channel,
			Color:         c.Color,
			AnimationTime: now.Add(time.Duration(float64(i) * step)),
		})
	}

	// Shed under sustained overload, keeping the most recent points.
	if len(ch.queue) > p.cfg.MaxQueuedPoints {
		drop := len(ch.queue) - p.cfg.ShedToPoints
		kept := copy(ch.queue, ch.queue[drop:])
		ch.queue = ch.queue[:kept]
		ch.stats.shedPoints += drop
		ch.stats.shedEvents++
		log.Printf("Shed %d queued points for %s (queue size: %d)", drop, ch.id, len(ch.queue))
	}

	ch.speed = speed
}
