package waveform

import "time"

type pressureSample struct {
	at   time.Time
	size int
}

// PressureMonitor keeps a rolling, time-windowed average of queue occupancy.
// Samples live in a slice used as a deque: new samples go on the back, expired
// ones are evicted from the front, and a running sum keeps the mean O(1).
type PressureMonitor struct {
	window  time.Duration
	samples []pressureSample
	head    int
	sum     int64
}

func NewPressureMonitor(window time.Duration) *PressureMonitor {
	return &PressureMonitor{window: window}
}

// Sample records the current queue size and returns the mean of all samples
// taken within the window ending at now.
func (m *PressureMonitor) Sample(size int, now time.Time) float64 {
	m.samples = append(m.samples, pressureSample{at: now, size: size})
	m.sum += int64(size)

	cutoff := now.Add(-m.window)
	for m.head < len(m.samples) && m.samples[m.head].at.Before(cutoff) {
		m.sum -= int64(m.samples[m.head].size)
		m.head++
	}

	// Reclaim the evicted prefix once it dominates the backing array.
	if m.head > 0 && m.head*2 >= len(m.samples) {
		n := copy(m.samples, m.samples[m.head:])
		m.samples = m.samples[:n]
		m.head = 0
	}
	return m.Average()
}

func (m *PressureMonitor) Average() float64 {
	n := m.Len()
	if n == 0 {
		return 0
	}
	return float64(m.sum) / float64(n)
}

func (m *PressureMonitor) Len() int {
	return len(m.samples) - m.head
}
