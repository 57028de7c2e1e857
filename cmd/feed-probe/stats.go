package main

import (
	"fmt"
	"io"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/sudorandom/physio-stream/pkg/feed"
)

type ChannelStats struct {
	Batches     int
	Points      int
	MinPoints   int
	MaxPoints   int
	LastArrival time.Time

	// Running mean and variance of inter-arrival gaps, in seconds.
	gaps     int
	gapMean  float64
	gapM2    float64
	gapMax   float64
	lastXEnd float64
}

func (c *ChannelStats) record(n int, lastX float64, now time.Time) {
	if c.Batches == 0 || n < c.MinPoints {
		c.MinPoints = n
	}
	c.MaxPoints = max(c.MaxPoints, n)
	if !c.LastArrival.IsZero() {
		gap := now.Sub(c.LastArrival).Seconds()
		c.gaps++
		delta := gap - c.gapMean
		c.gapMean += delta / float64(c.gaps)
		c.gapM2 += delta * (gap - c.gapMean)
		c.gapMax = math.Max(c.gapMax, gap)
	}
	c.Batches++
	c.Points += n
	c.LastArrival = now
	c.lastXEnd = lastX
}

// Summary is the derived cadence of one channel.
type Summary struct {
	Channel        string
	Batches        int
	MeanPoints     float64
	MinPoints      int
	MaxPoints      int
	MeanGap        time.Duration
	Jitter         time.Duration
	MaxGap         time.Duration
	PointsPerSec   float64
	SignalTimeHead float64
}

func (c *ChannelStats) summary(id string) Summary {
	s := Summary{
		Channel:        id,
		Batches:        c.Batches,
		MinPoints:      c.MinPoints,
		MaxPoints:      c.MaxPoints,
		MeanGap:        time.Duration(c.gapMean * float64(time.Second)),
		MaxGap:         time.Duration(c.gapMax * float64(time.Second)),
		SignalTimeHead: c.lastXEnd,
	}
	if c.Batches > 0 {
		s.MeanPoints = float64(c.Points) / float64(c.Batches)
	}
	if c.gaps > 1 {
		s.Jitter = time.Duration(math.Sqrt(c.gapM2/float64(c.gaps-1)) * float64(time.Second))
	}
	if c.gapMean > 0 {
		s.PointsPerSec = s.MeanPoints / c.gapMean
	}
	return s
}

type Stats struct {
	mu             sync.Mutex
	TotalMessages  int
	Malformed      int
	Autoregulation *bool
	Channels       map[string]*ChannelStats
	StartTime      time.Time
}

func NewStats(start time.Time) *Stats {
	return &Stats{
		Channels:  make(map[string]*ChannelStats),
		StartTime: start,
	}
}

func (s *Stats) Record(msg []byte, now time.Time) error {
	in, err := feed.Decode(msg)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.Malformed++
		return err
	}
	s.TotalMessages++
	if in.Autoregulation != nil {
		on := *in.Autoregulation
		s.Autoregulation = &on
	}
	for id, sig := range in.Signals {
		if len(sig.NewData) == 0 {
			continue
		}
		c, ok := s.Channels[id]
		if !ok {
			c = &ChannelStats{}
			s.Channels[id] = c
		}
		c.record(len(sig.NewData), sig.NewData[len(sig.NewData)-1].X, now)
	}
	return nil
}

func (s *Stats) Summaries() []Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Summary, 0, len(s.Channels))
	for id, c := range s.Channels {
		out = append(out, c.summary(id))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Channel < out[j].Channel })
	return out
}

func (s *Stats) Report(w io.Writer, now time.Time) {
	elapsed := now.Sub(s.StartTime).Seconds()
	if elapsed <= 0 {
		elapsed = 1
	}
	summaries := s.Summaries()

	s.mu.Lock()
	total, malformed, autoreg := s.TotalMessages, s.Malformed, s.Autoregulation
	s.mu.Unlock()

	fmt.Fprintf(w, "\033[H\033[2J") // Clear screen
	fmt.Fprintf(w, "Feed Probe Stats (Running for %.1fs)\n", elapsed)
	fmt.Fprintf(w, "--------------------------------------------------\n")
	fmt.Fprintf(w, "Total Msgs:    %d (%.2f/s)\n", total, float64(total)/elapsed)
	fmt.Fprintf(w, "Malformed:     %d\n", malformed)
	if autoreg != nil {
		fmt.Fprintf(w, "Autoregulation: %v\n", *autoreg)
	}
	fmt.Fprintf(w, "--------------------------------------------------\n")
	fmt.Fprintf(w, "%-16s %8s %10s %12s %10s %10s %10s\n", "CHANNEL", "BATCHES", "PTS/BATCH", "PTS/S", "GAP", "JITTER", "MAX GAP")
	for _, c := range summaries {
		fmt.Fprintf(w, "%-16s %8d %10.1f %12.1f %10v %10v %10v\n",
			c.Channel, c.Batches, c.MeanPoints, c.PointsPerSec,
			c.MeanGap.Round(time.Millisecond), c.Jitter.Round(time.Millisecond), c.MaxGap.Round(time.Millisecond))
	}
	fmt.Fprintf(w, "--------------------------------------------------\n")
}
