package vitals

import (
	"fmt"
	"math"
	"sort"

	"github.com/sudorandom/physio-stream/pkg/waveform"
)

const (
	peakChunk      = 20 // samples, about 0.2s at 100 Hz
	minPeakSamples = 50

	minBeatInterval = 0.2
	maxBeatInterval = 3.0
	minBPM          = 20
	maxBPM          = 300
)

// Readout is the headline value shown next to a waveform.
type Readout struct {
	Value        float64
	Text         string
	Pathological bool
}

// Visible returns the trailing part of points whose X lies within window of
// the newest point. points must be sorted by X; the result aliases it.
func Visible(points []waveform.Point, window float64) []waveform.Point {
	if len(points) == 0 {
		return nil
	}
	cutoff := points[len(points)-1].X - window
	start := sort.Search(len(points), func(i int) bool { return points[i].X >= cutoff })
	return points[start:]
}

// DetectPeaks returns the largest positive sample of every 20-sample chunk.
// Fewer than 50 samples yields no peaks.
func DetectPeaks(points []waveform.Point) []waveform.Point {
	if len(points) < minPeakSamples {
		return nil
	}
	var peaks []waveform.Point
	for start := 0; start < len(points); start += peakChunk {
		end := min(start+peakChunk, len(points))
		best := -1
		maxY := 0.0
		for i := start; i < end; i++ {
			if points[i].Y > maxY {
				maxY = points[i].Y
				best = i
			}
		}
		if best >= 0 {
			peaks = append(peaks, points[best])
		}
	}
	return peaks
}

// BPM converts peak spacing into beats per minute. Intervals outside
// 0.2s..3.0s are ignored; 0 means no usable interval.
func BPM(peaks []waveform.Point) int {
	if len(peaks) < 2 {
		return 0
	}
	sum, n := 0.0, 0
	for i := 1; i < len(peaks); i++ {
		interval := peaks[i].X - peaks[i-1].X
		if interval >= minBeatInterval && interval <= maxBeatInterval {
			sum += interval
			n++
		}
	}
	if n == 0 {
		return 0
	}
	bpm := 60 / (sum / float64(n))
	return int(math.Round(math.Max(minBPM, math.Min(maxBPM, bpm))))
}

func mean(points []waveform.Point) float64 {
	sum := 0.0
	for _, p := range points {
		sum += p.Y
	}
	return sum / float64(len(points))
}

// Evaluate computes the readout for signal over the visible points.
func Evaluate(signal string, visible []waveform.Point) Readout {
	if len(visible) == 0 {
		return Readout{}
	}

	switch signal {
	case "blood_pressure":
		v := mean(visible)
		return Readout{Value: v, Text: fmt.Sprintf("%.1f mmHg", v), Pathological: v > 120}
	case "brain":
		v := mean(visible)
		return Readout{Value: v, Text: fmt.Sprintf("%.1f mmHg", v), Pathological: v > 20}
	case "heart":
		bpm := BPM(DetectPeaks(visible))
		r := Readout{Value: float64(bpm), Text: fmt.Sprintf("%d BPM", bpm)}
		if len(visible) >= minPeakSamples {
			r.Pathological = bpm < 50 || bpm > 120
		}
		return r
	case "temperature":
		v := mean(visible)
		return Readout{Value: v, Text: fmt.Sprintf("%.1f°C", v), Pathological: v > 39.5 || v < 34.5}
	default:
		v := visible[len(visible)-1].Y
		return Readout{Value: v, Text: fmt.Sprintf("%.1f", v)}
	}
}
