package waveform

import "sort"

// DisplayBuffer is the per-channel sequence of dispatched points handed to the
// renderer. X never decreases. Once the buffer holds more than compactAt
// points it is trimmed from the front so that newest-oldest <= retention.
type DisplayBuffer struct {
	points    []Point
	retention float64
	compactAt int
}

func NewDisplayBuffer(retention float64, compactAt int) *DisplayBuffer {
	return &DisplayBuffer{retention: retention, compactAt: compactAt}
}

// Append adds pts, which are sorted in place, and trims the buffer if it has
// grown past its compaction threshold.
func (b *DisplayBuffer) Append(pts []Point) {
	if len(pts) == 0 {
		return
	}
	sort.SliceStable(pts, func(i, j int) bool { return pts[i].X < pts[j].X })

	switch {
	case len(b.points) == 0:
		b.points = append(b.points, pts...)
	case pts[0].X >= b.points[len(b.points)-1].X:
		b.points = append(b.points, pts...)
	default:
		b.points = mergePoints(b.points, pts)
	}

	if len(b.points) > b.compactAt {
		b.trim()
	}
}

// trim drops points older than newest-retention. X is monotonic, so one
// forward scan finds the cut.
func (b *DisplayBuffer) trim() {
	cutoff := b.points[len(b.points)-1].X - b.retention
	idx := 0
	for idx < len(b.points) && b.points[idx].X < cutoff {
		idx++
	}
	if idx == 0 {
		return
	}
	b.points = append(make([]Point, 0, len(b.points)-idx+b.compactAt/4), b.points[idx:]...)
}

// Points returns a copy of the buffer.
func (b *DisplayBuffer) Points() []Point {
	return append([]Point(nil), b.points...)
}

func (b *DisplayBuffer) Len() int {
	return len(b.points)
}

// Span is newest X minus oldest X.
func (b *DisplayBuffer) Span() float64 {
	if len(b.points) < 2 {
		return 0
	}
	return b.points[len(b.points)-1].X - b.points[0].X
}

// mergePoints merges two runs sorted by X. Ties keep a's point first.
func mergePoints(a, b []Point) []Point {
	out := make([]Point, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if b[j].X < a[i].X {
			out = append(out, b[j])
			j++
		} else {
			out = append(out, a[i])
			i++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}
