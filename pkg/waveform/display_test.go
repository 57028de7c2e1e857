package waveform

import (
	"math/rand"
	"testing"
)

func isSortedByX(pts []Point) bool {
	for i := 1; i < len(pts); i++ {
		if pts[i].X < pts[i-1].X {
			return false
		}
	}
	return true
}

func TestDisplayBufferFastAppend(t *testing.T) {
	b := NewDisplayBuffer(10, 1200)
	b.Append([]Point{{X: 0.0, Y: 1}, {X: 0.1, Y: 2}})
	b.Append([]Point{{X: 0.1, Y: 3}, {X: 0.2, Y: 4}})

	got := b.Points()
	want := []Point{{0.0, 1}, {0.1, 2}, {0.1, 3}, {0.2, 4}}
	if len(got) != len(want) {
		t.Fatalf("Expected %d points, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Point %d: Expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestDisplayBufferMergeOutOfOrder(t *testing.T) {
	b := NewDisplayBuffer(10, 1200)
	b.Append([]Point{{X: 1}, {X: 3}, {X: 5}})
	b.Append([]Point{{X: 4}, {X: 2}, {X: 6}})

	got := b.Points()
	if !isSortedByX(got) {
		t.Errorf("Expected sorted buffer, got %v", got)
	}
	if len(got) != 6 {
		t.Errorf("Expected 6 points, got %d", len(got))
	}
	for i, p := range got {
		if p.X != float64(i+1) {
			t.Errorf("Point %d: Expected X=%d, got %v", i, i+1, p.X)
		}
	}
}

func TestDisplayBufferMonotonicUnderRandomAppends(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	b := NewDisplayBuffer(5, 200)
	for round := 0; round < 500; round++ {
		n := 1 + r.Intn(10)
		pts := make([]Point, n)
		for i := range pts {
			// Mostly increasing time with occasional stragglers.
			pts[i] = Point{X: float64(round)*0.05 + r.Float64()*0.2 - 0.05, Y: r.Float64()}
		}
		b.Append(pts)
		if !isSortedByX(b.points) {
			t.Fatalf("Round %d: buffer lost X ordering", round)
		}
	}
}

func TestDisplayBufferRetention(t *testing.T) {
	b := NewDisplayBuffer(1.0, 20)

	// Below the threshold nothing is trimmed, even beyond the window.
	var pts []Point
	for i := 0; i < 20; i++ {
		pts = append(pts, Point{X: float64(i) * 0.1})
	}
	b.Append(pts)
	if b.Len() != 20 {
		t.Fatalf("Expected 20 points before compaction, got %d", b.Len())
	}

	trims := 0
	for i := 20; i < 200; i++ {
		before := b.Len()
		b.Append([]Point{{X: float64(i) * 0.1}})
		if b.Len() > 20 {
			t.Fatalf("Step %d: Expected length <= threshold after append, got %d", i, b.Len())
		}
		if b.Len() > before {
			continue
		}
		trims++
		if span := b.Span(); span > 1.0+1e-9 {
			t.Fatalf("Step %d: Expected span <= 1.0 after compaction, got %v", i, span)
		}
	}
	if trims == 0 {
		t.Errorf("Expected the buffer to compact at least once")
	}
}

func TestDisplayBufferTrimOnlyPastThreshold(t *testing.T) {
	b := NewDisplayBuffer(1.0, 5)
	b.Append([]Point{{X: 0}, {X: 1}, {X: 2}, {X: 3}, {X: 4}})
	if b.Len() != 5 {
		t.Fatalf("Expected no trim at threshold, got %d points", b.Len())
	}
	b.Append([]Point{{X: 5}})
	got := b.Points()
	if len(got) != 2 || got[0].X != 4 || got[1].X != 5 {
		t.Errorf("Expected [4 5] after trim, got %v", got)
	}
}

func TestMergePointsStable(t *testing.T) {
	a := []Point{{X: 1, Y: 1}, {X: 2, Y: 1}}
	b := []Point{{X: 1, Y: 2}, {X: 3, Y: 2}}
	got := mergePoints(a, b)
	want := []Point{{1, 1}, {1, 2}, {2, 1}, {3, 2}}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Index %d: Expected %v, got %v", i, want[i], got[i])
		}
	}
}
