package main

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestStatsRecord(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewStats(start)

	msgs := []struct {
		at   time.Duration
		body string
	}{
		{0, `{"signals": {"heart": {"new_data": [{"x":0.01,"y":0},{"x":0.02,"y":1}]}}, "autoregulation": true}`},
		{time.Second, `{"signals": {"heart": {"new_data": [{"x":0.03,"y":0},{"x":0.04,"y":1},{"x":0.05,"y":1},{"x":0.06,"y":1}]}, "lungs": {"new_data": []}}}`},
		{3 * time.Second, `{"signals": {"heart": {"new_data": [{"x":0.07,"y":0},{"x":0.08,"y":1},{"x":0.09,"y":0}]}}}`},
	}
	for _, m := range msgs {
		if err := s.Record([]byte(m.body), start.Add(m.at)); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}
	if err := s.Record([]byte(`nope`), start); err == nil {
		t.Error("Expected malformed message to be reported")
	}

	sums := s.Summaries()
	if len(sums) != 1 {
		t.Fatalf("Expected only heart to have batches, got %d channels", len(sums))
	}
	h := sums[0]
	if h.Batches != 3 || h.MeanPoints != 3 || h.MinPoints != 2 || h.MaxPoints != 4 {
		t.Errorf("Unexpected batch stats %+v", h)
	}
	if h.MeanGap != 1500*time.Millisecond {
		t.Errorf("Expected mean gap 1.5s, got %v", h.MeanGap)
	}
	if h.MaxGap != 2*time.Second {
		t.Errorf("Expected max gap 2s, got %v", h.MaxGap)
	}
	if h.Jitter <= 0 {
		t.Errorf("Expected non-zero jitter, got %v", h.Jitter)
	}
	if h.PointsPerSec != 2 {
		t.Errorf("Expected 2 pts/s, got %v", h.PointsPerSec)
	}
	if s.Malformed != 1 || s.TotalMessages != 3 {
		t.Errorf("Expected 3 messages and 1 malformed, got %d and %d", s.TotalMessages, s.Malformed)
	}

	var buf bytes.Buffer
	s.Report(&buf, start.Add(3*time.Second))
	if !strings.Contains(buf.String(), "heart") || !strings.Contains(buf.String(), "Autoregulation: true") {
		t.Errorf("Expected report to mention heart and autoregulation, got:\n%s", buf.String())
	}
}
