package simulator

import (
	"testing"
	"time"

	"github.com/sudorandom/physio-stream/pkg/feed"
	"github.com/sudorandom/physio-stream/pkg/vitals"
	"github.com/sudorandom/physio-stream/pkg/waveform"
)

func collect(s *Source, id string, seconds int) []waveform.Point {
	var pts []waveform.Point
	for i := 0; i < seconds; i++ {
		pts = append(pts, s.Advance(time.Second).Signals[id].NewData...)
	}
	return pts
}

func TestSourceDefaults(t *testing.T) {
	s := NewSource()
	msg := s.Advance(time.Second)

	if len(msg.Signals) != len(vitals.DefaultActive) {
		t.Fatalf("Expected %d default signals, got %d", len(vitals.DefaultActive), len(msg.Signals))
	}
	for _, id := range vitals.DefaultActive {
		sig, ok := msg.Signals[id]
		if !ok {
			t.Fatalf("Expected %s in default output", id)
		}
		if len(sig.NewData) != 100 {
			t.Errorf("%s: Expected 100 samples per second, got %d", id, len(sig.NewData))
		}
		want, _ := vitals.Lookup(id)
		if sig.Color != want.Color {
			t.Errorf("%s: Expected color %s, got %s", id, want.Color, sig.Color)
		}
	}
	if msg.Autoregulation == nil || !*msg.Autoregulation {
		t.Error("Expected autoregulation on by default")
	}
}

func TestSourceContinuousTime(t *testing.T) {
	s := NewSource()
	a := s.Advance(time.Second).Signals["heart"].NewData
	b := s.Advance(time.Second).Signals["heart"].NewData

	if a[0].X != 0.01 {
		t.Errorf("Expected first sample at 0.01, got %v", a[0].X)
	}
	if b[0].X <= a[len(a)-1].X {
		t.Errorf("Expected time to continue across batches, got %v after %v", b[0].X, a[len(a)-1].X)
	}
	if b[len(b)-1].X != 2.0 {
		t.Errorf("Expected last sample at 2.0, got %v", b[len(b)-1].X)
	}
}

func TestSourceCarriesPartialSamples(t *testing.T) {
	s := NewSource()
	total := 0
	for i := 0; i < 100; i++ {
		total += len(s.Advance(15 * time.Millisecond).Signals["heart"].NewData)
	}
	if total < 149 || total > 150 {
		t.Errorf("Expected about 150 samples over 1.5s, got %d", total)
	}
}

func TestSourceApply(t *testing.T) {
	s := NewSource()
	s.Apply(feed.Control{
		ActiveSignals: []string{"temperature", "lungs", "spleen"},
		SignalParams: map[string]feed.Params{
			"temperature": {Amplitude: 150, Frequency: 2},
		},
		Autoregulation: false,
	})

	active := s.Active()
	if len(active) != 2 || active[0] != "lungs" || active[1] != "temperature" {
		t.Errorf("Expected [lungs temperature], got %v", active)
	}
	msg := s.Advance(time.Second)
	if _, ok := msg.Signals["heart"]; ok {
		t.Error("Expected heart to be inactive")
	}
	temp := msg.Signals["temperature"]
	if temp.Params == nil || temp.Params.Amplitude != 150 || temp.Params.Frequency != 2 {
		t.Errorf("Unexpected temperature params %+v", temp.Params)
	}
	if *msg.Autoregulation {
		t.Error("Expected autoregulation off")
	}
}

func TestHeartRateFollowsFrequency(t *testing.T) {
	tests := []struct {
		frequency float64
		lo, hi    int
	}{
		{1.0, 58, 62},
		{1.5, 87, 93},
	}
	for _, tt := range tests {
		s := NewSource()
		s.Apply(feed.Control{
			ActiveSignals:  []string{"heart"},
			SignalParams:   map[string]feed.Params{"heart": {Amplitude: 100, Frequency: tt.frequency}},
			Autoregulation: true,
		})
		pts := collect(s, "heart", 10)
		r := vitals.Evaluate("heart", pts)
		if int(r.Value) < tt.lo || int(r.Value) > tt.hi {
			t.Errorf("frequency %v: Expected bpm in [%d, %d], got %v", tt.frequency, tt.lo, tt.hi, r.Value)
		}
	}
}

func TestReadoutsWithinNormalRanges(t *testing.T) {
	s := NewSource()
	s.Apply(feed.Control{ActiveSignals: vitals.IDs(), Autoregulation: true})
	msg := s.Advance(10 * time.Second)

	for _, id := range []string{"heart", "blood_pressure", "brain", "temperature"} {
		if r := vitals.Evaluate(id, msg.Signals[id].NewData); r.Pathological {
			t.Errorf("%s: Expected normal readout, got %s", id, r.Text)
		}
	}
}

func TestAutoregulationOffRaisesICP(t *testing.T) {
	s := NewSource()
	s.Apply(feed.Control{ActiveSignals: []string{"brain"}, Autoregulation: false})
	pts := s.Advance(10 * time.Second).Signals["brain"].NewData

	r := vitals.Evaluate("brain", pts)
	if !r.Pathological {
		t.Errorf("Expected raised ICP without autoregulation, got %s", r.Text)
	}
}
