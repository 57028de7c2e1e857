package simulator

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/sudorandom/physio-stream/pkg/feed"
	"github.com/sudorandom/physio-stream/pkg/vitals"
	"github.com/sudorandom/physio-stream/pkg/waveform"
)

const (
	DefaultAmplitude = 100.0 // percent of nominal
	DefaultFrequency = 1.0   // Hz, 60 bpm

	minFrequency = 20.0 / 60
	maxFrequency = 200.0 / 60
)

// Source generates samples for every known signal on one shared clock. Only
// active signals are emitted.
type Source struct {
	mu sync.Mutex

	sample       int64
	carry        float64
	cardiacPhase float64
	respPhase    float64

	active         []string
	params         map[string]feed.Params
	frequency      float64
	autoregulation bool
}

func NewSource() *Source {
	return &Source{
		active:         append([]string(nil), vitals.DefaultActive...),
		params:         make(map[string]feed.Params),
		frequency:      DefaultFrequency,
		autoregulation: true,
	}
}

// Apply replaces the active set, parameters and autoregulation mode with the
// contents of a control message. Unknown signal ids are ignored.
func (s *Source) Apply(c feed.Control) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.active = s.active[:0]
	for _, id := range c.ActiveSignals {
		if _, ok := vitals.Lookup(id); ok {
			s.active = append(s.active, id)
		}
	}
	sort.Strings(s.active)

	s.params = make(map[string]feed.Params, len(c.SignalParams))
	ids := make([]string, 0, len(c.SignalParams))
	for id, p := range c.SignalParams {
		s.params[id] = p
		ids = append(ids, id)
	}

	// The heart rate is global; the first signal carrying one wins.
	sort.Strings(ids)
	s.frequency = DefaultFrequency
	for _, id := range ids {
		if f := c.SignalParams[id].Frequency; f > 0 {
			s.frequency = math.Max(minFrequency, math.Min(maxFrequency, f))
			break
		}
	}
	s.autoregulation = c.Autoregulation
}

func (s *Source) Active() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.active...)
}

func (s *Source) amplitude(id string) float64 {
	if p, ok := s.params[id]; ok && p.Amplitude > 0 {
		return p.Amplitude / 100
	}
	return DefaultAmplitude / 100
}

// Advance generates the samples covering elapsed signal time and returns them
// as one feed message. Fractions of a sample carry over to the next call.
func (s *Source) Advance(elapsed time.Duration) feed.Inbound {
	s.mu.Lock()
	defer s.mu.Unlock()

	exact := elapsed.Seconds()*SampleRate + s.carry
	n := int(math.Floor(exact))
	s.carry = exact - float64(n)

	series := make(map[string][]waveform.Point, len(s.active))
	for _, id := range s.active {
		series[id] = make([]waveform.Point, 0, n)
	}

	for i := 0; i < n; i++ {
		s.sample++
		t := float64(s.sample) / SampleRate
		s.cardiacPhase = math.Mod(s.cardiacPhase+s.frequency/SampleRate, 1)
		s.respPhase = math.Mod(s.respPhase+breathingRate/SampleRate, 1)

		arterial := abp(s.cardiacPhase, s.amplitude("blood_pressure"))
		for _, id := range s.active {
			var y float64
			switch id {
			case "heart":
				y = s.amplitude(id) * ecg(s.cardiacPhase, t)
			case "lungs":
				y = s.amplitude(id) * respiration(s.respPhase)
			case "blood_pressure":
				y = arterial
			case "brain":
				y = icp(arterial, s.respPhase, s.amplitude(id), s.autoregulation)
			case "temperature":
				y = temperature(t, s.amplitude(id))
			}
			series[id] = append(series[id], waveform.Point{X: t, Y: y})
		}
	}

	autoreg := s.autoregulation
	out := feed.Inbound{
		Signals:        make(map[string]feed.Signal, len(series)),
		Autoregulation: &autoreg,
	}
	for id, pts := range series {
		st, _ := vitals.Lookup(id)
		p := feed.Params{Amplitude: s.amplitude(id) * 100, Frequency: s.frequency}
		out.Signals[id] = feed.Signal{NewData: pts, Color: st.Color, Params: &p}
	}
	return out
}
