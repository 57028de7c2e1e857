package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/sudorandom/physio-stream/pkg/waveform"
)

// ErrMalformed is returned for feed messages that are not valid JSON of the
// expected shape.
var ErrMalformed = errors.New("malformed feed message")

// Params are the generator settings for one signal.
type Params struct {
	Amplitude float64 `json:"amplitude"`
	Frequency float64 `json:"frequency"`
}

// Signal is one channel's batch within an inbound message.
type Signal struct {
	NewData []waveform.Point `json:"new_data"`
	Color   string           `json:"color"`
	Params  *Params          `json:"params,omitempty"`
}

// Inbound is a single message from the feed server. It carries at most one
// batch per channel.
type Inbound struct {
	Signals        map[string]Signal `json:"signals"`
	Autoregulation *bool             `json:"autoregulation,omitempty"`
}

// Channels returns the ids present in the message in sorted order.
func (in Inbound) Channels() []string {
	ids := make([]string, 0, len(in.Signals))
	for id := range in.Signals {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Control is sent to the feed server whenever the active set or the signal
// parameters change, and on every (re)connect.
type Control struct {
	ActiveSignals  []string          `json:"active_signals"`
	SignalParams   map[string]Params `json:"signal_params"`
	Autoregulation bool              `json:"autoregulation"`
}

func Decode(data []byte) (Inbound, error) {
	var in Inbound
	if err := json.Unmarshal(data, &in); err != nil {
		return Inbound{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return in, nil
}

func EncodeInbound(in Inbound) ([]byte, error) {
	if in.Signals == nil {
		in.Signals = map[string]Signal{}
	}
	return json.Marshal(in)
}

// EncodeControl serializes c. Nil collections are written as empty ones so
// the server never sees null.
func EncodeControl(c Control) ([]byte, error) {
	if c.ActiveSignals == nil {
		c.ActiveSignals = []string{}
	}
	if c.SignalParams == nil {
		c.SignalParams = map[string]Params{}
	}
	return json.Marshal(c)
}

func DecodeControl(data []byte) (Control, error) {
	var c Control
	if err := json.Unmarshal(data, &c); err != nil {
		return Control{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return c, nil
}
