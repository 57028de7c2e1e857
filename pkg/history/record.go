package history

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/sudorandom/physio-stream/pkg/waveform"
)

var ErrCorrupt = errors.New("corrupt history record")

// Record summarizes one closed cycle. Channel and ReceivedAt live in the key;
// the rest is the protowire-encoded value.
type Record struct {
	Channel    string
	ReceivedAt time.Time
	Points     int
	Duration   time.Duration
	Color      string
	FirstX     float64
	LastX      float64
	Rejected   bool
	CycleID    string
}

const (
	fieldPoints   protowire.Number = 1
	fieldDuration protowire.Number = 2
	fieldColor    protowire.Number = 3
	fieldFirstX   protowire.Number = 4
	fieldLastX    protowire.Number = 5
	fieldRejected protowire.Number = 6
	fieldCycleID  protowire.Number = 7
)

func RecordFromCycle(c waveform.Cycle) Record {
	r := Record{
		Channel:    c.Channel,
		ReceivedAt: c.ReceivedAt,
		Points:     len(c.Points),
		Duration:   c.Duration,
		Color:      c.Color,
		Rejected:   c.Duration <= 0,
		CycleID:    c.ID,
	}
	if len(c.Points) > 0 {
		r.FirstX = c.Points[0].X
		r.LastX = c.Points[len(c.Points)-1].X
	}
	return r
}

// Rate is the sender's cadence in points per second, or 0 for a rejected
// cycle.
func (r Record) Rate() float64 {
	if r.Duration <= 0 {
		return 0
	}
	return float64(r.Points) / r.Duration.Seconds()
}

func (r Record) key() []byte {
	return recordKey(r.Channel, r.ReceivedAt)
}

func channelPrefix(channel string) []byte {
	k := make([]byte, 0, len(channel)+1)
	k = append(k, channel...)
	return append(k, 0)
}

// recordKey is channel, a zero byte, then the big-endian receipt time so keys
// of one channel sort chronologically.
func recordKey(channel string, at time.Time) []byte {
	k := channelPrefix(channel)
	return binary.BigEndian.AppendUint64(k, uint64(at.UnixNano()))
}

func parseKey(k []byte) (string, time.Time, error) {
	if len(k) < 9 || k[len(k)-9] != 0 {
		return "", time.Time{}, fmt.Errorf("%w: bad key %x", ErrCorrupt, k)
	}
	channel := string(k[:len(k)-9])
	nanos := int64(binary.BigEndian.Uint64(k[len(k)-8:]))
	return channel, time.Unix(0, nanos), nil
}

func (r Record) marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldPoints, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.Points))
	b = protowire.AppendTag(b, fieldDuration, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(int64(r.Duration)))
	if r.Color != "" {
		b = protowire.AppendTag(b, fieldColor, protowire.BytesType)
		b = protowire.AppendString(b, r.Color)
	}
	b = protowire.AppendTag(b, fieldFirstX, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(r.FirstX))
	b = protowire.AppendTag(b, fieldLastX, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(r.LastX))
	if r.Rejected {
		b = protowire.AppendTag(b, fieldRejected, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(true))
	}
	if r.CycleID != "" {
		b = protowire.AppendTag(b, fieldCycleID, protowire.BytesType)
		b = protowire.AppendString(b, r.CycleID)
	}
	return b
}

// unmarshal fills the value fields of r. Unknown fields are skipped.
func (r *Record) unmarshal(b []byte) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrCorrupt, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldPoints && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			r.Points = int(v)
		case num == fieldDuration && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			r.Duration = time.Duration(protowire.DecodeZigZag(v))
		case num == fieldColor && typ == protowire.BytesType:
			r.Color, n = protowire.ConsumeString(b)
		case num == fieldFirstX && typ == protowire.Fixed64Type:
			var v uint64
			v, n = protowire.ConsumeFixed64(b)
			r.FirstX = math.Float64frombits(v)
		case num == fieldLastX && typ == protowire.Fixed64Type:
			var v uint64
			v, n = protowire.ConsumeFixed64(b)
			r.LastX = math.Float64frombits(v)
		case num == fieldRejected && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			r.Rejected = protowire.DecodeBool(v)
		case num == fieldCycleID && typ == protowire.BytesType:
			r.CycleID, n = protowire.ConsumeString(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return fmt.Errorf("%w: field %d: %v", ErrCorrupt, num, protowire.ParseError(n))
		}
		b = b[n:]
	}
	return nil
}
