package history

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/sudorandom/physio-stream/pkg/waveform"
)

// Writer is where a Recorder puts its batches. *Store is the usual one.
type Writer interface {
	Put(recs ...Record) error
}

// Recorder moves cycle summaries off the playback path and writes them to a
// Writer in batches. When its buffer is full new records are dropped, and a
// batch that fails to write is dropped whole.
type Recorder struct {
	store      Writer
	records    chan Record
	flushEvery time.Duration
	maxBatch   int

	written atomic.Uint64
	dropped atomic.Uint64
}

func NewRecorder(store Writer, buffer int, flushEvery time.Duration) *Recorder {
	if buffer < 1 {
		buffer = 1
	}
	return &Recorder{
		store:      store,
		records:    make(chan Record, buffer),
		flushEvery: flushEvery,
		maxBatch:   buffer,
	}
}

// Observe has the waveform.CycleObserver signature. It never blocks.
func (r *Recorder) Observe(c waveform.Cycle) {
	select {
	case r.records <- RecordFromCycle(c):
	default:
		r.dropped.Add(1)
	}
}

// Run writes buffered records until ctx is cancelled, then flushes whatever
// is still queued.
func (r *Recorder) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.flushEvery)
	defer ticker.Stop()

	batch := make([]Record, 0, r.maxBatch)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := r.store.Put(batch...); err != nil {
			r.dropped.Add(uint64(len(batch)))
			batch = batch[:0]
			return err
		}
		r.written.Add(uint64(len(batch)))
		batch = batch[:0]
		return nil
	}

	for {
		select {
		case rec := <-r.records:
			batch = append(batch, rec)
			if len(batch) >= r.maxBatch {
				if err := flush(); err != nil {
					log.Printf("Warning: Failed to write cycle history: %v", err)
				}
			}
		case <-ticker.C:
			if err := flush(); err != nil {
				log.Printf("Warning: Failed to write cycle history: %v", err)
			}
		case <-ctx.Done():
			for {
				select {
				case rec := <-r.records:
					batch = append(batch, rec)
				default:
					return flush()
				}
			}
		}
	}
}

func (r *Recorder) Written() uint64 {
	return r.written.Load()
}

func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}
