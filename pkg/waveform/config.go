package waveform

import "time"

// Config holds the tuning constants of a Player.
type Config struct {
	// RetentionWindow is the span of signal time, in seconds, kept in a
	// display buffer once it has grown past CompactThreshold points.
	RetentionWindow  float64
	CompactThreshold int

	// MaxQueuedPoints is the hard queue cap. Exceeding it sheds the queue
	// down to the newest ShedToPoints points.
	MaxQueuedPoints int
	ShedToPoints    int

	PressureWindow  time.Duration
	PressureCeiling float64
	MinSpeed        float64
	MaxSpeed        float64
	InitialSpeed    float64

	// MaxPointsPerTick bounds the work done per channel in one Tick.
	MaxPointsPerTick int

	// ResumeStaleAfter is how old a queued point may be, relative to the
	// moment the viewer becomes visible again, before it is dropped.
	ResumeStaleAfter time.Duration

	// HistorySize caps the diagnostic cycle history across all channels.
	HistorySize int
}

func DefaultConfig() Config {
	return Config{
		RetentionWindow:  10.0,
		CompactThreshold: 1200,
		MaxQueuedPoints:  2000,
		ShedToPoints:     1000,
		PressureWindow:   5000 * time.Millisecond,
		PressureCeiling:  1000,
		MinSpeed:         10,
		MaxSpeed:         500,
		InitialSpeed:     50,
		MaxPointsPerTick: 10,
		ResumeStaleAfter: time.Second,
		HistorySize:      50,
	}
}

func (c Config) speedLimits() SpeedLimits {
	return SpeedLimits{
		PressureCeiling: c.PressureCeiling,
		Min:             c.MinSpeed,
		Max:             c.MaxSpeed,
	}
}
