package waveform

// SpeedLimits bounds the adaptive playback rate.
type SpeedLimits struct {
	// PressureCeiling is the average queue size at which the full 3x
	// multiplier applies.
	PressureCeiling float64
	Min, Max        float64
}

func DefaultSpeedLimits() SpeedLimits {
	return DefaultConfig().speedLimits()
}

// ComputeSpeed converts the cadence measured from a cycle (points/second) and
// the rolling average queue size into a playback rate in points/second.
// An empty queue plays at the measured cadence; a queue averaging
// PressureCeiling points or more plays three times faster. Without a usable
// ceiling there is no pressure boost. The result is clamped to [Min, Max].
func ComputeSpeed(baseline, averageQueue float64, lim SpeedLimits) float64 {
	ratio := 0.0
	if lim.PressureCeiling > 0 {
		ratio = clamp(averageQueue/lim.PressureCeiling, 0, 1)
	}
	return clamp(baseline*(1+ratio*2), lim.Min, lim.Max)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
