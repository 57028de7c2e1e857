package simulator

import "math"

// SampleRate is the number of samples generated per second of signal time.
const SampleRate = 100.0

func gauss(x, mu, sigma float64) float64 {
	z := (x - mu) / sigma
	return math.Exp(-0.5 * z * z)
}

// ecg is one cardiac cycle at phase 0..1. The baseline is offset so that only
// the R wave is positive.
func ecg(phase, t float64) float64 {
	wander := 0.03 * math.Sin(2*math.Pi*0.33*t)
	p := 0.08 * gauss(phase, 0.18, 0.03)
	q := -0.12 * gauss(phase, 0.30, 0.01)
	r := 1.00 * gauss(phase, 0.32, 0.015)
	s := -0.25 * gauss(phase, 0.35, 0.012)
	tw := 0.25 * gauss(phase, 0.60, 0.06)
	return wander + p + q + r + s + tw - 0.35
}

// arterialPulse is the normalized ABP waveform: a systolic peak, the dicrotic
// notch and the reflected wave. Range is roughly 0..1.
func arterialPulse(phase float64) float64 {
	systolic := gauss(phase, 0.15, 0.06)
	notch := -0.08 * gauss(phase, 0.34, 0.015)
	dicrotic := 0.3 * gauss(phase, 0.42, 0.05)
	runoff := 0.15 * math.Exp(-phase/0.35)
	return math.Max(0, systolic+notch+dicrotic+runoff)
}

func respiration(phase float64) float64 {
	return 0.5 - 0.5*math.Cos(2*math.Pi*phase)
}

const (
	diastolicPressure = 80.0
	pulsePressure     = 40.0
	meanArterial      = 93.0

	icpBaseline       = 10.0
	icpBaselineTBI    = 24.0
	icpCoupling       = 0.05
	icpCouplingTBI    = 0.3
	icpRespiratory    = 1.0
	bodyTemperature   = 37.0
	breathingRate     = 0.25 // Hz
	temperaturePeriod = 120.0
)

func abp(cardiacPhase, amplitude float64) float64 {
	return diastolicPressure + pulsePressure*amplitude*arterialPulse(cardiacPhase)
}

// icp follows the arterial pulse. With autoregulation off the baseline rises
// and more of the arterial pulsation is transmitted.
func icp(arterial, respPhase, amplitude float64, autoregulation bool) float64 {
	base, coupling := icpBaseline, icpCoupling
	if !autoregulation {
		base, coupling = icpBaselineTBI, icpCouplingTBI
	}
	return base + coupling*(arterial-meanArterial) + icpRespiratory*amplitude*respiration(respPhase)
}

func temperature(t, amplitude float64) float64 {
	return bodyTemperature + 2*(amplitude-1) + 0.15*math.Sin(2*math.Pi*t/temperaturePeriod)
}
