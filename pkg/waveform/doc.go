// Package waveform turns bursty, irregularly timed batches of waveform samples
// into a smooth, constant-rate stream per channel.
//
// A batch ("cycle") only becomes playable once the next batch for the same
// channel arrives, because the gap between the two arrivals is the only
// estimate of how long the first batch took to produce. The points of the
// closed cycle are then spread evenly across that duration and queued. A
// per-refresh Tick drains the queue into a trimmed display buffer at a rate
// derived from the measured cadence, sped up when a backlog builds.
//
// Channels never share state. Player serializes all operations, so batches
// may arrive on a network goroutine while Tick runs on a render loop.
package waveform
