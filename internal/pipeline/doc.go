// Package pipeline runs the per-tick tracking state machine: gate a new
// depth frame, segment it, select a feature point from the primary blob,
// transform it and emit it.
//
// Process is the pure core; Pipeline adds the frame gate, the live config
// snapshot, emission and counters, and Runner drives Pipeline.Tick from a
// clock so that ticks never overlap.
package pipeline
