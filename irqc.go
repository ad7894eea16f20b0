// Copyright 2021-2024 Sebastian Lederer. See the file LICENSE.md for details
package main

import (
	"math"
	"time"
)

const DefaultTargetFreq = 4.77

// MaxCatchUpMillis bounds how much emulated time a single tick may owe.
const MaxCatchUpMillis = 15

const cyclesPerMHzMilli = 1000

// Pacer converts elapsed wall-clock time into emulated cycles.
type Pacer struct {
	freq  float64 // MHz
	limit int

	last    time.Time
	total   uint64
	window  uint64
	lastRep time.Time
}

func NewPacer(freqMHz float64) *Pacer {
	return &Pacer{
		freq:  freqMHz,
		limit: int(math.Round(freqMHz * MaxCatchUpMillis * cyclesPerMHzMilli)),
	}
}

func (p *Pacer) Start(now time.Time) {
	p.last = now
	p.lastRep = now
}

func (p *Pacer) Cap() int {
	return p.limit
}

// Owed returns the cycles due for delta, clamped to the cap.
func (p *Pacer) Owed(delta time.Duration) int {
	if delta <= 0 {
		return 0
	}
	ms := float64(delta) / float64(time.Millisecond)
	cycles := ms * p.freq * cyclesPerMHzMilli
	if cycles > float64(p.limit) {
		return p.limit
	}
	return int(cycles)
}

// Tick steps the core by the cycles owed since the previous tick. The
// counters advance by what was handed to step.
func (p *Pacer) Tick(now time.Time, step func(cycles int) error) error {
	cycles := p.Owed(now.Sub(p.last))
	err := step(cycles)

	p.total += uint64(cycles)
	p.window += uint64(cycles)
	p.last = now
	return err
}

func (p *Pacer) Total() uint64 {
	return p.total
}

// Report returns the emulated frequency in MHz since the previous report.
func (p *Pacer) Report(now time.Time) float64 {
	elapsed := now.Sub(p.lastRep)
	cycles := p.window
	p.window = 0
	p.lastRep = now
	us := elapsed.Microseconds()
	if us <= 0 {
		return 0
	}
	return float64(cycles) / float64(us)
}
