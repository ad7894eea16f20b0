// Copyright 2021-2024 Sebastian Lederer. See the file LICENSE.md for details
package main

import (
	"context"
)

// Core is the emulation core as seen by the harness. Initialize must be
// called once before any other method except the video queries.
type Core interface {
	VideoSource
	KeySink

	Initialize() error
	Step(cycles int) error
	Close() error
}

// Host is the set of callbacks the core invokes while it runs. The
// session implements it; the core never sees the concrete type.
type Host interface {
	DiskRead(ptr, size, head uint32)
	DiskWrite(ptr, size, head uint32)
	DiskSize() uint32
	Microseconds() float64
	SetSpeakerFrequency(hz float64)
	SetBorderColor(rgb uint32)
	LogString(ptr, n uint32)
}

// CoreLoader instantiates a core bound to host. The returned memory is the
// linear memory shared with the core.
type CoreLoader interface {
	Load(ctx context.Context, host Host) (Core, Memory, error)
}
