// Copyright 2021-2024 Sebastian Lederer. See the file LICENSE.md for details
package main

import (
	"errors"
)

// linearMemory is a plain byte slice standing in for the core's memory.
type linearMemory []byte

func newLinearMemory(pages uint32) linearMemory {
	return make(linearMemory, pages*WasmPageSize)
}

func (m linearMemory) Read(offset, byteCount uint32) ([]byte, bool) {
	end := uint64(offset) + uint64(byteCount)
	if end > uint64(len(m)) {
		return nil, false
	}
	return m[offset:end], true
}

func (m linearMemory) Size() uint32 {
	return uint32(len(m))
}

type recordingSink struct {
	keys []byte
	err  error
}

func (s *recordingSink) SendKey(scan byte) error {
	if s.err != nil {
		return s.err
	}
	s.keys = append(s.keys, scan)
	return nil
}

// fakeCore is an emulation core that records calls and can call back into
// its host while stepping.
type fakeCore struct {
	host Host

	initialized int
	steps       []int
	keys        []byte
	closed      bool

	width, height int
	framePtr      uint32

	stepErr error
	onStep  func(h Host, cycles int)

	// released is closed by Close when set.
	released chan struct{}
}

var errFakeStep = errors.New("fake step failure")

func (c *fakeCore) Initialize() error {
	c.initialized++
	return nil
}

func (c *fakeCore) Step(cycles int) error {
	if c.stepErr != nil {
		return c.stepErr
	}
	c.steps = append(c.steps, cycles)
	if c.onStep != nil {
		c.onStep(c.host, cycles)
	}
	return nil
}

func (c *fakeCore) VideoWidth() int            { return c.width }
func (c *fakeCore) VideoHeight() int           { return c.height }
func (c *fakeCore) VideoBufferPointer() uint32 { return c.framePtr }

func (c *fakeCore) SendKey(scan byte) error {
	c.keys = append(c.keys, scan)
	return nil
}

func (c *fakeCore) Close() error {
	c.closed = true
	if c.released != nil {
		close(c.released)
	}
	return nil
}

type fakeSurface struct {
	resizes  int
	width    int
	height   int
	scaleX   float64
	scaleY   float64
	border   uint32
	frames   int
	lastSize int
}

func (s *fakeSurface) Resize(width, height int, scaleX, scaleY float64) {
	s.resizes++
	s.width, s.height = width, height
	s.scaleX, s.scaleY = scaleX, scaleY
}

func (s *fakeSurface) SetBorder(rgb uint32) {
	s.border = rgb
}

func (s *fakeSurface) Present(pix []byte) {
	s.frames++
	s.lastSize = len(pix)
}

type fakeAudioOutput struct {
	suspended bool
	resumes   int
	resumeErr error
	closed    bool
}

func (o *fakeAudioOutput) Suspended() bool { return o.suspended }

func (o *fakeAudioOutput) Resume() error {
	o.resumes++
	if o.resumeErr != nil {
		return o.resumeErr
	}
	o.suspended = false
	return nil
}

func (o *fakeAudioOutput) Close() error {
	o.closed = true
	return nil
}
