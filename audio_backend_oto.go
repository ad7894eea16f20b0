//go:build !headless

// Copyright 2021-2024 Sebastian Lederer. See the file LICENSE.md for details
package main

import (
	"io"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

type otoOutput struct {
	ctx    *oto.Context
	ready  chan struct{}
	src    io.Reader
	player *oto.Player
	closed bool
	mutex  sync.Mutex
}

// newAudioOutput opens the sound device for src. The context becomes ready
// asynchronously; until then and until the first Resume the output reports
// itself as suspended.
func newAudioOutput(sampleRate int, src io.Reader) (AudioOutput, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatFloat32LE,
		BufferSize:   40 * time.Millisecond,
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}

	o := &otoOutput{
		ctx:   ctx,
		ready: make(chan struct{}),
		src:   src,
	}
	go func() {
		<-ready
		close(o.ready)
	}()
	return o, nil
}

func (o *otoOutput) isReady() bool {
	select {
	case <-o.ready:
		return true
	default:
		return false
	}
}

func (o *otoOutput) Suspended() bool {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	if o.closed {
		return false
	}
	return o.player == nil || !o.player.IsPlaying()
}

func (o *otoOutput) Resume() error {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	if !o.isReady() {
		return errAudioNotReady
	}
	if err := o.ctx.Err(); err != nil {
		return err
	}
	if err := o.ctx.Resume(); err != nil {
		return err
	}
	if o.player == nil {
		o.player = o.ctx.NewPlayer(o.src)
	}
	o.player.Play()
	return nil
}

func (o *otoOutput) Close() error {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	o.closed = true
	if o.player == nil {
		return nil
	}
	err := o.player.Close()
	o.player = nil
	return err
}
