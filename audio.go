// Copyright 2021-2024 Sebastian Lederer. See the file LICENSE.md for details
package main

import (
	"encoding/binary"
	"errors"
	"math"
	"sync/atomic"

	"github.com/retroenv/retrogolib/log"
)

const (
	AudioSampleRate = 44100
	toneAmplitude   = 0.25
	bytesPerSample  = 4 // mono float32
)

// ToneGenerator is a square wave oscillator. The frequency may be changed
// from the emulation loop while the audio backend reads samples from its
// own goroutine.
type ToneGenerator struct {
	sampleRate int
	freqBits   atomic.Uint64
	phase      float64
}

func NewToneGenerator(sampleRate int) *ToneGenerator {
	return &ToneGenerator{sampleRate: sampleRate}
}

func (g *ToneGenerator) SetFrequency(hz float64) {
	if hz < 0 || math.IsNaN(hz) || math.IsInf(hz, 0) {
		hz = 0
	}
	g.freqBits.Store(math.Float64bits(hz))
}

func (g *ToneGenerator) Frequency() float64 {
	return math.Float64frombits(g.freqBits.Load())
}

// Read fills p with little endian float32 samples.
func (g *ToneGenerator) Read(p []byte) (int, error) {
	n := len(p) / bytesPerSample * bytesPerSample
	freq := g.Frequency()
	nyquist := float64(g.sampleRate) / 2

	for i := 0; i < n; i += bytesPerSample {
		var sample float32
		if freq > 0 && freq < nyquist {
			if g.phase < 0.5 {
				sample = toneAmplitude
			} else {
				sample = -toneAmplitude
			}
			g.phase += freq / float64(g.sampleRate)
			g.phase -= math.Floor(g.phase)
		}
		binary.LittleEndian.PutUint32(p[i:], math.Float32bits(sample))
	}
	return n, nil
}

var errAudioNotReady = errors.New("audio device not ready")

// AudioOutput is the platform sound device. It may start out suspended
// until the platform lets it play.
type AudioOutput interface {
	Suspended() bool
	Resume() error
	Close() error
}

// AudioBridge connects the speaker callback of the core to a continuously
// running tone generator.
type AudioBridge struct {
	logger *log.Logger
	gen    *ToneGenerator
	out    AudioOutput
}

func NewAudioBridge(logger *log.Logger, gen *ToneGenerator, out AudioOutput) *AudioBridge {
	return &AudioBridge{logger: logger, gen: gen, out: out}
}

func (a *AudioBridge) SetFrequency(hz float64) {
	a.gen.SetFrequency(hz)
}

// Wake asks a suspended output to resume. Failures are retried on the
// next call.
func (a *AudioBridge) Wake() {
	if a.out == nil || !a.out.Suspended() {
		return
	}
	if err := a.out.Resume(); err != nil {
		a.logger.Debug("audio resume failed", log.Err(err))
		return
	}
	a.logger.Debug("audio resumed")
}

func (a *AudioBridge) Close() error {
	if a.out == nil {
		return nil
	}
	return a.out.Close()
}
