//go:build headless

// Copyright 2021-2024 Sebastian Lederer. See the file LICENSE.md for details
package main

import "io"

// silentOutput stands in for the audio device in builds without one.
type silentOutput struct{}

func newAudioOutput(int, io.Reader) (AudioOutput, error) {
	return silentOutput{}, nil
}

func (silentOutput) Suspended() bool { return false }
func (silentOutput) Resume() error   { return nil }
func (silentOutput) Close() error    { return nil }
