// Copyright 2021-2024 Sebastian Lederer. See the file LICENSE.md for details
package main

import (
	"io"
	"testing"

	"github.com/retroenv/retrogolib/assert"
)

func TestParseFlagsDefaults(t *testing.T) {
	cfg, err := parseFlags("xthost", nil, io.Discard)
	assert.NoError(t, err)
	assert.Equal(t, DefaultConfig(), *cfg)
	assert.Equal(t, 4.77, cfg.FreqMHz)
	assert.Equal(t, 640, cfg.TargetWidth)
	assert.Equal(t, uint(350), cfg.MemoryPages)
}

func TestParseFlags(t *testing.T) {
	cfg, err := parseFlags("xthost", []string{"-freq", "8", "-cli", "-writeback", "-bin", "core.wasm", "dos.img"}, io.Discard)
	assert.NoError(t, err)
	assert.Equal(t, 8.0, cfg.FreqMHz)
	assert.True(t, cfg.CLI)
	assert.True(t, cfg.WriteBack)
	assert.Equal(t, "core.wasm", cfg.CoreBinary)
	assert.Equal(t, "dos.img", cfg.DiskImage)
}

func TestParseFlagsInvalid(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		errorMsg string
	}{
		{"zero frequency", []string{"-freq", "0"}, "frequency must be positive"},
		{"negative width", []string{"-width", "-1"}, "width must be positive"},
		{"no pages", []string{"-pages", "0"}, "memory pages"},
		{"no tps", []string{"-tps", "0"}, "ticks per second"},
		{"empty core", []string{"-bin", ""}, "no core binary"},
		{"two images", []string{"a.img", "b.img"}, "unexpected arguments"},
		{"unknown flag", []string{"-bogus"}, "bogus"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseFlags("xthost", tt.args, io.Discard)
			assert.ErrorContains(t, err, tt.errorMsg)
		})
	}
}

func TestCreateLogger(t *testing.T) {
	assert.NotNil(t, createLogger(false, false))
	assert.NotNil(t, createLogger(true, false))
	assert.NotNil(t, createLogger(false, true))
}
