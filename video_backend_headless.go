//go:build headless

// Copyright 2021-2024 Sebastian Lederer. See the file LICENSE.md for details

package main

import (
	"context"
	"errors"

	"github.com/retroenv/retrogolib/log"
)

const guiAvailable = false

var errNoGUI = errors.New("built without a window system, use -cli")

func newGUISurface() Surface {
	return &terminalSurface{}
}

func runGUI(context.Context, *log.Logger, *Config, *Session, Surface) error {
	return errNoGUI
}
