//go:build windows

// Copyright 2021-2024 Sebastian Lederer. See the file LICENSE.md for details

package main

import (
	"os"

	"golang.org/x/sys/windows"
)

// ConsoleIsTerminal reports whether stdin is a console. Pipes and files
// have no console mode.
func ConsoleIsTerminal() bool {
	var mode uint32
	return windows.GetConsoleMode(windows.Handle(os.Stdin.Fd()), &mode) == nil
}
