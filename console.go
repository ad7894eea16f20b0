//go:build !windows

// Copyright 2021-2024 Sebastian Lederer. See the file LICENSE.md for details

package main

import (
	"os"

	"golang.org/x/term"
)

// ConsoleIsTerminal reports whether stdin is an interactive terminal the
// console keyboard can read from.
func ConsoleIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}
