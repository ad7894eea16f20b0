// Copyright 2021-2024 Sebastian Lederer. See the file LICENSE.md for details
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/eiannone/keyboard"
	"github.com/retroenv/retrogolib/log"
)

const (
	consoleBufferSize = 64
	terminalFPS       = 60
)

// consoleKeys maps the console keys without a character to XT key names.
var consoleKeys = map[keyboard.Key]string{
	keyboard.KeyF1:         "F1",
	keyboard.KeyF2:         "F2",
	keyboard.KeyF3:         "F3",
	keyboard.KeyF4:         "F4",
	keyboard.KeyF5:         "F5",
	keyboard.KeyF6:         "F6",
	keyboard.KeyF7:         "F7",
	keyboard.KeyF8:         "F8",
	keyboard.KeyF9:         "F9",
	keyboard.KeyF10:        "F10",
	keyboard.KeyInsert:     "Insert",
	keyboard.KeyDelete:     "Delete",
	keyboard.KeyHome:       "Home",
	keyboard.KeyEnd:        "End",
	keyboard.KeyPgup:       "PageUp",
	keyboard.KeyPgdn:       "PageDown",
	keyboard.KeyArrowUp:    "ArrowUp",
	keyboard.KeyArrowDown:  "ArrowDown",
	keyboard.KeyArrowLeft:  "ArrowLeft",
	keyboard.KeyArrowRight: "ArrowRight",
}

func pressKey(key string) []KeyStroke {
	return []KeyStroke{
		{Event: KeyEvent{Key: key}},
		{Event: KeyEvent{Key: key}, Up: true},
	}
}

// consoleStrokes turns one console key event into key strokes. quit is set
// for Ctrl+].
func consoleStrokes(ev keyboard.KeyEvent) (strokes []KeyStroke, quit bool) {
	if ev.Key == keyboard.KeyCtrlRsqBracket {
		return nil, true
	}
	if name, ok := consoleKeys[ev.Key]; ok {
		return pressKey(name), false
	}

	// control keys carry their ASCII code as key, characters come as rune
	r := ev.Rune
	if ev.Key != 0 {
		r = rune(ev.Key)
	}
	strokes, _ = typeRune(r)
	return strokes, false
}

// terminalSurface keeps no pixels; a terminal has nowhere to show them.
type terminalSurface struct {
	width, height int
}

func (s *terminalSurface) Resize(width, height int, _, _ float64) {
	s.width, s.height = width, height
}

func (s *terminalSurface) SetBorder(uint32) {}

func (s *terminalSurface) Present([]byte) {}

// runTerminal drives a session from a single select loop with input taken
// from the console keyboard. Without a console the session runs without
// input until it is cancelled.
func runTerminal(ctx context.Context, logger *log.Logger, cfg *Config, s *Session) error {
	var input <-chan keyboard.KeyEvent

	if ConsoleIsTerminal() {
		keys, err := keyboard.GetKeys(consoleBufferSize)
		if err != nil {
			return fmt.Errorf("opening console keyboard: %w", err)
		}
		defer func() {
			if err := keyboard.Close(); err != nil {
				logger.Error("closing console keyboard failed", log.Err(err))
			}
		}()
		input = keys
		logger.Info("terminal mode, press Ctrl+] to quit")
	} else {
		logger.Info("stdin is not a terminal, running without keyboard input")
	}

	return terminalLoop(ctx, cfg, s, input)
}

func terminalLoop(ctx context.Context, cfg *Config, s *Session, input <-chan keyboard.KeyEvent) error {
	tick := time.NewTicker(time.Second / time.Duration(cfg.TPS))
	defer tick.Stop()
	frame := time.NewTicker(time.Second / terminalFPS)
	defer frame.Stop()
	housekeeping := time.NewTicker(HousekeepingInterval)
	defer housekeeping.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case now := <-tick.C:
			if _, err := s.Poll(now); err != nil {
				return err
			}
			if err := s.Tick(now); err != nil {
				return err
			}

		case <-frame.C:
			s.Present()

		case now := <-housekeeping.C:
			s.Housekeeping(now)

		case ev, ok := <-input:
			if !ok {
				// keyboard closed, keep running without input
				input = nil
				continue
			}
			if ev.Err != nil {
				return fmt.Errorf("reading console keyboard: %w", ev.Err)
			}
			strokes, quit := consoleStrokes(ev)
			if quit {
				return ErrTerminated
			}
			s.TypeStrokes(strokes)
		}
	}
}
