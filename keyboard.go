// Copyright 2021-2024 Sebastian Lederer. See the file LICENSE.md for details
package main

import (
	"github.com/retroenv/retrogolib/log"
)

// KeyEvent is a host key press or release.
type KeyEvent struct {
	Key      string
	Location Location
	Repeat   bool
	Handled  bool
}

// KeySink receives translated scancode bytes.
type KeySink interface {
	SendKey(scan byte) error
}

// KeyTranslator turns host key events into make/break scancode bytes.
type KeyTranslator struct {
	logger *log.Logger
	sink   KeySink
}

func NewKeyTranslator(logger *log.Logger, sink KeySink) *KeyTranslator {
	return &KeyTranslator{logger: logger, sink: sink}
}

func (k *KeyTranslator) KeyDown(ev *KeyEvent) error {
	return k.handle(ev, 0)
}

func (k *KeyTranslator) KeyUp(ev *KeyEvent) error {
	return k.handle(ev, KeyUpMask)
}

// Translate returns the byte to forward for ev, or false if the event
// must not reach the emulator.
func (k *KeyTranslator) Translate(ev *KeyEvent, mask byte) (byte, bool) {
	if ev.Handled || ev.Repeat {
		return 0, false
	}

	scan, ok := LookupScancode(ev.Key, ev.Location)
	if !ok {
		k.logger.Info("unknown key", log.String("key", ev.Key))
		return 0, false
	}
	return byte(scan) | mask, true
}

func (k *KeyTranslator) handle(ev *KeyEvent, mask byte) error {
	b, ok := k.Translate(ev, mask)
	if !ok {
		return nil
	}
	if err := k.sink.SendKey(b); err != nil {
		return err
	}
	ev.Handled = true
	return nil
}

// KeyStroke is one press or release produced when typing text.
type KeyStroke struct {
	Event KeyEvent
	Up    bool
}

const shiftedSymbols = "!@#$%^&*()_+{}:\"|<>?"

// typeRune expands a character into the strokes that type it on an XT
// keyboard. Control characters below 0x20 are typed with Control held.
func typeRune(r rune) ([]KeyStroke, bool) {
	var key string
	var modifier string

	switch {
	case r == '\r' || r == '\n':
		key = "Enter"
	case r == '\t':
		key = "Tab"
	case r == '\b' || r == 0x7F:
		key = "Backspace"
	case r == 0x1B:
		key = "Escape"
	case r >= 0x01 && r <= 0x1A:
		key = string('a' + r - 1)
		modifier = "Control"
	case r >= 'A' && r <= 'Z':
		key = string(r - 'A' + 'a')
		modifier = "Shift"
	case r > 0x20 && r < 0x7F:
		key = string(r)
		for _, s := range shiftedSymbols {
			if s == r {
				modifier = "Shift"
				break
			}
		}
	case r == ' ':
		key = " "
	default:
		return nil, false
	}

	if _, ok := keyToXT[key]; !ok {
		return nil, false
	}

	strokes := make([]KeyStroke, 0, 4)
	if modifier != "" {
		strokes = append(strokes, KeyStroke{Event: KeyEvent{Key: modifier, Location: LocationLeft}})
	}
	strokes = append(strokes,
		KeyStroke{Event: KeyEvent{Key: key}},
		KeyStroke{Event: KeyEvent{Key: key}, Up: true})
	if modifier != "" {
		strokes = append(strokes, KeyStroke{Event: KeyEvent{Key: modifier, Location: LocationLeft}, Up: true})
	}
	return strokes, true
}

// typeText expands text into key strokes, skipping characters that have
// no XT key.
func typeText(text string) []KeyStroke {
	var strokes []KeyStroke
	for _, r := range text {
		s, ok := typeRune(r)
		if !ok {
			continue
		}
		strokes = append(strokes, s...)
	}
	return strokes
}

// Type forwards a stroke, press or release as recorded.
func (k *KeyTranslator) Type(s KeyStroke) error {
	ev := s.Event
	if s.Up {
		return k.KeyUp(&ev)
	}
	return k.KeyDown(&ev)
}
