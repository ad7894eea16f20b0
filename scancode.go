// Copyright 2021-2024 Sebastian Lederer. See the file LICENSE.md for details
package main

// Scancode is a PC/XT Model F keyboard scancode (make code).
type Scancode byte

const (
	ScanInvalid Scancode = 0x00
	Scan5       Scancode = 0x06
	ScanLShift  Scancode = 0x2A
	ScanRShift  Scancode = 0x36
	ScanKP5     Scancode = 0x4C

	KeyUpMask byte = 0x80
)

// Location is the physical position of a key that exists more than once
// on the keyboard. Values match the DOM KeyboardEvent numbering.
type Location int

const (
	LocationStandard Location = iota
	LocationLeft
	LocationRight
	LocationNumpad
)

func (l Location) String() string {
	switch l {
	case LocationLeft:
		return "left"
	case LocationRight:
		return "right"
	case LocationNumpad:
		return "numpad"
	}
	return "standard"
}

type scancodeEntry struct {
	code    Scancode
	located bool // needs locatedScancodes to pick the variant
}

func plain(c Scancode) scancodeEntry   { return scancodeEntry{code: c} }
func located(c Scancode) scancodeEntry { return scancodeEntry{code: c, located: true} }

// keyToXT maps host key identities to XT scancodes. Shifted and unshifted
// labels of the same key share one code.
var keyToXT = map[string]scancodeEntry{
	"Escape": plain(1),
	"1": plain(2), "!": plain(2),
	"2": plain(3), "@": plain(3),
	"3": plain(4), "#": plain(4),
	"4": plain(5), "$": plain(5),
	"5": located(Scan5), "%": plain(Scan5),
	"6": plain(7), "^": plain(7),
	"7": plain(8), "&": plain(8),
	"8": plain(9), "*": plain(9),
	"9": plain(10), "(": plain(10),
	"0": plain(11), ")": plain(11),
	"-": plain(12), "_": plain(12),
	"=": plain(13), "+": plain(13),
	"Backspace": plain(14),
	"Tab":       plain(15),
	"q": plain(16), "Q": plain(16),
	"w": plain(17), "W": plain(17),
	"e": plain(18), "E": plain(18),
	"r": plain(19), "R": plain(19),
	"t": plain(20), "T": plain(20),
	"y": plain(21), "Y": plain(21),
	"u": plain(22), "U": plain(22),
	"i": plain(23), "I": plain(23),
	"o": plain(24), "O": plain(24),
	"p": plain(25), "P": plain(25),
	"[": plain(26), "{": plain(26),
	"]": plain(27), "}": plain(27),
	"Enter":   plain(28),
	"Control": plain(29),
	"a": plain(30), "A": plain(30),
	"s": plain(31), "S": plain(31),
	"d": plain(32), "D": plain(32),
	"f": plain(33), "F": plain(33),
	"g": plain(34), "G": plain(34),
	"h": plain(35), "H": plain(35),
	"j": plain(36), "J": plain(36),
	"k": plain(37), "K": plain(37),
	"l": plain(38), "L": plain(38),
	";": plain(39), ":": plain(39),
	"'": plain(40), "\"": plain(40),
	"`":     plain(41),
	"Shift": located(ScanLShift),
	"\\": plain(43), "|": plain(43),
	"z": plain(44), "Z": plain(44),
	"x": plain(45), "X": plain(45),
	"c": plain(46), "C": plain(46),
	"v": plain(47), "V": plain(47),
	"b": plain(48), "B": plain(48),
	"n": plain(49), "N": plain(49),
	"m": plain(50), "M": plain(50),
	",": plain(51), "<": plain(51),
	".": plain(52), ">": plain(52),
	"/": plain(53), "?": plain(53),
	"PrintScreen": plain(55),
	"Alt":         plain(56),
	" ":           plain(57),
	"CapsLock":    plain(58),
	"F1":          plain(59),
	"F2":          plain(60),
	"F3":          plain(61),
	"F4":          plain(62),
	"F5":          plain(63),
	"F6":          plain(64),
	"F7":          plain(65),
	"F8":          plain(66),
	"F9":          plain(67),
	"F10":         plain(68),
	"NumLock":     plain(69),
	"ScrollLock":  plain(70),
	"Home":        plain(71),
	"ArrowUp":     plain(72),
	"PageUp":      plain(73),
	"Subtract":    plain(74),
	"ArrowLeft":   plain(75),
	"ArrowRight":  plain(77),
	"Add":         plain(78),
	"End":         plain(79),
	"ArrowDown":   plain(80),
	"PageDown":    plain(81),
	"Insert":      plain(82),
	"Delete":      plain(83),
}

// locatedScancodes holds the alternate codes for keys that share a label
// with another physical key.
var locatedScancodes = map[Scancode]map[Location]Scancode{
	ScanLShift: {LocationRight: ScanRShift},
	Scan5:      {LocationNumpad: ScanKP5},
}

// LookupScancode resolves a host key identity at a physical location.
func LookupScancode(key string, loc Location) (Scancode, bool) {
	e, ok := keyToXT[key]
	if !ok {
		return ScanInvalid, false
	}
	if e.located {
		if alt, ok := locatedScancodes[e.code][loc]; ok {
			return alt, true
		}
	}
	return e.code, true
}
