// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package device

// Keystroke is the key code for one named key and whether Shift must
// be held to produce it. Codes are QEMU qnums: XT set-1 scancodes with
// 0x80 added for E0-prefixed keys.
type Keystroke struct {
	Code  uint16
	Shift bool
}

// Codes of the modifier keys, used when a key needs Shift.
const (
	codeShift uint16 = 0x2a
	codeCtrl  uint16 = 0x1d
	codeAlt   uint16 = 0x38
)

// named holds the keys that are not single printable characters.
var named = map[string]uint16{
	"ESC":     0x01,
	"BKSP":    0x0e,
	"TAB":     0x0f,
	"ENTER":   0x1c,
	"CTRL":    codeCtrl,
	"SHIFT":   codeShift,
	"RSHIFT":  0x36,
	"ALT":     codeAlt,
	"CAPS":    0x3a,
	"F1":      0x3b,
	"F2":      0x3c,
	"F3":      0x3d,
	"F4":      0x3e,
	"F5":      0x3f,
	"F6":      0x40,
	"F7":      0x41,
	"F8":      0x42,
	"F9":      0x43,
	"F10":     0x44,
	"F11":     0x57,
	"F12":     0x58,
	"E_HOME":  0xc7,
	"E_UP":    0xc8,
	"E_PGUP":  0xc9,
	"E_LEFT":  0xcb,
	"E_RIGHT": 0xcd,
	"E_END":   0xcf,
	"E_DOWN":  0xd0,
	"E_PGDN":  0xd1,
	"E_INS":   0xd2,
	"E_DEL":   0xd3,
	"LWIN":    0xdb,
}

// Unshifted and shifted characters sharing a physical key, laid out
// on a US keyboard.
var characterRows = []struct {
	plain, shifted string
	first          uint16
}{
	{"1234567890-=", "!@#$%^&*()_+", 0x02},
	{"qwertyuiop[]", "QWERTYUIOP{}", 0x10},
	{"asdfghjkl;'`", "ASDFGHJKL:\"~", 0x1e},
	{"\\zxcvbnm,./", "|ZXCVBNM<>?", 0x2b},
}

var keystrokes = buildKeystrokes()

func buildKeystrokes() map[string]Keystroke {
	table := make(map[string]Keystroke, 128)
	for name, code := range named {
		table[name] = Keystroke{Code: code}
	}
	for _, row := range characterRows {
		shifted := []rune(row.shifted)
		for i, r := range row.plain {
			code := row.first + uint16(i)
			table[string(r)] = Keystroke{Code: code}
			table[string(shifted[i])] = Keystroke{Code: code, Shift: true}
		}
	}
	table[" "] = Keystroke{Code: 0x39}
	table["\t"] = Keystroke{Code: named["TAB"]}
	table["\n"] = Keystroke{Code: named["ENTER"]}
	return table
}

// Lookup returns the keystroke for a key name: a printable ASCII
// character, or one of the named keys (ENTER, E_UP, F4, ALT, ...).
func Lookup(name string) (Keystroke, bool) {
	stroke, ok := keystrokes[name]
	return stroke, ok
}
