// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package interpreter turns a free-text chat message into the ordered
// list of device actions it triggers.
//
// [Interpreter.Interpret] is a pure function of the message, the
// caller-owned [State] and the interpreter's seeded random source. The
// only randomized decision is which word of the message gets typed;
// cursor deltas come from [LCG], a fixed linear congruential generator
// seeded by properties of the sender, so the same viewer moves the
// cursor the same way on every port of this program.
//
// Classification is priority-ordered, first match wins:
//
//  1. first word is a direct key (up, down, a, b, start, "!song", ...)
//  2. any word is an extra keyword (emotes and phrases mapped to keys)
//  3. first word is an interrupt trigger ("!kapow", "!fissure", ...)
//  4. first word starts with "@": Alt-Tab once per following character
//  5. "!a" or a left-click word: left click
//  6. "!b" or a right-click word: right click
//  7. "!c": left button down (drag start)
//  8. "!d": button up (drag end)
//  9. "!-" or a cursor word: sender-derived move or re-center
//  10. "!bet <amount> <team>": amount-derived move for blue/red
//  11. a reset word, rate limited by the input counter
//
// "!move X" is read as "!X" before classification. Unless rule 1
// fired, one random word of the message is also typed.
//
// The keyword tables reflect the last revision of the channel's rules.
// Earlier revisions differed in both tables and rule order; the tables
// are a product decision, not an invariant.
package interpreter
