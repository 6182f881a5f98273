// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package interpreter

import (
	"math/big"
	"math/rand/v2"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/bureau-foundation/vmchat/lib/action"
)

// State is the per-process input state. The dispatcher owns it and
// is its only writer.
type State struct {
	// InputCounter counts interpreted non-empty messages. It drives
	// reset rate limiting and the screenshot cadence.
	InputCounter uint64

	// Buttons holds the mouse buttons currently pressed (drag state).
	// The device executor reads and updates it.
	Buttons action.Button
}

// Interpreter classifies chat messages. Not safe for concurrent use.
type Interpreter struct {
	random *rand.Rand
}

// New returns an Interpreter whose word choice is driven by seed. Two
// interpreters with the same seed make the same choices.
func New(seed uint64) *Interpreter {
	return &Interpreter{random: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// message is a normalized chat message.
type message struct {
	sender    string
	words     []string
	lowered   []string
	wordSet   map[string]struct{}
	firstWord string
}

func normalize(event action.ChatEvent) message {
	words := strings.Fields(event.Text)
	lowered := make([]string, len(words))
	set := make(map[string]struct{}, len(words))
	for i, word := range words {
		lowered[i] = strings.ToLower(word)
		set[lowered[i]] = struct{}{}
	}

	msg := message{
		sender:  strings.ToLower(event.Sender),
		words:   words,
		lowered: lowered,
		wordSet: set,
	}
	if len(lowered) > 0 {
		msg.firstWord = lowered[0]
		if msg.firstWord == moveVerb && len(lowered) >= 2 {
			msg.firstWord = "!" + lowered[1]
		}
	}
	return msg
}

func (m message) has(set map[string]struct{}) bool {
	for word := range m.wordSet {
		if _, ok := set[word]; ok {
			return true
		}
	}
	return false
}

// Interpret returns the actions for event in execution order and
// advances state.InputCounter. A message with no words yields nothing
// and leaves the counter alone; every other message advances it by
// one, including messages that produce no action.
func (i *Interpreter) Interpret(event action.ChatEvent, state *State) []action.Action {
	msg := normalize(event)
	if len(msg.words) == 0 {
		return nil
	}
	defer func() { state.InputCounter++ }()

	var actions []action.Action
	var ok bool

	key, direct := directKeys[msg.firstWord]
	if direct {
		actions = append(actions, action.KeyPress{Key: key})
	} else {
		actions, ok = classify(msg, state)
		if !ok {
			return nil
		}
		if word, typeable := i.pickWord(msg.words); typeable {
			actions = append(actions, action.TypeWord{Word: word})
		}
	}
	return actions
}

// classify applies rules 2 through 11. It returns false when the
// message must be ignored entirely (a malformed bet).
func classify(msg message, state *State) ([]action.Action, bool) {
	senderLength := utf8.RuneCountInString(msg.sender)

	if combo, matched := extraKeyword(msg); matched {
		return []action.Action{action.KeyPress{Key: combo.key, Modifier: combo.modifier}}, true
	}

	if _, ok := interruptWords[msg.firstWord]; ok {
		return []action.Action{action.SendInterrupt{}}, true
	}

	if strings.HasPrefix(msg.firstWord, "@") {
		count := min(maxAltTabs, utf8.RuneCountInString(msg.firstWord)-1)
		return []action.Action{action.AltTabCycle{Count: count}}, true
	}

	switch {
	case msg.firstWord == "!a" || msg.has(leftClickWords):
		return []action.Action{action.MouseClick{Button: action.ButtonLeft}}, true
	case msg.firstWord == "!b" || msg.has(rightClickWords):
		return []action.Action{action.MouseClick{Button: action.ButtonRight}}, true
	case msg.firstWord == "!c":
		return []action.Action{action.MouseButtonDown{Button: action.ButtonLeft}}, true
	case msg.firstWord == "!d":
		return []action.Action{action.MouseButtonUp{}}, true
	case msg.firstWord == "!-" || msg.has(cursorMoveWords):
		return []action.Action{cursorAction(senderLength)}, true
	case msg.firstWord == "!bet":
		return betAction(msg, senderLength)
	case msg.has(resetWords) && state.InputCounter%uint64(len(resetWords)) == 0:
		return []action.Action{action.ResetMachine{}}, true
	}
	return nil, true
}

func extraKeyword(msg message) (keyCombo, bool) {
	var matches []string
	for word := range msg.wordSet {
		if _, ok := extraKeywords[word]; ok {
			matches = append(matches, word)
		}
	}
	if len(matches) == 0 {
		return keyCombo{}, false
	}
	sort.Strings(matches)
	return extraKeywords[matches[0]], true
}

// cursorAction derives a move from the sender's name length alone, so
// each viewer has a fixed direction and distance.
func cursorAction(senderLength int) action.Action {
	delta := cursorDelta(int64(senderLength))
	magnitude := delta
	if magnitude < 0 {
		magnitude = -magnitude
	}
	switch {
	case delta == 0 || (senderLength%4 == 0 && 3*magnitude < MaxMouseMove):
		return action.CenterCursor{}
	case senderLength%2 == 0:
		return action.MouseMove{DX: delta}
	default:
		return action.MouseMove{DY: delta}
	}
}

// betAction handles "!bet <amount> <team>". A missing or non-integer
// amount makes the whole message ignored. Teams other than blue and
// red are accepted but move nothing.
func betAction(msg message, senderLength int) ([]action.Action, bool) {
	if len(msg.words) < 3 {
		return nil, false
	}
	amount, ok := betAmount(msg.words[1])
	if !ok {
		return nil, false
	}

	delta := cursorDelta(amount * int64(senderLength))
	switch msg.lowered[2] {
	case "blue":
		return []action.Action{action.MouseMove{DX: delta}}, true
	case "red":
		return []action.Action{action.MouseMove{DY: delta}}, true
	}
	return nil, true
}

// lcgModulus is 2^31. The LCG only sees its seed modulo this value.
var lcgModulus = new(big.Int).Lsh(big.NewInt(1), 31)

// betAmount parses an integer of any size and reduces it modulo 2^31,
// which leaves the cursor delta unchanged.
func betAmount(text string) (int64, bool) {
	amount, ok := new(big.Int).SetString(text, 10)
	if !ok {
		return 0, false
	}
	return amount.Mod(amount, lcgModulus).Int64(), true
}

// pickWord chooses one of the message's words, truncated, and reports
// whether it can be typed (7-bit ASCII only).
func (i *Interpreter) pickWord(words []string) (string, bool) {
	word := []rune(words[i.random.IntN(len(words))])
	if len(word) > maxTypedWordLength {
		word = word[:maxTypedWordLength]
	}
	for _, r := range word {
		if r >= utf8.RuneSelf {
			return "", false
		}
	}
	return string(word), true
}
