// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package interpreter

// MaxMouseMove bounds the cursor delta produced by cursor words and
// bets: deltas fall in [-MaxMouseMove, MaxMouseMove).
const MaxMouseMove = 64

// maxTypedWordLength truncates the typed word.
const maxTypedWordLength = 32

// maxAltTabs caps the number of Tab presses from one "@" word.
const maxAltTabs = 10

// moveVerb rewrites "!move X" to "!X".
const moveVerb = "!move"

// directKeys maps a first word to a single key press.
var directKeys = map[string]string{
	"up":       "E_UP",
	"down":     "E_DOWN",
	"left":     "E_LEFT",
	"right":    "E_RIGHT",
	"a":        "ENTER",
	"b":        "BKSP",
	"select":   "TAB",
	"start":    "LWIN",
	"!balance": "E_DEL",
	"!match":   "E_INS",
	"!tokens":  "ESC",
	"!song":    "ESC",
	"!slots":   "CAPS",
}

type keyCombo struct {
	key      string
	modifier string
}

// extraKeywords maps a word anywhere in the message to a key press.
// When several match, the lexicographically smallest wins.
var extraKeywords = map[string]keyCombo{
	"balance":      {key: "E_DEL"},
	"biblethump":   {key: "E_DEL"},
	"pokemon":      {key: "E_DEL"},
	"match":        {key: "E_INS"},
	"tokens":       {key: "ESC"},
	"deilluminati": {key: "ESC"},
	"music":        {key: "ESC"},
	"slots":        {key: "CAPS"},
	"kapow":        {key: "CAPS"},
	"entei":        {key: "f", modifier: "ALT"},
	"chatot":       {key: "s", modifier: "CTRL"},
	"blaziken":     {key: "F4", modifier: "ALT"},
}

// interruptWords send Ctrl-Alt-Del when used as the first word.
var interruptWords = wordSet(
	"!kapow",
	"!fissure",
	"!sheercold", "!sheer",
	"!guillotine",
	"!horndrill", "!horn",
	"!explosion",
	"!selfdestruct", "!self",
)

var leftClickWords = wordSet("a", "an", "the", "this", "and", "i")

var rightClickWords = wordSet("***", "wow", "streamer", "naughty")

var cursorMoveWords = wordSet(
	"kappa", "trihard", "wutface", "onehand", "dansgame", "failfish",
	"brokeback", "residentsleeper",
)

// resetWords come from chat moderation notices. A reset fires only
// when the input counter is a multiple of len(resetWords).
var resetWords = wordSet("/me", "non-whitelisted", "excessive")

func wordSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, word := range words {
		set[word] = struct{}{}
	}
	return set
}
