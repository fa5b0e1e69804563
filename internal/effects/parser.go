package effects

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// rule pairs a predicate over the lower-cased text with a constructor.
type rule struct {
	name  string
	match func(lower string) bool
	build func(text, lower string) Action
}

var (
	rulesMu sync.RWMutex
	// rules are evaluated in order; the first match wins.
	rules = defaultRules()
)

// Register appends a pattern to the rule table. match and build receive the
// lower-cased text; build also receives the original text.
func Register(name string, match func(lower string) bool, build func(text, lower string) Action) {
	rulesMu.Lock()
	defer rulesMu.Unlock()
	rules = append(rules, rule{name: name, match: match, build: build})
}

// Parse classifies free-form card text into exactly one Action. It never
// fails: unknown text yields KindNone carrying the text for display.
func Parse(text string) Action {
	lower := normalize(text)
	rulesMu.RLock()
	defer rulesMu.RUnlock()
	for _, r := range rules {
		if r.match(lower) {
			a := r.build(text, lower)
			a.Text = text
			a.NeedsPlayerSelect = a.NeedsPlayerSelect || needsSelect(a)
			return a
		}
	}
	return Action{Kind: KindNone, Text: text}
}

func needsSelect(a Action) bool {
	switch a.Kind {
	case KindPaddleSteal, KindSendPlayer, KindBringPlayer, KindPaddleGift, KindSwap:
		return true
	}
	return false
}

func defaultRules() []rule {
	return []rule{
		{
			name:  "draw again",
			match: anyOf("draw again", "draw another", "draw an extra card", "draw one more"),
			build: simple(KindDrawAgain),
		},
		{
			name:  "skip hazard",
			match: func(l string) bool { return has(l, "skip") && hasHazard(l) && !has(l, "turn") },
			build: simple(KindSkipHazard),
		},
		{
			name:  "skip turn",
			match: anyOf("skip your next turn", "skip a turn", "skip next turn", "lose a turn", "lose your next turn", "miss a turn", "miss your next turn"),
			build: simple(KindSkipTurn),
		},
		{
			name:  "extra turn",
			match: anyOf("extra turn", "roll again", "go again", "take another turn", "another roll"),
			build: simple(KindExtraTurn),
		},
		{
			name:  "swap",
			match: func(l string) bool { return has(l, "swap") || has(l, "trade places") || has(l, "switch places") },
			build: simple(KindSwap),
		},
		{
			name:  "steal paddle",
			match: func(l string) bool { return has(l, "paddle") && (has(l, "steal") || has(l, "take a paddle from") || has(l, "take one paddle from")) },
			build: paddles(KindPaddleSteal),
		},
		{
			name: "gift paddle",
			match: func(l string) bool {
				return has(l, "paddle") && (has(l, "give") || has(l, "gift") || has(l, "donate") || has(l, "hand "))
			},
			build: paddles(KindPaddleGift),
		},
		{
			name: "lose paddle",
			match: func(l string) bool {
				return has(l, "paddle") && (has(l, "lose") || has(l, "drop") || has(l, "broke") || has(l, "snap") || has(l, "discard"))
			},
			build: paddles(KindPaddleLose),
		},
		{
			name: "gain paddle",
			match: func(l string) bool {
				return has(l, "paddle") && (has(l, "gain") || has(l, "get") || has(l, "find") || has(l, "collect") || has(l, "take") || has(l, "receive") || has(l, "pick up"))
			},
			build: paddles(KindPaddleGain),
		},
		{
			name:  "send player",
			match: func(l string) bool { return has(l, "send") },
			build: func(text, l string) Action {
				a := Action{Kind: KindSendPlayer, SpaceType: spaceType(l)}
				if a.SpaceType == "" {
					a.Value = number(l, DefaultSendBack)
				}
				return a
			},
		},
		{
			name:  "bring player",
			match: func(l string) bool { return has(l, "bring") || has(l, "pull") },
			build: simple(KindBringPlayer),
		},
		{
			name:  "take lead",
			match: anyOf("take the lead", "move ahead of", "jump ahead of", "into first place", "to first place", "pass the leader"),
			build: func(text, l string) Action {
				return Action{Kind: KindTakeLead, NeedsPlayerSelect: has(l, "ahead of") && !has(l, "leader")}
			},
		},
		{
			name: "go to space",
			match: func(l string) bool {
				return (has(l, "go to") || has(l, "go back to") || has(l, "return to") || has(l, "move to") || has(l, "advance to")) && spaceType(l) != ""
			},
			build: func(text, l string) Action {
				return Action{Kind: KindGoToSpace, SpaceType: spaceType(l)}
			},
		},
		{
			name: "move back",
			match: func(l string) bool {
				return has(l, "back") || has(l, "backward") || has(l, "retreat") || has(l, "upstream")
			},
			build: func(text, l string) Action {
				return Action{Kind: KindMoveBack, Value: number(l, DefaultMoveBack)}
			},
		},
		{
			name: "move forward",
			match: func(l string) bool {
				return has(l, "forward") || has(l, "ahead") || has(l, "advance") || has(l, "downstream") || (has(l, "move") && has(l, "space"))
			},
			build: func(text, l string) Action {
				return Action{Kind: KindMoveForward, Value: number(l, DefaultMoveForward)}
			},
		},
	}
}

func simple(k Kind) func(text, lower string) Action {
	return func(string, string) Action { return Action{Kind: k} }
}

func paddles(k Kind) func(text, lower string) Action {
	return func(_ string, l string) Action {
		return Action{Kind: k, Value: number(l, DefaultPaddles)}
	}
}

func anyOf(phrases ...string) func(lower string) bool {
	return func(l string) bool {
		for _, p := range phrases {
			if strings.Contains(l, p) {
				return true
			}
		}
		return false
	}
}

func has(l, sub string) bool { return strings.Contains(l, sub) }

func hasHazard(l string) bool {
	return has(l, "shit pile") || has(l, "hazard")
}

var spacePhrases = []struct {
	phrase string
	space  string
}{
	{"shit pile", SpaceHazard},
	{"hazard", SpaceHazard},
	{"whirlpool", SpaceWhirlpool},
	{"rapids", SpaceRapids},
	{"paddle space", SpacePaddle},
	{"paddle shop", SpacePaddle},
	{"finish", SpaceFinish},
	{"start", SpaceStart},
	{"beginning", SpaceStart},
}

func spaceType(l string) string {
	for _, sp := range spacePhrases {
		if has(l, sp.phrase) {
			return sp.space
		}
	}
	return ""
}

var (
	digitsRe = regexp.MustCompile(`\d+`)
	wordsRe  = regexp.MustCompile(`\b(one|two|three|four|five|six|seven|eight|nine|ten|a couple of)\b`)
	spaceRe  = regexp.MustCompile(`\s+`)
)

var numberWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"a couple of": 2,
}

// number extracts the first magnitude in l, or def.
func number(l string, def int) int {
	if m := digitsRe.FindString(l); m != "" {
		if n, err := strconv.Atoi(m); err == nil && n > 0 {
			return n
		}
	}
	if m := wordsRe.FindString(l); m != "" {
		return numberWords[m]
	}
	return def
}

func normalize(text string) string {
	l := strings.ToLower(strings.TrimSpace(text))
	l = strings.ReplaceAll(l, "’", "'")
	return spaceRe.ReplaceAllString(l, " ")
}
