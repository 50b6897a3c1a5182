package extract

import "regexp"

type urgencyCue struct {
	word   string
	re     *regexp.Regexp
	weight int
}

func cues(weight int, words ...string) []urgencyCue {
	out := make([]urgencyCue, 0, len(words))
	for _, w := range words {
		out = append(out, urgencyCue{word: w, re: regexp.MustCompile(`\b` + w + `\b`), weight: weight})
	}
	return out
}

// Each distinct cue word counts once.
var urgencyCues = concat(
	cues(2, "urgent", "asap", "emergency", "immediately", "now", "today"),
	cues(1, "important", "priority", "critical", "must", "need to", "deadline"),
	cues(-1, "whenever", "sometime", "eventually", "maybe"),
)

func concat(lists ...[]urgencyCue) []urgencyCue {
	var out []urgencyCue
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}

// scoreUrgency starts at the default and applies every cue present in the
// normalized text. The returned cues are the words that matched.
func scoreUrgency(norm string) (int, []string) {
	score := DefaultUrgency
	var matched []string
	for _, c := range urgencyCues {
		if c.re.MatchString(norm) {
			score += c.weight
			matched = append(matched, c.word)
		}
	}
	return ClampUrgency(score), matched
}

// HasExplicitUrgency reports whether the bag's urgency came from an urgent or
// important cue rather than the default.
func (b EntityBag) HasExplicitUrgency() bool {
	for _, w := range b.UrgencyCues {
		for _, c := range urgencyCues {
			if c.word == w && c.weight > 0 {
				return true
			}
		}
	}
	return false
}
