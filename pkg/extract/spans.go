package extract

import "regexp"

type span struct{ start, end int }

// claimed tracks byte ranges already consumed by a higher-priority pattern so
// that, for example, "3/4/2026" is not also read as the time "at 3".
type claimed []span

func (c claimed) overlaps(s span) bool {
	for _, o := range c {
		if s.start < o.end && o.start < s.end {
			return true
		}
	}
	return false
}

func (c *claimed) add(s span) { *c = append(*c, s) }

// match is one regexp hit with its submatches and position.
type match struct {
	span
	text   string
	groups []string
}

func findAll(re *regexp.Regexp, text string) []match {
	var out []match
	for _, idx := range re.FindAllStringSubmatchIndex(text, -1) {
		m := match{span: span{idx[0], idx[1]}, text: text[idx[0]:idx[1]]}
		for g := 0; g < len(idx)/2; g++ {
			if idx[2*g] < 0 {
				m.groups = append(m.groups, "")
				continue
			}
			m.groups = append(m.groups, text[idx[2*g]:idx[2*g+1]])
		}
		out = append(out, m)
	}
	return out
}
