package poi

import (
	"strings"
	"unicode"
)

type matchResult struct {
	index int
	score float64
}

// stopwords are dropped before comparing names, so "the alamo" and
// "alamo" are the same query.
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "of": true, "to": true,
}

// Match resolves a spoken or typed place name to the best POI. It returns
// the POI, its similarity in [0, 1] and whether the similarity reached the
// index's match threshold.
func (ix *Index) Match(name string) (POI, float64, bool) {
	q := normalizeName(name)
	if q == "" || len(ix.pois) == 0 {
		return POI{}, 0, false
	}

	res, ok := ix.matches.Get(q)
	if !ok {
		res = ix.bestMatch(q)
		ix.matches.Add(q, res)
	}
	if res.index < 0 {
		return POI{}, res.score, false
	}
	return ix.pois[res.index], res.score, res.score >= ix.matchThreshold
}

func (ix *Index) bestMatch(q string) matchResult {
	best := matchResult{index: -1}
	for i, p := range ix.pois {
		score := similarity(q, normalizeName(p.Name))
		for _, a := range p.Aliases {
			if s := similarity(q, normalizeName(a)); s > score {
				score = s
			}
		}
		if score > best.score {
			best = matchResult{index: i, score: score}
		}
	}
	return best
}

// similarity scores two normalized names. Exact matches score 1, whole
// token containment scores by the share of tokens covered, anything else
// falls back to edit distance.
func similarity(q, name string) float64 {
	if q == name {
		return 1
	}
	qt, nt := strings.Fields(q), strings.Fields(name)
	if containsTokens(nt, qt) || containsTokens(qt, nt) {
		shorter, longer := len(qt), len(nt)
		if shorter > longer {
			shorter, longer = longer, shorter
		}
		return 0.7 + 0.3*float64(shorter)/float64(longer)
	}

	maxLen := len([]rune(q))
	if n := len([]rune(name)); n > maxLen {
		maxLen = n
	}
	return 1 - float64(levenshtein(q, name))/float64(maxLen)
}

// containsTokens reports whether every token of sub appears in set.
func containsTokens(set, sub []string) bool {
	if len(sub) == 0 {
		return false
	}
	have := make(map[string]bool, len(set))
	for _, t := range set {
		have[t] = true
	}
	for _, t := range sub {
		if !have[t] {
			return false
		}
	}
	return true
}

func normalizeName(s string) string {
	s = strings.ToLower(s)
	s = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			return r
		case r == '\'':
			return -1
		default:
			return ' '
		}
	}, s)
	fields := strings.Fields(s)
	kept := fields[:0]
	for _, f := range fields {
		if !stopwords[f] {
			kept = append(kept, f)
		}
	}
	return strings.Join(kept, " ")
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}
