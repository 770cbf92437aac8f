// Package intent maps recognized utterances to tagged intents using a
// configurable phrase vocabulary.
package intent

import (
	"regexp"
	"strings"
	"unicode"
)

// Kind identifies what the pilot asked for.
type Kind int

const (
	Unknown Kind = iota
	Wake
	Wait
	Resume
	Deactivate
	Reset
	SwitchProvider
	CancelNavigation
	NavigationStatus
	Location
	Direction
	Nearby
	Question
)

var kindNames = map[Kind]string{
	Unknown:          "unknown",
	Wake:             "wake",
	Wait:             "wait",
	Resume:           "resume",
	Deactivate:       "deactivate",
	Reset:            "reset",
	SwitchProvider:   "switch_provider",
	CancelNavigation: "cancel_navigation",
	NavigationStatus: "navigation_status",
	Location:         "location",
	Direction:        "direction",
	Nearby:           "nearby",
	Question:         "question",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Control reports whether the intent only drives the conversation state
// and needs no answer.
func (k Kind) Control() bool {
	switch k {
	case Wake, Wait, Resume, Deactivate:
		return true
	}
	return false
}

// Intent is a classified utterance.
type Intent struct {
	Kind Kind
	Text string // the utterance as heard

	// Target is the place name for Direction, or the provider name for
	// SwitchProvider.
	Target string

	// Remainder holds whatever followed the wake phrase, as in
	// "sky tour, where am I".
	Remainder string
}

// Vocabulary lists the phrases recognized for each intent. Matching is
// case-insensitive on whole words.
type Vocabulary struct {
	Wake       []string
	Wait       []string
	Resume     []string
	Deactivate []string
	Reset      []string
	Cancel     []string
	Status     []string
	Location   []string
	Nearby     []string

	// DirectionVerbs introduce a destination: "<verb> to <place>".
	DirectionVerbs []string
}

// DefaultVocabulary returns the built-in phrases. The wake list includes
// common mis-transcriptions of "sky tour".
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Wake:       []string{"sky tour", "skytour", "skye tour", "sky tore", "sky tor", "skator", "scatour"},
		Wait:       []string{"wait", "hold on", "stand by", "standby", "no", "not now", "pause"},
		Resume:     []string{"resume", "continue", "go on", "question", "i have a question", "i'm back"},
		Deactivate: []string{"deactivate", "shut down", "turn off", "goodbye sky tour"},
		Reset:      []string{"reset", "start over"},
		Cancel:     []string{"cancel navigation", "stop navigation", "cancel the route", "cancel directions", "stop guiding"},
		Status:     []string{"how far", "are we there yet", "how long until", "how much longer", "navigation status"},
		Location:   []string{"where am i", "where are we", "what am i flying over", "what's below", "what is below"},
		Nearby:     []string{"what's nearby", "what is nearby", "anything interesting", "what's around", "what can i see", "points of interest", "what's out there"},
		DirectionVerbs: []string{
			"take me", "which way", "how do i get", "navigate", "head", "fly",
			"guide me", "directions", "direct me", "steer me", "bring me",
		},
	}
}

// Classifier classifies utterances against a Vocabulary.
type Classifier struct {
	vocab     Vocabulary
	direction *regexp.Regexp
	whereIs   *regexp.Regexp
	provider  *regexp.Regexp
}

// NewClassifier builds a Classifier for vocab.
func NewClassifier(vocab Vocabulary) *Classifier {
	verbs := make([]string, 0, len(vocab.DirectionVerbs))
	for _, v := range vocab.DirectionVerbs {
		if v = normalize(v); v != "" {
			verbs = append(verbs, regexp.QuoteMeta(v))
		}
	}
	c := &Classifier{
		vocab:    vocab,
		whereIs:  regexp.MustCompile(`\bwhere(?: is|'s|s) (?:the )?(.+)`),
		provider: regexp.MustCompile(`\b(?:switch|change) (?:over )?to (\w+)`),
	}
	if len(verbs) > 0 {
		c.direction = regexp.MustCompile(`\b(?:` + strings.Join(verbs, "|") + `) (?:over )?(?:to|toward|towards|for) (?:the )?(.+)`)
	}
	return c
}

// Classify maps one utterance to an intent. Empty or unintelligible input
// yields Unknown; anything else not matched by the vocabulary is a
// general Question.
func (c *Classifier) Classify(text string) Intent {
	n := normalize(text)
	in := Intent{Kind: Unknown, Text: text}
	if n == "" {
		return in
	}

	// Deactivate phrases may embed the wake phrase.
	if containsAny(n, c.vocab.Deactivate) {
		in.Kind = Deactivate
		return in
	}
	if rest, ok := c.stripWake(n); ok {
		in.Kind = Wake
		in.Remainder = rest
		return in
	}

	switch {
	case shortCommand(n, c.vocab.Wait):
		in.Kind = Wait
	case shortCommand(n, c.vocab.Resume):
		in.Kind = Resume
	case shortCommand(n, c.vocab.Reset):
		in.Kind = Reset
	case c.provider.MatchString(n):
		in.Kind = SwitchProvider
		in.Target = c.provider.FindStringSubmatch(n)[1]
	case containsAny(n, c.vocab.Cancel):
		in.Kind = CancelNavigation
	case containsAny(n, c.vocab.Location):
		in.Kind = Location
	case containsAny(n, c.vocab.Status):
		in.Kind = NavigationStatus
	case containsAny(n, c.vocab.Nearby):
		in.Kind = Nearby
	default:
		if target := c.destination(n); target != "" {
			in.Kind = Direction
			in.Target = target
		} else {
			in.Kind = Question
		}
	}
	return in
}

// stripWake reports whether n contains a wake phrase and returns the words
// after it.
func (c *Classifier) stripWake(n string) (string, bool) {
	padded := " " + n + " "
	for _, w := range c.vocab.Wake {
		w = normalize(w)
		if w == "" {
			continue
		}
		if i := strings.Index(padded, " "+w+" "); i >= 0 {
			rest := strings.TrimSpace(padded[i+len(w)+1:])
			return rest, true
		}
	}
	return "", false
}

func (c *Classifier) destination(n string) string {
	if c.direction != nil {
		if m := c.direction.FindStringSubmatch(n); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	if m := c.whereIs.FindStringSubmatch(n); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// containsAny reports whether any phrase appears in n on word boundaries.
func containsAny(n string, phrases []string) bool {
	padded := " " + n + " "
	for _, p := range phrases {
		if p = normalize(p); p != "" && strings.Contains(padded, " "+p+" ") {
			return true
		}
	}
	return false
}

// shortCommand matches a control phrase only when the utterance is little
// more than the phrase, so "no" does not fire inside a real question.
func shortCommand(n string, phrases []string) bool {
	words := len(strings.Fields(n))
	padded := " " + n + " "
	for _, p := range phrases {
		p = normalize(p)
		if p == "" || !strings.Contains(padded, " "+p+" ") {
			continue
		}
		if words <= len(strings.Fields(p))+2 {
			return true
		}
	}
	return false
}

// normalize lowercases s, keeps apostrophes inside words and turns other
// punctuation into spaces.
func normalize(s string) string {
	s = strings.ToLower(s)
	s = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '\'':
			return r
		case r == '’':
			return '\''
		default:
			return ' '
		}
	}, s)
	return strings.Join(strings.Fields(s), " ")
}
