package stream

import (
	"regexp"
	"strings"
)

// citationPattern matches inline "(name.ext, Page: value)" references that
// the model tends to echo from the context blocks.
var citationPattern = regexp.MustCompile(`\(\s*[^()\n]{1,120}\.(?i:pdf|docx?|xlsx?|pptx?|png|jpe?g|txt|csv|md)\s*,\s*(?i:page)\s*:?\s*[^)]*\)`)

// colonBulletPattern: a trailing colon flowing straight into a bullet gets
// a blank line between them.
var colonBulletPattern = regexp.MustCompile(`:\n([-*•] )`)

// bulletGapPattern: a blank line between two bullets is collapsed.
var bulletGapPattern = regexp.MustCompile(`(?m)^([-*•] [^\n]*)\n\n([-*•] )`)

// nextStepPattern: the fixed "Next step:" footer always starts its own
// paragraph.
var nextStepPattern = regexp.MustCompile(`([^\n])\n(Next step:)`)

// afterBulletsPattern: a capitalized sentence directly after a bullet run
// starts its own paragraph.
var afterBulletsPattern = regexp.MustCompile(`(?m)^([-*•] [^\n]*)\n([A-Z][a-z])`)

var excessNewlinesPattern = regexp.MustCompile(`\n{3,}`)

var quadBoldPattern = regexp.MustCompile(`\*{4}`)

// symbolRanges are the emoji / decorative glyph blocks stripped from
// generated text.
var symbolRanges = [][2]rune{
	{0x1F1E6, 0x1F1FF},
	{0x1F300, 0x1F5FF},
	{0x1F600, 0x1F64F},
	{0x1F680, 0x1F6FF},
	{0x1F900, 0x1F9FF},
	{0x1FA70, 0x1FAFF},
	{0x2600, 0x26FF},
	{0x2700, 0x27BF},
	{0x2B00, 0x2BFF},
	{0xFE0F, 0xFE0F},
	{0x200D, 0x200D},
}

// Transformer normalizes generated text one delta at a time. Transforms
// never look across deltas: a pattern split over a chunk boundary is an
// accepted miss, trading a little cleanup for forwarding latency.
type Transformer struct{}

func NewTransformer() *Transformer {
	return &Transformer{}
}

// Apply runs the normalization rules in their fixed order. A delta that
// triggers nothing is returned unchanged.
func (t *Transformer) Apply(delta string) string {
	s := delta

	s = citationPattern.ReplaceAllString(s, "")
	s = colonBulletPattern.ReplaceAllString(s, ":\n\n$1")

	// Consecutive bullet gaps overlap, so collapse until stable.
	for {
		collapsed := bulletGapPattern.ReplaceAllString(s, "$1\n$2")
		if collapsed == s {
			break
		}
		s = collapsed
	}

	s = nextStepPattern.ReplaceAllString(s, "$1\n\n$2")
	s = afterBulletsPattern.ReplaceAllString(s, "$1\n\n$2")
	s = excessNewlinesPattern.ReplaceAllString(s, "\n\n")
	s = quadBoldPattern.ReplaceAllString(s, "**")
	s = stripSymbols(s)

	return s
}

func stripSymbols(s string) string {
	if !strings.ContainsFunc(s, isStrippedSymbol) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if !isStrippedSymbol(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isStrippedSymbol(r rune) bool {
	for _, rng := range symbolRanges {
		if r >= rng[0] && r <= rng[1] {
			return true
		}
	}
	return false
}
