// Package pagetext prepares extracted book page text for speech synthesis.
package pagetext

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Regex patterns for page cleanup.
const (
	referenceRegexPattern  = `\[\d+(?:[,\-–]\s*\d+)*\]|[¹²³⁴⁵⁶⁷⁸⁹⁰]+`
	citationRegexPattern   = `\([^()]*,\s*\d{4}[a-z]?\)`
	hyphenBreakPattern     = `(\p{L})-\s*\n\s*(\p{L})`
	whitespaceRegexPattern = `\s+`
	spaceBeforePunctRegex  = `\s+([,.;:!?])`
)

// Punctuation and formatting constants.
const (
	emDash       = "—"
	enDash       = "–"
	figureDash   = "‒"
	ellipsis     = "..."
	ellipsisChar = "…"
)

// Cleaner normalizes page text. It is safe for concurrent use.
type Cleaner struct {
	referencePattern   *regexp.Regexp
	citationPattern    *regexp.Regexp
	hyphenBreak        *regexp.Regexp
	whitespacePattern  *regexp.Regexp
	spaceBeforePunct   *regexp.Regexp
	punctuationReplace *strings.Replacer
}

// NewCleaner creates a Cleaner with its patterns compiled.
func NewCleaner() *Cleaner {
	return &Cleaner{
		referencePattern:  regexp.MustCompile(referenceRegexPattern),
		citationPattern:   regexp.MustCompile(citationRegexPattern),
		hyphenBreak:       regexp.MustCompile(hyphenBreakPattern),
		whitespacePattern: regexp.MustCompile(whitespaceRegexPattern),
		spaceBeforePunct:  regexp.MustCompile(spaceBeforePunctRegex),
		punctuationReplace: strings.NewReplacer(
			emDash, " - ",
			enDash, "-",
			figureDash, "-",
			ellipsisChar, ellipsis,
			"“", `"`, "”", `"`,
			"‘", "'", "’", "'",
		),
	}
}

// Clean joins words hyphenated across line breaks, drops reference markers
// and author-year citations such as "(Smith, 2019)", collapses whitespace
// and terminates the last sentence. Text with nothing speakable left
// returns "".
func (c *Cleaner) Clean(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}

	cleaned := c.hyphenBreak.ReplaceAllString(text, "$1$2")
	cleaned = c.referencePattern.ReplaceAllString(cleaned, "")
	cleaned = c.citationPattern.ReplaceAllString(cleaned, "")
	cleaned = c.punctuationReplace.Replace(cleaned)
	cleaned = c.whitespacePattern.ReplaceAllString(cleaned, " ")
	cleaned = c.spaceBeforePunct.ReplaceAllString(cleaned, "$1")

	return terminateSentence(strings.TrimSpace(cleaned))
}

func terminateSentence(text string) string {
	if !hasSpeakableRune(text) {
		return ""
	}

	lastChar, _ := utf8.DecodeLastRuneInString(text)

	switch lastChar {
	case '.', '!', '?', '"', '\'', ')':
		return text
	default:
		return text + "."
	}
}

func hasSpeakableRune(text string) bool {
	for _, char := range text {
		if unicode.IsLetter(char) || unicode.IsDigit(char) {
			return true
		}
	}

	return false
}
