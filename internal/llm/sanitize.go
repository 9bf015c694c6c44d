// Package llm produces reply text for candidate posts via a language-model
// completion API. Two providers exist behind the same generate call (the
// Perplexity chat-completions endpoint and Gemini); both feed their raw
// output through Sanitize before it is submitted to the forum.
package llm

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// citationRE matches bracketed numeric citation markers like [1] that
// search-grounded models leave in their answers.
var citationRE = regexp.MustCompile(`\[\d+\]`)

// replyPrefix is the self-identifying prefix some models prepend.
const replyPrefix = "回覆："

// Sanitize normalizes model output into forum-ready reply text: citation
// markers are stripped, a leading reply prefix is removed, newlines become
// literal <br> tags (the forum renders those, raw newlines are swallowed),
// and the text is NFC-normalized. An empty result means the model produced
// nothing usable.
func Sanitize(s string) string {
	s = strings.TrimSpace(s)
	s = citationRE.ReplaceAllString(s, "")
	if rest, ok := strings.CutPrefix(s, replyPrefix); ok {
		s = rest
	}
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\n", "<br>")
	return norm.NFC.String(s)
}
