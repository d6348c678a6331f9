package analysis

import (
	"regexp"
	"strings"
)

const summaryMaxRunes = 200

var reSentence = regexp.MustCompile(`[^.!?]+[.!?]*`)

// Placeholder utterances that carry no signal and are stripped before
// summarizing.
var boilerplatePhrases = []string{
	"проверка записи",
	"проверка связи",
	"тест тест",
	"раз раз раз",
}

// Summarize picks one representative sentence from the transcript: the
// first sentence containing a red-flag phrase when one exists, otherwise
// the first sentence, truncated to about 200 characters on a word
// boundary.
func Summarize(text string) string {
	clean := strings.Join(strings.Fields(text), " ")
	lower := strings.ToLower(clean)
	for _, phrase := range boilerplatePhrases {
		for {
			idx := strings.Index(lower, phrase)
			if idx < 0 {
				break
			}
			clean = strings.TrimSpace(clean[:idx] + clean[idx+len(phrase):])
			lower = strings.ToLower(clean)
		}
	}
	if clean == "" {
		return ""
	}

	sentences := reSentence.FindAllString(clean, -1)
	for i := range sentences {
		sentences[i] = strings.TrimSpace(sentences[i])
	}

	best := clean
	if len(sentences) > 0 {
		best = sentences[0]
		for _, s := range sentences {
			if matchesRedFlag(s) {
				best = s
				break
			}
		}
	}

	return truncateWords(best, summaryMaxRunes)
}

func truncateWords(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}

	cut := string(runes[:max-1])
	if idx := strings.LastIndexByte(cut, ' '); idx > 0 {
		cut = cut[:idx]
	}

	return strings.TrimRight(cut, " ,;:") + "…"
}
