package analysis

import (
	"regexp"
	"strings"

	"feedbacker/domain"
)

// High-severity phrase patterns. Any match escalates the record to
// negative regardless of what the base classifier said; some patterns
// also contribute an extra canonical tag.
var redFlagRules = []struct {
	re       *regexp.Regexp
	extraTag string
}{
	{regexp.MustCompile(`не\s+очень`), ""},
	{regexp.MustCompile(`сидит\s+плохо|плохо\s+сидит|не\s+подходит`), "посадка"},
	{regexp.MustCompile(`ужасн|кошмар`), ""},
	{regexp.MustCompile(`брак|дефект|разлез|рв[её]тс`), "качество"},
	{regexp.MustCompile(`сломан|не\s+работает`), ""},
	{regexp.MustCompile(`грязн`), ""},
	{regexp.MustCompile(`запах|воня`), ""},
	{regexp.MustCompile(`грубо|нахам`), ""},
	{regexp.MustCompile(`слишком\s+дорого|очень\s+дорого|переплат`), ""},
	{regexp.MustCompile(`слишком\s+долго|очень\s+долго|задержал`), ""},
	{regexp.MustCompile(`разочарован`), ""},
	{regexp.MustCompile(`возврат|верну|обмен`), "возврат"},
}

const (
	// Escalation clamps applied by the pipeline when merging.
	RedFlagMaxScore = 0.35
	FitSizeMaxScore = 0.40
)

// RedFlags scans the transcript for high-severity phrases.
func RedFlags(text string) (escalate bool, extraTags []string) {
	t := strings.ToLower(text)
	for _, rule := range redFlagRules {
		if !rule.re.MatchString(t) {
			continue
		}
		escalate = true
		if rule.extraTag != "" {
			extraTags = append(extraTags, rule.extraTag)
		}
	}

	return escalate, dedupe(extraTags)
}

// FitSizeEscalation is a separate, named rule: a neutral record that
// carries both the fit and the size tag describes the "fits oddly for
// this size" complaint that generic models under-detect, so it is
// treated as negative with a softer clamp than the red-flag list.
func FitSizeEscalation(sentiment string, tags []string) bool {
	if sentiment != domain.SentimentNeutral {
		return false
	}

	var fit, size bool
	for _, t := range tags {
		switch t {
		case "посадка":
			fit = true
		case "размер":
			size = true
		}
	}

	return fit && size
}

func matchesRedFlag(sentence string) bool {
	s := strings.ToLower(sentence)
	for _, rule := range redFlagRules {
		if rule.re.MatchString(s) {
			return true
		}
	}

	return false
}
