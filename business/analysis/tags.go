package analysis

import (
	"sort"
	"strings"
	"unicode"
)

// DefaultTag is assigned when nothing else matches; a record never
// carries an empty tag list.
const DefaultTag = "общее"

// MaxTags is the record-level cap. Every tag list that reaches the
// database honors it, including lists reworked by escalation merging.
const MaxTags = 3

// Canonical vocabulary. A rule matches when one of its stems starts a
// word in the text (multi-word stems must start consecutive words).
// Declaration order is match order.
var tagRules = []struct {
	tag   string
	stems []string
}{
	{"качество", []string{"качест", "плохая ткан", "тонкая ткан", "шерст", "синтет", "шов", "нитк", "брак", "разлез", "рвётс", "пил", "комка"}},
	{"размер", []string{"размер", "великоват", "маловат", "сидит", "посадк", "узк", "широк", "длинн", "коротк"}},
	{"материал", []string{"ткан", "материал", "хлопок", "лен", "лён", "шерст", "полиэстер", "натурал", "состав"}},
	{"цвет", []string{"цвет", "оттенок", "выцвет", "пятн"}},
	{"цена", []string{"цена", "дорог", "дешев", "стоимос", "переплат"}},
	{"доставка", []string{"доставк", "курьер", "пункт выдач", "самовывоз", "привез", "задерж", "срок"}},
	{"сервис", []string{"продавц", "консультант", "сотрудник", "обслужив", "поддержк", "менеджер"}},
	{"возврат", []string{"возврат", "вернул", "обмен", "гарант"}},
	{"посадка", []string{"сидит", "посадк", "облега", "свободн", "фасон", "кро"}},
}

var tagStopwords = map[string]bool{
	"очень": true, "просто": true, "только": true, "когда": true,
	"потому": true, "чтобы": true, "может": true, "можно": true,
	"вообще": true, "всегда": true, "сейчас": true, "здесь": true,
	"почему": true, "который": true, "которая": true, "которое": true,
	"немного": true, "сегодня": true, "хочется": true, "будет": true,
	"этого": true, "всего": true,
}

// ExtractTags maps a transcript to 1..3 canonical tags. Canonical rule
// matches come first; if they under-produce, frequent content words fill
// the remainder; an empty result collapses to DefaultTag.
func ExtractTags(text string) []string {
	words := tokenize(text)

	var tags []string
	for _, rule := range tagRules {
		for _, stem := range rule.stems {
			if matchStem(words, stem) {
				tags = append(tags, rule.tag)
				break
			}
		}
	}

	if len(tags) < MaxTags {
		tags = append(tags, frequentWords(words)...)
	}

	tags = dedupe(tags)
	if len(tags) > MaxTags {
		tags = tags[:MaxTags]
	}
	if len(tags) == 0 {
		tags = []string{DefaultTag}
	}

	return tags
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
}

// matchStem checks a stem (possibly multi-word) against word starts, so
// "размер" matches "размером" but "кро" never matches inside "макро".
func matchStem(words []string, stem string) bool {
	parts := strings.Fields(stem)
	if len(parts) == 0 {
		return false
	}

	for i := 0; i+len(parts) <= len(words); i++ {
		ok := true
		for j, p := range parts {
			if !strings.HasPrefix(words[i+j], p) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}

	return false
}

type wordCount struct {
	word  string
	count int
	first int
}

// frequentWords is the fallback source of tag candidates: content words
// of 5+ letters ranked by occurrence count.
func frequentWords(words []string) []string {
	seen := make(map[string]*wordCount)
	var order []*wordCount
	for i, w := range words {
		if len([]rune(w)) < 5 || tagStopwords[w] {
			continue
		}
		if e, ok := seen[w]; ok {
			e.count++
			continue
		}
		e := &wordCount{word: w, count: 1, first: i}
		seen[w] = e
		order = append(order, e)
	}

	minCount := 2
	qualified := filterByCount(order, minCount)
	if len(qualified) == 0 {
		qualified = filterByCount(order, 1)
	}

	sort.SliceStable(qualified, func(i, j int) bool {
		if qualified[i].count != qualified[j].count {
			return qualified[i].count > qualified[j].count
		}

		return qualified[i].first < qualified[j].first
	})

	out := make([]string, 0, 5)
	for _, e := range qualified {
		out = append(out, e.word)
		if len(out) == 5 {
			break
		}
	}

	return out
}

func filterByCount(entries []*wordCount, min int) []*wordCount {
	var out []*wordCount
	for _, e := range entries {
		if e.count >= min {
			out = append(out, e)
		}
	}

	return out
}

func dedupe(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := tags[:0]
	for _, t := range tags {
		key := strings.ToLower(t)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}

	return out
}
