package analysis

import (
	"strings"

	"feedbacker/domain"
	"feedbacker/pkg/utils"
)

// Lexical fallback for Russian transcripts. Used when every remote
// backend fails or none is configured; it is pure and cannot fail.

var heuristicPositive = []string{
	"отлично", "супер", "нравится", "класс", "хорошо", "удобно",
	"спасибо", "люблю", "рекомендую", "понравилось", "идеально", "быстро",
}

var heuristicNegative = []string{
	"плохо", "ужасно", "ненавижу", "не нравится", "дорого", "долго",
	"грубо", "проблема", "не работает", "ужас", "кошмар",
	"разочарование", "возврат", "брак", "грязно",
}

// HeuristicSentiment counts positive and negative keyword hits and maps
// the balance onto a 0..1 positivity score with 0.5 as the neutral base.
func HeuristicSentiment(text string) (string, float64) {
	t := strings.ToLower(text)

	var p, n int
	for _, w := range heuristicPositive {
		if strings.Contains(t, w) {
			p++
		}
	}
	for _, w := range heuristicNegative {
		if strings.Contains(t, w) {
			n++
		}
	}

	score := 0.5
	if p != 0 || n != 0 {
		score = utils.Clamp01(0.5 + 0.15*float64(p-n))
	}

	return sentimentFromScore(score), round2(score)
}

func sentimentFromScore(score float64) string {
	switch {
	case score > 0.6:
		return domain.SentimentPositive
	case score < 0.4:
		return domain.SentimentNegative
	default:
		return domain.SentimentNeutral
	}
}
