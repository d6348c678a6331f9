package analysis

import (
	"context"
	"errors"
	"testing"

	"feedbacker/domain"
	"feedbacker/pkg/config"
)

func TestHeuristicSentiment(t *testing.T) {
	cases := []struct {
		name      string
		text      string
		sentiment string
		score     float64
	}{
		{"no keywords stays neutral", "Блузка красивая, но в плечах тянет, ткань неприятная на ощупь.", domain.SentimentNeutral, 0.5},
		{"positive keyword lifts score", "Всё отлично, спасибо большое!", domain.SentimentPositive, 0.8},
		{"negative keywords sink score", "Плохо, ужасно, хочу возврат.", domain.SentimentNegative, 0},
		{"mixed hits cancel out", "Хорошо, но дорого.", domain.SentimentNeutral, 0.5},
		{"empty text is neutral", "", domain.SentimentNeutral, 0.5},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, score := HeuristicSentiment(tc.text)
			if s != tc.sentiment || score != tc.score {
				t.Fatalf("got (%s, %v), want (%s, %v)", s, score, tc.sentiment, tc.score)
			}

			// same text, same answer
			s2, score2 := HeuristicSentiment(tc.text)
			if s2 != s || score2 != score {
				t.Fatal("heuristic must be deterministic")
			}
		})
	}
}

func TestNormalizeStars(t *testing.T) {
	s, score, err := NormalizeStars([]LabelScore{{Label: "4 stars", Score: 0.8}})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	// single label: weighted average is exactly 4 stars, (4-1)/4 = 0.75
	if s != domain.SentimentPositive || score != 0.75 {
		t.Fatalf("got (%s, %v), want (позитив, 0.75)", s, score)
	}

	s, score, err = NormalizeStars([]LabelScore{
		{Label: "1 star", Score: 0.7},
		{Label: "2 stars", Score: 0.3},
	})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if s != domain.SentimentNegative {
		t.Fatalf("low star mass must be negative, got %s (%v)", s, score)
	}

	// no parsable labels falls back to the 3-star midpoint
	s, score, err = NormalizeStars([]LabelScore{{Label: "whatever", Score: 1}})
	if err != nil || s != domain.SentimentNeutral || score != 0.5 {
		t.Fatalf("got (%s, %v, %v), want (нейтральный, 0.5, nil)", s, score, err)
	}
}

func TestNormalize3Class(t *testing.T) {
	s, score, err := Normalize3Class([]LabelScore{
		{Label: "Positive", Score: 0.81},
		{Label: "Neutral", Score: 0.12},
		{Label: "Negative", Score: 0.07},
	})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if s != domain.SentimentPositive || score != 0.87 {
		t.Fatalf("got (%s, %v), want (позитив, 0.87)", s, score)
	}

	s, _, _ = Normalize3Class([]LabelScore{
		{Label: "negative", Score: 0.9},
		{Label: "positive", Score: 0.05},
	})
	if s != domain.SentimentNegative {
		t.Fatalf("got %s, want негатив", s)
	}
}

func TestDecodeDistributionShapes(t *testing.T) {
	nested := []byte(`[[{"label":"positive","score":0.9}]]`)
	dist, err := decodeDistribution(nested)
	if err != nil || len(dist) != 1 || dist[0].Label != "positive" {
		t.Fatalf("nested shape: %v %v", dist, err)
	}

	flat := []byte(`[{"label":"negative","score":0.4}]`)
	dist, err = decodeDistribution(flat)
	if err != nil || len(dist) != 1 || dist[0].Label != "negative" {
		t.Fatalf("flat shape: %v %v", dist, err)
	}

	if _, err := decodeDistribution([]byte(`{"error":"loading"}`)); err == nil {
		t.Fatal("non-array shape must error")
	}
}

type fakeBackend struct {
	name      string
	err       error
	sentiment string
	score     float64
	calls     int
}

func (b *fakeBackend) Name() string { return b.name }

func (b *fakeBackend) Classify(context.Context, string) (string, float64, error) {
	b.calls++
	if b.err != nil {
		return "", 0, b.err
	}

	return b.sentiment, b.score, nil
}

func TestAnalyzerPromotesLastGoodBackend(t *testing.T) {
	broken := &fakeBackend{name: "broken", err: errors.New("boom")}
	good := &fakeBackend{name: "good", sentiment: domain.SentimentPositive, score: 0.9}

	a := NewAnalyzer(config.SentimentConfig{TimeoutSec: 1}, []Backend{broken, good})

	s, score := a.Analyze(context.Background(), "какой-то текст")
	if s != domain.SentimentPositive || score != 0.9 {
		t.Fatalf("got (%s, %v)", s, score)
	}
	if broken.calls != 1 || good.calls != 1 {
		t.Fatalf("calls = broken %d good %d, want 1/1", broken.calls, good.calls)
	}

	// second call goes straight to the promoted backend
	a.Analyze(context.Background(), "ещё текст")
	if broken.calls != 1 {
		t.Fatalf("broken backend was retried before the last good one")
	}
	if good.calls != 2 {
		t.Fatalf("good backend calls = %d, want 2", good.calls)
	}
}

func TestAnalyzerFallsBackToHeuristic(t *testing.T) {
	broken := &fakeBackend{name: "broken", err: errors.New("boom")}
	a := NewAnalyzer(config.SentimentConfig{TimeoutSec: 1}, []Backend{broken})

	s, score := a.Analyze(context.Background(), "Всё отлично, рекомендую!")
	if s != domain.SentimentPositive || score != 0.8 {
		t.Fatalf("got (%s, %v), want heuristic result (позитив, 0.8)", s, score)
	}
}

func TestFallbackListPromote(t *testing.T) {
	l := NewFallbackList("a", "b", "c")
	l.Promote("c")
	got := l.Snapshot()
	if got[0] != "c" || got[1] != "a" || got[2] != "b" {
		t.Fatalf("order after promote = %v", got)
	}

	l.Promote("missing")
	if l.Snapshot()[0] != "c" {
		t.Fatal("unknown item must not disturb the order")
	}
}

func TestExtractTags(t *testing.T) {
	tags := ExtractTags("размер не подходит, сидит плохо, хочу возврат")
	want := []string{"размер", "возврат", "посадка"}
	if len(tags) != 3 {
		t.Fatalf("tags = %v", tags)
	}
	for i := range want {
		if tags[i] != want[i] {
			t.Fatalf("tags = %v, want %v", tags, want)
		}
	}

	if tags := ExtractTags(""); len(tags) != 1 || tags[0] != DefaultTag {
		t.Fatalf("empty text must yield the default tag, got %v", tags)
	}

	// stems match at word starts only: "кро" must not fire inside
	// "макроэкономика"
	for _, tag := range ExtractTags("макроэкономика сегодня") {
		if tag == "посадка" {
			t.Fatal("substring hit inside a word must not match")
		}
	}
}

func TestExtractTagsFrequencyFallback(t *testing.T) {
	tags := ExtractTags("блузка понравилась, блузка отличная")
	if tags[0] != "блузка" {
		t.Fatalf("repeated content word must rank first, got %v", tags)
	}
}

func TestRedFlags(t *testing.T) {
	escalate, extra := RedFlags("размер не подходит, сидит плохо, хочу возврат")
	if !escalate {
		t.Fatal("red flags must fire")
	}
	found := map[string]bool{}
	for _, tag := range extra {
		found[tag] = true
	}
	if !found["посадка"] || !found["возврат"] {
		t.Fatalf("extra tags = %v", extra)
	}

	escalate, _ = RedFlags("Блузка красивая, но в плечах тянет, ткань неприятная на ощупь.")
	if escalate {
		t.Fatal("benign text must not escalate")
	}
}

func TestFitSizeEscalation(t *testing.T) {
	if !FitSizeEscalation(domain.SentimentNeutral, []string{"размер", "посадка"}) {
		t.Fatal("neutral with fit and size tags must escalate")
	}
	if FitSizeEscalation(domain.SentimentPositive, []string{"размер", "посадка"}) {
		t.Fatal("non-neutral sentiment must not trigger the rule")
	}
	if FitSizeEscalation(domain.SentimentNeutral, []string{"размер"}) {
		t.Fatal("size alone must not trigger the rule")
	}
}

func TestSummarize(t *testing.T) {
	got := Summarize("Блузка красивая. Сидит плохо, хочу возврат. Спасибо.")
	if got != "Сидит плохо, хочу возврат." {
		t.Fatalf("red-flag sentence must win, got %q", got)
	}

	got = Summarize("Блузка красивая. Всё понравилось.")
	if got != "Блузка красивая." {
		t.Fatalf("first sentence must win, got %q", got)
	}

	if got := Summarize("   "); got != "" {
		t.Fatalf("blank input must summarize to empty, got %q", got)
	}
}

func TestSummarizeStripsRepeatedBoilerplate(t *testing.T) {
	got := Summarize("Тест тест тест тест. Куртка отличная.")
	if got != "Куртка отличная." {
		t.Fatalf("every boilerplate occurrence must be stripped, got %q", got)
	}
}

func TestSummarizeTruncates(t *testing.T) {
	long := ""
	for i := 0; i < 60; i++ {
		long += "очень длинное предложение без точки "
	}
	got := Summarize(long)
	if r := []rune(got); len(r) > 200 {
		t.Fatalf("summary length = %d runes", len(r))
	}
	if got[len(got)-len("…"):] != "…" {
		t.Fatalf("truncated summary must end with ellipsis, got %q", got)
	}
}
