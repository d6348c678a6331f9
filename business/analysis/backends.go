package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"feedbacker/domain"
	"feedbacker/pkg/config"
	"feedbacker/pkg/utils"
)

// Backend classifies a transcript into a sentiment label and a 0..1
// positivity score.
type Backend interface {
	Name() string
	Classify(ctx context.Context, text string) (string, float64, error)
}

// LabelScore is the normalized boundary type for inference responses.
// Upstream shapes vary (flat array vs nested array); everything is
// converted to this immediately after the HTTP call.
type LabelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

const (
	kindStars5 = "stars5"
	kind3Class = "3class"
)

// HFBackend calls one Hugging Face Inference API model.
type HFBackend struct {
	name   string
	model  string
	kind   string
	base   string
	apiKey string
	client *http.Client
}

// NewHFBackends returns the remote backend chain in priority order, or
// nil when no API key is configured and only the local heuristic remains.
func NewHFBackends(cfg config.SentimentConfig) []Backend {
	if cfg.HuggingFaceKey == "" {
		return nil
	}

	client := &http.Client{}

	return []Backend{
		&HFBackend{
			name:   "hf-stars5",
			model:  "nlptown/bert-base-multilingual-uncased-sentiment",
			kind:   kindStars5,
			base:   cfg.HuggingFaceURL,
			apiKey: cfg.HuggingFaceKey,
			client: client,
		},
		&HFBackend{
			name:   "hf-3class",
			model:  "cardiffnlp/twitter-xlm-roberta-base-sentiment",
			kind:   kind3Class,
			base:   cfg.HuggingFaceURL,
			apiKey: cfg.HuggingFaceKey,
			client: client,
		},
	}
}

func (b *HFBackend) Name() string {
	return b.name
}

func (b *HFBackend) Classify(ctx context.Context, text string) (string, float64, error) {
	dist, err := b.call(ctx, text, true)
	if err != nil {
		return "", 0, err
	}

	switch b.kind {
	case kindStars5:
		return NormalizeStars(dist)
	case kind3Class:
		return Normalize3Class(dist)
	default:
		return "", 0, fmt.Errorf("unknown backend kind %q", b.kind)
	}
}

func (b *HFBackend) call(ctx context.Context, text string, retryWarmup bool) ([]LabelScore, error) {
	body, err := json.Marshal(map[string]any{
		"inputs": text,
		"options": map[string]any{
			"wait_for_model": true,
			"use_cache":      true,
		},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		b.base+"/"+b.model, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+b.apiKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	// 503/524 means the model is still warming up; give it a moment and
	// retry once before falling through to the next backend.
	if (res.StatusCode == http.StatusServiceUnavailable || res.StatusCode == 524) && retryWarmup {
		io.Copy(io.Discard, res.Body)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}

		return b.call(ctx, text, false)
	}

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, fmt.Errorf("inference api %d: %s", res.StatusCode, strings.TrimSpace(string(raw)))
	}

	return decodeDistribution(raw)
}

// decodeDistribution accepts both [{label,score},...] and the nested
// [[{label,score},...]] shape.
func decodeDistribution(raw []byte) ([]LabelScore, error) {
	var nested [][]LabelScore
	if err := json.Unmarshal(raw, &nested); err == nil && len(nested) > 0 {
		return nested[0], nil
	}

	var flat []LabelScore
	if err := json.Unmarshal(raw, &flat); err == nil && len(flat) > 0 {
		return flat, nil
	}

	return nil, fmt.Errorf("unexpected inference response shape: %s", strings.TrimSpace(string(raw)))
}

var reStarDigit = regexp.MustCompile(`(\d)`)

// NormalizeStars maps a "1 star".."5 stars" distribution onto a
// positivity score: weighted average star value rescaled from 1..5 to
// 0..1.
func NormalizeStars(dist []LabelScore) (string, float64, error) {
	var sum, weight float64
	for _, it := range dist {
		m := reStarDigit.FindString(it.Label)
		if m == "" {
			continue
		}
		stars, _ := strconv.ParseFloat(m, 64)
		sum += stars * it.Score
		weight += it.Score
	}

	avg := 3.0
	if weight > 0 {
		avg = sum / weight
	}
	positivity := round2(utils.Clamp01((avg - 1) / 4))

	return sentimentFromScore(positivity), positivity, nil
}

// Normalize3Class picks the dominant label from a
// positive/neutral/negative distribution and combines positive mass
// with inverse negative mass into a positivity score.
func Normalize3Class(dist []LabelScore) (string, float64, error) {
	by := make(map[string]float64, len(dist))
	for _, it := range dist {
		by[strings.ToLower(it.Label)] = it.Score
	}

	pos := by["positive"] + by["pos"]
	neu := by["neutral"]
	neg := by["negative"] + by["neg"]

	sentiment := domain.SentimentNeutral
	if pos >= neg && pos >= neu {
		sentiment = domain.SentimentPositive
	} else if neg >= pos && neg >= neu {
		sentiment = domain.SentimentNegative
	}

	return sentiment, round2(utils.Clamp01((pos + (1 - neg)) / 2)), nil
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
