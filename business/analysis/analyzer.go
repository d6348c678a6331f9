package analysis

import (
	"context"
	"strings"
	"time"

	"feedbacker/domain"
	"feedbacker/pkg/config"
	"feedbacker/pkg/logger"
	"feedbacker/pkg/metrics"
)

// Analyzer runs the sentiment backend chain. Backends are tried in
// order under a per-backend timeout; the one that answers is promoted
// to the front for subsequent calls. When the whole chain fails the
// local heuristic answers, so Analyze never fails.
type Analyzer struct {
	chain   *FallbackList[Backend]
	timeout time.Duration
}

func NewAnalyzer(cfg config.SentimentConfig, backends []Backend) *Analyzer {
	return &Analyzer{
		chain:   NewFallbackList(backends...),
		timeout: time.Duration(cfg.TimeoutSec) * time.Second,
	}
}

func (a *Analyzer) Analyze(ctx context.Context, text string) (string, float64) {
	if strings.TrimSpace(text) == "" {
		return domain.SentimentNeutral, 0.5
	}

	for _, backend := range a.chain.Snapshot() {
		sentiment, score, err := a.tryBackend(ctx, backend, text)
		if err != nil {
			logger.Warn("sentiment backend failed, trying next",
				"backend", backend.Name(), err)
			metrics.SentimentFallbackTotal.WithLabelValues(backend.Name()).Inc()
			continue
		}

		a.chain.Promote(backend)

		return sentiment, score
	}

	return HeuristicSentiment(text)
}

func (a *Analyzer) tryBackend(ctx context.Context, b Backend, text string) (string, float64, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	return b.Classify(ctx, text)
}
