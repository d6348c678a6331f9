package feedback

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"feedbacker/business/abuse"
	"feedbacker/business/analysis"
	"feedbacker/domain"
	"feedbacker/internal/audioprobe"
	"feedbacker/pkg/config"
	"feedbacker/pkg/logger"
	"feedbacker/pkg/metrics"
)

// FeedbackRepository contract interface
type FeedbackRepository interface {
	Save(ctx context.Context, fb *domain.Feedback) error
	FindByID(ctx context.Context, id string) (domain.Feedback, error)
	List(ctx context.Context, filter domain.FeedbackFilter) ([]domain.Feedback, *int, error)
	FindByShopSince(ctx context.Context, shopID string, since time.Time, limit int) ([]domain.FeedbackSummary, error)
}

// AudioStore contract interface
type AudioStore interface {
	Put(ctx context.Context, localPath, suggestedName string) (string, error)
	SignedURL(ctx context.Context, objectPath string, ttlSec int) (string, error)
}

// Transcriber contract interface
type Transcriber interface {
	Transcribe(ctx context.Context, audioURL string) (string, error)
}

// SentimentAnalyzer contract interface
type SentimentAnalyzer interface {
	Analyze(ctx context.Context, text string) (string, float64)
}

// RateLimiter contract interface
type RateLimiter interface {
	Check(ip, deviceID string) abuse.Decision
}

// AlertDispatcher contract interface
type AlertDispatcher interface {
	Send(ctx context.Context, fb *domain.Feedback) int
}

// Submission is one incoming recording, already spooled to a local
// temp file by the transport layer.
type Submission struct {
	ShopID       string
	DeviceID     string
	IsAnonymous  bool
	ClientIP     string
	TempPath     string
	OriginalName string
}

type feedbackService struct {
	repo        FeedbackRepository
	store       AudioStore
	transcriber Transcriber
	analyzer    SentimentAnalyzer
	limiter     RateLimiter
	alerts      AlertDispatcher

	audioCfg    config.AudioConfig
	fitSizeRule bool

	probe func(path string) (float64, error)
	now   func() time.Time
}

func NewFeedbackService(
	repo FeedbackRepository,
	store AudioStore,
	transcriber Transcriber,
	analyzer SentimentAnalyzer,
	limiter RateLimiter,
	alerts AlertDispatcher,
	audioCfg config.AudioConfig,
	fitSizeRule bool,
) *feedbackService {
	return &feedbackService{
		repo:        repo,
		store:       store,
		transcriber: transcriber,
		analyzer:    analyzer,
		limiter:     limiter,
		alerts:      alerts,
		audioCfg:    audioCfg,
		fitSizeRule: fitSizeRule,
		probe:       audioprobe.Duration,
		now:         time.Now,
	}
}

// Ingest runs the whole pipeline for one submission: validate, store,
// transcribe, analyze, merge escalations, persist, then alert without
// blocking the caller. The temp file is removed on every path.
func (s *feedbackService) Ingest(ctx context.Context, sub Submission) (*domain.Feedback, error) {
	started := s.now()
	defer func() {
		os.Remove(sub.TempPath)
		metrics.IngestDuration.Observe(time.Since(started).Seconds())
	}()

	fb, err := s.ingest(ctx, sub)
	if err != nil {
		metrics.FeedbackRejectedTotal.WithLabelValues(rejectReason(err)).Inc()
		return nil, err
	}

	metrics.FeedbackIngestedTotal.WithLabelValues(fb.Sentiment).Inc()

	// fire and forget: the submitter never waits on alert delivery
	alertCopy := *fb
	go func() {
		alertCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s.alerts.Send(alertCtx, &alertCopy)
	}()

	return fb, nil
}

func (s *feedbackService) ingest(ctx context.Context, sub Submission) (*domain.Feedback, error) {
	if strings.TrimSpace(sub.ShopID) == "" {
		return nil, domain.ErrMissingShopID
	}

	if d := s.limiter.Check(sub.ClientIP, sub.DeviceID); !d.Allowed {
		return nil, &domain.RateLimitedError{Reason: d.Reason, RetryAfter: d.RetryAfter}
	}

	duration, err := s.probe(sub.TempPath)
	if err != nil {
		logger.Warn("audio duration unreadable", "file", sub.OriginalName, err)
		return nil, domain.ErrAudioUnreadable
	}
	if duration <= 0 || duration < s.audioCfg.MinSeconds {
		return nil, domain.ErrAudioTooShort
	}
	if duration > s.audioCfg.MaxSeconds {
		return nil, domain.ErrAudioTooLong
	}

	objectPath, err := s.store.Put(ctx, sub.TempPath, sub.OriginalName)
	if err != nil {
		logger.Error("audio upload failed", "shop_id", sub.ShopID, err)
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageFailure, err)
	}

	signedURL, err := s.store.SignedURL(ctx, objectPath, s.audioCfg.SignTTLSec)
	if err != nil {
		logger.Error("signing for transcription failed", "path", objectPath, err)
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageFailure, err)
	}

	transcript, err := s.transcriber.Transcribe(ctx, signedURL)
	if err != nil {
		logger.Warn("transcription failed", "shop_id", sub.ShopID, err)
		return nil, domain.ErrEmptyTranscript
	}
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return nil, domain.ErrEmptyTranscript
	}

	sentiment, score := s.analyzer.Analyze(ctx, transcript)
	tags := analysis.ExtractTags(transcript)
	summary := analysis.Summarize(transcript)

	sentiment, score, tags = s.mergeEscalations(transcript, sentiment, score, tags)

	fb := &domain.Feedback{
		ID:           uuid.NewString(),
		ShopID:       sub.ShopID,
		DeviceID:     sub.DeviceID,
		IsAnonymous:  sub.IsAnonymous,
		AudioPath:    objectPath,
		Transcript:   transcript,
		Sentiment:    sentiment,
		EmotionScore: score,
		Tags:         tags,
		Summary:      summary,
		Timestamp:    s.now().UTC(),
	}

	if err := s.repo.Save(ctx, fb); err != nil {
		logger.Error("failed to persist feedback", "shop_id", sub.ShopID, err)
		return nil, fmt.Errorf("%w: %v", domain.ErrSaveFailure, err)
	}

	logger.Info("feedback ingested", "feedback_id", fb.ID, "shop_id", fb.ShopID,
		"sentiment", fb.Sentiment, "score", fb.EmotionScore, "duration_sec", duration)

	return fb, nil
}

// mergeEscalations applies the red-flag override and the fit/size
// co-occurrence rule on top of the base classifier output.
func (s *feedbackService) mergeEscalations(transcript, sentiment string, score float64, tags []string) (string, float64, []string) {
	escalate, extraTags := analysis.RedFlags(transcript)
	if escalate {
		sentiment = domain.SentimentNegative
		if score > analysis.RedFlagMaxScore {
			score = analysis.RedFlagMaxScore
		}
		tags = mergeTags(tags, extraTags)

		return sentiment, score, tags
	}

	if s.fitSizeRule && analysis.FitSizeEscalation(sentiment, tags) {
		sentiment = domain.SentimentNegative
		if score > analysis.FitSizeMaxScore {
			score = analysis.FitSizeMaxScore
		}
	}

	return sentiment, score, tags
}

// mergeTags folds escalation tags into the extracted list. Escalation
// tags go first so the record cap never drops them, then the combined
// list is deduped and trimmed back to the record limit.
func mergeTags(tags, extra []string) []string {
	combined := make([]string, 0, len(tags)+len(extra))
	combined = append(combined, extra...)
	combined = append(combined, tags...)

	seen := make(map[string]bool, len(combined))
	out := make([]string, 0, len(combined))
	for _, t := range combined {
		key := strings.ToLower(t)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}

	if len(out) > analysis.MaxTags {
		out = out[:analysis.MaxTags]
	}

	return out
}

// GetFull returns the complete stored record.
func (s *feedbackService) GetFull(ctx context.Context, id string) (*domain.Feedback, error) {
	if id == "" {
		return nil, domain.ErrNotFound
	}

	fb, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return &fb, nil
}

// AudioURL mints a signed retrieval URL for the record's stored audio.
func (s *feedbackService) AudioURL(ctx context.Context, id string, ttlSec int) (string, error) {
	fb, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return "", err
	}
	if fb.AudioPath == "" {
		return "", domain.ErrNotFound
	}
	if ttlSec <= 0 {
		ttlSec = s.audioCfg.SignTTLSec
	}

	return s.store.SignedURL(ctx, fb.AudioPath, ttlSec)
}

// RedirectAudioURL mints a short-lived URL for evergreen links that are
// regenerated per click.
func (s *feedbackService) RedirectAudioURL(ctx context.Context, id string) (string, error) {
	fb, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return "", err
	}
	if fb.AudioPath == "" {
		return "", domain.ErrNotFound
	}

	return s.store.SignedURL(ctx, fb.AudioPath, s.audioCfg.RedirectTTLSec)
}

// ListByShop returns the recent feed for one shop.
func (s *feedbackService) ListByShop(ctx context.Context, shopID string, since time.Time, limit int) ([]domain.FeedbackSummary, error) {
	if shopID == "" {
		return nil, domain.ErrMissingShopID
	}

	return s.repo.FindByShopSince(ctx, shopID, since, limit)
}

// List pages through records for the admin screens.
func (s *feedbackService) List(ctx context.Context, filter domain.FeedbackFilter) ([]domain.Feedback, *int, error) {
	return s.repo.List(ctx, filter)
}

func rejectReason(err error) string {
	var rl *domain.RateLimitedError
	if errors.As(err, &rl) {
		return rl.Reason
	}

	switch {
	case errors.Is(err, domain.ErrMissingShopID):
		return "missing_shop_id"
	case errors.Is(err, domain.ErrAudioUnreadable):
		return "audio_unreadable"
	case errors.Is(err, domain.ErrAudioTooShort):
		return "audio_too_short"
	case errors.Is(err, domain.ErrAudioTooLong):
		return "audio_too_long"
	case errors.Is(err, domain.ErrStorageFailure):
		return "storage_failure"
	case errors.Is(err, domain.ErrEmptyTranscript):
		return "empty_transcript"
	case errors.Is(err, domain.ErrSaveFailure):
		return "save_failure"
	default:
		return "internal"
	}
}
