package feedback

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"feedbacker/business/abuse"
	"feedbacker/domain"
	"feedbacker/pkg/config"
)

type fakeRepo struct {
	saved   []*domain.Feedback
	saveErr error
	byID    map[string]domain.Feedback
}

func (r *fakeRepo) Save(_ context.Context, fb *domain.Feedback) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.saved = append(r.saved, fb)

	return nil
}

func (r *fakeRepo) FindByID(_ context.Context, id string) (domain.Feedback, error) {
	fb, ok := r.byID[id]
	if !ok {
		return domain.Feedback{}, domain.ErrNotFound
	}

	return fb, nil
}

func (r *fakeRepo) List(context.Context, domain.FeedbackFilter) ([]domain.Feedback, *int, error) {
	return nil, nil, nil
}

func (r *fakeRepo) FindByShopSince(context.Context, string, time.Time, int) ([]domain.FeedbackSummary, error) {
	return nil, nil
}

type fakeStore struct {
	putCalls  int
	putErr    error
	signErr   error
	signCalls []int
}

func (s *fakeStore) Put(_ context.Context, _, name string) (string, error) {
	s.putCalls++
	if s.putErr != nil {
		return "", s.putErr
	}

	return "uploads/123-" + name, nil
}

func (s *fakeStore) SignedURL(_ context.Context, path string, ttlSec int) (string, error) {
	s.signCalls = append(s.signCalls, ttlSec)
	if s.signErr != nil {
		return "", s.signErr
	}

	return "https://store.example.com/" + path + "?token=x", nil
}

type fakeTranscriber struct {
	text string
	err  error
}

func (t *fakeTranscriber) Transcribe(context.Context, string) (string, error) {
	return t.text, t.err
}

type fakeAnalyzer struct {
	sentiment string
	score     float64
}

func (a *fakeAnalyzer) Analyze(context.Context, string) (string, float64) {
	return a.sentiment, a.score
}

type fakeLimiter struct {
	decision abuse.Decision
}

func (l *fakeLimiter) Check(string, string) abuse.Decision { return l.decision }

type fakeAlerts struct {
	sent chan *domain.Feedback
}

func (a *fakeAlerts) Send(_ context.Context, fb *domain.Feedback) int {
	if a.sent != nil {
		a.sent <- fb
	}

	return 1
}

type deps struct {
	repo        *fakeRepo
	store       *fakeStore
	transcriber *fakeTranscriber
	analyzer    *fakeAnalyzer
	limiter     *fakeLimiter
	alerts      *fakeAlerts
}

func newTestService(d *deps) *feedbackService {
	svc := NewFeedbackService(d.repo, d.store, d.transcriber, d.analyzer, d.limiter, d.alerts,
		config.AudioConfig{
			MinSeconds:     1.5,
			MaxSeconds:     300,
			SignTTLSec:     3600,
			RedirectTTLSec: 300,
		}, true)
	svc.probe = func(string) (float64, error) { return 5, nil }

	return svc
}

func defaultDeps() *deps {
	return &deps{
		repo:        &fakeRepo{byID: map[string]domain.Feedback{}},
		store:       &fakeStore{},
		transcriber: &fakeTranscriber{text: "Всё отлично, спасибо!"},
		analyzer:    &fakeAnalyzer{sentiment: domain.SentimentPositive, score: 0.8},
		limiter:     &fakeLimiter{decision: abuse.Decision{Allowed: true}},
		alerts:      &fakeAlerts{sent: make(chan *domain.Feedback, 1)},
	}
}

func tempAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audio-1.mp3")
	if err := os.WriteFile(path, []byte("fake audio"), 0o644); err != nil {
		t.Fatal(err)
	}

	return path
}

func submission(t *testing.T) Submission {
	return Submission{
		ShopID:       "shop-1",
		DeviceID:     "kiosk-1",
		ClientIP:     "10.0.0.1",
		TempPath:     tempAudio(t),
		OriginalName: "audio-1.mp3",
	}
}

func TestIngestHappyPath(t *testing.T) {
	d := defaultDeps()
	svc := newTestService(d)
	sub := submission(t)

	fb, err := svc.Ingest(context.Background(), sub)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if fb.ID == "" || fb.ShopID != "shop-1" {
		t.Fatalf("record = %+v", fb)
	}
	if fb.Sentiment != domain.SentimentPositive || fb.EmotionScore != 0.8 {
		t.Fatalf("sentiment = %s %v", fb.Sentiment, fb.EmotionScore)
	}
	if len(fb.Tags) == 0 {
		t.Fatal("tags must never be empty")
	}
	if len(d.repo.saved) != 1 {
		t.Fatalf("saved %d records", len(d.repo.saved))
	}

	select {
	case alerted := <-d.alerts.sent:
		if alerted.ID != fb.ID {
			t.Fatal("alert must carry the persisted record")
		}
	case <-time.After(time.Second):
		t.Fatal("alert was not dispatched")
	}

	if _, err := os.Stat(sub.TempPath); !os.IsNotExist(err) {
		t.Fatal("temp file must be removed after ingestion")
	}
}

func TestIngestRedFlagEscalation(t *testing.T) {
	d := defaultDeps()
	d.transcriber.text = "размер не подходит, сидит плохо, хочу возврат"
	d.analyzer.sentiment = domain.SentimentNeutral
	d.analyzer.score = 0.55
	svc := newTestService(d)

	fb, err := svc.Ingest(context.Background(), submission(t))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if fb.Sentiment != domain.SentimentNegative {
		t.Fatalf("sentiment = %s, want негатив", fb.Sentiment)
	}
	if fb.EmotionScore > 0.35 {
		t.Fatalf("score = %v, want clamped to 0.35", fb.EmotionScore)
	}

	found := map[string]bool{}
	for _, tag := range fb.Tags {
		found[tag] = true
	}
	if !found["возврат"] {
		t.Fatalf("extra tag must be merged, tags = %v", fb.Tags)
	}
}

func TestIngestRedFlagKeepsTagCap(t *testing.T) {
	d := defaultDeps()
	// three canonical tags already extracted, plus a distinct red-flag tag
	d.transcriber.text = "Качество ужасное, цвет выцвел, цена дорогая, оформлю возврат."
	d.analyzer.sentiment = domain.SentimentNeutral
	d.analyzer.score = 0.5
	svc := newTestService(d)

	fb, err := svc.Ingest(context.Background(), submission(t))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(fb.Tags) > 3 {
		t.Fatalf("tags = %v, record must never carry more than 3", fb.Tags)
	}

	found := map[string]bool{}
	for _, tag := range fb.Tags {
		found[tag] = true
	}
	if !found["возврат"] {
		t.Fatalf("escalation tag must survive the cap, tags = %v", fb.Tags)
	}
	if fb.Sentiment != domain.SentimentNegative || fb.EmotionScore > 0.35 {
		t.Fatalf("got (%s, %v), want escalated negative", fb.Sentiment, fb.EmotionScore)
	}
}

func TestIngestFitSizeRule(t *testing.T) {
	d := defaultDeps()
	// fit and size tags without any red-flag phrase
	d.transcriber.text = "Посадка странная для этого размера."
	d.analyzer.sentiment = domain.SentimentNeutral
	d.analyzer.score = 0.5
	svc := newTestService(d)

	fb, err := svc.Ingest(context.Background(), submission(t))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if fb.Sentiment != domain.SentimentNegative || fb.EmotionScore != 0.4 {
		t.Fatalf("got (%s, %v), want (негатив, 0.4)", fb.Sentiment, fb.EmotionScore)
	}
}

func TestIngestMissingShopID(t *testing.T) {
	d := defaultDeps()
	svc := newTestService(d)
	sub := submission(t)
	sub.ShopID = "  "

	if _, err := svc.Ingest(context.Background(), sub); !errors.Is(err, domain.ErrMissingShopID) {
		t.Fatalf("err = %v", err)
	}
	if d.store.putCalls != 0 {
		t.Fatal("nothing must be uploaded for a rejected submission")
	}
	if _, err := os.Stat(sub.TempPath); !os.IsNotExist(err) {
		t.Fatal("temp file must be removed on rejection")
	}
}

func TestIngestRateLimited(t *testing.T) {
	d := defaultDeps()
	d.limiter.decision = abuse.Decision{
		Reason:     domain.RateReasonIPWindow,
		RetryAfter: 30 * time.Second,
	}
	svc := newTestService(d)

	_, err := svc.Ingest(context.Background(), submission(t))
	var rl *domain.RateLimitedError
	if !errors.As(err, &rl) {
		t.Fatalf("err = %v, want RateLimitedError", err)
	}
	if rl.Reason != domain.RateReasonIPWindow {
		t.Fatalf("reason = %s", rl.Reason)
	}
}

func TestIngestAudioTooShort(t *testing.T) {
	d := defaultDeps()
	svc := newTestService(d)
	svc.probe = func(string) (float64, error) { return 0.8, nil }

	if _, err := svc.Ingest(context.Background(), submission(t)); !errors.Is(err, domain.ErrAudioTooShort) {
		t.Fatalf("err = %v", err)
	}
	if d.store.putCalls != 0 {
		t.Fatal("short audio must be rejected before any upload")
	}
}

func TestIngestUnreadableAudio(t *testing.T) {
	d := defaultDeps()
	svc := newTestService(d)
	svc.probe = func(string) (float64, error) { return 0, errors.New("garbage") }

	if _, err := svc.Ingest(context.Background(), submission(t)); !errors.Is(err, domain.ErrAudioUnreadable) {
		t.Fatalf("err = %v", err)
	}
}

func TestIngestStorageFailure(t *testing.T) {
	d := defaultDeps()
	d.store.putErr = errors.New("bucket down")
	svc := newTestService(d)

	if _, err := svc.Ingest(context.Background(), submission(t)); !errors.Is(err, domain.ErrStorageFailure) {
		t.Fatalf("err = %v", err)
	}
	if len(d.repo.saved) != 0 {
		t.Fatal("nothing must be persisted after a storage failure")
	}
}

func TestIngestEmptyTranscript(t *testing.T) {
	d := defaultDeps()
	d.transcriber.text = "   "
	svc := newTestService(d)

	if _, err := svc.Ingest(context.Background(), submission(t)); !errors.Is(err, domain.ErrEmptyTranscript) {
		t.Fatalf("err = %v", err)
	}

	d = defaultDeps()
	d.transcriber.err = errors.New("backend exploded")
	svc = newTestService(d)
	if _, err := svc.Ingest(context.Background(), submission(t)); !errors.Is(err, domain.ErrEmptyTranscript) {
		t.Fatalf("err = %v", err)
	}
}

func TestIngestSaveFailureIsNotSuccess(t *testing.T) {
	d := defaultDeps()
	d.repo.saveErr = errors.New("db down")
	svc := newTestService(d)

	if _, err := svc.Ingest(context.Background(), submission(t)); !errors.Is(err, domain.ErrSaveFailure) {
		t.Fatalf("err = %v", err)
	}

	select {
	case <-d.alerts.sent:
		t.Fatal("no alert may be sent for an unpersisted record")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestAudioURLUsesRequestedTTL(t *testing.T) {
	d := defaultDeps()
	d.repo.byID["fb-1"] = domain.Feedback{ID: "fb-1", AudioPath: "uploads/1-a.mp3"}
	svc := newTestService(d)

	if _, err := svc.AudioURL(context.Background(), "fb-1", 120); err != nil {
		t.Fatalf("audio url: %v", err)
	}
	if len(d.store.signCalls) != 1 || d.store.signCalls[0] != 120 {
		t.Fatalf("sign calls = %v", d.store.signCalls)
	}

	// redirect variant always uses the short ttl
	if _, err := svc.RedirectAudioURL(context.Background(), "fb-1"); err != nil {
		t.Fatalf("redirect url: %v", err)
	}
	if d.store.signCalls[1] != 300 {
		t.Fatalf("redirect ttl = %d, want 300", d.store.signCalls[1])
	}
}

func TestGetFullNotFound(t *testing.T) {
	d := defaultDeps()
	svc := newTestService(d)

	if _, err := svc.GetFull(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}
