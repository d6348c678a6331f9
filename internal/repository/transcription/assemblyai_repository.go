package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"feedbacker/pkg/config"
	"feedbacker/pkg/logger"
	"feedbacker/pkg/utils"
)

// AssemblyAIRepository submits a transcription job for a retrievable
// audio URL and polls until the backend finishes.
type AssemblyAIRepository struct {
	baseURL      string
	apiKey       string
	pollInterval time.Duration
	maxWait      time.Duration
	client       *http.Client
}

func NewAssemblyAIRepository(cfg config.TranscriptionConfig) *AssemblyAIRepository {
	return &AssemblyAIRepository{
		baseURL:      strings.TrimRight(cfg.AssemblyAIURL, "/"),
		apiKey:       cfg.AssemblyAIKey,
		pollInterval: time.Duration(cfg.PollIntervalSec) * time.Second,
		maxWait:      time.Duration(cfg.MaxWaitSec) * time.Second,
		client:       &http.Client{Timeout: 12 * time.Second},
	}
}

type transcriptJob struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Text   string `json:"text"`
	Error  string `json:"error"`
}

func (r *AssemblyAIRepository) Transcribe(ctx context.Context, audioURL string) (string, error) {
	if r.apiKey == "" {
		return "", fmt.Errorf("assemblyai api key is not configured")
	}
	if audioURL == "" {
		return "", fmt.Errorf("audio url is empty")
	}

	logger.Info("submitting transcription job", "audio_url", utils.RedactURL(audioURL))

	payload, err := json.Marshal(map[string]any{
		"audio_url":     audioURL,
		"language_code": "ru",
		"punctuate":     true,
		"format_text":   true,
	})
	if err != nil {
		return "", err
	}

	var job transcriptJob
	err = r.doJSON(ctx, http.MethodPost, r.baseURL+"/v2/transcript", payload, &job)
	if err != nil {
		return "", fmt.Errorf("failed to create transcript job: %w", err)
	}
	if job.ID == "" {
		return "", fmt.Errorf("transcript job id missing in response")
	}

	logger.Info("transcription job created", "transcript_id", job.ID)

	deadline := time.Now().Add(r.maxWait)
	lastStatus := ""
	for {
		if time.Now().After(deadline) {
			return "", fmt.Errorf("transcription timed out after %s", r.maxWait)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(r.pollInterval):
		}

		var status transcriptJob
		err := r.doJSON(ctx, http.MethodGet, r.baseURL+"/v2/transcript/"+job.ID, nil, &status)
		if err != nil {
			logger.Warn("transcript poll failed, will retry", "transcript_id", job.ID, err)
			continue
		}

		if status.Status != lastStatus {
			lastStatus = status.Status
			logger.Debug("transcription status", "transcript_id", job.ID, "status", status.Status)
		}

		switch status.Status {
		case "completed":
			return status.Text, nil
		case "error":
			return "", fmt.Errorf("transcription failed: %s", status.Error)
		}
	}
}

// doJSON performs one JSON round trip with short exponential backoff on
// transport and server errors. The request is rebuilt per attempt so
// the body can be resent.
func (r *AssemblyAIRepository) doJSON(ctx context.Context, method, url string, body []byte, target any) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 12 * time.Second

	op := func() error {
		var rd io.Reader
		if body != nil {
			rd = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, rd)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", r.apiKey)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		res, err := r.client.Do(req)
		if err != nil {
			return err
		}
		defer res.Body.Close()

		raw, err := io.ReadAll(res.Body)
		if err != nil {
			return err
		}
		if res.StatusCode >= 500 {
			return fmt.Errorf("server error %d: %s", res.StatusCode, strings.TrimSpace(string(raw)))
		}
		if res.StatusCode >= 400 {
			return backoff.Permanent(fmt.Errorf("request rejected %d: %s",
				res.StatusCode, strings.TrimSpace(string(raw))))
		}

		return json.Unmarshal(raw, target)
	}

	return backoff.Retry(op, backoff.WithContext(bo, ctx))
}
