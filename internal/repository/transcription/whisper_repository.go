package transcription

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"feedbacker/pkg/config"
	"feedbacker/pkg/logger"
	"feedbacker/pkg/utils"
)

// WhisperRepository is the alternative speech-to-text backend: it pulls
// the audio down and sends the bytes to the OpenAI transcription API
// instead of handing over a URL.
type WhisperRepository struct {
	client   openai.Client
	download *http.Client
}

func NewWhisperRepository(cfg config.TranscriptionConfig) *WhisperRepository {
	return &WhisperRepository{
		client:   openai.NewClient(option.WithAPIKey(cfg.OpenAIKey)),
		download: &http.Client{Timeout: 60 * time.Second},
	}
}

func (r *WhisperRepository) Transcribe(ctx context.Context, audioURL string) (string, error) {
	if audioURL == "" {
		return "", fmt.Errorf("audio url is empty")
	}

	logger.Info("downloading audio for transcription", "audio_url", utils.RedactURL(audioURL))

	tmp, err := r.fetchToTemp(ctx, audioURL)
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp)

	f, err := os.Open(tmp)
	if err != nil {
		return "", err
	}
	defer f.Close()

	res, err := r.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:     f,
		Model:    openai.AudioModelWhisper1,
		Language: openai.String("ru"),
	})
	if err != nil {
		return "", fmt.Errorf("whisper transcription: %w", err)
	}

	return res.Text, nil
}

func (r *WhisperRepository) fetchToTemp(ctx context.Context, audioURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, audioURL, nil)
	if err != nil {
		return "", err
	}

	res, err := r.download.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download audio: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("audio download status %d", res.StatusCode)
	}

	tmp, err := os.CreateTemp("", "whisper-*.audio")
	if err != nil {
		return "", err
	}
	defer tmp.Close()

	if _, err := io.Copy(tmp, res.Body); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to buffer audio: %w", err)
	}

	return tmp.Name(), nil
}
