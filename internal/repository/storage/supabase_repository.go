package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"feedbacker/domain"
	"feedbacker/pkg/config"
	"feedbacker/pkg/logger"
)

const (
	minSignTTLSec = 60
	maxSignTTLSec = 14 * 24 * 3600
	retrySignTTL  = 3600
)

// SupabaseRepository talks to a Supabase-compatible object storage REST
// API: upload into a bucket, mint signed retrieval URLs.
type SupabaseRepository struct {
	baseURL    string
	serviceKey string
	bucket     string
	client     *http.Client
}

func NewSupabaseRepository(cfg config.StorageConfig) *SupabaseRepository {
	return &SupabaseRepository{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		serviceKey: cfg.ServiceKey,
		bucket:     cfg.Bucket,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Put uploads the file at localPath under a time-prefixed object path.
// Uploads never overwrite: a name collision is an error.
func (r *SupabaseRepository) Put(ctx context.Context, localPath, suggestedName string) (string, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}

	objectPath := fmt.Sprintf("uploads/%d-%s", time.Now().UnixMilli(), suggestedName)

	url := fmt.Sprintf("%s/storage/v1/object/%s/%s", r.baseURL, r.bucket, objectPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+r.serviceKey)
	req.Header.Set("Content-Type", contentTypeFor(suggestedName))
	req.Header.Set("x-upsert", "false")

	res, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrStorageFailure, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		logger.Error("storage upload failed",
			"status", res.StatusCode, "path", objectPath, "body", string(body))

		return "", fmt.Errorf("%w: status %d", domain.ErrStorageFailure, res.StatusCode)
	}

	return objectPath, nil
}

// SignedURL mints a time-bounded retrieval URL for a stored object. The
// ttl is clamped to a safe range; if the provider rejects it, one retry
// is made with a conservative one-hour ttl.
func (r *SupabaseRepository) SignedURL(ctx context.Context, objectPath string, ttlSec int) (string, error) {
	if ttlSec < minSignTTLSec {
		ttlSec = minSignTTLSec
	}
	if ttlSec > maxSignTTLSec {
		ttlSec = maxSignTTLSec
	}

	signed, err := r.sign(ctx, objectPath, ttlSec)
	if err != nil && ttlSec != retrySignTTL {
		logger.Warn("signing failed, retrying with shorter ttl",
			"path", objectPath, "ttl", ttlSec, err)
		signed, err = r.sign(ctx, objectPath, retrySignTTL)
	}
	if err != nil {
		return "", err
	}

	return signed, nil
}

func (r *SupabaseRepository) sign(ctx context.Context, objectPath string, ttlSec int) (string, error) {
	body, err := json.Marshal(map[string]int{"expiresIn": ttlSec})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/storage/v1/object/sign/%s/%s", r.baseURL, r.bucket, objectPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+r.serviceKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrStorageFailure, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", fmt.Errorf("%w: sign status %d", domain.ErrStorageFailure, res.StatusCode)
	}

	var out struct {
		SignedURL string `json:"signedURL"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrStorageFailure, err)
	}
	if out.SignedURL == "" {
		return "", fmt.Errorf("%w: empty signed url", domain.ErrStorageFailure)
	}

	return r.baseURL + "/storage/v1" + out.SignedURL, nil
}

func contentTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".wav":
		return "audio/wav"
	case ".ogg":
		return "audio/ogg"
	case ".webm":
		return "audio/webm"
	case ".m4a", ".mp4":
		return "audio/mp4"
	default:
		return "audio/mpeg"
	}
}
