package rest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"feedbacker/business/feedback"
	"feedbacker/domain"
	"feedbacker/pkg/config"
	"feedbacker/pkg/logger"
)

// ResponseError represent the response error struct
type ResponseError struct {
	Message string `json:"message"`
}

// FeedbackService contract interface
type FeedbackService interface {
	Ingest(ctx context.Context, sub feedback.Submission) (*domain.Feedback, error)
	GetFull(ctx context.Context, id string) (*domain.Feedback, error)
	AudioURL(ctx context.Context, id string, ttlSec int) (string, error)
	RedirectAudioURL(ctx context.Context, id string) (string, error)
	ListByShop(ctx context.Context, shopID string, since time.Time, limit int) ([]domain.FeedbackSummary, error)
}

type FeedbackHandler struct {
	feedbackService FeedbackService
	audioCfg        config.AudioConfig
	timeout         time.Duration
}

func NewFeedbackHandler(feedbackService FeedbackService, audioCfg config.AudioConfig) *FeedbackHandler {
	return &FeedbackHandler{
		feedbackService: feedbackService,
		audioCfg:        audioCfg,
		timeout:         5 * time.Minute,
	}
}

// Submit accepts one multipart voice recording and runs it through the
// ingestion pipeline.
func (h *FeedbackHandler) Submit(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	file, err := c.FormFile("audio")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": domain.ErrNoAudioFile.Error()})
	}

	if h.audioCfg.MaxUploadMB > 0 && file.Size > h.audioCfg.MaxUploadMB<<20 {
		return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": domain.ErrFileTooLarge.Error()})
	}
	if !h.allowedUpload(file) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": domain.ErrDisallowedFile.Error()})
	}

	tempPath, err := h.spoolUpload(file)
	if err != nil {
		logger.Error("failed to spool upload", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "не удалось принять файл"})
	}

	sub := feedback.Submission{
		ShopID:       strings.TrimSpace(c.FormValue("shop_id")),
		DeviceID:     strings.TrimSpace(c.FormValue("device_id")),
		IsAnonymous:  parseBool(c.FormValue("is_anonymous")),
		ClientIP:     c.RealIP(),
		TempPath:     tempPath,
		OriginalName: filepath.Base(file.Filename),
	}

	fb, err := h.feedbackService.Ingest(ctx, sub)
	if err != nil {
		return h.rejectJSON(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"status":      "ok",
		"feedback_id": fb.ID,
	})
}

func (h *FeedbackHandler) GetFull(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	fb, err := h.feedbackService.GetFull(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": domain.ErrNotFound.Error()})
		}

		return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
	}

	return c.JSON(http.StatusOK, fb)
}

// AudioURL mints a signed link with a caller-chosen ttl.
func (h *FeedbackHandler) AudioURL(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	ttl := 0
	if raw := c.QueryParam("ttl"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			ttl = n
		}
	}

	url, err := h.feedbackService.AudioURL(ctx, c.Param("id"), ttl)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": domain.ErrNotFound.Error()})
		}
		logger.Error("failed to sign audio url", err)

		return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
	}

	return c.JSON(http.StatusOK, echo.Map{"url": url})
}

// RedirectAudio is the evergreen link: each click mints a fresh
// short-lived URL and redirects to it.
func (h *FeedbackHandler) RedirectAudio(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	url, err := h.feedbackService.RedirectAudioURL(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": domain.ErrNotFound.Error()})
		}
		logger.Error("failed to mint redirect url", err)

		return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
	}

	return c.Redirect(http.StatusFound, url)
}

func (h *FeedbackHandler) ListByShop(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	var since time.Time
	if raw := c.QueryParam("since"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			since = t
		}
	}

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	items, err := h.feedbackService.ListByShop(ctx, c.Param("shop_id"), since, limit)
	if err != nil {
		if errors.Is(err, domain.ErrMissingShopID) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		logger.Error("failed to list shop feedbacks", err)

		return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
	}
	if items == nil {
		items = []domain.FeedbackSummary{}
	}

	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// rejectJSON maps pipeline errors onto the public wire contract.
func (h *FeedbackHandler) rejectJSON(c echo.Context, err error) error {
	var rl *domain.RateLimitedError
	if errors.As(err, &rl) {
		c.Response().Header().Set("Retry-After",
			strconv.Itoa(int(math.Ceil(rl.RetryAfter.Seconds()))))

		return c.JSON(http.StatusTooManyRequests, echo.Map{
			"error":  rl.Error(),
			"reason": rl.Reason,
		})
	}

	switch {
	case errors.Is(err, domain.ErrMissingShopID),
		errors.Is(err, domain.ErrAudioUnreadable),
		errors.Is(err, domain.ErrAudioTooShort),
		errors.Is(err, domain.ErrAudioTooLong),
		errors.Is(err, domain.ErrEmptyTranscript):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, domain.ErrStorageFailure):
		return c.JSON(http.StatusBadGateway, echo.Map{"error": domain.ErrStorageFailure.Error()})
	default:
		logger.Error("ingestion failed", err)

		return c.JSON(http.StatusInternalServerError, echo.Map{"error": domain.ErrSaveFailure.Error()})
	}
}

func (h *FeedbackHandler) allowedUpload(file *multipart.FileHeader) bool {
	if len(h.audioCfg.AllowedMIMEs) == 0 {
		return true
	}

	contentType := file.Header.Get("Content-Type")
	if idx := strings.IndexByte(contentType, ';'); idx >= 0 {
		contentType = contentType[:idx]
	}
	contentType = strings.TrimSpace(strings.ToLower(contentType))

	for _, allowed := range h.audioCfg.AllowedMIMEs {
		if contentType == strings.ToLower(allowed) {
			return true
		}
	}

	return false
}

// spoolUpload copies the multipart part to a uniquely named temp file
// under the upload dir; the pipeline owns it from here.
func (h *FeedbackHandler) spoolUpload(file *multipart.FileHeader) (string, error) {
	if err := os.MkdirAll(h.audioCfg.UploadDir, 0o755); err != nil {
		return "", err
	}

	src, err := file.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	ext := filepath.Ext(file.Filename)
	if ext == "" {
		ext = ".mp3"
	}
	path := filepath.Join(h.audioCfg.UploadDir,
		fmt.Sprintf("audio-%d%s", time.Now().UnixMilli(), ext))

	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(path)
		return "", err
	}

	return path, nil
}

func parseBool(raw string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(raw))

	return err == nil && b
}
